package api

// authErrorResponse is the 401 body. Its shape is part of the contract
// with both client generations.
type authErrorResponse struct {
	ErrorID  string `json:"errorId"`
	ErrorMsg string `json:"errorMsg"`
}

// successResponse is the plain success body shared by both protocol
// families.
type successResponse struct {
	Success bool `json:"success"`
}

// notFoundResponse carries the numeric sentinel the legacy caller expects
// when a member lookup misses.
type notFoundResponse struct {
	Answer int `json:"answer"`
}

// memberResponse answers a /id lookup. Nick is null when the member has no
// nickname.
type memberResponse struct {
	Name string  `json:"name"`
	Nick *string `json:"nick"`
	ID   string  `json:"id"`
}

// legacyConnectResponse answers a legacy connect command.
type legacyConnectResponse struct {
	Tag string `json:"tag"`
	ID  string `json:"id"`
}

// legacySyncResponse is the legacy heartbeat/status probe body.
type legacySyncResponse struct {
	Success     bool   `json:"success"`
	Version     string `json:"version"`
	DebugMode   bool   `json:"debugMode"`
	CommunityID string `json:"communityId"`
}

// legacyErrorResponse is the structured error body of the legacy mute
// command.
type legacyErrorResponse struct {
	Success  bool   `json:"success"`
	ErrorID  string `json:"errorId"`
	ErrorMsg string `json:"errorMsg"`
}

// Error identifiers on the wire.
const (
	errIDAuthMismatch  = "AUTHORIZATION_MISMATCH"
	errIDInvalidParams = "INVALID_PARAMS"
	errIDProvider      = "DISCORD_ERROR"
)
