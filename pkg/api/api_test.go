package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mutegate/pkg/auth"
	"mutegate/pkg/config"
	"mutegate/pkg/logger"
	"mutegate/pkg/voice"

	"github.com/gin-gonic/gin"
)

const testAPIKey = "super-secret-key"

// fakeProvider implements voice.Provider for handler tests.
type fakeProvider struct {
	members   []voice.Member
	failFetch map[string]bool

	fetchCalls int
	muteCalls  []string
	deafCalls  []string
}

func (f *fakeProvider) FetchMember(_ context.Context, id string) (voice.Member, error) {
	f.fetchCalls++
	if f.failFetch[id] {
		return voice.Member{}, errors.New("unknown member")
	}
	for _, m := range f.members {
		if m.ID == id {
			return m, nil
		}
	}
	return voice.Member{}, errors.New("unknown member")
}

func (f *fakeProvider) Members(_ context.Context) ([]voice.Member, error) {
	return f.members, nil
}

func (f *fakeProvider) SetMute(_ context.Context, id string, _ bool, _ string) error {
	f.muteCalls = append(f.muteCalls, id)
	return nil
}

func (f *fakeProvider) SetDeaf(_ context.Context, id string, _ bool, _ string) error {
	f.deafCalls = append(f.deafCalls, id)
	return nil
}

func testSettings(storedKey string, legacy bool) *config.Settings {
	return &config.Settings{
		APIKey:        storedKey,
		CommunityID:   "123456789012345678",
		Port:          37405,
		BotToken:      "bot-token-value",
		LegacyEnabled: legacy,
	}
}

func testRouter(settings *config.Settings, provider voice.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger.Init(logger.ErrorLevel, "text")
	h := NewHandler(settings, provider, logger.Get(), "2.1.1")
	return NewRouter(h)
}

func doRequest(router *gin.Engine, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Basic "+testAPIKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUnauthorizedRequest(t *testing.T) {
	provider := &fakeProvider{}
	router := testRouter(testSettings(testAPIKey, true), provider)

	for _, header := range []string{"", "Basic wrong-key", testAPIKey, "Bearer " + testAPIKey} {
		req := httptest.NewRequest(http.MethodGet, "/id?name=a&nick=b", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
			continue
		}

		var body authErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("header %q: invalid 401 body: %v", header, err)
		}
		if body.ErrorID != "AUTHORIZATION_MISMATCH" {
			t.Errorf("header %q: unexpected errorId %q", header, body.ErrorID)
		}
	}

	if provider.fetchCalls != 0 {
		t.Error("Unauthorized requests must never reach the provider")
	}
}

func TestAuthorizationAcceptsHashedStore(t *testing.T) {
	hash, err := auth.NewPasswordHasher().Hash(testAPIKey)
	if err != nil {
		t.Fatalf("Failed to hash key: %v", err)
	}

	provider := &fakeProvider{members: []voice.Member{{DisplayName: "karl", ID: "42"}}}
	router := testRouter(testSettings(hash, true), provider)

	w := doRequest(router, http.MethodGet, "/id?name=karl&nick=karl", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Raw key should authorize against a hashed store, got %d", w.Code)
	}
}

func TestMemberLookup(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{
		{DisplayName: "foobar", ID: "1"},
		{DisplayName: "foo", Nickname: "f", ID: "2"},
	}}
	router := testRouter(testSettings(testAPIKey, false), provider)

	w := doRequest(router, http.MethodGet, "/id?name=foo&nick=xyz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body memberResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if body.ID != "2" {
		t.Errorf("Exact display-name match should beat substring, got id %s", body.ID)
	}
	if body.Nick == nil || *body.Nick != "f" {
		t.Errorf("Expected nick %q, got %v", "f", body.Nick)
	}
}

func TestMemberLookupNilNick(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{
		{DisplayName: "karl", ID: "1"},
	}}
	router := testRouter(testSettings(testAPIKey, false), provider)

	w := doRequest(router, http.MethodGet, "/id?name=karl&nick=karl", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if string(raw["nick"]) != "null" {
		t.Errorf("Expected null nick, got %s", raw["nick"])
	}
}

func TestMemberLookupMissingParams(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, false), &fakeProvider{})

	for _, target := range []string{"/id", "/id?name=foo", "/id?nick=bar"} {
		w := doRequest(router, http.MethodGet, target, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestMemberLookupNotFound(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{{DisplayName: "someone", ID: "1"}}}
	router := testRouter(testSettings(testAPIKey, false), provider)

	w := doRequest(router, http.MethodGet, "/id?name=nobody&nick=nothing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}

	var body notFoundResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if body.Answer != 0 {
		t.Errorf("Expected answer 0 sentinel, got %d", body.Answer)
	}
}

func TestMuteSingleObjectEqualsArray(t *testing.T) {
	for _, body := range []string{
		`{"id":"42","status":true}`,
		`[{"id":"42","status":true}]`,
	} {
		provider := &fakeProvider{members: []voice.Member{{DisplayName: "karl", ID: "42"}}}
		router := testRouter(testSettings(testAPIKey, false), provider)

		w := doRequest(router, http.MethodPost, "/mute", body, nil)
		if w.Code != http.StatusOK {
			t.Errorf("body %s: expected 200, got %d", body, w.Code)
			continue
		}
		if len(provider.muteCalls) != 1 || provider.muteCalls[0] != "42" {
			t.Errorf("body %s: expected one mute call for 42, got %v", body, provider.muteCalls)
		}
	}
}

func TestMuteInvalidBatchNeverReachesProvider(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{
		{DisplayName: "a", ID: "111"},
		{DisplayName: "b", ID: "333"},
	}}
	router := testRouter(testSettings(testAPIKey, false), provider)

	body := `[{"id":"111","status":true},{"id":"2x2","status":true},{"id":"333","status":true}]`
	w := doRequest(router, http.MethodPost, "/mute", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if provider.fetchCalls != 0 || len(provider.muteCalls) != 0 {
		t.Error("Invalid batch must not invoke the provider for any item")
	}
}

func TestMutePartialFailureReportsFirstError(t *testing.T) {
	provider := &fakeProvider{
		members:   []voice.Member{{DisplayName: "a", ID: "111"}, {DisplayName: "b", ID: "333"}},
		failFetch: map[string]bool{"222": true},
	}
	router := testRouter(testSettings(testAPIKey, false), provider)

	body := `[{"id":"111","status":true},{"id":"222","status":true},{"id":"333","status":true}]`
	w := doRequest(router, http.MethodPost, "/mute", body, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	// Siblings around the failure were still applied; no rollback.
	if len(provider.muteCalls) != 2 {
		t.Errorf("Expected 2 applied siblings, got %v", provider.muteCalls)
	}
}

func TestDeafenUsesDeafPath(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{{DisplayName: "karl", ID: "42"}}}
	router := testRouter(testSettings(testAPIKey, false), provider)

	w := doRequest(router, http.MethodPost, "/deafen", `{"id":"42","status":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(provider.deafCalls) != 1 || len(provider.muteCalls) != 0 {
		t.Errorf("Deafen must only touch the deaf flag: deaf=%v mute=%v",
			provider.deafCalls, provider.muteCalls)
	}
}

func TestLegacySync(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, true), &fakeProvider{})

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{"req": "sync"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body legacySyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if !body.Success || body.Version != "2.1.1" {
		t.Errorf("Unexpected sync body: %+v", body)
	}
	if body.CommunityID != "123456789012345678" {
		t.Errorf("Expected community id in sync body, got %q", body.CommunityID)
	}
}

func TestLegacyKeepAlive(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, true), &fakeProvider{})

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{"req": "keep_alive"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body successResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || !body.Success {
		t.Errorf("Expected success body, got %s (err %v)", w.Body.String(), err)
	}
}

func TestLegacyConnect(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{{DisplayName: "karl", ID: "42"}}}
	router := testRouter(testSettings(testAPIKey, true), provider)

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{
		"req":    "connect",
		"params": `{"tag":"KARL"}`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body legacyConnectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if body.Tag != "karl" || body.ID != "42" {
		t.Errorf("Unexpected connect body: %+v", body)
	}
}

func TestLegacyConnectNotFound(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, true), &fakeProvider{})

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{
		"req":    "connect",
		"params": `{"tag":"nobody"}`,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	var body notFoundResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Answer != 0 {
		t.Errorf("Expected answer 0 sentinel, got %s", w.Body.String())
	}
}

func TestLegacyConnectMissingTag(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, true), &fakeProvider{})

	for _, params := range []string{"", `{}`, `{"tag":7}`} {
		headers := map[string]string{"req": "connect"}
		if params != "" {
			headers["params"] = params
		}
		w := doRequest(router, http.MethodGet, "/", "", headers)
		if w.Code != http.StatusBadRequest && w.Code != http.StatusInternalServerError {
			t.Errorf("params %q: expected 400/500, got %d", params, w.Code)
		}
	}
}

func TestLegacyMute(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{{DisplayName: "karl", ID: "42"}}}
	router := testRouter(testSettings(testAPIKey, true), provider)

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{
		"req":    "mute",
		"params": `{"id":"42","mute":true}`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(provider.muteCalls) != 1 {
		t.Errorf("Expected one mute call, got %v", provider.muteCalls)
	}
}

func TestLegacyMuteNonBooleanMute(t *testing.T) {
	provider := &fakeProvider{members: []voice.Member{{DisplayName: "karl", ID: "42"}}}
	router := testRouter(testSettings(testAPIKey, true), provider)

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{
		"req":    "mute",
		"params": `{"id":"42","mute":"true"}`,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	var body legacyErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if body.Success || body.ErrorID != "INVALID_PARAMS" {
		t.Errorf("Unexpected error body: %+v", body)
	}
	if len(provider.muteCalls) != 0 {
		t.Error("Invalid params must not reach the provider")
	}
}

func TestLegacyMuteProviderError(t *testing.T) {
	provider := &fakeProvider{failFetch: map[string]bool{"42": true}}
	router := testRouter(testSettings(testAPIKey, true), provider)

	w := doRequest(router, http.MethodGet, "/", "", map[string]string{
		"req":    "mute",
		"params": `{"id":"42","mute":true}`,
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}

	var body legacyErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if body.Success || body.ErrorID != "DISCORD_ERROR" || body.ErrorMsg == "" {
		t.Errorf("Unexpected error body: %+v", body)
	}
}

func TestLegacyMalformedEnvelope(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, true), &fakeProvider{})

	// Missing req header.
	w := doRequest(router, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing req: expected 400, got %d", w.Code)
	}

	// Unparseable params header.
	w = doRequest(router, http.MethodGet, "/", "", map[string]string{
		"req":    "sync",
		"params": "{not json",
	})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Malformed params: expected 500, got %d", w.Code)
	}

	// Unrecognized command.
	w = doRequest(router, http.MethodGet, "/", "", map[string]string{"req": "reboot"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown command: expected 400, got %d", w.Code)
	}
}

func TestLegacyDisabledRouteAbsent(t *testing.T) {
	router := testRouter(testSettings(testAPIKey, false), &fakeProvider{})

	// With a valid credential the route simply does not exist.
	w := doRequest(router, http.MethodGet, "/", "", map[string]string{"req": "sync"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected routing 404 with legacy disabled, got %d", w.Code)
	}

	// Without a credential the auth gate still answers first.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credential, got %d", rec.Code)
	}
}
