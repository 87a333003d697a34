package voice

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation errors returned by ParseCommands. All map to a 400 at the
// HTTP layer.
var (
	ErrEmptyBody     = errors.New("empty request body")
	ErrInvalidBody   = errors.New("request body must be a JSON object or array")
	ErrInvalidID     = errors.New("id must be a non-empty numeric string")
	ErrInvalidStatus = errors.New("status must be a boolean")
)

// MuteCommand is a single validated voice-state change request.
type MuteCommand struct {
	ID     string
	Status bool
}

// rawCommand decodes one payload element. Pointer fields distinguish a
// missing or wrongly-typed field from a zero value; decoding "true" (a
// string) into *bool fails, which is exactly the strictness we need.
type rawCommand struct {
	ID     *string `json:"id"`
	Status *bool   `json:"status"`
}

// ParseCommands accepts a JSON body holding either a single command object
// or an array of them and normalizes it to an ordered slice. Any invalid
// element rejects the entire batch.
func ParseCommands(body []byte) ([]MuteCommand, error) {
	head := firstToken(body)
	if head == 0 {
		return nil, ErrEmptyBody
	}

	var raws []rawCommand
	switch head {
	case '[':
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
	case '{':
		var single rawCommand
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		raws = []rawCommand{single}
	default:
		return nil, ErrInvalidBody
	}

	if len(raws) == 0 {
		return nil, ErrEmptyBody
	}

	commands := make([]MuteCommand, 0, len(raws))
	for _, raw := range raws {
		if raw.ID == nil || !validID(*raw.ID) {
			return nil, ErrInvalidID
		}
		if raw.Status == nil {
			return nil, ErrInvalidStatus
		}
		commands = append(commands, MuteCommand{ID: *raw.ID, Status: *raw.Status})
	}

	return commands, nil
}

// validID checks that an external identifier is plausibly numeric without
// parsing it as an integer: ids are long enough to overflow int64. Every
// rune must be a decimal digit, except an optional single leading sign.
func validID(id string) bool {
	if id == "" {
		return false
	}

	for i, r := range id {
		if r >= '0' && r <= '9' {
			continue
		}
		if i == 0 && (r == '+' || r == '-') && len(id) > 1 {
			continue
		}
		return false
	}

	return true
}

// firstToken returns the first non-whitespace byte of the body, or 0 when
// the body is blank.
func firstToken(body []byte) byte {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}
