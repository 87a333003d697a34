package voice

import "strings"

// Member is an ephemeral projection of an external member record. Nickname
// is empty when the member has none.
type Member struct {
	DisplayName string
	Nickname    string
	ID          string
}

// FindMember maps a human-entered name fragment to one member. Matching
// runs in four priority passes over the whole candidate set: exact display
// name, exact nickname, case-insensitive display-name substring, case-
// insensitive nickname substring. Within a pass the first candidate wins;
// ties fall to whatever order the provider returned, which is accepted
// as-is.
func FindMember(candidates []Member, query string) (Member, bool) {
	for _, m := range candidates {
		if m.DisplayName == query {
			return m, true
		}
	}

	for _, m := range candidates {
		if m.Nickname != "" && m.Nickname == query {
			return m, true
		}
	}

	lower := strings.ToLower(query)

	for _, m := range candidates {
		if strings.Contains(strings.ToLower(m.DisplayName), lower) {
			return m, true
		}
	}

	for _, m := range candidates {
		if m.Nickname != "" && strings.Contains(strings.ToLower(m.Nickname), lower) {
			return m, true
		}
	}

	return Member{}, false
}
