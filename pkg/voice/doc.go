// Package voice contains the gateway's command layer: parsing and
// validating inbound mute/deafen payloads, resolving human-entered names
// to member identities, and dispatching validated state changes to the
// membership provider.
//
// The package is organized around three pieces:
//
// ParseCommands normalizes a request body (single object or array) into a
// validated ordered slice of MuteCommand values. Validation is all-or-
// nothing: one bad element rejects the whole batch before any provider
// call is made.
//
// FindMember implements the matching policy for name lookups: exact
// display-name, exact nickname, then case-insensitive substring matches,
// in that priority order, with provider-supplied ordering breaking ties.
//
// Dispatcher applies a batch against a Provider. Application is
// at-least-once and non-transactional: items are attempted independently,
// failures do not roll back earlier side effects, and the aggregate
// result reports the first failure encountered.
package voice
