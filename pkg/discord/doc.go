// Package discord implements the external voice-membership provider
// against the Discord API.
//
// Client covers the REST surface the gateway needs: fetching and listing
// guild members and PATCHing their server mute/deafen flags, with the
// audit-log reason header. It satisfies voice.Provider.
//
// Gateway maintains the bot's websocket session so the bot shows up
// online with a streaming activity. Presence is cosmetic: gateway
// failures are logged and the connection is dropped, they never affect
// request handling.
package discord
