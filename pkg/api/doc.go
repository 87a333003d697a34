// Package api provides the gateway's HTTP surface.
//
// This package encapsulates all HTTP-related concerns:
// - The REST command family (/id, /mute, /deafen)
// - The legacy header-encoded command endpoint (GET /)
// - Authorization middleware (runs first on every route)
// - Request-ID and request-logging middleware
// - Response shapes for both protocol families
//
// The two protocol families share the resolver and dispatcher primitives
// but keep their own validation and response shapes; neither leaks into
// the other. The legacy endpoint is registered only when the settings
// enable it — when disabled the route does not exist at all, so an
// authorized request to "/" gets a routing 404 rather than a handled
// rejection.
package api
