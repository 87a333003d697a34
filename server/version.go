package server

// Version is reported by the legacy sync probe and advertised in the
// bot's presence.
const Version = "2.1.1"
