// Package server holds the HTTP server configuration.
//
// While the start command handles the server startup, this package defines the
// configuration structure for server settings: the HTTP port, the API key that
// protects the review API, and the cap on concurrently held review sessions.
package server
