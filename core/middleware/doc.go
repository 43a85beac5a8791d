// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation (X-API-Key) protecting the review API.
//   - rayid: assigns a RayID to every request, storing it in the context
//     locals and echoing it in the X-Ray-ID response header for tracing.
//
// Both are registered globally in the start command.
package middleware
