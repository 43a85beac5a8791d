// Package comparison exposes comparison review over HTTP.
//
// A review session holds one loaded record set and its in-memory
// resolutions until it is saved or closed. Sessions live in process memory
// only; a restart discards unsaved resolutions.
//
// # Routes
//
//	GET    /comparison/fields
//	GET    /comparison/sessions
//	POST   /comparison/sessions?run=<id>
//	GET    /comparison/sessions/:id
//	DELETE /comparison/sessions/:id
//	POST   /comparison/sessions/:id/save
//	GET    /comparison/sessions/:id/records?differing=true
//	GET    /comparison/sessions/:id/records/:recordId
//	POST   /comparison/sessions/:id/records/:recordId/fields/:field/{accept|reject}
//	POST   /comparison/sessions/:id/records/:recordId/{accept|reject}
//	GET    /comparison/reports?run=<id>
//	GET    /comparison/reports/:reportId?run=<id>
package comparison
