// Package report builds and stores review reports.
//
// A report lists the field resolutions written by one committed save. When
// publishing is enabled it is uploaded as JSON to the storage bucket under
// <prefix>/run-<id>/<report id>.json. Publishing happens after the commit, so
// an upload failure never affects the saved resolutions.
package report
