// Package utils provides common utility functions for the comparison review service.
// It includes null-safe conversions for values scanned from database/sql rows,
// where drivers hand back int64, []byte, string or nil depending on the column type.
package utils
