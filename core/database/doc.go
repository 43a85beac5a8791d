// Package database handles database connections, schema inspection and
// tenant session scoping.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to configure
// MySQL (production) or SQLite (local review, tests) connections based on the
// application's configuration.
//
// # Schema Inspection
//
// GetTableColumns lists a table's columns (SHOW COLUMNS / PRAGMA table_info)
// with their original case. The comparison schema discoverer derives the
// reviewed field set from these names.
//
// # Tenant Scope
//
// Scope holds the statement that restricts a connection to one tenant.
// WithScope pins a single pooled connection so the session context applies
// to every query issued inside the callback.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(ctx, db, "TransactionalizeResultsMemberMaster")
package database
