package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Scope restricts a connection to one tenant before any query is issued on it.
// The statement runs with TenantID as its only parameter, e.g. "SET @tenant_id = ?".
// An empty Statement disables scoping.
type Scope struct {
	Statement string
	TenantID  string
}

// Enabled reports whether the scope has a statement to run.
func (s Scope) Enabled() bool {
	return s.Statement != ""
}

// Apply runs the scope statement on tx. tx must be pinned to a single
// connection (a transaction or a gorm Connection callback) for the session
// state to be visible to the queries that follow.
func (s Scope) Apply(tx *gorm.DB) error {
	if !s.Enabled() {
		return nil
	}
	if err := tx.Exec(s.Statement, s.TenantID).Error; err != nil {
		return fmt.Errorf("failed to set tenant context: %w", err)
	}
	return nil
}

// WithScope pins one connection from the pool, applies the scope to it and
// runs fn on it. The connection is returned to the pool on every exit path.
func WithScope(ctx context.Context, db *gorm.DB, scope Scope, fn func(conn *gorm.DB) error) error {
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := scope.Apply(conn); err != nil {
			return err
		}
		return fn(conn)
	})
}
