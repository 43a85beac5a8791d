package reconcile

import (
	"time"

	"comparison-review/core/database"
)

// Config holds the comparison table settings.
type Config struct {
	// Table is the wide comparison table written by the upstream pipeline.
	Table string `mapstructure:"table" default:"TransactionalizeResultsMemberMaster"`
	// TenantStatement restricts each connection to a tenant before querying,
	// e.g. "SET @tenant_id = ?". Empty disables tenant scoping.
	TenantStatement string `mapstructure:"tenant_statement" default:""`
	// TenantID is bound as the only parameter of TenantStatement.
	TenantID string `mapstructure:"tenant_id" default:"1"`
	// SchemaCacheSeconds is how long a discovered field list is reused. Zero disables caching.
	SchemaCacheSeconds int `mapstructure:"schema_cache_seconds" default:"300"`
}

// Scope returns the tenant scope applied before every query.
func (c Config) Scope() database.Scope {
	return database.Scope{Statement: c.TenantStatement, TenantID: c.TenantID}
}

// SchemaTTL returns the schema cache time-to-live.
func (c Config) SchemaTTL() time.Duration {
	return time.Duration(c.SchemaCacheSeconds) * time.Second
}

// Fixed columns of the comparison table.
const (
	ColRecordComparisonID   = "RecordComparisonId"
	ColPipelineExecutionID  = "PipelineExecutionId"
	ColSubscriberIdentifier = "SubscriberIdentifier"
	ColTotalDifferences     = "TotalDifferences"
	ColChangedFieldsCount   = "ChangedFieldsCount"
	ColHasChanges           = "HasChanges"
	ColUserAcceptance       = "UserAcceptance"
)

// Per-field column suffixes. A field F is stored as F_Source, F_Dest, F_Selected, F_SelectedSource.
const (
	SuffixSource         = "_Source"
	SuffixDest           = "_Dest"
	SuffixSelected       = "_Selected"
	SuffixSelectedSource = "_SelectedSource"
)
