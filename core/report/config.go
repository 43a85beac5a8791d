package report

// Config holds the review report settings.
type Config struct {
	// Publish enables uploading a report after every successful save.
	Publish bool `mapstructure:"publish" default:"false"`
	// Prefix is the object key prefix reports are written under.
	Prefix string `mapstructure:"prefix" default:"reports"`
}
