// Package config provides configuration management for the comparison review service.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of each section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, session limit)
//   - Database: MySQL or SQLite connection details
//   - Storage: S3/MinIO credentials and the report bucket
//   - Log: Logging level and format
//   - Comparison: comparison table name, tenant scope, schema cache
//   - Report: report publishing switch and key prefix
//
// Environment variables map to nested keys by replacing dots with
// underscores, e.g. COMPARISON_TABLE -> comparison.table.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Comparison.Table)
package config
