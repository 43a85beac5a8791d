// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client with the small interface the review service
// needs to publish save reports: bucket checks, uploads, downloads and listing.
// This abstraction supports both AWS S3 and self-hosted MinIO instances.
//
// The Client interface makes storage interactions easy to mock in unit tests
// (see core/storage/mocks).
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
