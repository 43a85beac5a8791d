package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"comparison-review/core/logger"
	"comparison-review/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Publisher uploads review reports to object storage.
type Publisher struct {
	client storage.Client
	bucket string
	cfg    Config
	logger *zap.Logger
}

// NewPublisher creates a publisher writing to bucket. A nil client disables publishing.
func NewPublisher(client storage.Client, bucket string, cfg Config, log *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		cfg:    cfg,
		logger: logger.OrNop(log),
	}
}

// Enabled reports whether reports are published.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil && p.cfg.Publish
}

// RunPrefix returns the key prefix of every report of runID. A nil runID
// covers saves made over all runs.
func (p *Publisher) RunPrefix(runID *int64) string {
	run := "run-all"
	if runID != nil {
		run = "run-" + strconv.FormatInt(*runID, 10)
	}
	return path.Join(p.cfg.Prefix, run) + "/"
}

// ObjectName returns the key r is stored under.
func (p *Publisher) ObjectName(r *Report) string {
	return p.RunPrefix(r.RunID) + r.ID + ".json"
}

// Publish uploads r and returns its object key.
func (p *Publisher) Publish(ctx context.Context, r *Report) (string, error) {
	if !p.Enabled() {
		return "", nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := p.ObjectName(r)
	_, err = p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report %s: %w", key, err)
	}

	p.logger.Info("Published review report",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		zap.Int("resolutions", len(r.Resolutions)),
	)
	return key, nil
}

// List returns the keys of the stored reports of runID.
func (p *Publisher) List(ctx context.Context, runID *int64) ([]string, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("report storage not configured")
	}

	keys := make([]string, 0)
	for obj := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    p.RunPrefix(runID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, ".json") {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}

// Fetch downloads and decodes the report stored under key.
func (p *Publisher) Fetch(ctx context.Context, key string) (*Report, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("report storage not configured")
	}

	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", key, err)
	}
	defer obj.Close()

	var r Report
	if err := json.NewDecoder(obj).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", key, err)
	}
	return &r, nil
}
