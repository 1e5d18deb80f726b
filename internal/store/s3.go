package store

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/imamik/rabbitkind/internal/platform/s3"
	"github.com/imamik/rabbitkind/internal/provisioning"
)

const latestObject = "latest.json"

// ObjectClient is the subset of the S3 client the store needs.
type ObjectClient interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// S3Store uploads each report as <prefix>/<cluster>/<runID>.json and
// overwrites <prefix>/<cluster>/latest.json.
type S3Store struct {
	client ObjectClient
	bucket string
	prefix string
}

// NewS3Store creates an S3Store.
func NewS3Store(client ObjectClient, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Export implements Exporter.
func (s *S3Store) Export(ctx context.Context, report *provisioning.RunReport) error {
	if report == nil {
		return errors.New("no report to export")
	}
	data, err := Encode(report, latestObject)
	if err != nil {
		return err
	}
	if err := s.client.EnsureBucket(ctx, s.bucket); err != nil {
		return err
	}

	runKey := s.key(report.Cluster, report.RunID+".json")
	if err := s.client.PutObject(ctx, s.bucket, runKey, data, "application/json"); err != nil {
		return err
	}
	if err := s.client.PutObject(ctx, s.bucket, s.key(report.Cluster, latestObject), data, "application/json"); err != nil {
		return err
	}
	return nil
}

// Latest downloads the most recent report for a cluster.
func (s *S3Store) Latest(ctx context.Context, cluster string) (*provisioning.RunReport, error) {
	data, err := s.client.GetObject(ctx, s.bucket, s.key(cluster, latestObject))
	if err != nil {
		if s3.IsNotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key(cluster, latestObject), ErrNoReport)
		}
		return nil, err
	}
	return Decode(data)
}

// Runs lists the run IDs stored for a cluster.
func (s *S3Store) Runs(ctx context.Context, cluster string) ([]string, error) {
	keys, err := s.client.ListObjects(ctx, s.bucket, s.key(cluster, ""))
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, k := range keys {
		base := path.Base(k)
		if base == latestObject || path.Ext(base) != ".json" {
			continue
		}
		runs = append(runs, base[:len(base)-len(".json")])
	}
	return runs, nil
}

func (s *S3Store) key(cluster, name string) string {
	if cluster == "" {
		cluster = "default"
	}
	k := path.Join(s.prefix, cluster, name)
	if name == "" {
		k += "/"
	}
	return k
}
