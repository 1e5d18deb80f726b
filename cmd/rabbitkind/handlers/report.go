package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/imamik/rabbitkind/internal/platform/s3"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/store"
)

// Report output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ReportOptions are the report command's flags.
type ReportOptions struct {
	ConfigPath  string
	Path        string
	Format      string
	ShowSecrets bool
	// FromS3 reads the latest report from the configured bucket.
	FromS3 bool
}

// Report prints the last run report for the configured cluster.
func Report(ctx context.Context, opts ReportOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	var report *provisioning.RunReport
	switch {
	case opts.FromS3:
		if !cfg.Output.S3.Enabled() {
			return fmt.Errorf("output.s3.bucket is not configured")
		}
		s3cfg := cfg.Output.S3
		client, err := newObjectClient(ctx, s3.Options{
			Endpoint:  s3cfg.Endpoint,
			Region:    s3cfg.Region,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		report, err = store.NewS3Store(client, s3cfg.Bucket, s3cfg.Prefix).Latest(ctx, cfg.ClusterName)
		if err != nil {
			return err
		}
	default:
		path := opts.Path
		if path == "" {
			path = cfg.Output.ReportPath
		}
		report, err = store.LoadReport(path)
		if err != nil {
			return err
		}
	}

	return printReport(report, opts.Format, opts.ShowSecrets)
}

func printReport(report *provisioning.RunReport, format string, showSecrets bool) error {
	switch format {
	case "", FormatText:
		_, err := fmt.Fprintln(stdout, store.Render(report, showSecrets))
		return err
	case FormatJSON, FormatYAML:
		out := report
		if !showSecrets {
			out = redacted(report)
		}
		var data []byte
		var err error
		if format == FormatJSON {
			data, err = json.MarshalIndent(out, "", "  ")
			data = append(data, '\n')
		} else {
			data, err = yaml.Marshal(out)
		}
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

// redacted returns a copy of report with secret values masked.
func redacted(report *provisioning.RunReport) *provisioning.RunReport {
	out := *report
	out.Records = make([]provisioning.Record, len(report.Records))
	for i, rec := range report.Records {
		if len(rec.Values) > 0 {
			values := make(map[string]string, len(rec.Values))
			for k, v := range rec.Values {
				if store.IsSecretKey(k) {
					v = "<redacted>"
				}
				values[k] = v
			}
			rec.Values = values
		}
		out.Records[i] = rec
	}
	return &out
}
