package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/rabbitkind/internal/provisioning"
)

// Exporter receives the report of a finished run.
type Exporter interface {
	Export(ctx context.Context, report *provisioning.RunReport) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, report *provisioning.RunReport) error

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, report *provisioning.RunReport) error {
	return f(ctx, report)
}

// Multi fans a report out to several exporters. Every exporter runs; their
// errors are joined.
type Multi []Exporter

// Export implements Exporter.
func (m Multi) Export(ctx context.Context, report *provisioning.RunReport) error {
	if report == nil {
		return errors.New("no report to export")
	}
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Export(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to export report %s: %w", report.RunID, errors.Join(errs...))
	}
	return nil
}
