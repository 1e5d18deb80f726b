package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/imamik/rabbitkind/internal/provisioning"
)

// ErrNoReport is returned when no persisted report exists.
var ErrNoReport = errors.New("no report found")

// FileStore writes the report to a local file. A .yaml or .yml extension
// selects YAML, anything else JSON. The file is created with mode 0600
// because it holds credentials.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Export implements Exporter. The file is replaced atomically.
func (s *FileStore) Export(_ context.Context, report *provisioning.RunReport) error {
	if s.Path == "" {
		return errors.New("report path is empty")
	}
	data, err := Encode(report, s.Path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// Load reads the report back.
func (s *FileStore) Load() (*provisioning.RunReport, error) {
	return LoadReport(s.Path)
}

// LoadReport reads a report written by FileStore. A missing file yields
// ErrNoReport.
func LoadReport(path string) (*provisioning.RunReport, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config or flags
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoReport)
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return Decode(data)
}

// Encode serialises a report. The format follows the extension of name.
func Encode(report *provisioning.RunReport, name string) ([]byte, error) {
	if report == nil {
		return nil, errors.New("no report to encode")
	}
	if isYAML(name) {
		data, err := yaml.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a JSON or YAML report.
func Decode(data []byte) (*provisioning.RunReport, error) {
	var report provisioning.RunReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if report.RunID == "" {
		return nil, errors.New("failed to parse report: missing runId")
	}
	return &report, nil
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
