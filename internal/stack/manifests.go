package stack

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strconv"
	"strings"
	"text/template"
)

//go:embed manifests/*
var manifestsFS embed.FS

var templateFuncs = template.FuncMap{
	"indent": indent,
	"quote":  strconv.Quote,
}

// renderManifests executes every YAML template of one component directory,
// in file name order, and joins them into a multi-document stream.
func renderManifests(component string, data any) ([]byte, error) {
	dir := path.Join("manifests", component)
	entries, err := manifestsFS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifests for %s: %w", component, err)
	}

	var combined bytes.Buffer
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}

		file := path.Join(dir, entry.Name())
		content, err := manifestsFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest file %s: %w", file, err)
		}

		tmpl, err := template.New(entry.Name()).Funcs(templateFuncs).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}

		if combined.Len() > 0 {
			combined.WriteString("\n---\n")
		}
		if err := tmpl.Execute(&combined, data); err != nil {
			return nil, fmt.Errorf("failed to execute template %s: %w", file, err)
		}
	}

	if combined.Len() == 0 {
		return nil, fmt.Errorf("no YAML manifests found for %s", component)
	}
	return combined.Bytes(), nil
}

func isManifestFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// indent prefixes every non-empty line with n spaces.
func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
