package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"
)

// FileName is the manifest file looked up at the root of a template.
const FileName = "template.yaml"

// Template is the parsed template manifest.
type Template struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Version     string            `yaml:"version,omitempty"`
	FrontendDir string            `yaml:"frontend_dir,omitempty"`
	Requires    map[string]string `yaml:"requires,omitempty"`

	// Issues holds schema violations found while loading. They are warnings;
	// the manifest is still usable.
	Issues []ValidationIssue `yaml:"-"`
}

// Requirement is one tool version constraint from a manifest.
type Requirement struct {
	Tool       string
	Constraint *semver.Constraints
	Raw        string
}

// Load reads templateRoot/template.yaml. A missing file is not an error and
// yields a nil Template.
func Load(templateRoot string) (*Template, error) {
	path := filepath.Join(templateRoot, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes manifest bytes and validates them against the schema. source
// is only used in error messages.
func Parse(data []byte, source string) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", source, err)
	}

	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", source, err)
	}
	t.Issues = result.Issues
	return &t, nil
}

// Requirements returns the parsed tool constraints sorted by tool name.
// Constraints that do not parse are reported together in the error; the
// valid ones are still returned.
func (t *Template) Requirements() ([]Requirement, error) {
	if t == nil {
		return nil, nil
	}
	tools := make([]string, 0, len(t.Requires))
	for tool := range t.Requires {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	var reqs []Requirement
	var errs []error
	for _, tool := range tools {
		raw := t.Requires[tool]
		c, err := semver.NewConstraint(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("requires.%s: %q: %w", tool, raw, err))
			continue
		}
		reqs = append(reqs, Requirement{Tool: tool, Constraint: c, Raw: raw})
	}
	return reqs, errors.Join(errs...)
}
