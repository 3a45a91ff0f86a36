package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaURL = "template.schema.json"

//go:embed schema/template.schema.json
var schemaJSON []byte

var (
	manifestSchema = sync.OnceValues(compileSchema)
	messages       = message.NewPrinter(language.English)
)

// ValidationResult reports whether a manifest matched the schema.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue // sorted by Path
}

// ValidationIssue is one schema violation.
type ValidationIssue struct {
	Path    string // JSON pointer into the manifest, "" for the document
	Message string
	Keyword string // failing schema keyword, e.g. "pattern"
}

func (i ValidationIssue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("decoding manifest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("registering manifest schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}
	return s, nil
}

// Validate checks manifest YAML against the embedded schema. Schema
// violations land in the result; the error is reserved for documents that
// cannot be decoded at all.
func Validate(data []byte) (*ValidationResult, error) {
	schema, err := manifestSchema()
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	value, err := nodeValue(&doc)
	if err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	// The validator wants JSON numbers, so go through encoding/json rather
	// than handing it YAML's ints and floats.
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest as JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding manifest JSON: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}
	return &ValidationResult{Issues: issuesOf(verr)}, nil
}

// issuesOf flattens a validation error tree into its distinct leaves.
func issuesOf(root *jsonschema.ValidationError) []ValidationIssue {
	seen := map[ValidationIssue]bool{}
	var out []ValidationIssue

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		for _, c := range e.Causes {
			walk(c)
		}
		if len(e.Causes) > 0 || e.ErrorKind == nil {
			return
		}
		kw := e.ErrorKind.KeywordPath()
		if len(kw) == 0 {
			return
		}
		issue := ValidationIssue{
			Message: e.ErrorKind.LocalizedString(messages),
			Keyword: kw[len(kw)-1],
		}
		if len(e.InstanceLocation) > 0 {
			issue.Path = "/" + strings.Join(e.InstanceLocation, "/")
		}
		if !seen[issue] {
			seen[issue] = true
			out = append(out, issue)
		}
	}
	walk(root)

	if len(out) == 0 {
		return []ValidationIssue{{Message: root.Error()}}
	}
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// nodeValue converts a decoded YAML node into plain JSON-shaped values.
// Mapping keys are stringified whatever their YAML type, so "1: x" becomes
// {"1": "x"}.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			val, err := nodeValue(v)
			if err != nil {
				return nil, err
			}
			if k.Tag == "!!merge" {
				if err := mergeInto(m, val); err != nil {
					return nil, err
				}
				continue
			}
			m[k.Value] = val
		}
		return m, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// mergeInto applies a "<<" merge value; keys already present win.
func mergeInto(dst map[string]any, val any) error {
	var sources []map[string]any
	switch v := val.(type) {
	case map[string]any:
		sources = append(sources, v)
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("merge key expects mappings, got %T", item)
			}
			sources = append(sources, m)
		}
	default:
		return fmt.Errorf("merge key expects a mapping, got %T", val)
	}
	for _, src := range sources {
		for k, v := range src {
			if _, ok := dst[k]; !ok {
				dst[k] = v
			}
		}
	}
	return nil
}
