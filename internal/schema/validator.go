// Package schema validates artifacts against the embedded per-phase JSON
// Schema documents and the canonical meta rules.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fyrsmithlabs/specula/internal/artifact"
	"github.com/fyrsmithlabs/specula/internal/phase"
)

//go:embed schemas/*.schema.json
var documents embed.FS

const baseURL = "https://schemas.specula.dev/artifact/"

// Validator holds the compiled schema set. It is safe for concurrent use.
type Validator struct {
	schemas map[artifact.Kind]*jsonschema.Schema
}

// ValidationError carries every issue found in an artifact.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Issues, "\n")
}

// New compiles every embedded schema document.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	entries, err := fs.ReadDir(documents, "schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list schema documents: %w", err)
	}
	for _, e := range entries {
		data, err := documents.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(baseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{schemas: make(map[artifact.Kind]*jsonschema.Schema)}
	for _, k := range artifact.Kinds() {
		s, err := c.Compile(baseURL + k.SchemaName())
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", k.SchemaName(), err)
		}
		v.schemas[k] = s
	}
	return v, nil
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a process-wide validator compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = New()
	})
	return defaultValidator, defaultErr
}

// ValidateArtifact checks a typed artifact. See Validate.
func (v *Validator) ValidateArtifact(a artifact.Artifact, currentPhase phase.Phase) []string {
	raw, err := json.Marshal(a)
	if err != nil {
		return []string{fmt.Sprintf("$: artifact is not serialisable: %v", err)}
	}
	return v.Validate(raw, string(currentPhase))
}

// Validate checks a raw artifact document and returns every issue, sorted
// by path. An empty currentPhase skips the phase consistency check.
func (v *Validator) Validate(raw []byte, currentPhase string) []string {
	doc, err := decode(raw)
	if err != nil {
		return []string{fmt.Sprintf("$: artifact is not valid JSON: %v", err)}
	}

	obj, _ := doc.(map[string]interface{})
	meta, _ := obj["meta"].(map[string]interface{})
	p := phase.Phase(stringField(meta, "phase"))
	m := phase.Mode(stringField(meta, "mode"))

	var issues []string
	if !p.Valid() {
		return append(issues, fmt.Sprintf("meta.phase must be one of %s; found `%s`", phase.Tokens(), p))
	}
	if currentPhase != "" && string(p) != currentPhase {
		issues = append(issues, fmt.Sprintf("meta.phase `%s` does not match current phase `%s`", p, currentPhase))
	}
	if !m.Valid() {
		return append(issues, fmt.Sprintf("meta.mode `%s` is not in canonical mode enum", m))
	}

	k, err := artifact.KindFor(p, m)
	if err != nil {
		return append(issues, err.Error())
	}
	s, ok := v.schemas[k]
	if !ok {
		return append(issues, fmt.Sprintf("no schema registered for %s", k))
	}

	if err := s.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return append(issues, fmt.Sprintf("$: %v", err))
		}
		issues = append(issues, flatten(verr)...)
	}
	return issues
}

// Check is Validate turned into an error.
func (v *Validator) Check(a artifact.Artifact, currentPhase phase.Phase) error {
	if issues := v.ValidateArtifact(a, currentPhase); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

type issue struct {
	path    string
	message string
}

// flatten collects the leaf causes of a schema failure as "path: message".
func flatten(root *jsonschema.ValidationError) []string {
	var leaves []issue
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			leaves = append(leaves, issue{path: dotted(e.InstanceLocation), message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(root)

	sort.Slice(leaves, func(i, j int) bool {
		if leaves[i].path != leaves[j].path {
			return leaves[i].path < leaves[j].path
		}
		return leaves[i].message < leaves[j].message
	})

	out := make([]string, 0, len(leaves))
	seen := make(map[string]struct{}, len(leaves))
	for _, l := range leaves {
		line := l.path + ": " + l.message
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

// dotted converts a JSON pointer into a dotted path; the root is "$".
func dotted(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return "$"
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

func decode(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
