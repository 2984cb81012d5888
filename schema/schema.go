// Package schema builds and tracks JSON schemas for structured analysis
// requests. Schema labels travel to the server, which restricts them to
// a conservative identifier alphabet, so labels are sanitized here
// before registration.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

const maxLabelLen = 64

var invalidLabelChars = regexp.MustCompile(`[^0-9A-Za-z_-]`)

// Entry is a registered schema ready to be sent with an analysis
// request.
type Entry struct {
	// QualifiedName is the Go type the schema was derived from, for
	// diagnostics.
	QualifiedName string
	// Label is the sanitized name the server knows the schema by.
	Label string
	// Schema is the JSON schema document.
	Schema json.RawMessage
}

// SanitizeLabel maps an arbitrary name onto the server's label
// alphabet: at most 64 characters drawn from [0-9A-Za-z_-], with
// disallowed characters replaced by underscores and trailing
// underscores stripped. An empty result falls back to "schema".
func SanitizeLabel(name string) string {
	label := invalidLabelChars.ReplaceAllString(name, "_")
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	label = strings.TrimRight(label, "_")
	if label == "" {
		return "schema"
	}
	return label
}

// Reflect derives a schema Entry from a Go type. The label defaults to
// the sanitized type name when empty.
func Reflect[T any](label string) (*Entry, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	s := reflector.Reflect(&zero)

	qualified := fmt.Sprintf("%T", zero)
	if label == "" {
		label = qualified
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", qualified, err)
	}
	return &Entry{
		QualifiedName: qualified,
		Label:         SanitizeLabel(label),
		Schema:        raw,
	}, nil
}

// Registry is a label-keyed schema store safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register stores the entry under its label. Re-registering a label
// replaces the previous entry.
func (r *Registry) Register(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Label] = e
}

// Lookup returns the entry registered under label.
func (r *Registry) Lookup(label string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[label]
	return e, ok
}

// Labels returns the registered labels in unspecified order.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.entries))
	for l := range r.entries {
		labels = append(labels, l)
	}
	return labels
}
