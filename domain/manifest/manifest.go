// Package manifest provides remote manifest parsing, normalization and
// lookup. A manifest maps remote names to entry locations, optionally
// carrying consumer-defined metadata. Malformed or duplicate entries fail
// fast at parse time; lookups distinguish "not found" from "malformed".
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ModuleKind selects how a remote's entry artifact is loaded.
type ModuleKind string

const (
	// KindModule entries are fetched as isolated descriptor documents.
	KindModule ModuleKind = "module"
	// KindScript entries register themselves in-process under a
	// well-known container name.
	KindScript ModuleKind = "script"
)

// Descriptor identifies one remote. Immutable after creation.
type Descriptor struct {
	Name          string
	EntryLocation string
	Kind          ModuleKind
	Metadata      map[string]string
}

// Manifest is a normalized, in-memory set of remote descriptors
// queryable by name.
type Manifest struct {
	remotes map[string]Descriptor
}

// Error reports an unreachable or malformed manifest, or a malformed
// entry within one. Fatal to the affected lookup only.
type Error struct {
	Source string // manifest location or remote name
	Reason string
	Err    error
}

// Error returns the message.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("manifest %s: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrRemoteNotFound signals a lookup for a name the manifest does not
// contain. Distinct from malformed-entry failures, which surface as
// *Error at parse time.
var ErrRemoteNotFound = errors.New("remote not found in manifest")

// rawEntry is the long form of a manifest value.
type rawEntry struct {
	EntryLocation string            `json:"entryLocation"`
	ModuleKind    string            `json:"moduleKind,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Parse decodes a manifest document: a JSON mapping from remote name to
// either a plain entry-location string or an object with entryLocation,
// optional moduleKind and metadata.
func Parse(source string, data []byte) (*Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Source: source, Reason: "not a well-formed mapping", Err: err}
	}

	descs := make([]Descriptor, 0, len(raw))
	for name, value := range raw {
		d, err := parseEntry(name, value)
		if err != nil {
			return nil, &Error{Source: source, Reason: fmt.Sprintf("entry %q malformed", name), Err: err}
		}
		descs = append(descs, d)
	}
	return New(source, descs)
}

func parseEntry(name string, value json.RawMessage) (Descriptor, error) {
	var location string
	if err := json.Unmarshal(value, &location); err == nil {
		return normalize(Descriptor{Name: name, EntryLocation: location})
	}

	var e rawEntry
	if err := json.Unmarshal(value, &e); err != nil {
		return Descriptor{}, fmt.Errorf("expected string or object: %w", err)
	}
	return normalize(Descriptor{
		Name:          name,
		EntryLocation: e.EntryLocation,
		Kind:          ModuleKind(e.ModuleKind),
		Metadata:      e.Metadata,
	})
}

// New builds a manifest from descriptors, validating each and rejecting
// duplicate names.
func New(source string, descs []Descriptor) (*Manifest, error) {
	remotes := make(map[string]Descriptor, len(descs))
	for _, d := range descs {
		d, err := normalize(d)
		if err != nil {
			return nil, &Error{Source: source, Reason: fmt.Sprintf("entry %q malformed", d.Name), Err: err}
		}
		if _, exists := remotes[d.Name]; exists {
			return nil, &Error{Source: source, Reason: fmt.Sprintf("duplicate remote name %q", d.Name)}
		}
		remotes[d.Name] = d
	}
	return &Manifest{remotes: remotes}, nil
}

func normalize(d Descriptor) (Descriptor, error) {
	if strings.TrimSpace(d.Name) == "" {
		return d, errors.New("empty remote name")
	}
	if strings.TrimSpace(d.EntryLocation) == "" {
		return d, errors.New("empty entry location")
	}
	switch d.Kind {
	case "":
		d.Kind = KindModule
	case KindModule, KindScript:
	default:
		return d, fmt.Errorf("unknown module kind %q", d.Kind)
	}
	return d, nil
}

// Lookup returns the descriptor for a remote name.
func (m *Manifest) Lookup(name string) (Descriptor, error) {
	d, ok := m.remotes[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%q: %w", name, ErrRemoteNotFound)
	}
	return d, nil
}

// Names returns all remote names, sorted for stable output.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.remotes))
	for name := range m.remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all descriptors keyed by name.
func (m *Manifest) All() map[string]Descriptor {
	out := make(map[string]Descriptor, len(m.remotes))
	for name, d := range m.remotes {
		out[name] = d
	}
	return out
}

// Len returns the number of remotes.
func (m *Manifest) Len() int { return len(m.remotes) }
