// Package manifest provides a typed, round-trip-preserving reader and
// writer for package.json, following the same raw-struct-over-encoding/json
// technique dep's manifest.go and lock.go use for manifest.json/lock.json:
// struct field order and `omitempty` tags double as the serialisation
// contract, and anything the type doesn't know about is preserved in an
// "extra" side map rather than dropped.
package manifest

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// ErrBadManifest is returned when package.json cannot be decoded.
var ErrBadManifest = errors.New("manifest: invalid package.json")

// DependencyField names one of the four dependency maps a manifest carries.
type DependencyField string

const (
	Dependencies         DependencyField = "dependencies"
	DevDependencies      DependencyField = "devDependencies"
	PeerDependencies     DependencyField = "peerDependencies"
	OptionalDependencies DependencyField = "optionalDependencies"
)

// Manifest is the typed view of the package.json fields the core reads and
// writes. Unknown top-level fields are preserved verbatim in Extra so that
// save(load(m)) round-trips a manifest this package did not itself mutate.
type Manifest struct {
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Main        string `json:"main,omitempty"`

	// Bin is either a single string (package name is the command) or a
	// name->path mapping; callers use BinMap to normalise.
	Bin json.RawMessage `json:"bin,omitempty"`

	Scripts map[string]string `json:"scripts,omitempty"`

	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`

	Workspaces          []string          `json:"workspaces,omitempty"`
	Files               []string          `json:"files,omitempty"`
	Private             bool              `json:"private,omitempty"`
	PatchedDependencies map[string]string `json:"patchedDependencies,omitempty"`

	// Extra holds every top-level field this struct doesn't name, keyed by
	// field name, preserved verbatim for round-trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields lists the JSON keys this struct owns; everything else goes to Extra.
var knownFields = map[string]bool{
	"name": true, "version": true, "description": true, "main": true,
	"bin": true, "scripts": true, "dependencies": true, "devDependencies": true,
	"peerDependencies": true, "optionalDependencies": true, "workspaces": true,
	"files": true, "private": true, "patchedDependencies": true,
}

// Read parses package.json from r.
func Read(r io.Reader) (*Manifest, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(ErrBadManifest, err.Error())
	}

	m := &Manifest{Extra: make(map[string]json.RawMessage)}

	for k, v := range raw {
		if !knownFields[k] {
			m.Extra[k] = v
			continue
		}
		var err error
		switch k {
		case "name":
			err = json.Unmarshal(v, &m.Name)
		case "version":
			err = json.Unmarshal(v, &m.Version)
		case "description":
			err = json.Unmarshal(v, &m.Description)
		case "main":
			err = json.Unmarshal(v, &m.Main)
		case "bin":
			m.Bin = v
		case "scripts":
			err = json.Unmarshal(v, &m.Scripts)
		case "dependencies":
			err = json.Unmarshal(v, &m.Dependencies)
		case "devDependencies":
			err = json.Unmarshal(v, &m.DevDependencies)
		case "peerDependencies":
			err = json.Unmarshal(v, &m.PeerDependencies)
		case "optionalDependencies":
			err = json.Unmarshal(v, &m.OptionalDependencies)
		case "workspaces":
			err = json.Unmarshal(v, &m.Workspaces)
		case "files":
			err = json.Unmarshal(v, &m.Files)
		case "private":
			err = json.Unmarshal(v, &m.Private)
		case "patchedDependencies":
			err = json.Unmarshal(v, &m.PatchedDependencies)
		}
		if err != nil {
			return nil, errors.Wrapf(ErrBadManifest, "field %q: %s", k, err)
		}
	}

	return m, nil
}

// Write serialises m as two-space-indented JSON with a stable field order:
// the known fields in their struct declaration order, followed by
// extension fields in lexicographic key order. A file already laid out in
// this order with two-space indentation is written back byte-identical by
// save(load(m)); the key order of a file laid out otherwise is not kept.
// Characters such as <, > and & are written as-is, not \u-escaped.
func Write(w io.Writer, m *Manifest) error {
	ordered := m.orderedMap()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keyOrder() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		buf.WriteString("  ")
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteString(": ")
		var vb bytes.Buffer
		enc := json.NewEncoder(&vb)
		enc.SetEscapeHTML(false)
		enc.SetIndent("  ", "  ")
		if err := enc.Encode(ordered[k]); err != nil {
			return err
		}
		buf.Write(bytes.TrimSuffix(vb.Bytes(), []byte("\n")))
	}
	if len(m.keyOrder()) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// keyOrder returns the field names to emit, in emission order: populated
// known fields in declaration order, then extra fields sorted lexically.
func (m *Manifest) keyOrder() []string {
	var keys []string
	add := func(name string, present bool) {
		if present {
			keys = append(keys, name)
		}
	}
	add("name", m.Name != "")
	add("version", m.Version != "")
	add("description", m.Description != "")
	add("main", m.Main != "")
	add("bin", len(m.Bin) > 0)
	add("scripts", len(m.Scripts) > 0)
	add("dependencies", len(m.Dependencies) > 0)
	add("devDependencies", len(m.DevDependencies) > 0)
	add("peerDependencies", len(m.PeerDependencies) > 0)
	add("optionalDependencies", len(m.OptionalDependencies) > 0)
	add("workspaces", len(m.Workspaces) > 0)
	add("files", len(m.Files) > 0)
	add("private", m.Private)
	add("patchedDependencies", len(m.PatchedDependencies) > 0)

	var extraKeys []string
	for k := range m.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	keys = append(keys, extraKeys...)
	return keys
}

func (m *Manifest) orderedMap() map[string]interface{} {
	out := make(map[string]interface{})
	out["name"] = m.Name
	out["version"] = m.Version
	out["description"] = m.Description
	out["main"] = m.Main
	if len(m.Bin) > 0 {
		out["bin"] = m.Bin
	}
	out["scripts"] = m.Scripts
	out["dependencies"] = m.Dependencies
	out["devDependencies"] = m.DevDependencies
	out["peerDependencies"] = m.PeerDependencies
	out["optionalDependencies"] = m.OptionalDependencies
	out["workspaces"] = m.Workspaces
	out["files"] = m.Files
	out["private"] = m.Private
	out["patchedDependencies"] = m.PatchedDependencies
	for k, v := range m.Extra {
		out[k] = v
	}
	return out
}

// DependencyMap returns the map backing the given dependency field, never nil.
func (m *Manifest) DependencyMap(field DependencyField) map[string]string {
	switch field {
	case Dependencies:
		if m.Dependencies == nil {
			m.Dependencies = make(map[string]string)
		}
		return m.Dependencies
	case DevDependencies:
		if m.DevDependencies == nil {
			m.DevDependencies = make(map[string]string)
		}
		return m.DevDependencies
	case PeerDependencies:
		if m.PeerDependencies == nil {
			m.PeerDependencies = make(map[string]string)
		}
		return m.PeerDependencies
	case OptionalDependencies:
		if m.OptionalDependencies == nil {
			m.OptionalDependencies = make(map[string]string)
		}
		return m.OptionalDependencies
	default:
		return nil
	}
}

// AddDependency records name->rangeSpec under the given field, removing it
// from the other three dependency fields (a package belongs to exactly one).
func (m *Manifest) AddDependency(field DependencyField, name, rangeSpec string) {
	for _, f := range []DependencyField{Dependencies, DevDependencies, PeerDependencies, OptionalDependencies} {
		if f != field {
			delete(m.DependencyMap(f), name)
		}
	}
	m.DependencyMap(field)[name] = rangeSpec
}

// RemoveDependency deletes name from every dependency field.
func (m *Manifest) RemoveDependency(name string) {
	delete(m.Dependencies, name)
	delete(m.DevDependencies, name)
	delete(m.PeerDependencies, name)
	delete(m.OptionalDependencies, name)
}

// BinMap normalises the Bin field (string or mapping) to a name->path map.
func (m *Manifest) BinMap() (map[string]string, error) {
	if len(m.Bin) == 0 {
		return nil, nil
	}
	var asMap map[string]string
	if err := json.Unmarshal(m.Bin, &asMap); err == nil {
		return asMap, nil
	}
	var asString string
	if err := json.Unmarshal(m.Bin, &asString); err == nil {
		if m.Name == "" {
			return nil, errors.Wrap(ErrBadManifest, "bin is a string but package has no name")
		}
		return map[string]string{m.Name: asString}, nil
	}
	return nil, errors.Wrap(ErrBadManifest, "bin field is neither a string nor an object")
}
