// Package metadata reads and writes the per-session comments.json sidecar.
//
// The sidecar maps canonical image names to comments and tracks which images
// were discussed during a debrief and which one is currently live. Every
// mutation is load-mutate-save without locking; callers must serialize
// writers for a folder (the daemon does this by running all mutations on its
// control loop).
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// FileName is the sidecar file name inside a session folder.
const FileName = "comments.json"

var ErrCorrupt = errors.New("corrupt metadata")

// CorruptError reports a sidecar that exists but cannot be parsed.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt metadata %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}

type Metadata struct {
	Comments  map[string]string `json:"comments"`
	Discussed []string          `json:"discussed"`
	Live      string            `json:"live"`
}

// New returns an empty sidecar structure.
func New() Metadata {
	return Metadata{
		Comments:  map[string]string{},
		Discussed: []string{},
		Live:      "",
	}
}

// IsDiscussed reports whether name is in the discussed set.
func (m Metadata) IsDiscussed(name string) bool {
	return slices.Contains(m.Discussed, name)
}

func (m *Metadata) addDiscussed(name string) {
	if !m.IsDiscussed(name) {
		m.Discussed = append(m.Discussed, name)
	}
}

// onDisk mirrors the file layout. Older sidecars store the discussed set
// under "besprochen"; both keys are read, only "discussed" is written.
type onDisk struct {
	Comments   map[string]string `json:"comments"`
	Discussed  []string          `json:"discussed,omitempty"`
	Besprochen []string          `json:"besprochen,omitempty"`
	Live       string            `json:"live"`
}

func Path(folder string) string {
	return filepath.Join(folder, FileName)
}

// Load reads the sidecar of folder. A missing file yields New().
func Load(folder string) (Metadata, error) {
	path := Path(folder)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}

	var raw onDisk
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, &CorruptError{Path: path, Err: err}
	}

	m := New()
	for k, v := range raw.Comments {
		m.Comments[k] = v
	}
	for _, name := range raw.Besprochen {
		m.addDiscussed(name)
	}
	for _, name := range raw.Discussed {
		m.addDiscussed(name)
	}
	m.Live = raw.Live
	return m, nil
}

// Save writes m to the sidecar of folder via temp file and rename, so
// readers never observe a partially written file.
func Save(folder string, m Metadata) error {
	if m.Comments == nil {
		m.Comments = map[string]string{}
	}
	if m.Discussed == nil {
		m.Discussed = []string{}
	}

	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	tmp, err := os.CreateTemp(folder, "comments-*.json.tmp")
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := os.Rename(tmpPath, Path(folder)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func update(folder string, fn func(*Metadata)) (Metadata, error) {
	m, err := Load(folder)
	if err != nil {
		return Metadata{}, err
	}
	fn(&m)
	if err := Save(folder, m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// SetComment stores text as the comment of name. An empty text keeps an
// empty entry, matching what the operator typed.
func SetComment(folder, name, text string) (Metadata, error) {
	return update(folder, func(m *Metadata) {
		m.Comments[name] = text
	})
}

// MarkDiscussed adds name to the discussed set.
func MarkDiscussed(folder, name string) (Metadata, error) {
	return update(folder, func(m *Metadata) {
		m.addDiscussed(name)
	})
}

// SetLive points the live pointer at name.
func SetLive(folder, name string) (Metadata, error) {
	return update(folder, func(m *Metadata) {
		m.Live = name
	})
}

// MarkLive sets the live pointer and records name as discussed in one write.
func MarkLive(folder, name string) (Metadata, error) {
	return update(folder, func(m *Metadata) {
		m.Live = name
		m.addDiscussed(name)
	})
}
