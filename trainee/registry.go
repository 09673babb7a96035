// Package trainee manages the trainee root: one subfolder per trainee,
// named "<name>-<id>", holding that trainee's session folders.
package trainee

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrExists       = errors.New("trainee already exists")
	ErrNotFound     = errors.New("trainee not found")
	ErrInvalidInput = errors.New("invalid trainee name")
)

type Registry struct {
	Root string
}

func NewRegistry(root string) *Registry {
	return &Registry{Root: root}
}

// ValidName reports whether s can be used as a single folder name.
func ValidName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}

// List returns the trainee folder names, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, fmt.Errorf("list trainees: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Add creates the folder for a trainee and returns its folder name.
func (r *Registry) Add(name, id string) (string, error) {
	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	if !ValidName(name) || !ValidName(id) {
		return "", fmt.Errorf("%w: name and id are required and must not contain path separators", ErrInvalidInput)
	}

	folder := name + "-" + id
	if err := os.Mkdir(filepath.Join(r.Root, folder), 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, folder)
		}
		return "", fmt.Errorf("create trainee folder: %w", err)
	}
	return folder, nil
}

// Path returns the folder of an existing trainee.
func (r *Registry) Path(trainee string) (string, error) {
	if !ValidName(trainee) {
		return "", fmt.Errorf("%w: %q", ErrInvalidInput, trainee)
	}
	path := filepath.Join(r.Root, trainee)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, trainee)
	}
	return path, nil
}

// Sessions lists the session folders of a trainee, sorted.
func (r *Registry) Sessions(trainee string) ([]string, error) {
	path, err := r.Path(trainee)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
