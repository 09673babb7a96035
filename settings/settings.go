// Package settings persists the small set of user choices that survive restarts.
package settings

import (
	"errors"
	"fmt"
	"os"
)

// KeyTraineeFolder is the root directory holding one folder per trainee.
const KeyTraineeFolder = "trainee_folder"

var (
	ErrConfigMissing = errors.New("trainee folder is not configured")
	ErrUnknownKey    = errors.New("unknown settings key")
)

type Settings map[string]string

var knownKeys = map[string]bool{
	KeyTraineeFolder: true,
}

// Keys returns the setting keys accepted by the store.
func Keys() []string {
	return []string{KeyTraineeFolder}
}

func (s Settings) Validate() error {
	for k := range s {
		if !knownKeys[k] {
			return fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	return nil
}

// TraineeFolder returns the configured trainee root, or ErrConfigMissing
// when it is unset or no longer a directory.
func (s Settings) TraineeFolder() (string, error) {
	dir := s[KeyTraineeFolder]
	if dir == "" {
		return "", ErrConfigMissing
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrConfigMissing, dir)
	}
	return dir, nil
}
