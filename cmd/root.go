// Package cmd implements the traineemgr command line.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/traineemgr/server/settings"
	"github.com/traineemgr/server/trainee"
)

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	root := newRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dataDir     string
	traineeRoot string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "traineemgr",
		Short: "Coordinate live training sessions and their debriefs",
		Long: `traineemgr watches the screenshot folder during a training, files each
capture under <trainee>/<training>/screenshots, keeps per-image comments in
comments.json and publishes the images to the debrief viewer.

Run "traineemgr serve" to start the daemon; front-ends connect to its
WebSocket, REST and MCP endpoints.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", defaultDataDir(), "Directory holding settings.json, config.yaml and the log")
	root.PersistentFlags().StringVar(&opts.traineeRoot, "trainee-root", "", "Trainee root folder (persisted to settings when given)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		serveCmd(opts, version),
		traineeCmd(opts),
		configCmd(opts),
		sessionCmd(),
	)
	return root
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".traineemgr"
	}
	return filepath.Join(home, ".traineemgr")
}

func (o *rootOptions) store() (*settings.Store, error) {
	if err := os.MkdirAll(o.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return settings.NewStore(o.dataDir)
}

// resolveTraineeRoot returns the trainee root from --trainee-root, storing
// it for later runs, or else from the persisted settings.
func (o *rootOptions) resolveTraineeRoot(store *settings.Store) (string, error) {
	if o.traineeRoot != "" {
		abs, err := filepath.Abs(o.traineeRoot)
		if err != nil {
			return "", err
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return "", fmt.Errorf("%w: %s", settings.ErrConfigMissing, abs)
		}
		if err := store.Set(settings.KeyTraineeFolder, abs); err != nil {
			return "", fmt.Errorf("save trainee root: %w", err)
		}
		return abs, nil
	}

	root, err := store.Snapshot().TraineeFolder()
	if err != nil {
		return "", fmt.Errorf("%w (pass --trainee-root or run: traineemgr config set %s <dir>)", err, settings.KeyTraineeFolder)
	}
	return root, nil
}

func (o *rootOptions) registry() (*trainee.Registry, error) {
	store, err := o.store()
	if err != nil {
		return nil, err
	}
	root, err := o.resolveTraineeRoot(store)
	if err != nil {
		return nil, err
	}
	return trainee.NewRegistry(root), nil
}
