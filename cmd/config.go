package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/traineemgr/server/settings"
)

func configCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change persisted settings",
	}
	cmd.AddCommand(configGetCmd(opts), configSetCmd(opts), configPathCmd(opts))
	return cmd
}

func configGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := (settings.Settings{args[0]: ""}).Validate(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), store.Get(args[0]))
				return nil
			}
			for _, key := range settings.Keys() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, store.Get(key))
			}
			return nil
		},
	}
}

func configSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting; an empty value clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			key, value := args[0], args[1]
			if key == settings.KeyTraineeFolder && value != "" {
				abs, err := filepath.Abs(value)
				if err != nil {
					return err
				}
				if info, err := os.Stat(abs); err != nil || !info.IsDir() {
					return fmt.Errorf("%s is not a directory", abs)
				}
				value = abs
			}
			if err := store.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, value)
			return nil
		},
	}
}

func configPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings and config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Path())
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(opts.dataDir, "config.yaml"))
			return nil
		},
	}
}
