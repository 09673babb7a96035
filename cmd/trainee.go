package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func traineeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trainee",
		Short: "List and register trainees under the trainee root",
	}
	cmd.AddCommand(traineeListCmd(opts), traineeAddCmd(opts), traineeSessionsCmd(opts))
	return cmd
}

func traineeListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List trainee folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			names, err := reg.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No trainees yet.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func traineeAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <id>",
		Short: "Create the folder for a new trainee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			folder, err := reg.Add(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", folder)
			return nil
		},
	}
}

func traineeSessionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions <trainee>",
		Short: "List the training folders of a trainee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			sessions, err := reg.Sessions(args[0])
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}
