package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	writeFile    string
	writeMessage string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Clone or reset the server working copy to the remote branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, "sync", nil)
	},
}

var readCmd = &cobra.Command{
	Use:   "read [filename]",
	Short: "Print a document from the working copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, "read", map[string]any{"filename": args[0]})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write [filename]",
	Short: "Write a document in the working copy, commit and push it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, writeFile)
		if err != nil {
			return err
		}
		params := map[string]any{"filename": args[0], "content": string(raw)}
		if writeMessage != "" {
			params["commitMessage"] = writeMessage
		}
		return runGit(cmd, "write", params)
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit [message]",
	Short: "Commit every pending change in the working copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, "commit", map[string]any{"message": args[0]})
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the working copy branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, "push", nil)
	},
}

var gitListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the documents of the working copy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, "list", nil)
	},
}

func runGit(cmd *cobra.Command, action string, params map[string]any) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	result := newClient().Git(ctx, action, params)
	if err := check(result); err != nil {
		if result.Commit != nil {
			return fmt.Errorf("%w (local commit %s)", err, result.Commit.SHA)
		}
		return err
	}
	switch {
	case result.Files != nil:
		for _, name := range result.Files {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	case result.Data != nil:
		return printJSON(cmd, result.Data)
	case result.Commit != nil:
		fmt.Fprintln(cmd.OutOrStdout(), result.Commit.SHA)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
	}
	return nil
}

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Drive the server working copy",
}

func init() {
	gitCmd.AddCommand(syncCmd, gitListCmd, readCmd, writeCmd, commitCmd, pushCmd)
	rootCmd.AddCommand(gitCmd)

	writeCmd.Flags().StringVarP(&writeFile, "file", "f", "", "file to upload, stdin when empty")
	writeCmd.Flags().StringVarP(&writeMessage, "message", "m", "", "commit message")
}
