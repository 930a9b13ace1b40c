package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vitrine/api/internal/contentclient"
)

var (
	updateFile    string
	updateMessage string
	updateSHA     string
	historyPath   string
	historyLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List the JSON documents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client := newClient()
		var result contentclient.Result
		if len(args) == 1 {
			result = client.ListDir(ctx, args[0])
		} else {
			result = client.ListFiles(ctx)
		}
		if err := check(result); err != nil {
			return err
		}
		for _, name := range result.Files {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Print a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		result := newClient().GetFile(ctx, args[0])
		if err := check(result); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), result.Content)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [path]",
	Short: "Replace a document with JSON read from --file or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, updateFile)
		if err != nil {
			return err
		}
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("input is not valid JSON: %w", err)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		result := newClient().UpdateFileAt(ctx, args[0], data, updateMessage, updateSHA)
		if err := check(result); err != nil {
			return err
		}
		if result.Commit != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", result.Commit.SHA, result.Commit.Message)
		}
		return nil
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show the server repository settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		result := newClient().Debug(ctx)
		if err := check(result); err != nil {
			return err
		}
		return printJSON(cmd, result.Debug)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded writes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		result := newClient().History(ctx, historyPath, historyLimit)
		if err := check(result); err != nil {
			return err
		}
		var entries []map[string]any
		if err := json.Unmarshal(result.Entries, &entries); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
		for _, entry := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%v\t%v\t%v\t%v\t%v\n",
				entry["createdAt"], entry["outcome"], entry["action"], entry["path"], entry["commitSha"])
		}
		return nil
	},
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func init() {
	rootCmd.AddCommand(listCmd, getCmd, updateCmd, debugCmd, historyCmd)

	updateCmd.Flags().StringVarP(&updateFile, "file", "f", "", "JSON file to upload, stdin when empty")
	updateCmd.Flags().StringVarP(&updateMessage, "message", "m", "", "commit message")
	updateCmd.Flags().StringVar(&updateSHA, "sha", "", "refuse the write unless the document is still at this version")

	historyCmd.Flags().StringVar(&historyPath, "path", "", "only show writes to this document")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries")
}
