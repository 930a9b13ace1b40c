package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vitrine/api/internal/contentclient"
)

var (
	apiURL     string
	adminToken string
	gitToken   string
	timeout    time.Duration
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vitrinectl",
	Short: "Edit the site content documents through the Vitrine API",
	Long: `vitrinectl talks to a running Vitrine API. Content commands go through
the GitHub contents dispatcher, git commands drive the server working copy.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", envOr("VITRINE_URL", "http://localhost:8787"), "Vitrine API base URL")
	rootCmd.PersistentFlags().StringVar(&adminToken, "admin-token", os.Getenv("VITRINE_ADMIN_TOKEN"), "shared admin token")
	rootCmd.PersistentFlags().StringVar(&gitToken, "git-token", os.Getenv("GITHUB_TOKEN"), "token for working copy operations")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newClient() *contentclient.Client {
	return contentclient.New(apiURL,
		contentclient.WithAdminToken(adminToken),
		contentclient.WithGitToken(gitToken),
	)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// check turns a failed result into a command error.
func check(result contentclient.Result) error {
	if result.Success {
		return nil
	}
	slog.Debug("request failed", "kind", result.Kind, "debug", result.Debug)
	if result.Kind != "" {
		return fmt.Errorf("%s (%s)", result.Error, result.Kind)
	}
	return fmt.Errorf("%s", result.Error)
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
