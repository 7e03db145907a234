// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command go-patch applies SEARCH/REPLACE patches to files, asks a Bedrock
// model for them, or serves the patch engine over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "go-patch",
		Short:        "Apply SEARCH/REPLACE patches to text files",
		Long:         "go-patch applies SEARCH/REPLACE blocks to files, falling back to whitespace-relaxed matching and asking a model for a corrected patch when a block does not apply.",
		SilenceUsage: true,
	}

	// Global flags.
	rootCmd.PersistentFlags().String("workdir", ".", "Directory holding the files to patch")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64("min-score", 0, "Relaxed match threshold (default 0.85)")
	rootCmd.PersistentFlags().Bool("commit", false, "Commit patched files with git")
	rootCmd.PersistentFlags().Bool("dirty-commit", false, "Commit uncommitted changes before patching")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Report the result without writing files")

	// Bind flags to viper.
	for _, name := range []string{"workdir", "log-level", "min-score", "commit", "dirty-commit", "dry-run"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	// A .env file in the current directory may supply GO_PATCH_* and AWS_*
	// variables; variables already set win.
	_ = godotenv.Load()

	// Env vars: GO_PATCH_MODEL, GO_PATCH_REGION, etc.
	viper.SetEnvPrefix("GO_PATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Config file.
	viper.SetConfigName(".go-patch")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore error; config file is optional.

	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newLogger builds the JSON logger shared by every command.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newVersionCmd creates the "version" command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print go-patch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "go-patch %s\n", version)
		},
	}
}
