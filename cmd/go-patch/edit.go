// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gitpkg "github.com/petar-djukic/go-patch/internal/git"
	"github.com/petar-djukic/go-patch/pkg/patch"
)

// newEditCmd creates the "edit" command.
func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Ask a model to edit a file",
		Long:  "Edit sends the file and an instruction to a Bedrock model, applies the SEARCH/REPLACE blocks it returns, and re-requests the patch when a block does not apply.",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}

	cmd.Flags().StringP("prompt", "p", "", "Change to make (required)")
	cmd.MarkFlagRequired("prompt")
	cmd.Flags().StringSlice("hint", nil, "Line near the intended edit (repeatable)")
	cmd.Flags().Bool("relaxed", false, "Start with whitespace-relaxed matching")
	cmd.Flags().String("model", "", "Bedrock model ID")
	cmd.Flags().String("region", "", "AWS region for Bedrock")
	cmd.Flags().String("profile", "", "AWS credential profile")
	cmd.Flags().Int("max-tokens", 4096, "Maximum tokens for a model response")
	cmd.Flags().Int("max-retries", 1, "Patch re-requests after a failed patch")
	cmd.Flags().Int("max-rewrites", 0, "Full-document rewrites once retries run out")

	for _, name := range []string{"model", "region", "profile", "max-tokens", "max-retries", "max-rewrites"} {
		viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	return cmd
}

// runEdit executes the edit.
func runEdit(cmd *cobra.Command, args []string) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	hints, _ := cmd.Flags().GetStringSlice("hint")
	relaxed, _ := cmd.Flags().GetBool("relaxed")

	cfg := patch.Config{
		WorkDir:     viper.GetString("workdir"),
		Model:       viper.GetString("model"),
		Region:      viper.GetString("region"),
		Profile:     viper.GetString("profile"),
		MaxTokens:   viper.GetInt("max-tokens"),
		MaxRetries:  viper.GetInt("max-retries"),
		MaxRewrites: viper.GetInt("max-rewrites"),
		MinScore:    viper.GetFloat64("min-score"),
		Commit:      viper.GetBool("commit"),
		DirtyCommit: viper.GetBool("dirty-commit"),
		DryRun:      viper.GetBool("dry-run"),
		Logger:      newLogger(),
	}

	ed, err := patch.New(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := ed.Edit(ctx, patch.EditRequest{Path: args[0], Instruction: prompt, Hints: hints, Relaxed: relaxed})
	if result != nil {
		printJSON(cmd.OutOrStdout(), result)
	}
	return err
}

// newUndoCmd creates the "undo" command.
func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last go-patch commit",
		Long:  "Undo performs a soft reset of the last commit if it was made by go-patch.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := gitpkg.Open(gitpkg.Config{WorkDir: viper.GetString("workdir")})
			if err != nil {
				return fmt.Errorf("opening repository: %w", err)
			}

			if err := repo.Undo(); err != nil {
				return fmt.Errorf("undo failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Successfully reverted last go-patch commit.")
			return nil
		},
	}
}
