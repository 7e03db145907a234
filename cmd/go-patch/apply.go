// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-patch/internal/editor"
	"github.com/petar-djukic/go-patch/internal/session"
)

// newApplyCmd creates the "apply" command.
func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [patch-file]",
		Short: "Apply a patch to files",
		Long: "Apply reads SEARCH/REPLACE blocks from patch-file (or stdin) and applies them. " +
			"With --file every block is applied to that file; otherwise each block names its file on the line before it.",
		Args: cobra.MaximumNArgs(1),
		RunE: runApply,
	}

	cmd.Flags().StringP("file", "f", "", "File every block applies to")
	cmd.Flags().StringSlice("hint", nil, "Line near the intended edit (repeatable)")
	cmd.Flags().Bool("relaxed", false, "Start with whitespace-relaxed matching")

	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	raw, err := readPatch(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	hints, _ := cmd.Flags().GetStringSlice("hint")
	relaxed, _ := cmd.Flags().GetBool("relaxed")

	logger := newLogger()
	runner := session.NewRunner(sessionConfig(), session.Deps{
		Engine: &editor.Engine{MinScore: viper.GetFloat64("min-score"), Logger: logger},
		Logger: logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if file == "" {
		result, err := runner.PatchFiles(ctx, raw, hints, relaxed)
		if result != nil {
			printJSON(cmd.OutOrStdout(), newFilesOutput(result))
		}
		if err != nil {
			return err
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d of %d files not patched", len(result.Errors), len(result.Errors)+len(result.Files))
		}
		return nil
	}

	result, err := runner.Patch(ctx, session.PatchRequest{Path: file, Patch: raw, Hints: hints, Relaxed: relaxed})
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Fprintln(cmd.ErrOrStderr(), "no changes needed")
	}
	printJSON(cmd.OutOrStdout(), result)
	return nil
}

// filesOutput is the JSON form of a multi-file apply.
type filesOutput struct {
	Files    []fileOutput `json:"files"`
	Errors   []string     `json:"errors,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
	Commit   string       `json:"commit,omitempty"`
}

type fileOutput struct {
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
	Blocks  int    `json:"blocks"`
}

func newFilesOutput(r *session.FilesResult) filesOutput {
	out := filesOutput{Warnings: r.Warnings, Commit: r.Commit}
	for _, f := range r.Files {
		out.Files = append(out.Files, fileOutput{Path: f.Path, Changed: f.Patched.Changed, Blocks: len(f.Patched.Blocks)})
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out
}

// readPatch reads the patch from the named file, or from in when the name
// is absent or "-".
func readPatch(in io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading patch from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading patch: %w", err)
	}
	return string(data), nil
}

func sessionConfig() session.Config {
	return session.Config{
		WorkDir:     viper.GetString("workdir"),
		MaxRetries:  viper.GetInt("max-retries"),
		MaxRewrites: viper.GetInt("max-rewrites"),
		DryRun:      viper.GetBool("dry-run"),
		Commit:      viper.GetBool("commit"),
		DirtyCommit: viper.GetBool("dirty-commit"),
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling result: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(out))
}
