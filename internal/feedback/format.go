// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/petar-djukic/go-patch/internal/outline"
	"github.com/petar-djukic/go-patch/pkg/types"
)

const (
	defaultContextLines = 3
	defaultMaxLocations = 5
)

// FormatConfig configures failure formatting.
type FormatConfig struct {
	ContextLines int    // Lines of context above/below each location (default 3)
	MaxLocations int    // Ambiguous locations shown in full (default 5)
	Path         string // Document path; enables declaration labels when set
}

// FormatFailure produces a follow-up prompt for the model from a failed
// patch application. It shows the document around every tied location or
// around the closest partial match, so the model can re-emit a SEARCH text
// that identifies one location.
func FormatFailure(err error, doc string, cfg FormatConfig) string {
	contextLines := cfg.ContextLines
	if contextLines == 0 {
		contextLines = defaultContextLines
	}
	maxLocations := cfg.MaxLocations
	if maxLocations == 0 {
		maxLocations = defaultMaxLocations
	}

	var buf strings.Builder
	buf.WriteString("The previous patch could not be applied. No changes were made to the document.\n\n")

	var amb *types.AmbiguousMatchError
	var nm *types.NoMatchError
	switch {
	case errors.As(err, &amb):
		fmt.Fprintf(&buf, "## Block %d is ambiguous\n\n", amb.Index+1)
		fmt.Fprintf(&buf, "Its SEARCH text matches %d locations (%s match):\n\n", amb.Count, amb.Mode)
		for i, line := range amb.Lines {
			if i == maxLocations {
				fmt.Fprintf(&buf, "... and %d more\n\n", len(amb.Lines)-maxLocations)
				break
			}
			writeLocation(&buf, fmt.Sprintf("Location %d", i+1), doc, line, line, contextLines, cfg.Path)
		}
		buf.WriteString("Extend the SEARCH text with neighbouring lines that occur at only one of these locations.\n")

	case errors.As(err, &nm):
		fmt.Fprintf(&buf, "## Block %d was not found\n\n", nm.Index+1)
		buf.WriteString("SEARCH text:\n\n```\n")
		buf.WriteString(nm.Snippet)
		buf.WriteString("\n```\n\n")
		if d := nm.Diagnostic; d.ClosestMatch != "" {
			title := fmt.Sprintf("Closest match (similarity %.2f)", d.Similarity)
			writeLocation(&buf, title, doc, d.ClosestLineStart, d.ClosestLineEnd, contextLines, cfg.Path)
		}
		buf.WriteString("Copy the SEARCH text exactly from the document, including whitespace.\n")

	default:
		fmt.Fprintf(&buf, "## Error\n\n%v\n", err)
	}

	return buf.String()
}

// writeLocation writes a heading and numbered document lines first..last
// with context around them.
func writeLocation(buf *strings.Builder, title, doc string, first, last, contextLines int, path string) {
	fmt.Fprintf(buf, "### %s: line %d", title, first)
	if path != "" {
		if decl := outline.Enclosing(path, []byte(doc), first); decl != "" {
			fmt.Fprintf(buf, " (in %s)", decl)
		}
	}
	buf.WriteString("\n\n")

	if context := getCodeContext(doc, first, last, contextLines); context != "" {
		buf.WriteString("```\n")
		buf.WriteString(context)
		buf.WriteString("```\n\n")
	}
}

// getCodeContext extracts numbered lines first..last of doc with
// contextLines above and below. Lines in the range are marked with "> ".
func getCodeContext(doc string, first, last, contextLines int) string {
	if doc == "" || first < 1 {
		return ""
	}
	if last < first {
		last = first
	}

	lines := strings.Split(doc, "\n")
	start := first - contextLines - 1 // Convert to 0-based
	if start < 0 {
		start = 0
	}
	end := last + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	var buf strings.Builder
	for i := start; i < end; i++ {
		lineNum := i + 1
		marker := "  "
		if lineNum >= first && lineNum <= last {
			marker = "> "
		}
		fmt.Fprintf(&buf, "%s%4d │ %s\n", marker, lineNum, lines[i])
	}

	return buf.String()
}
