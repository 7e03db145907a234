// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editformat parses model responses into SEARCH/REPLACE edit blocks
// and routes parsed blocks to the documents they target.
package editformat

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/go-patch/pkg/types"
)

const (
	markerSearch  = "<<<<<<< SEARCH"
	markerDivider = "======="
	markerReplace = ">>>>>>> REPLACE"
)

// ParseError describes a malformed edit block. Malformed blocks are dropped
// and reported as warnings; they never abort parsing.
type ParseError struct {
	Line    int    // Line number where the block starts (1-based)
	RawText string // The raw text of the malformed block
	Message string // What went wrong
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed block at line %d: %s", e.Line, e.Message)
}

// ParseResult holds the outcome of parsing a model response.
type ParseResult struct {
	Blocks        []types.EditBlock // Valid blocks in order of appearance
	Warnings      []*ParseError     // Malformed blocks that were dropped
	ReasoningText string            // Text outside any block
	Sections      []Section         // Narrative sections found in the reasoning text
	BlocksFound   int               // Start markers seen
	BlocksParsed  int               // Blocks that produced valid edits
}

// Parse extracts SEARCH/REPLACE blocks from a model response. Text outside
// the blocks is collected as reasoning and never interpreted as an edit. A
// response without blocks yields an empty result, not an error.
func Parse(response string) *ParseResult {
	result := &ParseResult{}
	lines := strings.Split(response, "\n")
	var reasoning []string
	i := 0

	for i < len(lines) {
		searchIdx := -1
		for j := i; j < len(lines); j++ {
			if isMarker(lines[j], markerSearch) {
				searchIdx = j
				break
			}
		}

		if searchIdx < 0 {
			reasoning = append(reasoning, lines[i:]...)
			break
		}

		// The line right before the marker may name the target file, and
		// a markdown fence may open the block before that.
		prefixEnd := searchIdx
		path := ""
		if searchIdx > i {
			if p := extractFilePath(lines[searchIdx-1]); p != "" {
				path = p
				prefixEnd = searchIdx - 1
			}
		}
		if prefixEnd > i && isMarkdownFence(lines[prefixEnd-1]) {
			prefixEnd--
		}
		reasoning = append(reasoning, lines[i:prefixEnd]...)

		result.BlocksFound++
		i = searchIdx + 1

		search, next, stop := collectUntil(lines, i)
		if stop != markerDivider {
			result.Warnings = append(result.Warnings, malformed(lines, searchIdx, next, stop, markerDivider))
			i = resumeAt(next, stop)
			continue
		}
		i = next + 1

		replace, next, stop := collectUntil(lines, i)
		if stop != markerReplace {
			result.Warnings = append(result.Warnings, malformed(lines, searchIdx, next, stop, markerReplace))
			i = resumeAt(next, stop)
			continue
		}
		i = next + 1

		if i < len(lines) && isMarkdownFence(lines[i]) {
			i++
		}

		searchText := joinTrimmed(search)
		if searchText == "" {
			result.Warnings = append(result.Warnings, &ParseError{
				Line:    searchIdx + 1,
				RawText: reconstructBlock(lines, searchIdx, i),
				Message: "empty SEARCH section",
			})
			continue
		}

		result.Blocks = append(result.Blocks, types.EditBlock{
			Index:   len(result.Blocks),
			Search:  searchText,
			Replace: joinTrimmed(replace),
			Path:    path,
			Line:    searchIdx + 1,
		})
		result.BlocksParsed++
	}

	result.ReasoningText = strings.TrimSpace(strings.Join(reasoning, "\n"))
	result.Sections = splitSections(reasoning)
	return result
}

// collectUntil gathers lines from start until the next marker line, so that
// a truncated block does not swallow the block after it. It returns the
// collected lines, the index of the stopping line (or len(lines)) and the
// marker found there ("" at end of input).
func collectUntil(lines []string, start int) ([]string, int, string) {
	for k := start; k < len(lines); k++ {
		for _, m := range []string{markerSearch, markerDivider, markerReplace} {
			if isMarker(lines[k], m) {
				return lines[start:k], k, m
			}
		}
	}
	return lines[start:], len(lines), ""
}

// malformed builds the warning for a block that stopped at the wrong marker
// or ran off the end of the response.
func malformed(lines []string, start, stopIdx int, found, want string) *ParseError {
	msg := fmt.Sprintf("unclosed block: missing %s marker", want)
	if found != "" {
		msg = fmt.Sprintf("unexpected %s before %s", found, want)
	}
	return &ParseError{
		Line:    start + 1,
		RawText: reconstructBlock(lines, start, stopIdx),
		Message: msg,
	}
}

// resumeAt returns where scanning continues after a malformed block. A new
// start marker is re-read as the next block; a stray marker is skipped.
func resumeAt(stopIdx int, found string) int {
	if found == "" || found == markerSearch {
		return stopIdx
	}
	return stopIdx + 1
}

// joinTrimmed drops blank lines adjacent to the markers and joins the rest
// verbatim. Interior blank lines and indentation are kept.
func joinTrimmed(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// extractFilePath returns the file path named on a line, or "" when the line
// reads like prose, a heading or a fence.
func extractFilePath(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || isMarkdownFence(s) {
		return ""
	}

	s = strings.Trim(s, "`*")
	s = strings.TrimSpace(s)

	if s == "" || strings.ContainsAny(s, " \t") || strings.HasSuffix(s, ":") || strings.HasPrefix(s, "#") {
		return ""
	}
	if !strings.ContainsAny(s, "./") {
		return ""
	}
	return s
}

// isMarker checks if a line matches a marker, allowing leading/trailing whitespace.
func isMarker(line, marker string) bool {
	return strings.TrimSpace(line) == marker
}

// isMarkdownFence checks if a line is a markdown fence (``` with optional language).
func isMarkdownFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// reconstructBlock joins lines from start to end for error reporting.
func reconstructBlock(lines []string, start, end int) string {
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
