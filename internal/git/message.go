// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxSubjectLength = 72

// commitTypes maps instruction keywords to conventional commit types.
var commitTypes = []struct {
	keywords []string
	prefix   string
}{
	{[]string{"fix", "bug", "repair", "resolve", "correct"}, "fix"},
	{[]string{"refactor", "restructure", "reorganize", "clean up", "simplify", "rename"}, "refactor"},
	{[]string{"test", "spec", "coverage"}, "test"},
	{[]string{"doc", "comment", "readme", "documentation"}, "docs"},
	{[]string{"style", "format", "lint", "whitespace"}, "style"},
	{[]string{"perf", "performance", "optimize", "speed"}, "perf"},
	{[]string{"ci", "pipeline", "workflow", "github action"}, "ci"},
	{[]string{"build", "dependency", "deps", "module"}, "build"},
	{[]string{"chore", "cleanup", "maintain"}, "chore"},
	// "feat" is the default, so it comes last with broad keywords.
	{[]string{"add", "create", "implement", "new", "feature", "introduce"}, "feat"},
}

// GenerateMessage creates a conventional commit message from the edit
// summary and the patched files. An empty summary yields a generic subject
// naming the files.
func GenerateMessage(summary string, files []string) string {
	summary = strings.TrimSpace(firstLine(summary))

	var subject string
	if summary == "" {
		subject = buildSubject("chore", "apply patch to "+describeFiles(files))
	} else {
		subject = buildSubject(inferCommitType(summary), summary)
	}

	msg := subject + "\n\n"
	if body := buildBody(files); body != "" {
		msg += body + "\n"
	}
	return msg + patchTrailer
}

// inferCommitType determines the conventional commit type from keywords.
func inferCommitType(summary string) string {
	lower := strings.ToLower(summary)
	for _, ct := range commitTypes {
		for _, kw := range ct.keywords {
			if containsWord(lower, kw) {
				return ct.prefix
			}
		}
	}
	return "feat"
}

// containsWord checks whether text contains keyword as a whole word
// (bounded by non-letter characters or string edges). For multi-word
// keywords like "clean up", it falls back to substring matching.
func containsWord(text, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		leftOK := start == 0 || !unicode.IsLetter(rune(text[start-1]))
		rightOK := end == len(text) || !unicode.IsLetter(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

// buildSubject creates the first line of the commit message in the form
// "type: summary", truncated to maxSubjectLength bytes on a rune boundary.
func buildSubject(commitType, summary string) string {
	r, size := utf8.DecodeRuneInString(summary)
	summary = string(unicode.ToLower(r)) + summary[size:]
	summary = strings.TrimRight(summary, ".")

	subject := fmt.Sprintf("%s: %s", commitType, summary)
	if len(subject) <= maxSubjectLength {
		return subject
	}

	cut := maxSubjectLength - 3
	for cut > 0 && !utf8.RuneStart(subject[cut]) {
		cut--
	}
	return subject[:cut] + "..."
}

// buildBody lists the patched files.
func buildBody(files []string) string {
	if len(files) == 0 {
		return ""
	}

	var buf strings.Builder
	buf.WriteString("Patched files:\n")
	for _, f := range files {
		fmt.Fprintf(&buf, "- %s\n", f)
	}
	return buf.String()
}

func describeFiles(files []string) string {
	switch len(files) {
	case 0:
		return "working tree"
	case 1:
		return path.Base(files[0])
	default:
		return fmt.Sprintf("%d files", len(files))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
