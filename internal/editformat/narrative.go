// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editformat

import (
	"regexp"
	"strings"
)

// SectionKind names a narrative marker a model may interleave with edits.
type SectionKind string

const (
	SectionPlan     SectionKind = "plan"
	SectionStep     SectionKind = "step"
	SectionAnalysis SectionKind = "analysis"
	SectionSummary  SectionKind = "summary"
)

// Section is a piece of human-facing narrative introduced by a marker line
// such as "PLAN:", "STEP 2: ..." or "## Summary".
type Section struct {
	Kind  SectionKind `json:"kind"`
	Title string      `json:"title,omitempty"` // Text after the marker on the same line
	Body  string      `json:"body,omitempty"`  // Lines up to the next marker
}

// sectionRegex matches marker lines. A marker needs either a markdown
// heading prefix or a trailing colon so ordinary prose is not split.
var sectionRegex = regexp.MustCompile(`(?i)^\s*(#{1,6}\s+)?\**\s*(plan|step(?:\s*\d+)?|analysis|summary)\b\s*\**\s*(:)?\**\s*(.*)$`)

// splitSections groups reasoning lines under the narrative markers they
// follow. Text before the first marker belongs to no section.
func splitSections(lines []string) []Section {
	var sections []Section
	var body []string
	current := -1

	flush := func() {
		if current >= 0 {
			sections[current].Body = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range lines {
		m := sectionRegex.FindStringSubmatch(line)
		if m == nil || (m[1] == "" && m[3] == "") {
			if current >= 0 {
				body = append(body, line)
			}
			continue
		}
		flush()
		sections = append(sections, Section{
			Kind:  sectionKind(m[2]),
			Title: strings.TrimSpace(m[4]),
		})
		current = len(sections) - 1
	}
	flush()

	return sections
}

func sectionKind(word string) SectionKind {
	w := strings.ToLower(word)
	switch {
	case strings.HasPrefix(w, "step"):
		return SectionStep
	case w == "plan":
		return SectionPlan
	case w == "analysis":
		return SectionAnalysis
	default:
		return SectionSummary
	}
}
