// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/petar-djukic/go-patch/pkg/types"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultMinScore is the aligned line-match ratio a relaxed window must reach.
const DefaultMinScore = 0.85

// FindExact returns every non-overlapping verbatim occurrence of search in
// doc, left to right. No normalization is applied.
func FindExact(doc, search string) []types.MatchCandidate {
	if search == "" {
		return nil
	}

	var out []types.MatchCandidate
	lines := lineCounter{doc: doc}
	offset := 0
	for offset <= len(doc)-len(search) {
		idx := strings.Index(doc[offset:], search)
		if idx < 0 {
			break
		}
		start := offset + idx
		out = append(out, types.MatchCandidate{
			Start: start,
			End:   start + len(search),
			Mode:  types.ModeExact,
			Score: 1.0,
			Line:  lines.at(start),
		})
		offset = start + len(search)
	}
	return out
}

// FindRelaxed slides a window of len(searchLines) lines over doc and scores
// each window by the fraction of search lines equal to the aligned document
// line after whitespace normalization. Windows scoring at least minScore are
// returned by descending score, ties in document order. Offsets always refer
// to the original, un-normalized text.
func FindRelaxed(doc, search string, minScore float64) []types.MatchCandidate {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	normSearch := normalizeLines(search)
	if len(normSearch) == 0 || allBlank(normSearch) {
		return nil
	}

	docLines := strings.Split(doc, "\n")
	normDoc := make([]string, len(docLines))
	for i, line := range docLines {
		normDoc[i] = normalizeLine(line)
	}

	// A terminal newline in doc leaves an empty last element that is not a line.
	lineCount := len(docLines)
	if strings.HasSuffix(doc, "\n") {
		lineCount--
	}

	searchLen := len(normSearch)
	keepNewline := strings.HasSuffix(search, "\n")

	var out []types.MatchCandidate
	for i := 0; i+searchLen <= lineCount; i++ {
		hits := 0
		for j := 0; j < searchLen; j++ {
			if normDoc[i+j] == normSearch[j] {
				hits++
			}
		}
		score := float64(hits) / float64(searchLen)
		if score < minScore {
			continue
		}

		start := byteOffsetOfLine(docLines, i)
		end := byteOffsetOfLine(docLines, i+searchLen)
		if end > len(doc) {
			end = len(doc)
		}
		// Keep the line structure after the window unless the search
		// text itself ended with a newline.
		if !keepNewline && end > start && doc[end-1] == '\n' {
			end--
		}

		out = append(out, types.MatchCandidate{
			Start: start,
			End:   end,
			Mode:  types.ModeRelaxed,
			Score: score,
			Line:  i + 1,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out
}

// topScored returns the leading run of candidates sharing the best score.
// Candidates must already be sorted by descending score.
func topScored(candidates []types.MatchCandidate) []types.MatchCandidate {
	if len(candidates) == 0 {
		return nil
	}
	n := 1
	for n < len(candidates) && candidates[n].Score == candidates[0].Score {
		n++
	}
	return candidates[:n]
}

// normalizeLines splits text into lines and normalizes each line by
// trimming whitespace and collapsing runs of spaces.
func normalizeLines(s string) []string {
	lines := strings.Split(s, "\n")
	// Remove trailing empty line from a terminal newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = normalizeLine(line)
	}
	return result
}

func normalizeLine(line string) string {
	return collapseSpaces(strings.TrimSpace(line))
}

func allBlank(lines []string) bool {
	for _, l := range lines {
		if l != "" {
			return false
		}
	}
	return true
}

// collapseSpaces replaces runs of spaces and tabs with a single space.
func collapseSpaces(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		} else {
			b.WriteRune(r)
			inSpace = false
		}
	}
	return b.String()
}

const (
	// maxDiagnosticBytes bounds the documents searched for a closest match.
	maxDiagnosticBytes = 4 << 20
	// diagnosticShortlist is the number of windows scored with go-diff.
	diagnosticShortlist = 8
	diffTimeout         = 100 * time.Millisecond
)

// findClosestMatch finds the best partial match in content for diagnostics.
// Windows are ranked by a cheap per-line score first; only the shortlist is
// scored with Levenshtein similarity.
func findClosestMatch(content, search string) types.Diagnostic {
	if search == "" || content == "" || len(content) > maxDiagnosticBytes {
		return types.Diagnostic{}
	}

	contentLines := strings.Split(content, "\n")
	searchLines := strings.Split(strings.TrimSuffix(search, "\n"), "\n")
	searchLen := len(searchLines)
	if searchLen > len(contentLines) {
		searchLen = len(contentLines)
		searchLines = searchLines[:searchLen]
	}

	normContent := make([]string, len(contentLines))
	for i, l := range contentLines {
		normContent[i] = normalizeLine(l)
	}
	normSearch := make([]string, searchLen)
	for i, l := range searchLines {
		normSearch[i] = normalizeLine(l)
	}

	shortlist := make([]rankedWindow, 0, diagnosticShortlist+1)
	for i := 0; i <= len(contentLines)-searchLen; i++ {
		var score float64
		for j := 0; j < searchLen; j++ {
			score += lineAffinity(normContent[i+j], normSearch[j])
		}
		if score == 0 {
			continue
		}
		shortlist = insertRanked(shortlist, rankedWindow{start: i, score: score})
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = diffTimeout

	var bestSim float64
	bestStart := -1
	for _, w := range shortlist {
		candidate := strings.Join(contentLines[w.start:w.start+searchLen], "\n")
		s := similarityWith(dmp, candidate, search)
		if s > bestSim || (s == bestSim && bestStart >= 0 && w.start < bestStart) {
			bestSim = s
			bestStart = w.start
		}
	}

	if bestStart < 0 || bestSim == 0 {
		return types.Diagnostic{}
	}
	return types.Diagnostic{
		ClosestMatch:     strings.Join(contentLines[bestStart:bestStart+searchLen], "\n"),
		Similarity:       bestSim,
		ClosestLineStart: bestStart + 1,
		ClosestLineEnd:   bestStart + searchLen,
	}
}

// rankedWindow is a window start line with its cheap score.
type rankedWindow struct {
	start int
	score float64
}

// insertRanked keeps the diagnosticShortlist best windows, highest score
// first, earlier windows first on equal score.
func insertRanked(list []rankedWindow, w rankedWindow) []rankedWindow {
	if len(list) == diagnosticShortlist && w.score <= list[len(list)-1].score {
		return list
	}
	i := sort.Search(len(list), func(k int) bool { return list[k].score < w.score })
	list = append(list, rankedWindow{})
	copy(list[i+1:], list[i:])
	list[i] = w
	if len(list) > diagnosticShortlist {
		list = list[:diagnosticShortlist]
	}
	return list
}

// lineAffinity scores two normalized lines in [0, 1]: 1 when equal,
// otherwise the share of bytes covered by their common prefix and suffix.
func lineAffinity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	minLen := len(a) + len(b) - maxLen

	prefix := 0
	for prefix < minLen && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < minLen-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	return float64(prefix+suffix) / float64(maxLen)
}

// similarity computes the Levenshtein-based similarity ratio between two strings
// using the go-diff library. Returns a value between 0.0 and 1.0.
func similarity(a, b string) float64 {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = diffTimeout
	return similarityWith(dmp, a, b)
}

func similarityWith(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// byteOffsetOfLine returns the byte offset of the start of line idx
// in the content reconstructed from lines.
func byteOffsetOfLine(lines []string, idx int) int {
	offset := 0
	for i := 0; i < idx; i++ {
		offset += len(lines[i]) + 1 // +1 for newline
	}
	return offset
}

// lineCounter maps increasing byte offsets to 1-based lines, counting
// newlines only since the previous offset.
type lineCounter struct {
	doc    string
	offset int
	line   int
}

// at returns the line containing offset. Offsets must not decrease.
func (c *lineCounter) at(offset int) int {
	if c.line == 0 {
		c.line = 1
	}
	c.line += strings.Count(c.doc[c.offset:offset], "\n")
	c.offset = offset
	return c.line
}
