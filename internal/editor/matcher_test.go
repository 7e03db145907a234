// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/petar-djukic/go-patch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExact(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		search    string
		wantStart []int
		wantLines []int
	}{
		{name: "single", doc: "a\nb\nc\n", search: "b", wantStart: []int{2}, wantLines: []int{2}},
		{name: "none", doc: "a\nb\n", search: "z"},
		{name: "non-overlapping", doc: "aaaa", search: "aa", wantStart: []int{0, 2}, wantLines: []int{1, 1}},
		{name: "multi-line", doc: "x\ny\nx\ny\n", search: "x\ny", wantStart: []int{0, 4}, wantLines: []int{1, 3}},
		{name: "whitespace is significant", doc: "  foo\n", search: "foo ", wantStart: nil},
		{name: "empty search", doc: "abc", search: ""},
		{name: "search longer than doc", doc: "ab", search: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindExact(tt.doc, tt.search)
			require.Len(t, got, len(tt.wantStart))
			for i, c := range got {
				assert.Equal(t, tt.wantStart[i], c.Start)
				assert.Equal(t, tt.wantStart[i]+len(tt.search), c.End)
				assert.Equal(t, tt.wantLines[i], c.Line)
				assert.Equal(t, types.ModeExact, c.Mode)
				assert.Equal(t, 1.0, c.Score)
				assert.Equal(t, tt.search, tt.doc[c.Start:c.End])
			}
		})
	}
}

func TestFindRelaxed_OffsetsReferToOriginalText(t *testing.T) {
	doc := "head\n\t  foo(a,\tb)\n    bar()\ntail\n"
	got := FindRelaxed(doc, "foo(a, b)\nbar()", 0)

	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "\t  foo(a,\tb)\n    bar()", doc[c.Start:c.End])
	assert.Equal(t, 2, c.Line)
	assert.Equal(t, types.ModeRelaxed, c.Mode)
	assert.Equal(t, 1.0, c.Score)
}

func TestFindRelaxed_TrailingNewlineInSearch(t *testing.T) {
	doc := "a\n  b\nc\n"
	got := FindRelaxed(doc, "b\n", 0)

	require.Len(t, got, 1)
	assert.Equal(t, "  b\n", doc[got[0].Start:got[0].End])
}

func TestFindRelaxed_LastLineWithoutNewline(t *testing.T) {
	doc := "a\n  b"
	got := FindRelaxed(doc, "b", 0)

	require.Len(t, got, 1)
	assert.Equal(t, "  b", doc[got[0].Start:got[0].End])
}

func TestFindRelaxed_SortedByScore(t *testing.T) {
	doc := "one\ntwo\nthree\nfour\n\none\ntwo\nthree\nfive\n"
	got := FindRelaxed(doc, "one\ntwo\nthree\nfive", 0.5)

	require.NotEmpty(t, got)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 6, got[0].Line)
	assert.Equal(t, 0.75, got[1].Score)
	assert.Equal(t, 1, got[1].Line)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}

	top := topScored(got)
	require.Len(t, top, 1)
	assert.Equal(t, 6, top[0].Line)
}

func TestFindRelaxed_Threshold(t *testing.T) {
	doc := "a\nb\nc\nd\n"
	assert.Empty(t, FindRelaxed(doc, "a\nb\nx\ny", 0))
	assert.Len(t, FindRelaxed(doc, "a\nb\nx\ny", 0.5), 1)
}

func TestFindRelaxed_BlankSearch(t *testing.T) {
	assert.Nil(t, FindRelaxed("a\n\nb\n", "  \n\t", 0))
	assert.Nil(t, FindRelaxed("a\n", "", 0))
}

func TestFindRelaxed_SearchLongerThanDoc(t *testing.T) {
	assert.Empty(t, FindRelaxed("a\n", "a\nb\nc", 0.1))
}

func TestTopScored(t *testing.T) {
	assert.Nil(t, topScored(nil))

	in := []types.MatchCandidate{{Score: 1, Line: 3}, {Score: 1, Line: 9}, {Score: 0.9, Line: 1}}
	got := topScored(in)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Line)
	assert.Equal(t, 9, got[1].Line)
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  foo  ", "foo"},
		{"\tfoo\t\tbar ", "foo bar"},
		{"a  b   c", "a b c"},
		{"", ""},
		{" \t ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeLine(tt.in), "input %q", tt.in)
	}
}

func TestFindClosestMatch(t *testing.T) {
	t.Run("finds similar text", func(t *testing.T) {
		content := "func hello() {\n\treturn 1\n}\n"
		d := findClosestMatch(content, "func hello() {\n\treturn 2\n}")
		assert.Equal(t, "func hello() {\n\treturn 1\n}", d.ClosestMatch)
		assert.Equal(t, 1, d.ClosestLineStart)
		assert.Equal(t, 3, d.ClosestLineEnd)
		assert.Greater(t, d.Similarity, 0.9)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Equal(t, types.Diagnostic{}, findClosestMatch("", "x"))
		assert.Equal(t, types.Diagnostic{}, findClosestMatch("x", ""))
	})

	t.Run("oversized document", func(t *testing.T) {
		content := strings.Repeat("x", maxDiagnosticBytes+1)
		assert.Equal(t, types.Diagnostic{}, findClosestMatch(content, "x y"))
	})
}

func TestFindClosestMatch_LargeDocument(t *testing.T) {
	lines := make([]string, 20000)
	for i := range lines {
		lines[i] = fmt.Sprintf("    value_%05d := compute(input, %d) // step %d", i, i*7, i)
	}
	doc := strings.Join(lines, "\n") + "\n"

	near := append([]string(nil), lines[12335:12355]...)
	near[10] = strings.Replace(near[10], "compute(", "computed(", 1)
	search := strings.Join(near, "\n")

	start := time.Now()
	d := findClosestMatch(doc, search)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, 12336, d.ClosestLineStart)
	assert.Equal(t, 12355, d.ClosestLineEnd)
	assert.Greater(t, d.Similarity, 0.99)
}

func TestEngine_NoMatchOnLargeDocumentIsFast(t *testing.T) {
	var doc strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&doc, "line %d: the quick brown fox jumps over the lazy dog\n", i)
	}
	var search strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&search, "missing %d: nothing here resembles the document\n", i)
	}

	start := time.Now()
	_, err := (&Engine{}).Apply(doc.String(), []types.EditBlock{{Search: search.String(), Replace: "x"}}, nil, true)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLineAffinity(t *testing.T) {
	assert.Equal(t, 1.0, lineAffinity("abc", "abc"))
	assert.Equal(t, 0.0, lineAffinity("abc", "xyz"))
	assert.InDelta(t, 0.75, lineAffinity("abcd", "abxd"), 1e-9)
	assert.Equal(t, 0.0, lineAffinity("", "abc"))
}

func TestInsertRanked(t *testing.T) {
	var list []rankedWindow
	for i := 0; i < 12; i++ {
		list = insertRanked(list, rankedWindow{start: i, score: float64(i % 4)})
	}
	require.Len(t, list, diagnosticShortlist)
	assert.Equal(t, rankedWindow{start: 3, score: 3}, list[0])
	assert.Equal(t, rankedWindow{start: 7, score: 3}, list[1])
	assert.Equal(t, rankedWindow{start: 11, score: 3}, list[2])
	assert.Equal(t, 2.0, list[3].score)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 0.0, similarity("", "abc"))
	assert.InDelta(t, 0.75, similarity("abcd", "abcx"), 1e-9)
	// Distances are in runes, so multi-byte text scores like ASCII.
	assert.InDelta(t, 0.75, similarity("äöüß", "äöüx"), 1e-9)
}

func TestLineCounter(t *testing.T) {
	c := lineCounter{doc: "a\nbb\nccc\n"}
	assert.Equal(t, 1, c.at(0))
	assert.Equal(t, 2, c.at(2))
	assert.Equal(t, 2, c.at(3))
	assert.Equal(t, 3, c.at(5))
}
