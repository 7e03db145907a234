// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package server

import "github.com/petar-djukic/go-patch/pkg/types"

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNoMatch        = "NO_MATCH"
	CodeAmbiguousMatch = "AMBIGUOUS_MATCH"
	CodeInternal       = "INTERNAL"
)

// Response statuses for a successful apply.
const (
	StatusPatched   = "patched"
	StatusUnchanged = "unchanged"
)

// ApplyRequest is the body of POST /v1/patch/apply.
type ApplyRequest struct {
	// Patch is the raw text holding SEARCH/REPLACE blocks.
	Patch string `json:"patch" binding:"required"`

	// Document is the text the blocks are applied to.
	Document string `json:"document"`

	// Hints are lines near the intended edit, used to choose between
	// several matches.
	Hints []string `json:"hints,omitempty"`

	// Relaxed enables whitespace-insensitive matching.
	Relaxed bool `json:"relaxed,omitempty"`

	// MinScore overrides the relaxed match threshold (0 < MinScore <= 1).
	MinScore float64 `json:"min_score,omitempty"`

	// Path names the document. It only labels locations in Feedback.
	Path string `json:"path,omitempty"`
}

// ApplyResponse is the 200 response of POST /v1/patch/apply.
type ApplyResponse struct {
	Status   string               `json:"status"`
	Document string               `json:"document"`
	Blocks   []types.BlockOutcome `json:"blocks"`
	Warnings []Warning            `json:"warnings,omitempty"`
}

// ParseRequest is the body of POST /v1/patch/parse.
type ParseRequest struct {
	Patch string `json:"patch" binding:"required"`
}

// ParseResponse is the 200 response of POST /v1/patch/parse.
type ParseResponse struct {
	Blocks    []Block   `json:"blocks"`
	Warnings  []Warning `json:"warnings,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// Block is the JSON form of a parsed edit block.
type Block struct {
	Index   int    `json:"index"`
	Path    string `json:"path,omitempty"`
	Search  string `json:"search"`
	Replace string `json:"replace"`
	Line    int    `json:"line"`
}

// Warning describes a malformed block that was dropped.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// BlockIndex, Lines and Snippet describe a block that could not be
	// applied. Lines lists the tied candidates of an ambiguous block, or
	// the closest region of a block that was not found.
	BlockIndex *int   `json:"block_index,omitempty"`
	Lines      []int  `json:"lines,omitempty"`
	Snippet    string `json:"snippet,omitempty"`

	// Feedback is a follow-up prompt describing the failure to a model.
	Feedback string `json:"feedback,omitempty"`
}

// HealthResponse is the response of GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
