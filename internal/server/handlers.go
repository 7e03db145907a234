// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petar-djukic/go-patch/internal/editformat"
	"github.com/petar-djukic/go-patch/internal/editor"
	"github.com/petar-djukic/go-patch/internal/feedback"
	"github.com/petar-djukic/go-patch/pkg/types"
)

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: s.cfg.Version})
}

// handleApply handles POST /v1/patch/apply.
//
// Response:
//
//	200 OK: ApplyResponse, status "patched" or "unchanged"
//	400 Bad Request: malformed body or min_score out of range
//	422 Unprocessable Entity: a block was not found or was ambiguous
func (s *Server) handleApply(c *gin.Context) {
	logger := s.requestLogger(c, "handleApply")

	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "min_score must be between 0 and 1",
			Code:  CodeInvalidRequest,
		})
		return
	}

	parsed := editformat.Parse(req.Patch)
	engine := s.engine
	if req.MinScore > 0 {
		engine = &editor.Engine{MinScore: req.MinScore, Logger: s.logger}
	}

	stage := feedback.StageStrict
	if req.Relaxed {
		stage = feedback.StageRelaxed
	}

	start := time.Now()
	patched, err := engine.Apply(req.Document, parsed.Blocks, req.Hints, req.Relaxed)
	s.metrics.ObserveApply(patched, err, time.Since(start))
	s.metrics.ObserveRun(string(stage), err == nil)
	if err != nil {
		logger.Info("patch rejected", "blocks", len(parsed.Blocks), "error", err)
		s.writeApplyError(c, err, req)
		return
	}

	status := StatusUnchanged
	if patched.Changed {
		status = StatusPatched
	}
	logger.Info("patch applied", "blocks", len(patched.Blocks), "status", status)

	c.JSON(http.StatusOK, ApplyResponse{
		Status:   status,
		Document: patched.Text,
		Blocks:   patched.Blocks,
		Warnings: warnings(parsed.Warnings),
	})
}

// writeApplyError maps engine failures to 422 responses.
func (s *Server) writeApplyError(c *gin.Context, err error, req ApplyRequest) {
	resp := ErrorResponse{
		Error:    err.Error(),
		Feedback: feedback.FormatFailure(err, req.Document, feedback.FormatConfig{Path: req.Path}),
	}

	var nm *types.NoMatchError
	var amb *types.AmbiguousMatchError
	switch {
	case errors.As(err, &nm):
		resp.Code = CodeNoMatch
		resp.BlockIndex = &nm.Index
		resp.Snippet = nm.Snippet
		if d := nm.Diagnostic; d.ClosestMatch != "" {
			resp.Lines = []int{d.ClosestLineStart, d.ClosestLineEnd}
		}
	case errors.As(err, &amb):
		resp.Code = CodeAmbiguousMatch
		resp.BlockIndex = &amb.Index
		resp.Lines = amb.Lines
	default:
		resp.Code = CodeInternal
		resp.Feedback = ""
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusUnprocessableEntity, resp)
}

// handleParse handles POST /v1/patch/parse.
func (s *Server) handleParse(c *gin.Context) {
	logger := s.requestLogger(c, "handleParse")

	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}

	parsed := editformat.Parse(req.Patch)
	blocks := make([]Block, len(parsed.Blocks))
	for i, b := range parsed.Blocks {
		blocks[i] = Block{Index: b.Index, Path: b.Path, Search: b.Search, Replace: b.Replace, Line: b.Line}
	}

	c.JSON(http.StatusOK, ParseResponse{
		Blocks:    blocks,
		Warnings:  warnings(parsed.Warnings),
		Reasoning: parsed.ReasoningText,
	})
}

func warnings(errs []*editformat.ParseError) []Warning {
	if len(errs) == 0 {
		return nil
	}
	out := make([]Warning, len(errs))
	for i, w := range errs {
		out[i] = Warning{Line: w.Line, Message: w.Message}
	}
	return out
}
