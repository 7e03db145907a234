// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-patch/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const fooDoc = "function foo() {\n  return 1;\n}\n"

func patch(search, replace string) string {
	return "<<<<<<< SEARCH\n" + search + "\n=======\n" + replace + "\n>>>>>>> REPLACE\n"
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequest(method, path, reader)
	} else {
		req, err = http.NewRequest(method, path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	s := New(Config{Version: "1.2.3"})

	w := do(t, s, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestRequestID(t *testing.T) {
	s := New(Config{})

	w := do(t, s, http.MethodGet, "/v1/health", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req, err := http.NewRequest(http.MethodGet, "/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "caller-id")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(requestIDHeader))
}

func TestHandleApply(t *testing.T) {
	tests := []struct {
		name       string
		req        ApplyRequest
		wantStatus string
		wantDoc    string
		wantMode   types.MatchMode
		wantBlocks int
	}{
		{
			name:       "exact",
			req:        ApplyRequest{Patch: patch("  return 1;", "  return 2;"), Document: fooDoc},
			wantStatus: StatusPatched,
			wantDoc:    "function foo() {\n  return 2;\n}\n",
			wantMode:   types.ModeExact,
			wantBlocks: 1,
		},
		{
			name:       "relaxed",
			req:        ApplyRequest{Patch: patch("return  1;", "  return 2;"), Document: fooDoc, Relaxed: true},
			wantStatus: StatusPatched,
			wantDoc:    "function foo() {\n  return 2;\n}\n",
			wantMode:   types.ModeRelaxed,
			wantBlocks: 1,
		},
		{
			name:       "no-op block",
			req:        ApplyRequest{Patch: patch("  return 1;", "  return 1;"), Document: fooDoc},
			wantStatus: StatusUnchanged,
			wantDoc:    fooDoc,
			wantBlocks: 1,
		},
		{
			name:       "no blocks",
			req:        ApplyRequest{Patch: "Nothing to change.", Document: fooDoc},
			wantStatus: StatusUnchanged,
			wantDoc:    fooDoc,
		},
		{
			name: "hint resolves ambiguity",
			req: ApplyRequest{
				Patch:    patch("x = 1", "x = 9"),
				Document: "a\nx = 1\nb\nc\nd\ne\nf\ng\nh\ni\nj\nx = 1\nk\n",
				Hints:    []string{"k"},
			},
			wantStatus: StatusPatched,
			wantDoc:    "a\nx = 1\nb\nc\nd\ne\nf\ng\nh\ni\nj\nx = 9\nk\n",
			wantBlocks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", tt.req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp struct {
				Status   string `json:"status"`
				Document string `json:"document"`
				Blocks   []struct {
					Mode string `json:"mode"`
					NoOp bool   `json:"no_op"`
				} `json:"blocks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantDoc, resp.Document)
			require.Len(t, resp.Blocks, tt.wantBlocks)
			if tt.wantBlocks > 0 {
				assert.Equal(t, tt.wantMode.String(), resp.Blocks[0].Mode)
			}
		})
	}
}

func TestHandleApply_Warnings(t *testing.T) {
	raw := "<<<<<<< SEARCH\nunterminated\n" + patch("  return 1;", "  return 2;")

	w := do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", ApplyRequest{Patch: raw, Document: fooDoc})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ApplyResponse](t, w)
	assert.Equal(t, StatusPatched, resp.Status)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, 1, resp.Warnings[0].Line)
}

func TestHandleApply_NoMatch(t *testing.T) {
	req := ApplyRequest{
		Patch:    patch("  return 1;", "  return 2;") + patch("  return 3;", "  return 4;"),
		Document: fooDoc,
	}

	w := do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, CodeNoMatch, resp.Code)
	require.NotNil(t, resp.BlockIndex)
	assert.Equal(t, 1, *resp.BlockIndex)
	assert.Equal(t, "  return 3;", resp.Snippet)
	assert.Contains(t, resp.Feedback, "Block 2 was not found")
}

func TestHandleApply_Ambiguous(t *testing.T) {
	req := ApplyRequest{
		Patch:    patch("x = 1", "x = 2"),
		Document: "x = 1\ny = 2\nx = 1\n",
		Path:     "vars.py",
	}

	w := do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, CodeAmbiguousMatch, resp.Code)
	require.NotNil(t, resp.BlockIndex)
	assert.Equal(t, 0, *resp.BlockIndex)
	assert.Equal(t, []int{1, 3}, resp.Lines)
	assert.Contains(t, resp.Feedback, "Block 1 is ambiguous")
}

func TestHandleApply_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{name: "missing patch", body: map[string]any{"document": "x"}},
		{name: "min score above one", body: ApplyRequest{Patch: "p", MinScore: 1.5}},
		{name: "negative min score", body: ApplyRequest{Patch: "p", MinScore: -0.1}},
		{name: "wrong type", body: map[string]any{"patch": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandleApply_BodyLimit(t *testing.T) {
	s := New(Config{MaxBodyBytes: 32})
	req := ApplyRequest{Patch: patch("  return 1;", "  return 2;"), Document: fooDoc}

	w := do(t, s, http.MethodPost, "/v1/patch/apply", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleApply_MinScore(t *testing.T) {
	doc := "a\nb\nc\nd\n"
	req := ApplyRequest{Patch: patch("a\nb\nX\nd", "z"), Document: doc, Relaxed: true}

	w := do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req.MinScore = 0.75
	w = do(t, New(Config{}), http.MethodPost, "/v1/patch/apply", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "z\n", decode[ApplyResponse](t, w).Document)
}

func TestHandleParse(t *testing.T) {
	raw := "I will rename the function.\n\napp.js\n" + patch("function foo() {", "function bar() {") + "<<<<<<< SEARCH\nbroken\n"

	w := do(t, New(Config{}), http.MethodPost, "/v1/patch/parse", ParseRequest{Patch: raw})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ParseResponse](t, w)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, Block{Index: 0, Path: "app.js", Search: "function foo() {", Replace: "function bar() {", Line: 4}, resp.Blocks[0])
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "I will rename the function.", resp.Reasoning)
}

func TestHandleParse_MissingPatch(t *testing.T) {
	w := do(t, New(Config{}), http.MethodPost, "/v1/patch/parse", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(Config{})
	do(t, s, http.MethodPost, "/v1/patch/apply", ApplyRequest{Patch: patch("  return 1;", "  return 2;"), Document: fooDoc})
	do(t, s, http.MethodPost, "/v1/patch/apply", ApplyRequest{Patch: patch("missing", "x"), Document: fooDoc})

	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `gopatch_blocks_total{mode="exact"} 1`)
	assert.Contains(t, body, `gopatch_failures_total{kind="no_match"} 1`)
	assert.Contains(t, body, `gopatch_runs_total{result="success",stage="strict"} 1`)
	assert.True(t, strings.Contains(body, "gopatch_apply_duration_seconds_count 2"))
}
