// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package llm wraps the AWS Bedrock ConverseStream API and builds the
// prompts that ask a model for SEARCH/REPLACE patches or full rewrites.
package llm

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/petar-djukic/go-patch/pkg/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ErrNoRewrite is returned when a rewrite response contains no fenced
// document.
var ErrNoRewrite = errors.New("response contains no fenced document")

// TemplateData holds the values injected into the prompt templates.
type TemplateData struct {
	Path     string // Document path, may be empty
	Language string // Fence language tag derived from Path
	Relaxed  bool   // Whitespace-insensitive matching is enabled
}

// NewTemplateData fills Language from the document path.
func NewTemplateData(path string, relaxed bool) TemplateData {
	return TemplateData{Path: path, Language: fenceLanguage(path), Relaxed: relaxed}
}

// RenderSystemPrompt renders the patch-request system prompt.
func RenderSystemPrompt(data TemplateData) (string, error) {
	return render("system.tmpl", data)
}

// RenderRewritePrompt renders the system prompt used when asking for a
// complete replacement document.
func RenderRewritePrompt(data TemplateData) (string, error) {
	return render("rewrite.tmpl", data)
}

func render(name string, data TemplateData) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s: %w", name, err)
	}

	return buf.String(), nil
}

// ConstructMessages builds the Bedrock API message array for a patch request.
//
// The message order is:
//  1. System message (separate field, not in messages array)
//  2. User message with the numbered document
//  3. User message with hint lines, when any are given
//  4. User message with the instruction
func ConstructMessages(systemPrompt string, doc types.Document, hints []string, instruction string) ([]brtypes.SystemContentBlock, []brtypes.Message) {
	system := System(systemPrompt)

	messages := []brtypes.Message{
		userMessage("## Document\n\n" + formatDocument(doc)),
	}

	if len(hints) > 0 {
		var buf strings.Builder
		buf.WriteString("## Hints\n\nThe edit belongs near these lines:\n\n")
		for _, h := range hints {
			fmt.Fprintf(&buf, "- `%s`\n", h)
		}
		messages = append(messages, userMessage(buf.String()))
	}

	messages = append(messages, userMessage(instruction))

	return system, messages
}

// System wraps a rendered system prompt for the Converse API.
func System(prompt string) []brtypes.SystemContentBlock {
	return []brtypes.SystemContentBlock{
		&brtypes.SystemContentBlockMemberText{Value: prompt},
	}
}

// ConstructRetryMessages appends the assistant's previous response and a
// follow-up message describing why its patch could not be applied.
func ConstructRetryMessages(prevMessages []brtypes.Message, assistantResponse, feedback string) []brtypes.Message {
	messages := make([]brtypes.Message, 0, len(prevMessages)+2)
	messages = append(messages, prevMessages...)
	messages = append(messages, assistantMessage(assistantResponse))
	messages = append(messages, userMessage("## Patch Failure\n\n"+feedback))
	return messages
}

// ExtractRewrite returns the contents of the last fenced block in a rewrite
// response. The result always ends with a newline.
func ExtractRewrite(response string) (string, error) {
	lines := strings.Split(response, "\n")

	var body []string
	var last []string
	inFence := false
	found := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				last = body
				found = true
				body = nil
			}
			inFence = !inFence
			continue
		}
		if inFence {
			body = append(body, line)
		}
	}

	if !found {
		return "", ErrNoRewrite
	}
	return strings.Join(last, "\n") + "\n", nil
}

// formatDocument formats a document with a path header and line numbers.
func formatDocument(doc types.Document) string {
	var buf strings.Builder
	if doc.Path != "" {
		fmt.Fprintf(&buf, "### %s\n\n", doc.Path)
	}

	lines := strings.Split(strings.TrimSuffix(doc.Content, "\n"), "\n")
	for i, line := range lines {
		fmt.Fprintf(&buf, "%4d │ %s\n", i+1, line)
	}

	return buf.String()
}

var fenceLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".html": "html",
	".css":  "css",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".md":   "markdown",
	".sh":   "bash",
}

func fenceLanguage(path string) string {
	return fenceLanguages[strings.ToLower(filepath.Ext(path))]
}

// userMessage creates a user message with text content.
func userMessage(text string) brtypes.Message {
	return brtypes.Message{
		Role: brtypes.ConversationRoleUser,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: text},
		},
	}
}

// assistantMessage creates an assistant message with text content.
func assistantMessage(text string) brtypes.Message {
	return brtypes.Message{
		Role: brtypes.ConversationRoleAssistant,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: text},
		},
	}
}
