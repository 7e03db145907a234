// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package outline names the declaration enclosing a line of source text.
// Labels are used in failure diagnostics so that a model can tell two
// identical snippets apart ("func (*Server) Start" vs "func main").
package outline

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
	"golang.org/x/tools/go/ast/astutil"
)

// declQuery is a tree-sitter pattern capturing a declaration as @decl and
// its name as @name.
type declQuery struct {
	kind    string
	pattern string
}

// langSpec holds the tree-sitter language and declaration queries for a file
// type.
type langSpec struct {
	lang  *sitter.Language
	decls []declQuery
}

var jsDecls = []declQuery{
	{"function", `(function_declaration name: (identifier) @name) @decl`},
	{"class", `(class_declaration name: (identifier) @name) @decl`},
	{"method", `(method_definition name: (property_identifier) @name) @decl`},
	{"const", `(variable_declarator name: (identifier) @name value: (arrow_function)) @decl`},
}

var tsDecls = append([]declQuery{
	{"class", `(class_declaration name: (type_identifier) @name) @decl`},
	{"interface", `(interface_declaration name: (type_identifier) @name) @decl`},
}, jsDecls[0], jsDecls[2], jsDecls[3])

var yamlDecls = []declQuery{
	{"key", `(block_mapping_pair key: (flow_node) @name) @decl`},
}

// supportedLangs maps file extensions to their langSpec. Go is handled with
// go/parser instead.
var supportedLangs = map[string]*langSpec{
	".js":  {lang: javascript.GetLanguage(), decls: jsDecls},
	".jsx": {lang: javascript.GetLanguage(), decls: jsDecls},
	".mjs": {lang: javascript.GetLanguage(), decls: jsDecls},
	".ts":  {lang: typescript.GetLanguage(), decls: tsDecls},
	".tsx": {lang: tsx.GetLanguage(), decls: tsDecls},
	".py": {lang: python.GetLanguage(), decls: []declQuery{
		{"def", `(function_definition name: (identifier) @name) @decl`},
		{"class", `(class_definition name: (identifier) @name) @decl`},
	}},
	".html": {lang: html.GetLanguage(), decls: []declQuery{
		{"element", `(element (start_tag (tag_name) @name)) @decl`},
	}},
	".htm": {lang: html.GetLanguage(), decls: []declQuery{
		{"element", `(element (start_tag (tag_name) @name)) @decl`},
	}},
	".css": {lang: css.GetLanguage(), decls: []declQuery{
		{"rule", `(rule_set (selectors) @name) @decl`},
	}},
	".yaml": {lang: yaml.GetLanguage(), decls: yamlDecls},
	".yml":  {lang: yaml.GetLanguage(), decls: yamlDecls},
}

// Supported reports whether Enclosing can label lines of path.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := supportedLangs[ext]
	return ok || ext == ".go"
}

// Enclosing returns a label for the innermost declaration containing the
// 1-based line, such as "func Foo", "class Bar" or "element div". It returns
// "" when the language is unknown, the source does not parse or no
// declaration encloses the line.
func Enclosing(path string, src []byte, line int) string {
	if line < 1 {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".go" {
		return enclosingGo(path, src, line)
	}
	spec, ok := supportedLangs[ext]
	if !ok {
		return ""
	}
	return enclosingTreeSitter(spec, src, line)
}

func enclosingGo(path string, src []byte, line int) string {
	fset := token.NewFileSet()
	file, _ := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if file == nil {
		return ""
	}
	tf := fset.File(file.Pos())
	if tf == nil || line > tf.LineCount() {
		return ""
	}

	// Anchor on the first non-blank byte of the line.
	offset := tf.Offset(tf.LineStart(line))
	for offset < len(src) && (src[offset] == ' ' || src[offset] == '\t') {
		offset++
	}
	if offset >= tf.Size() {
		return ""
	}
	pos := tf.Pos(offset)

	nodes, _ := astutil.PathEnclosingInterval(file, pos, pos)
	valueName := ""
	for _, n := range nodes {
		switch d := n.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil && len(d.Recv.List) > 0 {
				return "func (" + types.ExprString(d.Recv.List[0].Type) + ") " + d.Name.Name
			}
			return "func " + d.Name.Name
		case *ast.TypeSpec:
			return "type " + d.Name.Name
		case *ast.ValueSpec:
			if len(d.Names) > 0 {
				valueName = d.Names[0].Name
			}
		case *ast.GenDecl:
			if valueName == "" {
				valueName = firstSpecName(d)
			}
			if valueName != "" {
				return d.Tok.String() + " " + valueName
			}
		}
	}
	return ""
}

// firstSpecName names the first type or value declared by d. Imports have no
// name.
func firstSpecName(d *ast.GenDecl) string {
	if len(d.Specs) == 0 {
		return ""
	}
	switch s := d.Specs[0].(type) {
	case *ast.TypeSpec:
		return s.Name.Name
	case *ast.ValueSpec:
		if len(s.Names) > 0 {
			return s.Names[0].Name
		}
	}
	return ""
}

func enclosingTreeSitter(spec *langSpec, src []byte, line int) string {
	root, err := sitter.ParseCtx(context.Background(), src, spec.lang)
	if err != nil || root == nil {
		return ""
	}

	row := uint32(line - 1)
	best := ""
	bestSize := ^uint32(0)

	for _, d := range spec.decls {
		q, err := sitter.NewQuery([]byte(d.pattern), spec.lang)
		if err != nil {
			continue
		}
		qc := sitter.NewQueryCursor()
		qc.Exec(q, root)

		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			var decl, name *sitter.Node
			for _, c := range m.Captures {
				switch q.CaptureNameForId(c.Index) {
				case "decl":
					decl = c.Node
				case "name":
					name = c.Node
				}
			}
			if decl == nil || name == nil {
				continue
			}
			if decl.StartPoint().Row > row || decl.EndPoint().Row < row {
				continue
			}
			if size := decl.EndByte() - decl.StartByte(); size < bestSize {
				bestSize = size
				best = d.kind + " " + label(name.Content(src))
			}
		}
		qc.Close()
		q.Close()
	}
	return best
}

// label keeps the first line of a captured name, shortened for display.
func label(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
