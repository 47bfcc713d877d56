package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlMarkerPattern  = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type location struct {
	file string
	line int
	name string
}

// linter checks SQL-looking string constants across files. Markers must be
// present and unique, since logs and metrics identify statements by them.
type linter struct {
	seen       map[string]location
	violations []violation
}

func newLinter() *linter {
	return &linter{seen: make(map[string]location)}
}

// lintSource checks a single file with a fresh linter. src is read from path
// when nil.
func lintSource(path string, src any) ([]violation, error) {
	l := newLinter()
	err := l.check(path, src)
	return l.violations, err
}

func (l *linter) check(path string, src any) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			raw, pos, ok := stringValue(value)
			if !ok || !sqlMarkerPattern.MatchString(raw) {
				continue
			}
			here := location{file: path, line: fset.Position(pos).Line, name: joinNames(vs.Names)}
			m := uuidMarkerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				l.report(here, "missing or invalid --sql <uuid> marker")
				continue
			}
			if prev, dup := l.seen[m[1]]; dup {
				l.report(here, fmt.Sprintf("marker %s already used by %s at %s:%d", m[1], prev.name, prev.file, prev.line))
				continue
			}
			l.seen[m[1]] = here
		}
		return true
	})
	return nil
}

func (l *linter) report(at location, message string) {
	l.violations = append(l.violations, violation{file: at.file, line: at.line, name: at.name, message: message})
}

// stringValue flattens a literal or a concatenation of literals and
// identifiers. Identifiers contribute nothing, so only the literal text is
// inspected.
func stringValue(expr ast.Expr) (string, token.Pos, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return "", token.NoPos, false
		}
		raw, err := unquote(e.Value)
		if err != nil {
			return "", token.NoPos, false
		}
		return raw, e.Pos(), true
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return "", token.NoPos, false
		}
		left, pos, lok := stringValue(e.X)
		right, _, rok := stringValue(e.Y)
		if !lok && !rok {
			return "", token.NoPos, false
		}
		if !lok {
			pos = e.Pos()
		}
		return left + " " + right, pos, true
	case *ast.ParenExpr:
		return stringValue(e.X)
	}
	return "", token.NoPos, false
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
