// Command sqllint fails when a SQL string constant lacks a `--sql <uuid>`
// marker or reuses one. Usage: go run ./internal/tools/sqllint [paths...]
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func main() {
	flag.Parse()
	os.Exit(run(flag.Args(), os.Stderr))
}

func run(targets []string, stderr io.Writer) int {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	files, err := goFiles(targets)
	if err != nil {
		fmt.Fprintf(stderr, "sqllint: %v\n", err)
		return 2
	}

	l := newLinter()
	for _, f := range files {
		if err := l.check(f, nil); err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 2
		}
	}
	if len(l.violations) == 0 {
		return 0
	}

	sort.Slice(l.violations, func(i, j int) bool {
		a, b := l.violations[i], l.violations[j]
		if a.file != b.file {
			return a.file < b.file
		}
		return a.line < b.line
	})
	fmt.Fprintf(stderr, "sqllint: %d statement(s) with marker problems\n", len(l.violations))
	for _, v := range l.violations {
		fmt.Fprintf(stderr, "  %s:%d %s: %s\n", v.file, v.line, v.name, v.message)
	}
	return 1
}

// goFiles expands directories into non-test Go sources, skipping hidden,
// underscore-prefixed and vendor directories.
func goFiles(targets []string) ([]string, error) {
	var out []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				out = append(out, target)
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(name) == ".go" && !strings.HasSuffix(name, "_test.go") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
