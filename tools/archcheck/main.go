// Command archcheck enforces the package layering of this module: a
// package may import packages at its own level or below, never above.
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

type Level int

const (
	LevelCmd Level = iota + 1
	LevelOrchestration
	LevelDomain
	LevelConfig
	LevelFoundation
	LevelTypes
)

type layer struct {
	prefix string
	level  Level
}

// Longest prefix wins, so pkg/config sits above the rest of pkg/.
var layers = []layer{
	{"cmd", LevelCmd},
	{"tools", LevelCmd},
	{"internal/detector", LevelOrchestration},
	{"internal/differ", LevelDomain},
	{"internal/analyzer", LevelDomain},
	{"internal/suppression", LevelDomain},
	{"internal/storage", LevelDomain},
	{"internal/output", LevelDomain},
	{"pkg/config", LevelConfig},
	{"internal/errors", LevelFoundation},
	{"internal/logger", LevelFoundation},
	{"internal/retry", LevelFoundation},
	{"pkg", LevelTypes},
}

type Violation struct {
	FromFile    string
	FromPackage string
	FromLevel   Level
	ToPackage   string
	ToLevel     Level
}

func packageLevel(pkgPath string) Level {
	var best layer
	for _, l := range layers {
		if (pkgPath == l.prefix || strings.HasPrefix(pkgPath, l.prefix+"/")) && len(l.prefix) > len(best.prefix) {
			best = l
		}
	}
	return best.level
}

func levelName(l Level) string {
	switch l {
	case LevelCmd:
		return "CMD (Level 1)"
	case LevelOrchestration:
		return "ORCHESTRATION (Level 2)"
	case LevelDomain:
		return "DOMAIN (Level 3)"
	case LevelConfig:
		return "CONFIG (Level 4)"
	case LevelFoundation:
		return "FOUNDATION (Level 5)"
	case LevelTypes:
		return "TYPES (Level 6)"
	default:
		return "UNKNOWN"
	}
}

// modulePath reads the module path from root/go.mod
func modulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("no module directive in %s", filepath.Join(root, "go.mod"))
	}
	return path, nil
}

func checkFile(root, module, filePath string) ([]Violation, error) {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}
	fromPackage := filepath.ToSlash(rel)
	fromLevel := packageLevel(fromPackage)
	if fromLevel == 0 {
		return nil, nil
	}

	var violations []Violation
	for _, imp := range node.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		if !strings.HasPrefix(importPath, module+"/") {
			continue
		}
		importPath = strings.TrimPrefix(importPath, module+"/")

		toLevel := packageLevel(importPath)
		if toLevel != 0 && toLevel < fromLevel {
			violations = append(violations, Violation{
				FromFile:    filePath,
				FromPackage: fromPackage,
				FromLevel:   fromLevel,
				ToPackage:   importPath,
				ToLevel:     toLevel,
			})
		}
	}
	return violations, nil
}

func walkGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// check walks every Go file under root and returns the layering violations
func check(root string) (int, []Violation, error) {
	module, err := modulePath(root)
	if err != nil {
		return 0, nil, err
	}
	files, err := walkGoFiles(root)
	if err != nil {
		return 0, nil, err
	}

	var all []Violation
	for _, f := range files {
		v, err := checkFile(root, module, f)
		if err != nil {
			return 0, nil, fmt.Errorf("checking %s: %w", f, err)
		}
		all = append(all, v...)
	}
	return len(files), all, nil
}

func report(w io.Writer, checked int, violations []Violation) {
	fmt.Fprintf(w, "Checked %d Go files\n", checked)
	if len(violations) == 0 {
		fmt.Fprintln(w, "No architectural level violations found")
		return
	}

	fmt.Fprintf(w, "Found %d architectural level violations:\n", len(violations))

	grouped := make(map[string][]Violation)
	for _, v := range violations {
		key := fmt.Sprintf("%s -> %s", levelName(v.FromLevel), levelName(v.ToLevel))
		grouped[key] = append(grouped[key], v)
	}
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "\n%s (%d):\n", k, len(grouped[k]))
		for i, v := range grouped[k] {
			if i >= 5 {
				fmt.Fprintf(w, "   ... and %d more\n", len(grouped[k])-5)
				break
			}
			fmt.Fprintf(w, "   %s imports %s\n", v.FromPackage, v.ToPackage)
		}
	}
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	checked, violations, err := check(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archcheck: %v\n", err)
		os.Exit(2)
	}
	report(os.Stdout, checked, violations)
	if len(violations) > 0 {
		os.Exit(1)
	}
}
