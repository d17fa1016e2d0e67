package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Layering, outermost first: app > http > services > {data, realtime,
// observability} > domain > versioning > {pkg, platform}. Each layer may
// import inward, never outward.
func TestImportBoundaries(t *testing.T) {
	t.Helper()

	root, modulePath := moduleInfo(t)
	internalDir := filepath.Join(root, "internal")
	fset := token.NewFileSet()

	type violation struct {
		file string
		imp  string
		rule string
	}
	var violations []violation

	walkErr := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "node_modules", ".gocache":
				return filepath.SkipDir
			default:
				return nil
			}
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		layer := layerFor(rel)
		if layer == "" {
			return nil
		}
		disallowed := disallowedImports(modulePath, layer)
		if len(disallowed) == 0 {
			return nil
		}

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			for _, bad := range disallowed {
				if strings.HasPrefix(imp, bad) {
					violations = append(violations, violation{file: rel, imp: imp, rule: bad})
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}

	if len(violations) > 0 {
		var b strings.Builder
		b.WriteString("import boundary violations:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s imports %q (disallowed: %q)\n", v.file, v.imp, v.rule)
		}
		t.Fatal(b.String())
	}
}

// The versioning library must stay storage- and transport-agnostic: the
// only module-internal packages it may touch are pkg/ and platform/.
func TestVersioningImportsOnlyLeafPackages(t *testing.T) {
	t.Helper()

	root, modulePath := moduleInfo(t)
	dir := filepath.Join(root, "internal", "versioning")
	fset := token.NewFileSet()

	allowed := []string{
		modulePath + "/internal/pkg/",
		modulePath + "/internal/platform/",
		modulePath + "/internal/versioning",
	}

	type violation struct {
		file string
		imp  string
	}
	var violations []violation

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			if !strings.HasPrefix(imp, modulePath+"/") {
				continue
			}
			ok := false
			for _, pre := range allowed {
				if strings.HasPrefix(imp, pre) {
					ok = true
					break
				}
			}
			if !ok {
				violations = append(violations, violation{file: rel, imp: imp})
			}
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/versioning: %v", walkErr)
	}

	if len(violations) > 0 {
		var b strings.Builder
		b.WriteString("versioning must not depend on upper layers:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s imports %q\n", v.file, v.imp)
		}
		t.Fatal(b.String())
	}
}

func layerFor(rel string) string {
	switch {
	case strings.HasPrefix(rel, "internal/pkg/"):
		return "pkg"
	case strings.HasPrefix(rel, "internal/platform/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/versioning/"):
		return "versioning"
	case strings.HasPrefix(rel, "internal/domain/"):
		return "domain"
	case strings.HasPrefix(rel, "internal/observability/"):
		return "observability"
	case strings.HasPrefix(rel, "internal/realtime/"):
		return "realtime"
	case strings.HasPrefix(rel, "internal/data/"):
		return "data"
	case strings.HasPrefix(rel, "internal/services/"):
		return "services"
	case strings.HasPrefix(rel, "internal/http/"):
		return "http"
	default:
		return ""
	}
}

func disallowedImports(modulePath string, layer string) []string {
	i := func(suffix string) string { return modulePath + "/internal/" + suffix }
	switch layer {
	case "pkg":
		return []string{
			i("platform/"), i("versioning/"), i("domain/"), i("observability/"),
			i("realtime/"), i("data/"), i("services/"), i("http/"), i("app"),
		}
	case "platform":
		return []string{
			i("pkg/"), i("versioning/"), i("domain/"), i("observability/"),
			i("realtime/"), i("data/"), i("services/"), i("http/"), i("app"),
		}
	case "versioning":
		return []string{
			i("domain/"), i("observability/"), i("realtime/"),
			i("data/"), i("services/"), i("http/"), i("app"),
		}
	case "domain":
		return []string{
			i("observability/"), i("realtime/"),
			i("data/"), i("services/"), i("http/"), i("app"),
		}
	case "observability":
		return []string{
			i("versioning/"), i("realtime/"),
			i("data/"), i("services/"), i("http/"), i("app"),
		}
	case "realtime":
		return []string{
			i("versioning/"), i("domain/"), i("observability/"),
			i("data/"), i("services/"), i("http/"), i("app"),
		}
	case "data":
		return []string{
			i("observability/"), i("realtime/"),
			i("services/"), i("http/"), i("app"),
		}
	case "services":
		return []string{
			i("http/"), i("app"),
		}
	case "http":
		return []string{
			i("data/"), i("app"),
		}
	default:
		return nil
	}
}

func moduleInfo(t *testing.T) (root, modulePath string) {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err = findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err = readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return root, modulePath
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
