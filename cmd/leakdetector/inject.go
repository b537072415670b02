// inject.go inserts the leak detector bootstrap into the program's main().
package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"strconv"

	"github.com/kolkov/leakdetector/cmd/leakdetector/runtime"
)

// injectResult holds the output of bootstrap injection for one file.
type injectResult struct {
	// Code is the resulting source code (unchanged when Injected is false)
	Code string

	// Injected reports whether Init/Fini calls were inserted
	Injected bool
}

// injectFile rewrites a Go source file so the leak detector boots with the
// program.
//
// For a file declaring `package main` with a main() function, it:
//  1. Adds the import `leak "github.com/kolkov/leakdetector/leak"`
//  2. Prepends `leak.Init()` to the main body
//  3. Prepends `defer leak.Fini()` right after it
//
// Files without main() pass through unchanged, as do files that already
// call leak.Init: injection is idempotent so instrumented code can be
// re-instrumented safely.
//
// Returns:
//   - injectResult with the (possibly rewritten) source
//   - Error if the file cannot be read or parsed
func injectFile(path string) (*injectResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	mainFn := findMainFunc(file)
	if file.Name.Name != "main" || mainFn == nil || mainFn.Body == nil {
		return &injectResult{Code: string(src)}, nil
	}

	if alreadyInjected(file) {
		return &injectResult{Code: string(src)}, nil
	}

	addNamedImport(file, "leak", runtime.RuntimePackagePath())

	// leak.Init() first, defer leak.Fini() second, then the original body.
	initStmt := &ast.ExprStmt{X: leakCall("Init")}
	finiStmt := &ast.DeferStmt{Call: leakCall("Fini")}
	mainFn.Body.List = append([]ast.Stmt{initStmt, finiStmt}, mainFn.Body.List...)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to format injected code for %s: %w", path, err)
	}

	return &injectResult{Code: buf.String(), Injected: true}, nil
}

// findMainFunc returns the top-level main function declaration, or nil.
func findMainFunc(file *ast.File) *ast.FuncDecl {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if fn.Name.Name == "main" && fn.Recv == nil {
			return fn
		}
	}
	return nil
}

// alreadyInjected reports whether the file already imports the runtime
// package. One import is enough: injection always pairs the import with
// the Init/Fini calls.
func alreadyInjected(file *ast.File) bool {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if path == runtime.RuntimePackagePath() {
			return true
		}
	}
	return false
}

// leakCall builds a `leak.<name>()` call expression.
func leakCall(name string) *ast.CallExpr {
	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent("leak"),
			Sel: ast.NewIdent(name),
		},
	}
}

// addNamedImport adds an aliased import to the file's import declarations.
//
// If the file has an existing import declaration, the new spec is appended
// to it; otherwise a new declaration is inserted after the package clause.
// file.Imports is rebuilt so later passes see a consistent view.
func addNamedImport(file *ast.File, alias, path string) {
	spec := &ast.ImportSpec{
		Name: ast.NewIdent(alias),
		Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(path)},
	}

	// Find an existing import declaration to extend
	var importDecl *ast.GenDecl
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if ok && gen.Tok == token.IMPORT {
			importDecl = gen
			break
		}
	}

	if importDecl == nil {
		// No imports yet - create a new parenthesized declaration
		importDecl = &ast.GenDecl{
			Tok:    token.IMPORT,
			Lparen: 1, // non-zero position forces parentheses
			Specs:  []ast.Spec{spec},
		}
		file.Decls = append([]ast.Decl{importDecl}, file.Decls...)
	} else {
		if importDecl.Lparen == 0 && len(importDecl.Specs) > 0 {
			importDecl.Lparen = 1
		}
		importDecl.Specs = append(importDecl.Specs, spec)
	}

	file.Imports = append(file.Imports, spec)
}
