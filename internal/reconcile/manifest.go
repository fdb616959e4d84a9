package reconcile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
)

// Manifest is what we read out of a plugin's _meta.lua.
type Manifest struct {
	Name    string
	Version string
}

// ParseManifest extracts the declared name and version from the table the
// chunk returns. The chunk is parsed, never run. Missing fields, or a chunk
// that does not parse, leave the fields empty.
func ParseManifest(data []byte) Manifest {
	chunk, err := parse.Parse(bytes.NewReader(data), ManifestFile)
	if err != nil {
		return Manifest{}
	}
	table := returnedTable(chunk)
	if table == nil {
		return Manifest{}
	}

	var m Manifest
	for _, f := range table.Fields {
		key, ok := f.Key.(*ast.StringExpr)
		if !ok {
			continue
		}
		switch key.Value {
		case "name":
			m.Name = literal(f.Value)
		case "version":
			m.Version = literal(f.Value)
		}
	}
	return m
}

// returnedTable finds the table constructor returned at the top level,
// following one local variable: `local meta = {...} return meta`.
func returnedTable(chunk []ast.Stmt) *ast.TableExpr {
	for i := len(chunk) - 1; i >= 0; i-- {
		ret, ok := chunk[i].(*ast.ReturnStmt)
		if !ok || len(ret.Exprs) == 0 {
			continue
		}
		switch e := ret.Exprs[0].(type) {
		case *ast.TableExpr:
			return e
		case *ast.IdentExpr:
			return assignedTable(chunk[:i], e.Value)
		}
		return nil
	}
	return nil
}

func assignedTable(stmts []ast.Stmt, name string) *ast.TableExpr {
	for i := len(stmts) - 1; i >= 0; i-- {
		switch s := stmts[i].(type) {
		case *ast.LocalAssignStmt:
			for j, n := range s.Names {
				if n == name && j < len(s.Exprs) {
					t, _ := s.Exprs[j].(*ast.TableExpr)
					return t
				}
			}
		case *ast.AssignStmt:
			for j, lhs := range s.Lhs {
				if id, ok := lhs.(*ast.IdentExpr); ok && id.Value == name && j < len(s.Rhs) {
					t, _ := s.Rhs[j].(*ast.TableExpr)
					return t
				}
			}
		}
	}
	return nil
}

// literal returns the text of a string or number literal, else "".
func literal(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.StringExpr:
		return strings.TrimSpace(v.Value)
	case *ast.NumberExpr:
		return strings.TrimSpace(v.Value)
	}
	return ""
}

// ReadLocalManifest parses the manifest of an installed plugin directory.
func ReadLocalManifest(dir string) (Manifest, error) {
	p := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(p)
	if err != nil {
		return Manifest{}, &apperr.IOError{Path: p, Inner: err}
	}
	return ParseManifest(data), nil
}
