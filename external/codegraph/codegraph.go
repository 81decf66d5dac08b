// Package codegraph defines the contract for the code-graph
// collaborator a workflow's GRAPH_QUERY tasks call into: symbol
// lookup, call/reference graphs, reachability, cycle detection, and
// symbol-level edits. Implementation is out of scope — this package
// carries the interface and the JSON edit-payload helpers only.
package codegraph

import (
	"context"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SymbolID identifies a symbol within the collaborator's index.
type SymbolID string

// Symbol is a minimal description of a located symbol.
type Symbol struct {
	ID   SymbolID
	Name string
	Path string
	Line int
}

// Edge is a directed relationship between two symbols (call, import,
// reference).
type Edge struct {
	From SymbolID
	To   SymbolID
	Kind string
}

// Store is the contractual surface a code-graph collaborator exposes.
// Every method is read-only except PatchSymbol/RenameSymbol.
type Store interface {
	FindSymbolByName(ctx context.Context, name string) ([]Symbol, error)
	FindSymbolByID(ctx context.Context, id SymbolID) (Symbol, error)
	CallersOf(ctx context.Context, id SymbolID) ([]Symbol, error)
	References(ctx context.Context, id SymbolID) ([]Edge, error)
	ReachableFrom(ctx context.Context, id SymbolID) ([]Symbol, error)
	Cycles(ctx context.Context) ([][]SymbolID, error)
	PatchSymbol(ctx context.Context, id SymbolID, patch []byte) error
	RenameSymbol(ctx context.Context, id SymbolID, newName string) error
}

// BuildPatchPayload constructs a patch_symbol edit payload: the free-
// form JSON document the Store contract passes to PatchSymbol,
// starting from an empty object and setting each field path to its
// value in order.
func BuildPatchPayload(fields map[string]any) ([]byte, error) {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	doc := "{}"
	var err error
	for _, path := range paths {
		doc, err = sjson.Set(doc, path, fields[path])
		if err != nil {
			return nil, err
		}
	}
	return []byte(doc), nil
}

// ExtractField reads a single field out of a patch_symbol payload
// using gjson's dotted-path syntax, returning ("", false) if absent.
func ExtractField(payload []byte, path string) (string, bool) {
	result := gjson.GetBytes(payload, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
