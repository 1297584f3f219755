// Package store describes the record store every service talks to. Backends
// live in the sub packages.
package store

import (
	"context"
	"errors"
	"sort"
)

type Collection string

const (
	CollectionUser Collection = "user"
	CollectionTodo Collection = "todo"
)

// KeyAttribute is the primary key of every collection.
const KeyAttribute = "Id"

var (
	ErrNotFound           = errors.New("record not found")
	ErrConflict           = errors.New("record already exists")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrUnsupportedIndex   = errors.New("unsupported index")
	ErrInvalidDestination = errors.New("invalid destination")
)

// Index is a named secondary index supporting equality lookups on a single
// attribute.
type Index struct {
	Name      string
	Attribute string
}

var (
	HandleIndex = Index{Name: "Handle-index", Attribute: "Handle"}
	JwtIndex    = Index{Name: "Jwt-index", Attribute: "Jwt"}
)

// Indexes lists the secondary indexes maintained per collection.
var Indexes = map[Collection][]Index{
	CollectionUser: {HandleIndex, JwtIndex},
	CollectionTodo: nil,
}

func LookupIndex(c Collection, name string) (Index, error) {
	for _, idx := range Indexes[c] {
		if idx.Name == name {
			return idx, nil
		}
	}
	return Index{}, ErrUnsupportedIndex
}

// Query selects records from a collection. A zero Index scans the whole
// collection, otherwise records whose Index attribute equals Value are
// returned.
type Query struct {
	Index      Index
	Value      string
	Projection []string
}

func (q Query) IsScan() bool {
	return q.Index.Name == ""
}

// Assignments maps attribute names to new values. A nil value clears the
// attribute.
type Assignments map[string]any

// Names returns the assigned attribute names in a stable order.
func (a Assignments) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tables maps collections onto backend table names.
type Tables map[Collection]string

func DefaultTables() Tables {
	return Tables{
		CollectionUser: string(CollectionUser),
		CollectionTodo: string(CollectionTodo),
	}
}

func (t Tables) Name(c Collection) (string, error) {
	name, ok := t[c]
	if !ok || name == "" {
		return "", ErrUnknownCollection
	}
	return name, nil
}

// Store is a document store holding records keyed by KeyAttribute. Records are
// structs tagged for the backend in use; out parameters are pointers to a
// record, or to a slice of records for FetchMany.
type Store interface {
	FetchOne(ctx context.Context, c Collection, key string, projection []string, out any) error
	FetchMany(ctx context.Context, c Collection, q Query, out any) error
	Upsert(ctx context.Context, c Collection, record any) error
	// Create stores record only if no record with the same key exists.
	Create(ctx context.Context, c Collection, record any) error
	// PartialUpdate applies set to an existing record in one step and loads the
	// result into out.
	PartialUpdate(ctx context.Context, c Collection, key string, set Assignments, out any) error
	Delete(ctx context.Context, c Collection, key string) error
	Close() error
}
