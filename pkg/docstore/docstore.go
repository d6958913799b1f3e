package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual              Op = "=="
	OpIn                 Op = "in"
	OpGreaterThan        Op = ">"
	OpGreaterThanOrEqual Op = ">="
	OpLessThan           Op = "<"
	OpLessThanOrEqual    Op = "<="
)

// Filter constrains a query to documents whose field compares to the value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes an equality/range lookup over one collection.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Document is one raw document returned by a query. Decode unmarshals it into
// a typed struct for the collection.
type Document struct {
	ID   string
	data []byte
}

// NewDocument wraps raw document bytes; used by Store implementations.
func NewDocument(id string, data []byte) Document {
	return Document{ID: id, data: data}
}

// Decode unmarshals the document into out.
func (d Document) Decode(out any) error {
	if err := json.Unmarshal(d.data, out); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Store is the contract over the external document store. Get reports
// expected absence through the boolean, never through an error. Every call is
// a single round trip; callers own read-before-write sequencing.
type Store interface {
	Get(ctx context.Context, collection, id string, out any) (bool, error)
	Set(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
}

// encode converts a typed document into the flat map form stores persist.
// Going through JSON keeps struct tags authoritative for field names.
func encode(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("flatten document: %w", err)
	}
	return flat, nil
}
