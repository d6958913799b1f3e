package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local development. It
// applies the same JSON encoding as the production store so typed structs
// round-trip identically.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any // collection -> id -> fields
}

// NewMemoryStore returns an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]map[string]any{}}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal stored document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	flat, err := encode(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = map[string]map[string]any{}
	}
	m.data[collection][id] = flat
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: document missing", collection, id)
	}
	for key, value := range fields {
		normalized, err := normalizeValue(value)
		if err != nil {
			return err
		}
		doc[key] = normalized
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		id  string
		doc map[string]any
	}
	var matched []entry
	for id, doc := range m.data[collection] {
		ok, err := matchesAll(doc, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, entry{id: id, doc: doc})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			less := lessValue(matched[i].doc[q.OrderBy], matched[j].doc[q.OrderBy])
			greater := lessValue(matched[j].doc[q.OrderBy], matched[i].doc[q.OrderBy])
			if less != greater {
				if q.Desc {
					return greater
				}
				return less
			}
		}
		return matched[i].id < matched[j].id
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	docs := make([]Document, 0, len(matched))
	for _, e := range matched {
		raw, err := json.Marshal(e.doc)
		if err != nil {
			return nil, fmt.Errorf("marshal stored document: %w", err)
		}
		docs = append(docs, NewDocument(e.id, raw))
	}
	return docs, nil
}

func matchesAll(doc map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matches(doc[f.Field], f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matches(fieldValue any, f Filter) (bool, error) {
	want, err := normalizeValue(f.Value)
	if err != nil {
		return false, err
	}
	switch f.Op {
	case OpEqual:
		return equalValue(fieldValue, want), nil
	case OpIn:
		list, ok := want.([]any)
		if !ok {
			return false, fmt.Errorf("in filter on %q requires a slice value", f.Field)
		}
		for _, candidate := range list {
			if equalValue(fieldValue, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpGreaterThan:
		return lessValue(want, fieldValue), nil
	case OpGreaterThanOrEqual:
		return !lessValue(fieldValue, want), nil
	case OpLessThan:
		return lessValue(fieldValue, want), nil
	case OpLessThanOrEqual:
		return !lessValue(want, fieldValue), nil
	default:
		return false, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

// normalizeValue pushes a filter or update value through JSON so comparisons
// see the same representation documents were stored with.
func normalizeValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return normalized, nil
}

func equalValue(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return false
}

func lessValue(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs) < 0
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
