package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Pagination requests the First records after the opaque cursor After.
type Pagination struct {
	First int
	After string
}

// Page is one slice of an id-ordered result. TotalCount counts every
// record matching the filter regardless of the cursor.
type Page[T any] struct {
	Items       []T    `json:"items"`
	TotalCount  int64  `json:"total_count"`
	EndCursor   string `json:"end_cursor,omitempty"`
	HasNextPage bool   `json:"has_next_page"`
}

type Cursor struct {
	ID int64 `json:"id"`
}

func EncodeCursor(cursor Cursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func DecodeCursor(encoded string) (Cursor, error) {
	var cursor Cursor
	if encoded == "" {
		return cursor, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	if err := json.Unmarshal(data, &cursor); err != nil {
		return cursor, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if cursor.ID < 0 {
		return cursor, fmt.Errorf("%w: negative id", ErrInvalidCursor)
	}

	return cursor, nil
}

// resolve returns the page size to fetch and the id to start after.
func (p Pagination) resolve() (int, int64, error) {
	limit := p.First
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	cursor, err := DecodeCursor(p.After)
	if err != nil {
		return 0, 0, err
	}

	return limit, cursor.ID, nil
}

// newPage trims items fetched with limit+1 rows to limit and derives the
// cursor fields.
func newPage[T any](items []T, limit int, total int64, idOf func(T) int64) *Page[T] {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}

	page := &Page[T]{
		Items:       items,
		TotalCount:  total,
		HasNextPage: hasMore,
	}
	if len(items) > 0 {
		page.EndCursor = EncodeCursor(Cursor{ID: idOf(items[len(items)-1])})
	}

	return page
}
