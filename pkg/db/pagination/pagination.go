// Package pagination implements newest-first keyset paging over
// (created_at, id) for the list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Keyset is a row position in a created_at DESC, id DESC listing.
type Keyset struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type token struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// Size clamps the requested page size to [1, MaxPageSize].
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// After decodes PageToken. An empty token yields nil.
func (p Pagination) After() (*Keyset, error) {
	raw := strings.TrimSpace(p.PageToken)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var t token
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, ErrInvalidToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(t.ID))
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, t.CreatedAt)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Keyset{ID: id, CreatedAt: createdAt.UTC()}, nil
}

func Encode(k Keyset) string {
	b, _ := json.Marshal(token{ID: k.ID.String(), CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339Nano)})
	return base64.RawURLEncoding.EncodeToString(b)
}

// Scope restricts a query to rows strictly after k and applies the listing
// order. Callers fetch size+1 rows and pass them to Trim.
func Scope(k *Keyset, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if k != nil {
			db = db.Where("created_at < ? OR (created_at = ? AND id < ?)", k.CreatedAt, k.CreatedAt, k.ID)
		}
		db = db.Order("created_at DESC").Order("id DESC")
		if size > 0 {
			db = db.Limit(size + 1)
		}
		return db
	}
}

// Trim cuts the look-ahead row and builds the page info.
func Trim[T any](items []T, size int, key func(T) Keyset) ([]T, PageInfo) {
	if size <= 0 || len(items) <= size {
		return items, PageInfo{}
	}
	items = items[:size]
	return items, PageInfo{
		HasMore:       true,
		NextPageToken: Encode(key(items[len(items)-1])),
	}
}
