// Package pagination implements keyset paging over snowflake ids, newest
// first. Page tokens are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size" validate:"omitempty,gte=1,lte=250"`
}

// Size clamps the requested page size to (0, max], falling back to def.
func (p Pagination) Size(def, max int) int {
	size := p.PageSize
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return size
}

// After decodes the page token into the id the next page starts below.
// An empty token yields 0.
func (p Pagination) After() (snowflake.ID, error) {
	token := strings.TrimSpace(p.PageToken)
	if token == "" {
		return 0, nil
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		return 0, ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(cursor.ID))
	if err != nil || id <= 0 {
		return 0, ErrInvalidPageToken
	}
	return id, nil
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Page trims a result fetched with limit size+1 and builds the page info.
// The next token is set only when another page exists.
func Page[T any](items []*T, size int, key func(*T) (snowflake.ID, time.Time)) ([]*T, PageInfo) {
	if len(items) <= size {
		return items, PageInfo{}
	}
	items = items[:size]
	id, createdAt := key(items[len(items)-1])
	token, err := EncodeCursor(Cursor{ID: id.String(), CreatedAt: createdAt.UTC().Format(time.RFC3339)})
	if err != nil {
		return items, PageInfo{}
	}
	return items, PageInfo{NextPageToken: token, HasMore: true}
}
