package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

const MaxPageSize = 250

var ErrInvalidPageToken = errors.New("invalid_page_token")

// Pagination is bound from the query string. A zero PageSize means unpaged.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size" binding:"omitempty,gte=1,lte=250"`
}

func (p Pagination) Enabled() bool {
	return p.PageSize > 0 || p.PageToken != ""
}

// Limit returns the page size to request, one more than the page so HasMore can be detected.
func (p Pagination) Limit() int {
	size := p.PageSize
	if size <= 0 {
		size = 10
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size + 1
}

// Cursor points at the last row of a page ordered by (created_at DESC, id DESC).
type Cursor struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"nextPageToken,omitempty"`
	HasMore       bool   `json:"hasMore"`
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
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	if cursor.ID == 0 || cursor.CreatedAt.IsZero() {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// Trim cuts data fetched with Limit() down to the page and builds its PageInfo.
func Trim[T any](data []T, p Pagination, extractCursor func(T) Cursor) ([]T, *PageInfo, error) {
	pageSize := p.Limit() - 1
	if len(data) <= pageSize {
		return data, &PageInfo{HasMore: false}, nil
	}

	data = data[:pageSize]
	token, err := EncodeCursor(extractCursor(data[len(data)-1]))
	if err != nil {
		return nil, nil, err
	}
	return data, &PageInfo{HasMore: true, NextPageToken: token}, nil
}
