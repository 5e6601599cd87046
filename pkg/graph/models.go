package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errs "cityharvest/pkg/errors"
)

// Page is one page of a Graph API collection. Items are kept raw so a single
// malformed item does not fail the whole page.
type Page struct {
	Data   []json.RawMessage `json:"data"`
	Paging *Paging           `json:"paging,omitempty"`
}

// Paging carries the continuation references of a Page
type Paging struct {
	Next     string   `json:"next,omitempty"`
	Previous string   `json:"previous,omitempty"`
	Cursors  *Cursors `json:"cursors,omitempty"`
}

// Cursors are the opaque cursor values of cursor-based pagination
type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// HasNext reports whether the page carries a continuation reference
func (p *Page) HasNext() bool {
	return p != nil && p.Paging != nil && p.Paging.Next != ""
}

// Place is a place search result
type Place struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Location PlaceLocation `json:"location"`
}

// PlaceLocation holds the coordinates of a Place
type PlaceLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Photo is a photo with its image variants, largest first
type Photo struct {
	ID     string  `json:"id"`
	Images []Image `json:"images"`
}

// Image is one rendition of a Photo
type Image struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Album is a photo album listed on a page
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedTime Time   `json:"created_time"`
}

// Time decodes Graph API timestamps such as 2016-08-01T18:00:00+0000
type Time struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.Format(timeLayouts[0]) + `"`), nil
}

// Decode decodes every item of the page into T. Items that fail to decode
// are returned as malformed-item errors, in page order, and left out of items.
func Decode[T any](p *Page) (items []T, bad []error) {
	if p == nil {
		return nil, nil
	}
	items = make([]T, 0, len(p.Data))
	for i, raw := range p.Data {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			bad = append(bad, errs.MalformedItem(fmt.Sprintf("item %d", i), err))
			continue
		}
		items = append(items, item)
	}
	return items, bad
}
