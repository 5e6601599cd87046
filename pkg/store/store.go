// Package store persists harvested locations and photos.
//
// Every insert is a single INSERT ... ON CONFLICT DO NOTHING statement
// against a unique natural key, so repeated or parallel runs never create
// duplicate rows and never modify rows that already exist.
package store

import (
	"context"
	"time"
)

// Store is the persistence boundary of the harvesters
type Store interface {
	// UpsertLocation inserts loc unless its LocationID exists; it reports whether a row was added
	UpsertLocation(ctx context.Context, loc *Location) (bool, error)
	// UpsertPhoto inserts p unless its PhotoURL exists; it reports whether a row was added
	UpsertPhoto(ctx context.Context, p *Photo) (bool, error)
	// RecentEvents returns the city's events that started after since
	RecentEvents(ctx context.Context, cityID int64, since time.Time) ([]EventRef, error)
	// SetEventAlbum records albumID on an event whose album is null or empty
	SetEventAlbum(ctx context.Context, eventRowID int64, albumID string) (bool, error)
	// EventAlbum returns the album recorded on an event, or "" when none is
	EventAlbum(ctx context.Context, eventRowID int64) (string, error)
	Migrate(ctx context.Context) error
	Close() error
}
