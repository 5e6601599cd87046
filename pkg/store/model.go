package store

import "time"

// Location is a place found by the place search, unique by LocationID
type Location struct {
	ID         int64   `gorm:"primaryKey"`
	LocationID string  `gorm:"column:location_id;size:64;not null;uniqueIndex"`
	Name       string  `gorm:"size:255"`
	Latitude   float64 `gorm:"not null"`
	Longitude  float64 `gorm:"not null"`
	CityID     int64   `gorm:"not null;index"`
}

func (Location) TableName() string { return "location" }

// Event is written by the event importer; only AlbumID is ever updated here
type Event struct {
	ID         int64     `gorm:"primaryKey"`
	EventID    string    `gorm:"column:event_id;size:64;not null;uniqueIndex"`
	Name       string    `gorm:"size:255"`
	StartTime  time.Time `gorm:"not null;index"`
	LocationID int64     `gorm:"not null;index"`
	AlbumID    *string   `gorm:"column:album_id;size:64"`
}

func (Event) TableName() string { return "event" }

// Photo is unique by its https URL
type Photo struct {
	ID         int64  `gorm:"primaryKey"`
	PhotoURL   string `gorm:"column:photo_url;size:768;not null;uniqueIndex"`
	EventID    int64  `gorm:"not null;index"`
	LocationID int64  `gorm:"not null;index"`
}

func (Photo) TableName() string { return "photo" }

// EventRef is an event joined with its location, as needed by the photo harvester
type EventRef struct {
	ID        int64
	EventID   string
	Name      string
	StartTime time.Time
	AlbumID   *string
	// LocationRowID is location.id, LocationID the external place id
	LocationRowID int64
	LocationID    string
}

// HasAlbum reports whether an album has already been resolved for the event
func (e EventRef) HasAlbum() bool {
	return e.AlbumID != nil && *e.AlbumID != ""
}
