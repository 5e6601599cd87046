// Package normalize turns Graph API items into the records the store persists.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/graph"
	"cityharvest/pkg/store"
)

var (
	// ErrNoImages is returned for a photo without a usable image variant
	ErrNoImages = errors.New("photo has no image variants")
	// ErrMissingID is returned for a place without an id
	ErrMissingID = errors.New("place has no id")
)

// Location maps a place search result onto a location row of cityID
func Location(place graph.Place, cityID int64) store.Location {
	return store.Location{
		LocationID: place.ID,
		Name:       place.Name,
		Latitude:   place.Location.Latitude,
		Longitude:  place.Location.Longitude,
		CityID:     cityID,
	}
}

// SecureURL rewrites an http scheme to https and leaves anything else alone
func SecureURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 5 && strings.EqualFold(raw[:5], "http:") {
		return "https:" + raw[5:]
	}
	return raw
}

// PhotoURL returns the https URL of the first, largest image of photo
func PhotoURL(photo graph.Photo) (string, error) {
	if len(photo.Images) == 0 || strings.TrimSpace(photo.Images[0].Source) == "" {
		return "", ErrNoImages
	}
	return SecureURL(photo.Images[0].Source), nil
}

// Locations normalizes every place on page. Items that cannot be decoded or
// carry no id are returned as malformed-item errors instead of records.
func Locations(page *graph.Page, cityID int64) ([]store.Location, []error) {
	places, bad := graph.Decode[graph.Place](page)
	out := make([]store.Location, 0, len(places))
	for _, place := range places {
		if place.ID == "" {
			bad = append(bad, errs.MalformedItem(fmt.Sprintf("place %q", place.Name), ErrMissingID))
			continue
		}
		out = append(out, Location(place, cityID))
	}
	return out, bad
}

// Photos returns the photo URLs on page in order, without duplicates.
// Malformed items are skipped and returned as errors.
func Photos(page *graph.Page) (urls []string, skipped []error) {
	photos, skipped := graph.Decode[graph.Photo](page)
	seen := make(map[string]struct{}, len(photos))
	urls = make([]string, 0, len(photos))
	for _, photo := range photos {
		u, err := PhotoURL(photo)
		if err != nil {
			skipped = append(skipped, errs.MalformedItem(fmt.Sprintf("photo %s", photo.ID), err))
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls, skipped
}
