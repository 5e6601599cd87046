package graph

import (
	"net/url"
	"strconv"

	"github.com/paulmach/orb"
)

// SearchPath is the place search endpoint
const SearchPath = "/search"

// PhotosPath returns the photo stream of an event, album or page
func PhotosPath(id string) string {
	return "/" + url.PathEscape(id) + "/photos"
}

// AlbumsPath returns the album listing of a page
func AlbumsPath(id string) string {
	return "/" + url.PathEscape(id) + "/albums"
}

// FormatCenter renders a point as the "lat,lon" center parameter
func FormatCenter(p orb.Point) string {
	return strconv.FormatFloat(p.Lat(), 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon(), 'f', -1, 64)
}

// PlaceSearch searches places within distance meters of center
func PlaceSearch(center orb.Point, distance int) Request {
	return Request{
		Path: SearchPath,
		Query: url.Values{
			"q":        {""},
			"type":     {"place"},
			"center":   {FormatCenter(center)},
			"distance": {strconv.Itoa(distance)},
		},
	}
}

// PhotoList lists the photos of an event or album with their image variants
func PhotoList(id string) Request {
	return Request{
		Path:        PhotosPath(id),
		Query:       url.Values{"fields": {"images"}},
		PassThrough: []string{"pretty"},
	}
}

// AlbumList lists the albums of a page, newest first
func AlbumList(pageID string) Request {
	return Request{
		Path:        AlbumsPath(pageID),
		Query:       url.Values{},
		PassThrough: []string{"pretty"},
	}
}
