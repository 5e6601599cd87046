// Package match finds the photo album of an event among the albums of the
// event's location by comparing phonetic keys of their names.
package match

import (
	"iter"
	"strings"
	"time"

	"cityharvest/pkg/graph"
)

// DefaultThreshold is the score an album must exceed to be accepted
const DefaultThreshold = 70

// ReservedAlbumNames are albums every page has; they never belong to an event
var ReservedAlbumNames = []string{
	"Profile Pictures",
	"Timeline Photos",
	"Cover Photos",
	"Mobile Uploads",
}

// Target is the event an album is searched for
type Target struct {
	Name      string
	StartTime time.Time
}

// Candidate is a scored album
type Candidate struct {
	Album graph.Album
	Score float64
}

// Accumulator carries the matching state from one album page to the next
type Accumulator struct {
	Best  Candidate
	Found bool
	// Seen counts every album observed, reserved ones included
	Seen int
	// Stop is set once an album older than the event has been observed
	Stop bool
}

// Result returns the best candidate when its score is strictly above threshold
func (acc Accumulator) Result(threshold float64) (Candidate, bool) {
	if !acc.Found || acc.Best.Score <= threshold {
		return Candidate{}, false
	}
	return acc.Best, true
}

// Score is the similar-text percentage of the metaphone keys of two names
func Score(albumName, eventName string) float64 {
	return SimilarPercent(Metaphone(Fold(albumName)), Metaphone(Fold(eventName)))
}

// IsReserved reports whether name is one of ReservedAlbumNames
func IsReserved(name string) bool {
	name = strings.TrimSpace(name)
	for _, r := range ReservedAlbumNames {
		if name == r {
			return true
		}
	}
	return false
}

// Qualifies reports whether album was created strictly before eventStart and
// is not reserved. Albums are listed newest first, so a qualifying album means
// no later page can hold the event's album.
func Qualifies(album graph.Album, eventStart time.Time) bool {
	return !album.CreatedTime.IsZero() &&
		album.CreatedTime.Before(eventStart) &&
		!IsReserved(album.Name)
}

// Matcher scores album pages against an event
type Matcher struct {
	Threshold float64
}

// New returns a Matcher; a non-positive threshold selects DefaultThreshold
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Observe scores one page of albums and returns the updated accumulator.
// Reserved albums are never candidates. On equal scores the earlier album wins.
func (m *Matcher) Observe(acc Accumulator, albums []graph.Album, target Target) Accumulator {
	for _, album := range albums {
		acc.Seen++
		if IsReserved(album.Name) {
			continue
		}

		score := Score(album.Name, target.Name)
		if !acc.Found || score > acc.Best.Score {
			acc.Best = Candidate{Album: album, Score: score}
			acc.Found = true
		}
		if Qualifies(album, target.StartTime) {
			acc.Stop = true
		}
	}
	return acc
}

// Scan observes pages until one of them sets Stop or they run out. The
// caller decides whether the accumulator is final; see Accumulator.Stop.
func (m *Matcher) Scan(pages iter.Seq[[]graph.Album], target Target) Accumulator {
	var acc Accumulator
	for albums := range pages {
		acc = m.Observe(acc, albums, target)
		if acc.Stop {
			break
		}
	}
	return acc
}
