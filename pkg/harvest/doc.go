// Package harvest drives the location and photo harvests of a city.
//
// LocationHarvester walks the coverage tiles of a city and stores every place
// found around their centers. PhotoHarvester walks the events of the city
// that started within the activity window and stores the photos posted to
// each event and to the album matched to it.
//
// Both run work items through a bounded worker pool, stop at the first fatal
// error and return a Summary of what was done.
package harvest
