package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// City is the unit a harvest run works on
type City struct {
	ID   int64
	Name string
}

// Tile is one coverage circle of a city, searched around its center
type Tile struct {
	Center orb.Point
}

// Key identifies the tile in checkpoints and error messages
func (t Tile) Key() string {
	return strconv.FormatFloat(t.Center.Lat(), 'f', 6, 64) + "," + strconv.FormatFloat(t.Center.Lon(), 'f', 6, 64)
}

type yamlTile struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// LoadTiles reads tile centers from a GeoJSON FeatureCollection of Point or
// MultiPoint features, or from a YAML list of {latitude, longitude}.
func LoadTiles(path string) ([]Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiles: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLTiles(data)
	default:
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse tiles %s: %w", path, err)
		}
		return TilesFromFeatures(fc)
	}
}

// TilesFromFeatures collects the points of fc as tiles
func TilesFromFeatures(fc *geojson.FeatureCollection) ([]Tile, error) {
	var tiles []Tile
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			tiles = append(tiles, Tile{Center: g})
		case orb.MultiPoint:
			for _, p := range g {
				tiles = append(tiles, Tile{Center: p})
			}
		default:
			return nil, fmt.Errorf("feature %d: tiles must be points, got %s", i, f.Geometry.GeoJSONType())
		}
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles in feature collection")
	}
	return tiles, nil
}

func parseYAMLTiles(data []byte) ([]Tile, error) {
	var raw []yamlTile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse tiles: %w", err)
	}
	tiles := make([]Tile, 0, len(raw))
	for i, r := range raw {
		if r.Latitude == nil || r.Longitude == nil {
			return nil, fmt.Errorf("tile %d: latitude and longitude are required", i)
		}
		tiles = append(tiles, Tile{Center: orb.Point{*r.Longitude, *r.Latitude}})
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles in file")
	}
	return tiles, nil
}
