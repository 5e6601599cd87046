package harvest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTileKey(t *testing.T) {
	assert.Equal(t, "44.430000,26.100000", Tile{Center: orb.Point{26.1, 44.43}}.Key())
}

func TestLoadTilesGeoJSON(t *testing.T) {
	path := writeFile(t, "tiles.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [26.1, 44.43]}},
			{"type": "Feature", "properties": {}, "geometry": {"type": "MultiPoint", "coordinates": [[26.12, 44.43], [26.14, 44.45]]}}
		]
	}`)

	tiles, err := LoadTiles(path)
	require.NoError(t, err)
	require.Len(t, tiles, 3)
	assert.Equal(t, orb.Point{26.1, 44.43}, tiles[0].Center)
	assert.Equal(t, orb.Point{26.14, 44.45}, tiles[2].Center)
}

func TestLoadTilesRejectsPolygons(t *testing.T) {
	path := writeFile(t, "tiles.json", `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}}
		]
	}`)

	_, err := LoadTiles(path)
	assert.ErrorContains(t, err, "tiles must be points")
}

func TestLoadTilesYAML(t *testing.T) {
	path := writeFile(t, "tiles.yaml", "- latitude: 44.43\n  longitude: 26.1\n- latitude: 44.45\n  longitude: 26.12\n")

	tiles, err := LoadTiles(path)
	require.NoError(t, err)
	require.Len(t, tiles, 2)
	assert.Equal(t, orb.Point{26.12, 44.45}, tiles[1].Center)

	bad := writeFile(t, "bad.yml", "- latitude: 44.43\n")
	_, err = LoadTiles(bad)
	assert.ErrorContains(t, err, "latitude and longitude are required")
}

func TestLoadTilesMissingFile(t *testing.T) {
	_, err := LoadTiles(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}
