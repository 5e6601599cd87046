// Package checkpoint records which coverage tiles of a city have already been
// searched so that an interrupted location harvest can resume.
//
// A checkpoint is a small JSON file per city, replaced atomically on every
// save:
//
//	mgr, _ := checkpoint.NewManager("", city.ID)
//	cp, _ := mgr.Load()
//	if cp == nil {
//		cp, _ = mgr.Create(city.ID, city.Name, runID, len(tiles))
//	}
//	if !cp.IsTileDone(tile.Key()) {
//		// search the tile, then
//		_ = mgr.RecordTile(cp, tile.Key())
//	}
//
// The default directory follows the platform's data directory convention
// (XDG_DATA_HOME on Linux).
package checkpoint
