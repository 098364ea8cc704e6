/*
Copyright © 2019 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/


package windfieldutil

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/windfield"
	"github.com/spatialmodel/windfield/internal/hash"
)

// coarseCache loads coarse grid files and keeps the most recently used
// grids in memory, so that weather situations sharing a file only read
// it once.
type coarseCache struct {
	cache     *requestcache.Cache
	downloads map[string]string
}

func newCoarseCache(size int) *coarseCache {
	return &coarseCache{
		cache: requestcache.NewCache(loadCoarse, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(size)),
		downloads: make(map[string]string),
	}
}

// get returns the coarse grid in path together with a key that changes
// whenever the file does. Remote files are only downloaded once.
func (c *coarseCache) get(ctx context.Context, path string) (*windfield.CoarseGrid, string, error) {
	local, ok := c.downloads[path]
	if !ok {
		var err error
		if local, err = maybeDownload(ctx, path); err != nil {
			return nil, "", err
		}
		c.downloads[path] = local
	}
	fi, err := os.Stat(local)
	if err != nil {
		return nil, "", fmt.Errorf("windfield: coarse grid file: %v", err)
	}
	key := hash.Key(local, fi.Size(), fi.ModTime().UnixNano())
	r, err := c.cache.NewRequest(ctx, local, key).Result()
	if err != nil {
		return nil, "", fmt.Errorf("windfield: loading coarse grid %s: %v", path, err)
	}
	return r.(*windfield.CoarseGrid), key, nil
}

func loadCoarse(ctx context.Context, request interface{}) (interface{}, error) {
	f, err := os.Open(request.(string))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return windfield.LoadCoarseGrid(f)
}
