package tiles

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/woozymasta/hospmap/internal/geo"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SeedStats summarizes a seeding run. Ready counts tiles present on disk
// afterwards, whether downloaded or already cached.
type SeedStats struct {
	Total   int
	Ready   int64
	Missing int64
	Failed  int64
}

// Range lists the tiles covering bbox (minLon, minLat, maxLon, maxLat) at zoom z.
func Range(bbox [4]float64, z int) []Coord {
	x0, y0 := geo.TileAt(bbox[0], bbox[3], z)
	x1, y1 := geo.TileAt(bbox[2], bbox[1], z)

	out := make([]Coord, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, Coord{Z: z, X: x, Y: y})
		}
	}
	return out
}

// Seed downloads every tile of bbox for the zooms minZ..maxZ using a pool of
// concurrency workers. Existing tiles are kept unless force is set.
// Individual tile failures are counted, not returned.
func (c *Cache) Seed(ctx context.Context, bbox [4]float64, minZ, maxZ, concurrency int, force bool) (SeedStats, error) {
	var stats SeedStats
	if concurrency <= 0 {
		concurrency = 1
	}
	maxZ = min(maxZ, c.maxZoom)

	for z := minZ; z <= maxZ; z++ {
		level := Range(bbox, z)
		stats.Total += len(level)

		log.Debug().Int("zoom", z).Int("count", len(level)).Msg("Processing zoom level")

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, t := range level {
			g.Go(func() error {
				err := c.fetch(gctx, t, c.Path(t), force)
				switch {
				case err == nil:
					atomic.AddInt64(&stats.Ready, 1)
				case errors.Is(err, ErrNoTile):
					atomic.AddInt64(&stats.Missing, 1)
				default:
					atomic.AddInt64(&stats.Failed, 1)
					log.Trace().Err(err).Str("url", BuildURL(c.upstream, t)).Msg("Failed to download tile")
				}
				return gctx.Err()
			})
		}

		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	return stats, nil
}
