// Package tiles keeps a local webp cache of the basemap raster tiles,
// filled from an upstream XYZ tile server.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/metrics"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// Size is the edge length of a tile in pixels.
const Size = 256

const (
	fetchTimeout = 30 * time.Second
	maxTileBytes = 8 << 20
)

var (
	// ErrOutOfRange is returned for coordinates outside the tile grid or the configured zooms.
	ErrOutOfRange = errors.New("tile out of range")
	// ErrNoTile is returned when upstream has no usable tile.
	ErrNoTile = errors.New("no tile")
)

// Coord addresses one XYZ tile.
type Coord struct {
	Z, X, Y int
}

// String returns z/x/y.
func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether the coordinate lies on the grid of its zoom level.
func (c Coord) Valid() bool {
	if c.Z < 0 || c.Z > 30 {
		return false
	}
	n := 1 << c.Z
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// Children returns the four tiles covering c at the next zoom.
func (c Coord) Children() [4]Coord {
	nx, ny := c.X*2, c.Y*2
	return [4]Coord{
		{Z: c.Z + 1, X: nx, Y: ny},
		{Z: c.Z + 1, X: nx + 1, Y: ny},
		{Z: c.Z + 1, X: nx, Y: ny + 1},
		{Z: c.Z + 1, X: nx + 1, Y: ny + 1},
	}
}

// Cache serves tiles from disk and downloads missing ones on demand.
type Cache struct {
	client    *http.Client
	upstream  string
	dir       string
	userAgent string
	quality   float32
	maxZoom   int
	maxBytes  int64

	group singleflight.Group
}

// New creates a cache rooted at cfg.CacheDir.
func New(client *http.Client, cfg config.TilesConfig) *Cache {
	if client == nil {
		client = http.DefaultClient
	}

	return &Cache{
		client:    client,
		upstream:  cfg.Upstream,
		dir:       cfg.CacheDir,
		userAgent: cfg.UserAgent,
		quality:   float32(cfg.Quality),
		maxZoom:   cfg.MaxZoom,
		maxBytes:  maxTileBytes,
	}
}

// Path returns the on-disk location of a tile.
func (c *Cache) Path(t Coord) string {
	return filepath.Join(c.dir, strconv.Itoa(t.Z), strconv.Itoa(t.X), strconv.Itoa(t.Y)+".webp")
}

// Get returns the path of a cached tile, downloading it first when missing.
// Concurrent requests for the same tile share one download.
func (c *Cache) Get(ctx context.Context, t Coord) (string, error) {
	if !t.Valid() || t.Z > c.maxZoom {
		return "", fmt.Errorf("%w: %s", ErrOutOfRange, t)
	}

	path := c.Path(t)
	if cached(path) {
		metrics.TileRequests.WithLabelValues("hit").Inc()
		return path, nil
	}

	// the download is shared, so it must not die with the first caller
	_, err, _ := c.group.Do(path, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return nil, c.fetch(fctx, t, path, false)
	})

	switch {
	case err == nil:
		metrics.TileRequests.WithLabelValues("fetched").Inc()
		return path, nil
	case errors.Is(err, ErrNoTile):
		metrics.TileRequests.WithLabelValues("miss").Inc()
	default:
		metrics.TileRequests.WithLabelValues("error").Inc()
	}
	return "", err
}

// fetch downloads one tile and stores it as webp. It reports ErrNoTile for
// 404s and for empty or undecodable payloads.
func (c *Cache) fetch(ctx context.Context, t Coord, outPath string, force bool) error {
	if !force && cached(outPath) {
		return nil
	}

	url := BuildURL(c.upstream, t)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return ErrNoTile
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > c.maxBytes {
		return fmt.Errorf("tile %s exceeds %d bytes", t, c.maxBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Failed to decode image")
		return fmt.Errorf("%w: %w", ErrNoTile, err)
	}

	// map servers answer 1px images for areas they do not cover
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return ErrNoTile
	}

	// hi-dpi upstreams serve 512px tiles
	if b := img.Bounds(); b.Dx() != Size || b.Dy() != Size {
		dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	return c.save(outPath, img)
}

// save writes through a temp file so readers never see a partial tile.
func (c *Cache) save(outPath string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".tile-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := webp.Encode(tmp, img, &webp.Options{Lossless: false, Quality: c.quality}); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), outPath)
}

// BuildURL fills the {z}, {x}, {y} and {tms_y} placeholders of a template.
func BuildURL(tpl string, c Coord) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(c.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(c.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Z) - 1
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(maxCoord-c.Y))
	}

	return s
}

// Transparent returns an encoded empty tile served when no imagery exists.
func Transparent() ([]byte, error) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cached(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
