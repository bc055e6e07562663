package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/logger"
	"github.com/woozymasta/hospmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Concurrency int    `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency" default:"8"`
	MinZoom     int    `long:"min-zoom"              env:"MIN_ZOOM"    description:"First zoom level to seed, overrides config" default:"-1"`
	MaxZoom     int    `short:"z" long:"max-zoom"    env:"MAX_ZOOM"    description:"Last zoom level to seed, overrides config" default:"-1"`
	Force       bool   `short:"f" long:"force"       description:"Force overwrite of existing tiles"`
	FastCheck   bool   `short:"F" long:"fast-check"  description:"Skip seeding if the cache directory exists"`
}

func main() {
	_ = godotenv.Load(".env")

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.FastCheck {
		if _, err := os.Stat(cfg.Tiles.CacheDir); err == nil {
			log.Info().
				Str("dir", cfg.Tiles.CacheDir).
				Msg("Tile cache exists, skipping (fast-check)")
			return
		}
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}

	minZoom, maxZoom := cfg.Tiles.MinZoom, cfg.Tiles.MaxZoom
	if opts.MinZoom >= 0 {
		minZoom = opts.MinZoom
	}
	if opts.MaxZoom >= 0 {
		maxZoom = opts.MaxZoom
	}

	bbox := cfg.Tiles.BBox
	if bbox == [4]float64{} {
		// a small box around the view center
		c := cfg.View.Center
		bbox = [4]float64{c[0] - 0.25, c[1] - 0.2, c[0] + 0.25, c[1] + 0.2}
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().
		Floats64("bbox", bbox[:]).
		Int("min_zoom", minZoom).
		Int("max_zoom", maxZoom).
		Int("concurrency", opts.Concurrency).
		Msg("Starting tile loader")

	stats, err := tiles.New(client, cfg.Tiles).Seed(ctx, bbox, minZoom, maxZoom, opts.Concurrency, opts.Force)
	if err != nil {
		log.Fatal().Err(err).Msg("Tile seeding interrupted")
	}

	log.Info().
		Int("total", stats.Total).
		Int64("ready", stats.Ready).
		Int64("missing", stats.Missing).
		Int64("failed", stats.Failed).
		Msg("Loader finished successfully")
}
