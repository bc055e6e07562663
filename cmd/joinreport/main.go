package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/woozymasta/hospmap/internal/config"
	"github.com/woozymasta/hospmap/internal/dataset"
	"github.com/woozymasta/hospmap/internal/logger"
	"github.com/woozymasta/hospmap/internal/presentation"
	"github.com/woozymasta/hospmap/internal/spatial"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Output     string `short:"o" long:"out"    description:"Output file path. Writes to stdout if empty"`
	Format     string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
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

	client := &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSec) * time.Second}
	loader := dataset.NewLoader(client, cfg.Datasets, cfg.Fetch.MaxBytes)

	var (
		mu    sync.Mutex
		colls = make(map[dataset.Kind]dataset.Collection, len(dataset.AllKinds))
	)
	loader.FetchAll(context.Background(), dataset.AllKinds, func(k dataset.Kind, c dataset.Collection, _ error) {
		mu.Lock()
		colls[k] = c
		mu.Unlock()
	})

	facilities := dataset.Facilities(colls[dataset.KindFacilities], cfg.Properties.FacilityName)
	regions := dataset.Regions(colls[dataset.KindRegions], cfg.Properties.RegionName)

	idx, err := spatial.Join(regions, facilities)
	if err != nil {
		log.Fatal().Err(err).Msg("Spatial join failed")
	}

	engine := presentation.New(cfg)
	engine.SetIndex(idx)
	engine.SetCounts(dataset.Counts(colls[dataset.KindCounts], cfg.Properties.RegionName, cfg.Properties.Count))

	report := engine.Report()

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(report)
	} else {
		outputData, err = json.MarshalIndent(report, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling report: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		log.Info().
			Int("facilities", report.Facilities).
			Int("regions", len(report.Regions)).
			Int("unassigned", len(report.Unassigned)).
			Int("ambiguous", len(report.Ambiguous)).
			Str("out", opts.Output).
			Str("format", opts.Format).
			Msg("Join report written")
	} else {
		fmt.Println(string(outputData))
	}
}
