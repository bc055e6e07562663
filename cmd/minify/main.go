package main

import (
	"fmt"
	"log"
	"os"

	"github.com/woozymasta/hospmap/assets"
	"github.com/woozymasta/hospmap/internal/config"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file, defaults are used if missing" default:"config.yaml"`
	Output     string `short:"o" long:"out"    description:"Output file path" default:"assets/index.html"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	title, attribution := "", ""
	if cfg, err := config.Load(opts.ConfigFile); err == nil {
		title, attribution = cfg.Title, cfg.Attribution
	} else {
		var cfg config.Config
		cfg.ApplyDefaults()
		title = cfg.Title
	}

	page, err := assets.Render(title, attribution)
	if err != nil {
		log.Fatal("error render page:", err)
	}

	err = os.WriteFile(opts.Output, page.HTML, 0644)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("minify done")
}
