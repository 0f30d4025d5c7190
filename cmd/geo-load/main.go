// Command geo-load runs the bulk loaders without going through the API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/EmpoweredVote/EV-Geo/internal/app"
	"github.com/EmpoweredVote/EV-Geo/internal/config"
	"github.com/EmpoweredVote/EV-Geo/internal/ingest"
	"github.com/EmpoweredVote/EV-Geo/internal/logger"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Options `group:"Logger options"`

	ConfigFile string   `short:"c" long:"config"   env:"EVGEO_CONFIG"  description:"Path to configuration file" default:"config.yaml"`
	Entities   []string `short:"e" long:"entity"   description:"Entity to load (city, dma, pipe); repeatable, default all"`
	Policy     string   `short:"p" long:"policy"   description:"Row error policy (file, row); overrides the configuration" choice:"file" choice:"row"`
	DataDir    string   `short:"d" long:"data-dir" description:"Directory holding the source files; overrides the configuration"`
}

func main() {
	_ = godotenv.Load(".env.local")

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
	if opts.Policy != "" {
		cfg.Ingest.Policy = opts.Policy
	}
	if opts.DataDir != "" {
		cfg.Data.Dir = opts.DataDir
	}

	kinds := ingest.Kinds
	if len(opts.Entities) > 0 {
		kinds = nil
		for _, e := range opts.Entities {
			k, err := ingest.ParseKind(e)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid --entity")
			}
			kinds = append(kinds, k)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}
	defer a.Close()

	failed := 0
	for _, k := range kinds {
		rep, err := a.Loader.Load(ctx, k)
		if err != nil {
			failed++
			log.Error().Err(err).Str("entity", string(k)).Str("run_id", rep.RunID).Msg("Load failed")
			continue
		}
		log.Info().
			Str("entity", string(k)).
			Str("run_id", rep.RunID).
			Bool("loaded", rep.Loaded).
			Int("rows", rep.Count).
			Int("skipped", rep.Skipped).
			Msg(rep.Message())
	}

	if failed > 0 {
		a.Close()
		os.Exit(1)
	}
}
