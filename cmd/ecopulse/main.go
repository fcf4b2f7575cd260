package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/ecopulse/ecopulse/internal/advice"
	"github.com/ecopulse/ecopulse/internal/api"
	"github.com/ecopulse/ecopulse/internal/config"
	"github.com/ecopulse/ecopulse/internal/httputil"
	"github.com/ecopulse/ecopulse/internal/imagegen"
	"github.com/ecopulse/ecopulse/internal/ingest"
	"github.com/ecopulse/ecopulse/internal/logging"
	"github.com/ecopulse/ecopulse/internal/scores"
	"github.com/ecopulse/ecopulse/internal/store"
)

type cli struct {
	config.Config `embed:""`

	Serve  serveCmd  `cmd:"" default:"1" help:"Seed the database if empty, then serve the API."`
	Ingest ingestCmd `cmd:"" help:"Seed the database if empty and exit."`
}

type serveCmd struct{}

type ingestCmd struct{}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("ecopulse"),
		kong.Description("EcoPulse city score service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.Bind(&c.Config),
	)

	logger := logging.New(c.LogLevel, c.LogFormat)
	slog.SetDefault(logger)

	if err := ctx.Run(); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func (serveCmd) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openAndPopulate(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := clockwork.NewRealClock()

	var narrator advice.Narrator
	if cfg.OpenAIAPIKey != "" {
		n, err := advice.NewOpenAINarrator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return err
		}
		narrator = n
		slog.Info("narrated analysis enabled", "model", cfg.OpenAIModel)
	}

	server := api.NewServer(st, scores.NewService(st, clock, loc), api.Options{
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Advisor:         advice.NewAdvisor(narrator, slog.Default()),
		CardCache:       imagegen.NewCardCache(cfg.CardCacheTTL, clock),
		Logger:          slog.Default(),
	})
	return server.Run(ctx)
}

func (ingestCmd) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openAndPopulate(ctx, cfg)
	if err != nil {
		return err
	}
	return st.Close()
}

// openAndPopulate opens and migrates the database, then runs the one-time
// seed. Feed failures are logged by the loader and do not stop startup.
func openAndPopulate(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	loader := ingest.NewLoader(st, ingest.Sources{
		Monthly:  cfg.MonthlyFeed,
		Forecast: cfg.ForecastFeed,
		Daily:    cfg.DailyFeed,
	}, ingest.NewSourceOpener(httputil.NewClient(0)), slog.Default())

	report, err := loader.Populate(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("populate: %w", err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		slog.Warn("startup seed incomplete", "batch", report.BatchID, "failed_feeds", len(failed))
	}
	return st, nil
}
