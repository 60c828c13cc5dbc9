package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/okian/curvewatch/internal/config"
	"github.com/okian/curvewatch/internal/fixtures"
	"github.com/okian/curvewatch/pkg/logger"
)

func main() {
	def := fixtures.DefaultConfig()
	var (
		accounts    = flag.Int("accounts", def.Accounts, "Number of accounts to simulate")
		maxAge      = flag.Int("max-age", def.MaxAge, "Last statement observed per account")
		curveAges   = flag.Int("curve-ages", def.CurveAges, "Statements covered by the assumption curves")
		series      = flag.String("series", strings.Join(def.Series, ","), "Comma-separated risk series")
		seed        = flag.Uint64("seed", def.Seed, "Random seed")
		excluded    = flag.Float64("excluded", def.ExcludedShare, "Share of accounts flagged as excluded")
		factsOut    = flag.String("facts", "facts.csv", "Output file for statement facts")
		assumptions = flag.String("assumptions", "assumptions.csv", "Output file for assumption curves (empty to skip)")
		configFile  = flag.String("config", "", "Optional config file; its dimension edges label the curves")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx := context.Background()

	var opts []fixtures.Option
	if *configFile != "" {
		cfg, err := config.LoadFile(ctx, *configFile)
		if err != nil {
			logger.Get().Fatal(ctx, "failed to load config", logger.Error(err))
		}
		opts = append(opts, fixtures.WithMapper(cfg.Dimension.Mapper()))
	}

	g := fixtures.New(fixtures.Config{
		Accounts:      *accounts,
		MaxAge:        *maxAge,
		CurveAges:     *curveAges,
		Series:        strings.Split(*series, ","),
		Seed:          *seed,
		ExcludedShare: *excluded,
	}, opts...)

	if err := g.WriteFiles(ctx, *factsOut, *assumptions); err != nil {
		logger.Get().Fatal(ctx, "failed to write fixtures", logger.Error(err))
	}
}
