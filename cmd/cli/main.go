package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/data"
	"cfd-hedge-backtest/internal/logger"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
	"cfd-hedge-backtest/internal/report"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "fetch":
		cmdFetch(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli backtest --config examples/configs/covid_2020.yaml [--data market.csv] [--out results] [--no-files]")
	fmt.Println("  cli fetch --config examples/configs/covid_2020.yaml --out data/market.csv [--start 2019-01-01] [--end 2020-12-31]")
	fmt.Println("  cli validate --config examples/configs/covid_2020.yaml")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - backtest compares model A (buy and hold) with model B (equity + short index CFD hedge)")
	fmt.Println("  - without data.file (or --data) market data is fetched from FMP using the key in $FMP_API_KEY")
}

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	dataPath := fs.String("data", "", "Optional: market-data CSV (overrides data.file)")
	outDir := fs.String("out", "", "Optional: output directory (overrides output.dir)")
	noFiles := fs.Bool("no-files", false, "Print tables only; skip CSV/XLSX output")
	envFile := fs.String("env", ".env", "Env file to load if present")
	_ = fs.Parse(args)

	log := setup(*envFile)
	defer log.Sync()

	cfg := loadConfig(*cfgPath)
	if *dataPath != "" {
		cfg.Data.File = *dataPath
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tl, err := pipeline.LoadTimeline(ctx, cfg, log)
	if err != nil {
		fail(err)
	}

	runner := pipeline.NewRunner(pipeline.Options{Logger: log})
	defer runner.Close()
	out, err := runner.Run(ctx, pipeline.Request{Timeline: tl, Config: cfg})
	if err != nil {
		fail(err)
	}

	report.Print(os.Stdout, out)

	if *noFiles {
		return
	}
	written, err := report.WriteAll(out, cfg.Output)
	if err != nil {
		fail(err)
	}
	fmt.Println()
	for _, p := range written {
		fmt.Printf("Wrote %s\n", p)
	}
}

func cmdFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	outPath := fs.String("out", "data/market.csv", "Output CSV path")
	start := fs.String("start", "", "Optional: start date YYYY-MM-DD (overrides data.start_date)")
	end := fs.String("end", "", "Optional: end date YYYY-MM-DD (overrides data.end_date)")
	envFile := fs.String("env", ".env", "Env file to load if present")
	_ = fs.Parse(args)

	log := setup(*envFile)
	defer log.Sync()

	cfg := loadConfig(*cfgPath)
	cfg.Data.File = "" // always go to the API
	if *start != "" {
		cfg.Data.StartDate = *start
	}
	if *end != "" {
		cfg.Data.EndDate = *end
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rows, err := pipeline.FetchRows(ctx, cfg, log)
	if err != nil {
		fail(fmt.Errorf("fetch: %w", err))
	}
	rate := cfg.Rate()
	for i := range rows {
		if rows[i].Rate == nil {
			r := rate
			rows[i].Rate = &r
		}
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fail(err)
	}
	if err := data.WriteCSV(*outPath, rows); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %d rows (%s/%s) to %s\n", len(rows), cfg.Data.SymbolIndex, cfg.Data.SymbolVolatility, *outPath)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	dataPath := fs.String("data", "", "Optional: market-data CSV (overrides data.file)")
	envFile := fs.String("env", ".env", "Env file to load if present")
	_ = fs.Parse(args)

	log := setup(*envFile)
	defer log.Sync()

	cfg := loadConfig(*cfgPath)
	if *dataPath != "" {
		cfg.Data.File = *dataPath
	}
	periods, err := cfg.Periods()
	if err != nil {
		fail(err)
	}
	fmt.Printf("config OK: capital=%s allocation=%.2f policy threshold=%.2f ratio=%.2f periods=%d\n",
		report.Money(cfg.InitialCapital), cfg.EquityAllocation,
		cfg.HedgingStrategy.VIXThreshold, cfg.HedgingStrategy.HedgeRatio, len(periods))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	tl, err := pipeline.LoadTimeline(ctx, cfg, log)
	if err != nil {
		fail(err)
	}
	fmt.Printf("data OK: %d trading days %s..%s\n", tl.Len(),
		tl.Start().Format(model.DateLayout), tl.End().Format(model.DateLayout))
	for _, p := range periods {
		if p.End.Before(tl.Start()) || p.Start.After(tl.End()) {
			fmt.Printf("warning: period %s (%s..%s) is outside the data\n", p.Name,
				p.Start.Format(model.DateLayout), p.End.Format(model.DateLayout))
		}
	}
}

func setup(envFile string) *zap.SugaredLogger {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", envFile, err)
		}
	}
	return logger.New()
}

func loadConfig(path string) *config.Config {
	if path == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fail(err)
	}
	return cfg
}

// fail prints err and exits; stage failures keep their "<stage> stage
// failed" prefix.
func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		os.Exit(3)
	}
	os.Exit(1)
}
