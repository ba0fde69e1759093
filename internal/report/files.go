package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
)

type valuesRecord struct {
	Date   string `csv:"date"`
	ModelA string `csv:"model_a"`
	ModelB string `csv:"model_b"`
}

// EncodeValuesCSV writes the joined value series of both models.
func EncodeValuesCSV(w io.Writer, joined []analysis.JoinedPoint) error {
	records := make([]valuesRecord, 0, len(joined))
	for _, p := range joined {
		records = append(records, valuesRecord{
			Date:   p.Date.Format(model.DateLayout),
			ModelA: decimal.NewFromFloat(p.A).StringFixed(6),
			ModelB: decimal.NewFromFloat(p.B).StringFixed(6),
		})
	}
	return gocsv.Marshal(&records, w)
}

// WriteAll writes the ledger CSV, the value series CSV and the XLSX workbook
// into the configured output directory and returns the written paths.
func WriteAll(out *pipeline.Outcome, cfg config.OutputConfig) ([]string, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", cfg.Dir, err)
	}

	var written []string
	if cfg.LedgerCSV != "" {
		path := filepath.Join(cfg.Dir, cfg.LedgerCSV)
		if err := backtest.WriteLedgerCSV(path, out.Hedged.Ledger); err != nil {
			return written, fmt.Errorf("write ledger: %w", err)
		}
		written = append(written, path)
	}
	if cfg.SeriesCSV != "" && out.Analysis != nil {
		path := filepath.Join(cfg.Dir, cfg.SeriesCSV)
		if err := writeValuesCSV(path, out.Analysis.Joined); err != nil {
			return written, fmt.Errorf("write series: %w", err)
		}
		written = append(written, path)
	}
	if cfg.XLSX != "" {
		path := filepath.Join(cfg.Dir, cfg.XLSX)
		if err := WriteXLSX(path, out); err != nil {
			return written, fmt.Errorf("write workbook: %w", err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeValuesCSV(path string, joined []analysis.JoinedPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeValuesCSV(f, joined)
}
