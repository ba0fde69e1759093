package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
)

const (
	SeriesSheet     = "Series"
	LedgerSheet     = "Ledger"
	MetricsSheet    = "Metrics"
	HypothesesSheet = "Hypotheses"
)

type excelStyles struct {
	header   int
	currency int
	percent  int
	number   int
	date     int
}

// WriteXLSX writes the run workbook to path, creating the directory if needed.
func WriteXLSX(path string, out *pipeline.Outcome) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	fx, err := Workbook(out)
	if err != nil {
		return err
	}
	defer fx.Close()
	return fx.SaveAs(path)
}

// EncodeXLSX streams the run workbook to w.
func EncodeXLSX(w io.Writer, out *pipeline.Outcome) error {
	fx, err := Workbook(out)
	if err != nil {
		return err
	}
	defer fx.Close()
	return fx.Write(w)
}

// Workbook builds the four-sheet workbook. The caller owns the returned file.
func Workbook(out *pipeline.Outcome) (*excelize.File, error) {
	fx := excelize.NewFile()

	if err := fx.SetSheetName(fx.GetSheetName(0), SeriesSheet); err != nil {
		fx.Close()
		return nil, err
	}
	for _, name := range []string{LedgerSheet, MetricsSheet, HypothesesSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			fx.Close()
			return nil, err
		}
	}

	styles, err := createStyles(fx)
	if err != nil {
		fx.Close()
		return nil, err
	}

	steps := []func(*excelize.File, *pipeline.Outcome, excelStyles) error{
		writeSeriesSheet,
		writeLedgerSheet,
		writeMetricsSheet,
		writeHypothesesSheet,
	}
	for _, step := range steps {
		if err := step(fx, out, styles); err != nil {
			fx.Close()
			return nil, err
		}
	}
	return fx, nil
}

func createStyles(fx *excelize.File) (excelStyles, error) {
	var s excelStyles
	var err error

	// Header: dark slate gray with white bold text
	s.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return s, err
	}

	cell := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
	right := &excelize.Alignment{Horizontal: "right"}

	if s.currency, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Alignment: right, Border: cell}); err != nil {
		return s, err
	}
	if s.percent, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: right, Border: cell}); err != nil {
		return s, err
	}
	if s.number, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Alignment: right, Border: cell}); err != nil {
		return s, err
	}
	s.date, err = fx.NewStyle(&excelize.Style{NumFmt: 14, Alignment: &excelize.Alignment{Horizontal: "center"}, Border: cell})
	return s, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, st excelStyles) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := fx.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeRow writes values starting at column A and styles each cell with the
// matching entry in styles (0 leaves the cell unstyled).
func writeRow(fx *excelize.File, sheet string, row int, values []interface{}, styles []int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := fx.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	for i, style := range styles {
		if style == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeSeriesSheet(fx *excelize.File, out *pipeline.Outcome, st excelStyles) error {
	sheet := SeriesSheet
	if err := writeHeader(fx, sheet, []string{"Date", "Model A", "Model B"}, st); err != nil {
		return err
	}
	if out.Analysis == nil {
		return nil
	}
	styles := []int{st.date, st.currency, st.currency}
	for i, p := range out.Analysis.Joined {
		if err := writeRow(fx, sheet, i+2, []interface{}{p.Date, p.A, p.B}, styles); err != nil {
			return err
		}
	}
	if err := fx.SetColWidth(sheet, "A", "A", 12); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "B", "C", 16)
}

func writeLedgerSheet(fx *excelize.File, out *pipeline.Outcome, st excelStyles) error {
	sheet := LedgerSheet
	headers := []string{
		"Date", "Price", "Volatility", "Action", "Target", "Position", "Margin",
		"Financing", "Borrowing", "Spread", "Total Cost", "Hedge P&L",
		"Equity", "Cash", "Value", "Liquidated",
	}
	if err := writeHeader(fx, sheet, headers, st); err != nil {
		return err
	}
	styles := []int{
		st.date, st.number, st.number, 0, st.number, st.number, st.currency,
		st.currency, st.currency, st.currency, st.currency, st.currency,
		st.currency, st.currency, st.currency, 0,
	}
	for i, r := range out.Hedged.Ledger {
		values := []interface{}{
			r.Date, r.Price, r.Volatility, string(r.Action), r.TargetPosition, r.Position, r.Margin,
			r.Financing, r.Borrowing, r.Spread, r.TotalCost, r.HedgePNL,
			r.Equity, r.Cash, r.Value, r.Liquidated,
		}
		if err := writeRow(fx, sheet, i+2, values, styles); err != nil {
			return err
		}
	}
	if err := fx.SetColWidth(sheet, "A", "A", 12); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "B", "P", 14)
}

func writeMetricsSheet(fx *excelize.File, out *pipeline.Outcome, st excelStyles) error {
	sheet := MetricsSheet
	if err := writeHeader(fx, sheet, []string{"Period", "Start", "End", "Metric", "Model A", "Model B"}, st); err != nil {
		return err
	}
	if out.Analysis == nil {
		return nil
	}

	periods := append([]analysis.PeriodMetrics{out.Analysis.Full}, out.Analysis.Periods...)
	row := 2
	for _, pm := range periods {
		for _, name := range analysis.MetricNames {
			style := st.percent
			if name == analysis.SharpeRatio {
				style = st.number
			}
			values := []interface{}{
				pm.Name, pm.Start.Format(model.DateLayout), pm.End.Format(model.DateLayout), name.Label(),
				cellValue(pm.A.Get(name)), cellValue(pm.B.Get(name)),
			}
			if err := writeRow(fx, sheet, row, values, []int{0, 0, 0, 0, style, style}); err != nil {
				return err
			}
			row++
		}
	}
	if err := fx.SetColWidth(sheet, "A", "D", 20); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "E", "F", 14)
}

func writeHypothesesSheet(fx *excelize.File, out *pipeline.Outcome, st excelStyles) error {
	sheet := HypothesesSheet
	if err := writeHeader(fx, sheet, []string{"Hypothesis", "Period", "Verdict", "Details"}, st); err != nil {
		return err
	}
	if out.Analysis == nil {
		return nil
	}
	for i, v := range out.Analysis.Verdicts {
		values := []interface{}{v.Label, v.Period, v.Result, detailText(v.Details)}
		if err := writeRow(fx, sheet, i+2, values, nil); err != nil {
			return err
		}
	}
	if err := fx.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "B", "D", 18)
}

// cellValue leaves unavailable figures as a literal N/A.
func cellValue(f analysis.Figure) interface{} {
	if !f.Valid {
		return "N/A"
	}
	return f.Value
}
