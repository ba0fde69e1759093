package backtest

import (
	"io"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"

	"cfd-hedge-backtest/internal/model"
)

// csvFloat renders with fixed precision so CSV output diffs cleanly.
type csvFloat float64

func (f csvFloat) MarshalCSV() (string, error) {
	return fmtFloat(float64(f)), nil
}

type ledgerRecord struct {
	Index          int      `csv:"index"`
	Date           string   `csv:"date"`
	Price          csvFloat `csv:"price"`
	Volatility     csvFloat `csv:"volatility"`
	Action         string   `csv:"action"`
	TargetPosition csvFloat `csv:"target_position"`
	Position       csvFloat `csv:"position"`
	Margin         csvFloat `csv:"margin"`
	Financing      csvFloat `csv:"financing"`
	Borrowing      csvFloat `csv:"borrowing"`
	Spread         csvFloat `csv:"spread"`
	TotalCost      csvFloat `csv:"total_cost"`
	HedgePNL       csvFloat `csv:"hedge_pnl"`
	Equity         csvFloat `csv:"equity"`
	Cash           csvFloat `csv:"cash"`
	Value          csvFloat `csv:"value"`
	Liquidated     bool     `csv:"liquidated"`
	Recovered      bool     `csv:"recovered"`
}

type seriesRecord struct {
	Date  string   `csv:"date"`
	Value csvFloat `csv:"value"`
}

func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeLedgerCSV(f, ledger)
}

// EncodeLedgerCSV writes the ledger with a header row.
func EncodeLedgerCSV(w io.Writer, ledger []LedgerRow) error {
	records := make([]ledgerRecord, 0, len(ledger))
	for _, r := range ledger {
		records = append(records, ledgerRecord{
			Index:          r.Index,
			Date:           r.Date.Format(model.DateLayout),
			Price:          csvFloat(r.Price),
			Volatility:     csvFloat(r.Volatility),
			Action:         string(r.Action),
			TargetPosition: csvFloat(r.TargetPosition),
			Position:       csvFloat(r.Position),
			Margin:         csvFloat(r.Margin),
			Financing:      csvFloat(r.Financing),
			Borrowing:      csvFloat(r.Borrowing),
			Spread:         csvFloat(r.Spread),
			TotalCost:      csvFloat(r.TotalCost),
			HedgePNL:       csvFloat(r.HedgePNL),
			Equity:         csvFloat(r.Equity),
			Cash:           csvFloat(r.Cash),
			Value:          csvFloat(r.Value),
			Liquidated:     r.Liquidated,
			Recovered:      r.Recovered,
		})
	}
	return gocsv.Marshal(&records, w)
}

func WriteSeriesCSV(path string, series []model.DatedValue) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeSeriesCSV(f, series)
}

func EncodeSeriesCSV(w io.Writer, series []model.DatedValue) error {
	records := make([]seriesRecord, 0, len(series))
	for _, p := range series {
		records = append(records, seriesRecord{
			Date:  p.Date.Format(model.DateLayout),
			Value: csvFloat(p.Value),
		})
	}
	return gocsv.Marshal(&records, w)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
