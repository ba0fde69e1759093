package data

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// Row is one line of the market-data CSV. Price and Volatility are required
// for a row to be simulated; Rate falls back to the configured default.
type Row struct {
	Date       string   `csv:"date"`
	Price      *float64 `csv:"price,omitempty"`
	Volatility *float64 `csv:"volatility,omitempty"`
	Rate       *float64 `csv:"rate,omitempty"`
}

func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}
