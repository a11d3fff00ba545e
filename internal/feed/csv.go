package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

const csvDateLayout = "2006-01-02"

// LoadCSV reads a series from a CSV file with the columns
// date,open,high,low,close,volume. A header row is detected and skipped.
func LoadCSV(symbol, path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open bars for %s", symbol)
	}
	defer f.Close()
	return ReadCSV(symbol, f)
}

// ReadCSV reads a series from CSV content.
func ReadCSV(symbol string, r io.Reader) (*Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	series := NewSeries(symbol)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv for %s", symbol)
		}
		line++
		if len(record) < 6 {
			return nil, errors.Errorf("csv for %s: line %d has %d fields, want 6", symbol, line, len(record))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "date") {
			continue
		}
		bar, err := parseBar(symbol, record)
		if err != nil {
			return nil, errors.Wrapf(err, "csv for %s: line %d", symbol, line)
		}
		if err := series.Append(bar); err != nil {
			return nil, err
		}
	}
	return series, nil
}

func parseBar(symbol string, record []string) (schema.Bar, error) {
	at, err := time.Parse(csvDateLayout, strings.TrimSpace(record[0]))
	if err != nil {
		return schema.Bar{}, errors.Wrap(err, "parse date")
	}
	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return schema.Bar{}, errors.Wrapf(err, "parse field %d", i+1)
		}
		fields[i] = v
	}
	return schema.Bar{
		Symbol: symbol,
		Time:   at,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
