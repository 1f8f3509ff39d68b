package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/util"
)

var csvHeader = []string{"datetime", "open", "high", "low", "close", "volume"}

// csvCodec writes bars ascending with a datetime column. Timestamps carry a
// time of day only when one is present.
type csvCodec struct{}

func (csvCodec) Extension() string { return "csv" }

func (csvCodec) Write(path string, bars []models.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	intraday := false
	for _, b := range bars {
		if !b.Time.Equal(util.StartOfDay(b.Time)) {
			intraday = true
			break
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := w.Write([]string{
			util.FormatBarTime(b.Time, intraday),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			floatStr(b.Volume),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func (csvCodec) Read(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var bars []models.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := parseBarRecord(rec, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBarRecord(rec []string, loc *time.Location) (models.Bar, error) {
	t, ok := util.ParseTime(rec[0], loc)
	if !ok {
		return models.Bar{}, fmt.Errorf("bad datetime %q", rec[0])
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("bad %s %q", csvHeader[i+1], rec[i+1])
		}
		vals[i] = v
	}
	return models.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
