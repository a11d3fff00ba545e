package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"main/internal/schema"
)

func sampleFill(day int) schema.Fill {
	return schema.Fill{
		Symbol:     "600000",
		Side:       schema.OrderSideBuy,
		Quantity:   100,
		Price:      10.05,
		Commission: 5,
		Time:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
	}
}

func samplePoint(day int) schema.EquityPoint {
	return schema.EquityPoint{
		Date:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Equity:   1000000 + float64(day)*100,
		Cash:     500000,
		Holdings: 500000 + float64(day)*100,
	}
}

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for day := 0; day < 3; day++ {
		if err := w.RecordFill(sampleFill(day)); err != nil {
			t.Fatalf("RecordFill: %v", err)
		}
		if err := w.RecordEquity(samplePoint(day)); err != nil {
			t.Fatalf("RecordEquity: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	run, err := ReadRun(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if len(run.Fills) != 3 || len(run.Equity) != 3 {
		t.Fatalf("decoded %d fills, %d points, want 3 each", len(run.Fills), len(run.Equity))
	}
	want := sampleFill(1)
	got := run.Fills[1]
	if got.Symbol != want.Symbol || got.Side != want.Side || got.Quantity != want.Quantity ||
		got.Price != want.Price || got.Commission != want.Commission || !got.Time.Equal(want.Time) {
		t.Fatalf("fill round trip: got %+v", got)
	}
	if !run.Equity[2].Date.Equal(samplePoint(2).Date) || run.Equity[2].Equity != samplePoint(2).Equity {
		t.Fatalf("equity round trip: got %+v", run.Equity[2])
	}
}

func TestWriterLifecycleErrors(t *testing.T) {
	w, err := NewWriter(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.RecordFill(sampleFill(0)); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("err = %v, want ErrAlreadyStarted", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.RecordFill(sampleFill(0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestWriterRotatesSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxBytes = 256
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for day := 0; day < 10; day++ {
		if err := w.RecordEquity(samplePoint(day)); err != nil {
			t.Fatalf("RecordEquity: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	segments, err := filepath.Glob(filepath.Join(dir, "run-*.journal"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(segments) < 2 {
		t.Fatalf("segments = %d, want rotation to produce several", len(segments))
	}

	// records survive rotation intact and in order
	run, err := ReadRun(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if len(run.Equity) != 10 {
		t.Fatalf("decoded %d points, want 10", len(run.Equity))
	}
	for day, point := range run.Equity {
		if !point.Date.Equal(samplePoint(day).Date) {
			t.Fatalf("point %d out of order: %v", day, point.Date)
		}
	}
}

func TestReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.RecordFill(sampleFill(0)); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	segments, err := filepath.Glob(filepath.Join(dir, "run-*.journal"))
	if err != nil || len(segments) != 1 {
		t.Fatalf("glob: %v (%d segments)", err, len(segments))
	}
	data, err := os.ReadFile(segments[0])
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	data[recordHeaderSize+2] ^= 0xFF // flip a payload byte
	if err := os.WriteFile(segments[0], data, 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	_, err = ReadRun(context.Background(), dir, "")
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := NewWriter(Config{}); err == nil {
		t.Fatal("empty dir should fail validation")
	}
	cfg := DefaultConfig(t.TempDir())
	cfg.FlushInterval = -time.Second
	if _, err := NewWriter(cfg); err == nil {
		t.Fatal("negative flush interval should fail validation")
	}
}
