package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"main/internal/schema"
)

// Run is a decoded journal: the fills and equity points of one
// completed backtest, in sequence order.
type Run struct {
	Fills  []schema.Fill
	Equity []schema.EquityPoint
}

// Walk reads every journal record under dir in segment order and calls
// the handler for each event.
func Walk(ctx context.Context, dir, prefix string, handler func(Event) error) error {
	if handler == nil {
		return errors.New("journal handler is nil")
	}
	if prefix == "" {
		prefix = defaultFilePrefix
	}
	files, err := collectSegments(dir, prefix)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := walkFile(ctx, path, handler); err != nil {
			return err
		}
	}
	return nil
}

// ReadRun decodes a journal directory back into fills and equity points.
func ReadRun(ctx context.Context, dir, prefix string) (Run, error) {
	var run Run
	err := Walk(ctx, dir, prefix, func(ev Event) error {
		switch ev.Type {
		case EventFill:
			var fill schema.Fill
			if err := json.Unmarshal(ev.Payload, &fill); err != nil {
				return fmt.Errorf("decode fill seq %d: %w", ev.Seq, err)
			}
			run.Fills = append(run.Fills, fill)
		case EventEquity:
			var point schema.EquityPoint
			if err := json.Unmarshal(ev.Payload, &point); err != nil {
				return fmt.Errorf("decode equity seq %d: %w", ev.Seq, err)
			}
			run.Equity = append(run.Equity, point)
		default:
			return fmt.Errorf("unknown event type %d at seq %d", ev.Type, ev.Seq)
		}
		return nil
	})
	return run, err
}

func collectSegments(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	want := prefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, want) || !strings.HasSuffix(name, ".journal") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func walkFile(ctx context.Context, path string, handler func(Event) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := handler(ev); err != nil {
			return err
		}
	}
}
