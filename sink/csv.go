package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CSV appends rows to a local CSV file, writing the header when the file is
// first created.
type CSV struct {
	path   string
	header []string

	mu sync.Mutex
}

func NewCSV(path string, header []string) *CSV {
	return &CSV{path: path, header: header}
}

func (s *CSV) Name() string { return "csv" }

func (s *CSV) Append(ctx context.Context, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}

	_, statErr := os.Stat(s.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(s.header); err != nil {
			f.Close()
			return fmt.Errorf("csv sink: write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("csv sink: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("csv sink: %w", err)
	}
	return f.Close()
}

func (s *CSV) Close() error { return nil }
