package sink

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubSink struct {
	name string
	err  error
	rows [][]string
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Append(_ context.Context, row []string) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *stubSink) Close() error { return s.err }

func TestFallbackPrimaryOK(t *testing.T) {
	primary := &stubSink{name: "sheets"}
	backup := &stubSink{name: "csv"}
	f := NewFallback(primary, backup, zap.NewNop())

	if err := f.Append(context.Background(), []string{"t", "1", "@a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(primary.rows) != 1 || len(backup.rows) != 0 {
		t.Fatalf("backup should stay untouched: primary=%d backup=%d", len(primary.rows), len(backup.rows))
	}
	if f.Name() != "sheets+csv" {
		t.Fatalf("unexpected name %q", f.Name())
	}
}

func TestFallbackDegradesToBackup(t *testing.T) {
	primary := &stubSink{name: "sheets", err: errors.New("quota exceeded")}
	backup := &stubSink{name: "csv"}
	f := NewFallback(primary, backup, zap.NewNop())

	if err := f.Append(context.Background(), []string{"t", "1", "@a"}); err != nil {
		t.Fatalf("append should succeed via backup: %v", err)
	}
	if len(backup.rows) != 1 {
		t.Fatalf("backup did not receive the row")
	}
}

func TestFallbackBothFail(t *testing.T) {
	primaryErr := errors.New("quota exceeded")
	backupErr := errors.New("disk full")
	f := NewFallback(&stubSink{name: "sheets", err: primaryErr}, &stubSink{name: "csv", err: backupErr}, zap.NewNop())

	err := f.Append(context.Background(), []string{"t", "1", "@a"})
	if !errors.Is(err, primaryErr) || !errors.Is(err, backupErr) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}
