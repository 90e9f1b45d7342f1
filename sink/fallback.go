package sink

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Fallback writes to the primary sink and degrades to the backup when the
// primary fails. The append succeeds as long as either sink accepts the
// row.
type Fallback struct {
	primary Sink
	backup  Sink
	log     *zap.Logger
}

func NewFallback(primary, backup Sink, log *zap.Logger) *Fallback {
	return &Fallback{primary: primary, backup: backup, log: log}
}

func (s *Fallback) Name() string {
	return s.primary.Name() + "+" + s.backup.Name()
}

func (s *Fallback) Append(ctx context.Context, row []string) error {
	primaryErr := s.primary.Append(ctx, row)
	if primaryErr == nil {
		return nil
	}
	s.log.Warn("primary sink failed, falling back",
		zap.String("primary", s.primary.Name()),
		zap.String("fallback", s.backup.Name()),
		zap.Error(primaryErr))

	if err := s.backup.Append(ctx, row); err != nil {
		return errors.Join(primaryErr, err)
	}
	return nil
}

func (s *Fallback) Close() error {
	return errors.Join(s.primary.Close(), s.backup.Close())
}
