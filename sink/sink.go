// Package sink persists completed survey responses. The primary sink is a
// Google Sheets spreadsheet; local CSV and SQLite sinks serve as fallbacks
// so a Sheets outage never loses a response.
package sink

import "context"

// Sink appends one completed response as an ordered row. Implementations
// must be safe for concurrent use.
type Sink interface {
	Name() string
	Append(ctx context.Context, row []string) error
	Close() error
}
