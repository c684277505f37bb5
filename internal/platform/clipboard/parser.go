// Package clipboard turns medication tables copied from an EHR
// administration screen into clean medication lines.
//
// The pasted text carries no header row and its column layout differs
// between EHR exports, so fields are located by vocabulary (frequency,
// route and unit codes, administration statuses) rather than by position.
// Two independent pipelines exist: regular (scheduled) medications and PRN
// (as needed) medications, the latter annotated with the number of doses
// given in the trailing 24 hours.
package clipboard

import (
	"time"

	"github.com/rs/zerolog"
)

// DropReason names why a pasted row produced no entry.
type DropReason string

const (
	DropTooFewColumns DropReason = "too_few_columns"
	DropExcluded      DropReason = "excluded_status"
	DropDCMarker      DropReason = "dc_marker"
	DropNoAnchor      DropReason = "no_anchor"
	DropDuplicate     DropReason = "duplicate"
)

// Stats summarises one extraction run.
type Stats struct {
	Rows    int
	Dropped map[DropReason]int
}

func newStats(rows int) Stats {
	return Stats{Rows: rows, Dropped: make(map[DropReason]int)}
}

// Parser runs both pipelines. The zero value is not usable; use New.
type Parser struct {
	now func() time.Time
	loc *time.Location
	log zerolog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the clock read once at the start of each PRN parse.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the zone used for administration timestamps that carry
// no offset. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithLogger attaches a logger for per-row debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Parser) {
		p.log = l
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{
		now: time.Now,
		loc: time.Local,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location returns the zone used for zone-less timestamps.
func (p *Parser) Location() *time.Location {
	return p.loc
}

func (p *Parser) drop(st *Stats, kind string, row int, reason DropReason) {
	st.Dropped[reason]++
	p.log.Debug().
		Str("kind", kind).
		Int("row", row).
		Str("reason", string(reason)).
		Msg("pasted row skipped")
}
