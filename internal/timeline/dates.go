package timeline

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the format of every date key.
const DateLayout = "2006-01-02"

// DateKey is the one rule for turning an instant into a calendar date in a
// timezone. Discovery, extraction filtering and bucketing all go through it.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// LoadTimezone resolves an IANA zone name. The empty name means UTC.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseDate validates a YYYY-MM-DD date key.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", date, err)
	}
	return t, nil
}

// DateFilter restricts extraction to points on one local date.
type DateFilter struct {
	Date     string
	Location *time.Location
}

// Keep reports whether t falls on the filter's date.
func (f *DateFilter) Keep(t time.Time) bool {
	if f == nil {
		return true
	}
	return DateKey(t, f.Location) == f.Date
}

// dateSet accumulates unique dates.
type dateSet struct {
	loc   *time.Location
	dates map[string]struct{}
}

func newDateSet(loc *time.Location) *dateSet {
	return &dateSet{loc: loc, dates: make(map[string]struct{})}
}

func (s *dateSet) addString(ts string) {
	if t, ok := parseTime(ts); ok {
		s.add(t)
	}
}

func (s *dateSet) add(t time.Time) {
	s.dates[DateKey(t, s.loc)] = struct{}{}
}

func (s *dateSet) sorted() []string {
	out := make([]string, 0, len(s.dates))
	for d := range s.dates {
		out = append(out, d)
	}
	// YYYY-MM-DD sorts lexically in date order
	sort.Strings(out)
	return out
}

// UniqueDates returns the sorted local dates present in doc without building
// any LocationPoints. In raw mode every signal timestamp counts; otherwise
// each segment contributes its start, end and every waypoint time, so that
// segments crossing midnight and multi-day paths show up on every date they
// touch. ErrEmptyDateResult is returned when nothing has a usable timestamp.
func UniqueDates(ctx context.Context, doc *Document, loc *time.Location, useRaw bool, opts ScanOptions) ([]string, error) {
	set := newDateSet(loc)

	if doc.UsesRaw(useRaw) {
		err := scan(ctx, doc.RawSignals, opts, func(sig *RawSignal, _ int) {
			if t, ok := sig.timestamp(); ok {
				set.add(t)
			}
		})
		if err != nil {
			return nil, err
		}
	} else if doc != nil {
		err := scan(ctx, doc.SemanticSegments, opts, func(seg *SemanticSegment, _ int) {
			start, startOK := parseTime(seg.StartTime)
			if startOK {
				set.add(start)
			}
			set.addString(seg.EndTime)
			for _, v := range seg.waypoints() {
				if t, ok := v.timestamp(start, startOK); ok {
					set.add(t)
				}
			}
		})
		if err != nil {
			return nil, err
		}
	}

	if len(set.dates) == 0 {
		return []string{}, ErrEmptyDateResult
	}
	return set.sorted(), nil
}
