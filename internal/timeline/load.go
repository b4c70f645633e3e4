package timeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoadOptions controls a full extraction pass.
type LoadOptions struct {
	// UseRaw selects raw signals over semantic segments. It has no effect on
	// documents without raw signals.
	UseRaw bool

	// Filter, if set, keeps only points on one local date.
	Filter *DateFilter

	Scan   ScanOptions
	Logger *zap.Logger
}

func (o LoadOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// LoadResult is the outcome of LoadPoints.
type LoadResult struct {
	Points  []LocationPoint `json:"points"`
	Records int             `json:"records"`
	Skipped Skipped         `json:"skipped"`
}

// LoadPoints extracts every point of doc, sorted by timestamp. In semantic
// mode, standalone paths that overlap an activity or visit are skipped.
// Records that cannot be decoded are counted in Skipped, never fatal; the
// only error is a cancelled context.
func LoadPoints(ctx context.Context, doc *Document, opts LoadOptions) (*LoadResult, error) {
	res := &LoadResult{Points: []LocationPoint{}}
	if doc == nil {
		return res, nil
	}

	if doc.UsesRaw(opts.UseRaw) {
		res.Records = len(doc.RawSignals)
		err := scan(ctx, doc.RawSignals, opts.Scan, func(sig *RawSignal, _ int) {
			pt, err := ExtractRawSignal(sig)
			if err != nil {
				res.Skipped.Count(err)
				return
			}
			if opts.Filter.Keep(pt.Timestamp) {
				res.Points = append(res.Points, pt)
			}
		})
		if err != nil {
			return nil, err
		}
	} else {
		res.Records = len(doc.SemanticSegments)
		ranges := BuildActivityRanges(doc.SemanticSegments)
		err := scan(ctx, doc.SemanticSegments, opts.Scan, func(seg *SemanticSegment, _ int) {
			if IsStandalonePathOverlapping(seg, ranges) {
				res.Skipped.Overlapping++
				return
			}
			pts, skipped := ExtractSegment(seg, opts.Filter)
			res.Points = append(res.Points, pts...)
			res.Skipped.Add(skipped)
		})
		if err != nil {
			return nil, err
		}
	}

	SortPoints(res.Points)

	if res.Skipped.Total() > 0 {
		opts.logger().Debug("skipped records during extraction",
			zap.Int("records", res.Records),
			zap.Int("points", len(res.Points)),
			zap.Int("bad_encoding", res.Skipped.Encoding),
			zap.Int("missing_timestamp", res.Skipped.Timestamp),
			zap.Int("overlapping_paths", res.Skipped.Overlapping))
	}

	return res, nil
}

// DayBucket is the sorted points of one local date.
type DayBucket struct {
	Date     string          `json:"date"`
	Timezone string          `json:"timezone"`
	Points   []LocationPoint `json:"points"`
	Skipped  Skipped         `json:"skipped"`
}

// Len is the number of points in the bucket.
func (b *DayBucket) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Points)
}

// Location returns the bucket's timezone, defaulting to UTC.
func (b *DayBucket) Location() *time.Location {
	loc, err := LoadTimezone(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BuildDayBucket re-extracts doc scoped to one date. It returns
// ErrNoDataForDate, with an empty bucket, when nothing falls on the date.
func BuildDayBucket(ctx context.Context, doc *Document, date string, loc *time.Location, opts LoadOptions) (*DayBucket, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	opts.Filter = &DateFilter{Date: date, Location: loc}
	res, err := LoadPoints(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	bucket := &DayBucket{
		Date:     date,
		Timezone: loc.String(),
		Points:   res.Points,
		Skipped:  res.Skipped,
	}
	if len(bucket.Points) == 0 {
		return bucket, ErrNoDataForDate
	}
	return bucket, nil
}
