//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"errors"
	"syscall/js"
	"time"

	"github.com/twpayne/go-polyline"

	"rewind/internal/playback"
	"rewind/internal/timeline"
)

// host is the single document loaded into this page. Each load bumps the
// generation; callers pass it back so stale requests are refused.
type host struct {
	generation int
	doc        *timeline.Document
	loc        *time.Location
	useRaw     bool
	bucket     *timeline.DayBucket
}

var state host

var errStale = errors.New("document was replaced by a newer load")

func main() {
	js.Global().Set("rewindLoad", js.FuncOf(rewindLoad))
	js.Global().Set("rewindDates", js.FuncOf(rewindDates))
	js.Global().Set("rewindDay", js.FuncOf(rewindDay))
	js.Global().Set("rewindFrame", js.FuncOf(rewindFrame))
	select {}
}

func fail(err error) any {
	return map[string]any{
		"ok":    false,
		"error": err.Error(),
	}
}

// rewindLoad(fileBytes Uint8Array, options {timezone, raw})
func rewindLoad(_ js.Value, args []js.Value) any {
	file := arg(args, 0)
	if file.IsUndefined() || file.IsNull() || file.Get("length").Int() == 0 {
		return fail(errors.New("timeline file bytes are required"))
	}
	opts := arg(args, 1)

	data := make([]byte, file.Get("length").Int())
	js.CopyBytesToGo(data, file)

	loc, err := timeline.LoadTimezone(getString(opts, "timezone", "UTC"))
	if err != nil {
		return fail(err)
	}
	doc, err := timeline.ParseDocument(bytes.NewReader(data))
	if err != nil {
		return fail(err)
	}
	useRaw := doc.UsesRaw(getBool(opts, "raw"))
	dates, err := timeline.UniqueDates(context.Background(), doc, loc, useRaw, timeline.ScanOptions{})
	if err != nil {
		return fail(err)
	}

	state = host{
		generation: state.generation + 1,
		doc:        doc,
		loc:        loc,
		useRaw:     useRaw,
	}
	return map[string]any{
		"ok":         true,
		"generation": state.generation,
		"has_raw":    doc.HasRawSignals(),
		"dates":      stringsToAny(dates),
	}
}

// rewindDates(options {generation, timezone, raw})
func rewindDates(_ js.Value, args []js.Value) any {
	opts := arg(args, 0)
	if err := checkGeneration(opts); err != nil {
		return fail(err)
	}
	loc, useRaw, err := scope(opts)
	if err != nil {
		return fail(err)
	}
	dates, err := timeline.UniqueDates(context.Background(), state.doc, loc, useRaw, timeline.ScanOptions{})
	if err != nil && !errors.Is(err, timeline.ErrEmptyDateResult) {
		return fail(err)
	}
	state.loc, state.useRaw, state.bucket = loc, useRaw, nil
	return map[string]any{
		"ok":         true,
		"generation": state.generation,
		"dates":      stringsToAny(dates),
	}
}

// rewindDay(date string, options {generation})
func rewindDay(_ js.Value, args []js.Value) any {
	date := arg(args, 0).String()
	if err := checkGeneration(arg(args, 1)); err != nil {
		return fail(err)
	}
	bucket, err := dayBucket(date)
	if err != nil && !errors.Is(err, timeline.ErrNoDataForDate) {
		return fail(err)
	}

	coords := make([][]float64, len(bucket.Points))
	for i, pt := range bucket.Points {
		coords[i] = []float64{pt.Lat, pt.Lng}
	}
	out := map[string]any{
		"ok":         true,
		"generation": state.generation,
		"date":       date,
		"points":     bucket.Len(),
		"polyline":   string(polyline.EncodeCoords(coords)),
	}
	if err != nil {
		out["message"] = err.Error()
	}
	if bucket.Len() > 0 {
		out["start"] = bucket.Points[0].Timestamp.Format(time.RFC3339)
		out["end"] = bucket.Points[bucket.Len()-1].Timestamp.Format(time.RFC3339)
	}
	return out
}

// rewindFrame(date string, minute number, options {generation, mode, max_segments})
func rewindFrame(_ js.Value, args []js.Value) any {
	date := arg(args, 0).String()
	minute := arg(args, 1)
	opts := arg(args, 2)
	if minute.Type() != js.TypeNumber {
		return fail(errors.New("minute must be a number"))
	}
	if err := checkGeneration(opts); err != nil {
		return fail(err)
	}
	mode, err := playback.ParseColorMode(getString(opts, "mode", ""))
	if err != nil {
		return fail(err)
	}
	maxSegments := int(getFloat(opts, "max_segments"))
	if maxSegments <= 0 {
		maxSegments = playback.DefaultMaxSegments
	}

	bucket, err := dayBucket(date)
	if err != nil && !errors.Is(err, timeline.ErrNoDataForDate) {
		return fail(err)
	}
	frame, err := playback.NewFrame(bucket, minute.Float(), mode, maxSegments)
	if err != nil {
		return fail(err)
	}
	fc, err := frame.FeatureCollection().MarshalJSON()
	if err != nil {
		return fail(err)
	}
	return map[string]any{
		"ok":         true,
		"generation": state.generation,
		"minute":     frame.Minute,
		"segments":   len(frame.Segments),
		"geojson":    string(fc),
	}
}

// dayBucket reuses the last bucket while the same date is animated
func dayBucket(date string) (*timeline.DayBucket, error) {
	if state.bucket != nil && state.bucket.Date == date {
		if state.bucket.Len() == 0 {
			return state.bucket, timeline.ErrNoDataForDate
		}
		return state.bucket, nil
	}
	bucket, err := timeline.BuildDayBucket(context.Background(), state.doc, date, state.loc,
		timeline.LoadOptions{UseRaw: state.useRaw})
	if bucket != nil {
		state.bucket = bucket
	}
	return bucket, err
}

func checkGeneration(opts js.Value) error {
	if state.doc == nil {
		return errors.New("no timeline loaded")
	}
	if g := getFloat(opts, "generation"); g != 0 && int(g) != state.generation {
		return errStale
	}
	return nil
}

func scope(opts js.Value) (*time.Location, bool, error) {
	loc := state.loc
	if tz := getString(opts, "timezone", ""); tz != "" {
		var err error
		if loc, err = timeline.LoadTimezone(tz); err != nil {
			return nil, false, err
		}
	}
	useRaw := state.useRaw
	if !opts.IsUndefined() && !opts.IsNull() && opts.Get("raw").Type() == js.TypeBoolean {
		useRaw = opts.Get("raw").Bool()
	}
	return loc, state.doc.UsesRaw(useRaw), nil
}

func arg(args []js.Value, i int) js.Value {
	if i < len(args) {
		return args[i]
	}
	return js.Undefined()
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) float64 {
	if v.IsUndefined() || v.IsNull() {
		return 0
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Float()
}

func getBool(v js.Value, key string) bool {
	if v.IsUndefined() || v.IsNull() {
		return false
	}
	out := v.Get(key)
	return out.Type() == js.TypeBoolean && out.Bool()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
