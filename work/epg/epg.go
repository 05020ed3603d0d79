package epg

import (
	"encoding/json"
	"time"
)

// Program is one scheduled program instance. Start and End are epoch
// milliseconds, UTC. A program is only ever constructed whole: anything
// missing a title or a parseable timestamp is dropped, never defaulted.
type Program struct {
	Title string `json:"title"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// Schedule is the now/next pair for one channel, keyed by channel display
// name in the guide map. Either entry may be nil.
type Schedule struct {
	Now  *Program `json:"now,omitempty"`
	Next *Program `json:"next,omitempty"`
}

// programJSON is the wire shape of a guide entry before validation.
type programJSON struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type scheduleJSON struct {
	Now  *programJSON `json:"now"`
	Next *programJSON `json:"next"`
}

// timeLayouts are the accepted ISO-8601 timestamp shapes, tried in order:
// plain UTC, fractional seconds UTC, numeric offset, fractional seconds with
// numeric offset. All parse results normalize to UTC epoch milliseconds.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999Z",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05.999-07:00",
}

// Parse converts a now/next guide payload into per-channel schedules. The
// input is a JSON object keyed by channel display name. Invalid JSON yields
// an empty map, never an error; individual malformed programs are dropped
// while the rest of the document survives.
func Parse(data []byte) map[string]Schedule {
	var root map[string]scheduleJSON
	if err := json.Unmarshal(data, &root); err != nil {
		return map[string]Schedule{}
	}

	out := make(map[string]Schedule, len(root))
	for name, raw := range root {
		out[name] = Schedule{
			Now:  toProgram(raw.Now),
			Next: toProgram(raw.Next),
		}
	}
	return out
}

// toProgram validates one wire program. Missing title, a timestamp that fails
// every accepted layout, or a non-positive duration all reject the program
// entirely.
func toProgram(raw *programJSON) *Program {
	if raw == nil || raw.Title == "" {
		return nil
	}
	start := parseTime(raw.Start)
	end := parseTime(raw.End)
	if start == 0 || end == 0 || end <= start {
		return nil
	}
	return &Program{Title: raw.Title, Start: start, End: end}
}

// parseTime tries each accepted layout in order and returns the first match
// as UTC epoch milliseconds, or 0 when every layout fails.
func parseTime(s string) int64 {
	if s == "" {
		return 0
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().UnixMilli()
		}
	}
	return 0
}

// Progress reports how far through a program's [start, end) window the given
// instant is: 0 before start, 1 at or after end, clamped linear interpolation
// between. A zero-length interval is treated as one millisecond so the
// division is always defined.
func Progress(now time.Time, p *Program) float64 {
	if p == nil {
		return 0
	}
	nowMs := now.UnixMilli()
	if nowMs <= p.Start {
		return 0
	}
	if nowMs >= p.End {
		return 1
	}
	duration := p.End - p.Start
	if duration < 1 {
		duration = 1
	}
	frac := float64(nowMs-p.Start) / float64(duration)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}
