// Package timeline turns doubt events into the step series plotted under a
// lecture video.
//
// A series always starts with the {0, 0.0} sentinel. Every spike is
// followed by a synthetic zero point ResetOffset seconds later so the chart
// drops back to baseline between spikes. Times are rounded to one decimal
// place and the series is kept non-decreasing in time.
//
// Spikes arrive two ways: live over the room transport (Ingest) and from
// the store when a lecture is loaded (Rebuild). Both place points with the
// same rule, so a reload never draws a spike the live chart lacked, and
// spikes whose rounded times collide still keep time non-decreasing. Two spikes with equal count and time are
// two spikes; only an equal event id marks a repeated delivery, and that
// check belongs to whoever holds the events (see Merge).
package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ResetOffset is the distance between a spike and its synthetic reset.
const ResetOffset = 0.1

// Seconds is a lecture position. It always serializes with one decimal place.
type Seconds float64

func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', 1, 64)), nil
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	var n Numeric
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	*s = Seconds(round1(float64(n)))
	return nil
}

// Numeric accepts a JSON number or a string holding one. Stored doubt
// records carry time as "0.5" and counts as either form.
type Numeric float64

func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
		if len(b) == 0 {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("numeric value %q: %w", string(b), err)
	}
	*n = Numeric(f)
	return nil
}

// Point is one vertex of the plotted series.
type Point struct {
	Count int     `json:"count"`
	Time  Seconds `json:"time"`
}

// Event is a freshly raised doubt spike. ID is the sender's event id and
// may be empty for spikes from older clients.
type Event struct {
	ID    string
	Count int
	Time  float64
}

// Record is a doubt as the store returns it.
type Record struct {
	EventID string  `json:"event_id"`
	Doubts  Numeric `json:"doubts"`
	Time    Numeric `json:"time"`
}

// Event normalizes a stored record. ok is false for negative or non-finite
// values, which callers skip.
func (r Record) Event() (Event, bool) {
	c, t := float64(r.Doubts), float64(r.Time)
	if math.IsNaN(c) || math.IsInf(c, 0) || math.IsNaN(t) || math.IsInf(t, 0) {
		return Event{}, false
	}
	if c < 0 || t < 0 {
		return Event{}, false
	}
	return Event{ID: r.EventID, Count: int(c), Time: t}, true
}

// Baseline returns a fresh series holding only the {0, 0.0} sentinel.
func Baseline() []Point {
	return []Point{{Count: 0, Time: 0}}
}

// Ingest adds ev and its reset to series and returns the new series.
// The input slice is not modified. The spike goes after every point at or
// before its time, so time stays non-decreasing even when events arrive
// out of order. Ingest never drops a valid event; repeated deliveries
// must be filtered by event id before calling it.
func Ingest(series []Point, ev Event) []Point {
	if ev.Count < 0 || ev.Time < 0 || math.IsNaN(ev.Time) || math.IsInf(ev.Time, 0) {
		return append([]Point(nil), series...)
	}

	spike := Point{Count: ev.Count, Time: Seconds(round1(ev.Time))}
	reset := Point{Count: 0, Time: Seconds(round1(float64(spike.Time) + ResetOffset))}

	i := sort.Search(len(series), func(k int) bool {
		return series[k].Time > spike.Time
	})

	out := make([]Point, 0, len(series)+2)
	out = append(out, series[:i]...)
	out = append(out, spike, reset)
	out = append(out, series[i:]...)
	return out
}

// Series builds a series from scratch: the sentinel, then events ordered
// by time (ties keep their given order), each placed as Ingest places it.
func Series(events []Event) []Point {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	out := Baseline()
	for _, ev := range sorted {
		out = Ingest(out, ev)
	}
	return out
}

// Rebuild produces the full series from stored records, skipping invalid
// ones. It replaces the current series on a lecture load.
func Rebuild(records []Record) []Point {
	return Series(Events(records))
}

// Events returns the valid events of records, in order.
func Events(records []Record) []Event {
	events := make([]Event, 0, len(records))
	for _, r := range records {
		if ev, ok := r.Event(); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Merge combines a store snapshot with the events already held: every
// valid stored record, then each held event whose id the snapshot does not
// contain yet, such as a peer spike whose store write is still in flight.
// Held events without an id cannot be matched and are left to the store.
func Merge(stored []Record, held []Event) []Event {
	events := Events(stored)
	known := make(map[string]bool, len(events))
	for _, ev := range events {
		if ev.ID != "" {
			known[ev.ID] = true
		}
	}
	for _, ev := range held {
		if ev.ID == "" || known[ev.ID] {
			continue
		}
		known[ev.ID] = true
		events = append(events, ev)
	}
	return events
}

// Contains reports whether events holds an event with id. An empty id is
// never contained.
func Contains(events []Event, id string) bool {
	if id == "" {
		return false
	}
	for _, ev := range events {
		if ev.ID == id {
			return true
		}
	}
	return false
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
