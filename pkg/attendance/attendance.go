// Package attendance merges roll numbers detected across repeated image
// captures into one sorted presence set and computes the final percentage.
package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/medhanag29/rural-classroom/pkg"
)

// Resolve returns the union of current and detected, sorted ascending
// without duplicates. Neither input is modified.
func Resolve(current, detected []int) []int {
	seen := make(map[int]struct{}, len(current)+len(detected))
	out := make([]int, 0, len(current)+len(detected))
	for _, list := range [][]int{current, detected} {
		for _, r := range list {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out
}

// StillAbsent lists every roll in [1, classStrength] that is not present.
// This is the list sent to the roll-number detector so it does not report
// students that are already marked.
func StillAbsent(classStrength int, present []int) []int {
	if classStrength <= 0 {
		return nil
	}
	marked := make(map[int]struct{}, len(present))
	for _, r := range present {
		marked[r] = struct{}{}
	}
	out := make([]int, 0, classStrength)
	for r := 1; r <= classStrength; r++ {
		if _, ok := marked[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// CanFinalize reports whether a percentage can be computed for classStrength.
func CanFinalize(classStrength int) bool {
	return classStrength > 0
}

// Finalize returns 100*|present|/classStrength.
func Finalize(present []int, classStrength int) (float64, error) {
	if !CanFinalize(classStrength) {
		return 0, pkg.ErrDivisionGuard
	}
	return 100 * float64(len(present)) / float64(classStrength), nil
}

// Keys builds the persisted attendance keys, "<coordinator>_<roll>".
func Keys(coordinator string, present []int) []string {
	out := make([]string, 0, len(present))
	for _, r := range present {
		out = append(out, coordinator+"_"+strconv.Itoa(r))
	}
	return out
}

// Ticket identifies one in-flight capture. Apply accepts its result only
// while the generation is still current.
type Ticket struct {
	Generation    uint64
	Absent        []int
	ClassStrength int
}

// Tracker owns the presence set of one capture session.
//
// Reset and SetClassStrength bump the generation, so an analysis reply that
// was requested before them is rejected with pkg.ErrStaleResult instead of
// repopulating the cleared set.
type Tracker struct {
	mu            sync.Mutex
	present       []int
	classStrength int
	generation    uint64
}

// NewTracker creates an empty tracker. classStrength may be zero until the
// coordinator types it in.
func NewTracker(classStrength int) *Tracker {
	return &Tracker{classStrength: classStrength}
}

// SetClassStrength changes the class size. Rolls above the new size are
// dropped and in-flight captures become stale.
func (t *Tracker) SetClassStrength(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: class strength is required", pkg.ErrValidation)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n == t.classStrength {
		return nil
	}
	kept := t.present[:0:0]
	for _, r := range t.present {
		if r <= n {
			kept = append(kept, r)
		}
	}
	t.present = kept
	t.classStrength = n
	t.generation++
	return nil
}

// Begin starts a capture and returns the ticket to send along with it.
func (t *Tracker) Begin() (Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.classStrength <= 0 {
		return Ticket{}, fmt.Errorf("%w: class strength is required", pkg.ErrValidation)
	}
	return Ticket{
		Generation:    t.generation,
		Absent:        StillAbsent(t.classStrength, t.present),
		ClassStrength: t.classStrength,
	}, nil
}

// Apply merges detected rolls from the capture identified by tk and returns
// the new presence set. Values outside [1, classStrength] are skipped.
func (t *Tracker) Apply(tk Ticket, detected []int) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tk.Generation != t.generation {
		return append([]int(nil), t.present...), pkg.ErrStaleResult
	}

	valid := make([]int, 0, len(detected))
	for _, r := range detected {
		if r >= 1 && r <= t.classStrength {
			valid = append(valid, r)
		}
	}
	t.present = Resolve(t.present, valid)
	return append([]int(nil), t.present...), nil
}

// Reset clears the presence set and invalidates every in-flight ticket.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.present = nil
	t.generation++
}

// Present returns a copy of the sorted presence set.
func (t *Tracker) Present() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.present...)
}

// ClassStrength returns the configured class size.
func (t *Tracker) ClassStrength() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.classStrength
}

// Percentage finalizes the current set.
func (t *Tracker) Percentage() (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Finalize(t.present, t.classStrength)
}
