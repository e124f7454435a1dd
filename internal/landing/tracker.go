// Package landing models the public landing page: the navigation's active
// section and the platform stats shown there.
package landing

import (
	"fmt"
	"slices"
	"sync"
)

// DefaultThreshold is the visible fraction at which a section becomes active.
const DefaultThreshold = 0.3

// Sections are the landing page sections in page order.
var Sections = []string{"hero", "about", "tokenomics", "ecosystem", "roadmap", "team"}

// SectionTracker maintains a single active section from visibility reports.
// A section becomes active when its visible fraction crosses the threshold
// upwards. When the active section drops below the threshold, the most
// visible section still above it takes over; with none, the active section
// is kept.
type SectionTracker struct {
	threshold float64
	sections  []string

	mu         sync.Mutex
	visibility map[string]float64
	active     string
	subs       map[int]func(section string)
	nextID     int
}

// NewSectionTracker tracks sections, the first of which starts active.
func NewSectionTracker(sections []string, threshold float64) (*SectionTracker, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("landing: no sections")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("landing: threshold %v out of (0, 1]", threshold)
	}
	return &SectionTracker{
		threshold:  threshold,
		sections:   slices.Clone(sections),
		visibility: make(map[string]float64, len(sections)),
		active:     sections[0],
		subs:       make(map[int]func(string)),
	}, nil
}

// Active returns the active section.
func (t *SectionTracker) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Subscribe registers fn to be called with the new active section whenever
// it changes. The returned function removes the subscription.
func (t *SectionTracker) Subscribe(fn func(section string)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Observe reports the visible fraction of section. Unknown sections are
// rejected.
func (t *SectionTracker) Observe(section string, ratio float64) error {
	if !slices.Contains(t.sections, section) {
		return fmt.Errorf("landing: unknown section %q", section)
	}

	t.mu.Lock()
	prev := t.visibility[section]
	t.visibility[section] = ratio
	next := t.active

	switch {
	case prev < t.threshold && ratio >= t.threshold:
		next = section
	case section == t.active && ratio < t.threshold:
		if best, ok := t.mostVisible(); ok {
			next = best
		}
	}

	changed := next != t.active
	t.active = next
	var fns []func(string)
	if changed {
		for _, fn := range t.subs {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	return nil
}

// mostVisible returns the most visible section at or above the threshold,
// earliest in page order on ties. Must be called with mu held.
func (t *SectionTracker) mostVisible() (string, bool) {
	best, bestRatio := "", -1.0
	for _, s := range t.sections {
		r := t.visibility[s]
		if r >= t.threshold && r > bestRatio {
			best, bestRatio = s, r
		}
	}
	return best, best != ""
}
