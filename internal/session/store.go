// Package session accumulates parcel-analysis results for the current
// session. The store is append-only apart from a full clear; records
// are immutable once created.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/andesmap/predial/internal/analyze"
	"github.com/andesmap/predial/internal/logger"
	"github.com/andesmap/predial/internal/report"
)

// Parcel wraps one restriction report together with its session
// identity and the geometry that was analyzed. The feature is retained
// verbatim for re-rendering and export.
type Parcel struct {
	ID      int64
	Name    string
	Report  report.Report
	Feature *geojson.Feature
}

// Store is the ordered collection of analyzed parcels. Order is arrival
// order and is never resorted. IDs are monotonic and never reused, not
// even after Clear; only the display-name counter resets.
type Store struct {
	analyzer analyze.Analyzer
	bus      *EventBus

	mu      sync.Mutex
	records []Parcel
	nextID  int64
	nameSeq int64
}

// NewStore creates a session store backed by the given analyzer. The
// bus may be nil when no one needs change notifications.
func NewStore(analyzer analyze.Analyzer, bus *EventBus) *Store {
	return &Store{analyzer: analyzer, bus: bus}
}

// Append analyzes a batch of features concurrently and commits the
// whole batch at once, or not at all. An empty batch is a silent no-op.
// Display-name numbers are reserved up front so names stay sequential
// and non-colliding even if another batch settles first; a failed batch
// leaves a gap rather than reusing its numbers.
func (s *Store) Append(ctx context.Context, features ...*geojson.Feature) ([]Parcel, error) {
	batch := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if f != nil {
			batch = append(batch, f)
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	batchID := uuid.NewString()

	s.mu.Lock()
	nameBase := s.nameSeq + 1
	s.nameSeq += int64(len(batch))
	s.mu.Unlock()

	// One request per feature, all in flight together: batch latency is
	// bounded by the slowest request, not their sum.
	reports := make([]report.Report, len(batch))
	errs := make([]error, len(batch))
	var wg sync.WaitGroup
	for i, f := range batch {
		wg.Add(1)
		go func(i int, f *geojson.Feature) {
			defer wg.Done()
			reports[i], errs[i] = s.analyzer.Analyze(ctx, f)
		}(i, f)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		logger.L().Warn("batch discarded", "batch", batchID, "size", len(batch), "err", err)
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}

	s.mu.Lock()
	created := make([]Parcel, len(batch))
	for i, f := range batch {
		s.nextID++
		name := featureName(f)
		if name == "" {
			name = fmt.Sprintf("Terreno %d", nameBase+int64(i))
		}
		p := Parcel{ID: s.nextID, Name: name, Report: reports[i], Feature: f}
		s.records = append(s.records, p)
		created[i] = p
	}
	s.mu.Unlock()

	logger.L().Info("batch committed", "batch", batchID, "parcels", len(created))
	s.publish(Event{Resource: "parcels", Action: "appended", ID: batchID})
	return created, nil
}

// Clear empties the store and resets the name counter to its initial
// value. Record IDs keep counting up so they stay distinct across the
// store's whole lifetime.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.nameSeq = 0
	s.mu.Unlock()

	s.publish(Event{Resource: "parcels", Action: "cleared"})
}

// Records returns a copy of the accumulated parcels in arrival order.
func (s *Store) Records() []Parcel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Parcel, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of accumulated parcels.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) publish(e Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// featureName returns the explicit display name from the feature's
// properties, if it carries one.
func featureName(f *geojson.Feature) string {
	if f.Properties == nil {
		return ""
	}
	for _, key := range []string{"name", "Name"} {
		if v, ok := f.Properties[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
