package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andesmap/predial/internal/report"
)

// fakeAnalyzer returns canned reports and can fail or block per call.
type fakeAnalyzer struct {
	fail  func(f *geojson.Feature) error
	gate  chan struct{} // blocks features carrying a "slow" property
	calls int32
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, f *geojson.Feature) (report.Report, error) {
	atomic.AddInt32(&a.calls, 1)
	if a.gate != nil && f.Properties["slow"] == true {
		<-a.gate
	}
	if a.fail != nil {
		if err := a.fail(f); err != nil {
			return report.Report{}, err
		}
	}
	rep := report.Report{AreaTotalHa: 1}
	rep.Normalize()
	return rep, nil
}

func poly(name string) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	if name != "" {
		f.Properties = geojson.Properties{"name": name}
	}
	return f
}

func TestAppendAssignsSequentialNames(t *testing.T) {
	s := NewStore(&fakeAnalyzer{}, nil)

	first, err := s.Append(context.Background(), poly(""), poly(""))
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Terreno 1", first[0].Name)
	assert.Equal(t, "Terreno 2", first[1].Name)

	second, err := s.Append(context.Background(), poly(""))
	require.NoError(t, err)
	assert.Equal(t, "Terreno 3", second[0].Name)
}

func TestAppendKeepsExplicitNames(t *testing.T) {
	s := NewStore(&fakeAnalyzer{}, nil)

	got, err := s.Append(context.Background(), poly("Fundo El Roble"), poly(""))
	require.NoError(t, err)
	assert.Equal(t, "Fundo El Roble", got[0].Name)
	// The counter advanced for the named feature too.
	assert.Equal(t, "Terreno 2", got[1].Name)
}

func TestAppendEmptyBatchIsNoOp(t *testing.T) {
	a := &fakeAnalyzer{}
	s := NewStore(a, nil)

	got, err := s.Append(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Append(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Zero(t, a.calls)
	assert.Zero(t, s.Len())
}

func TestAppendDiscardsWholeBatchOnFailure(t *testing.T) {
	a := &fakeAnalyzer{fail: func(f *geojson.Feature) error {
		if f.Properties["name"] == "bad" {
			return errors.New("status 500")
		}
		return nil
	}}
	s := NewStore(a, nil)

	got, err := s.Append(context.Background(), poly(""), poly("bad"), poly(""))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Zero(t, s.Len(), "no partial batch may be committed")

	// The failed batch still consumed its name numbers.
	next, err := s.Append(context.Background(), poly(""))
	require.NoError(t, err)
	assert.Equal(t, "Terreno 4", next[0].Name)
}

func TestClearResetsNamesButNotIDs(t *testing.T) {
	s := NewStore(&fakeAnalyzer{}, nil)

	before, err := s.Append(context.Background(), poly(""), poly(""))
	require.NoError(t, err)

	s.Clear()
	assert.Zero(t, s.Len())

	after, err := s.Append(context.Background(), poly(""))
	require.NoError(t, err)
	assert.Equal(t, "Terreno 1", after[0].Name, "clear resets the name counter")

	seen := map[int64]bool{}
	for _, p := range append(before, after...) {
		assert.False(t, seen[p.ID], "id %d reused", p.ID)
		seen[p.ID] = true
	}
}

func TestOverlappingAppendsReserveNamesAtCallTime(t *testing.T) {
	gate := make(chan struct{})
	s := NewStore(&fakeAnalyzer{gate: gate}, nil)

	done := make(chan []Parcel, 1)
	go func() {
		got, err := s.Append(context.Background(), slowPoly(), slowPoly())
		if err != nil {
			close(done)
			return
		}
		done <- got
	}()

	// Give the first batch time to reserve its numbers before the
	// second one starts.
	time.Sleep(20 * time.Millisecond)
	second, err := s.Append(context.Background(), poly(""))
	require.NoError(t, err)
	assert.Equal(t, "Terreno 3", second[0].Name)

	close(gate)
	first := <-done
	require.Len(t, first, 2)
	assert.Equal(t, "Terreno 1", first[0].Name)
	assert.Equal(t, "Terreno 2", first[1].Name)

	// Commit order is completion order: the second batch landed first.
	records := s.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "Terreno 3", records[0].Name)
}

func slowPoly() *geojson.Feature {
	f := poly("")
	f.Properties = geojson.Properties{"slow": true}
	return f
}

func TestAppendPublishesEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	s := NewStore(&fakeAnalyzer{}, bus)
	_, err := s.Append(context.Background(), poly(""))
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, "parcels", ev.Resource)
		assert.Equal(t, "appended", ev.Action)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	s.Clear()
	select {
	case ev := <-ch:
		assert.Equal(t, "cleared", ev.Action)
	case <-time.After(time.Second):
		t.Fatal("no clear event published")
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	s := NewStore(&fakeAnalyzer{}, nil)
	_, err := s.Append(context.Background(), poly(""))
	require.NoError(t, err)

	records := s.Records()
	records[0].Name = "mutated"
	assert.Equal(t, "Terreno 1", s.Records()[0].Name)
}

func TestAppendBatchErrorMentionsEveryFailure(t *testing.T) {
	a := &fakeAnalyzer{fail: func(f *geojson.Feature) error {
		return fmt.Errorf("boom %v", f.Properties["name"])
	}}
	s := NewStore(a, nil)

	_, err := s.Append(context.Background(), poly("a"), poly("b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom a")
	assert.Contains(t, err.Error(), "boom b")
}
