package analytics

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memtier/pkg/types"
)

func newRecorder() *Recorder {
	return NewRecorder(log.NewWithOptions(io.Discard, log.Options{}), false)
}

func TestLogRetrievalAggregates(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	r.LogRetrieval("query one", types.TierWarm, 10*time.Millisecond, 3, 100)
	r.LogRetrieval("query two", types.TierWarm, 20*time.Millisecond, 1, 100)
	r.LogRetrieval("query three", types.TierCold, 40*time.Millisecond, 0, 50)

	if got := r.AverageRetrievalMS(types.TierWarm); got != 15 {
		t.Fatalf("AverageRetrievalMS(WARM) = %v, want 15", got)
	}
	if got := r.EventCount(); got != 3 {
		t.Fatalf("EventCount() = %d, want 3", got)
	}
}

func TestSummaryHitRates(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	r.LogRetrieval("a", types.TierWarm, time.Millisecond, 1, 10)
	r.LogRetrieval("b", types.TierWarm, time.Millisecond, 1, 10)
	r.LogRetrieval("c", types.TierCold, time.Millisecond, 1, 10)
	r.LogRetrieval("d", types.TierHot, time.Millisecond, 1, 10)

	for _, s := range r.Summary() {
		switch s.Tier {
		case types.TierWarm:
			if s.Hits != 2 || s.HitRate != 50 {
				t.Fatalf("warm summary = %+v, want 2 hits at 50%%", s)
			}
		case types.TierCold, types.TierHot:
			if s.Hits != 1 || s.HitRate != 25 {
				t.Fatalf("%v summary = %+v, want 1 hit at 25%%", s.Tier, s)
			}
		}
	}
}

func TestLongQueriesAreTruncated(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	r.LogRetrieval(strings.Repeat("x", 200), types.TierWarm, time.Millisecond, 0, 0)

	summary := r.Summary()
	for _, s := range summary {
		if s.Tier == types.TierWarm && len(s.LastQuery) > queryLogLimit+3 {
			t.Fatalf("stored query length = %d, want <= %d", len(s.LastQuery), queryLogLimit+3)
		}
	}
}

func TestNilRecorderIsNoOp(t *testing.T) {
	t.Parallel()
	var r *Recorder
	r.LogRetrieval("q", types.TierWarm, time.Millisecond, 1, 1)
	if r.EventCount() != 0 {
		t.Fatal("nil recorder recorded an event")
	}
	if r.Summary() != nil {
		t.Fatal("nil recorder returned a summary")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	r.LogRetrieval("q", types.TierWarm, time.Millisecond, 1, 1)
	r.Reset()
	if r.EventCount() != 0 {
		t.Fatalf("EventCount() = %d after Reset(), want 0", r.EventCount())
	}
}

func TestRecentEventsNewestFirst(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	r.LogRetrieval("first", types.TierWarm, time.Millisecond, 1, 1)
	r.LogRetrieval("second", types.TierWarm, time.Millisecond, 1, 1)
	r.LogRetrieval("third", types.TierCold, time.Millisecond, 0, 1)

	events := r.RecentEvents(2)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Query != "third" || events[1].Query != "second" {
		t.Fatalf("wrong order: %q, %q", events[0].Query, events[1].Query)
	}

	var nilRec *Recorder
	if nilRec.RecentEvents(5) != nil {
		t.Fatal("nil recorder returned events")
	}
}
