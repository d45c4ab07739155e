package scanner

import (
	"testing"

	"github.com/jbrzusto/tpx3engine/internal/pkttest"
	"github.com/jbrzusto/tpx3engine/stats"
)

func TestScanEmptyWithoutHeader(t *testing.T) {
	data := pkttest.Build(pkttest.Trigger(10), pkttest.Hit(0, 0, 0, 0, 0))
	sections := Scan(data, stats.New())
	if len(sections) != 0 {
		t.Fatalf("expected no sections without a header, got %d", len(sections))
	}
}

func TestScanSingleSection(t *testing.T) {
	data := pkttest.Build(
		pkttest.Header(0),
		pkttest.Trigger(1000),
		pkttest.Hit(0, 100, 5, 0, 0),
	)
	st := stats.New()
	sections := Scan(data, st)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	s := sections[0]
	if s.ChipID != 0 {
		t.Fatalf("chip id = %d, want 0", s.ChipID)
	}
	if s.InitialTrigger != nil {
		t.Fatalf("expected no inherited trigger for the first section of a chip")
	}
	if !s.HasFinalTrigger || s.FinalTrigger != 1000 {
		t.Fatalf("final trigger = %v/%d, want true/1000", s.HasFinalTrigger, s.FinalTrigger)
	}
	if st.SectionsScanned.Load() != 1 {
		t.Fatalf("stats sections scanned = %d, want 1", st.SectionsScanned.Load())
	}
}

func TestScanInheritsTriggerAcrossSections(t *testing.T) {
	data := pkttest.Build(
		pkttest.Header(0),
		pkttest.Trigger(500),
		pkttest.Header(1),
		pkttest.Trigger(600),
		pkttest.Header(0),
		pkttest.Hit(0, 10, 1, 0, 0),
	)
	sections := Scan(data, stats.New())
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	third := sections[2]
	if third.ChipID != 0 || third.InitialTrigger == nil || *third.InitialTrigger != 500 {
		t.Fatalf("expected chip 0's third section to inherit trigger 500, got %+v", third)
	}
}

func TestScanDropsTrailingBytes(t *testing.T) {
	data := pkttest.Build(pkttest.Header(0), pkttest.Trigger(1))
	data = append(data, 1, 2, 3)
	st := stats.New()
	Scan(data, st)
	if got := st.TrailingBytesDiscarded.Load(); got != 3 {
		t.Fatalf("trailing bytes discarded = %d, want 3", got)
	}
}

func TestScanDropsEmptySections(t *testing.T) {
	data := pkttest.Build(pkttest.Header(0), pkttest.Header(0), pkttest.Trigger(1))
	sections := Scan(data, stats.New())
	if len(sections) != 1 {
		t.Fatalf("expected the empty first section to be dropped, got %d sections", len(sections))
	}
}
