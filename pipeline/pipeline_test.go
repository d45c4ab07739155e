package pipeline

import (
	"reflect"
	"testing"

	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/control"
	"github.com/jbrzusto/tpx3engine/internal/pkttest"
)

func buildSampleStream() []byte {
	var packets []uint64
	packets = append(packets, pkttest.Header(0), pkttest.Trigger(1000))
	packets = append(packets, pkttest.Hit(pkttest.AddrFor(10, 10), 100, 10, 0, 0))
	packets = append(packets, pkttest.Hit(pkttest.AddrFor(12, 11), 140, 10, 0, 0))
	packets = append(packets, pkttest.Hit(pkttest.AddrFor(100, 100), 1000, 8, 0, 0))
	packets = append(packets, pkttest.Header(1), pkttest.Trigger(1000))
	packets = append(packets, pkttest.Hit(pkttest.AddrFor(5, 5), 110, 6, 0, 0))
	return pkttest.Build(packets...)
}

// TestDeterminism covers §8 property 4: repeated runs over identical
// bytes and configuration produce bit-identical results, independent of
// worker count.
func TestDeterminism(t *testing.T) {
	data := buildSampleStream()
	cfg := config.Default()
	cfg.Cluster.WindowNs = 1200
	cfg.Stream.Parallelism = 1
	res1, _, _, err := Run(data, cfg, control.NewCancelToken())
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	cfg.Stream.Parallelism = 4
	res2, _, _, err := Run(data, cfg, control.NewCancelToken())
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if !reflect.DeepEqual(res1.Hits, res2.Hits) {
		t.Fatalf("hit sequences differ across worker counts:\n%+v\n%+v", res1.Hits, res2.Hits)
	}
	if !reflect.DeepEqual(res1.Neutrons, res2.Neutrons) {
		t.Fatalf("neutron sequences differ across worker counts:\n%+v\n%+v", res1.Neutrons, res2.Neutrons)
	}
}

func TestRunEndToEnd(t *testing.T) {
	data := buildSampleStream()
	cfg := config.Default()
	cfg.Cluster.WindowNs = 1200
	res, summary, snap, err := Run(data, cfg, control.NewCancelToken())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Sections != 2 {
		t.Fatalf("sections = %d, want 2", summary.Sections)
	}
	if summary.Hits != 4 {
		t.Fatalf("hits = %d, want 4", summary.Hits)
	}
	if len(res.Hits) != 4 {
		t.Fatalf("result hits = %d, want 4", len(res.Hits))
	}
	if snap.SectionsScanned != 2 {
		t.Fatalf("stats sections scanned = %d, want 2", snap.SectionsScanned)
	}
	if len(res.Neutrons) == 0 {
		t.Fatalf("expected at least one neutron")
	}
}

func TestHitIteratorBatching(t *testing.T) {
	data := buildSampleStream()
	cfg := config.Default()
	cfg.Cluster.WindowNs = 1200
	res, _, _, err := Run(data, cfg, control.NewCancelToken())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	it := NewHitIterator(res.Hits, 2)
	var total int
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		if len(batch) > 2 {
			t.Fatalf("batch size %d exceeds configured cap", len(batch))
		}
		total += len(batch)
	}
	if total != len(res.Hits) {
		t.Fatalf("iterator yielded %d hits total, want %d", total, len(res.Hits))
	}
}
