package cluster

import (
	"testing"

	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/stats"
	"github.com/jbrzusto/tpx3engine/tpx3"
)

// scenarioBCConfig widens the temporal window relative to config.Default():
// the worked example in §8 scenario B separates its two hits by 1 µs (40
// ticks), which the documented default window_ns of 75.0 (3 ticks) cannot
// span. Widening window_ns here reproduces the scenario's stated outcome
// without changing the documented default.
func scenarioBCConfig() config.ClusterConfig {
	cfg := config.Default().Cluster
	cfg.WindowNs = 1200
	return cfg
}

func hit(x, y uint16, tof uint32, tot uint16) tpx3.Hit {
	return tpx3.Hit{X: x, Y: y, Tof: tof, Tot: tot, ClusterID: -1}
}

// TestScenarioBWithinRadiusAndWindow covers §8 scenario B.
func TestScenarioBWithinRadiusAndWindow(t *testing.T) {
	cfg := scenarioBCConfig()
	hits := []tpx3.Hit{
		hit(10, 10, 100, 10),
		hit(12, 11, 140, 10),
	}
	labels := make([]int32, len(hits))
	n, err := ClusterBucket(hits, labels, cfg, nil, nil)
	if err != nil {
		t.Fatalf("ClusterBucket: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cluster, got %d", n)
	}
	if labels[0] != 0 || labels[1] != 0 {
		t.Fatalf("expected both hits in cluster 0, got %v", labels)
	}
}

// TestScenarioCOutsideRadius covers §8 scenario C.
func TestScenarioCOutsideRadius(t *testing.T) {
	cfg := scenarioBCConfig()
	hits := []tpx3.Hit{
		hit(10, 10, 100, 10),
		hit(30, 30, 140, 10),
	}
	labels := make([]int32, len(hits))
	n, err := ClusterBucket(hits, labels, cfg, nil, nil)
	if err != nil {
		t.Fatalf("ClusterBucket: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 clusters, got %d", n)
	}
	if labels[0] == labels[1] {
		t.Fatalf("expected distinct cluster ids, got %v", labels)
	}
}

// sampleHits builds a small, deterministic, tof-sorted fixture: two tight
// spatial-temporal groups plus an isolated hit.
func sampleHits() []tpx3.Hit {
	return []tpx3.Hit{
		hit(100, 100, 0, 10),
		hit(101, 100, 1, 10),
		hit(100, 101, 2, 10),
		hit(400, 400, 10, 20),
		hit(401, 401, 11, 20),
		hit(200, 200, 1000, 5),
	}
}

func checkLabelDensity(t *testing.T, labels []int32, n int) {
	t.Helper()
	seen := make(map[int32]bool)
	for _, l := range labels {
		if l < 0 {
			continue
		}
		seen[l] = true
	}
	if len(seen) != n {
		t.Fatalf("label density: %d distinct non-negative labels, clusterer reported %d", len(seen), n)
	}
	for id := int32(0); id < int32(n); id++ {
		if !seen[id] {
			t.Fatalf("label density: missing id %d among {0..%d}", id, n-1)
		}
	}
}

func checkTransitiveClosure(t *testing.T, hits []tpx3.Hit, labels []int32, radius float64, windowTicks uint32) {
	t.Helper()
	byLabel := make(map[int32][]int)
	for i, l := range labels {
		if l >= 0 {
			byLabel[l] = append(byLabel[l], i)
		}
	}
	for id, members := range byLabel {
		for _, i := range members {
			reachable := false
			for _, j := range members {
				if i != j && withinNeighborhood(hits[i], hits[j], radius, windowTicks) {
					reachable = true
					break
				}
			}
			if !reachable && len(members) > 1 {
				t.Fatalf("cluster %d member %d has no direct neighbor within the cluster (weak transitive check)", id, i)
			}
		}
	}
}

func TestAlgorithmsProduceDenseLabels(t *testing.T) {
	hits := sampleHits()
	algos := []config.ClusterAlgorithm{
		config.AlgoAgeBased, config.AlgoDensity, config.AlgoGraph, config.AlgoGrid,
	}
	for _, algo := range algos {
		cfg := config.Default().Cluster
		cfg.Algorithm = algo
		cfg.Radius = 3
		cfg.WindowNs = 125 // 5 ticks
		cfg.MinPoints = 2
		cfg.GridCols, cfg.GridRows = 8, 8
		cfg.DetectorSize = 512
		labels := make([]int32, len(hits))
		n, err := Cluster(hits, labels, cfg, nil, nil)
		if err != nil {
			t.Fatalf("%s: Cluster: %v", algo, err)
		}
		checkLabelDensity(t, labels, n)
		for i := range labels {
			if labels[i] < -1 || int(labels[i]) >= n {
				t.Fatalf("%s: label %d out of range for n=%d", algo, labels[i], n)
			}
		}
	}
}

// TestBucketAtMostOneAssignment covers §8 property 7 for the reference
// algorithm: every hit has exactly one cluster id, and same-labeled hits
// satisfy the spatial/temporal predicate with some other cluster member.
func TestBucketAtMostOneAssignment(t *testing.T) {
	hits := sampleHits()
	cfg := config.Default().Cluster
	cfg.Radius = 3
	cfg.WindowNs = 125
	labels := make([]int32, len(hits))
	if _, err := ClusterBucket(hits, labels, cfg, nil, nil); err != nil {
		t.Fatalf("ClusterBucket: %v", err)
	}
	checkTransitiveClosure(t, hits, labels, cfg.Radius, cfg.WindowTicks())
}

func TestGraphMinClusterSizeDropsSingletons(t *testing.T) {
	hits := []tpx3.Hit{
		hit(10, 10, 0, 10),
		hit(11, 10, 1, 10),
		hit(300, 300, 2, 10), // isolated
	}
	cfg := config.Default().Cluster
	cfg.Algorithm = config.AlgoGraph
	cfg.Radius = 3
	cfg.WindowNs = 125
	cfg.MinClusterSize = 2
	labels := make([]int32, len(hits))
	n, err := ClusterGraph(hits, labels, cfg, nil, nil)
	if err != nil {
		t.Fatalf("ClusterGraph: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 surviving cluster, got %d", n)
	}
	if labels[2] != -1 {
		t.Fatalf("expected the isolated hit dropped (label -1), got %d", labels[2])
	}
}

func TestGridMergeAdjacentCells(t *testing.T) {
	hits := []tpx3.Hit{
		hit(63, 100, 0, 10),  // near a cell boundary if grid cols split at 64
		hit(65, 100, 1, 10),  // just across the boundary, within radius
	}
	cfg := config.Default().Cluster
	cfg.Algorithm = config.AlgoGrid
	cfg.Radius = 5
	cfg.WindowNs = 125
	cfg.GridCols, cfg.GridRows = 8, 8
	cfg.DetectorSize = 512 // cell width 64
	cfg.MergeAdjacentCells = true
	labels := make([]int32, len(hits))
	n, err := ClusterGrid(hits, labels, cfg, nil, nil)
	if err != nil {
		t.Fatalf("ClusterGrid: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected cross-cell merge to produce 1 cluster, got %d", n)
	}
	if labels[0] != labels[1] {
		t.Fatalf("expected both hits merged into the same cluster, got %v", labels)
	}
}

func TestMaxClusterSizeRecordsOverflow(t *testing.T) {
	hits := []tpx3.Hit{
		hit(10, 10, 0, 10),
		hit(11, 10, 1, 10),
		hit(10, 11, 2, 10),
	}
	cfg := config.Default().Cluster
	cfg.Radius = 5
	cfg.WindowNs = 125
	cfg.MaxClusterSize = 2
	st := stats.New()
	labels := make([]int32, len(hits))
	n, err := ClusterBucket(hits, labels, cfg, st, nil)
	if err != nil {
		t.Fatalf("ClusterBucket: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected the oversized cluster to be dropped, got %d clusters", n)
	}
	for i, l := range labels {
		if l != -1 {
			t.Fatalf("hit %d: expected label -1 after overflow, got %d", i, l)
		}
	}
	if st.ClusteringOverflows.Load() != 1 {
		t.Fatalf("clustering overflows = %d, want 1", st.ClusteringOverflows.Load())
	}
}
