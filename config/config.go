// Package config reads the configuration surface of §6. It is the
// direct generalization of ogdar's config.go: the same viper-backed
// "look in /opt (or /etc/tpx3), then the working directory" pattern,
// unmarshaled into typed option structs instead of an FPGA register
// block.
package config

import (
	"math"

	"github.com/spf13/viper"
)

// ClusterAlgorithm selects one of the four variants of §4.5/§4.6.
type ClusterAlgorithm string

const (
	AlgoAgeBased ClusterAlgorithm = "age-based"
	AlgoDensity  ClusterAlgorithm = "density"
	AlgoGraph    ClusterAlgorithm = "graph"
	AlgoGrid     ClusterAlgorithm = "grid"
)

// AffineTransform maps local chip pixel coordinates to global detector
// coordinates: (x, y) = A . (x_local, y_local) + (Tx, Ty).
type AffineTransform struct {
	A  [2][2]float64
	Tx float64
	Ty float64
}

// Apply maps local chip coordinates to global coordinates, rounding to
// the nearest integer pixel.
func (t AffineTransform) Apply(xLocal, yLocal uint8) (x, y uint16) {
	fx := t.A[0][0]*float64(xLocal) + t.A[0][1]*float64(yLocal) + t.Tx
	fy := t.A[1][0]*float64(xLocal) + t.A[1][1]*float64(yLocal) + t.Ty
	return uint16(math.Round(fx)), uint16(math.Round(fy))
}

// IdentityTransform is an affine transform that leaves local coordinates
// untouched except for the given offset, the common case for a chip
// quadrant of a tiled detector.
func IdentityTransform(offsetX, offsetY float64) AffineTransform {
	return AffineTransform{A: [2][2]float64{{1, 0}, {0, 1}}, Tx: offsetX, Ty: offsetY}
}

// DecodeConfig parameterizes the decoder of §4.2/§4.3.
type DecodeConfig struct {
	ChipTransforms     [4]AffineTransform
	TriggerFrequencyHz float64
}

// TriggerPeriodTicks derives the trigger period, in 25 ns ticks, from
// TriggerFrequencyHz.
func (c DecodeConfig) TriggerPeriodTicks() uint32 {
	if c.TriggerFrequencyHz <= 0 {
		return 0
	}
	periodNs := 1e9 / c.TriggerFrequencyHz
	return uint32(math.Round(periodNs / 25.0))
}

// ClusterConfig parameterizes the clustering stage of §4.5/§4.6.
type ClusterConfig struct {
	Algorithm           ClusterAlgorithm
	Radius              float64
	WindowNs            float64
	ScanInterval        int
	MinClusterSize      int
	MaxClusterSize      int // 0 means unlimited
	MinPoints           int // density algorithm core threshold
	GridCols            int
	GridRows            int
	MergeAdjacentCells  bool
	DetectorSize        int // pixels per side, used by the grid algorithm
}

// WindowTicks returns ceil(WindowNs / 25), the temporal window in ticks.
func (c ClusterConfig) WindowTicks() uint32 {
	return uint32(math.Ceil(c.WindowNs / 25.0))
}

// RadiusCeil returns ceil(Radius) as an integer pixel count.
func (c ClusterConfig) RadiusCeil() int32 {
	return int32(math.Ceil(c.Radius))
}

// ExtractConfig parameterizes centroid extraction of §4.7.
type ExtractConfig struct {
	SuperResolutionFactor float64
	WeightedByTot         bool
	MinTotThreshold       uint16
}

// StreamConfig parameterizes batching and backpressure of §5/§6.
type StreamConfig struct {
	BatchSize         int
	MemoryBudgetBytes int64
	Parallelism       int
}

// Config is the full configuration surface recognized by the pipeline.
type Config struct {
	Decode  DecodeConfig
	Cluster ClusterConfig
	Extract ExtractConfig
	Stream  StreamConfig
}

// Default returns the documented defaults (§6), the same role
// setDefaultConfig played for ogdar's digitizer registers.
func Default() Config {
	return Config{
		Decode: DecodeConfig{
			ChipTransforms: [4]AffineTransform{
				IdentityTransform(0, 0),
				IdentityTransform(256, 0),
				IdentityTransform(0, 256),
				IdentityTransform(256, 256),
			},
			TriggerFrequencyHz: 1000, // 1 kHz -> 1,000,000 ns -> 40,000 ticks
		},
		Cluster: ClusterConfig{
			Algorithm:      AlgoAgeBased,
			Radius:         5.0,
			WindowNs:       75.0,
			ScanInterval:   100,
			MinClusterSize: 1,
			MaxClusterSize: 0,
			MinPoints:      3,
			GridCols:       32,
			GridRows:       32,
			DetectorSize:   512,
		},
		Extract: ExtractConfig{
			SuperResolutionFactor: 1,
			WeightedByTot:         true,
			MinTotThreshold:       0,
		},
		Stream: StreamConfig{
			BatchSize:         65536,
			MemoryBudgetBytes: 256 << 20,
			Parallelism:       0,
		},
	}
}

// Load reads a TOML configuration file named "tpx3" from /etc/tpx3 and
// then the working directory, the same search order ogdar's loadConfig
// used for "ogdar.toml" in /opt. It reports whether a file was found;
// any unset fields keep the values already present in cfg (typically
// seeded from Default()).
func Load(cfg *Config) (bool, error) {
	viper.SetConfigName("tpx3")
	viper.AddConfigPath("/etc/tpx3")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return false, nil
		}
		return true, err
	}
	if err := viper.UnmarshalKey("decode", &cfg.Decode); err != nil {
		return true, err
	}
	if err := viper.UnmarshalKey("cluster", &cfg.Cluster); err != nil {
		return true, err
	}
	if err := viper.UnmarshalKey("extract", &cfg.Extract); err != nil {
		return true, err
	}
	if err := viper.UnmarshalKey("stream", &cfg.Stream); err != nil {
		return true, err
	}
	return true, nil
}
