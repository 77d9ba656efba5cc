// Package gen produces synthetic, deliberately unsynchronized recordings.
//
// A Recording pairs a low-rate jittered camera stream with a high-rate motor
// stream that starts late, the situation the aligner exists for. Output is
// fully determined by Config, including Seed.
package gen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/roach88/sensorsync/internal/ir"
)

// Stream ids written by Generate.
const (
	CameraStream ir.StreamID = "camera/frame"
	MotorStream  ir.StreamID = "motor/position"
)

// Config controls the generated recording. Start from DefaultConfig and
// override what differs.
type Config struct {
	Duration    float64 // seconds of recording
	CameraHz    float64
	MotorHz     float64
	MotorOffset float64 // motor starts this many seconds after the camera
	Jitter      float64 // stddev of camera timestamp noise, seconds
	WaveHz      float64 // frequency of the motor's sine motion
	Seed        uint64
}

// DefaultConfig returns a 10 second, 30Hz camera / 500Hz motor recording.
func DefaultConfig() Config {
	return Config{
		Duration:    10,
		CameraHz:    30,
		MotorHz:     500,
		MotorOffset: 0.005,
		Jitter:      0.002,
		WaveHz:      0.5,
		Seed:        1,
	}
}

// Recording is one generated capture.
type Recording struct {
	Camera *ir.Series
	Motor  *ir.Series
}

// Series returns the recording's series in a stable order.
func (r Recording) Series() []*ir.Series {
	return []*ir.Series{r.Camera, r.Motor}
}

// Generate builds a recording from cfg.
//
// Camera timestamps are k/CameraHz plus Gaussian jitter and carry the frame
// index as their value. Jitter can reorder neighbouring frames; timestamps are
// sorted afterwards so the series stays monotonic, and frame indices follow
// the sorted order. Motor samples start at MotorOffset, every 1/MotorHz,
// with value sin(2*pi*WaveHz*t).
func Generate(cfg Config) (Recording, error) {
	if err := cfg.validate(); err != nil {
		return Recording{}, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	camTimes := grid(0, cfg.Duration, cfg.CameraHz)
	if cfg.Jitter > 0 {
		for i := range camTimes {
			camTimes[i] += rng.NormFloat64() * cfg.Jitter
		}
		slices.Sort(camTimes)
	}
	frames := make([]float64, len(camTimes))
	for i := range frames {
		frames[i] = float64(i)
	}
	camera, err := ir.NewScalarSeries(CameraStream, camTimes, frames)
	if err != nil {
		return Recording{}, fmt.Errorf("camera: %w", err)
	}

	motorTimes := grid(cfg.MotorOffset, cfg.Duration, cfg.MotorHz)
	positions := make([]float64, len(motorTimes))
	for i, t := range motorTimes {
		positions[i] = math.Sin(2 * math.Pi * cfg.WaveHz * t)
	}
	motor, err := ir.NewScalarSeries(MotorStream, motorTimes, positions)
	if err != nil {
		return Recording{}, fmt.Errorf("motor: %w", err)
	}

	return Recording{Camera: camera, Motor: motor}, nil
}

func (cfg Config) validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"duration", cfg.Duration},
		{"camera rate", cfg.CameraHz},
		{"motor rate", cfg.MotorHz},
	} {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be positive and finite, got %g", f.name, f.v)
		}
	}
	if !(cfg.MotorOffset >= 0) || cfg.MotorOffset >= cfg.Duration {
		return fmt.Errorf("motor offset must be in [0, duration), got %g", cfg.MotorOffset)
	}
	if !(cfg.Jitter >= 0) || math.IsInf(cfg.Jitter, 0) {
		return fmt.Errorf("jitter must be non-negative and finite, got %g", cfg.Jitter)
	}
	if math.IsNaN(cfg.WaveHz) || math.IsInf(cfg.WaveHz, 0) {
		return fmt.Errorf("wave frequency must be finite, got %g", cfg.WaveHz)
	}
	return nil
}

// grid returns from + k/hz for every k with a result below end. Each point is
// computed from k directly so rounding does not accumulate.
func grid(from, end, hz float64) []float64 {
	n := int(math.Ceil((end - from) * hz))
	ts := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		t := from + float64(k)/hz
		if t >= end {
			break
		}
		ts = append(ts, t)
	}
	return ts
}
