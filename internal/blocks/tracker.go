package blocks

import "time"

// Config holds the window parameters for block detection.
type Config struct {
	RetentionHours     int `yaml:"retention_hours" default:"24" validate:"gt=0"`
	TrailingWindowMin  int `yaml:"trailing_window_min" default:"60" validate:"gt=0"`
	BlockWindowMin     int `yaml:"block_window_min" default:"30" validate:"gt=0"`
	BlockThreshold     int `yaml:"block_threshold" default:"2" validate:"gt=0"`
	CoolingQuietMin    int `yaml:"cooling_quiet_min" default:"20" validate:"gt=0"`
	StrengthSaturation int `yaml:"strength_saturation" default:"5" validate:"gt=0"`
	StreakCap          int `yaml:"streak_cap" default:"10" validate:"gt=0"`
	GapCapMultiple     int `yaml:"gap_cap_multiple" default:"5" validate:"gt=0"`
}

// DefaultConfig returns the standard block detection windows.
func DefaultConfig() Config {
	return Config{
		RetentionHours:     24,
		TrailingWindowMin:  60,
		BlockWindowMin:     30,
		BlockThreshold:     2,
		CoolingQuietMin:    20,
		StrengthSaturation: 5,
		StreakCap:          10,
		GapCapMultiple:     5,
	}
}

// Features are the clustering signals computed at a point in time.
// A "block" is BlockThreshold or more greens inside one block window.
type Features struct {
	TrailingGreens int     // greens inside the trailing window
	TrailingRatio  float64 // greens / outcomes inside the trailing window
	MinsSinceGreen float64 // minutes since last green, capped
	MinsSinceRed   float64 // minutes since last red, capped
	PrevHourGreens int     // greens inside the previous clock hour
	BlockActive    bool    // a block is live inside the block window
	BlockStrength  float64 // greens in block window over saturation, 0..1
	Cooling        bool    // block inside trailing window, quiet since
	Momentum       float64 // mean of the bounded signals, 0..1
	Streak         int     // consecutive greens ending at the latest outcome, capped
}

// FeatureCount is the width of the vector form.
const FeatureCount = 10

// Names returns the vector component names in emission order.
func Names() []string {
	return []string{
		"block_trailing_greens",
		"block_trailing_ratio",
		"mins_since_green",
		"mins_since_red",
		"prev_hour_greens",
		"block_active",
		"block_strength",
		"block_cooling",
		"block_momentum",
		"green_streak",
	}
}

// Vector flattens the features in the order reported by Names.
// Boolean flags encode as 0 or 1.
func (f Features) Vector() []float64 {
	v := make([]float64, 0, FeatureCount)
	v = append(v, float64(f.TrailingGreens))
	v = append(v, f.TrailingRatio)
	v = append(v, f.MinsSinceGreen)
	v = append(v, f.MinsSinceRed)
	v = append(v, float64(f.PrevHourGreens))
	v = append(v, boolToFloat(f.BlockActive))
	v = append(v, f.BlockStrength)
	v = append(v, boolToFloat(f.Cooling))
	v = append(v, f.Momentum)
	v = append(v, float64(f.Streak))
	return v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type outcome struct {
	tsMs  int64
	green bool
}

// Tracker keeps a pruned log of recent outcomes and derives block
// features from it. Record appends and prunes; FeaturesAt only reads,
// so the same timestamp always yields the same features for a given log.
type Tracker struct {
	cfg Config
	log []outcome // ascending by timestamp
}

// NewTracker creates a tracker with the given windows.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Record appends one settled outcome and drops anything older than the
// retention horizon. Timestamps are expected in arrival order.
func (t *Tracker) Record(tsMs int64, green bool) {
	t.log = append(t.log, outcome{tsMs: tsMs, green: green})

	horizon := tsMs - int64(t.cfg.RetentionHours)*int64(time.Hour/time.Millisecond)
	cut := 0
	for cut < len(t.log) && t.log[cut].tsMs < horizon {
		cut++
	}
	if cut > 0 {
		t.log = t.log[cut:]
	}
}

// Reset drops the whole outcome log.
func (t *Tracker) Reset() {
	t.log = nil
}

// Size returns the number of retained outcomes.
func (t *Tracker) Size() int {
	return len(t.log)
}

// FeaturesAt derives the block features as of the given timestamp.
// Signals:
//   - trailing greens and green ratio over the trailing window
//   - minutes since last green / last red, capped at gap_cap_multiple * block_window
//   - greens inside the previous clock hour
//   - block flag when the block window holds >= block_threshold greens,
//     with strength = greens / strength_saturation clamped to 1
//   - cooling flag when the trailing window contains a block but the
//     last cooling_quiet_min minutes hold no green
//   - momentum = unweighted mean of the bounded signals, each clamped to [0,1]
//   - streak of consecutive greens ending at the latest outcome, capped
func (t *Tracker) FeaturesAt(tsMs int64) Features {
	var f Features

	trailingStart := tsMs - minutesToMs(t.cfg.TrailingWindowMin)
	blockStart := tsMs - minutesToMs(t.cfg.BlockWindowMin)
	quietStart := tsMs - minutesToMs(t.cfg.CoolingQuietMin)

	gapCapMin := float64(t.cfg.GapCapMultiple * t.cfg.BlockWindowMin)
	f.MinsSinceGreen = gapCapMin
	f.MinsSinceRed = gapCapMin

	hourStart := tsMs - tsMs%int64(time.Hour/time.Millisecond)
	prevHourStart := hourStart - int64(time.Hour/time.Millisecond)

	var (
		trailingTotal int
		blockGreens   int
		quietGreens   int
		greensInTrail []int64
	)

	for _, rec := range t.log {
		if rec.tsMs > tsMs {
			continue // future records do not exist yet at this timestamp
		}
		if rec.green {
			mins := msToMinutes(tsMs - rec.tsMs)
			if mins < f.MinsSinceGreen {
				f.MinsSinceGreen = mins
			}
		} else {
			mins := msToMinutes(tsMs - rec.tsMs)
			if mins < f.MinsSinceRed {
				f.MinsSinceRed = mins
			}
		}
		if rec.tsMs >= prevHourStart && rec.tsMs < hourStart && rec.green {
			f.PrevHourGreens++
		}
		if rec.tsMs >= trailingStart {
			trailingTotal++
			if rec.green {
				f.TrailingGreens++
				greensInTrail = append(greensInTrail, rec.tsMs)
			}
		}
		if rec.tsMs >= blockStart && rec.green {
			blockGreens++
		}
		if rec.tsMs >= quietStart && rec.green {
			quietGreens++
		}
	}

	if trailingTotal > 0 {
		f.TrailingRatio = float64(f.TrailingGreens) / float64(trailingTotal)
	}

	f.BlockActive = blockGreens >= t.cfg.BlockThreshold
	f.BlockStrength = clamp01(float64(blockGreens) / float64(t.cfg.StrengthSaturation))

	f.Cooling = quietGreens == 0 && t.hasBlock(greensInTrail)

	f.Streak = t.streakAt(tsMs)

	sat := float64(t.cfg.StrengthSaturation)
	signals := [6]float64{
		clamp01(float64(f.TrailingGreens) / sat),
		clamp01(f.TrailingRatio),
		clamp01(1 - f.MinsSinceGreen/gapCapMin),
		f.BlockStrength,
		clamp01(float64(f.PrevHourGreens) / sat),
		clamp01(float64(f.Streak) / float64(t.cfg.StreakCap)),
	}
	sum := 0.0
	for _, s := range signals {
		sum += s
	}
	f.Momentum = sum / float64(len(signals))

	return f
}

// hasBlock reports whether any block window inside the given green
// timestamps holds at least block_threshold greens. Timestamps ascend.
func (t *Tracker) hasBlock(greens []int64) bool {
	if len(greens) < t.cfg.BlockThreshold {
		return false
	}
	window := minutesToMs(t.cfg.BlockWindowMin)
	lo := 0
	for hi := range greens {
		for greens[hi]-greens[lo] > window {
			lo++
		}
		if hi-lo+1 >= t.cfg.BlockThreshold {
			return true
		}
	}
	return false
}

// streakAt counts consecutive greens walking back from the newest
// outcome at or before the timestamp, capped at streak_cap.
func (t *Tracker) streakAt(tsMs int64) int {
	streak := 0
	for i := len(t.log) - 1; i >= 0; i-- {
		if t.log[i].tsMs > tsMs {
			continue
		}
		if !t.log[i].green {
			break
		}
		streak++
		if streak >= t.cfg.StreakCap {
			return t.cfg.StreakCap
		}
	}
	return streak
}

func minutesToMs(m int) int64 {
	return int64(m) * int64(time.Minute/time.Millisecond)
}

func msToMinutes(ms int64) float64 {
	return float64(ms) / float64(time.Minute/time.Millisecond)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
