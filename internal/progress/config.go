package progress

import "time"

// Config holds rewards, costs and timing for the engine
type Config struct {
	WordReward  int64
	BonusReward int64
	LevelReward int64
	HintCost    int64
	RevealCost  int64

	// SignupBonus is the currency a newly created document starts with
	SignupBonus int64

	// DebounceWindow is the quiet period before queued scalar updates are written
	DebounceWindow time.Duration

	// WriteTimeout bounds each background remote write
	WriteTimeout time.Duration
}

// DefaultConfig returns the standard game economy
func DefaultConfig() Config {
	return Config{
		WordReward:     10,
		BonusReward:    5,
		LevelReward:    50,
		HintCost:       25,
		RevealCost:     50,
		SignupBonus:    0,
		DebounceWindow: 2 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}
