package planner

import (
	"errors"
	"fmt"
)

// Defaults for Config.
const (
	DefaultTargetDuration       = 60.0
	DefaultMainChunkSeconds     = 8.0
	DefaultReactionChunkSeconds = 6.0
	DefaultDissolveSeconds      = 0.5
	DefaultLowerThirdSeconds    = 3.0
	DefaultLowerThirdOffset     = 1.0
	DefaultMusicGainDB          = -18.0
	DefaultBleepGainDB          = 0.0
)

// Config drives the alternating edit. All durations are in seconds.
type Config struct {
	TargetDuration       float64 `json:"target_duration" yaml:"target_duration" toml:"target_duration"`
	MainChunkSeconds     float64 `json:"main_chunk_seconds" yaml:"main_chunk_seconds" toml:"main_chunk_seconds"`
	ReactionChunkSeconds float64 `json:"reaction_chunk_seconds" yaml:"reaction_chunk_seconds" toml:"reaction_chunk_seconds"`
	DissolveSeconds      float64 `json:"dissolve_seconds" yaml:"dissolve_seconds" toml:"dissolve_seconds"`
	LowerThirdSeconds    float64 `json:"lower_third_seconds" yaml:"lower_third_seconds" toml:"lower_third_seconds"`
	LowerThirdOffset     float64 `json:"lower_third_offset" yaml:"lower_third_offset" toml:"lower_third_offset"`
	MusicGainDB          float64 `json:"music_gain_db" yaml:"music_gain_db" toml:"music_gain_db"`
	BleepGainDB          float64 `json:"bleep_gain_db" yaml:"bleep_gain_db" toml:"bleep_gain_db"`
}

func DefaultConfig() Config {
	return Config{
		TargetDuration:       DefaultTargetDuration,
		MainChunkSeconds:     DefaultMainChunkSeconds,
		ReactionChunkSeconds: DefaultReactionChunkSeconds,
		DissolveSeconds:      DefaultDissolveSeconds,
		LowerThirdSeconds:    DefaultLowerThirdSeconds,
		LowerThirdOffset:     DefaultLowerThirdOffset,
		MusicGainDB:          DefaultMusicGainDB,
		BleepGainDB:          DefaultBleepGainDB,
	}
}

// Validate rejects configurations the alternation cannot make progress with.
func (c Config) Validate() error {
	var errs []error
	if c.TargetDuration < 0 {
		errs = append(errs, fmt.Errorf("target_duration must not be negative, got %v", c.TargetDuration))
	}
	if c.MainChunkSeconds <= 0 {
		errs = append(errs, fmt.Errorf("main_chunk_seconds must be positive, got %v", c.MainChunkSeconds))
	}
	if c.ReactionChunkSeconds <= 0 {
		errs = append(errs, fmt.Errorf("reaction_chunk_seconds must be positive, got %v", c.ReactionChunkSeconds))
	}
	if c.DissolveSeconds < 0 {
		errs = append(errs, fmt.Errorf("dissolve_seconds must not be negative, got %v", c.DissolveSeconds))
	}
	if c.LowerThirdSeconds < 0 {
		errs = append(errs, fmt.Errorf("lower_third_seconds must not be negative, got %v", c.LowerThirdSeconds))
	}
	return errors.Join(errs...)
}
