package lstm

import (
	"errors"
	"fmt"
)

// Config describes the architecture and optimizer of a Network.
type Config struct {
	Window       int     `json:"window" yaml:"window"`
	Units        []int   `json:"units" yaml:"units"`
	Dropout      float64 `json:"dropout" yaml:"dropout"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Seed         int64   `json:"seed" yaml:"seed"`
}

// DefaultConfig is two 50-unit layers with 0.2 dropout over a 60-step window.
func DefaultConfig() Config {
	return Config{
		Window:       60,
		Units:        []int{50, 50},
		Dropout:      0.2,
		LearningRate: 0.001,
		Seed:         42,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window == 0 {
		c.Window = d.Window
	}
	if len(c.Units) == 0 {
		c.Units = d.Units
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	return c
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("window must be >= 1, got %d", c.Window)
	}
	if len(c.Units) == 0 {
		return errors.New("at least one recurrent layer is required")
	}
	for i, u := range c.Units {
		if u < 1 {
			return fmt.Errorf("layer %d: units must be >= 1, got %d", i, u)
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1), got %v", c.Dropout)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0, got %v", c.LearningRate)
	}
	return nil
}
