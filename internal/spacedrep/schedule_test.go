package spacedrep

import (
	"errors"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min above max", func(c *Config) { c.MinInterval, c.MaxInterval = 10, 5 }},
		{"zero min", func(c *Config) { c.MinInterval = 0 }},
		{"retention zero", func(c *Config) { c.TargetRetention = 0 }},
		{"retention one", func(c *Config) { c.TargetRetention = 1 }},
		{"empty learning steps", func(c *Config) { c.LearningSteps = nil }},
		{"empty relearning steps", func(c *Config) { c.RelearningSteps = []int{} }},
		{"descending steps", func(c *Config) { c.LearningSteps = []int{3, 1} }},
		{"step above max", func(c *Config) { c.MaxInterval = 2; c.LearningSteps = []int{1, 3} }},
		{"non-positive graduation", func(c *Config) { c.GraduationStability = 0 }},
		{"bad parameter version", func(c *Config) { c.Parameters.Version = "six" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Errorf("Validate() = %v, want ErrConfig", err)
			}
		})
	}
}

func TestNextStep(t *testing.T) {
	steps := []int{1, 3, 7}
	tests := []struct {
		prev int
		want int
	}{
		{0, 1},
		{1, 3},
		{2, 3},
		{3, 7},
		{7, 7},
		{30, 7},
	}
	for _, tt := range tests {
		if got := nextStep(steps, tt.prev); got != tt.want {
			t.Errorf("nextStep(%v, %d) = %d, want %d", steps, tt.prev, got, tt.want)
		}
	}
}

func TestCurrentStep(t *testing.T) {
	steps := []int{1, 3, 7}
	tests := []struct {
		prev int
		want int
	}{
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 3},
		{9, 7},
	}
	for _, tt := range tests {
		if got := currentStep(steps, tt.prev); got != tt.want {
			t.Errorf("currentStep(%v, %d) = %d, want %d", steps, tt.prev, got, tt.want)
		}
	}
}

func TestConfigClone_Independent(t *testing.T) {
	cfg := DefaultConfig()
	c := cfg.clone()
	c.LearningSteps[0] = 99
	if cfg.LearningSteps[0] == 99 {
		t.Error("clone shares LearningSteps with the original")
	}
}
