package spacedrep

import (
	"fmt"
	"slices"
)

// Scheduling defaults.
const (
	DefaultTargetRetention     = 0.9
	DefaultGraduationStability = 3.0
)

// DefaultLearningSteps are the day intervals used while an item is Learning.
var DefaultLearningSteps = []int{1, 3}

// DefaultRelearningSteps are the day intervals used after a lapse.
var DefaultRelearningSteps = []int{1}

// Config is the immutable configuration of a Scheduler. Changing any field
// means building a new Scheduler.
type Config struct {
	Parameters      Parameters
	TargetRetention float64 // probability of recall at the due date, in (0, 1)
	MinInterval     int     // days
	MaxInterval     int     // days

	// LearningSteps and RelearningSteps are strictly ascending day intervals
	// used before an item graduates to Review.
	LearningSteps   []int
	RelearningSteps []int

	// GraduationStability is the stability (days) a Learning or Relearning
	// item must reach on a successful review to move to Review.
	GraduationStability float64

	// ShortTermDisabled skips the learning phase: every successful review
	// lands in Review.
	ShortTermDisabled bool

	DisableFuzz bool
}

// DefaultConfig returns the default scheduling configuration.
func DefaultConfig() Config {
	return Config{
		Parameters:          DefaultParameters(),
		TargetRetention:     DefaultTargetRetention,
		MinInterval:         DefaultMinInterval,
		MaxInterval:         DefaultMaxInterval,
		LearningSteps:       slices.Clone(DefaultLearningSteps),
		RelearningSteps:     slices.Clone(DefaultRelearningSteps),
		GraduationStability: DefaultGraduationStability,
	}
}

// Validate reports the first inconsistency in c, wrapped in ErrConfig.
func (c Config) Validate() error {
	if err := c.Parameters.Validate(); err != nil {
		return err
	}
	if !(c.TargetRetention > 0 && c.TargetRetention < 1) {
		return fmt.Errorf("%w: target retention %v must be in (0, 1)", ErrConfig, c.TargetRetention)
	}
	if _, err := NewIntervalPolicy(c.MinInterval, c.MaxInterval); err != nil {
		return err
	}
	if !(c.GraduationStability > 0) {
		return fmt.Errorf("%w: graduation stability %v must be positive", ErrConfig, c.GraduationStability)
	}
	if err := c.validateSteps("learning", c.LearningSteps); err != nil {
		return err
	}
	return c.validateSteps("relearning", c.RelearningSteps)
}

func (c Config) validateSteps(name string, steps []int) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: %s steps must not be empty", ErrConfig, name)
	}
	for i, s := range steps {
		if s < c.MinInterval || s > c.MaxInterval {
			return fmt.Errorf("%w: %s step %d day(s) outside [%d, %d]", ErrConfig, name, s, c.MinInterval, c.MaxInterval)
		}
		if i > 0 && s <= steps[i-1] {
			return fmt.Errorf("%w: %s steps must be strictly ascending", ErrConfig, name)
		}
	}
	return nil
}

// clone copies the slices so that callers cannot alter a built Scheduler.
func (c Config) clone() Config {
	out := c
	out.LearningSteps = slices.Clone(c.LearningSteps)
	out.RelearningSteps = slices.Clone(c.RelearningSteps)
	return out
}

// nextStep returns the first step longer than the previous interval, or the
// last step when none is longer.
func nextStep(steps []int, prev int) int {
	for _, s := range steps {
		if s > prev {
			return s
		}
	}
	return steps[len(steps)-1]
}

// currentStep returns the longest step not exceeding the previous interval,
// or the first step.
func currentStep(steps []int, prev int) int {
	cur := steps[0]
	for _, s := range steps {
		if s <= prev {
			cur = s
		}
	}
	return cur
}
