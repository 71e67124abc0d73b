package scoring

import (
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

var validate = validator.New()

const weightEpsilon = 1e-6

// Weights distributes the global score across the three sub-scores.
// The three weights must sum to 1.0.
type Weights struct {
	Attractiveness float64 `json:"attractiveness" yaml:"attractiveness" validate:"gte=0,lte=1"`
	Utility        float64 `json:"utility" yaml:"utility" validate:"gte=0,lte=1"`
	Positioning    float64 `json:"positioning" yaml:"positioning" validate:"gte=0,lte=1"`
}

// Sum returns the total of the three weights.
func (w Weights) Sum() float64 {
	return w.Attractiveness + w.Utility + w.Positioning
}

// Objective identifies a business goal and how it weighs the sub-scores.
type Objective struct {
	Key         string  `json:"key" yaml:"key" validate:"required"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weights     Weights `json:"weights" yaml:"weights"`
}

// Validate rejects objectives whose weights do not sum to 1.0.
func (o Objective) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(err, errors.ValidationFailed, "invalid objective")
	}
	if math.Abs(o.Weights.Sum()-1.0) > weightEpsilon {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "objective weights must sum to 1.0"),
			errors.Fields{
				"objective": o.Key,
				"sum":       o.Weights.Sum(),
			})
	}
	return nil
}

// DefaultObjectives is the built-in objective catalog; config may extend it.
func DefaultObjectives() map[string]Objective {
	return map[string]Objective{
		"balanced_growth": {
			Key:         "balanced_growth",
			Description: "Equal weight on shelf appeal, nutrition and brand positioning",
			Weights:     Weights{Attractiveness: 0.34, Utility: 0.33, Positioning: 0.33},
		},
		"premium_shelf": {
			Key:         "premium_shelf",
			Description: "Visual appeal first, for premium retail placement",
			Weights:     Weights{Attractiveness: 0.45, Utility: 0.35, Positioning: 0.20},
		},
		"health_first": {
			Key:         "health_first",
			Description: "Nutrition-led positioning for health-conscious segments",
			Weights:     Weights{Attractiveness: 0.20, Utility: 0.50, Positioning: 0.30},
		},
	}
}
