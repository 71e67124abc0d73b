package scoring

import (
	"fmt"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

// Dimension names one of the three scored axes.
type Dimension string

const (
	DimensionAttractiveness Dimension = "attractiveness"
	DimensionUtility        Dimension = "utility"
	DimensionPositioning    Dimension = "positioning"
)

// Dimensions lists the scored axes in their canonical order.
func Dimensions() []Dimension {
	return []Dimension{DimensionAttractiveness, DimensionUtility, DimensionPositioning}
}

// Criterion is one categorical judgment contributing to a sub-score.
// Grade takes the values 0, 0.5 or 1.
type Criterion struct {
	Name      string  `json:"name"`
	Grade     float64 `json:"grade"`
	Rationale string  `json:"rationale,omitempty"`
}

// Modifier is a deterministic point delta derived from product facts,
// applied after the base criteria average.
type Modifier struct {
	Name  string  `json:"name"`
	Delta float64 `json:"delta"`
}

// DimensionScore records how a sub-score was computed.
type DimensionScore struct {
	Criteria  []Criterion `json:"criteria"`
	Base      float64     `json:"base"`
	Modifiers []Modifier  `json:"modifiers,omitempty"`
	Final     float64     `json:"final"`
}

// Scores are the three sub-scores plus the weighted global score, all in [0, 100].
type Scores struct {
	Attractiveness float64 `json:"attractiveness"`
	Utility        float64 `json:"utility"`
	Positioning    float64 `json:"positioning"`
	Global         float64 `json:"global"`
}

// Breakdown maps each dimension to its computation record.
type Breakdown map[Dimension]DimensionScore

// Clamp bounds a score to [0, 100].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// validGrade reports whether g is one of the three categorical grade values.
func validGrade(g float64) bool {
	return g == 0 || g == 0.5 || g == 1
}

// BaseScore is the arithmetic mean of the criteria grades, scaled to 100.
func BaseScore(criteria []Criterion) (float64, error) {
	if len(criteria) < 3 || len(criteria) > 4 {
		return 0, errors.WithFields(
			errors.New(errors.ValidationFailed, "each dimension requires 3-4 graded criteria"),
			errors.Fields{"count": len(criteria)})
	}
	sum := 0.0
	for _, c := range criteria {
		if !validGrade(c.Grade) {
			return 0, errors.WithFields(
				errors.New(errors.ValidationFailed, "criterion grade must be 0, 0.5 or 1"),
				errors.Fields{"criterion": c.Name, "grade": c.Grade})
		}
		sum += c.Grade
	}
	return sum / float64(len(criteria)) * 100, nil
}

// Modifiers returns the deterministic point deltas for one dimension.
func Modifiers(dim Dimension, p Product) []Modifier {
	var mods []Modifier
	add := func(name string, delta float64) {
		mods = append(mods, Modifier{Name: name, Delta: delta})
	}

	switch dim {
	case DimensionUtility:
		if p.ProteinG > 15 {
			add("high protein (>15g/100g)", +5)
		}
		if p.FiberG >= 3 {
			add("fiber source (>=3g/100g)", +5)
		}
		switch p.NovaGroup {
		case 4:
			add("ultra-processed (NOVA 4)", -10)
		case 1:
			add("unprocessed (NOVA 1)", +5)
		}
		if p.AdditiveCount > 5 {
			add("additive heavy (>5)", -5)
		}

	case DimensionPositioning:
		if n := p.TrustedLabelCount(); n > 0 {
			delta := float64(n) * 2
			if delta > 6 {
				delta = 6
			}
			add(fmt.Sprintf("trusted labels (%d)", n), delta)
		}
		if p.PackagingRecyclable {
			add("recyclable packaging", +5)
		}

	case DimensionAttractiveness:
		if strings.EqualFold(p.PackagingMaterial, "glass") {
			add("premium glass packaging", +3)
		}
		if p.IngredientCount > 0 && p.IngredientCount <= 5 {
			add("short ingredient list", +2)
		}
	}

	return mods
}

// ComputeScores turns graded criteria plus product facts into the final
// clamped sub-scores and weighted global score.
func ComputeScores(p Product, obj Objective, criteria map[Dimension][]Criterion) (Scores, Breakdown, error) {
	if err := obj.Validate(); err != nil {
		return Scores{}, nil, err
	}
	if err := p.Validate(); err != nil {
		return Scores{}, nil, err
	}

	breakdown := make(Breakdown, len(criteria))
	finals := make(map[Dimension]float64, 3)

	for _, dim := range Dimensions() {
		dimCriteria, ok := criteria[dim]
		if !ok {
			return Scores{}, nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "missing criteria for dimension"),
				errors.Fields{"dimension": dim})
		}

		base, err := BaseScore(dimCriteria)
		if err != nil {
			return Scores{}, nil, errors.WithFields(err, errors.Fields{"dimension": dim})
		}

		mods := Modifiers(dim, p)
		final := base
		for _, m := range mods {
			final += m.Delta
		}
		final = Clamp(final)

		breakdown[dim] = DimensionScore{
			Criteria:  dimCriteria,
			Base:      base,
			Modifiers: mods,
			Final:     final,
		}
		finals[dim] = final
	}

	scores := Scores{
		Attractiveness: finals[DimensionAttractiveness],
		Utility:        finals[DimensionUtility],
		Positioning:    finals[DimensionPositioning],
	}
	scores.Global = Clamp(
		obj.Weights.Attractiveness*scores.Attractiveness +
			obj.Weights.Utility*scores.Utility +
			obj.Weights.Positioning*scores.Positioning)

	return scores, breakdown, nil
}
