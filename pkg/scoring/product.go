package scoring

import (
	"strings"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

// Product holds the externally supplied facts about one food product.
// Nutritional values are per 100g.
type Product struct {
	Name                string   `json:"name" validate:"required"`
	Brand               string   `json:"brand,omitempty"`
	NovaGroup           int      `json:"nova_group" validate:"min=0,max=4"`
	AdditiveCount       int      `json:"additive_count" validate:"min=0"`
	ProteinG            float64  `json:"protein_g" validate:"min=0"`
	FiberG              float64  `json:"fiber_g" validate:"min=0"`
	SugarG              float64  `json:"sugar_g" validate:"min=0"`
	SaltG               float64  `json:"salt_g" validate:"min=0"`
	IngredientCount     int      `json:"ingredient_count" validate:"min=0"`
	Labels              []string `json:"labels,omitempty"`
	PackagingMaterial   string   `json:"packaging_material,omitempty"`
	PackagingRecyclable bool     `json:"packaging_recyclable"`
}

// trustedLabels are certifications that carry positioning weight.
var trustedLabels = map[string]bool{
	"vegan":               true,
	"organic":             true,
	"fairtrade":           true,
	"gluten-free":         true,
	"rainforest alliance": true,
}

// TrustedLabelCount returns how many of the product's labels are recognized
// certifications.
func (p Product) TrustedLabelCount() int {
	count := 0
	for _, label := range p.Labels {
		if trustedLabels[strings.ToLower(strings.TrimSpace(label))] {
			count++
		}
	}
	return count
}

// Validate checks required product fields before any generative call is made.
func (p Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, errors.ValidationFailed, "invalid product facts")
	}
	return nil
}
