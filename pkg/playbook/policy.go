package playbook

import (
	"regexp"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

var (
	trademarkRegex = regexp.MustCompile(`[®™]`)
	skuRegex       = regexp.MustCompile(`\b\d{8,}\b`)
	priceRegex     = regexp.MustCompile(`[$€£]\s?\d`)
)

// CheckGeneralizable rejects bullet text that is tied to one product rather
// than expressing a reusable rule. bannedTokens carries the identifiers of
// the product currently under analysis (name, brand) so the curator cannot
// leak them into the shared playbook.
func CheckGeneralizable(text string, bannedTokens []string) error {
	reject := func(reason string) error {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "bullet text is product-specific"),
			errors.Fields{"reason": reason})
	}

	if trademarkRegex.MatchString(text) {
		return reject("trademark symbol")
	}
	if skuRegex.MatchString(text) {
		return reject("SKU or barcode digits")
	}
	if priceRegex.MatchString(text) {
		return reject("price reference")
	}

	lower := strings.ToLower(text)
	for _, token := range bannedTokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if strings.Contains(lower, token) {
			return reject("product identifier: " + token)
		}
	}

	return nil
}
