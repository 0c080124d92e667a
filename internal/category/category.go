// Package category assigns catalog categories from free text using ordered keyword rules.
package category

import (
	"strings"

	"github.com/acrc-community/acrc/internal/models"
)

// Rule maps a lowercase keyword to a category.
type Rule struct {
	Keyword  string
	Category string
}

// Rules is an ordered rule list with a fallback. The first rule whose keyword
// is contained in the text wins.
type Rules struct {
	Fallback string
	List     []Rule
}

// Cars classifies car archives by their file name.
var Cars = Rules{
	List: []Rule{
		{Keyword: "drift", Category: models.CarCategoryDrift},
		{Keyword: "gt", Category: models.CarCategoryGT},
		{Keyword: "jdm", Category: models.CarCategoryJDM},
		{Keyword: "f1", Category: models.CarCategoryF1},
		{Keyword: "rally", Category: models.CarCategoryRally},
	},
	Fallback: models.CarCategorySport,
}

// Servers classifies game servers by their reported name.
var Servers = Rules{
	List: []Rule{
		{Keyword: "drift", Category: models.ServerCategoryDrift},
		{Keyword: "touge", Category: models.ServerCategoryTouge},
		{Keyword: "street", Category: models.ServerCategoryStreet},
		{Keyword: "gt3", Category: models.ServerCategoryGT3},
		{Keyword: "freestyle", Category: models.ServerCategoryFreestyle},
	},
	Fallback: models.ServerCategoryGT3,
}

// Match returns the category of the first rule matching text case-insensitively,
// or the fallback when nothing matches.
func (r Rules) Match(text string) string {
	text = strings.ToLower(text)
	for _, rule := range r.List {
		if strings.Contains(text, rule.Keyword) {
			return rule.Category
		}
	}

	return r.Fallback
}

// Resolve returns explicit when it is non-blank, otherwise Match(text).
func (r Rules) Resolve(explicit, text string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}

	return r.Match(text)
}
