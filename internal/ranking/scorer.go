// Package ranking orders enriched records by affiliate priority.
package ranking

import (
	"slices"
	"strings"

	"DealsScanner/internal/domain"
)

// Category is a named keyword set. Earlier categories score higher.
type Category struct {
	Name     string
	Keywords []string
}

// DefaultCategories lists categories from the highest commission tier down.
var DefaultCategories = []Category{
	{Name: "Fashion", Keywords: []string{"dress", "shirt", "trouser", "fashion", "clothing", "apparel"}},
	{Name: "Clothing", Keywords: []string{"clothing", "wear", "fabric", "cotton", "silk", "denim"}},
	{Name: "Shoes", Keywords: []string{"shoes", "sneakers", "boots", "sandals", "footwear", "heel"}},
	{Name: "Jewelry", Keywords: []string{"jewelry", "ring", "necklace", "earring", "bracelet", "chain"}},
	{Name: "Watches", Keywords: []string{"watch", "smartwatch", "timepiece", "wrist"}},
	{Name: "Bags", Keywords: []string{"bag", "backpack", "handbag", "purse", "wallet", "luggage"}},
	{Name: "Home & Kitchen", Keywords: []string{"kitchen", "home", "cookware", "utensil", "furniture", "decor"}},
	{Name: "Sports & Fitness", Keywords: []string{"sports", "fitness", "gym", "exercise", "yoga", "cricket"}},
	{Name: "Beauty & Personal Care", Keywords: []string{"beauty", "cosmetic", "skincare", "makeup", "perfume"}},
	{Name: "Toys & Games", Keywords: []string{"toy", "game", "kids", "children", "puzzle", "doll"}},
	{Name: "Books", Keywords: []string{"book", "novel", "guide", "textbook", "story"}},
	{Name: "Health & Household", Keywords: []string{"health", "wellness", "medicine", "supplement", "vitamin"}},
	{Name: "Electronics"},
	{Name: "Computers"},
	{Name: "Mobile Phones"},
}

// MaxScore is the score of a title matching the first category.
const MaxScore = 100

// Scorer assigns category affinity scores from titles.
type Scorer struct {
	categories []Category
}

// NewScorer lowercases keywords and gives keyword-less categories their own name.
func NewScorer(categories []Category) *Scorer {
	prepared := make([]Category, 0, len(categories))
	for _, c := range categories {
		keywords := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			keywords = []string{strings.ToLower(c.Name)}
		}
		prepared = append(prepared, Category{Name: c.Name, Keywords: keywords})
	}
	return &Scorer{categories: prepared}
}

// Score returns 100 minus the index of the first category whose keyword
// occurs in title, or 0 when nothing matches.
func (s *Scorer) Score(title string) int {
	_, score := s.Classify(title)
	return score
}

// Classify is Score plus the name of the matched category.
func (s *Scorer) Classify(title string) (string, int) {
	lower := strings.ToLower(title)
	for i, c := range s.categories {
		for _, k := range c.Keywords {
			if strings.Contains(lower, k) {
				return c.Name, max(MaxScore-i, 0)
			}
		}
	}
	return "", 0
}

// Rank scores every record and returns them by descending rank key.
// Records with equal keys keep their input order.
func (s *Scorer) Rank(records []domain.ProductRecord) []domain.ProductRecord {
	ranked := make([]domain.ProductRecord, len(records))
	for i, r := range records {
		r.CategoryScore = s.Score(r.Title)
		ranked[i] = r
	}
	slices.SortStableFunc(ranked, func(a, b domain.ProductRecord) int {
		ka, kb := a.RankKey(), b.RankKey()
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		default:
			return 0
		}
	})
	return ranked
}
