package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule recognizes identifiers in one surrounding syntax (a path segment, an attribute, ...).
type Rule interface {
	Name() string
	Match(blob *Blob) []string
}

// PatternRule captures the first submatch of a regular expression over raw text.
type PatternRule struct {
	name string
	expr *regexp.Regexp
}

// NewPatternRule compiles expr; the identifier must be its first capture group.
func NewPatternRule(name, expr string) *PatternRule {
	return &PatternRule{name: name, expr: regexp.MustCompile(expr)}
}

// Name identifies the rule inside the registry.
func (r *PatternRule) Name() string { return r.name }

// Match returns every captured candidate in document order.
func (r *PatternRule) Match(blob *Blob) []string {
	matches := r.expr.FindAllStringSubmatch(blob.Raw(), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

// AttributeRule reads identifiers from a markup attribute, e.g. data-asin="...".
type AttributeRule struct {
	name      string
	attribute string
}

// NewAttributeRule matches every element carrying attribute.
func NewAttributeRule(name, attribute string) *AttributeRule {
	return &AttributeRule{name: name, attribute: attribute}
}

// Name identifies the rule inside the registry.
func (r *AttributeRule) Name() string { return r.name }

// Match parses the blob as markup; unparsable blobs produce nothing.
func (r *AttributeRule) Match(blob *Blob) []string {
	doc, err := blob.Document()
	if err != nil {
		return nil
	}

	var out []string
	doc.Find(fmt.Sprintf("[%s]", r.attribute)).Each(func(_ int, sel *goquery.Selection) {
		if value, ok := sel.Attr(r.attribute); ok {
			out = append(out, strings.TrimSpace(value))
		}
	})
	return out
}

// Boundaries keep a longer token from being cut down to a 10-character prefix or suffix.
const (
	idTail = `(?:[^A-Za-z0-9]|$)`
	idHead = `(?:[^"]*[^A-Za-z0-9"])?`
)

// DefaultRules returns the built-in rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		NewPatternRule("dp-path", `/dp/([A-Z0-9]{10})`+idTail),
		NewPatternRule("gp-product-path", `/gp/product/([A-Z0-9]{10})`+idTail),
		NewAttributeRule("data-asin", "data-asin"),
		NewAttributeRule("data-csa-c-asin", "data-csa-c-asin"),
		NewPatternRule("asin-assignment", `asin["']?\s*[:=]\s*["']([A-Z0-9]{10})["']`),
		NewPatternRule("data-testid", `data-testid="`+idHead+`([A-Z0-9]{10})"`),
	}
}
