package scanner

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"DealsScanner/internal/domain"
)

// Blob is one raw page body; its markup tree is parsed at most once, on demand.
type Blob struct {
	Source string

	raw    string
	once   sync.Once
	doc    *goquery.Document
	docErr error
}

// NewBlob wraps raw page text.
func NewBlob(source, raw string) *Blob {
	return &Blob{Source: source, raw: raw}
}

// Raw returns the unparsed text.
func (b *Blob) Raw() string { return b.raw }

// Document parses the blob as HTML.
func (b *Blob) Document() (*goquery.Document, error) {
	b.once.Do(func() {
		b.doc, b.docErr = goquery.NewDocumentFromReader(strings.NewReader(b.raw))
	})
	return b.doc, b.docErr
}

// Registry keeps rules in registration order so extraction is deterministic.
type Registry struct {
	order []string
	rules map[string]Rule
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: map[string]Rule{}}
}

// DefaultRegistry holds DefaultRules.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	for _, rule := range DefaultRules() {
		reg.Register(rule)
	}
	return reg
}

// Register adds or replaces a rule; a replaced rule keeps its original position.
func (r *Registry) Register(rule Rule) {
	if r.rules == nil {
		r.rules = map[string]Rule{}
	}
	if _, ok := r.rules[rule.Name()]; !ok {
		r.order = append(r.order, rule.Name())
	}
	r.rules[rule.Name()] = rule
}

// Resolve returns a rule by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Rule, error) {
	if rule, ok := r.rules[name]; ok {
		return rule, nil
	}
	return nil, fmt.Errorf("extraction rule %s is not registered", name)
}

// Select returns the named rules, or every rule when names is empty.
func (r *Registry) Select(names []string) ([]Rule, error) {
	if len(names) == 0 {
		out := make([]Rule, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.rules[name])
		}
		return out, nil
	}

	out := make([]Rule, 0, len(names))
	for _, name := range names {
		rule, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Extractor applies an ordered rule list to page blobs.
type Extractor struct {
	rules  []Rule
	logger *slog.Logger
}

// NewExtractor wires rules; a nil logger disables debug output.
func NewExtractor(rules []Rule, logger *slog.Logger) *Extractor {
	return &Extractor{rules: rules, logger: logger}
}

// Extract returns distinct valid identifiers in first-discovery order.
func (e *Extractor) Extract(blobs ...*Blob) []string {
	seen := map[string]struct{}{}
	var ids []string

	for _, blob := range blobs {
		if blob == nil || blob.Raw() == "" {
			continue
		}
		found := 0
		for _, rule := range e.rules {
			for _, candidate := range rule.Match(blob) {
				if !ValidIdentifier(candidate) {
					continue
				}
				if _, dup := seen[candidate]; dup {
					continue
				}
				seen[candidate] = struct{}{}
				ids = append(ids, candidate)
				found++
			}
		}
		e.debug("blob scanned", "source", blob.Source, "new_ids", found)
	}

	return ids
}

// ValidIdentifier accepts exactly ten ASCII letters or digits, not all digits.
func ValidIdentifier(s string) bool {
	if len(s) != domain.IdentifierLength {
		return false
	}
	letters := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
			letters++
		default:
			return false
		}
	}
	return letters > 0
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
