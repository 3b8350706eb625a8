package paapi

import (
	"fmt"
	"sort"
	"strings"
)

// Marketplace describes where a locale's API lives and how requests are signed.
type Marketplace struct {
	Code   string
	Host   string
	Region string
	Domain string
}

var marketplaces = map[string]Marketplace{
	"IN": {Code: "IN", Host: "webservices.amazon.in", Region: "eu-west-1", Domain: "www.amazon.in"},
	"US": {Code: "US", Host: "webservices.amazon.com", Region: "us-east-1", Domain: "www.amazon.com"},
	"UK": {Code: "UK", Host: "webservices.amazon.co.uk", Region: "eu-west-1", Domain: "www.amazon.co.uk"},
	"DE": {Code: "DE", Host: "webservices.amazon.de", Region: "eu-west-1", Domain: "www.amazon.de"},
	"FR": {Code: "FR", Host: "webservices.amazon.fr", Region: "eu-west-1", Domain: "www.amazon.fr"},
	"IT": {Code: "IT", Host: "webservices.amazon.it", Region: "eu-west-1", Domain: "www.amazon.it"},
	"ES": {Code: "ES", Host: "webservices.amazon.es", Region: "eu-west-1", Domain: "www.amazon.es"},
	"CA": {Code: "CA", Host: "webservices.amazon.ca", Region: "us-east-1", Domain: "www.amazon.ca"},
	"JP": {Code: "JP", Host: "webservices.amazon.co.jp", Region: "us-west-2", Domain: "www.amazon.co.jp"},
	"AU": {Code: "AU", Host: "webservices.amazon.com.au", Region: "us-west-2", Domain: "www.amazon.com.au"},
}

// DefaultMarketplace is used when no region is configured.
const DefaultMarketplace = "IN"

// LookupMarketplace resolves a region code such as "IN" or "us".
func LookupMarketplace(code string) (Marketplace, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultMarketplace
	}
	if code == "GB" {
		code = "UK"
	}
	m, ok := marketplaces[code]
	if !ok {
		return Marketplace{}, fmt.Errorf("unknown marketplace %q (known: %s)", code, strings.Join(MarketplaceCodes(), ", "))
	}
	return m, nil
}

// MarketplaceCodes lists supported region codes in sorted order.
func MarketplaceCodes() []string {
	codes := make([]string, 0, len(marketplaces))
	for code := range marketplaces {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
