package scanner

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dealsPage = `
<html><body>
  <div data-asin="B0C1H26C46" class="deal">
    <a href="/Some-Product/dp/B09G9FPHY6/ref=sr_1_1">Shoe</a>
    <a href="/gp/product/B07XJ8C8F5?psc=1">Watch</a>
  </div>
  <div data-csa-c-asin="B08N5WRWNW"></div>
  <div data-asin=""></div>
  <div data-testid="deal-card-B0BSHF7WHW"></div>
  <script>var cfg = {"asin": "B0CHX1W1XY", "phone": "9876543210"};</script>
  <a href="/dp/B09G9FPHY6">duplicate</a>
</body></html>`

func TestExtractAppliesEveryRule(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(DefaultRules(), nil)
	ids := ex.Extract(NewBlob("deals", dealsPage))

	assert.Equal(t, []string{
		"B09G9FPHY6",
		"B07XJ8C8F5",
		"B0C1H26C46",
		"B08N5WRWNW",
		"B0CHX1W1XY",
		"B0BSHF7WHW",
	}, ids)
}

func TestExtractRejectsNumericAndMalformedCandidates(t *testing.T) {
	t.Parallel()

	faker := gofakeit.New(42)
	var b strings.Builder
	for range 20 {
		phone := faker.Phone()
		b.WriteString(`<a href="/dp/` + phone + `">call</a>`)
		b.WriteString(`<div data-asin="` + phone + `"></div>`)
	}
	b.WriteString(`<a href="/dp/B0LONGERTOKEN1">too long</a>`)
	b.WriteString(`<div data-asin="B0SHORT"></div>`)
	b.WriteString(`<div data-asin="B0C1-26C46"></div>`)
	b.WriteString(`<div data-testid="DEALCARDCONTAINER"></div>`)
	b.WriteString(`<div data-testid="deal-card-XB0BSHF7WHW"></div>`)

	ids := NewExtractor(DefaultRules(), nil).Extract(NewBlob("noise", b.String()))
	assert.Empty(t, ids)
}

func TestExtractInvariants(t *testing.T) {
	t.Parallel()

	blobs := []*Blob{
		NewBlob("a", dealsPage),
		NewBlob("b", `<a href="/dp/1234567890">isbn</a><a href="/dp/B0D5B6DMXY">x</a>`),
		NewBlob("c", ""),
		nil,
	}
	ids := NewExtractor(DefaultRules(), nil).Extract(blobs...)
	require.NotEmpty(t, ids)

	seen := map[string]bool{}
	for _, id := range ids {
		assert.Len(t, id, 10)
		assert.True(t, ValidIdentifier(id), id)
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.True(t, seen["B0D5B6DMXY"])
	assert.False(t, seen["1234567890"])
}

func TestExtractIsOrderIndependentAsASet(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	reversed := make([]Rule, len(rules))
	for i, r := range rules {
		reversed[len(rules)-1-i] = r
	}

	forward := NewExtractor(rules, nil).Extract(NewBlob("deals", dealsPage))
	backward := NewExtractor(reversed, nil).Extract(NewBlob("deals", dealsPage))

	assert.ElementsMatch(t, forward, backward)
}

func TestValidIdentifier(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"B09G9FPHY6":  true,
		"b09g9fphy6":  true,
		"ABCDEFGHIJ":  true,
		"0123456789":  false,
		"B09G9FPHY":   false,
		"B09G9FPHY61": false,
		"B09G9-PHY6":  false,
		"":            false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidIdentifier(in), in)
	}
}

func TestRegistrySelect(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()

	all, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultRules()))
	assert.Equal(t, "dp-path", all[0].Name())

	some, err := reg.Select([]string{"data-asin", "dp-path"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "data-asin", some[0].Name())

	_, err = reg.Select([]string{"missing"})
	assert.Error(t, err)
}
