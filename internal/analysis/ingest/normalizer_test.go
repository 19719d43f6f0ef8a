package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/analysis/ingest"
	"github.com/turtacn/EquityLens/pkg/errors"
)

func TestNormalize_CleansWhitespaceAndControls(t *testing.T) {
	t.Parallel()
	n := ingest.NewNormalizer(nil)

	doc, err := n.Normalize("  Infosys \t\t posted \n\n strong \x00 results  ")
	require.NoError(t, err)
	assert.Equal(t, "Infosys posted strong results", doc.Text)
	assert.Equal(t, 4, doc.WordCount)
}

func TestNormalize_EmptyInputIsValidationError(t *testing.T) {
	t.Parallel()
	n := ingest.NewNormalizer(nil)

	for _, raw := range []string{"", "   ", "\n\t  \r\n"} {
		_, err := n.Normalize(raw)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	}
}

func TestNormalize_ExtractsEntities(t *testing.T) {
	t.Parallel()
	n := ingest.NewNormalizer(nil)

	doc, err := n.Normalize("Latest on INFY.NS: the Indian IT major beats estimates. CEO commentary was upbeat.")
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY.NS"}, doc.Tickers)
	assert.Equal(t, []string{"india"}, doc.Regions)
}

func TestExtractTickers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			// A stopword ("ON") as the base of a suffixed symbol must survive;
			// filtering is exact-match on the whole token.
			name: "suffixed symbol built from a stopword",
			text: "We initiate coverage ON ON.NS with a BUY rating.",
			want: []string{"ON.NS"},
		},
		{
			name: "headline with suffix",
			text: "Latest on INFY.NS",
			want: []string{"INFY.NS"},
		},
		{
			name: "bare symbols minus stopwords",
			text: "TCS and HDFC outperformed while the CEO discussed the IPO and GDP trends.",
			want: []string{"TCS", "HDFC"},
		},
		{
			name: "unknown exchange suffix discarded entirely",
			text: "The ticker FOO.XQ is not listed anywhere we track.",
			want: nil,
		},
		{
			name: "single letters rejected without suffix",
			text: "A grade I report",
			want: nil,
		},
		{
			name: "duplicates collapse in first-seen order",
			text: "RELIANCE.NS rallied; RELIANCE.NS closed higher alongside TCS.",
			want: []string{"RELIANCE.NS", "TCS"},
		},
		{
			name: "currencies and acronyms filtered",
			text: "USD strength hurt EPS while the SEC and FED stayed quiet.",
			want: nil,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ingest.ExtractTickers(tc.text))
		})
	}
}

func TestExtractRegions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "multiple regions sorted",
			text: "Exposure spans India and China, with tailwinds from U.S demand.",
			want: []string{"china", "india", "united_states"},
		},
		{
			name: "aliases map to canonical names",
			text: "The Nikkei slid while KOSPI gained.",
			want: []string{"japan", "south_korea"},
		},
		{
			name: "no region mentions",
			text: "Margins expanded on better product mix.",
			want: nil,
		},
		{
			name: "word boundary prevents substring hits",
			text: "The bindianite mineral is unrelated.",
			want: nil,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ingest.ExtractRegions(tc.text))
		})
	}
}

func TestKnownRegions_SortedAndNonEmpty(t *testing.T) {
	t.Parallel()
	regions := ingest.KnownRegions()
	require.NotEmpty(t, regions)
	assert.IsType(t, []string{}, regions)
	for i := 1; i < len(regions); i++ {
		assert.Less(t, regions[i-1], regions[i])
	}
}
