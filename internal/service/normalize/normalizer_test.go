package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
)

// fullRaw is a healthy provider payload covering every mapped group.
func fullRaw() map[string]any {
	return map[string]any{
		"longName":                     "Apple Inc.",
		"sector":                       "Technology",
		"industry":                     "Consumer Electronics",
		"country":                      "United States",
		"website":                      "https://www.apple.com",
		"currentPrice":                 190.5,
		"currency":                     "USD",
		"marketCap":                    2.95e12,
		"enterpriseValue":              3.0e12,
		"volume":                       51_000_000.0,
		"averageVolume":                58_000_000.0,
		"forwardPE":                    28.5,
		"trailingPE":                   31.2,
		"priceToBook":                  45.8,
		"priceToSalesTrailing12Months": 7.6,
		"pegRatio":                     2.1,
		"dividendYield":                0.0055,
		"profitMargins":                0.25,
		"recommendationKey":            "buy",
		"recommendationMean":           2.0,
		"targetMeanPrice":              205.0,
	}
}

func TestNormalizeHappyPath(t *testing.T) {
	n := New(0)
	now := time.Now()

	rec, rerr := n.Normalize("AAPL", fullRaw(), now)
	require.Nil(t, rerr)

	assert.Equal(t, "AAPL", rec.EntityInformation.Symbol)
	assert.Equal(t, "Apple Inc.", rec.EntityInformation.EntityName)
	assert.Equal(t, "Technology", rec.EntityInformation.Sector)
	assert.Equal(t, now, rec.Metadata.RetrievedAt)

	require.NotNil(t, rec.MarketMetrics.CurrentPrice)
	assert.Equal(t, 190.5, *rec.MarketMetrics.CurrentPrice)
	assert.Equal(t, "$2950.00B", rec.MarketMetrics.MarketCapFormatted)

	assert.Equal(t, 5, rec.ValuationRatios.Present())
	assert.Equal(t, "buy", rec.AnalystMetrics.Recommendation)
}

func TestNormalizeSparseResponseIsThrottle(t *testing.T) {
	n := New(0)

	raw := map[string]any{"longName": "X", "currentPrice": 1.0}
	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rec)
	require.NotNil(t, rerr)
	assert.Equal(t, models.ErrCodeAPIThrottle, rerr.Code)
	assert.True(t, rerr.IsError)
}

func TestNormalizeMissingPriceIsInvalidTicker(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	delete(raw, "currentPrice")
	// regularMarketPrice and previousClose are absent from the fixture already

	rec, rerr := n.Normalize("FAKETICK", raw, time.Now())
	require.Nil(t, rec)
	require.NotNil(t, rerr)
	assert.Equal(t, models.ErrCodeInvalidTicker, rerr.Code)
}

func TestNormalizeAlternatePriceFieldSuffices(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	delete(raw, "currentPrice")
	raw["previousClose"] = 189.0

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rerr)
	// previousClose satisfies the price-presence check but is not itself the
	// mapped current price
	assert.Nil(t, rec.MarketMetrics.CurrentPrice)
}

func TestNormalizeMissingNameFailsQuality(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	delete(raw, "longName")

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rec)
	require.NotNil(t, rerr)
	assert.Equal(t, models.ErrCodeInsufficientData, rerr.Code)
}

func TestNormalizeShortNameFallback(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	delete(raw, "longName")
	raw["shortName"] = "Apple"

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rerr)
	assert.Equal(t, "Apple", rec.EntityInformation.EntityName)
}

func TestNormalizeTooFewRatiosFailsQuality(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	for _, k := range []string{"forwardPE", "trailingPE", "priceToBook", "priceToSalesTrailing12Months"} {
		delete(raw, k)
	}
	// one ratio remaining is below the floor of two

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rec)
	require.NotNil(t, rerr)
	assert.Equal(t, models.ErrCodeInsufficientData, rerr.Code)
	assert.Contains(t, rerr.Message, "1/5")
}

func TestNormalizeCoercesNonFiniteValues(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	raw["forwardPE"] = math.Inf(1)
	raw["trailingPE"] = math.NaN()
	raw["dividendYield"] = math.Inf(-1)

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rerr)
	assert.Nil(t, rec.ValuationRatios.ForwardPE)
	assert.Nil(t, rec.ValuationRatios.TrailingPE)
	assert.Nil(t, rec.FinancialHealth.DividendYield)
	// the remaining three ratios keep the record above the quality floor
	assert.Equal(t, 3, rec.ValuationRatios.Present())
}

func TestNormalizeMagnitudeBoundOnRatiosOnly(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	raw["pegRatio"] = 5e12 // absurd for a ratio; coerced to absent

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rerr)
	assert.Nil(t, rec.ValuationRatios.PEGRatio)

	// absolute quantities legitimately exceed the ratio bound
	require.NotNil(t, rec.MarketMetrics.MarketCap)
	assert.Equal(t, 2.95e12, *rec.MarketMetrics.MarketCap)
}

func TestNormalizeMixedNumericTypes(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	raw["volume"] = int64(51_000_000)
	raw["targetMeanPrice"] = json.Number("205.5")
	raw["numberOfAnalystOpinions"] = 38

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rerr)
	assert.Equal(t, 51_000_000.0, *rec.MarketMetrics.Volume)
	assert.Equal(t, 205.5, *rec.AnalystMetrics.TargetMeanPrice)
	assert.Equal(t, 38.0, *rec.AnalystMetrics.AnalystOpinions)
}

func TestNormalizeDefaultsCurrency(t *testing.T) {
	n := New(0)

	raw := fullRaw()
	delete(raw, "currency")

	rec, rerr := n.Normalize("AAPL", raw, time.Now())
	require.Nil(t, rerr)
	assert.Equal(t, "USD", rec.MarketMetrics.Currency)
}
