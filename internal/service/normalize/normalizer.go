package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"MarketGate/internal/domain/models"
)

const (
	// minRawFields is the sparse-response threshold: fewer raw keys than this
	// is indistinguishable from a throttled stub.
	minRawFields = 5

	// minValuationRatios is the quality floor on the five key ratios.
	minValuationRatios = 2

	defaultMagnitudeBound = 1e10
)

var priceFields = []string{"currentPrice", "regularMarketPrice", "previousClose"}

// Normalizer converts raw provider attributes into a validated record or a
// typed error. Three ordered checks each independently reject the response;
// no partially-validated record ever escapes.
type Normalizer struct {
	bound float64
}

// New creates a normalizer with the given numeric magnitude bound. A bound
// of zero selects the default (1e10).
func New(magnitudeBound float64) *Normalizer {
	if magnitudeBound <= 0 {
		magnitudeBound = defaultMagnitudeBound
	}
	return &Normalizer{bound: magnitudeBound}
}

// Normalize validates raw and maps it into typed groups. Any numeric field
// that is infinite, NaN, or outside the magnitude bound is treated as absent
// rather than propagated.
func (n *Normalizer) Normalize(symbol string, raw map[string]any, retrievedAt time.Time) (*models.NormalizedRecord, *models.RetrievalError) {
	// Layer 1: sparse-response check. The upstream returns well-formed but
	// near-empty payloads when it throttles.
	if len(raw) < minRawFields {
		return nil, models.NewRetrievalError(models.ErrCodeAPIThrottle, symbol,
			"Upstream returned minimal data - request may have been throttled").
			WithDetail(fmt.Sprintf("Received only %d fields in response", len(raw))).
			WithTroubleshooting("Wait 60 seconds and retry. The upstream provider rate limits requests.")
	}

	// Layer 2: missing-price check. A tradable entity always carries at least
	// one price-bearing field.
	hasPrice := false
	for _, f := range priceFields {
		if _, ok := raw[f]; ok {
			hasPrice = true
			break
		}
	}
	if !hasPrice {
		return nil, models.NewRetrievalError(models.ErrCodeInvalidTicker, symbol,
			fmt.Sprintf("Ticker %q does not appear to be valid or is not traded", symbol)).
			WithDetail("No pricing information available from data source").
			WithTroubleshooting("Verify the ticker symbol is correct and the security is actively traded. Delisted securities may return empty data.")
	}

	rec := &models.NormalizedRecord{
		Metadata: models.Metadata{
			Classification: "CONFIDENTIAL - INTERNAL USE ONLY",
			DataSource:     "Enterprise Market Data Feed",
			RetrievedAt:    retrievedAt,
			Disclaimer:     "NON-ADVISORY ONLY - For analysis purposes exclusively",
		},
		EntityInformation: models.EntityInformation{
			Symbol:     symbol,
			EntityName: n.str(raw, "longName", "shortName"),
			Sector:     n.str(raw, "sector"),
			Industry:   n.str(raw, "industry"),
			Country:    n.str(raw, "country"),
			Website:    n.str(raw, "website"),
		},
		MarketMetrics: models.MarketMetrics{
			CurrentPrice:    n.num(raw, "currentPrice", "regularMarketPrice"),
			Currency:        defaultString(n.str(raw, "currency"), "USD"),
			MarketCap:       n.num(raw, "marketCap"),
			EnterpriseValue: n.num(raw, "enterpriseValue"),
			Volume:          n.num(raw, "volume", "regularMarketVolume"),
			AvgVolume:       n.num(raw, "averageVolume"),
		},
		ValuationRatios: models.ValuationRatios{
			ForwardPE:    n.ratio(raw, "forwardPE"),
			TrailingPE:   n.ratio(raw, "trailingPE"),
			PriceToBook:  n.ratio(raw, "priceToBook"),
			PriceToSales: n.ratio(raw, "priceToSalesTrailing12Months"),
			PEGRatio:     n.ratio(raw, "pegRatio"),
		},
		FinancialHealth: models.FinancialHealth{
			DividendYield:   n.ratio(raw, "dividendYield"),
			DividendRate:    n.ratio(raw, "dividendRate"),
			ProfitMargin:    n.ratio(raw, "profitMargins"),
			OperatingMargin: n.ratio(raw, "operatingMargins"),
			DebtToEquity:    n.ratio(raw, "debtToEquity"),
			ReturnOnEquity:  n.ratio(raw, "returnOnEquity"),
			ReturnOnAssets:  n.ratio(raw, "returnOnAssets"),
		},
		AnalystMetrics: models.AnalystMetrics{
			Recommendation:     n.str(raw, "recommendationKey"),
			RecommendationMean: n.ratio(raw, "recommendationMean"),
			TargetHighPrice:    n.num(raw, "targetHighPrice"),
			TargetLowPrice:     n.num(raw, "targetLowPrice"),
			TargetMeanPrice:    n.num(raw, "targetMeanPrice"),
			AnalystOpinions:    n.num(raw, "numberOfAnalystOpinions"),
		},
	}
	if mc := rec.MarketMetrics.MarketCap; mc != nil {
		rec.MarketMetrics.MarketCapFormatted = fmt.Sprintf("$%.2fB", *mc/1e9)
	}

	// Layer 3: quality threshold on the mapped record.
	if reason := qualityCheck(rec); reason != "" {
		return nil, models.NewRetrievalError(models.ErrCodeInsufficientData, symbol,
			fmt.Sprintf("Data quality check failed: %s", reason)).
			WithDetail("Retrieved data does not meet minimum quality thresholds for reliable analysis").
			WithTroubleshooting("The ticker may be valid but data is incomplete. Try again later or verify the security is actively traded with sufficient analyst coverage.")
	}

	return rec, nil
}

// qualityCheck returns a non-empty reason when the record is too sparse to
// trust. A technically well-formed but unusable response must never be
// mistaken for a valid result.
func qualityCheck(rec *models.NormalizedRecord) string {
	if rec.EntityInformation.EntityName == "" {
		return "missing entity name - possible invalid ticker"
	}
	if rec.MarketMetrics.CurrentPrice == nil && rec.MarketMetrics.MarketCap == nil {
		return "missing critical market metrics - API may have throttled request"
	}
	if got := rec.ValuationRatios.Present(); got < minValuationRatios {
		return fmt.Sprintf("insufficient valuation data (%d/5 ratios) - data may be incomplete", got)
	}
	return ""
}

// num extracts the first present numeric field, coercing malformed values to
// absent. Provider payloads mix float64, integers and json.Number.
func (n *Normalizer) num(raw map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return &f
	}
	return nil
}

// ratio is num plus the magnitude bound. The bound is only meaningful on
// ratio-scale fields; absolute quantities like market cap legitimately
// exceed it.
func (n *Normalizer) ratio(raw map[string]any, keys ...string) *float64 {
	f := n.num(raw, keys...)
	if f == nil {
		return nil
	}
	if *f <= -n.bound || *f >= n.bound {
		return nil
	}
	return f
}

func (n *Normalizer) str(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
