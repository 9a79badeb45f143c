package models

import "time"

// Metadata describes the retrieval operation itself.
type Metadata struct {
	Classification string    `json:"classification"`
	DataSource     string    `json:"data_source"`
	RetrievedAt    time.Time `json:"retrieved_at"`
	Disclaimer     string    `json:"disclaimer"`
}

// EntityInformation is the identity group of a normalized record.
type EntityInformation struct {
	Symbol     string `json:"ticker"`
	EntityName string `json:"entity_name"`
	Sector     string `json:"sector,omitempty"`
	Industry   string `json:"industry,omitempty"`
	Country    string `json:"country,omitempty"`
	Website    string `json:"website,omitempty"`
}

// MarketMetrics holds current trading metrics.
type MarketMetrics struct {
	CurrentPrice       *float64 `json:"current_price,omitempty"`
	Currency           string   `json:"currency"`
	MarketCap          *float64 `json:"market_cap,omitempty"`
	MarketCapFormatted string   `json:"market_cap_formatted,omitempty"`
	EnterpriseValue    *float64 `json:"enterprise_value,omitempty"`
	Volume             *float64 `json:"volume,omitempty"`
	AvgVolume          *float64 `json:"avg_volume,omitempty"`
}

// ValuationRatios holds the five key valuation ratios used by the
// data-quality threshold.
type ValuationRatios struct {
	ForwardPE    *float64 `json:"forward_pe,omitempty"`
	TrailingPE   *float64 `json:"trailing_pe,omitempty"`
	PriceToBook  *float64 `json:"price_to_book,omitempty"`
	PriceToSales *float64 `json:"price_to_sales,omitempty"`
	PEGRatio     *float64 `json:"peg_ratio,omitempty"`
}

// Present counts how many of the five ratios carry a value.
func (v ValuationRatios) Present() int {
	n := 0
	for _, r := range []*float64{v.ForwardPE, v.TrailingPE, v.PriceToBook, v.PriceToSales, v.PEGRatio} {
		if r != nil {
			n++
		}
	}
	return n
}

// FinancialHealth holds balance-sheet and profitability indicators.
type FinancialHealth struct {
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	DividendRate    *float64 `json:"dividend_rate,omitempty"`
	ProfitMargin    *float64 `json:"profit_margin,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	DebtToEquity    *float64 `json:"debt_to_equity,omitempty"`
	ReturnOnEquity  *float64 `json:"return_on_equity,omitempty"`
	ReturnOnAssets  *float64 `json:"return_on_assets,omitempty"`
}

// AnalystMetrics holds analyst opinions and price targets.
type AnalystMetrics struct {
	Recommendation     string   `json:"recommendation,omitempty"`
	RecommendationMean *float64 `json:"recommendation_mean,omitempty"`
	TargetHighPrice    *float64 `json:"target_high_price,omitempty"`
	TargetLowPrice     *float64 `json:"target_low_price,omitempty"`
	TargetMeanPrice    *float64 `json:"target_mean_price,omitempty"`
	AnalystOpinions    *float64 `json:"number_of_analyst_opinions,omitempty"`
}

// NormalizedRecord is the validated, typed view of raw provider attributes.
type NormalizedRecord struct {
	Metadata          Metadata          `json:"metadata"`
	EntityInformation EntityInformation `json:"entity_information"`
	MarketMetrics     MarketMetrics     `json:"market_metrics"`
	ValuationRatios   ValuationRatios   `json:"valuation_ratios"`
	FinancialHealth   FinancialHealth   `json:"financial_health"`
	AnalystMetrics    AnalystMetrics    `json:"analyst_metrics"`
}

// Clone returns a deep copy so cache consumers never share entry memory.
func (r *NormalizedRecord) Clone() *NormalizedRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.MarketMetrics.CurrentPrice = cloneFloat(r.MarketMetrics.CurrentPrice)
	cp.MarketMetrics.MarketCap = cloneFloat(r.MarketMetrics.MarketCap)
	cp.MarketMetrics.EnterpriseValue = cloneFloat(r.MarketMetrics.EnterpriseValue)
	cp.MarketMetrics.Volume = cloneFloat(r.MarketMetrics.Volume)
	cp.MarketMetrics.AvgVolume = cloneFloat(r.MarketMetrics.AvgVolume)
	cp.ValuationRatios.ForwardPE = cloneFloat(r.ValuationRatios.ForwardPE)
	cp.ValuationRatios.TrailingPE = cloneFloat(r.ValuationRatios.TrailingPE)
	cp.ValuationRatios.PriceToBook = cloneFloat(r.ValuationRatios.PriceToBook)
	cp.ValuationRatios.PriceToSales = cloneFloat(r.ValuationRatios.PriceToSales)
	cp.ValuationRatios.PEGRatio = cloneFloat(r.ValuationRatios.PEGRatio)
	cp.FinancialHealth.DividendYield = cloneFloat(r.FinancialHealth.DividendYield)
	cp.FinancialHealth.DividendRate = cloneFloat(r.FinancialHealth.DividendRate)
	cp.FinancialHealth.ProfitMargin = cloneFloat(r.FinancialHealth.ProfitMargin)
	cp.FinancialHealth.OperatingMargin = cloneFloat(r.FinancialHealth.OperatingMargin)
	cp.FinancialHealth.DebtToEquity = cloneFloat(r.FinancialHealth.DebtToEquity)
	cp.FinancialHealth.ReturnOnEquity = cloneFloat(r.FinancialHealth.ReturnOnEquity)
	cp.FinancialHealth.ReturnOnAssets = cloneFloat(r.FinancialHealth.ReturnOnAssets)
	cp.AnalystMetrics.RecommendationMean = cloneFloat(r.AnalystMetrics.RecommendationMean)
	cp.AnalystMetrics.TargetHighPrice = cloneFloat(r.AnalystMetrics.TargetHighPrice)
	cp.AnalystMetrics.TargetLowPrice = cloneFloat(r.AnalystMetrics.TargetLowPrice)
	cp.AnalystMetrics.TargetMeanPrice = cloneFloat(r.AnalystMetrics.TargetMeanPrice)
	cp.AnalystMetrics.AnalystOpinions = cloneFloat(r.AnalystMetrics.AnalystOpinions)
	return &cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
