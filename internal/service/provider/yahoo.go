package provider

import (
	"context"
	"fmt"
	"time"

	"MarketGate/internal/domain/models"
	xhttp "MarketGate/pkg/http"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// summaryModules are the upstream modules that together cover every field
// the normalizer maps.
const summaryModules = "price,summaryProfile,summaryDetail,defaultKeyStatistics,financialData"

// YahooProvider implements the upstream DataProvider against a Yahoo-style
// quote-summary API. It is the only component that knows the provider's wire
// shape; everything downstream sees a flat attribute map.
type YahooProvider struct {
	client  *xhttp.Client
	baseURL string
}

// New creates a provider client. An empty baseURL selects the public
// endpoint; tests point it at a local stub.
func New(baseURL string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YahooProvider{
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: baseURL,
	}
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]map[string]any `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchRawAttributes retrieves and flattens the provider's module map for a
// symbol. Provider-side errors (including throttling responses) surface as
// plain errors; classifying them is the normalizer's job once attributes
// exist, and the orchestrator's when they do not.
func (p *YahooProvider) FetchRawAttributes(ctx context.Context, symbol string) (map[string]any, error) {
	var resp quoteSummaryResponse
	if err := p.querySummary(ctx, symbol, summaryModules, &resp); err != nil {
		return nil, err
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("provider api error: %s", resp.QuoteSummary.Error.Description)
	}

	attrs := make(map[string]any)
	for _, modules := range resp.QuoteSummary.Result {
		for _, fields := range modules {
			for k, v := range fields {
				flattenField(attrs, k, v)
			}
		}
	}
	return attrs, nil
}

type holdersResponse struct {
	QuoteSummary struct {
		Result []struct {
			InstitutionOwnership struct {
				OwnershipList []any `json:"ownershipList"`
			} `json:"institutionOwnership"`
			MajorHoldersBreakdown map[string]any `json:"majorHoldersBreakdown"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// ProbeOwnership checks whether institutional-holder and major-holder
// records exist for a symbol.
func (p *YahooProvider) ProbeOwnership(ctx context.Context, symbol string) (models.OwnershipCheckResult, error) {
	var resp holdersResponse
	if err := p.querySummary(ctx, symbol, "institutionOwnership,majorHoldersBreakdown", &resp); err != nil {
		return models.OwnershipCheckResult{}, err
	}

	out := models.OwnershipCheckResult{Symbol: symbol}
	for _, r := range resp.QuoteSummary.Result {
		if len(r.InstitutionOwnership.OwnershipList) > 0 {
			out.InstitutionalHolders = true
		}
		if len(r.MajorHoldersBreakdown) > 0 {
			out.MajorHolders = true
		}
	}
	return out, nil
}

func (p *YahooProvider) querySummary(ctx context.Context, symbol, modules string, dest interface{}) error {
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v10/finance/quoteSummary/%s", p.baseURL, symbol),
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0",
			"Accept":     "application/json",
		},
		QueryParams: map[string][]string{
			"modules": {modules},
		},
	}, dest)
	if err != nil {
		return fmt.Errorf("provider fetch: %w", err)
	}
	return nil
}

// flattenField unwraps Yahoo's {raw, fmt} value envelopes into plain values.
func flattenField(attrs map[string]any, key string, v any) {
	if m, ok := v.(map[string]any); ok {
		if raw, ok := m["raw"]; ok {
			attrs[key] = raw
			return
		}
		// nested module object; keep leaves one level deep
		for k2, v2 := range m {
			flattenField(attrs, k2, v2)
		}
		return
	}
	attrs[key] = v
}
