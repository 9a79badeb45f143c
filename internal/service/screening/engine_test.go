package screening

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
)

func testConfig() Config {
	return Config{
		Blocklist: []string{"RESTRICTED", "SANCTION", "BLOCKED"},
		Watchlist: map[string]models.WatchlistEntry{
			"TSLA": {
				Alert:     "High regulatory scrutiny - recent SEC investigations",
				Concern:   "Complex ownership structure with offshore entities",
				RiskLevel: models.RiskHigh,
			},
			"GME": {
				Alert:     "Meme stock volatility - enhanced due diligence required",
				Concern:   "Unusual trading patterns detected",
				RiskLevel: models.RiskMedium,
			},
		},
		OwnershipPatterns: map[string]string{
			"SPAC":   "Special Purpose Acquisition Company - opaque ownership",
			"CRYPTO": "Cryptocurrency exposure - ownership verification difficult",
			"OTC":    "Over-the-counter listing - reduced disclosure requirements",
		},
	}
}

func okProbe(_ context.Context, symbol string) (models.OwnershipCheckResult, error) {
	return models.OwnershipCheckResult{Symbol: symbol, InstitutionalHolders: true, MajorHolders: true}, nil
}

func TestScreenHardBlocklist(t *testing.T) {
	e := New(testConfig(), nil)

	var probeCalls int32
	probe := func(ctx context.Context, symbol string) (models.OwnershipCheckResult, error) {
		atomic.AddInt32(&probeCalls, 1)
		return okProbe(ctx, symbol)
	}

	d := e.Screen(context.Background(), "RESTRICTED", probe)
	assert.Equal(t, models.StatusDenied, d.Status)
	assert.Equal(t, models.LevelHardBlock, d.Level)
	assert.Equal(t, models.RiskHigh, d.RiskLevel)
	assert.True(t, d.EscalationRequired)

	// a hard block short-circuits; the probe never runs
	assert.Zero(t, atomic.LoadInt32(&probeCalls))
}

func TestScreenBlocklistSubstringIsHold(t *testing.T) {
	e := New(testConfig(), nil)

	// containment of a restricted term is suspicious, not a proven match
	d := e.Screen(context.Background(), "XSANCTIONX", okProbe)
	assert.Equal(t, models.StatusHold, d.Status)
	assert.Equal(t, models.LevelWatchlistHold, d.Level)
	assert.Contains(t, d.Reason, "SUSPICIOUS PATTERN")
	assert.True(t, d.RequiresReview)
}

func TestScreenWatchlistHold(t *testing.T) {
	e := New(testConfig(), nil)

	d := e.Screen(context.Background(), "TSLA", okProbe)
	require.Equal(t, models.StatusHold, d.Status)
	assert.Equal(t, models.LevelWatchlistHold, d.Level)
	assert.Equal(t, models.RiskHigh, d.RiskLevel)
	assert.Contains(t, d.Reason, "WATCHLIST ALERT")
	assert.Len(t, d.NextSteps, 4)
	assert.True(t, d.RequiresReview)
	assert.True(t, d.EscalationRequired)
}

func TestScreenOwnershipPattern(t *testing.T) {
	e := New(testConfig(), nil)

	for _, sym := range []string{"SPACX", "XOTC"} {
		d := e.Screen(context.Background(), sym, okProbe)
		assert.Equal(t, models.StatusDenied, d.Status, sym)
		assert.Equal(t, models.LevelOwnershipReview, d.Level, sym)
		assert.Contains(t, d.Reason, "OWNERSHIP CONCERN", sym)
	}
}

func TestScreenOwnershipProbeFailure(t *testing.T) {
	e := New(testConfig(), nil)

	failProbe := func(context.Context, string) (models.OwnershipCheckResult, error) {
		return models.OwnershipCheckResult{}, errors.New("upstream unavailable")
	}
	d := e.Screen(context.Background(), "AAPL", failProbe)
	assert.Equal(t, models.StatusDenied, d.Status)
	assert.Equal(t, models.LevelOwnershipDataUnavailable, d.Level)
	require.Len(t, d.OwnershipConcerns, 1)
	assert.Contains(t, d.OwnershipConcerns[0], "Ownership verification error")
}

func TestScreenNoHolderRecordsIsDenied(t *testing.T) {
	e := New(testConfig(), nil)

	emptyProbe := func(_ context.Context, symbol string) (models.OwnershipCheckResult, error) {
		return models.OwnershipCheckResult{Symbol: symbol}, nil
	}
	d := e.Screen(context.Background(), "AAPL", emptyProbe)
	assert.Equal(t, models.StatusDenied, d.Status)
	assert.Equal(t, models.LevelOwnershipDataUnavailable, d.Level)
	assert.Len(t, d.OwnershipConcerns, 2)
}

func TestScreenOneHolderSourceSuffices(t *testing.T) {
	e := New(testConfig(), nil)

	partialProbe := func(_ context.Context, symbol string) (models.OwnershipCheckResult, error) {
		return models.OwnershipCheckResult{Symbol: symbol, MajorHolders: true}, nil
	}
	d := e.Screen(context.Background(), "AAPL", partialProbe)
	assert.Equal(t, models.StatusApproved, d.Status)
}

func TestScreenCleared(t *testing.T) {
	e := New(testConfig(), nil)

	d := e.Screen(context.Background(), "AAPL", okProbe)
	require.Equal(t, models.StatusApproved, d.Status)
	assert.Equal(t, models.LevelCleared, d.Level)
	assert.Equal(t, models.RiskLow, d.RiskLevel)
	assert.Len(t, d.ChecksPerformed, 4)
	assert.False(t, d.RequiresReview)
	assert.False(t, d.EscalationRequired)
}

func TestBlockedIsExactMatchOnly(t *testing.T) {
	e := New(testConfig(), nil)

	assert.True(t, e.Blocked("RESTRICTED"))
	assert.False(t, e.Blocked("XSANCTIONX"), "containment is a hold, not a hard block")
	assert.False(t, e.Blocked("AAPL"))
	assert.False(t, e.Blocked("TSLA"), "watchlist symbols are not hard-blocked")
}

func TestScreenLayerOrdering(t *testing.T) {
	cfg := testConfig()
	// put a blocklisted term on the watchlist too; the harsher layer must win
	cfg.Watchlist["BLOCKED"] = models.WatchlistEntry{Alert: "x", Concern: "y", RiskLevel: models.RiskLow}
	e := New(cfg, nil)

	d := e.Screen(context.Background(), "BLOCKED", okProbe)
	assert.Equal(t, models.StatusDenied, d.Status)
	assert.Equal(t, models.LevelHardBlock, d.Level)
}

func TestScreenNormalizesConfigCase(t *testing.T) {
	e := New(Config{
		Blocklist: []string{" restricted "},
		Watchlist: map[string]models.WatchlistEntry{"tsla": {Alert: "a", Concern: "c", RiskLevel: models.RiskMedium}},
	}, nil)

	d := e.Screen(context.Background(), "RESTRICTED", okProbe)
	assert.Equal(t, models.LevelHardBlock, d.Level)

	d = e.Screen(context.Background(), "TSLA", okProbe)
	assert.Equal(t, models.StatusHold, d.Status)
}
