package analysis

import (
	"testing"
	"time"

	"github.com/seatwise/seatwise/pkg/model"
)

func testEngine(threshold float64) *Engine {
	matrices := []model.SkuServiceMatrix{
		{
			SKU:          "O365_E3",
			ServicePlans: []string{"EXCHANGE_S_ENTERPRISE", "ONEDRIVE_ENTERPRISE", "SHAREPOINTENTERPRISE", "TEAMS1"},
		},
		{
			SKU:          "O365_E1",
			ServicePlans: []string{"EXCHANGE_S_STANDARD", "SHAREPOINTSTANDARD", "TEAMS1"},
		},
		{
			SKU:          "EXCHANGE_ONLINE_P1",
			ServicePlans: []string{"EXCHANGE_S_STANDARD"},
		},
		{
			SKU:          "AUDIO_CONF",
			ServicePlans: []string{"MCOMEETADV"},
			IsAddon:      true,
		},
	}
	compat := []model.AddonCompatibility{
		{AddonSKU: "AUDIO_CONF", BaseSKU: "O365_E3"},
		{AddonSKU: "AUDIO_CONF", BaseSKU: "O365_E1"},
	}
	prices := map[string]int64{
		"O365_E3":            2300,
		"O365_E1":            1000,
		"EXCHANGE_ONLINE_P1": 400,
		"AUDIO_CONF":         300,
	}
	return NewEngine(matrices, compat, prices, threshold)
}

func metricRow(daysAgo int, email, onedrive, sharepoint, teams bool) model.UsageMetric {
	return model.UsageMetric{
		Period:           "D30",
		ReportDate:       time.Now().AddDate(0, 0, -daysAgo),
		EmailActive:      email,
		OneDriveActive:   onedrive,
		SharePointActive: sharepoint,
		TeamsActive:      teams,
	}
}

func TestEvaluateZeroActivityProposesDecommission(t *testing.T) {
	engine := testEngine(0.35)

	proposal := engine.Evaluate(UserSnapshot{
		BaseSKU: "O365_E3",
		Metrics: []model.UsageMetric{
			metricRow(60, false, false, false, false),
			metricRow(30, false, false, false, false),
		},
	})

	if proposal == nil {
		t.Fatal("expected a proposal for a fully inactive user")
	}
	if proposal.Action != model.ActionDecommission {
		t.Fatalf("expected decommission, got %s", proposal.Action)
	}
	if proposal.MonthlySavingsCents != 2300 {
		t.Fatalf("expected full price savings 2300, got %d", proposal.MonthlySavingsCents)
	}
	if proposal.ProposedSKU != "" {
		t.Fatalf("decommission should not propose a SKU, got %q", proposal.ProposedSKU)
	}
}

func TestEvaluateNoMetricsProposesDecommission(t *testing.T) {
	engine := testEngine(0.35)

	proposal := engine.Evaluate(UserSnapshot{BaseSKU: "O365_E3"})
	if proposal == nil || proposal.Action != model.ActionDecommission {
		t.Fatalf("expected decommission for user without metrics, got %+v", proposal)
	}
}

func TestEvaluateHighUtilizationKeepsLicense(t *testing.T) {
	engine := testEngine(0.35)

	var rows []model.UsageMetric
	for day := 90; day > 0; day -= 7 {
		rows = append(rows, metricRow(day, true, true, true, true))
	}

	proposal := engine.Evaluate(UserSnapshot{BaseSKU: "O365_E3", Metrics: rows})
	if proposal != nil {
		t.Fatalf("expected no proposal for fully active user, got %+v", proposal)
	}
}

func TestEvaluateLowUtilizationDowngrades(t *testing.T) {
	engine := testEngine(0.35)

	// Email only, sporadically: score stays under threshold, and the
	// cheapest SKU bundling Exchange wins.
	rows := []model.UsageMetric{
		metricRow(80, true, false, false, false),
		metricRow(60, false, false, false, false),
		metricRow(40, true, false, false, false),
		metricRow(20, false, false, false, false),
	}

	proposal := engine.Evaluate(UserSnapshot{BaseSKU: "O365_E3", Metrics: rows})
	if proposal == nil {
		t.Fatal("expected a downgrade proposal")
	}
	if proposal.Action != model.ActionDowngrade {
		t.Fatalf("expected downgrade, got %s", proposal.Action)
	}
	if proposal.ProposedSKU != "EXCHANGE_ONLINE_P1" {
		t.Fatalf("expected EXCHANGE_ONLINE_P1, got %q", proposal.ProposedSKU)
	}
	if proposal.MonthlySavingsCents != 2300-400 {
		t.Fatalf("expected savings %d, got %d", 2300-400, proposal.MonthlySavingsCents)
	}
}

func TestEvaluateDowngradeBlockedByUsedService(t *testing.T) {
	engine := testEngine(0.35)

	// OneDrive was used once: only O365_E3 bundles OneDrive, so no cheaper
	// SKU covers the usage and the license stands.
	rows := []model.UsageMetric{
		metricRow(80, true, true, false, false),
		metricRow(60, false, false, false, false),
		metricRow(40, false, false, false, false),
		metricRow(20, false, false, false, false),
	}

	proposal := engine.Evaluate(UserSnapshot{BaseSKU: "O365_E3", Metrics: rows})
	if proposal != nil {
		t.Fatalf("expected no proposal when no cheaper SKU covers usage, got %+v", proposal)
	}
}

func TestEvaluateDowngradeRespectsAddonCompatibility(t *testing.T) {
	engine := testEngine(0.35)

	rows := []model.UsageMetric{
		metricRow(80, true, false, false, false),
		metricRow(60, false, false, false, false),
		metricRow(40, true, false, false, false),
		metricRow(20, false, false, false, false),
	}

	// AUDIO_CONF is compatible with E1 but not with Exchange Online P1, so
	// the cheapest covering SKU shifts from P1 to E1.
	proposal := engine.Evaluate(UserSnapshot{
		BaseSKU:   "O365_E3",
		AddonSKUs: []string{"AUDIO_CONF"},
		Metrics:   rows,
	})
	if proposal == nil {
		t.Fatal("expected a downgrade proposal")
	}
	if proposal.ProposedSKU != "O365_E1" {
		t.Fatalf("expected O365_E1 for addon holder, got %q", proposal.ProposedSKU)
	}
}

func TestEvaluateUnpricedSKUIsSkipped(t *testing.T) {
	engine := testEngine(0.35)

	proposal := engine.Evaluate(UserSnapshot{BaseSKU: "UNKNOWN_SKU"})
	if proposal != nil {
		t.Fatalf("expected no proposal without pricing, got %+v", proposal)
	}
}

func TestTrendDirection(t *testing.T) {
	engine := testEngine(0.35)

	declining := []model.UsageMetric{
		metricRow(80, true, true, true, true),
		metricRow(60, true, true, true, true),
		metricRow(40, false, false, false, false),
		metricRow(20, false, false, false, false),
	}
	if got := engine.trend(declining); got != model.TrendDeclining {
		t.Fatalf("expected declining trend, got %s", got)
	}

	rising := []model.UsageMetric{
		metricRow(80, false, false, false, false),
		metricRow(60, false, false, false, false),
		metricRow(40, true, true, true, true),
		metricRow(20, true, true, true, true),
	}
	if got := engine.trend(rising); got != model.TrendRising {
		t.Fatalf("expected rising trend, got %s", got)
	}

	stable := []model.UsageMetric{
		metricRow(40, true, false, false, true),
		metricRow(20, true, false, false, true),
	}
	if got := engine.trend(stable); got != model.TrendStable {
		t.Fatalf("expected stable trend, got %s", got)
	}
}
