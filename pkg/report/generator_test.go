package report

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/seatwise/seatwise/pkg/model"
)

func TestRenderCSV(t *testing.T) {
	analysis := &model.Analysis{
		ID:                  uuid.New(),
		Currency:            "USD",
		MonthlySavingsCents: 1900,
		AnnualSavingsCents:  22800,
	}
	recommendations := []model.Recommendation{
		{
			User:                &model.User{UserPrincipalName: "alice@contoso.com", DisplayName: "Alice"},
			CurrentSKU:          "O365_E3",
			ProposedSKU:         "EXCHANGE_ONLINE_P1",
			Action:              model.ActionDowngrade,
			Status:              model.RecommendationProposed,
			Trend:               model.TrendDeclining,
			UtilizationScore:    0.12,
			MonthlySavingsCents: 1900,
			AnnualSavingsCents:  22800,
			Reason:              "low utilization; a cheaper SKU covers all services in use",
		},
	}

	data, err := renderCSV(analysis, recommendations)
	if err != nil {
		t.Fatalf("renderCSV() error: %v", err)
	}

	text := string(data)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, one row and totals, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "user,display_name,current_sku") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "alice@contoso.com") || !strings.Contains(lines[1], "19.00 USD") {
		t.Fatalf("unexpected data row: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "TOTAL") || !strings.Contains(lines[2], "228.00 USD") {
		t.Fatalf("unexpected totals row: %q", lines[2])
	}
}
