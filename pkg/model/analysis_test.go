package model

import "testing"

func TestValidRecommendationTransition(t *testing.T) {
	cases := []struct {
		from    RecommendationStatus
		to      RecommendationStatus
		allowed bool
	}{
		{RecommendationProposed, RecommendationValidated, true},
		{RecommendationProposed, RecommendationRejected, true},
		{RecommendationProposed, RecommendationSensitive, true},
		{RecommendationProposed, RecommendationDecommission, true},
		{RecommendationProposed, RecommendationProposed, false},
		{RecommendationValidated, RecommendationRejected, false},
		{RecommendationRejected, RecommendationProposed, false},
		{RecommendationSensitive, RecommendationValidated, false},
	}

	for _, tc := range cases {
		if got := ValidRecommendationTransition(tc.from, tc.to); got != tc.allowed {
			t.Fatalf("transition %s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestAnalysisStatusTerminal(t *testing.T) {
	terminal := []AnalysisStatus{AnalysisCompleted, AnalysisFailed, AnalysisCancelled}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}

	for _, status := range []AnalysisStatus{AnalysisPending, AnalysisRunning} {
		if status.Terminal() {
			t.Fatalf("expected %s not to be terminal", status)
		}
	}
}

func TestCancellableAnalysisStates(t *testing.T) {
	cancellable := CancellableAnalysisStates()

	for _, status := range cancellable {
		if status.Terminal() {
			t.Fatalf("terminal state %s must not be cancellable", status)
		}
	}

	// A run that was cancelled while RUNNING must never flip to FAILED:
	// every terminal state stays out of the abortable set.
	for _, status := range []AnalysisStatus{AnalysisCancelled, AnalysisFailed, AnalysisCompleted} {
		for _, allowed := range cancellable {
			if status == allowed {
				t.Fatalf("state %s must not be abortable", status)
			}
		}
	}

	if len(cancellable) != 2 {
		t.Fatalf("expected PENDING and RUNNING only, got %v", cancellable)
	}
}

func TestSkuServiceMatrixIncludes(t *testing.T) {
	matrix := &SkuServiceMatrix{
		SKU:          "O365_E3",
		ServicePlans: []string{"EXCHANGE_S_ENTERPRISE", "SHAREPOINTENTERPRISE", "TEAMS1"},
	}

	if !matrix.Includes("TEAMS1", "EXCHANGE_S_ENTERPRISE") {
		t.Fatal("expected bundled plans to be included")
	}
	if matrix.Includes("MCOEV") {
		t.Fatal("expected missing plan not to be included")
	}
	if !matrix.Includes() {
		t.Fatal("empty plan list should always be included")
	}
}
