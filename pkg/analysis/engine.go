package analysis

import (
	"sort"
	"strings"

	"github.com/seatwise/seatwise/pkg/model"
)

// Canonical service keys scored by the engine.
const (
	ServiceEmail      = "email"
	ServiceOneDrive   = "onedrive"
	ServiceSharePoint = "sharepoint"
	ServiceTeams      = "teams"
)

var serviceWeights = map[string]float64{
	ServiceEmail:      0.25,
	ServiceOneDrive:   0.25,
	ServiceSharePoint: 0.20,
	ServiceTeams:      0.30,
}

// trendEpsilon is the minimum half-over-half activity delta considered a
// real trend rather than noise.
const trendEpsilon = 0.1

// UserSnapshot is everything the engine needs to evaluate one user: the
// active base SKU, any add-ons riding on it, and the usage window sorted by
// report date ascending.
type UserSnapshot struct {
	BaseSKU   string
	AddonSKUs []string
	Metrics   []model.UsageMetric
}

// Proposal is the engine's verdict for a user. A nil proposal means the
// current license is justified.
type Proposal struct {
	Action              model.RecommendationAction
	ProposedSKU         string
	Trend               model.TrendDirection
	UtilizationScore    float64
	MonthlySavingsCents int64
	Reason              string
}

// Engine evaluates license utilization against the SKU service matrix and
// the price table. It is pure: all reference data is loaded up front.
type Engine struct {
	matrices  map[string]model.SkuServiceMatrix
	compat    map[string]map[string]bool // addon SKU -> allowed base SKUs
	prices    map[string]int64           // SKU -> monthly price in cents
	threshold float64
}

func NewEngine(
	matrices []model.SkuServiceMatrix,
	compat []model.AddonCompatibility,
	prices map[string]int64,
	threshold float64,
) *Engine {
	matrixIndex := make(map[string]model.SkuServiceMatrix, len(matrices))
	for _, m := range matrices {
		matrixIndex[m.SKU] = m
	}

	compatIndex := make(map[string]map[string]bool, len(compat))
	for _, pair := range compat {
		bases, ok := compatIndex[pair.AddonSKU]
		if !ok {
			bases = make(map[string]bool)
			compatIndex[pair.AddonSKU] = bases
		}
		bases[pair.BaseSKU] = true
	}

	return &Engine{
		matrices:  matrixIndex,
		compat:    compatIndex,
		prices:    prices,
		threshold: threshold,
	}
}

// Evaluate scores one user and proposes a SKU change, or returns nil when
// the current assignment should stand.
func (e *Engine) Evaluate(snapshot UserSnapshot) *Proposal {
	currentPrice, priced := e.prices[snapshot.BaseSKU]
	if !priced {
		// Without a price there are no savings to compute.
		return nil
	}

	score := e.utilizationScore(snapshot.Metrics)
	trend := e.trend(snapshot.Metrics)

	if len(snapshot.Metrics) == 0 || !anyActivity(snapshot.Metrics) {
		return &Proposal{
			Action:              model.ActionDecommission,
			Trend:               trend,
			UtilizationScore:    score,
			MonthlySavingsCents: currentPrice,
			Reason:              "no activity recorded in the lookback window",
		}
	}

	if score >= e.threshold {
		return nil
	}

	candidate, candidatePrice, ok := e.cheapestCoveringSKU(snapshot, currentPrice)
	if !ok {
		return nil
	}

	return &Proposal{
		Action:              model.ActionDowngrade,
		ProposedSKU:         candidate,
		Trend:               trend,
		UtilizationScore:    score,
		MonthlySavingsCents: currentPrice - candidatePrice,
		Reason:              "low utilization; a cheaper SKU covers all services in use",
	}
}

// utilizationScore is the recency-weighted mean of per-snapshot weighted
// activity. Newer rows count more: row i out of n carries weight i+1.
func (e *Engine) utilizationScore(metrics []model.UsageMetric) float64 {
	if len(metrics) == 0 {
		return 0
	}

	var weighted, totalWeight float64
	for i, metric := range metrics {
		weight := float64(i + 1)
		weighted += weight * activityFraction(metric)
		totalWeight += weight
	}
	return weighted / totalWeight
}

func (e *Engine) trend(metrics []model.UsageMetric) model.TrendDirection {
	if len(metrics) < 2 {
		return model.TrendStable
	}

	mid := len(metrics) / 2
	older := meanActivity(metrics[:mid])
	newer := meanActivity(metrics[mid:])

	switch {
	case newer-older > trendEpsilon:
		return model.TrendRising
	case older-newer > trendEpsilon:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// cheapestCoveringSKU finds the cheapest base SKU that bundles every service
// the user actually used and accepts all of the user's add-ons.
func (e *Engine) cheapestCoveringSKU(snapshot UserSnapshot, currentPrice int64) (string, int64, bool) {
	used := usedServices(snapshot.Metrics)

	type candidate struct {
		sku   string
		price int64
	}
	var candidates []candidate

	for sku, matrix := range e.matrices {
		if matrix.IsAddon || sku == snapshot.BaseSKU {
			continue
		}
		price, ok := e.prices[sku]
		if !ok || price >= currentPrice {
			continue
		}
		if !covers(matrix, used) {
			continue
		}
		if !e.addonsCompatible(snapshot.AddonSKUs, sku) {
			continue
		}
		candidates = append(candidates, candidate{sku: sku, price: price})
	}

	if len(candidates) == 0 {
		return "", 0, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].price != candidates[j].price {
			return candidates[i].price < candidates[j].price
		}
		return candidates[i].sku < candidates[j].sku
	})

	return candidates[0].sku, candidates[0].price, true
}

func (e *Engine) addonsCompatible(addons []string, baseSKU string) bool {
	for _, addon := range addons {
		bases, known := e.compat[addon]
		if !known || !bases[baseSKU] {
			return false
		}
	}
	return true
}

func activityFraction(metric model.UsageMetric) float64 {
	var fraction float64
	if metric.EmailActive {
		fraction += serviceWeights[ServiceEmail]
	}
	if metric.OneDriveActive {
		fraction += serviceWeights[ServiceOneDrive]
	}
	if metric.SharePointActive {
		fraction += serviceWeights[ServiceSharePoint]
	}
	if metric.TeamsActive {
		fraction += serviceWeights[ServiceTeams]
	}
	return fraction
}

func meanActivity(metrics []model.UsageMetric) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sum float64
	for _, metric := range metrics {
		sum += activityFraction(metric)
	}
	return sum / float64(len(metrics))
}

func anyActivity(metrics []model.UsageMetric) bool {
	for i := range metrics {
		if metrics[i].AnyActivity() {
			return true
		}
	}
	return false
}

func usedServices(metrics []model.UsageMetric) []string {
	seen := make(map[string]bool)
	for _, metric := range metrics {
		if metric.EmailActive {
			seen[ServiceEmail] = true
		}
		if metric.OneDriveActive {
			seen[ServiceOneDrive] = true
		}
		if metric.SharePointActive {
			seen[ServiceSharePoint] = true
		}
		if metric.TeamsActive {
			seen[ServiceTeams] = true
		}
	}
	services := make([]string, 0, len(seen))
	for service := range seen {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

// covers reports whether the SKU's service plans include every used service.
// Plan names are matched on their service family, e.g. EXCHANGE_S_ENTERPRISE
// covers email.
func covers(matrix model.SkuServiceMatrix, used []string) bool {
	for _, service := range used {
		if !bundlesService(matrix, service) {
			return false
		}
	}
	return true
}

func bundlesService(matrix model.SkuServiceMatrix, service string) bool {
	var marker string
	switch service {
	case ServiceEmail:
		marker = "EXCHANGE"
	case ServiceOneDrive:
		marker = "ONEDRIVE"
	case ServiceSharePoint:
		marker = "SHAREPOINT"
	case ServiceTeams:
		marker = "TEAMS"
	default:
		return false
	}
	for _, plan := range matrix.ServicePlans {
		if strings.Contains(strings.ToUpper(plan), marker) {
			return true
		}
	}
	return false
}
