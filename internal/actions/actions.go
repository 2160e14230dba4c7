// Package actions ranks per-row allocation impacts into recommended
// collection, deferral and purchase-reduction actions, each quantified per
// scenario by the cash it delivers before that scenario's funding gap.
package actions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/iwvelando/cash-tuner/internal/allocation"
	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/planrow"
	"github.com/iwvelando/cash-tuner/internal/risk"
	"github.com/iwvelando/cash-tuner/internal/scenario"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/datetime"
	"github.com/iwvelando/cash-tuner/pkg/format"
	"github.com/iwvelando/cash-tuner/pkg/mathutil"
	"go.uber.org/zap"
)

// actionNamespace seeds deterministic action IDs.
var actionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/iwvelando/cash-tuner/actions"))

// bucketSeverity weights AR amounts by how overdue they are.
var bucketSeverity = map[string]float64{
	constants.Bucket90Plus: 1.6,
	constants.Bucket61To90: 1.4,
	constants.Bucket31To60: 1.2,
}

// Weights combine the AR priority components.
type Weights struct {
	Amount        float64 `json:"amount" yaml:"amount" mapstructure:"amount"`
	Aging         float64 `json:"aging" yaml:"aging" mapstructure:"aging"`
	Concentration float64 `json:"concentration" yaml:"concentration" mapstructure:"concentration"`
	Sensitivity   float64 `json:"sensitivity" yaml:"sensitivity" mapstructure:"sensitivity"`
}

// DefaultWeights returns the documented AR priority weights.
func DefaultWeights() Weights {
	return Weights{Amount: 0.4, Aging: 0.3, Concentration: 0.2, Sensitivity: 0.1}
}

// Action is one recommendation.
type Action struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Counterparty string `json:"counterparty"`
	Task         string `json:"task"`
	DDL          string `json:"ddl"`
	// ExpectedCashImpact maps each scenario to the cash this action brings
	// in (or keeps) on or before the scenario's gap day.
	ExpectedCashImpact map[string]float64 `json:"expected_cash_impact"`
	PriorityScore      float64            `json:"priority_score"`
	// Effect is the action's full cash effect in Base, regardless of timing.
	Effect    float64  `json:"effect"`
	RowIndex  int      `json:"row_index"`
	Synthetic bool     `json:"synthetic,omitempty"`
	Members   []string `json:"members,omitempty"`
}

// Plan is the generated action list with its coverage figures.
type Plan struct {
	Actions       []Action        `json:"actions"`
	CoverageRatio mathutil.Metric `json:"coverage_ratio"`
	TotalImpact   float64         `json:"total_impact"`
	GapAmount     float64         `json:"gap_amount"`
	GapDay        string          `json:"gap_day,omitempty"`
}

// Builder turns scenario results into a Plan.
type Builder struct {
	logger            *zap.Logger
	Weights           Weights
	TopN              int
	EmergencyTopN     int
	CoverageThreshold float64
}

// NewBuilder creates a builder with the default weights and limits.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		logger:            logger,
		Weights:           DefaultWeights(),
		TopN:              constants.DefaultActionsPerDomain,
		EmergencyTopN:     constants.DefaultEmergencyPerDomain,
		CoverageThreshold: constants.DefaultCoverageThreshold,
	}
}

// window is the cutoff a scenario's cash must land by to count.
type window struct {
	key   string
	limit string
}

func windows(results map[string]scenario.Result, order []string, gaps map[string]risk.GapMetrics) []window {
	out := make([]window, 0, len(order))
	for _, key := range order {
		result, ok := results[key]
		if !ok {
			continue
		}
		limit := gaps[key].GapDay
		if limit == "" {
			limit = result.HorizonEnd
		}
		out = append(out, window{key: key, limit: limit})
	}
	return out
}

// impactIndex finds a row's impact in one scenario.
type impactIndex map[string]map[int]allocation.Impact

func indexImpacts(result scenario.Result) impactIndex {
	idx := impactIndex{
		constants.DomainAR: make(map[int]allocation.Impact, len(result.AR.Impacts)),
		constants.DomainAP: make(map[int]allocation.Impact, len(result.AP.Impacts)),
		constants.DomainPO: make(map[int]allocation.Impact, len(result.PO.Impacts)),
	}
	for _, impacts := range [][]allocation.Impact{result.AR.Impacts, result.AP.Impacts, result.PO.Impacts} {
		for _, impact := range impacts {
			idx[impact.Domain][impact.RowIndex] = impact
		}
	}
	return idx
}

// CashBefore returns the part of an impact's effect that lands on or
// before limit. AR counts each collected portion by its own date; AP
// deferrals and PO reductions count on the scheduled payment date.
func CashBefore(impact allocation.Impact, limit string) float64 {
	if impact.Domain == constants.DomainAR {
		total := 0.0
		for _, portion := range impact.Portions {
			if datetime.OnOrBefore(portion.Date, limit) {
				total += portion.Amount
			}
		}
		return total
	}
	if datetime.OnOrBefore(impact.Date, limit) {
		return impact.Effect
	}
	return 0
}

type candidate struct {
	action Action
	order  int
}

// Build ranks each domain's impacts, keeps the top TopN per domain, and
// appends the emergency pack and coverage boost when the gap calls for it.
func (b *Builder) Build(results map[string]scenario.Result, order []string, p params.Parameters, baseDate string) Plan {
	base, ok := results[constants.ScenarioBase]
	if !ok {
		return Plan{Actions: []Action{}, CoverageRatio: mathutil.Unknown()}
	}

	gaps := risk.Gaps(results)
	wins := windows(results, order, gaps)
	indexes := make(map[string]impactIndex, len(wins))
	for _, w := range wins {
		indexes[w.key] = indexImpacts(results[w.key])
	}

	plan := Plan{
		GapAmount: mathutil.Round(gaps[constants.ScenarioBase].MaxGap),
		GapDay:    gaps[constants.ScenarioBase].GapDay,
	}

	expected := func(domain string, row int) map[string]float64 {
		out := make(map[string]float64, len(wins))
		for _, w := range wins {
			impact, found := indexes[w.key][domain][row]
			if !found {
				out[w.key] = 0
				continue
			}
			out[w.key] = mathutil.Round(CashBefore(impact, w.limit))
		}
		return out
	}

	ar := b.rankAR(actionableImpacts(constants.DomainAR, base.AR.Impacts, wins, indexes), expected, baseDate)
	ap := b.rankAP(base.AP.Impacts, actionableImpacts(constants.DomainAP, base.AP.Impacts, wins, indexes), expected, p, baseDate)
	po := b.rankPO(actionableImpacts(constants.DomainPO, base.PO.Impacts, wins, indexes), expected, baseDate)

	var all []candidate
	var regular []Action
	for _, domain := range [][]Action{ar, ap, po} {
		for _, action := range domain {
			all = append(all, candidate{action: action, order: len(all)})
			regular = append(regular, action)
			plan.TotalImpact += action.ExpectedCashImpact[constants.ScenarioBase]
		}
	}
	plan.TotalImpact = mathutil.Round(plan.TotalImpact)

	baseGap := gaps[constants.ScenarioBase]
	if baseGap.MinBalance < 0 || plan.GapAmount > p.Threshold.GapAmountWarn {
		if pack, built := b.emergencyPack(ar, ap, po, wins, baseDate, baseGap.GapDay); built {
			all = append(all, candidate{action: pack, order: len(all)})
		}
	}

	if ratio, defined := mathutil.Ratio(plan.TotalImpact, plan.GapAmount); defined {
		plan.CoverageRatio = mathutil.KnownMetric(ratio)
	} else {
		plan.CoverageRatio = mathutil.Unknown()
	}
	if plan.GapAmount > 0 && plan.CoverageRatio.Known && plan.CoverageRatio.Value < b.CoverageThreshold {
		boost := coverageBoost(regular, wins, gaps, baseDate, baseGap.GapDay)
		all = append(all, candidate{action: boost, order: len(all)})
	}

	sort.SliceStable(all, func(i, j int) bool {
		bi := all[i].action.ExpectedCashImpact[constants.ScenarioBase]
		bj := all[j].action.ExpectedCashImpact[constants.ScenarioBase]
		if bi != bj {
			return bi > bj
		}
		if all[i].action.PriorityScore != all[j].action.PriorityScore {
			return all[i].action.PriorityScore > all[j].action.PriorityScore
		}
		return all[i].order < all[j].order
	})

	plan.Actions = make([]Action, len(all))
	for i, c := range all {
		plan.Actions[i] = c.action
	}

	b.logger.Debug("actions built",
		zap.String("op", "actions.Build"),
		zap.Int("ar", len(ar)),
		zap.Int("ap", len(ap)),
		zap.Int("po", len(po)),
		zap.Int("total", len(plan.Actions)),
		zap.Float64("gapAmount", plan.GapAmount),
		zap.Float64("totalImpact", plan.TotalImpact),
		zap.String("coverageRatio", plan.CoverageRatio.String()),
	)
	return plan
}

type expectedFunc func(domain string, row int) map[string]float64

func (b *Builder) rankAR(actionable []allocation.Impact, expected expectedFunc, baseDate string) []Action {
	if len(actionable) == 0 {
		return nil
	}

	customerTotals := make(map[string]float64)
	grand := 0.0
	maxWeighted := 0.0
	for _, impact := range actionable {
		customerTotals[impact.Counterparty] += impact.Amount
		grand += impact.Amount
		maxWeighted = math.Max(maxWeighted, weightedAmount(impact))
	}

	actions := make([]Action, 0, len(actionable))
	for _, impact := range actionable {
		cash := expected(constants.DomainAR, impact.RowIndex)
		amountScore, _ := mathutil.Ratio(weightedAmount(impact), maxWeighted)
		concentration, _ := mathutil.Ratio(customerTotals[impact.Counterparty], grand)
		agingScore := float64(planrow.BucketRank(impact.Bucket)) / float64(planrow.BucketRank(constants.Bucket90Plus))
		stressed := 0.0
		if s1, ok := cash[constants.ScenarioS1]; ok && s1 < cash[constants.ScenarioBase] {
			stressed = 1
		}
		score := b.Weights.Amount*amountScore +
			b.Weights.Aging*agingScore +
			b.Weights.Concentration*concentration +
			b.Weights.Sensitivity*stressed

		actions = append(actions, newAction(constants.DomainAR, impact, cash,
			fmt.Sprintf("Collect %s from %s (%s)", format.Amount(taskAmount(impact, cash)), impact.Counterparty, impact.Bucket),
			ddl(impact.Date, baseDate), score*constants.PercentageMultiplier))
	}
	return topN(actions, b.TopN)
}

func weightedAmount(impact allocation.Impact) float64 {
	severity, ok := bucketSeverity[impact.Bucket]
	if !ok {
		severity = 1
	}
	return impact.Amount * severity
}

func (b *Builder) rankAP(impacts, actionable []allocation.Impact, expected expectedFunc, p params.Parameters, baseDate string) []Action {
	vendorTotals := make(map[string]float64)
	grand := 0.0
	for _, impact := range impacts {
		vendorTotals[impact.Counterparty] += impact.Amount
		grand += impact.Amount
	}

	actions := make([]Action, 0, len(actionable))
	for _, impact := range actionable {
		share, _ := mathutil.Ratio(vendorTotals[impact.Counterparty], grand)
		cash := expected(constants.DomainAP, impact.RowIndex)
		actions = append(actions, newAction(constants.DomainAP, impact, cash,
			fmt.Sprintf("Defer %s to %s by %d days", format.Amount(taskAmount(impact, cash)), impact.Counterparty, p.AP.DeferralDays(impact.Top)),
			ddl(impact.Date, baseDate), share*constants.PercentageMultiplier))
	}
	return topN(actions, b.TopN)
}

func (b *Builder) rankPO(actionable []allocation.Impact, expected expectedFunc, baseDate string) []Action {
	actions := make([]Action, 0, len(actionable))
	for _, impact := range actionable {
		cash := expected(constants.DomainPO, impact.RowIndex)
		actions = append(actions, newAction(constants.DomainPO, impact, cash,
			fmt.Sprintf("Reduce purchase order with %s by %s", impact.Counterparty, format.Amount(taskAmount(impact, cash))),
			ddl(impact.Date, baseDate), impact.Effect))
	}
	return topN(actions, b.TopN)
}

// actionableImpacts collects the domain's rows that move cash in at least
// one scenario. A row keeps its base impact when base has it, otherwise the
// impact of the first scenario that does. Base row order comes first.
func actionableImpacts(domain string, base []allocation.Impact, wins []window, indexes map[string]impactIndex) []allocation.Impact {
	acts := make(map[int]bool)
	for _, w := range wins {
		for row, impact := range indexes[w.key][domain] {
			if mathutil.IsPositive(impact.Effect) {
				acts[row] = true
			}
		}
	}

	out := make([]allocation.Impact, 0, len(acts))
	seen := make(map[int]bool, len(base))
	for _, impact := range base {
		seen[impact.RowIndex] = true
		if acts[impact.RowIndex] {
			out = append(out, impact)
		}
	}

	var extra []allocation.Impact
	for _, w := range wins {
		for row, impact := range indexes[w.key][domain] {
			if acts[row] && !seen[row] {
				seen[row] = true
				extra = append(extra, impact)
			}
		}
	}
	sort.SliceStable(extra, func(i, j int) bool {
		return extra[i].RowIndex < extra[j].RowIndex
	})
	return append(out, extra...)
}

// taskAmount is the figure quoted in an action's task: the row's effect, or
// its best scenario cash when the row does nothing in base.
func taskAmount(impact allocation.Impact, cash map[string]float64) float64 {
	if mathutil.IsPositive(impact.Effect) {
		return impact.Effect
	}
	best := 0.0
	for _, value := range cash {
		best = math.Max(best, value)
	}
	return best
}

func newAction(domain string, impact allocation.Impact, cash map[string]float64, task, deadline string, score float64) Action {
	return Action{
		ID:                 actionID(domain, impact.RowIndex, impact.Counterparty),
		Source:             domain,
		Counterparty:       impact.Counterparty,
		Task:               task,
		DDL:                deadline,
		ExpectedCashImpact: cash,
		PriorityScore:      mathutil.Round(score),
		Effect:             mathutil.Round(impact.Effect),
		RowIndex:           impact.RowIndex,
	}
}

func actionID(domain string, row int, counterparty string) string {
	return uuid.NewSHA1(actionNamespace, []byte(fmt.Sprintf("%s|%d|%s", domain, row, counterparty))).String()
}

// ddl is the action's deadline: the row's date, never before the base date.
func ddl(date, baseDate string) string {
	if baseDate != "" && date < baseDate {
		return baseDate
	}
	return date
}

// topN sorts a domain's actions by priority (stable on row order) and
// truncates to n.
func topN(actions []Action, n int) []Action {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].PriorityScore > actions[j].PriorityScore
	})
	if n >= 0 && len(actions) > n {
		actions = actions[:n]
	}
	return actions
}

// emergencyPack bundles the top ranked actions of every domain.
func (b *Builder) emergencyPack(ar, ap, po []Action, wins []window, baseDate, gapDay string) (Action, bool) {
	var members []Action
	for _, domain := range [][]Action{ar, ap, po} {
		n := b.EmergencyTopN
		if n > len(domain) {
			n = len(domain)
		}
		members = append(members, domain[:n]...)
	}
	if len(members) == 0 {
		return Action{}, false
	}

	cash := make(map[string]float64, len(wins))
	ids := make([]string, len(members))
	names := make([]string, 0, len(members))
	seen := make(map[string]bool)
	effect := 0.0
	for i, member := range members {
		ids[i] = member.ID
		effect += member.Effect
		for _, w := range wins {
			cash[w.key] += member.ExpectedCashImpact[w.key]
		}
		if !seen[member.Counterparty] {
			seen[member.Counterparty] = true
			names = append(names, member.Counterparty)
		}
	}
	for key, value := range cash {
		cash[key] = mathutil.Round(value)
	}

	deadline := baseDate
	if gapDay != "" {
		deadline = gapDay
	}
	return Action{
		ID:                 actionID(constants.DomainEmergency, len(members), strings.Join(ids, ",")),
		Source:             constants.DomainEmergency,
		Counterparty:       strings.Join(names, ", "),
		Task:               fmt.Sprintf("Emergency pack: execute the top %d actions per domain", b.EmergencyTopN),
		DDL:                deadline,
		ExpectedCashImpact: cash,
		PriorityScore:      constants.MaxScore,
		Effect:             mathutil.Round(effect),
		RowIndex:           -1,
		Synthetic:          true,
		Members:            ids,
	}, true
}

// coverageBoost quantifies the shortfall the regular actions leave open in
// each scenario.
func coverageBoost(regular []Action, wins []window, gaps map[string]risk.GapMetrics, baseDate, gapDay string) Action {
	cash := make(map[string]float64, len(wins))
	for _, w := range wins {
		covered := 0.0
		for _, action := range regular {
			covered += action.ExpectedCashImpact[w.key]
		}
		cash[w.key] = mathutil.Round(math.Max(0, gaps[w.key].MaxGap-covered))
	}

	deadline := baseDate
	if gapDay != "" {
		deadline = gapDay
	}
	residual := cash[constants.ScenarioBase]
	return Action{
		ID:                 actionID(constants.DomainCoverage, -1, deadline),
		Source:             constants.DomainCoverage,
		Task:               fmt.Sprintf("Arrange %s of additional funding or actions before %s", format.Amount(residual), deadline),
		DDL:                deadline,
		ExpectedCashImpact: cash,
		Effect:             residual,
		RowIndex:           -1,
		Synthetic:          true,
	}
}
