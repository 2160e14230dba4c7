// Package params defines the tunable behavioral assumptions of the cash
// simulation and normalizes untrusted input into a bounded parameter set.
package params

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/mathutil"
	"github.com/spf13/cast"
)

// DelayScope selects which AR aging buckets receive the delayed split.
type DelayScope string

const (
	DelayAll         DelayScope = "all"
	DelayOverdueOnly DelayScope = "overdue_only"
	Delay31Plus      DelayScope = "31plus"
)

// POScope selects which PO lines are eligible for reduction.
type POScope string

const (
	POScopeAll          POScope = "all"
	POScopeTopSuppliers POScope = "top_suppliers"
	POScopeLowTurnover  POScope = "low_turnover_sku_if_available"
)

// Parameters is the normalized set of tuning assumptions. Values obtained
// from Normalize or Defaults are always inside their documented bounds.
type Parameters struct {
	Version   int             `json:"version" yaml:"version"`
	AR        ARParams        `json:"ar" yaml:"ar"`
	AP        APParams        `json:"ap" yaml:"ap"`
	PO        POParams        `json:"po" yaml:"po"`
	Threshold ThresholdParams `json:"threshold" yaml:"threshold"`
}

// ARParams holds collection ratios per aging bucket and the delay split.
type ARParams struct {
	CollectNotDue      float64    `json:"collect_ratio_not_due" yaml:"collect_ratio_not_due"`
	Collect1To30       float64    `json:"collect_ratio_1_30" yaml:"collect_ratio_1_30"`
	Collect31To60      float64    `json:"collect_ratio_31_60" yaml:"collect_ratio_31_60"`
	Collect61To90      float64    `json:"collect_ratio_61_90" yaml:"collect_ratio_61_90"`
	Collect90Plus      float64    `json:"collect_ratio_90_plus" yaml:"collect_ratio_90_plus"`
	DelayShare7d       float64    `json:"delay_share_7d" yaml:"delay_share_7d"`
	DelayShare14d      float64    `json:"delay_share_14d" yaml:"delay_share_14d"`
	DelayApplyToBucket DelayScope `json:"delay_apply_to_bucket" yaml:"delay_apply_to_bucket"`
}

// APParams holds payment deferral assumptions.
type APParams struct {
	DeferralRatio           float64 `json:"deferral_ratio" yaml:"deferral_ratio"`
	DeferralDaysTopVendor   int     `json:"deferral_days_top_vendor" yaml:"deferral_days_top_vendor"`
	DeferralDaysOther       int     `json:"deferral_days_other" yaml:"deferral_days_other"`
	TopVendorThresholdRatio float64 `json:"top_vendor_threshold_ratio" yaml:"top_vendor_threshold_ratio"`
}

// POParams holds purchase reduction assumptions.
type POParams struct {
	ReducibleRatioBase float64 `json:"reducible_ratio_base" yaml:"reducible_ratio_base"`
	ReducibleRatioS3   float64 `json:"reducible_ratio_S3" yaml:"reducible_ratio_S3"`
	ApplyScope         POScope `json:"apply_scope" yaml:"apply_scope"`
}

// ThresholdParams holds the warning thresholds in currency units.
type ThresholdParams struct {
	GapAmountWarn  float64 `json:"gap_amount_warn" yaml:"gap_amount_warn"`
	MinBalanceWarn float64 `json:"min_balance_warn" yaml:"min_balance_warn"`
}

// Defaults returns the documented default parameter set.
func Defaults() Parameters {
	return Parameters{
		Version: constants.ParamsSchemaVersion,
		AR: ARParams{
			CollectNotDue:      0.25,
			Collect1To30:       0.45,
			Collect31To60:      0.3,
			Collect61To90:      0.2,
			Collect90Plus:      0.1,
			DelayShare7d:       0.15,
			DelayShare14d:      0.05,
			DelayApplyToBucket: DelayOverdueOnly,
		},
		AP: APParams{
			DeferralRatio:           0.3,
			DeferralDaysTopVendor:   7,
			DeferralDaysOther:       12,
			TopVendorThresholdRatio: 0.25,
		},
		PO: POParams{
			ReducibleRatioBase: 0.15,
			ReducibleRatioS3:   0.25,
			ApplyScope:         POScopeAll,
		},
		Threshold: ThresholdParams{
			GapAmountWarn:  constants.DefaultGapAmountWarn,
			MinBalanceWarn: constants.DefaultMinBalanceWarn,
		},
	}
}

// CollectRatio returns the collection ratio for an aging bucket. Unknown
// buckets use the default bucket's ratio.
func (a ARParams) CollectRatio(bucket string) float64 {
	switch bucket {
	case constants.BucketNotDue:
		return a.CollectNotDue
	case constants.Bucket31To60:
		return a.Collect31To60
	case constants.Bucket61To90:
		return a.Collect61To90
	case constants.Bucket90Plus:
		return a.Collect90Plus
	default:
		return a.Collect1To30
	}
}

// DelayApplies reports whether the delayed split applies to a bucket.
func (a ARParams) DelayApplies(bucket string) bool {
	switch a.DelayApplyToBucket {
	case DelayAll:
		return true
	case Delay31Plus:
		return bucket == constants.Bucket31To60 || bucket == constants.Bucket61To90 || bucket == constants.Bucket90Plus
	default:
		return bucket != constants.BucketNotDue
	}
}

// DeferralDays returns the deferral offset for a top or other vendor.
func (a APParams) DeferralDays(top bool) int {
	if top {
		return a.DeferralDaysTopVendor
	}
	return a.DeferralDaysOther
}

// ReducibleRatio returns the PO reduction ratio for a scenario.
func (p POParams) ReducibleRatio(scenarioKey string) float64 {
	if scenarioKey == constants.ScenarioS3 {
		return p.ReducibleRatioS3
	}
	return p.ReducibleRatioBase
}

// Normalize converts an untrusted, possibly partial parameter map into a
// bounded Parameters value. It never fails: missing or invalid fields fall
// back to defaults and numeric fields are clamped to their domains.
func Normalize(raw map[string]any) Parameters {
	p, _ := NormalizeWithNotes(raw)
	return p
}

// NormalizeWithNotes is Normalize that also reports every adjustment made
// to the input, sorted for stable output.
func NormalizeWithNotes(raw map[string]any) (Parameters, []string) {
	n := &normalizer{}
	d := Defaults()

	ar := n.section(raw, "ar")
	ap := n.section(raw, "ap")
	po := n.section(raw, "po")
	th := n.section(raw, "threshold")

	p := Parameters{Version: constants.ParamsSchemaVersion}

	p.AR.CollectNotDue = n.ratio(ar, "ar", "collect_ratio_not_due", d.AR.CollectNotDue)
	p.AR.Collect1To30 = n.ratio(ar, "ar", "collect_ratio_1_30", d.AR.Collect1To30)
	p.AR.Collect31To60 = n.ratio(ar, "ar", "collect_ratio_31_60", d.AR.Collect31To60)
	p.AR.Collect61To90 = n.ratio(ar, "ar", "collect_ratio_61_90", d.AR.Collect61To90)
	p.AR.Collect90Plus = n.ratio(ar, "ar", "collect_ratio_90_plus", d.AR.Collect90Plus)
	p.AR.DelayShare7d = n.ratio(ar, "ar", "delay_share_7d", d.AR.DelayShare7d)
	p.AR.DelayShare14d = n.ratio(ar, "ar", "delay_share_14d", d.AR.DelayShare14d)
	p.AR.DelayApplyToBucket = DelayScope(n.enum(ar, "ar", "delay_apply_to_bucket", string(d.AR.DelayApplyToBucket), delayScopeAliases))

	p.AP.DeferralRatio = n.ratio(ap, "ap", "deferral_ratio", d.AP.DeferralRatio)
	p.AP.DeferralDaysTopVendor = n.days(ap, "ap", "deferral_days_top_vendor", d.AP.DeferralDaysTopVendor)
	p.AP.DeferralDaysOther = n.days(ap, "ap", "deferral_days_other", d.AP.DeferralDaysOther)
	p.AP.TopVendorThresholdRatio = n.ratio(ap, "ap", "top_vendor_threshold_ratio", d.AP.TopVendorThresholdRatio)

	p.PO.ReducibleRatioBase = n.ratio(po, "po", "reducible_ratio_base", d.PO.ReducibleRatioBase)
	p.PO.ReducibleRatioS3 = n.ratio(po, "po", "reducible_ratio_s3", d.PO.ReducibleRatioS3)
	p.PO.ApplyScope = POScope(n.enum(po, "po", "apply_scope", string(d.PO.ApplyScope), poScopeAliases))

	p.Threshold.GapAmountWarn = n.nonNegative(th, "threshold", "gap_amount_warn", d.Threshold.GapAmountWarn)
	p.Threshold.MinBalanceWarn = n.nonNegative(th, "threshold", "min_balance_warn", d.Threshold.MinBalanceWarn)

	p.AR.DelayShare7d, p.AR.DelayShare14d = n.rescaleShares(p.AR.DelayShare7d, p.AR.DelayShare14d)

	sort.Strings(n.notes)
	return p, n.notes
}

// Normalized re-applies the bounds to an already typed value.
func (p Parameters) Normalized() Parameters {
	return Normalize(p.Raw())
}

// Raw returns the nested map form of p; Normalize(p.Raw()) == p for any
// normalized p.
func (p Parameters) Raw() map[string]any {
	return map[string]any{
		"version": p.Version,
		"ar": map[string]any{
			"collect_ratio_not_due": p.AR.CollectNotDue,
			"collect_ratio_1_30":    p.AR.Collect1To30,
			"collect_ratio_31_60":   p.AR.Collect31To60,
			"collect_ratio_61_90":   p.AR.Collect61To90,
			"collect_ratio_90_plus": p.AR.Collect90Plus,
			"delay_share_7d":        p.AR.DelayShare7d,
			"delay_share_14d":       p.AR.DelayShare14d,
			"delay_apply_to_bucket": string(p.AR.DelayApplyToBucket),
		},
		"ap": map[string]any{
			"deferral_ratio":             p.AP.DeferralRatio,
			"deferral_days_top_vendor":   p.AP.DeferralDaysTopVendor,
			"deferral_days_other":        p.AP.DeferralDaysOther,
			"top_vendor_threshold_ratio": p.AP.TopVendorThresholdRatio,
		},
		"po": map[string]any{
			"reducible_ratio_base": p.PO.ReducibleRatioBase,
			"reducible_ratio_S3":   p.PO.ReducibleRatioS3,
			"apply_scope":          string(p.PO.ApplyScope),
		},
		"threshold": map[string]any{
			"gap_amount_warn":  p.Threshold.GapAmountWarn,
			"min_balance_warn": p.Threshold.MinBalanceWarn,
		},
	}
}

var delayScopeAliases = map[string]string{
	"all":          string(DelayAll),
	"overdue_only": string(DelayOverdueOnly),
	"overdue":      string(DelayOverdueOnly),
	"31plus":       string(Delay31Plus),
	"31_plus":      string(Delay31Plus),
	"31+":          string(Delay31Plus),
}

var poScopeAliases = map[string]string{
	"all":                           string(POScopeAll),
	"top_suppliers":                 string(POScopeTopSuppliers),
	"top":                           string(POScopeTopSuppliers),
	"low_turnover_sku_if_available": string(POScopeLowTurnover),
	"low_turnover":                  string(POScopeLowTurnover),
}

type normalizer struct {
	notes []string
}

func (n *normalizer) note(format string, args ...any) {
	n.notes = append(n.notes, fmt.Sprintf(format, args...))
}

// lookup finds key case-insensitively.
func lookup(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (n *normalizer) section(raw map[string]any, name string) map[string]any {
	v, ok := lookup(raw, name)
	if !ok || v == nil {
		return nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		n.note("%s: expected an object, using defaults", name)
		return nil
	}
	return m
}

func (n *normalizer) number(m map[string]any, section, key string, def float64) (float64, bool) {
	v, ok := lookup(m, key)
	if !ok || v == nil {
		return def, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || !mathutil.IsFinite(f) {
		n.note("%s.%s: invalid value %v, using default %v", section, key, v, def)
		return def, false
	}
	return f, true
}

func (n *normalizer) bounded(m map[string]any, section, key string, def, lo, hi float64) float64 {
	f, ok := n.number(m, section, key, def)
	if !ok {
		return f
	}
	c := mathutil.Clamp(f, lo, hi)
	if c != f {
		n.note("%s.%s: %v clamped to %v", section, key, f, c)
	}
	return c
}

func (n *normalizer) ratio(m map[string]any, section, key string, def float64) float64 {
	return n.bounded(m, section, key, def, 0, 1)
}

func (n *normalizer) nonNegative(m map[string]any, section, key string, def float64) float64 {
	return n.bounded(m, section, key, def, 0, math.MaxFloat64)
}

func (n *normalizer) days(m map[string]any, section, key string, def int) int {
	f := n.bounded(m, section, key, float64(def), 0, constants.MaxDeferralDays)
	return int(math.Round(f))
}

func (n *normalizer) enum(m map[string]any, section, key, def string, aliases map[string]string) string {
	v, ok := lookup(m, key)
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		n.note("%s.%s: invalid value %v, using default %s", section, key, v, def)
		return def
	}
	canonical, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		n.note("%s.%s: unknown value %q, using default %s", section, key, s, def)
		return def
	}
	return canonical
}

// rescaleShares keeps s7+s14 <= 1, scaling both proportionally. The second
// share is derived from the first so the sum is exactly 1.
func (n *normalizer) rescaleShares(s7, s14 float64) (float64, float64) {
	sum := s7 + s14
	if sum <= 1 {
		return s7, s14
	}
	r7 := s7 / sum
	r14 := 1 - r7
	n.note("ar.delay_share_7d + ar.delay_share_14d = %v exceeds 1, rescaled to %v + %v", sum, r7, r14)
	return r7, r14
}
