// Package planrow maps heterogeneous AR, AP and PO plan rows into typed
// canonical rows and classifies them for the allocators.
package planrow

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/datetime"
	"github.com/iwvelando/cash-tuner/pkg/mathutil"
	"github.com/spf13/cast"
)

// UnnamedCounterparty labels rows whose counterparty cannot be resolved.
const UnnamedCounterparty = "(unnamed)"

// Row is the canonical shape shared by every domain.
type Row struct {
	// Index is the row's position in its source slice and identifies it in
	// impacts and actions.
	Index        int     `json:"index"`
	Counterparty string  `json:"counterparty"`
	Amount       float64 `json:"amount"`
	// Date is the canonical YYYY-MM-DD date, empty when unresolvable.
	Date string `json:"date,omitempty"`
}

// HasDate reports whether the row can take part in the simulation.
func (r Row) HasDate() bool {
	return r.Date != ""
}

// ARRow is a receivable with its aging bucket.
type ARRow struct {
	Row
	AgingBucket string `json:"aging_bucket"`
}

// APRow is a payable; DueDate only decides 30-day window inclusion.
type APRow struct {
	Row
	DueDate string `json:"due_date,omitempty"`
}

// PORow is a purchase-order line with optional turnover information.
type PORow struct {
	Row
	TurnoverClass string   `json:"turnover_class,omitempty"`
	TurnoverDays  *float64 `json:"turnover_days,omitempty"`
	LowTurnover   bool     `json:"low_turnover,omitempty"`
}

var (
	arCounterpartyKeys = []string{"customer", "customer_name", "counterparty", "client", "partner", "name"}
	apCounterpartyKeys = []string{"vendor", "vendor_name", "supplier", "supplier_name", "counterparty", "payee", "name"}
	poCounterpartyKeys = []string{"supplier", "supplier_name", "vendor", "vendor_name", "counterparty", "name"}

	amountKeys = []string{"amount", "open_amount", "outstanding", "balance", "amt", "value", "total"}

	arDateKeys = []string{"date", "expected_date", "collection_date", "plan_date", "due_date"}
	apDateKeys = []string{"date", "pay_date", "payment_date", "plan_date", "due_date"}
	poDateKeys = []string{"date", "pay_date", "payment_date", "plan_date", "eta", "delivery_date"}

	bucketKeys  = []string{"aging_bucket", "bucket", "aging"}
	ageDaysKeys = []string{"age_days", "days_overdue", "overdue_days", "aging_days", "days_past_due"}

	dueDateKeys       = []string{"due_date", "due"}
	turnoverClassKeys = []string{"turnover_class", "turnover", "sku_class", "abc_class"}
	turnoverDaysKeys  = []string{"turnover_days", "days_of_inventory", "dio", "days_on_hand"}
	lowTurnoverKeys   = []string{"low_turnover", "is_low_turnover", "slow_moving"}
)

// NormalizeAR maps raw receivable rows into ARRows, classifying each one
// into an aging bucket.
func NormalizeAR(raw []map[string]any) []ARRow {
	rows := make([]ARRow, 0, len(raw))
	for i, r := range raw {
		label, _ := stringField(r, bucketKeys)
		var age *float64
		if f, ok := numberField(r, ageDaysKeys); ok {
			age = &f
		}
		rows = append(rows, ARRow{
			Row:         baseRow(i, r, arCounterpartyKeys, arDateKeys),
			AgingBucket: ClassifyAR(label, age),
		})
	}
	return rows
}

// NormalizeAP maps raw payable rows into APRows.
func NormalizeAP(raw []map[string]any) []APRow {
	rows := make([]APRow, 0, len(raw))
	for i, r := range raw {
		due, _ := dateField(r, dueDateKeys)
		rows = append(rows, APRow{
			Row:     baseRow(i, r, apCounterpartyKeys, apDateKeys),
			DueDate: due,
		})
	}
	return rows
}

// NormalizePO maps raw purchase-order rows into PORows.
func NormalizePO(raw []map[string]any) []PORow {
	rows := make([]PORow, 0, len(raw))
	for i, r := range raw {
		class, _ := stringField(r, turnoverClassKeys)
		row := PORow{
			Row:           baseRow(i, r, poCounterpartyKeys, poDateKeys),
			TurnoverClass: strings.TrimSpace(class),
		}
		if f, ok := numberField(r, turnoverDaysKeys); ok {
			row.TurnoverDays = &f
		}
		if v, ok := field(r, lowTurnoverKeys); ok {
			if b, err := cast.ToBoolE(v); err == nil {
				row.LowTurnover = b
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func baseRow(index int, r map[string]any, counterpartyKeys, dateKeys []string) Row {
	name, _ := stringField(r, counterpartyKeys)
	name = strings.TrimSpace(name)
	if name == "" {
		name = UnnamedCounterparty
	}
	amount, _ := numberField(r, amountKeys)
	date, _ := dateField(r, dateKeys)
	return Row{
		Index:        index,
		Counterparty: name,
		Amount:       math.Abs(amount),
		Date:         date,
	}
}

// ClassifyAR resolves an aging bucket from an explicit label, then from the
// age in days, and finally falls back to the default bucket.
func ClassifyAR(label string, ageDays *float64) string {
	if bucket, ok := bucketFromLabel(label); ok {
		return bucket
	}
	if ageDays != nil && mathutil.IsFinite(*ageDays) {
		return bucketFromAge(*ageDays)
	}
	return constants.DefaultBucket
}

var bucketTokens = map[string]string{
	"not_due":     constants.BucketNotDue,
	"notdue":      constants.BucketNotDue,
	"current":     constants.BucketNotDue,
	"undue":       constants.BucketNotDue,
	"0":           constants.BucketNotDue,
	"1_30":        constants.Bucket1To30,
	"0_30":        constants.Bucket1To30,
	"31_60":       constants.Bucket31To60,
	"61_90":       constants.Bucket61To90,
	"90_plus":     constants.Bucket90Plus,
	"90plus":      constants.Bucket90Plus,
	"90+":         constants.Bucket90Plus,
	"91+":         constants.Bucket90Plus,
	"91_plus":     constants.Bucket90Plus,
	"over_90":     constants.Bucket90Plus,
	">90":         constants.Bucket90Plus,
	"90_and_over": constants.Bucket90Plus,
}

var labelReplacer = strings.NewReplacer("-", "_", " ", "_", "~", "_", "–", "_", "—", "_")

func bucketFromLabel(label string) (string, bool) {
	token := labelReplacer.Replace(strings.ToLower(strings.TrimSpace(label)))
	if token == "" {
		return "", false
	}
	token = strings.TrimSuffix(token, "_days")
	token = strings.TrimSuffix(token, "days")
	token = strings.TrimSuffix(token, "d")
	token = strings.Trim(token, "_")
	bucket, ok := bucketTokens[token]
	return bucket, ok
}

func bucketFromAge(days float64) string {
	switch {
	case days <= 0:
		return constants.BucketNotDue
	case days <= 30:
		return constants.Bucket1To30
	case days <= 60:
		return constants.Bucket31To60
	case days <= 90:
		return constants.Bucket61To90
	default:
		return constants.Bucket90Plus
	}
}

// BucketRank orders buckets from least to most overdue (0..4).
func BucketRank(bucket string) int {
	switch bucket {
	case constants.BucketNotDue:
		return 0
	case constants.Bucket31To60:
		return 2
	case constants.Bucket61To90:
		return 3
	case constants.Bucket90Plus:
		return 4
	default:
		return 1
	}
}

// Totals sums row amounts per counterparty.
func Totals(rows []Row) (map[string]float64, float64) {
	totals := make(map[string]float64)
	grand := 0.0
	for _, r := range rows {
		totals[r.Counterparty] += r.Amount
		grand += r.Amount
	}
	return totals, grand
}

// ClassifyTopCounterparties returns the counterparties whose share of the
// total amount is at least thresholdRatio. A zero total yields none.
func ClassifyTopCounterparties(rows []Row, thresholdRatio float64) map[string]bool {
	totals, grand := Totals(rows)
	top := make(map[string]bool)
	if grand <= 0 {
		return top
	}
	for name, total := range totals {
		if total/grand >= thresholdRatio {
			top[name] = true
		}
	}
	return top
}

// RankTopCounterparties returns the leading fraction of counterparties by
// total amount (at least one when any exist). Ties break by name.
func RankTopCounterparties(rows []Row, fraction float64) map[string]bool {
	totals, _ := Totals(rows)
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})

	n := int(math.Ceil(float64(len(names)) * fraction))
	if n < 1 {
		n = 1
	}
	if n > len(names) {
		n = len(names)
	}
	top := make(map[string]bool, n)
	for _, name := range names[:n] {
		top[name] = true
	}
	return top
}

var lowTurnoverClasses = map[string]bool{
	"low":          true,
	"low_turnover": true,
	"slow":         true,
	"slow_moving":  true,
	"dead":         true,
	"dead_stock":   true,
	"non_moving":   true,
	"c":            true,
	"d":            true,
}

// IsLowTurnover reports whether a PO line counts as low turnover by explicit
// flag, class token or turnover days above the threshold.
func IsLowTurnover(row PORow) bool {
	if row.LowTurnover {
		return true
	}
	if lowTurnoverClasses[labelReplacer.Replace(strings.ToLower(row.TurnoverClass))] {
		return true
	}
	return row.TurnoverDays != nil && *row.TurnoverDays > constants.LowTurnoverDays
}

// ARBase, APBase and POBase project typed rows onto their shared base.
func ARBase(rows []ARRow) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out
}

func APBase(rows []APRow) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out
}

func POBase(rows []PORow) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row
	}
	return out
}

// field returns the first present, non-nil value among keys.
func field(r map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func stringField(r map[string]any, keys []string) (string, bool) {
	v, ok := field(r, keys)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

var amountCleaner = strings.NewReplacer(",", "", " ", "", "$", "", "¥", "", "€", "", "£", "", "_", "")

func numberField(r map[string]any, keys []string) (float64, bool) {
	v, ok := field(r, keys)
	if !ok {
		return 0, false
	}
	if s, isString := v.(string); isString {
		v = amountCleaner.Replace(strings.TrimSpace(s))
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || !mathutil.IsFinite(f) {
		return 0, false
	}
	return f, true
}

func dateField(r map[string]any, keys []string) (string, bool) {
	v, ok := field(r, keys)
	if !ok {
		return "", false
	}
	if t, isTime := v.(time.Time); isTime {
		return datetime.Truncate(t).Format(datetime.DateLayout), true
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return datetime.NormalizeDate(s)
}
