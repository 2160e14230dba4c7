// Package allocation distributes AR inflows and AP/PO outflows across
// future dates according to the tuning parameters.
//
// Each allocator returns a date-keyed accumulation map plus one Impact per
// allocated row. Rows without a resolvable date are skipped and counted.
package allocation

import (
	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/planrow"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/datetime"
)

// Portion kinds
const (
	PortionImmediate = "immediate"
	PortionDelay7d   = "delay_7d"
	PortionDelay14d  = "delay_14d"
	PortionKept      = "kept"
	PortionDeferred  = "deferred"
	PortionRemainder = "remainder"
)

// Portion is a slice of a row's cash landing on one date.
type Portion struct {
	Kind   string  `json:"kind"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Impact records how one plan row was transformed.
type Impact struct {
	Domain       string `json:"domain"`
	RowIndex     int    `json:"row_index"`
	Counterparty string `json:"counterparty"`
	OriginalDate string `json:"original_date"`
	// Date is the row's effective date: the shifted collection date for AR
	// and the scheduled payment date for AP and PO.
	Date   string  `json:"date"`
	Bucket string  `json:"bucket,omitempty"`
	Amount float64 `json:"amount"`
	Ratio  float64 `json:"ratio"`
	// Effect is the cash the assumption moves: collected for AR, deferred
	// for AP, reduced for PO.
	Effect   float64   `json:"effect"`
	Portions []Portion `json:"portions"`
	Top      bool      `json:"top,omitempty"`
	Eligible bool      `json:"eligible"`
}

// Allocation is the output common to all three allocators.
type Allocation struct {
	DateMap map[string]float64 `json:"date_map"`
	Impacts []Impact           `json:"impacts"`
	Skipped int                `json:"skipped"`
}

func newAllocation(capacity int) Allocation {
	return Allocation{
		DateMap: make(map[string]float64),
		Impacts: make([]Impact, 0, capacity),
	}
}

func (a *Allocation) add(impact *Impact, kind, date string, amount float64) {
	if amount == 0 {
		return
	}
	a.DateMap[date] += amount
	impact.Portions = append(impact.Portions, Portion{Kind: kind, Date: date, Amount: amount})
}

// ArOptions perturbs AR allocation; ExtraDelayDays shifts each row's date
// before the delay split.
type ArOptions struct {
	ExtraDelayDays int
}

// CalcArInflow allocates expected collections per AR row.
func CalcArInflow(rows []planrow.ARRow, p params.Parameters, opts ArOptions) Allocation {
	out := newAllocation(len(rows))
	for _, row := range rows {
		if !row.HasDate() {
			out.Skipped++
			continue
		}
		base, err := datetime.OffsetDays(row.Date, opts.ExtraDelayDays)
		if err != nil {
			out.Skipped++
			continue
		}

		ratio := p.AR.CollectRatio(row.AgingBucket)
		collected := row.Amount * ratio
		impact := Impact{
			Domain:       constants.DomainAR,
			RowIndex:     row.Index,
			Counterparty: row.Counterparty,
			OriginalDate: row.Date,
			Date:         base,
			Bucket:       row.AgingBucket,
			Amount:       row.Amount,
			Ratio:        ratio,
			Effect:       collected,
			Eligible:     p.AR.DelayApplies(row.AgingBucket),
		}

		if impact.Eligible {
			delay7 := collected * p.AR.DelayShare7d
			delay14 := collected * p.AR.DelayShare14d
			d7, _ := datetime.OffsetDays(base, constants.FirstDelayDays)
			d14, _ := datetime.OffsetDays(base, constants.SecondDelayDays)
			out.add(&impact, PortionImmediate, base, collected-delay7-delay14)
			out.add(&impact, PortionDelay7d, d7, delay7)
			out.add(&impact, PortionDelay14d, d14, delay14)
		} else {
			out.add(&impact, PortionImmediate, base, collected)
		}
		out.Impacts = append(out.Impacts, impact)
	}
	return out
}

// ApOptions limits AP rows to the simulation window. Rows due after
// HorizonEnd are excluded; an empty HorizonEnd disables the check.
type ApOptions struct {
	HorizonEnd string
}

// APAllocation adds the vendor classification to the AP allocation.
type APAllocation struct {
	Allocation
	TopVendors  map[string]bool `json:"top_vendors"`
	OutOfWindow int             `json:"out_of_window"`
}

// CalcApOutflow allocates payments per AP row, deferring a share of each to
// a later date that depends on whether the vendor is a top vendor.
func CalcApOutflow(rows []planrow.APRow, p params.Parameters, opts ApOptions) APAllocation {
	out := APAllocation{Allocation: newAllocation(len(rows))}

	included := make([]planrow.APRow, 0, len(rows))
	for _, row := range rows {
		if !row.HasDate() {
			out.Skipped++
			continue
		}
		if opts.HorizonEnd != "" && row.DueDate != "" && !datetime.OnOrBefore(row.DueDate, opts.HorizonEnd) {
			out.OutOfWindow++
			continue
		}
		included = append(included, row)
	}
	out.TopVendors = planrow.ClassifyTopCounterparties(planrow.APBase(included), p.AP.TopVendorThresholdRatio)

	for _, row := range included {
		top := out.TopVendors[row.Counterparty]
		deferred := row.Amount * p.AP.DeferralRatio
		deferredDate, err := datetime.OffsetDays(row.Date, p.AP.DeferralDays(top))
		if err != nil {
			out.Skipped++
			continue
		}
		impact := Impact{
			Domain:       constants.DomainAP,
			RowIndex:     row.Index,
			Counterparty: row.Counterparty,
			OriginalDate: row.Date,
			Date:         row.Date,
			Amount:       row.Amount,
			Ratio:        p.AP.DeferralRatio,
			Effect:       deferred,
			Top:          top,
			Eligible:     true,
		}
		out.add(&impact, PortionKept, row.Date, row.Amount-deferred)
		out.add(&impact, PortionDeferred, deferredDate, deferred)
		out.Impacts = append(out.Impacts, impact)
	}
	return out
}

// POAllocation adds the supplier classification to the PO allocation.
type POAllocation struct {
	Allocation
	TopSuppliers   map[string]bool `json:"top_suppliers"`
	HasLowTurnover bool            `json:"has_low_turnover"`
}

// CalcPoOutflow allocates purchase-order payments, removing the reducible
// share from eligible rows. The S3 scenario uses its own reducible ratio.
func CalcPoOutflow(rows []planrow.PORow, p params.Parameters, scenarioKey string) POAllocation {
	out := POAllocation{Allocation: newAllocation(len(rows))}

	dated := make([]planrow.PORow, 0, len(rows))
	for _, row := range rows {
		if !row.HasDate() {
			out.Skipped++
			continue
		}
		dated = append(dated, row)
		if planrow.IsLowTurnover(row) {
			out.HasLowTurnover = true
		}
	}
	out.TopSuppliers = planrow.RankTopCounterparties(planrow.POBase(dated), constants.TopSupplierFraction)
	ratio := p.PO.ReducibleRatio(scenarioKey)

	for _, row := range dated {
		top := out.TopSuppliers[row.Counterparty]
		eligible := poEligible(row, p.PO.ApplyScope, top, out.HasLowTurnover)
		reduced := 0.0
		if eligible {
			reduced = row.Amount * ratio
		}
		impact := Impact{
			Domain:       constants.DomainPO,
			RowIndex:     row.Index,
			Counterparty: row.Counterparty,
			OriginalDate: row.Date,
			Date:         row.Date,
			Amount:       row.Amount,
			Ratio:        ratio,
			Effect:       reduced,
			Top:          top,
			Eligible:     eligible,
		}
		out.add(&impact, PortionRemainder, row.Date, row.Amount-reduced)
		out.Impacts = append(out.Impacts, impact)
	}
	return out
}

// poEligible applies the scope gate. When the low-turnover scope finds no
// low-turnover line at all, every line is eligible.
func poEligible(row planrow.PORow, scope params.POScope, top, anyLowTurnover bool) bool {
	switch scope {
	case params.POScopeTopSuppliers:
		return top
	case params.POScopeLowTurnover:
		if !anyLowTurnover {
			return true
		}
		return planrow.IsLowTurnover(row)
	default:
		return true
	}
}
