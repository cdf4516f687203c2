package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Derived holds the tax amount and total payable of a charge.
type Derived struct {
	Amount decimal.Decimal
	Total  decimal.Decimal
}

// ComputeDerived returns amount = base*percent/100 and total = base+secondary+amount.
func ComputeDerived(base, secondary, percent decimal.Decimal) Derived {
	amount := base.Mul(percent).Div(hundred)
	return Derived{
		Amount: amount,
		Total:  base.Add(secondary).Add(amount),
	}
}

// Apply recomputes the derived fields of rec in place. Inputs are coerced
// with the numeric normalizer, so missing or garbage values count as zero.
func (r *DerivedRule) Apply(rec Record) {
	if r == nil {
		return
	}
	d := ComputeDerived(
		NormalizeNumber(rec[r.Base]),
		NormalizeNumber(rec[r.Secondary]),
		NormalizeNumber(rec[r.Percent]),
	)
	rec[r.Amount] = d.Amount
	rec[r.Total] = d.Total
}
