// Package pricing holds the money arithmetic shared by cart previews and
// the checkout authority. Both sides must call the same functions so a
// previewed total can never disagree with an authorized one.
package pricing

import (
	"math"

	"gympos/backend/internal/domain"
)

// TaxRatePercent applies to discounted inventory lines only. Membership
// plans are tax-exempt services.
const TaxRatePercent = 8

// Breakdown is the full derivation of a cart total. All values are cents.
type Breakdown struct {
	SubtotalCents    int64 `json:"subtotal_cents"`
	DiscountCents    int64 `json:"discount_cents"`
	TaxableBaseCents int64 `json:"taxable_base_cents"`
	TaxCents         int64 `json:"tax_cents"`
	TotalCents       int64 `json:"total_cents"`
}

// Subtotal sums paid price times quantity over non-giveaway lines.
func Subtotal(lines []domain.LineItem) int64 {
	var total int64
	for _, line := range lines {
		if line.IsGiveaway {
			continue
		}
		total += line.UnitPricePaidCents * int64(line.Quantity)
	}
	return total
}

// DiscountAmount applies a whole-percent discount to the subtotal,
// rounding half away from zero. Percent is clamped to [0, 100].
func DiscountAmount(subtotalCents int64, percent int) int64 {
	if percent <= 0 {
		return 0
	}
	if percent > 100 {
		percent = 100
	}
	return roundCents(float64(subtotalCents) * float64(percent) / 100)
}

// TaxableBase is the discounted value of the inventory portion of the
// cart. The discount is spread proportionally: the inventory subtotal is
// reduced by the same percentage the whole cart was.
func TaxableBase(lines []domain.LineItem, discountPercent int) int64 {
	var inventorySubtotal int64
	for _, line := range lines {
		if line.IsGiveaway || line.Kind != domain.LineKindInventory {
			continue
		}
		inventorySubtotal += line.UnitPricePaidCents * int64(line.Quantity)
	}
	if inventorySubtotal == 0 {
		return 0
	}
	return inventorySubtotal - DiscountAmount(inventorySubtotal, discountPercent)
}

// Tax computes tax due on the taxable base at TaxRatePercent.
func Tax(taxableBaseCents int64) int64 {
	return roundCents(float64(taxableBaseCents) * TaxRatePercent / 100)
}

// Compute derives the full breakdown for a set of lines and a discount
// percent. A zero total is valid when every line is a giveaway.
func Compute(lines []domain.LineItem, discountPercent int) Breakdown {
	subtotal := Subtotal(lines)
	discount := DiscountAmount(subtotal, discountPercent)
	taxableBase := TaxableBase(lines, discountPercent)
	tax := Tax(taxableBase)
	return Breakdown{
		SubtotalCents:    subtotal,
		DiscountCents:    discount,
		TaxableBaseCents: taxableBase,
		TaxCents:         tax,
		TotalCents:       subtotal - discount + tax,
	}
}

// roundCents rounds half away from zero. Cent amounts stay non-negative
// throughout checkout, so this matches round-half-up for all inputs here.
func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
