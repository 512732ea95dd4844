package pricing

import (
	"testing"

	"gympos/backend/internal/domain"
)

func inventoryLine(id string, qty int, unitCents int64) domain.LineItem {
	return domain.LineItem{
		SourceID:               id,
		Kind:                   domain.LineKindInventory,
		Name:                   id,
		Quantity:               qty,
		UnitPricePaidCents:     unitCents,
		UnitPriceOriginalCents: unitCents,
	}
}

func membershipLine(id string, qty int, unitCents int64) domain.LineItem {
	return domain.LineItem{
		SourceID:               id,
		Kind:                   domain.LineKindMembership,
		Name:                   id,
		Quantity:               qty,
		UnitPricePaidCents:     unitCents,
		UnitPriceOriginalCents: unitCents,
	}
}

func TestComputeGoodsWithDiscountAndTax(t *testing.T) {
	lines := []domain.LineItem{
		inventoryLine("item-a", 4, 500),
	}

	got := Compute(lines, 10)

	if got.SubtotalCents != 2000 {
		t.Fatalf("subtotal = %d, want 2000", got.SubtotalCents)
	}
	if got.DiscountCents != 200 {
		t.Fatalf("discount = %d, want 200", got.DiscountCents)
	}
	if got.TaxableBaseCents != 1800 {
		t.Fatalf("taxable base = %d, want 1800", got.TaxableBaseCents)
	}
	if got.TaxCents != 144 {
		t.Fatalf("tax = %d, want 144", got.TaxCents)
	}
	if got.TotalCents != 1944 {
		t.Fatalf("total = %d, want 1944", got.TotalCents)
	}
}

func TestComputeMembershipIsNeverTaxed(t *testing.T) {
	lines := []domain.LineItem{
		membershipLine("plan-monthly", 1, 5000),
	}

	got := Compute(lines, 0)

	if got.SubtotalCents != 5000 {
		t.Fatalf("subtotal = %d, want 5000", got.SubtotalCents)
	}
	if got.TaxCents != 0 {
		t.Fatalf("tax = %d, want 0 for membership-only sale", got.TaxCents)
	}
	if got.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", got.TotalCents)
	}
}

func TestComputeMixedSaleTaxesOnlyInventoryPortion(t *testing.T) {
	lines := []domain.LineItem{
		membershipLine("plan-monthly", 1, 5000),
		inventoryLine("item-water", 2, 250),
	}

	got := Compute(lines, 10)

	if got.SubtotalCents != 5500 {
		t.Fatalf("subtotal = %d, want 5500", got.SubtotalCents)
	}
	if got.DiscountCents != 550 {
		t.Fatalf("discount = %d, want 550", got.DiscountCents)
	}
	// Inventory subtotal 500, discounted by the same 10 percent.
	if got.TaxableBaseCents != 450 {
		t.Fatalf("taxable base = %d, want 450", got.TaxableBaseCents)
	}
	if got.TaxCents != 36 {
		t.Fatalf("tax = %d, want 36", got.TaxCents)
	}
	if got.TotalCents != 4986 {
		t.Fatalf("total = %d, want 4986", got.TotalCents)
	}
}

func TestComputeSkipsGiveawayLines(t *testing.T) {
	giveaway := inventoryLine("item-water", 1, 0)
	giveaway.IsGiveaway = true
	giveaway.UnitPriceOriginalCents = 250

	lines := []domain.LineItem{
		membershipLine("plan-monthly", 1, 5000),
		giveaway,
	}

	got := Compute(lines, 0)

	if got.SubtotalCents != 5000 {
		t.Fatalf("subtotal = %d, want 5000 with giveaway excluded", got.SubtotalCents)
	}
	if got.TaxableBaseCents != 0 {
		t.Fatalf("taxable base = %d, want 0", got.TaxableBaseCents)
	}
	if got.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", got.TotalCents)
	}
}

func TestDiscountRoundsHalfAwayFromZero(t *testing.T) {
	// 150 * 15% = 22.5, which rounds to 23.
	if got := DiscountAmount(150, 15); got != 23 {
		t.Fatalf("discount = %d, want 23", got)
	}
}

func TestDiscountPercentIsClamped(t *testing.T) {
	if got := DiscountAmount(1000, -5); got != 0 {
		t.Fatalf("discount for negative percent = %d, want 0", got)
	}
	if got := DiscountAmount(1000, 150); got != 1000 {
		t.Fatalf("discount above 100 percent = %d, want 1000", got)
	}
}

func TestComputeZeroLines(t *testing.T) {
	got := Compute(nil, 10)
	if got.TotalCents != 0 || got.SubtotalCents != 0 || got.TaxCents != 0 {
		t.Fatalf("empty cart breakdown should be all zero, got %+v", got)
	}
}
