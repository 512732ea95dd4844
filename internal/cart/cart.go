// Package cart implements the cart composer: ordered line items, the
// membership-to-giveaway quantity sync, and advisory stock ceilings.
// Nothing here is a trust boundary. Stock checks only prevent obviously
// bad carts; the checkout authority re-validates everything against a
// fresh catalog snapshot before any side effect.
package cart

import (
	"errors"

	"gympos/backend/internal/domain"
)

var (
	ErrOutOfStock           = errors.New("item out of stock")
	ErrStockLimitReached    = errors.New("quantity exceeds known stock")
	ErrGiveawayUnavailable  = errors.New("plan giveaway item unavailable")
	ErrCannotRemoveGiveaway = errors.New("giveaway line follows its membership line")
	ErrLineNotFound         = errors.New("cart line not found")
	ErrNegativePrice        = errors.New("price must not be negative")
)

// Composer owns one cart and keeps its invariants through every mutation:
// each membership line with a linked giveaway has exactly one giveaway
// inventory line whose quantity always equals the membership line's.
type Composer struct {
	cart domain.Cart

	// advisory stock ceilings per inventory item, captured at add time
	knownStock map[string]int
	// membership sourceID -> giveaway inventory item ID
	giveawayOf map[string]string
}

func NewComposer() *Composer {
	return &Composer{
		cart:       domain.Cart{PaymentMethod: domain.PaymentMethodCash},
		knownStock: make(map[string]int),
		giveawayOf: make(map[string]string),
	}
}

// Cart returns a copy of the current cart state.
func (c *Composer) Cart() domain.Cart {
	out := c.cart
	out.Lines = make([]domain.LineItem, len(c.cart.Lines))
	copy(out.Lines, c.cart.Lines)
	return out
}

func (c *Composer) SetCustomer(customerID string) { c.cart.CustomerID = customerID }

func (c *Composer) SetPaymentMethod(method string) { c.cart.PaymentMethod = method }

func (c *Composer) SetDiscountPercent(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	c.cart.DiscountPercent = percent
}

// AddInventoryLine increments an existing paid line for the item or
// appends a new one at quantity 1. The stock figure is advisory and
// remembered for later quantity adjustments.
func (c *Composer) AddInventoryLine(itemID, name string, catalogPriceCents int64, availableStock int) error {
	c.knownStock[itemID] = availableStock
	if availableStock <= 0 {
		return ErrOutOfStock
	}
	if line := c.findLine(itemID, domain.LineKindInventory, false); line != nil {
		if line.Quantity+1 > availableStock {
			return ErrStockLimitReached
		}
		line.Quantity++
		return nil
	}
	c.cart.Lines = append(c.cart.Lines, domain.LineItem{
		SourceID:               itemID,
		Kind:                   domain.LineKindInventory,
		Name:                   name,
		Quantity:               1,
		UnitPricePaidCents:     catalogPriceCents,
		UnitPriceOriginalCents: catalogPriceCents,
	})
	return nil
}

// AddMembershipLine increments or inserts the plan's line. When the plan
// grants a giveaway item, the matching zero-price inventory line is kept
// quantity-synced in the same call. A missing giveaway item still adds the
// membership line; the returned ErrGiveawayUnavailable is a warning, not a
// failure.
func (c *Composer) AddMembershipLine(plan domain.Plan, giveaway *domain.InventoryItem) error {
	line := c.findLine(plan.ID, domain.LineKindMembership, false)
	if line != nil {
		line.Quantity++
	} else {
		c.cart.Lines = append(c.cart.Lines, domain.LineItem{
			SourceID:               plan.ID,
			Kind:                   domain.LineKindMembership,
			Name:                   plan.Name,
			Quantity:               1,
			UnitPricePaidCents:     plan.PriceCents,
			UnitPriceOriginalCents: plan.PriceCents,
		})
		line = &c.cart.Lines[len(c.cart.Lines)-1]
	}
	if plan.GiveawayItemID == "" {
		return nil
	}
	if giveaway == nil {
		if giveawayID, ok := c.giveawayOf[plan.ID]; ok {
			if g := c.findGiveawayLine(giveawayID); g != nil {
				g.Quantity = line.Quantity
				return nil
			}
		}
		return ErrGiveawayUnavailable
	}
	c.giveawayOf[plan.ID] = giveaway.ID
	if g := c.findGiveawayLine(giveaway.ID); g != nil {
		g.Quantity = line.Quantity
		return nil
	}
	c.cart.Lines = append(c.cart.Lines, domain.LineItem{
		SourceID:               giveaway.ID,
		Kind:                   domain.LineKindInventory,
		Name:                   giveaway.Name,
		Quantity:               line.Quantity,
		UnitPricePaidCents:     0,
		UnitPriceOriginalCents: giveaway.PriceCents,
		IsGiveaway:             true,
	})
	return nil
}

// AdjustQuantity changes a non-giveaway line's quantity by delta. A result
// of zero or less removes the line (and its giveaway line, for membership
// lines). Inventory increases re-check the last known stock and leave the
// cart untouched on rejection. Membership adjustments move the giveaway
// line's quantity identically in the same operation.
func (c *Composer) AdjustQuantity(sourceID, kind string, delta int) error {
	line := c.findLine(sourceID, kind, false)
	if line == nil {
		return ErrLineNotFound
	}
	next := line.Quantity + delta
	if next <= 0 {
		return c.removeAt(sourceID, kind)
	}
	if kind == domain.LineKindInventory && delta > 0 {
		if known, ok := c.knownStock[sourceID]; ok && next > known {
			return ErrStockLimitReached
		}
	}
	line.Quantity = next
	if kind == domain.LineKindMembership {
		if giveawayID, ok := c.giveawayOf[sourceID]; ok {
			if g := c.findGiveawayLine(giveawayID); g != nil {
				g.Quantity = next
			}
		}
	}
	return nil
}

// RemoveLine removes a non-giveaway line. Giveaway lines cannot be removed
// directly; removing the parent membership line removes them as part of
// the same call.
func (c *Composer) RemoveLine(sourceID, kind string) error {
	if c.findLine(sourceID, kind, false) == nil {
		if kind == domain.LineKindInventory && c.findGiveawayLine(sourceID) != nil {
			return ErrCannotRemoveGiveaway
		}
		return ErrLineNotFound
	}
	return c.removeAt(sourceID, kind)
}

// OverridePrice sets the paid unit price on a non-giveaway line. It does
// not check permissions; whether the acting role may override is enforced
// by the checkout authority.
func (c *Composer) OverridePrice(sourceID, kind string, newPriceCents int64) error {
	if newPriceCents < 0 {
		return ErrNegativePrice
	}
	line := c.findLine(sourceID, kind, false)
	if line == nil {
		return ErrLineNotFound
	}
	line.UnitPricePaidCents = newPriceCents
	return nil
}

// Clear empties the cart and resets discount, customer, and payment
// method to defaults.
func (c *Composer) Clear() {
	c.cart = domain.Cart{PaymentMethod: domain.PaymentMethodCash}
	c.knownStock = make(map[string]int)
	c.giveawayOf = make(map[string]string)
}

func (c *Composer) findLine(sourceID, kind string, giveaway bool) *domain.LineItem {
	for i := range c.cart.Lines {
		l := &c.cart.Lines[i]
		if l.SourceID == sourceID && l.Kind == kind && l.IsGiveaway == giveaway {
			return l
		}
	}
	return nil
}

func (c *Composer) findGiveawayLine(itemID string) *domain.LineItem {
	return c.findLine(itemID, domain.LineKindInventory, true)
}

func (c *Composer) removeAt(sourceID, kind string) error {
	var giveawayID string
	if kind == domain.LineKindMembership {
		giveawayID = c.giveawayOf[sourceID]
		delete(c.giveawayOf, sourceID)
	}
	kept := c.cart.Lines[:0]
	for _, l := range c.cart.Lines {
		if l.SourceID == sourceID && l.Kind == kind && !l.IsGiveaway {
			continue
		}
		if giveawayID != "" && l.IsGiveaway && l.SourceID == giveawayID {
			continue
		}
		kept = append(kept, l)
	}
	c.cart.Lines = kept
	return nil
}
