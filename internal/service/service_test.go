package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"gympos/backend/internal/cache"
	"gympos/backend/internal/domain"
	"gympos/backend/internal/store"
	"gympos/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopCatalogCache{}, 5*time.Second)
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "rani", Role: domain.RoleCashier})
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "dimas", Role: domain.RoleManager})
}

func goodsLine(qty int, paid int64, original int64) domain.LineItem {
	return domain.LineItem{
		SourceID:               "item-water-600",
		Kind:                   domain.LineKindInventory,
		Name:                   "Mineral Water 600ml",
		Quantity:               qty,
		UnitPricePaidCents:     paid,
		UnitPriceOriginalCents: original,
	}
}

func planLine(planID string, name string, price int64) domain.LineItem {
	return domain.LineItem{
		SourceID:               planID,
		Kind:                   domain.LineKindMembership,
		Name:                   name,
		Quantity:               1,
		UnitPricePaidCents:     price,
		UnitPriceOriginalCents: price,
	}
}

func stockOf(t *testing.T, svc *Service, itemID string) int {
	t.Helper()
	items, err := svc.ListInventoryItems(context.Background())
	if err != nil {
		t.Fatalf("ListInventoryItems: %v", err)
	}
	for _, it := range items {
		if it.ID == itemID {
			return it.Stock
		}
	}
	t.Fatalf("item %s not found", itemID)
	return 0
}

func TestCheckoutGoodsWithDiscountComputesTotals(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-goods-disc",
		Cart: domain.Cart{
			Lines:           []domain.LineItem{goodsLine(8, 250, 250)},
			PaymentMethod:   domain.PaymentMethodCash,
			DiscountPercent: 10,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.SubtotalCents != 2000 {
		t.Fatalf("subtotal = %d, want 2000", resp.SubtotalCents)
	}
	if resp.DiscountCents != 200 {
		t.Fatalf("discount = %d, want 200", resp.DiscountCents)
	}
	if resp.TaxCents != 144 {
		t.Fatalf("tax = %d, want 144", resp.TaxCents)
	}
	if resp.TotalCents != 1944 {
		t.Fatalf("total = %d, want 1944", resp.TotalCents)
	}
	if resp.Classification != domain.ClassificationGoodsSale {
		t.Fatalf("classification = %s, want goods_sale", resp.Classification)
	}
	if resp.Description != "Mineral Water 600ml × 8" {
		t.Fatalf("unexpected description %q", resp.Description)
	}
	if resp.Duplicate {
		t.Fatalf("fresh checkout flagged as duplicate")
	}
	if got := stockOf(t, svc, "item-water-600"); got != 112 {
		t.Fatalf("stock after sale = %d, want 112", got)
	}

	tx, err := svc.GetTransaction(context.Background(), resp.TransactionID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.MemberCode != domain.GuestMemberCode {
		t.Fatalf("member code = %s, want guest", tx.MemberCode)
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-empty",
		Cart:           domain.Cart{PaymentMethod: domain.PaymentMethodCash},
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutRejectsUnknownItem(t *testing.T) {
	svc := newTestService()

	line := goodsLine(1, 250, 250)
	line.SourceID = "item-does-not-exist"
	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-unknown-item",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{line},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}

	txs, err := svc.ListTransactions(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("rejected checkout left %d transaction(s) behind", len(txs))
	}
}

func TestCheckoutRejectsPriceMismatch(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-stale-price",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(1, 300, 300)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch, got %v", err)
	}
	if got := stockOf(t, svc, "item-water-600"); got != 120 {
		t.Fatalf("stock changed on rejected checkout: %d", got)
	}
}

func TestCheckoutRejectsOvercharge(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(managerCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-overcharge",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(1, 260, 250)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, ErrOverchargeAttempt) {
		t.Fatalf("expected ErrOverchargeAttempt, got %v", err)
	}
}

func TestCashierCannotUnderchargeButManagerCan(t *testing.T) {
	svc := newTestService()

	req := domain.CheckoutRequest{
		IdempotencyKey: "idem-undercharge",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(2, 200, 250)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	}

	_, err := svc.Checkout(cashierCtx(), req)
	if !errors.Is(err, ErrPriceOverrideForbidden) {
		t.Fatalf("expected ErrPriceOverrideForbidden for cashier, got %v", err)
	}

	resp, err := svc.Checkout(managerCtx(), req)
	if err != nil {
		t.Fatalf("manager override checkout failed: %v", err)
	}
	if resp.SubtotalCents != 400 {
		t.Fatalf("subtotal = %d, want 400", resp.SubtotalCents)
	}
}

func TestManagerOverrideToZeroMakesFreeSale(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(managerCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-free",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(1, 0, 250)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.TotalCents != 0 {
		t.Fatalf("total = %d, want 0", resp.TotalCents)
	}
	if got := stockOf(t, svc, "item-water-600"); got != 119 {
		t.Fatalf("stock = %d, want 119", got)
	}
}

func TestCheckoutRejectsInsufficientStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-too-many-gloves",
		Cart: domain.Cart{
			Lines: []domain.LineItem{{
				SourceID:               "item-gloves",
				Kind:                   domain.LineKindInventory,
				Name:                   "Training Gloves",
				Quantity:               26,
				UnitPricePaidCents:     2500,
				UnitPriceOriginalCents: 2500,
			}},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockOf(t, svc, "item-gloves"); got != 25 {
		t.Fatalf("stock changed on rejected checkout: %d", got)
	}
}

func TestCheckoutRejectsUnknownCustomer(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-ghost-member",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(1, 250, 250)},
			CustomerID:    "mem-9999",
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, ErrUnknownCustomer) {
		t.Fatalf("expected ErrUnknownCustomer, got %v", err)
	}
}

func TestMembershipSaleRequiresCustomer(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-anon-membership",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{planLine("plan-daypass", "Day Pass", 800)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, ErrUnknownCustomer) {
		t.Fatalf("expected ErrUnknownCustomer for anonymous membership sale, got %v", err)
	}
}

func TestMembershipSaleActivatesMemberAndSkipsTax(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-daypass",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{planLine("plan-daypass", "Day Pass", 800)},
			CustomerID:    "mem-1002",
			PaymentMethod: domain.PaymentMethodCard,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Classification != domain.ClassificationMembershipSale {
		t.Fatalf("classification = %s, want membership_sale", resp.Classification)
	}
	if resp.TaxCents != 0 {
		t.Fatalf("membership sale taxed: %d", resp.TaxCents)
	}
	if resp.TotalCents != 800 {
		t.Fatalf("total = %d, want 800", resp.TotalCents)
	}

	member, err := svc.GetMemberByCode(context.Background(), "GM-1002")
	if err != nil {
		t.Fatalf("GetMemberByCode: %v", err)
	}
	if member.Status != domain.MemberStatusActive {
		t.Fatalf("member status = %s, want active", member.Status)
	}
	if member.MembershipExpiresAt == nil {
		t.Fatalf("membership expiry not set")
	}
	if member.CurrentPlanID != "plan-daypass" {
		t.Fatalf("current plan = %s, want plan-daypass", member.CurrentPlanID)
	}
}

func TestMembershipWithGiveawayIsMixedSale(t *testing.T) {
	svc := newTestService()

	giveaway := goodsLine(1, 0, 250)
	giveaway.IsGiveaway = true
	resp, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-monthly-gw",
		Cart: domain.Cart{
			Lines: []domain.LineItem{
				planLine("plan-monthly", "Monthly Membership", 5000),
				giveaway,
			},
			CustomerID:    "mem-1002",
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Classification != domain.ClassificationMixedSale {
		t.Fatalf("classification = %s, want mixed_sale", resp.Classification)
	}
	if resp.SubtotalCents != 5000 {
		t.Fatalf("subtotal = %d, want 5000", resp.SubtotalCents)
	}
	if resp.TaxCents != 0 {
		t.Fatalf("tax = %d, want 0 for plan plus free giveaway", resp.TaxCents)
	}
	if resp.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", resp.TotalCents)
	}
	if got := stockOf(t, svc, "item-water-600"); got != 119 {
		t.Fatalf("giveaway stock not decremented: %d", got)
	}
}

func TestGiveawayLineWithoutMembershipIsRejected(t *testing.T) {
	svc := newTestService()

	orphan := goodsLine(1, 0, 250)
	orphan.IsGiveaway = true
	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-orphan-gw",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{orphan},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for orphan giveaway, got %v", err)
	}
}

func TestRegistrationSaleSkipsMembershipExtension(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey:   "idem-registration",
		RegistrationSale: true,
		Cart: domain.Cart{
			Lines:         []domain.LineItem{planLine("plan-daypass", "Day Pass", 800)},
			CustomerID:    "mem-1002",
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	member, err := svc.GetMemberByCode(context.Background(), "GM-1002")
	if err != nil {
		t.Fatalf("GetMemberByCode: %v", err)
	}
	if member.Status != domain.MemberStatusInactive {
		t.Fatalf("registration sale extended the membership: status = %s", member.Status)
	}
	if member.MembershipExpiresAt != nil {
		t.Fatalf("registration sale set an expiry: %v", member.MembershipExpiresAt)
	}
}

func TestCheckoutIdempotencyReplaysStoredResult(t *testing.T) {
	svc := newTestService()

	req := domain.CheckoutRequest{
		IdempotencyKey: "idem-replay",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(2, 250, 250)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	}

	first, err := svc.Checkout(cashierCtx(), req)
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := svc.Checkout(cashierCtx(), req)
	if err != nil {
		t.Fatalf("replay checkout failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("replay not flagged as duplicate")
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("replay returned a different transaction: %s vs %s", second.TransactionID, first.TransactionID)
	}
	if got := stockOf(t, svc, "item-water-600"); got != 118 {
		t.Fatalf("replay decremented stock again: %d", got)
	}

	lookup, err := svc.LookupCheckoutByIdempotency(context.Background(), "idem-replay")
	if err != nil {
		t.Fatalf("LookupCheckoutByIdempotency: %v", err)
	}
	if !lookup.Found || lookup.Checkout.TransactionID != first.TransactionID {
		t.Fatalf("lookup did not find the stored checkout")
	}
}

func TestVoidGoodsSaleRestocksAndDeletes(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-void-goods",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(3, 250, 250)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	result, err := svc.Void(cashierCtx(), resp.TransactionID)
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if result.RestockedUnits != 3 {
		t.Fatalf("restocked units = %d, want 3", result.RestockedUnits)
	}
	if result.RequiresManualMembershipReversal {
		t.Fatalf("goods sale flagged for manual membership reversal")
	}
	if got := stockOf(t, svc, "item-water-600"); got != 120 {
		t.Fatalf("stock after void = %d, want 120", got)
	}

	if _, err := svc.GetTransaction(context.Background(), resp.TransactionID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("voided transaction still readable: %v", err)
	}
	if _, err := svc.Void(cashierCtx(), resp.TransactionID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second void should report not found, got %v", err)
	}
}

func TestVoidMixedSaleFlagsManualReversal(t *testing.T) {
	svc := newTestService()

	giveaway := goodsLine(1, 0, 250)
	giveaway.IsGiveaway = true
	resp, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-void-mixed",
		Cart: domain.Cart{
			Lines: []domain.LineItem{
				planLine("plan-monthly", "Monthly Membership", 5000),
				giveaway,
			},
			CustomerID:    "mem-1002",
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	result, err := svc.Void(cashierCtx(), resp.TransactionID)
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if !result.RequiresManualMembershipReversal {
		t.Fatalf("mixed sale not flagged for manual membership reversal")
	}
	if result.RestockedUnits != 1 {
		t.Fatalf("restocked units = %d, want 1 for the giveaway", result.RestockedUnits)
	}
	if got := stockOf(t, svc, "item-water-600"); got != 120 {
		t.Fatalf("giveaway stock not restored: %d", got)
	}
}

func TestVoidRequiresAuthenticatedStaff(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(cashierCtx(), domain.CheckoutRequest{
		IdempotencyKey: "idem-void-noauth",
		Cart: domain.Cart{
			Lines:         []domain.LineItem{goodsLine(1, 250, 250)},
			PaymentMethod: domain.PaymentMethodCash,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := svc.Void(context.Background(), resp.TransactionID); err == nil {
		t.Fatalf("void without an actor should fail")
	}
	if _, err := svc.GetTransaction(context.Background(), resp.TransactionID); err != nil {
		t.Fatalf("rejected void removed the transaction: %v", err)
	}
}

func TestCartSessionCheckoutFlow(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	preview, err := svc.OpenCartSession(ctx)
	if err != nil {
		t.Fatalf("OpenCartSession: %v", err)
	}
	sessionID := preview.SessionID
	if sessionID == "" {
		t.Fatalf("session has no id")
	}

	if _, err := svc.AddItemToCart(ctx, sessionID, domain.CartAddItemRequest{ItemID: "item-water-600", Quantity: 2}); err != nil {
		t.Fatalf("AddItemToCart: %v", err)
	}
	if _, err := svc.SetCartDiscount(ctx, sessionID, domain.CartDiscountRequest{DiscountPercent: 10}); err != nil {
		t.Fatalf("SetCartDiscount: %v", err)
	}
	preview, err = svc.SetCartPayment(ctx, sessionID, domain.CartPaymentRequest{PaymentMethod: domain.PaymentMethodCard})
	if err != nil {
		t.Fatalf("SetCartPayment: %v", err)
	}
	if preview.SubtotalCents != 500 || preview.DiscountCents != 50 || preview.TaxCents != 36 || preview.TotalCents != 486 {
		t.Fatalf("preview totals = %d/%d/%d/%d, want 500/50/36/486",
			preview.SubtotalCents, preview.DiscountCents, preview.TaxCents, preview.TotalCents)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-session-flow",
		SessionID:      sessionID,
	})
	if err != nil {
		t.Fatalf("session checkout failed: %v", err)
	}
	if resp.TotalCents != 486 {
		t.Fatalf("total = %d, want 486", resp.TotalCents)
	}
	if resp.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("payment = %s, want card", resp.PaymentMethod)
	}

	if _, err := svc.GetCartSession(ctx, sessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session survived checkout: %v", err)
	}
}

func TestCartSessionMembershipCheckout(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	preview, err := svc.OpenCartSession(ctx)
	if err != nil {
		t.Fatalf("OpenCartSession: %v", err)
	}
	sessionID := preview.SessionID

	if _, err := svc.SetCartCustomer(ctx, sessionID, domain.CartCustomerRequest{MemberCode: "GM-1002"}); err != nil {
		t.Fatalf("SetCartCustomer: %v", err)
	}
	preview, err = svc.AddPlanToCart(ctx, sessionID, domain.CartAddPlanRequest{PlanID: "plan-monthly"})
	if err != nil {
		t.Fatalf("AddPlanToCart: %v", err)
	}
	if len(preview.Lines) != 2 {
		t.Fatalf("expected plan plus giveaway, got %d line(s)", len(preview.Lines))
	}
	var sawGiveaway bool
	for _, line := range preview.Lines {
		if line.IsGiveaway {
			sawGiveaway = true
			if line.UnitPricePaidCents != 0 {
				t.Fatalf("giveaway priced at %d", line.UnitPricePaidCents)
			}
		}
	}
	if !sawGiveaway {
		t.Fatalf("giveaway line missing from preview")
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-session-plan",
		SessionID:      sessionID,
	})
	if err != nil {
		t.Fatalf("session checkout failed: %v", err)
	}
	if resp.Classification != domain.ClassificationMixedSale {
		t.Fatalf("classification = %s, want mixed_sale", resp.Classification)
	}
	if resp.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", resp.TotalCents)
	}
}

func TestSetCartCustomerRejectsUnknownCode(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	preview, err := svc.OpenCartSession(ctx)
	if err != nil {
		t.Fatalf("OpenCartSession: %v", err)
	}
	if _, err := svc.SetCartCustomer(ctx, preview.SessionID, domain.CartCustomerRequest{MemberCode: "GM-0000"}); !errors.Is(err, ErrUnknownCustomer) {
		t.Fatalf("expected ErrUnknownCustomer, got %v", err)
	}
}

func TestOverrideCartPriceRequiresCapableRole(t *testing.T) {
	svc := newTestService()

	preview, err := svc.OpenCartSession(cashierCtx())
	if err != nil {
		t.Fatalf("OpenCartSession: %v", err)
	}
	sessionID := preview.SessionID
	if _, err := svc.AddItemToCart(cashierCtx(), sessionID, domain.CartAddItemRequest{ItemID: "item-water-600", Quantity: 1}); err != nil {
		t.Fatalf("AddItemToCart: %v", err)
	}

	req := domain.CartOverridePriceRequest{SourceID: "item-water-600", Kind: domain.LineKindInventory, NewUnitPriceCents: 100}
	if _, err := svc.OverrideCartPrice(cashierCtx(), sessionID, req); !errors.Is(err, ErrPriceOverrideForbidden) {
		t.Fatalf("expected ErrPriceOverrideForbidden for cashier, got %v", err)
	}

	preview, err = svc.OverrideCartPrice(managerCtx(), sessionID, req)
	if err != nil {
		t.Fatalf("manager override failed: %v", err)
	}
	if preview.Lines[0].UnitPricePaidCents != 100 {
		t.Fatalf("paid price = %d, want 100", preview.Lines[0].UnitPricePaidCents)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	const attempts = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	rejected := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Checkout(ctx, domain.CheckoutRequest{
				IdempotencyKey: "idem-race-" + strconv.Itoa(n),
				Cart: domain.Cart{
					Lines: []domain.LineItem{{
						SourceID:               "item-gloves",
						Kind:                   domain.LineKindInventory,
						Name:                   "Training Gloves",
						Quantity:               1,
						UnitPricePaidCents:     2500,
						UnitPriceOriginalCents: 2500,
					}},
					PaymentMethod: domain.PaymentMethodCash,
				},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				sold++
			} else if errors.Is(err, store.ErrInsufficientStock) {
				rejected++
			} else {
				t.Errorf("unexpected checkout error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if sold != 25 {
		t.Fatalf("sold %d units from a stock of 25", sold)
	}
	if rejected != attempts-25 {
		t.Fatalf("rejected = %d, want %d", rejected, attempts-25)
	}
	if got := stockOf(t, svc, "item-gloves"); got != 0 {
		t.Fatalf("final stock = %d, want 0", got)
	}
}
