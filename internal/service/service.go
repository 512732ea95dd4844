package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gympos/backend/internal/cache"
	"gympos/backend/internal/cart"
	"gympos/backend/internal/domain"
	"gympos/backend/internal/pricing"
	"gympos/backend/internal/store"
	"gympos/backend/internal/xid"
)

// Authority rejections. Each one means checkout stopped before any side
// effect; stock, memberships, and the transaction log are untouched.
var (
	ErrEmptyCart              = errors.New("cart has no lines")
	ErrUnknownItem            = errors.New("cart references an unknown catalog entry")
	ErrPriceMismatch          = errors.New("cart price disagrees with the catalog")
	ErrOverchargeAttempt      = errors.New("paid price exceeds the catalog price")
	ErrPriceOverrideForbidden = errors.New("acting role may not override prices")
	ErrUnknownCustomer        = errors.New("customer not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrSessionNotFound        = errors.New("cart session not found")
)

// priceToleranceCents absorbs rounding drift between a client's arithmetic
// and the server's. Anything past one cent is a real disagreement.
const priceToleranceCents = 1

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// RolePolicy captures what an authenticated role may do at checkout.
type RolePolicy struct {
	CanOverridePrice bool
	CanVoid          bool
}

func PolicyFor(role string) RolePolicy {
	switch role {
	case domain.RoleManager, domain.RoleAdmin:
		return RolePolicy{CanOverridePrice: true, CanVoid: true}
	case domain.RoleCashier:
		return RolePolicy{CanOverridePrice: false, CanVoid: true}
	default:
		return RolePolicy{}
	}
}

type cartSession struct {
	composer *cart.Composer
	warning  string
}

type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	catalogTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*cartSession
}

func New(repo store.Repository, catalog cache.CatalogCache, catalogTTL time.Duration) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if catalogTTL < time.Second {
		catalogTTL = 20 * time.Second
	}

	return &Service{
		repo:       repo,
		catalog:    catalog,
		catalogTTL: catalogTTL,
		sessions:   make(map[string]*cartSession),
	}
}

const catalogCacheKey = "catalog:v1"

// Catalog serves the browse payload, cached briefly. Checkout never reads
// this; the authority always snapshots the store of record directly.
func (s *Service) Catalog(ctx context.Context) (cache.Catalog, error) {
	if cached, ok, err := s.catalog.Get(ctx, catalogCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}

	items, err := s.repo.ListInventoryItems(ctx)
	if err != nil {
		return cache.Catalog{}, err
	}
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return cache.Catalog{}, err
	}

	catalog := cache.Catalog{Items: items, Plans: plans}
	if err := s.catalog.Set(ctx, catalogCacheKey, &catalog, s.catalogTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return catalog, nil
}

func (s *Service) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListInventoryItems(ctx)
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (domain.InventoryItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.InventoryItem{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PriceCents < 0 || req.InitialStock < 0 {
		return domain.InventoryItem{}, store.ErrInvalidRecord
	}

	created, err := s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.InitialStock,
		Active:     true,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "item_create", "inventory_item", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx)
}

func (s *Service) CreatePlan(ctx context.Context, req domain.PlanCreateRequest) (domain.Plan, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Plan{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.GiveawayItemID = strings.TrimSpace(req.GiveawayItemID)
	if req.Name == "" || req.PriceCents < 0 || req.DurationDays < 1 {
		return domain.Plan{}, store.ErrInvalidRecord
	}
	if req.GiveawayItemID != "" {
		if _, err := s.repo.GetInventoryItem(ctx, req.GiveawayItemID); err != nil {
			return domain.Plan{}, err
		}
	}

	created, err := s.repo.CreatePlan(ctx, domain.Plan{
		Name:           req.Name,
		PriceCents:     req.PriceCents,
		DurationDays:   req.DurationDays,
		GiveawayItemID: req.GiveawayItemID,
		Active:         true,
	})
	if err != nil {
		return domain.Plan{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "plan_create", "plan", created.ID, fmt.Sprintf("name=%s,price=%d,duration_days=%d", created.Name, created.PriceCents, created.DurationDays))
	return *created, nil
}

func (s *Service) ListMembers(ctx context.Context) ([]domain.Member, error) {
	return s.repo.ListMembers(ctx)
}

func (s *Service) CreateMember(ctx context.Context, req domain.MemberCreateRequest) (domain.Member, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return domain.Member{}, store.ErrInvalidRecord
	}
	if strings.EqualFold(req.Code, domain.GuestMemberCode) {
		return domain.Member{}, store.ErrInvalidRecord
	}

	created, err := s.repo.CreateMember(ctx, domain.Member{
		Code:   req.Code,
		Name:   req.Name,
		Status: domain.MemberStatusInactive,
	})
	if err != nil {
		return domain.Member{}, err
	}

	s.logAudit(ctx, "member_create", "member", created.ID, fmt.Sprintf("code=%s", created.Code))
	return *created, nil
}

func (s *Service) GetMemberByCode(ctx context.Context, code string) (domain.Member, error) {
	member, err := s.repo.GetMemberByCode(ctx, code)
	if err != nil {
		return domain.Member{}, err
	}
	return *member, nil
}

// OpenCartSession starts a server-held cart for one terminal interaction.
func (s *Service) OpenCartSession(ctx context.Context) (domain.CartPreview, error) {
	sessionID := xid.New("cart")

	s.mu.Lock()
	s.sessions[sessionID] = &cartSession{composer: cart.NewComposer()}
	s.mu.Unlock()

	return s.previewSession(sessionID)
}

func (s *Service) GetCartSession(_ context.Context, sessionID string) (domain.CartPreview, error) {
	return s.previewSession(sessionID)
}

func (s *Service) DiscardCartSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Service) AddItemToCart(ctx context.Context, sessionID string, req domain.CartAddItemRequest) (domain.CartPreview, error) {
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	item, err := s.repo.GetInventoryItem(ctx, strings.TrimSpace(req.ItemID))
	if err != nil {
		return domain.CartPreview{}, err
	}
	if !item.Active {
		return domain.CartPreview{}, store.ErrNotFound
	}

	err = s.withSession(sessionID, func(session *cartSession) error {
		for i := 0; i < req.Quantity; i++ {
			if err := session.composer.AddInventoryLine(item.ID, item.Name, item.PriceCents, item.Stock); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

func (s *Service) AddPlanToCart(ctx context.Context, sessionID string, req domain.CartAddPlanRequest) (domain.CartPreview, error) {
	plan, err := s.repo.GetPlan(ctx, strings.TrimSpace(req.PlanID))
	if err != nil {
		return domain.CartPreview{}, err
	}
	if !plan.Active {
		return domain.CartPreview{}, store.ErrNotFound
	}

	var giveaway *domain.InventoryItem
	if plan.GiveawayItemID != "" {
		item, err := s.repo.GetInventoryItem(ctx, plan.GiveawayItemID)
		if err == nil && item.Active && item.Stock > 0 {
			giveaway = item
		}
	}

	err = s.withSession(sessionID, func(session *cartSession) error {
		session.warning = ""
		if err := session.composer.AddMembershipLine(*plan, giveaway); err != nil {
			if errors.Is(err, cart.ErrGiveawayUnavailable) {
				session.warning = fmt.Sprintf("giveaway for %s is unavailable and was not added", plan.Name)
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

func (s *Service) AdjustCartLine(_ context.Context, sessionID string, req domain.CartAdjustRequest) (domain.CartPreview, error) {
	err := s.withSession(sessionID, func(session *cartSession) error {
		return session.composer.AdjustQuantity(req.SourceID, req.Kind, req.Delta)
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

func (s *Service) RemoveCartLine(_ context.Context, sessionID string, req domain.CartRemoveRequest) (domain.CartPreview, error) {
	err := s.withSession(sessionID, func(session *cartSession) error {
		return session.composer.RemoveLine(req.SourceID, req.Kind)
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

// OverrideCartPrice requires an override-capable role up front so the
// terminal gets an early rejection. The authority re-checks the same
// permission at checkout regardless.
func (s *Service) OverrideCartPrice(ctx context.Context, sessionID string, req domain.CartOverridePriceRequest) (domain.CartPreview, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !PolicyFor(actor.Role).CanOverridePrice {
		return domain.CartPreview{}, ErrPriceOverrideForbidden
	}

	err := s.withSession(sessionID, func(session *cartSession) error {
		return session.composer.OverridePrice(req.SourceID, req.Kind, req.NewUnitPriceCents)
	})
	if err != nil {
		return domain.CartPreview{}, err
	}

	s.logAudit(ctx, "price_override", "cart_session", sessionID, fmt.Sprintf("source=%s,kind=%s,new_price=%d", req.SourceID, req.Kind, req.NewUnitPriceCents))
	return s.previewSession(sessionID)
}

func (s *Service) SetCartCustomer(ctx context.Context, sessionID string, req domain.CartCustomerRequest) (domain.CartPreview, error) {
	code := strings.TrimSpace(req.MemberCode)
	memberID := ""
	if code != "" && !strings.EqualFold(code, domain.GuestMemberCode) {
		member, err := s.repo.GetMemberByCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.CartPreview{}, ErrUnknownCustomer
			}
			return domain.CartPreview{}, err
		}
		memberID = member.ID
	}

	err := s.withSession(sessionID, func(session *cartSession) error {
		session.composer.SetCustomer(memberID)
		return nil
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

func (s *Service) SetCartDiscount(_ context.Context, sessionID string, req domain.CartDiscountRequest) (domain.CartPreview, error) {
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return domain.CartPreview{}, ErrInvalidRequest
	}
	err := s.withSession(sessionID, func(session *cartSession) error {
		session.composer.SetDiscountPercent(req.DiscountPercent)
		return nil
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

func (s *Service) SetCartPayment(_ context.Context, sessionID string, req domain.CartPaymentRequest) (domain.CartPreview, error) {
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CartPreview{}, ErrInvalidRequest
	}
	err := s.withSession(sessionID, func(session *cartSession) error {
		session.composer.SetPaymentMethod(req.PaymentMethod)
		return nil
	})
	if err != nil {
		return domain.CartPreview{}, err
	}
	return s.previewSession(sessionID)
}

func (s *Service) withSession(sessionID string, fn func(*cartSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(session)
}

func (s *Service) previewSession(sessionID string) (domain.CartPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.CartPreview{}, ErrSessionNotFound
	}

	current := session.composer.Cart()
	breakdown := pricing.Compute(current.Lines, current.DiscountPercent)
	return domain.CartPreview{
		SessionID:       sessionID,
		Lines:           current.Lines,
		CustomerID:      current.CustomerID,
		PaymentMethod:   current.PaymentMethod,
		DiscountPercent: current.DiscountPercent,
		SubtotalCents:   breakdown.SubtotalCents,
		DiscountCents:   breakdown.DiscountCents,
		TaxCents:        breakdown.TaxCents,
		TotalCents:      breakdown.TotalCents,
		Warning:         session.warning,
	}, nil
}

// checkoutDecision is the authority's approved view of one checkout: the
// validated lines, the server-derived totals, and the resolved customer.
type checkoutDecision struct {
	lines     []domain.LineItem
	breakdown pricing.Breakdown
	member    *domain.Member
	cart      domain.Cart
}

// Checkout runs the full pipeline: authorize against a fresh catalog
// snapshot, then fulfill. A rejection at any validation step leaves no
// trace; only an approved decision reaches the store.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.SessionID != "" {
		preview, err := s.previewSession(req.SessionID)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		req.Cart = domain.Cart{
			Lines:           preview.Lines,
			CustomerID:      preview.CustomerID,
			PaymentMethod:   preview.PaymentMethod,
			DiscountPercent: preview.DiscountPercent,
		}
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}

	if existing, err := s.repo.FindTransactionByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return toCheckoutResponse(existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	decision, err := s.authorize(ctx, req.Cart)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	created, err := s.fulfill(ctx, req, decision)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	if req.SessionID != "" {
		_ = s.DiscardCartSession(ctx, req.SessionID)
	}

	s.logAudit(ctx, "checkout", "transaction", created.ID, fmt.Sprintf("total=%d,classification=%s,payment=%s", created.TotalCents, created.Classification, created.PaymentMethod))
	return toCheckoutResponse(created, false), nil
}

// authorize validates the submitted cart against a catalog snapshot taken
// now, not against whatever the terminal saw earlier. Every rejection maps
// to one sentinel and happens before any effect.
func (s *Service) authorize(ctx context.Context, submitted domain.Cart) (*checkoutDecision, error) {
	if len(submitted.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if submitted.DiscountPercent < 0 || submitted.DiscountPercent > 100 {
		return nil, ErrInvalidRequest
	}
	if submitted.PaymentMethod == "" {
		submitted.PaymentMethod = domain.PaymentMethodCash
	}
	if !isSupportedPaymentMethod(submitted.PaymentMethod) {
		return nil, ErrInvalidRequest
	}

	actor, _ := ActorFromContext(ctx)
	policy := PolicyFor(actor.Role)

	itemIDs := make([]string, 0, len(submitted.Lines))
	planIDs := make([]string, 0, 2)
	for _, line := range submitted.Lines {
		if line.Quantity < 1 {
			return nil, ErrInvalidRequest
		}
		switch line.Kind {
		case domain.LineKindInventory:
			itemIDs = append(itemIDs, line.SourceID)
		case domain.LineKindMembership:
			planIDs = append(planIDs, line.SourceID)
		default:
			return nil, ErrInvalidRequest
		}
	}

	snapshot, err := s.repo.GetCatalogSnapshot(ctx, itemIDs, planIDs)
	if err != nil {
		return nil, err
	}

	// Giveaway lines are only legitimate as shadows of a membership line
	// whose plan grants that exact item at the same quantity.
	for _, line := range submitted.Lines {
		if !line.IsGiveaway {
			continue
		}
		if line.Kind != domain.LineKindInventory || line.UnitPricePaidCents != 0 {
			return nil, ErrPriceMismatch
		}
		matched := false
		for _, parent := range submitted.Lines {
			if parent.Kind != domain.LineKindMembership {
				continue
			}
			plan, ok := snapshot.Plans[parent.SourceID]
			if ok && plan.GiveawayItemID == line.SourceID && parent.Quantity == line.Quantity {
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: giveaway line without a matching membership line", ErrInvalidRequest)
		}
	}

	neededStock := make(map[string]int, len(itemIDs))
	for _, line := range submitted.Lines {
		var catalogPrice int64
		switch line.Kind {
		case domain.LineKindInventory:
			snap, ok := snapshot.Items[line.SourceID]
			if !ok {
				return nil, fmt.Errorf("%w: item %s", ErrUnknownItem, line.SourceID)
			}
			catalogPrice = snap.PriceCents
			neededStock[line.SourceID] += line.Quantity
		case domain.LineKindMembership:
			snap, ok := snapshot.Plans[line.SourceID]
			if !ok {
				return nil, fmt.Errorf("%w: plan %s", ErrUnknownItem, line.SourceID)
			}
			catalogPrice = snap.PriceCents
		}

		if line.IsGiveaway {
			continue
		}
		if absInt64(line.UnitPriceOriginalCents-catalogPrice) > priceToleranceCents {
			return nil, fmt.Errorf("%w: %s claims %d, catalog says %d", ErrPriceMismatch, line.SourceID, line.UnitPriceOriginalCents, catalogPrice)
		}
		if line.UnitPricePaidCents > catalogPrice+priceToleranceCents {
			return nil, fmt.Errorf("%w: %s paid %d over catalog %d", ErrOverchargeAttempt, line.SourceID, line.UnitPricePaidCents, catalogPrice)
		}
		if line.UnitPricePaidCents < catalogPrice-priceToleranceCents && !policy.CanOverridePrice {
			return nil, ErrPriceOverrideForbidden
		}
	}

	for itemID, needed := range neededStock {
		if snapshot.Items[itemID].Stock < needed {
			return nil, fmt.Errorf("item %s: %w", itemID, store.ErrInsufficientStock)
		}
	}

	var member *domain.Member
	if submitted.CustomerID != "" {
		found, err := s.repo.GetMemberByID(ctx, submitted.CustomerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUnknownCustomer
			}
			return nil, err
		}
		member = found
	}
	if member == nil && len(planIDs) > 0 {
		return nil, fmt.Errorf("%w: membership sale requires a registered customer", ErrUnknownCustomer)
	}

	lines := make([]domain.LineItem, len(submitted.Lines))
	copy(lines, submitted.Lines)

	return &checkoutDecision{
		lines:     lines,
		breakdown: pricing.Compute(lines, submitted.DiscountPercent),
		member:    member,
		cart:      submitted,
	}, nil
}

// fulfill turns an approved decision into effects. The store applies stock
// decrements, membership extensions, and the record insert as one unit.
func (s *Service) fulfill(ctx context.Context, req domain.CheckoutRequest, decision *checkoutDecision) (*domain.Transaction, error) {
	stock := make([]store.StockAdjustment, 0, len(decision.lines))
	needed := make(map[string]int, len(decision.lines))
	order := make([]string, 0, len(decision.lines))
	for _, line := range decision.lines {
		if line.Kind != domain.LineKindInventory {
			continue
		}
		if _, seen := needed[line.SourceID]; !seen {
			order = append(order, line.SourceID)
		}
		needed[line.SourceID] += line.Quantity
	}
	for _, itemID := range order {
		stock = append(stock, store.StockAdjustment{ItemID: itemID, Delta: -needed[itemID]})
	}

	var extensions []store.MembershipExtension
	if decision.member != nil && !req.RegistrationSale {
		for _, line := range decision.lines {
			if line.Kind != domain.LineKindMembership {
				continue
			}
			plan, err := s.repo.GetPlan(ctx, line.SourceID)
			if err != nil {
				return nil, err
			}
			extensions = append(extensions, store.MembershipExtension{
				MemberID:     decision.member.ID,
				PlanID:       plan.ID,
				DurationDays: plan.DurationDays,
				Units:        line.Quantity,
			})
		}
	}

	memberID := ""
	memberCode := domain.GuestMemberCode
	memberName := ""
	if decision.member != nil {
		memberID = decision.member.ID
		memberCode = decision.member.Code
		memberName = decision.member.Name
	}

	tx := domain.Transaction{
		ID:             xid.New("tx"),
		MemberID:       memberID,
		MemberCode:     memberCode,
		MemberName:     memberName,
		Classification: classify(decision.lines),
		Description:    describe(decision.lines),
		Lines:          decision.lines,
		SubtotalCents:  decision.breakdown.SubtotalCents,
		DiscountCents:  decision.breakdown.DiscountCents,
		TaxCents:       decision.breakdown.TaxCents,
		TotalCents:     decision.breakdown.TotalCents,
		PaymentMethod:  decision.cart.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	return s.repo.CreateSale(ctx, tx, stock, extensions)
}

func (s *Service) LookupCheckoutByIdempotency(ctx context.Context, idempotencyKey string) (domain.CheckoutLookupResponse, error) {
	if idempotencyKey == "" {
		return domain.CheckoutLookupResponse{}, ErrInvalidRequest
	}

	tx, err := s.repo.FindTransactionByIdempotency(ctx, idempotencyKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CheckoutLookupResponse{Found: false}, nil
		}
		return domain.CheckoutLookupResponse{}, err
	}
	checkout := toCheckoutResponse(tx, false)
	return domain.CheckoutLookupResponse{Found: true, Checkout: &checkout}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, limit)
}

// Void reverses a sale: every inventory unit on the record goes back to
// stock, giveaways included, and the record is removed. Memberships are
// never auto-reversed; the result flags when a manual correction is due.
func (s *Service) Void(ctx context.Context, transactionID string) (domain.VoidResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.VoidResult{}, ErrInvalidRequest
	}

	actor, ok := ActorFromContext(ctx)
	if !ok || !PolicyFor(actor.Role).CanVoid {
		return domain.VoidResult{}, fmt.Errorf("staff role required")
	}

	existing, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.VoidResult{}, err
	}

	restock := make([]store.StockAdjustment, 0, len(existing.Lines))
	restored := make(map[string]int, len(existing.Lines))
	order := make([]string, 0, len(existing.Lines))
	restockedUnits := 0
	for _, line := range existing.Lines {
		if line.Kind != domain.LineKindInventory {
			continue
		}
		if _, seen := restored[line.SourceID]; !seen {
			order = append(order, line.SourceID)
		}
		restored[line.SourceID] += line.Quantity
		restockedUnits += line.Quantity
	}
	for _, itemID := range order {
		restock = append(restock, store.StockAdjustment{ItemID: itemID, Delta: restored[itemID]})
	}

	voided, err := s.repo.VoidTransaction(ctx, transactionID, restock)
	if err != nil {
		return domain.VoidResult{}, err
	}

	voidedAt := time.Now().UTC()
	s.logAudit(ctx, "void_transaction", "transaction", voided.ID, fmt.Sprintf("classification=%s,restocked=%d", voided.Classification, restockedUnits))

	return domain.VoidResult{
		TransactionID:                    voided.ID,
		Classification:                   voided.Classification,
		RestockedUnits:                   restockedUnits,
		RequiresManualMembershipReversal: voided.Classification != domain.ClassificationGoodsSale,
		VoidedAt:                         voidedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func classify(lines []domain.LineItem) string {
	hasInventory := false
	hasMembership := false
	for _, line := range lines {
		switch line.Kind {
		case domain.LineKindInventory:
			hasInventory = true
		case domain.LineKindMembership:
			hasMembership = true
		}
	}
	switch {
	case hasInventory && hasMembership:
		return domain.ClassificationMixedSale
	case hasMembership:
		return domain.ClassificationMembershipSale
	default:
		return domain.ClassificationGoodsSale
	}
}

func describe(lines []domain.LineItem) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%s × %d", line.Name, line.Quantity))
	}
	return strings.Join(parts, ", ")
}

func toCheckoutResponse(tx *domain.Transaction, duplicate bool) domain.CheckoutResponse {
	return domain.CheckoutResponse{
		TransactionID:  tx.ID,
		Classification: tx.Classification,
		Description:    tx.Description,
		Lines:          tx.Lines,
		SubtotalCents:  tx.SubtotalCents,
		DiscountCents:  tx.DiscountCents,
		TaxCents:       tx.TaxCents,
		TotalCents:     tx.TotalCents,
		PaymentMethod:  tx.PaymentMethod,
		Duplicate:      duplicate,
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx, catalogCacheKey); err != nil {
		log.Printf("[service] WARN: catalog cache invalidate failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodTransfer:
		return true
	default:
		return false
	}
}
