package domain

import "time"

type InventoryItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	Active     bool   `json:"active"`
}

type InventoryItemCreateRequest struct {
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	InitialStock int    `json:"initial_stock"`
}

type Plan struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	DurationDays   int    `json:"duration_days"`
	GiveawayItemID string `json:"giveaway_item_id,omitempty"`
	Active         bool   `json:"active"`
}

type PlanCreateRequest struct {
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	DurationDays   int    `json:"duration_days"`
	GiveawayItemID string `json:"giveaway_item_id,omitempty"`
}

type Member struct {
	ID                  string     `json:"id"`
	Code                string     `json:"code"`
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	CurrentPlanID       string     `json:"current_plan_id,omitempty"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type MemberCreateRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// LineKind distinguishes physical goods from membership plans on a cart line.
const (
	LineKindInventory  = "inventory"
	LineKindMembership = "membership"
)

type LineItem struct {
	SourceID               string `json:"source_id"`
	Kind                   string `json:"kind"`
	Name                   string `json:"name"`
	Quantity               int    `json:"quantity"`
	UnitPricePaidCents     int64  `json:"unit_price_paid_cents"`
	UnitPriceOriginalCents int64  `json:"unit_price_original_cents"`
	IsGiveaway             bool   `json:"is_giveaway"`
}

// Cart is client-shaped and untrusted. Every figure in it is advisory
// until the checkout authority re-derives it from the catalog.
type Cart struct {
	Lines           []LineItem `json:"lines"`
	CustomerID      string     `json:"customer_id,omitempty"`
	PaymentMethod   string     `json:"payment_method"`
	DiscountPercent int        `json:"discount_percent"`
}

type ItemSnapshot struct {
	PriceCents int64
	Stock      int
}

type PlanSnapshot struct {
	PriceCents     int64
	DurationDays   int
	GiveawayItemID string
}

// CatalogSnapshot is a point-in-time read of catalog state, taken by the
// checkout authority immediately before validation.
type CatalogSnapshot struct {
	Items map[string]ItemSnapshot
	Plans map[string]PlanSnapshot
}

const (
	ClassificationGoodsSale      = "goods_sale"
	ClassificationMembershipSale = "membership_sale"
	ClassificationMixedSale      = "mixed_sale"
)

const (
	PaymentMethodCard     = "card"
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
)

const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// GuestMemberCode marks transactions with no registered customer attached.
const GuestMemberCode = "guest"

type Transaction struct {
	ID             string     `json:"id"`
	MemberID       string     `json:"member_id,omitempty"`
	MemberCode     string     `json:"member_code"`
	MemberName     string     `json:"member_name"`
	Classification string     `json:"classification"`
	Description    string     `json:"description"`
	Lines          []LineItem `json:"lines"`
	SubtotalCents  int64      `json:"subtotal_cents"`
	DiscountCents  int64      `json:"discount_cents"`
	TaxCents       int64      `json:"tax_cents"`
	TotalCents     int64      `json:"total_cents"`
	PaymentMethod  string     `json:"payment_method"`
	IdempotencyKey string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

type CartPreview struct {
	SessionID       string     `json:"session_id"`
	Lines           []LineItem `json:"lines"`
	CustomerID      string     `json:"customer_id,omitempty"`
	PaymentMethod   string     `json:"payment_method"`
	DiscountPercent int        `json:"discount_percent"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	DiscountCents   int64      `json:"discount_cents"`
	TaxCents        int64      `json:"tax_cents"`
	TotalCents      int64      `json:"total_cents"`
	Warning         string     `json:"warning,omitempty"`
}

type CartAddItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type CartAddPlanRequest struct {
	PlanID string `json:"plan_id"`
}

type CartAdjustRequest struct {
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
	Delta    int    `json:"delta"`
}

type CartRemoveRequest struct {
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
}

type CartOverridePriceRequest struct {
	SourceID          string `json:"source_id"`
	Kind              string `json:"kind"`
	NewUnitPriceCents int64  `json:"new_unit_price_cents"`
}

type CartCustomerRequest struct {
	MemberCode string `json:"member_code"`
}

type CartDiscountRequest struct {
	DiscountPercent int `json:"discount_percent"`
}

type CartPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type CheckoutRequest struct {
	IdempotencyKey   string `json:"idempotency_key"`
	SessionID        string `json:"session_id,omitempty"`
	Cart             Cart   `json:"cart"`
	RegistrationSale bool   `json:"registration_sale"`
}

type CheckoutResponse struct {
	TransactionID  string     `json:"transaction_id"`
	Classification string     `json:"classification"`
	Description    string     `json:"description"`
	Lines          []LineItem `json:"lines"`
	SubtotalCents  int64      `json:"subtotal_cents"`
	DiscountCents  int64      `json:"discount_cents"`
	TaxCents       int64      `json:"tax_cents"`
	TotalCents     int64      `json:"total_cents"`
	PaymentMethod  string     `json:"payment_method"`
	Duplicate      bool       `json:"duplicate"`
	CreatedAt      string     `json:"created_at"`
}

type CheckoutLookupResponse struct {
	Found    bool              `json:"found"`
	Checkout *CheckoutResponse `json:"checkout,omitempty"`
}

type VoidResult struct {
	TransactionID                    string `json:"transaction_id"`
	Classification                   string `json:"classification"`
	RestockedUnits                   int    `json:"restocked_units"`
	RequiresManualMembershipReversal bool   `json:"requires_manual_membership_reversal"`
	VoidedAt                         string `json:"voided_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleCashier = "cashier"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)
