package store

import (
	"context"
	"errors"

	"gympos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRecord     = errors.New("invalid record")
)

// MembershipExtension is one fulfillment-time membership effect: extend or
// activate the member's plan, once per unit purchased.
type MembershipExtension struct {
	MemberID     string
	PlanID       string
	DurationDays int
	Units        int
}

// StockAdjustment is a signed delta against one item's stock counter.
// Negative deltas are conditional: they fail with ErrInsufficientStock
// instead of driving stock below zero.
type StockAdjustment struct {
	ItemID string
	Delta  int
}

// Repository is the storage contract shared by the in-memory and postgres
// implementations. CreateSale and VoidTransaction are all-or-nothing:
// either every listed effect applies or none does.
type Repository interface {
	ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	CreatePlan(ctx context.Context, plan domain.Plan) (*domain.Plan, error)
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
	GetCatalogSnapshot(ctx context.Context, itemIDs []string, planIDs []string) (*domain.CatalogSnapshot, error)
	AdjustStock(ctx context.Context, adjustments []StockAdjustment) error

	ListMembers(ctx context.Context) ([]domain.Member, error)
	CreateMember(ctx context.Context, member domain.Member) (*domain.Member, error)
	GetMemberByID(ctx context.Context, id string) (*domain.Member, error)
	GetMemberByCode(ctx context.Context, code string) (*domain.Member, error)

	// CreateSale applies conditional stock decrements, membership
	// extensions, and the transaction record write as one atomic unit.
	CreateSale(ctx context.Context, tx domain.Transaction, stock []StockAdjustment, extensions []MembershipExtension) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindTransactionByIdempotency(ctx context.Context, key string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	// VoidTransaction restores stock for every listed adjustment and
	// deletes the record, or does nothing at all.
	VoidTransaction(ctx context.Context, id string, restock []StockAdjustment) (*domain.Transaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
