package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gympos/backend/internal/domain"
	"gympos/backend/internal/store"
	"gympos/backend/internal/xid"
)

type Store struct {
	mu                 sync.RWMutex
	items              map[string]domain.InventoryItem
	plans              map[string]domain.Plan
	membersByID        map[string]domain.Member
	memberIDByCode     map[string]string
	transactionsByID   map[string]*domain.Transaction
	transactionsByIdem map[string]*domain.Transaction
	auditLogs          []domain.AuditLog
	usersByUsername    map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and
// SEED_CASHIER_PASSWORD environment variables. If unset, hardcoded dev
// defaults are used with a warning printed to stdout. These credentials are
// never used in production (the backend uses PostgreSQL when DATABASE_URL
// is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"manager", managerPwd, domain.RoleManager},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	items := []domain.InventoryItem{
		{ID: "item-water-600", Name: "Mineral Water 600ml", PriceCents: 250, Stock: 120, Active: true},
		{ID: "item-protein-bar", Name: "Protein Bar", PriceCents: 450, Stock: 80, Active: true},
		{ID: "item-shaker", Name: "Shaker Bottle", PriceCents: 1200, Stock: 40, Active: true},
		{ID: "item-towel", Name: "Gym Towel", PriceCents: 900, Stock: 60, Active: true},
		{ID: "item-gloves", Name: "Training Gloves", PriceCents: 2500, Stock: 25, Active: true},
		{ID: "item-locker-padlock", Name: "Locker Padlock", PriceCents: 1500, Stock: 30, Active: true},
	}
	plans := []domain.Plan{
		{ID: "plan-monthly", Name: "Monthly Membership", PriceCents: 5000, DurationDays: 30, GiveawayItemID: "item-water-600", Active: true},
		{ID: "plan-quarterly", Name: "Quarterly Membership", PriceCents: 13500, DurationDays: 90, GiveawayItemID: "item-shaker", Active: true},
		{ID: "plan-annual", Name: "Annual Membership", PriceCents: 48000, DurationDays: 365, GiveawayItemID: "item-towel", Active: true},
		{ID: "plan-daypass", Name: "Day Pass", PriceCents: 800, DurationDays: 1, Active: true},
	}
	members := []domain.Member{
		{ID: "mem-1001", Code: "GM-1001", Name: "Arif Rahman", Status: domain.MemberStatusActive, CurrentPlanID: "plan-monthly"},
		{ID: "mem-1002", Code: "GM-1002", Name: "Sinta Dewi", Status: domain.MemberStatusInactive},
		{ID: "mem-1003", Code: "GM-1003", Name: "Budi Santoso", Status: domain.MemberStatusActive, CurrentPlanID: "plan-annual"},
	}

	now := time.Now().UTC()
	itemMap := make(map[string]domain.InventoryItem, len(items))
	for _, it := range items {
		itemMap[it.ID] = it
	}
	planMap := make(map[string]domain.Plan, len(plans))
	for _, p := range plans {
		planMap[p.ID] = p
	}
	memberMap := make(map[string]domain.Member, len(members))
	codeIndex := make(map[string]string, len(members))
	for i, m := range members {
		m.CreatedAt = now
		if m.Status == domain.MemberStatusActive {
			expiry := now.AddDate(0, 0, 20+i*30)
			m.MembershipExpiresAt = &expiry
		}
		memberMap[m.ID] = m
		codeIndex[m.Code] = m.ID
	}

	return &Store{
		items:              itemMap,
		plans:              planMap,
		membersByID:        memberMap,
		memberIDByCode:     codeIndex,
		transactionsByID:   make(map[string]*domain.Transaction),
		transactionsByIdem: make(map[string]*domain.Transaction),
		auditLogs:          make([]domain.AuditLog, 0, 128),
		usersByUsername:    seedUsers(),
	}
}

func (s *Store) ListInventoryItems(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.items))
	for _, it := range s.items {
		if !it.Active {
			continue
		}
		items = append(items, it)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		return cmpString(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.PriceCents < 0 || item.Stock < 0 {
		return nil, store.ErrInvalidRecord
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if _, exists := s.items[item.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	item.Active = true
	s.items[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) ListPlans(_ context.Context) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]domain.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if !p.Active {
			continue
		}
		plans = append(plans, p)
	}
	slices.SortFunc(plans, func(a, b domain.Plan) int {
		if a.DurationDays == b.DurationDays {
			return cmpString(a.Name, b.Name)
		}
		return a.DurationDays - b.DurationDays
	})
	return plans, nil
}

func (s *Store) CreatePlan(_ context.Context, plan domain.Plan) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.Name == "" || plan.PriceCents < 0 || plan.DurationDays < 1 {
		return nil, store.ErrInvalidRecord
	}
	if plan.GiveawayItemID != "" {
		if _, exists := s.items[plan.GiveawayItemID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	if plan.ID == "" {
		plan.ID = xid.New("plan")
	}
	if _, exists := s.plans[plan.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	plan.Active = true
	s.plans[plan.ID] = plan
	created := plan
	return &created, nil
}

func (s *Store) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.plans[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPlan := plan
	return &copyPlan, nil
}

func (s *Store) GetCatalogSnapshot(_ context.Context, itemIDs []string, planIDs []string) (*domain.CatalogSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &domain.CatalogSnapshot{
		Items: make(map[string]domain.ItemSnapshot, len(itemIDs)),
		Plans: make(map[string]domain.PlanSnapshot, len(planIDs)),
	}
	for _, id := range itemIDs {
		if it, ok := s.items[id]; ok && it.Active {
			snapshot.Items[id] = domain.ItemSnapshot{PriceCents: it.PriceCents, Stock: it.Stock}
		}
	}
	for _, id := range planIDs {
		if p, ok := s.plans[id]; ok && p.Active {
			snapshot.Plans[id] = domain.PlanSnapshot{
				PriceCents:     p.PriceCents,
				DurationDays:   p.DurationDays,
				GiveawayItemID: p.GiveawayItemID,
			}
		}
	}
	return snapshot, nil
}

// AdjustStock applies every adjustment or none. Decrements never drive a
// counter below zero.
func (s *Store) AdjustStock(_ context.Context, adjustments []store.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyStockLocked(adjustments)
}

func (s *Store) applyStockLocked(adjustments []store.StockAdjustment) error {
	for _, adj := range adjustments {
		item, exists := s.items[adj.ItemID]
		if !exists {
			return fmt.Errorf("item %s unavailable: %w", adj.ItemID, store.ErrNotFound)
		}
		if item.Stock+adj.Delta < 0 {
			return store.ErrInsufficientStock
		}
	}
	for _, adj := range adjustments {
		item := s.items[adj.ItemID]
		item.Stock += adj.Delta
		s.items[adj.ItemID] = item
	}
	return nil
}

func (s *Store) ListMembers(_ context.Context) ([]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]domain.Member, 0, len(s.membersByID))
	for _, m := range s.membersByID {
		members = append(members, cloneMember(m))
	}
	slices.SortFunc(members, func(a, b domain.Member) int {
		return cmpString(a.Code, b.Code)
	})
	return members, nil
}

func (s *Store) CreateMember(_ context.Context, member domain.Member) (*domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member.Code = strings.ToUpper(strings.TrimSpace(member.Code))
	if member.Code == "" || strings.TrimSpace(member.Name) == "" {
		return nil, store.ErrInvalidRecord
	}
	if _, exists := s.memberIDByCode[member.Code]; exists {
		return nil, store.ErrInvalidRecord
	}
	if member.ID == "" {
		member.ID = xid.New("mem")
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	if member.Status == "" {
		member.Status = domain.MemberStatusInactive
	}
	s.membersByID[member.ID] = cloneMember(member)
	s.memberIDByCode[member.Code] = member.ID
	created := cloneMember(member)
	return &created, nil
}

func (s *Store) GetMemberByID(_ context.Context, id string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, exists := s.membersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMember := cloneMember(member)
	return &copyMember, nil
}

func (s *Store) GetMemberByCode(_ context.Context, code string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.memberIDByCode[strings.ToUpper(strings.TrimSpace(code))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMember := cloneMember(s.membersByID[id])
	return &copyMember, nil
}

// CreateSale runs the whole fulfillment effect set under one lock section:
// conditional stock decrements, membership extensions, then the record
// write. A failing step leaves the store untouched.
func (s *Store) CreateSale(_ context.Context, tx domain.Transaction, stock []store.StockAdjustment, extensions []store.MembershipExtension) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.IdempotencyKey == "" {
		return nil, store.ErrInvalidRecord
	}
	if existing, ok := s.transactionsByIdem[tx.IdempotencyKey]; ok {
		return cloneTransaction(existing), nil
	}
	if len(tx.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	for _, ext := range extensions {
		if _, exists := s.membersByID[ext.MemberID]; !exists {
			return nil, fmt.Errorf("member %s unavailable: %w", ext.MemberID, store.ErrNotFound)
		}
		if ext.DurationDays < 1 || ext.Units < 1 {
			return nil, store.ErrInvalidRecord
		}
	}

	if err := s.applyStockLocked(stock); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		member := s.membersByID[ext.MemberID]
		extendMembership(&member, ext)
		s.membersByID[ext.MemberID] = member
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	txCopy := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = txCopy
	s.transactionsByIdem[tx.IdempotencyKey] = txCopy
	return cloneTransaction(txCopy), nil
}

// extendMembership applies one extension: per unit, the new period starts
// at today or the day after the current expiry, whichever is later, and
// runs for the plan duration.
func extendMembership(member *domain.Member, ext store.MembershipExtension) {
	today := dateUTC(time.Now().UTC())
	expiry := member.MembershipExpiresAt
	for i := 0; i < ext.Units; i++ {
		start := today
		if expiry != nil {
			dayAfter := dateUTC(*expiry).AddDate(0, 0, 1)
			if dayAfter.After(start) {
				start = dayAfter
			}
		}
		next := start.AddDate(0, 0, ext.DurationDays)
		expiry = &next
	}
	member.MembershipExpiresAt = expiry
	member.Status = domain.MemberStatusActive
	member.CurrentPlanID = ext.PlanID
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) FindTransactionByIdempotency(_ context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactionsByID))
	for _, tx := range s.transactionsByID {
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// VoidTransaction restores stock for every listed adjustment and removes
// the record, all under one lock section. Any rejected increment leaves
// the transaction in place.
func (s *Store) VoidTransaction(_ context.Context, id string, restock []store.StockAdjustment) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := s.applyStockLocked(restock); err != nil {
		return nil, err
	}
	delete(s.transactionsByID, id)
	if tx.IdempotencyKey != "" {
		delete(s.transactionsByIdem, tx.IdempotencyKey)
	}
	return cloneTransaction(tx), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, len(s.auditLogs))
	copy(result, s.auditLogs)
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidRecord
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupLines := make([]domain.LineItem, len(src.Lines))
	copy(dupLines, src.Lines)
	dup.Lines = dupLines
	return &dup
}

func cloneMember(src domain.Member) domain.Member {
	dup := src
	if src.MembershipExpiresAt != nil {
		expiry := src.MembershipExpiresAt.UTC()
		dup.MembershipExpiresAt = &expiry
	}
	return dup
}
