package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gympos/backend/internal/domain"
	"gympos/backend/internal/store"
	"gympos/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, stock, active
		FROM inventory_items
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.PriceCents, &it.Stock, &it.Active); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.PriceCents < 0 || item.Stock < 0 {
		return nil, store.ErrInvalidRecord
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	item.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, price_cents, stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, item.ID, item.Name, item.PriceCents, item.Stock, item.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, stock, active
		FROM inventory_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.PriceCents, &item.Stock, &item.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, duration_days, COALESCE(giveaway_item_id,''), active
		FROM plans
		WHERE active = true
		ORDER BY duration_days, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]domain.Plan, 0, 16)
	for rows.Next() {
		var p domain.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.DurationDays, &p.GiveawayItemID, &p.Active); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Store) CreatePlan(ctx context.Context, plan domain.Plan) (*domain.Plan, error) {
	if plan.Name == "" || plan.PriceCents < 0 || plan.DurationDays < 1 {
		return nil, store.ErrInvalidRecord
	}
	if plan.ID == "" {
		plan.ID = xid.New("plan")
	}
	plan.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, price_cents, duration_days, giveaway_item_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, plan.ID, plan.Name, plan.PriceCents, plan.DurationDays, nullIfEmpty(plan.GiveawayItemID), plan.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	created := plan
	return &created, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	var plan domain.Plan
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, duration_days, COALESCE(giveaway_item_id,''), active
		FROM plans
		WHERE id = $1
	`, id).Scan(&plan.ID, &plan.Name, &plan.PriceCents, &plan.DurationDays, &plan.GiveawayItemID, &plan.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (s *Store) GetCatalogSnapshot(ctx context.Context, itemIDs []string, planIDs []string) (*domain.CatalogSnapshot, error) {
	snapshot := &domain.CatalogSnapshot{
		Items: make(map[string]domain.ItemSnapshot, len(itemIDs)),
		Plans: make(map[string]domain.PlanSnapshot, len(planIDs)),
	}

	if len(itemIDs) > 0 {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, price_cents, stock
			FROM inventory_items
			WHERE active = true AND id = ANY($1)
		`, itemIDs)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			var snap domain.ItemSnapshot
			if err := rows.Scan(&id, &snap.PriceCents, &snap.Stock); err != nil {
				_ = rows.Close()
				return nil, err
			}
			snapshot.Items[id] = snap
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	if len(planIDs) > 0 {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, price_cents, duration_days, COALESCE(giveaway_item_id,'')
			FROM plans
			WHERE active = true AND id = ANY($1)
		`, planIDs)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			var snap domain.PlanSnapshot
			if err := rows.Scan(&id, &snap.PriceCents, &snap.DurationDays, &snap.GiveawayItemID); err != nil {
				_ = rows.Close()
				return nil, err
			}
			snapshot.Plans[id] = snap
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	return snapshot, nil
}

// AdjustStock applies every adjustment in one transaction. Decrements are
// conditional on the live counter, so concurrent sales serialize at the
// row level instead of losing updates.
func (s *Store) AdjustStock(ctx context.Context, adjustments []store.StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyStockTx(ctx, tx, adjustments); err != nil {
		return err
	}
	return tx.Commit()
}

func applyStockTx(ctx context.Context, tx *sql.Tx, adjustments []store.StockAdjustment) error {
	for _, adj := range adjustments {
		if adj.Delta == 0 {
			continue
		}
		query := `
			UPDATE inventory_items
			SET stock = stock + $1, updated_at = now()
			WHERE id = $2
		`
		if adj.Delta < 0 {
			query += ` AND stock + $1 >= 0`
		}
		res, err := tx.ExecContext(ctx, query, adj.Delta, adj.ItemID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if adj.Delta < 0 {
				exists, err := itemExistsTx(ctx, tx, adj.ItemID)
				if err != nil {
					return err
				}
				if exists {
					return store.ErrInsufficientStock
				}
			}
			return fmt.Errorf("item %s unavailable: %w", adj.ItemID, store.ErrNotFound)
		}
	}
	return nil
}

func itemExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM inventory_items WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, status, COALESCE(current_plan_id,''), membership_expires_at, created_at
		FROM members
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Member, 0, 64)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*domain.Member, error) {
	var member domain.Member
	var expiresAt sql.NullTime
	if err := row.Scan(&member.ID, &member.Code, &member.Name, &member.Status, &member.CurrentPlanID, &expiresAt, &member.CreatedAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		at := expiresAt.Time.UTC()
		member.MembershipExpiresAt = &at
	}
	member.CreatedAt = member.CreatedAt.UTC()
	return &member, nil
}

func (s *Store) CreateMember(ctx context.Context, member domain.Member) (*domain.Member, error) {
	member.Code = strings.ToUpper(strings.TrimSpace(member.Code))
	if member.Code == "" || strings.TrimSpace(member.Name) == "" {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, code, name, status, current_plan_id, membership_expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, member.ID, member.Code, member.Name, member.Status, nullIfEmpty(member.CurrentPlanID), nullTime(member.MembershipExpiresAt), member.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	created := member
	return &created, nil
}

func (s *Store) GetMemberByID(ctx context.Context, id string) (*domain.Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, status, COALESCE(current_plan_id,''), membership_expires_at, created_at
		FROM members
		WHERE id = $1
	`, id)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return member, nil
}

func (s *Store) GetMemberByCode(ctx context.Context, code string) (*domain.Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, status, COALESCE(current_plan_id,''), membership_expires_at, created_at
		FROM members
		WHERE code = $1
	`, strings.ToUpper(strings.TrimSpace(code)))
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return member, nil
}

// CreateSale runs the fulfillment effect set in one serializable
// transaction: conditional stock decrements, membership extensions under
// row locks, then the record insert. Commit makes all of it visible at
// once; any failure rolls all of it back.
func (s *Store) CreateSale(ctx context.Context, tx domain.Transaction, stock []store.StockAdjustment, extensions []store.MembershipExtension) (*domain.Transaction, error) {
	if tx.IdempotencyKey == "" {
		return nil, store.ErrInvalidRecord
	}
	if len(tx.Lines) == 0 {
		return nil, store.ErrInvalidRecord
	}

	if existing, err := s.FindTransactionByIdempotency(ctx, tx.IdempotencyKey); err == nil {
		return existing, nil
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := applyStockTx(ctx, pgTx, stock); err != nil {
		return nil, err
	}

	for _, ext := range extensions {
		if ext.DurationDays < 1 || ext.Units < 1 {
			return nil, store.ErrInvalidRecord
		}
		var expiresAt sql.NullTime
		err := pgTx.QueryRowContext(ctx, `
			SELECT membership_expires_at
			FROM members
			WHERE id = $1
			FOR UPDATE
		`, ext.MemberID).Scan(&expiresAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("member %s unavailable: %w", ext.MemberID, store.ErrNotFound)
			}
			return nil, err
		}
		var current *time.Time
		if expiresAt.Valid {
			at := expiresAt.Time.UTC()
			current = &at
		}
		next := nextExpiry(current, ext.DurationDays, ext.Units, time.Now().UTC())
		_, err = pgTx.ExecContext(ctx, `
			UPDATE members
			SET status = $2, current_plan_id = $3, membership_expires_at = $4
			WHERE id = $1
		`, ext.MemberID, domain.MemberStatusActive, ext.PlanID, next)
		if err != nil {
			return nil, err
		}
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, member_id, member_code, member_name, classification, description,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_method, idempotency_key, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, tx.ID, nullIfEmpty(tx.MemberID), tx.MemberCode, tx.MemberName, tx.Classification, tx.Description,
		tx.SubtotalCents, tx.DiscountCents, tx.TaxCents, tx.TotalCents,
		tx.PaymentMethod, tx.IdempotencyKey, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.FindTransactionByIdempotency(ctx, tx.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	for _, line := range tx.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_lines (
				transaction_id, source_id, kind, name, quantity,
				unit_price_paid_cents, unit_price_original_cents, is_giveaway
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, tx.ID, line.SourceID, line.Kind, line.Name, line.Quantity,
			line.UnitPricePaidCents, line.UnitPriceOriginalCents, line.IsGiveaway)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// nextExpiry applies the extension rule per unit purchased: each period
// starts the day after the running expiry, or today, whichever is later.
func nextExpiry(current *time.Time, durationDays int, units int, now time.Time) time.Time {
	today := dateUTC(now)
	expiry := current
	for i := 0; i < units; i++ {
		start := today
		if expiry != nil {
			dayAfter := dateUTC(*expiry).AddDate(0, 0, 1)
			if dayAfter.After(start) {
				start = dayAfter
			}
		}
		next := start.AddDate(0, 0, durationDays)
		expiry = &next
	}
	return *expiry
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "id", id)
}

func (s *Store) FindTransactionByIdempotency(ctx context.Context, key string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "idempotency_key", key)
}

func (s *Store) findTransaction(ctx context.Context, column string, value string) (*domain.Transaction, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	query := fmt.Sprintf(`
		SELECT id, member_id, member_code, member_name, classification, description,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_method, idempotency_key, created_at
		FROM transactions
		WHERE %s = $1
	`, column)
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	lines, err := s.loadLines(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Lines = lines
	return tx, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var memberID sql.NullString
	if err := row.Scan(
		&tx.ID,
		&memberID,
		&tx.MemberCode,
		&tx.MemberName,
		&tx.Classification,
		&tx.Description,
		&tx.SubtotalCents,
		&tx.DiscountCents,
		&tx.TaxCents,
		&tx.TotalCents,
		&tx.PaymentMethod,
		&tx.IdempotencyKey,
		&tx.CreatedAt,
	); err != nil {
		return nil, err
	}
	if memberID.Valid {
		tx.MemberID = memberID.String
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func (s *Store) loadLines(ctx context.Context, transactionID string) ([]domain.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, kind, name, quantity, unit_price_paid_cents, unit_price_original_cents, is_giveaway
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var line domain.LineItem
		if err := rows.Scan(&line.SourceID, &line.Kind, &line.Name, &line.Quantity, &line.UnitPricePaidCents, &line.UnitPriceOriginalCents, &line.IsGiveaway); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, member_code, member_name, classification, description,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_method, idempotency_key, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		lines, err := s.loadLines(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Lines = lines
	}
	return result, nil
}

// VoidTransaction restores stock and deletes the record in one
// serializable transaction. A failing restock rolls everything back and
// leaves the original record authoritative.
func (s *Store) VoidTransaction(ctx context.Context, id string, restock []store.StockAdjustment) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	tx, err := scanTransaction(pgTx.QueryRowContext(ctx, `
		SELECT id, member_id, member_code, member_name, classification, description,
			subtotal_cents, discount_cents, tax_cents, total_cents,
			payment_method, idempotency_key, created_at
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	lineRows, err := pgTx.QueryContext(ctx, `
		SELECT source_id, kind, name, quantity, unit_price_paid_cents, unit_price_original_cents, is_giveaway
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.LineItem, 0, 8)
	for lineRows.Next() {
		var line domain.LineItem
		if err := lineRows.Scan(&line.SourceID, &line.Kind, &line.Name, &line.Quantity, &line.UnitPricePaidCents, &line.UnitPriceOriginalCents, &line.IsGiveaway); err != nil {
			_ = lineRows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := lineRows.Err(); err != nil {
		_ = lineRows.Close()
		return nil, err
	}
	_ = lineRows.Close()
	tx.Lines = lines

	if err := applyStockTx(ctx, pgTx, restock); err != nil {
		return nil, err
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRecord
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
