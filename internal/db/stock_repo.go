package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fulfillment-engine/internal/core"
)

const selectStockLevel = `
	SELECT sl.id, sl.company_id, sl.item_uuid, sl.warehouse_id, sl.location_id, l.code,
	       sl.quantity_on_hand, sl.quantity_soft_reserved, sl.quantity_hard_reserved,
	       sl.version, sl.updated_at
	FROM stock_levels sl
	JOIN locations l ON l.id = sl.location_id
`

type stockRepo struct {
	tx pgx.Tx
}

func scanStockLevel(row pgx.Row) (*core.StockLevel, error) {
	var lvl core.StockLevel
	err := row.Scan(
		&lvl.ID, &lvl.CompanyID, &lvl.ItemID, &lvl.WarehouseID, &lvl.LocationID, &lvl.LocationCode,
		&lvl.OnHand, &lvl.SoftReserved, &lvl.HardReserved,
		&lvl.Version, &lvl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lvl, nil
}

func (r *stockRepo) queryLevels(ctx context.Context, where string, args ...any) ([]*core.StockLevel, error) {
	query := selectStockLevel + where + `
	ORDER BY l.code, sl.location_id
	FOR UPDATE OF sl`
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []*core.StockLevel
	for rows.Next() {
		lvl, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

const byItemWarehouse = `WHERE sl.company_id = $1 AND sl.item_uuid = $2 AND sl.warehouse_id = $3`

func (r *stockRepo) FindWithSoftReserve(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.queryLevels(ctx, byItemWarehouse+` AND sl.quantity_soft_reserved > 0`, companyID, itemID, warehouseID)
}

func (r *stockRepo) FindWithHardReserve(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.queryLevels(ctx, byItemWarehouse+` AND sl.quantity_hard_reserved > 0`, companyID, itemID, warehouseID)
}

func (r *stockRepo) FindAvailable(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.queryLevels(ctx, byItemWarehouse+`
	AND sl.quantity_on_hand - sl.quantity_soft_reserved - sl.quantity_hard_reserved > 0`,
		companyID, itemID, warehouseID)
}

func (r *stockRepo) FindByItemWarehouse(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.queryLevels(ctx, byItemWarehouse, companyID, itemID, warehouseID)
}

func (r *stockRepo) FindByLocation(ctx context.Context, itemID uuid.UUID, locationID, companyID int) (*core.StockLevel, error) {
	levels, err := r.queryLevels(ctx, `WHERE sl.company_id = $1 AND sl.item_uuid = $2 AND sl.location_id = $3`,
		companyID, itemID, locationID)
	if err != nil || len(levels) == 0 {
		return nil, err
	}
	return levels[0], nil
}

func (r *stockRepo) FindByLocationCode(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int, code string) (*core.StockLevel, error) {
	levels, err := r.queryLevels(ctx, byItemWarehouse+` AND l.code = $4`, companyID, itemID, warehouseID, code)
	if err != nil || len(levels) == 0 {
		return nil, err
	}
	return levels[0], nil
}

func (r *stockRepo) GetOrCreate(ctx context.Context, key core.StockKey) (*core.StockLevel, error) {
	var locWarehouse int
	err := r.tx.QueryRow(ctx, `SELECT warehouse_id FROM locations WHERE id = $1`, key.LocationID).Scan(&locWarehouse)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("location %d: %w", key.LocationID, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve location: %w", err)
	}
	if locWarehouse != key.WarehouseID {
		return nil, fmt.Errorf("location %d belongs to warehouse %d, not %d: %w",
			key.LocationID, locWarehouse, key.WarehouseID, core.ErrInvalidInput)
	}

	_, err = r.tx.Exec(ctx, `
		INSERT INTO stock_levels (company_id, item_uuid, warehouse_id, location_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, item_uuid, warehouse_id, location_id) DO NOTHING
	`, key.CompanyID, key.ItemID, key.WarehouseID, key.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to create stock level: %w", err)
	}

	lvl, err := r.FindByLocation(ctx, key.ItemID, key.LocationID, key.CompanyID)
	if err != nil {
		return nil, err
	}
	if lvl == nil {
		return nil, fmt.Errorf("stock level for item %s at location %d vanished after insert", key.ItemID, key.LocationID)
	}
	return lvl, nil
}

func (r *stockRepo) Save(ctx context.Context, level *core.StockLevel) error {
	if err := level.CheckInvariants(); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `
		UPDATE stock_levels
		SET quantity_on_hand = $1, quantity_soft_reserved = $2, quantity_hard_reserved = $3,
		    version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`, level.OnHand, level.SoftReserved, level.HardReserved, level.ID, level.Version)
	if err != nil {
		return fmt.Errorf("failed to update stock level %d: %w", level.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock level %d at version %d: %w", level.ID, level.Version, core.ErrConcurrentUpdate)
	}

	for _, m := range level.PendingMovements() {
		_, err := r.tx.Exec(ctx, `
			INSERT INTO stock_movements (
				stock_level_id, company_id, kind, quantity,
				on_hand_delta, soft_delta, hard_delta,
				on_hand_after, soft_after, hard_after,
				actor_id, memo, reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, level.ID, level.CompanyID, string(m.Kind), m.Quantity,
			m.OnHandDelta, m.SoftDelta, m.HardDelta,
			m.OnHandAfter, m.SoftAfter, m.HardAfter,
			m.ActorID, m.Memo, m.Reference, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record %s movement: %w", m.Kind, err)
		}
	}
	level.ClearPending()
	level.Version++
	return nil
}

func (r *stockRepo) Movements(ctx context.Context, stockLevelID int) ([]core.StockMovement, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, stock_level_id, company_id, kind, quantity,
		       on_hand_delta, soft_delta, hard_delta,
		       on_hand_after, soft_after, hard_after,
		       actor_id, memo, reference, created_at
		FROM stock_movements
		WHERE stock_level_id = $1
		ORDER BY id
	`, stockLevelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		var m core.StockMovement
		var kind string
		if err := rows.Scan(&m.ID, &m.StockLevelID, &m.CompanyID, &kind, &m.Quantity,
			&m.OnHandDelta, &m.SoftDelta, &m.HardDelta,
			&m.OnHandAfter, &m.SoftAfter, &m.HardAfter,
			&m.ActorID, &m.Memo, &m.Reference, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Kind = core.MovementKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *stockRepo) Get(ctx context.Context, id int) (*core.StockLevel, error) {
	levels, err := r.queryLevels(ctx, `WHERE sl.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("stock level %d: %w", id, core.ErrNotFound)
	}
	return levels[0], nil
}

func (r *stockRepo) List(ctx context.Context, companyID int) ([]*core.StockLevel, error) {
	rows, err := r.tx.Query(ctx, selectStockLevel+`
	WHERE sl.company_id = $1
	ORDER BY sl.item_uuid, sl.warehouse_id, l.code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []*core.StockLevel
	for rows.Next() {
		lvl, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// ── Order lines, numbering and catalog ───────────────────────────────────────

type orderLineLedger struct {
	tx pgx.Tx
}

func (l *orderLineLedger) IncrementShipped(ctx context.Context, orderLineID int, qty decimal.Decimal) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE sales_order_lines SET quantity_shipped = quantity_shipped + $1 WHERE id = $2
	`, qty, orderLineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order line %d: %w", orderLineID, core.ErrNotFound)
	}
	return nil
}

func (l *orderLineLedger) DecrementShipped(ctx context.Context, orderLineID int, qty decimal.Decimal) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE sales_order_lines SET quantity_shipped = GREATEST(quantity_shipped - $1, 0) WHERE id = $2
	`, qty, orderLineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order line %d: %w", orderLineID, core.ErrNotFound)
	}
	return nil
}

type sequenceGenerator struct {
	tx pgx.Tx
}

// Next hands out the next number for (company, prefix). The upsert holds the sequence row
// lock until the transaction ends, so numbers stay gapless under concurrency.
func (g *sequenceGenerator) Next(ctx context.Context, companyID int, prefix string) (string, error) {
	var last int64
	err := g.tx.QueryRow(ctx, `
		INSERT INTO document_sequences (company_id, prefix, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, prefix)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, companyID, prefix).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to generate gapless sequence number: %w", err)
	}
	return fmt.Sprintf("%s-%05d", prefix, last), nil
}

// ItemLookup reads the items catalog outside any workflow transaction.
type ItemLookup struct {
	q interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	}
}

func NewItemLookup(s *Store) *ItemLookup {
	return &ItemLookup{q: s.pool}
}

func (l *ItemLookup) FindByPartNumber(ctx context.Context, companyID int, partNumber string) (*core.CatalogItem, error) {
	var item core.CatalogItem
	err := l.q.QueryRow(ctx, `
		SELECT uuid, name, description, image_url, part_number
		FROM items
		WHERE company_id = $1 AND UPPER(part_number) = UPPER($2)
	`, companyID, partNumber).Scan(&item.UUID, &item.Name, &item.Description, &item.ImageURL, &item.PartNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("item %q: %w", partNumber, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up item: %w", err)
	}
	return &item, nil
}
