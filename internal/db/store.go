package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fulfillment-engine/internal/core"
)

// Store implements core.Store on Postgres. Each InTx call is one database transaction.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// InTx begins a transaction, runs fn, and commits only if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		s.logger.Debug("transaction rolled back", zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Stock() core.StockLevelRepository           { return &stockRepo{tx: t.tx} }
func (t *pgTx) Slips() core.PickingSlipRepository          { return &slipRepo{tx: t.tx} }
func (t *pgTx) DeliveryNotes() core.DeliveryNoteRepository { return &noteRepo{tx: t.tx} }
func (t *pgTx) Shipments() core.ShipmentRepository         { return &shipmentRepo{tx: t.tx} }
func (t *pgTx) Returns() core.ReturnNoteRepository         { return &returnRepo{tx: t.tx} }
func (t *pgTx) OrderLines() core.OrderLineLedger           { return &orderLineLedger{tx: t.tx} }
func (t *pgTx) Sequences() core.SequenceGenerator          { return &sequenceGenerator{tx: t.tx} }
