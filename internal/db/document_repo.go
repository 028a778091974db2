package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fulfillment-engine/internal/core"
)

func notFoundOr(err error, kind string, id int) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", kind, id, err)
}

// ── Picking slips ────────────────────────────────────────────────────────────

type slipRepo struct {
	tx pgx.Tx
}

func (r *slipRepo) Create(ctx context.Context, slip *core.PickingSlip) error {
	err := r.tx.QueryRow(ctx, `
		INSERT INTO picking_slips (company_id, number, order_id, warehouse_id, backorder_of_id, split_from_id,
		                           status, picker_id, created_at, assigned_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, slip.CompanyID, slip.Number, slip.OrderID, slip.WarehouseID, slip.BackorderOfID, slip.SplitFromID,
		string(slip.Status), slip.PickerID, slip.CreatedAt, slip.AssignedAt, slip.CompletedAt).Scan(&slip.ID)
	if err != nil {
		return err
	}
	for i := range slip.Items {
		it := &slip.Items[i]
		it.SlipID = slip.ID
		err := r.tx.QueryRow(ctx, `
			INSERT INTO picking_slip_items (slip_id, order_line_id, item_uuid, part_number, quantity_requested, quantity_picked)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, slip.ID, it.OrderLineID, it.ItemID, it.PartNumber, it.QuantityRequested, it.QuantityPicked).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("failed to insert slip item: %w", err)
		}
	}
	return nil
}

func (r *slipRepo) Get(ctx context.Context, id int) (*core.PickingSlip, error) {
	var slip core.PickingSlip
	var status string
	err := r.tx.QueryRow(ctx, `
		SELECT id, company_id, number, order_id, warehouse_id, backorder_of_id, split_from_id,
		       status, picker_id, created_at, assigned_at, completed_at
		FROM picking_slips
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&slip.ID, &slip.CompanyID, &slip.Number, &slip.OrderID, &slip.WarehouseID,
		&slip.BackorderOfID, &slip.SplitFromID, &status, &slip.PickerID,
		&slip.CreatedAt, &slip.AssignedAt, &slip.CompletedAt)
	if err != nil {
		return nil, notFoundOr(err, "picking slip", id)
	}
	slip.Status = core.SlipStatus(status)

	rows, err := r.tx.Query(ctx, `
		SELECT id, slip_id, order_line_id, item_uuid, part_number, quantity_requested, quantity_picked
		FROM picking_slip_items
		WHERE slip_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query slip items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it core.PickingSlipItem
		if err := rows.Scan(&it.ID, &it.SlipID, &it.OrderLineID, &it.ItemID, &it.PartNumber,
			&it.QuantityRequested, &it.QuantityPicked); err != nil {
			return nil, fmt.Errorf("failed to scan slip item: %w", err)
		}
		slip.Items = append(slip.Items, it)
	}
	return &slip, rows.Err()
}

func (r *slipRepo) Update(ctx context.Context, slip *core.PickingSlip) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE picking_slips
		SET status = $1, picker_id = $2, assigned_at = $3, completed_at = $4
		WHERE id = $5
	`, string(slip.Status), slip.PickerID, slip.AssignedAt, slip.CompletedAt, slip.ID)
	if err != nil {
		return err
	}
	for _, it := range slip.Items {
		_, err := r.tx.Exec(ctx, `
			UPDATE picking_slip_items SET quantity_requested = $1, quantity_picked = $2 WHERE id = $3
		`, it.QuantityRequested, it.QuantityPicked, it.ID)
		if err != nil {
			return fmt.Errorf("failed to update slip item %d: %w", it.ID, err)
		}
	}
	return nil
}

// ── Delivery notes ───────────────────────────────────────────────────────────

type noteRepo struct {
	tx pgx.Tx
}

const selectNote = `
	SELECT id, company_id, number, picking_slip_id, shipment_id, status,
	       created_at, shipped_at, delivered_at, cancelled_at
	FROM delivery_notes
`

func scanNote(row pgx.Row) (*core.DeliveryNote, error) {
	var n core.DeliveryNote
	var status string
	if err := row.Scan(&n.ID, &n.CompanyID, &n.Number, &n.PickingSlipID, &n.ShipmentID, &status,
		&n.CreatedAt, &n.ShippedAt, &n.DeliveredAt, &n.CancelledAt); err != nil {
		return nil, err
	}
	n.Status = core.DeliveryStatus(status)
	return &n, nil
}

func (r *noteRepo) Create(ctx context.Context, note *core.DeliveryNote) error {
	return r.tx.QueryRow(ctx, `
		INSERT INTO delivery_notes (company_id, number, picking_slip_id, shipment_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, note.CompanyID, note.Number, note.PickingSlipID, note.ShipmentID, string(note.Status), note.CreatedAt).Scan(&note.ID)
}

func (r *noteRepo) Get(ctx context.Context, id int) (*core.DeliveryNote, error) {
	n, err := scanNote(r.tx.QueryRow(ctx, selectNote+`WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "delivery note", id)
	}
	return n, nil
}

func (r *noteRepo) GetBySlip(ctx context.Context, slipID int) (*core.DeliveryNote, error) {
	n, err := scanNote(r.tx.QueryRow(ctx, selectNote+`WHERE picking_slip_id = $1 FOR UPDATE`, slipID))
	if err != nil {
		return nil, notFoundOr(err, "delivery note for picking slip", slipID)
	}
	return n, nil
}

func (r *noteRepo) ListByShipment(ctx context.Context, shipmentID int) ([]*core.DeliveryNote, error) {
	rows, err := r.tx.Query(ctx, selectNote+`WHERE shipment_id = $1 ORDER BY id FOR UPDATE`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery notes: %w", err)
	}
	defer rows.Close()

	var notes []*core.DeliveryNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *noteRepo) Update(ctx context.Context, note *core.DeliveryNote) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE delivery_notes
		SET shipment_id = $1, status = $2, shipped_at = $3, delivered_at = $4, cancelled_at = $5
		WHERE id = $6
	`, note.ShipmentID, string(note.Status), note.ShippedAt, note.DeliveredAt, note.CancelledAt, note.ID)
	return err
}

// ── Shipments ────────────────────────────────────────────────────────────────

type shipmentRepo struct {
	tx pgx.Tx
}

func (r *shipmentRepo) Create(ctx context.Context, sh *core.Shipment) error {
	return r.tx.QueryRow(ctx, `
		INSERT INTO shipments (company_id, number, vehicle_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, sh.CompanyID, sh.Number, sh.VehicleRef, string(sh.Status), sh.CreatedAt).Scan(&sh.ID)
}

func (r *shipmentRepo) Get(ctx context.Context, id int) (*core.Shipment, error) {
	var sh core.Shipment
	var status string
	err := r.tx.QueryRow(ctx, `
		SELECT id, company_id, number, vehicle_ref, status, created_at, departed_at, completed_at
		FROM shipments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&sh.ID, &sh.CompanyID, &sh.Number, &sh.VehicleRef, &status,
		&sh.CreatedAt, &sh.DepartedAt, &sh.CompletedAt)
	if err != nil {
		return nil, notFoundOr(err, "shipment", id)
	}
	sh.Status = core.ShipmentStatus(status)
	return &sh, nil
}

func (r *shipmentRepo) Update(ctx context.Context, sh *core.Shipment) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE shipments SET status = $1, departed_at = $2, completed_at = $3 WHERE id = $4
	`, string(sh.Status), sh.DepartedAt, sh.CompletedAt, sh.ID)
	return err
}

// ── Return notes ─────────────────────────────────────────────────────────────

type returnRepo struct {
	tx pgx.Tx
}

func (r *returnRepo) Create(ctx context.Context, rn *core.ReturnNote) error {
	err := r.tx.QueryRow(ctx, `
		INSERT INTO return_notes (company_id, number, delivery_note_id, kind, status, reason,
		                          location_id, created_by, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, rn.CompanyID, rn.Number, rn.DeliveryNoteID, string(rn.Kind), string(rn.Status), rn.Reason,
		rn.LocationID, rn.CreatedBy, rn.CreatedAt, rn.CompletedAt).Scan(&rn.ID)
	if err != nil {
		return err
	}
	for i := range rn.Items {
		it := &rn.Items[i]
		it.ReturnNoteID = rn.ID
		err := r.tx.QueryRow(ctx, `
			INSERT INTO return_note_items (return_note_id, slip_item_id, order_line_id, item_uuid, warehouse_id, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, rn.ID, it.SlipItemID, it.OrderLineID, it.ItemID, it.WarehouseID, it.Quantity).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("failed to insert return item: %w", err)
		}
	}
	return nil
}

const selectReturn = `
	SELECT id, company_id, number, delivery_note_id, kind, status, reason,
	       location_id, created_by, created_at, completed_at
	FROM return_notes
`

func (r *returnRepo) scan(ctx context.Context, row pgx.Row) (*core.ReturnNote, error) {
	var rn core.ReturnNote
	var kind, status string
	if err := row.Scan(&rn.ID, &rn.CompanyID, &rn.Number, &rn.DeliveryNoteID, &kind, &status, &rn.Reason,
		&rn.LocationID, &rn.CreatedBy, &rn.CreatedAt, &rn.CompletedAt); err != nil {
		return nil, err
	}
	rn.Kind = core.ReturnKind(kind)
	rn.Status = core.ReturnStatus(status)
	return &rn, nil
}

// loadChildren fills items and evidence. It runs after the parent rows are read so no
// two result sets are open on the connection at once.
func (r *returnRepo) loadChildren(ctx context.Context, rn *core.ReturnNote) error {
	rows, err := r.tx.Query(ctx, `
		SELECT id, return_note_id, slip_item_id, order_line_id, item_uuid, warehouse_id, quantity
		FROM return_note_items WHERE return_note_id = $1 ORDER BY id
	`, rn.ID)
	if err != nil {
		return fmt.Errorf("failed to query return items: %w", err)
	}
	for rows.Next() {
		var it core.ReturnNoteItem
		if err := rows.Scan(&it.ID, &it.ReturnNoteID, &it.SlipItemID, &it.OrderLineID, &it.ItemID,
			&it.WarehouseID, &it.Quantity); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan return item: %w", err)
		}
		rn.Items = append(rn.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.tx.Query(ctx, `
		SELECT id, return_note_id, url, content_type, uploaded_by, created_at
		FROM return_evidence WHERE return_note_id = $1 ORDER BY id
	`, rn.ID)
	if err != nil {
		return fmt.Errorf("failed to query return evidence: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ev core.ReturnEvidence
		if err := rows.Scan(&ev.ID, &ev.ReturnNoteID, &ev.URL, &ev.ContentType, &ev.UploadedBy, &ev.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan return evidence: %w", err)
		}
		rn.Evidence = append(rn.Evidence, ev)
	}
	return rows.Err()
}

func (r *returnRepo) Get(ctx context.Context, id int) (*core.ReturnNote, error) {
	rn, err := r.scan(ctx, r.tx.QueryRow(ctx, selectReturn+`WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "return note", id)
	}
	if err := r.loadChildren(ctx, rn); err != nil {
		return nil, err
	}
	return rn, nil
}

func (r *returnRepo) Update(ctx context.Context, rn *core.ReturnNote) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE return_notes SET status = $1, location_id = $2, completed_at = $3 WHERE id = $4
	`, string(rn.Status), rn.LocationID, rn.CompletedAt, rn.ID)
	return err
}

func (r *returnRepo) AddEvidence(ctx context.Context, ev *core.ReturnEvidence) error {
	return r.tx.QueryRow(ctx, `
		INSERT INTO return_evidence (return_note_id, url, content_type, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ev.ReturnNoteID, ev.URL, ev.ContentType, ev.UploadedBy, ev.CreatedAt).Scan(&ev.ID)
}

func (r *returnRepo) ListByDeliveryNote(ctx context.Context, deliveryNoteID int) ([]*core.ReturnNote, error) {
	rows, err := r.tx.Query(ctx, selectReturn+`WHERE delivery_note_id = $1 ORDER BY id`, deliveryNoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query return notes: %w", err)
	}
	var notes []*core.ReturnNote
	for rows.Next() {
		rn, err := r.scan(ctx, rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan return note: %w", err)
		}
		notes = append(notes, rn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rn := range notes {
		if err := r.loadChildren(ctx, rn); err != nil {
			return nil, err
		}
	}
	return notes, nil
}
