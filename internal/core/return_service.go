package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReturnLineInput is a returned quantity of one delivered slip line.
type ReturnLineInput struct {
	SlipItemID int             `json:"slip_item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// CustomerReturnInput opens a return against a delivered note.
type CustomerReturnInput struct {
	DeliveryNoteID int               `json:"delivery_note_id"`
	Reason         string            `json:"reason"`
	LocationID     *int              `json:"location_id,omitempty"`
	Items          []ReturnLineInput `json:"items"`
}

// EvidenceInput attaches one photograph to a return.
type EvidenceInput struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// ReturnService handles goods coming back into stock.
type ReturnService interface {
	// CreateCustomerReturn opens a pending customer return for part or all of a delivered
	// note. The note itself stays delivered.
	CreateCustomerReturn(ctx context.Context, in CustomerReturnInput, a Audit) (*ReturnNote, error)
	AddEvidence(ctx context.Context, returnNoteID int, in EvidenceInput, a Audit) (*ReturnNote, error)
	// Complete receives the returned stock at the receiving location and reverses the order
	// line. Customer returns without evidence fail with ErrMissingEvidence.
	Complete(ctx context.Context, returnNoteID int, locationID *int, a Audit) (*ReturnNote, error)
	Get(ctx context.Context, returnNoteID int) (*ReturnNote, error)
}

type returnService struct {
	store  Store
	logger *zap.Logger
}

func NewReturnService(store Store, logger *zap.Logger) ReturnService {
	return &returnService{store: store, logger: logger}
}

func (s *returnService) CreateCustomerReturn(ctx context.Context, in CustomerReturnInput, a Audit) (*ReturnNote, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("return needs at least one line: %w", ErrInvalidInput)
	}
	var out *ReturnNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		note, err := tx.DeliveryNotes().Get(ctx, in.DeliveryNoteID)
		if err != nil {
			return err
		}
		if note.Status != DeliveryDelivered {
			return invalidTransition("customer return", "delivery note %s is %s, not delivered", note.Number, note.Status)
		}
		slip, err := tx.Slips().Get(ctx, note.PickingSlipID)
		if err != nil {
			return err
		}
		returned, err := returnedQuantities(ctx, tx, note.ID)
		if err != nil {
			return err
		}

		rn := &ReturnNote{
			CompanyID:      note.CompanyID,
			DeliveryNoteID: note.ID,
			Kind:           ReturnCustomer,
			Status:         ReturnPending,
			Reason:         in.Reason,
			LocationID:     in.LocationID,
			CreatedBy:      a.ActorID,
			CreatedAt:      nowFunc(),
		}
		for _, line := range in.Items {
			item, ok := slip.Item(line.SlipItemID)
			if !ok {
				return fmt.Errorf("slip item %d is not on delivery note %s: %w", line.SlipItemID, note.Number, ErrInvalidInput)
			}
			if !line.Quantity.IsPositive() {
				return fmt.Errorf("return %s of slip item %d: %w", line.Quantity, line.SlipItemID, ErrInvalidQuantity)
			}
			open := item.QuantityPicked.Sub(returned[item.ID])
			if line.Quantity.GreaterThan(open) {
				return invalidTransition("customer return", "slip item %d: returning %s but only %s delivered and not yet returned",
					item.ID, line.Quantity, open)
			}
			returned[item.ID] = returned[item.ID].Add(line.Quantity)
			rn.Items = append(rn.Items, ReturnNoteItem{
				SlipItemID:  item.ID,
				OrderLineID: item.OrderLineID,
				ItemID:      item.ItemID,
				WarehouseID: slip.WarehouseID,
				Quantity:    line.Quantity,
			})
		}
		if rn.Number, err = tx.Sequences().Next(ctx, note.CompanyID, "RN"); err != nil {
			return fmt.Errorf("failed to number return note: %w", err)
		}
		if err := tx.Returns().Create(ctx, rn); err != nil {
			return fmt.Errorf("failed to create return note: %w", err)
		}
		out = rn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer return opened", zap.String("return_note", out.Number), zap.Int("delivery_note_id", in.DeliveryNoteID))
	return out, nil
}

// returnedQuantities sums what earlier returns already claimed per slip item.
func returnedQuantities(ctx context.Context, tx Tx, deliveryNoteID int) (map[int]decimal.Decimal, error) {
	prior, err := tx.Returns().ListByDeliveryNote(ctx, deliveryNoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earlier returns: %w", err)
	}
	out := make(map[int]decimal.Decimal)
	for _, rn := range prior {
		for _, it := range rn.Items {
			out[it.SlipItemID] = out[it.SlipItemID].Add(it.Quantity)
		}
	}
	return out, nil
}

func (s *returnService) AddEvidence(ctx context.Context, returnNoteID int, in EvidenceInput, a Audit) (*ReturnNote, error) {
	if strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("evidence url is required: %w", ErrInvalidInput)
	}
	var out *ReturnNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		rn, err := tx.Returns().Get(ctx, returnNoteID)
		if err != nil {
			return err
		}
		if rn.Status != ReturnPending {
			return invalidTransition("add evidence", "return note %s is %s", rn.Number, rn.Status)
		}
		ev := &ReturnEvidence{
			ReturnNoteID: rn.ID,
			URL:          in.URL,
			ContentType:  in.ContentType,
			UploadedBy:   a.ActorID,
			CreatedAt:    nowFunc(),
		}
		if err := tx.Returns().AddEvidence(ctx, ev); err != nil {
			return fmt.Errorf("failed to store evidence: %w", err)
		}
		rn.Evidence = append(rn.Evidence, *ev)
		out = rn
		return nil
	})
	return out, err
}

func (s *returnService) Complete(ctx context.Context, returnNoteID int, locationID *int, a Audit) (*ReturnNote, error) {
	var out *ReturnNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		rn, err := tx.Returns().Get(ctx, returnNoteID)
		if err != nil {
			return err
		}
		if rn.Status != ReturnPending {
			return invalidTransition("complete return", "return note %s is %s", rn.Number, rn.Status)
		}
		if rn.Kind == ReturnCustomer && len(rn.Evidence) == 0 {
			return fmt.Errorf("return note %s: %w", rn.Number, ErrMissingEvidence)
		}
		if locationID == nil {
			locationID = rn.LocationID
		}
		if locationID == nil {
			return fmt.Errorf("return note %s needs a receiving location: %w", rn.Number, ErrInvalidInput)
		}

		audit := a.WithReference("return_note:" + rn.Number)
		items := append([]ReturnNoteItem(nil), rn.Items...)
		sortByItem(items, func(it ReturnNoteItem) uuid.UUID { return it.ItemID })
		for _, item := range items {
			lvl, err := tx.Stock().GetOrCreate(ctx, StockKey{
				CompanyID:   rn.CompanyID,
				ItemID:      item.ItemID,
				WarehouseID: item.WarehouseID,
				LocationID:  *locationID,
			})
			if err != nil {
				return fmt.Errorf("failed to load receiving stock level: %w", err)
			}
			if err := lvl.Receive(item.Quantity, audit); err != nil {
				return err
			}
			if err := tx.Stock().Save(ctx, lvl); err != nil {
				return err
			}
			if err := tx.OrderLines().DecrementShipped(ctx, item.OrderLineID, item.Quantity); err != nil {
				return fmt.Errorf("failed to update order line %d: %w", item.OrderLineID, err)
			}
		}

		now := nowFunc()
		rn.Status = ReturnCompleted
		rn.LocationID = locationID
		rn.CompletedAt = &now
		if err := tx.Returns().Update(ctx, rn); err != nil {
			return fmt.Errorf("failed to complete return note: %w", err)
		}
		out = rn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("return completed", zap.String("return_note", out.Number), zap.Int("location_id", *out.LocationID))
	return out, nil
}

func (s *returnService) Get(ctx context.Context, returnNoteID int) (*ReturnNote, error) {
	var out *ReturnNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Returns().Get(ctx, returnNoteID)
		return err
	})
	return out, err
}
