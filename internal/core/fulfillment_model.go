package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SlipStatus is the picking slip state:
//
//	pending → assigned → done
type SlipStatus string

const (
	SlipPending  SlipStatus = "pending"
	SlipAssigned SlipStatus = "assigned"
	SlipDone     SlipStatus = "done"
)

// PickingSlip is a warehouse work order for one sales order, optionally a backorder of an
// earlier slip or a split produced by a partial unload.
type PickingSlip struct {
	ID            int               `json:"id"`
	CompanyID     int               `json:"company_id"`
	Number        string            `json:"number"`
	OrderID       int               `json:"order_id"`
	WarehouseID   int               `json:"warehouse_id"`
	BackorderOfID *int              `json:"backorder_of_id,omitempty"`
	SplitFromID   *int              `json:"split_from_id,omitempty"`
	Status        SlipStatus        `json:"status"`
	PickerID      *int              `json:"picker_id,omitempty"`
	Items         []PickingSlipItem `json:"items"`
	CreatedAt     time.Time         `json:"created_at"`
	AssignedAt    *time.Time        `json:"assigned_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// Item returns the slip line with the given id.
func (p *PickingSlip) Item(id int) (*PickingSlipItem, bool) {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i], true
		}
	}
	return nil, false
}

// PickingSlipItem is one line of a picking slip.
type PickingSlipItem struct {
	ID                int             `json:"id"`
	SlipID            int             `json:"slip_id"`
	OrderLineID       int             `json:"order_line_id"`
	ItemID            uuid.UUID       `json:"item_id"`
	PartNumber        string          `json:"part_number"`
	QuantityRequested decimal.Decimal `json:"quantity_requested"`
	QuantityPicked    decimal.Decimal `json:"quantity_picked"`
}

// DeliveryStatus is the delivery note state.
type DeliveryStatus string

const (
	DeliveryWaitOperation DeliveryStatus = "wait_operation"
	DeliveryReadyToShip   DeliveryStatus = "ready_to_ship"
	DeliveryShipped       DeliveryStatus = "shipped"
	DeliveryDelivered     DeliveryStatus = "delivered"
	DeliveryCancelled     DeliveryStatus = "cancelled"
)

// DeliveryNote is the shipping document for a picking slip's output.
type DeliveryNote struct {
	ID            int            `json:"id"`
	CompanyID     int            `json:"company_id"`
	Number        string         `json:"number"`
	PickingSlipID int            `json:"picking_slip_id"`
	ShipmentID    *int           `json:"shipment_id,omitempty"`
	Status        DeliveryStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ShippedAt     *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
}

// ShipmentStatus is the shipment state:
//
//	planned → shipped → completed
type ShipmentStatus string

const (
	ShipmentPlanned   ShipmentStatus = "planned"
	ShipmentShipped   ShipmentStatus = "shipped"
	ShipmentCompleted ShipmentStatus = "completed"
)

// Shipment groups delivery notes onto one vehicle trip.
type Shipment struct {
	ID          int            `json:"id"`
	CompanyID   int            `json:"company_id"`
	Number      string         `json:"number"`
	VehicleRef  string         `json:"vehicle_ref"`
	Status      ShipmentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	DepartedAt  *time.Time     `json:"departed_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ReturnKind separates internal reversals (stock never left) from customer returns
// (stock left and came back).
type ReturnKind string

const (
	ReturnInternal ReturnKind = "internal"
	ReturnCustomer ReturnKind = "customer"
)

// ReturnStatus is the return note state.
type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnCompleted ReturnStatus = "completed"
)

// ReturnNote records reversed quantities for a delivery note.
type ReturnNote struct {
	ID             int              `json:"id"`
	CompanyID      int              `json:"company_id"`
	Number         string           `json:"number"`
	DeliveryNoteID int              `json:"delivery_note_id"`
	Kind           ReturnKind       `json:"kind"`
	Status         ReturnStatus     `json:"status"`
	Reason         string           `json:"reason"`
	LocationID     *int             `json:"location_id,omitempty"` // receiving location for customer returns
	Items          []ReturnNoteItem `json:"items"`
	Evidence       []ReturnEvidence `json:"evidence"`
	CreatedBy      int              `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// ReturnNoteItem is one reversed line.
type ReturnNoteItem struct {
	ID           int             `json:"id"`
	ReturnNoteID int             `json:"return_note_id"`
	SlipItemID   int             `json:"slip_item_id"`
	OrderLineID  int             `json:"order_line_id"`
	ItemID       uuid.UUID       `json:"item_id"`
	WarehouseID  int             `json:"warehouse_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// ReturnEvidence is an uploaded photograph backing a customer return.
type ReturnEvidence struct {
	ID           int       `json:"id"`
	ReturnNoteID int       `json:"return_note_id"`
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	UploadedBy   int       `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}
