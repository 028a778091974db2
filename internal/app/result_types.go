package app

import "fulfillment-engine/internal/core"

// StockResult is returned by GetStockLevels and ListStockLevels.
type StockResult struct {
	CompanyID int                `json:"company_id"`
	Levels    []*core.StockLevel `json:"levels"`
}

// MovementsResult is returned by GetMovements.
type MovementsResult struct {
	Level     *core.StockLevel     `json:"level"`
	Movements []core.StockMovement `json:"movements"`
}

// ShipmentResult is returned by GetShipment.
type ShipmentResult struct {
	Shipment      *core.Shipment       `json:"shipment"`
	DeliveryNotes []*core.DeliveryNote `json:"delivery_notes"`
}
