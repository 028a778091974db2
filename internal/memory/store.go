// Package memory is an in-process implementation of core.Store. Transactions are
// serialized by one mutex and run against a private copy of the state that replaces the
// live state only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fulfillment-engine/internal/core"
)

// Location is a storage bin inside a warehouse.
type Location struct {
	ID          int
	WarehouseID int
	Code        string
}

type seqKey struct {
	companyID int
	prefix    string
}

type itemKey struct {
	companyID  int
	partNumber string
}

type state struct {
	nextID    int
	locations map[int]Location
	levels    map[int]*core.StockLevel
	movements []core.StockMovement
	slips     map[int]*core.PickingSlip
	notes     map[int]*core.DeliveryNote
	shipments map[int]*core.Shipment
	returns   map[int]*core.ReturnNote
	shipped   map[int]decimal.Decimal
	sequences map[seqKey]int
	items     map[itemKey]core.CatalogItem
}

func newState() *state {
	return &state{
		locations: make(map[int]Location),
		levels:    make(map[int]*core.StockLevel),
		slips:     make(map[int]*core.PickingSlip),
		notes:     make(map[int]*core.DeliveryNote),
		shipments: make(map[int]*core.Shipment),
		returns:   make(map[int]*core.ReturnNote),
		shipped:   make(map[int]decimal.Decimal),
		sequences: make(map[seqKey]int),
		items:     make(map[itemKey]core.CatalogItem),
	}
}

func (s *state) id() int {
	s.nextID++
	return s.nextID
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.levels {
		c.levels[k] = v.Clone()
	}
	c.movements = append([]core.StockMovement(nil), s.movements...)
	for k, v := range s.slips {
		c.slips[k] = cloneSlip(v)
	}
	for k, v := range s.notes {
		n := *v
		c.notes[k] = &n
	}
	for k, v := range s.shipments {
		sh := *v
		c.shipments[k] = &sh
	}
	for k, v := range s.returns {
		c.returns[k] = cloneReturn(v)
	}
	for k, v := range s.shipped {
		c.shipped[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	return c
}

func cloneSlip(p *core.PickingSlip) *core.PickingSlip {
	c := *p
	c.Items = append([]core.PickingSlipItem(nil), p.Items...)
	return &c
}

func cloneReturn(r *core.ReturnNote) *core.ReturnNote {
	c := *r
	c.Items = append([]core.ReturnNoteItem(nil), r.Items...)
	c.Evidence = append([]core.ReturnEvidence(nil), r.Evidence...)
	return &c
}

// Store is a core.Store and core.ItemLookup kept in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// InTx runs fn against a copy of the state and publishes the copy only if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddLocation registers a location and returns its id.
func (s *Store) AddLocation(warehouseID int, code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.id()
	s.state.locations[id] = Location{ID: id, WarehouseID: warehouseID, Code: code}
	return id
}

// AddItem registers a catalog item for part number lookups.
func (s *Store) AddItem(companyID int, item core.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.items[itemKey{companyID, strings.ToUpper(item.PartNumber)}] = item
}

// FindByPartNumber implements core.ItemLookup.
func (s *Store) FindByPartNumber(ctx context.Context, companyID int, partNumber string) (*core.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.state.items[itemKey{companyID, strings.ToUpper(partNumber)}]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", partNumber, core.ErrNotFound)
	}
	return &item, nil
}

// Shipped returns the shipped quantity accumulated on an order line.
func (s *Store) Shipped(orderLineID int) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.shipped[orderLineID]
}

// Level returns a copy of the stock row for item at location, or nil.
func (s *Store) Level(itemID uuid.UUID, locationID int) *core.StockLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lvl := range s.state.levels {
		if lvl.ItemID == itemID && lvl.LocationID == locationID {
			return lvl.Clone()
		}
	}
	return nil
}

type tx struct {
	st *state
}

func (t *tx) Stock() core.StockLevelRepository           { return stockRepo{t.st} }
func (t *tx) Slips() core.PickingSlipRepository          { return slipRepo{t.st} }
func (t *tx) DeliveryNotes() core.DeliveryNoteRepository { return noteRepo{t.st} }
func (t *tx) Shipments() core.ShipmentRepository         { return shipmentRepo{t.st} }
func (t *tx) Returns() core.ReturnNoteRepository         { return returnRepo{t.st} }
func (t *tx) OrderLines() core.OrderLineLedger           { return ledger{t.st} }
func (t *tx) Sequences() core.SequenceGenerator          { return sequences{t.st} }

// ── Stock levels ──────────────────────────────────────────────────────────────

type stockRepo struct{ st *state }

func (r stockRepo) find(companyID int, itemID uuid.UUID, warehouseID int, keep func(*core.StockLevel) bool) []*core.StockLevel {
	var out []*core.StockLevel
	for _, lvl := range r.st.levels {
		if lvl.CompanyID != companyID || lvl.ItemID != itemID || lvl.WarehouseID != warehouseID {
			continue
		}
		if keep(lvl) {
			out = append(out, lvl.Clone())
		}
	}
	core.SortForLocking(out)
	return out
}

func (r stockRepo) FindWithSoftReserve(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.find(companyID, itemID, warehouseID, func(l *core.StockLevel) bool { return l.SoftReserved.IsPositive() }), nil
}

func (r stockRepo) FindWithHardReserve(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.find(companyID, itemID, warehouseID, func(l *core.StockLevel) bool { return l.HardReserved.IsPositive() }), nil
}

func (r stockRepo) FindAvailable(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.find(companyID, itemID, warehouseID, func(l *core.StockLevel) bool { return l.Available().IsPositive() }), nil
}

func (r stockRepo) FindByItemWarehouse(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*core.StockLevel, error) {
	return r.find(companyID, itemID, warehouseID, func(*core.StockLevel) bool { return true }), nil
}

func (r stockRepo) FindByLocation(ctx context.Context, itemID uuid.UUID, locationID, companyID int) (*core.StockLevel, error) {
	for _, lvl := range r.st.levels {
		if lvl.CompanyID == companyID && lvl.ItemID == itemID && lvl.LocationID == locationID {
			return lvl.Clone(), nil
		}
	}
	return nil, nil
}

func (r stockRepo) FindByLocationCode(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int, code string) (*core.StockLevel, error) {
	for _, lvl := range r.st.levels {
		if lvl.CompanyID == companyID && lvl.ItemID == itemID && lvl.WarehouseID == warehouseID && lvl.LocationCode == code {
			return lvl.Clone(), nil
		}
	}
	return nil, nil
}

func (r stockRepo) GetOrCreate(ctx context.Context, key core.StockKey) (*core.StockLevel, error) {
	if lvl, _ := r.FindByLocation(ctx, key.ItemID, key.LocationID, key.CompanyID); lvl != nil {
		return lvl, nil
	}
	if loc, ok := r.st.locations[key.LocationID]; ok {
		if loc.WarehouseID != key.WarehouseID {
			return nil, fmt.Errorf("location %d belongs to warehouse %d, not %d: %w",
				key.LocationID, loc.WarehouseID, key.WarehouseID, core.ErrInvalidInput)
		}
		key.LocationCode = loc.Code
	} else if key.LocationCode == "" {
		return nil, fmt.Errorf("location %d: %w", key.LocationID, core.ErrNotFound)
	}

	lvl := &core.StockLevel{
		ID:           r.st.id(),
		CompanyID:    key.CompanyID,
		ItemID:       key.ItemID,
		WarehouseID:  key.WarehouseID,
		LocationID:   key.LocationID,
		LocationCode: key.LocationCode,
		OnHand:       decimal.Zero,
		SoftReserved: decimal.Zero,
		HardReserved: decimal.Zero,
		Version:      1,
	}
	r.st.levels[lvl.ID] = lvl.Clone()
	return lvl, nil
}

func (r stockRepo) Save(ctx context.Context, level *core.StockLevel) error {
	cur, ok := r.st.levels[level.ID]
	if !ok {
		return fmt.Errorf("stock level %d: %w", level.ID, core.ErrNotFound)
	}
	if cur.Version != level.Version {
		return fmt.Errorf("stock level %d at version %d: %w", level.ID, level.Version, core.ErrConcurrentUpdate)
	}
	if err := level.CheckInvariants(); err != nil {
		return err
	}
	for _, m := range level.PendingMovements() {
		m.ID = r.st.id()
		m.StockLevelID = level.ID
		r.st.movements = append(r.st.movements, m)
	}
	level.ClearPending()
	level.Version++
	r.st.levels[level.ID] = level.Clone()
	return nil
}

func (r stockRepo) Movements(ctx context.Context, stockLevelID int) ([]core.StockMovement, error) {
	var out []core.StockMovement
	for _, m := range r.st.movements {
		if m.StockLevelID == stockLevelID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r stockRepo) Get(ctx context.Context, id int) (*core.StockLevel, error) {
	lvl, ok := r.st.levels[id]
	if !ok {
		return nil, fmt.Errorf("stock level %d: %w", id, core.ErrNotFound)
	}
	return lvl.Clone(), nil
}

func (r stockRepo) List(ctx context.Context, companyID int) ([]*core.StockLevel, error) {
	var out []*core.StockLevel
	for _, lvl := range r.st.levels {
		if lvl.CompanyID == companyID {
			out = append(out, lvl.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── Documents ─────────────────────────────────────────────────────────────────

type slipRepo struct{ st *state }

func (r slipRepo) Create(ctx context.Context, slip *core.PickingSlip) error {
	slip.ID = r.st.id()
	for i := range slip.Items {
		slip.Items[i].ID = r.st.id()
		slip.Items[i].SlipID = slip.ID
	}
	r.st.slips[slip.ID] = cloneSlip(slip)
	return nil
}

func (r slipRepo) Get(ctx context.Context, id int) (*core.PickingSlip, error) {
	slip, ok := r.st.slips[id]
	if !ok {
		return nil, fmt.Errorf("picking slip %d: %w", id, core.ErrNotFound)
	}
	return cloneSlip(slip), nil
}

func (r slipRepo) Update(ctx context.Context, slip *core.PickingSlip) error {
	if _, ok := r.st.slips[slip.ID]; !ok {
		return fmt.Errorf("picking slip %d: %w", slip.ID, core.ErrNotFound)
	}
	r.st.slips[slip.ID] = cloneSlip(slip)
	return nil
}

type noteRepo struct{ st *state }

func (r noteRepo) Create(ctx context.Context, note *core.DeliveryNote) error {
	note.ID = r.st.id()
	n := *note
	r.st.notes[note.ID] = &n
	return nil
}

func (r noteRepo) Get(ctx context.Context, id int) (*core.DeliveryNote, error) {
	note, ok := r.st.notes[id]
	if !ok {
		return nil, fmt.Errorf("delivery note %d: %w", id, core.ErrNotFound)
	}
	n := *note
	return &n, nil
}

func (r noteRepo) GetBySlip(ctx context.Context, slipID int) (*core.DeliveryNote, error) {
	for _, note := range r.st.notes {
		if note.PickingSlipID == slipID {
			n := *note
			return &n, nil
		}
	}
	return nil, fmt.Errorf("delivery note for picking slip %d: %w", slipID, core.ErrNotFound)
}

func (r noteRepo) ListByShipment(ctx context.Context, shipmentID int) ([]*core.DeliveryNote, error) {
	var out []*core.DeliveryNote
	for _, note := range r.st.notes {
		if note.ShipmentID != nil && *note.ShipmentID == shipmentID {
			n := *note
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r noteRepo) Update(ctx context.Context, note *core.DeliveryNote) error {
	if _, ok := r.st.notes[note.ID]; !ok {
		return fmt.Errorf("delivery note %d: %w", note.ID, core.ErrNotFound)
	}
	n := *note
	r.st.notes[note.ID] = &n
	return nil
}

type shipmentRepo struct{ st *state }

func (r shipmentRepo) Create(ctx context.Context, sh *core.Shipment) error {
	sh.ID = r.st.id()
	c := *sh
	r.st.shipments[sh.ID] = &c
	return nil
}

func (r shipmentRepo) Get(ctx context.Context, id int) (*core.Shipment, error) {
	sh, ok := r.st.shipments[id]
	if !ok {
		return nil, fmt.Errorf("shipment %d: %w", id, core.ErrNotFound)
	}
	c := *sh
	return &c, nil
}

func (r shipmentRepo) Update(ctx context.Context, sh *core.Shipment) error {
	if _, ok := r.st.shipments[sh.ID]; !ok {
		return fmt.Errorf("shipment %d: %w", sh.ID, core.ErrNotFound)
	}
	c := *sh
	r.st.shipments[sh.ID] = &c
	return nil
}

type returnRepo struct{ st *state }

func (r returnRepo) Create(ctx context.Context, rn *core.ReturnNote) error {
	rn.ID = r.st.id()
	for i := range rn.Items {
		rn.Items[i].ID = r.st.id()
		rn.Items[i].ReturnNoteID = rn.ID
	}
	r.st.returns[rn.ID] = cloneReturn(rn)
	return nil
}

func (r returnRepo) Get(ctx context.Context, id int) (*core.ReturnNote, error) {
	rn, ok := r.st.returns[id]
	if !ok {
		return nil, fmt.Errorf("return note %d: %w", id, core.ErrNotFound)
	}
	return cloneReturn(rn), nil
}

func (r returnRepo) Update(ctx context.Context, rn *core.ReturnNote) error {
	cur, ok := r.st.returns[rn.ID]
	if !ok {
		return fmt.Errorf("return note %d: %w", rn.ID, core.ErrNotFound)
	}
	c := cloneReturn(rn)
	c.Evidence = cur.Evidence
	r.st.returns[rn.ID] = c
	return nil
}

func (r returnRepo) AddEvidence(ctx context.Context, ev *core.ReturnEvidence) error {
	rn, ok := r.st.returns[ev.ReturnNoteID]
	if !ok {
		return fmt.Errorf("return note %d: %w", ev.ReturnNoteID, core.ErrNotFound)
	}
	ev.ID = r.st.id()
	rn.Evidence = append(rn.Evidence, *ev)
	return nil
}

func (r returnRepo) ListByDeliveryNote(ctx context.Context, deliveryNoteID int) ([]*core.ReturnNote, error) {
	var out []*core.ReturnNote
	for _, rn := range r.st.returns {
		if rn.DeliveryNoteID == deliveryNoteID {
			out = append(out, cloneReturn(rn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── Order lines and numbering ─────────────────────────────────────────────────

type ledger struct{ st *state }

func (l ledger) IncrementShipped(ctx context.Context, orderLineID int, qty decimal.Decimal) error {
	l.st.shipped[orderLineID] = l.st.shipped[orderLineID].Add(qty)
	return nil
}

func (l ledger) DecrementShipped(ctx context.Context, orderLineID int, qty decimal.Decimal) error {
	l.st.shipped[orderLineID] = decimal.Max(l.st.shipped[orderLineID].Sub(qty), decimal.Zero)
	return nil
}

type sequences struct{ st *state }

func (s sequences) Next(ctx context.Context, companyID int, prefix string) (string, error) {
	k := seqKey{companyID, prefix}
	s.st.sequences[k]++
	return fmt.Sprintf("%s-%05d", prefix, s.st.sequences[k]), nil
}
