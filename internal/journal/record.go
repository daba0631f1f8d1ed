// Package journal persists ladder order records and strategy parameters.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
)

// PurposeLadder marks records owned by the ladder strategy.
const PurposeLadder = "ladder"

// State is a ladder order state. The string values are the persisted
// representation and appear verbatim in logs and the journal.
type State string

const (
	// StateUndefined is the zero value, meaning "no record yet". Never persisted.
	StateUndefined    State = ""
	StateNotPlaced    State = "Not placed"
	StateOpen         State = "Open"
	StatePartlyFilled State = "Partly filled"
	StateFilled       State = "Filled"
	StateMissed       State = "Missed"
	StateToBeRemoved  State = "To be removed"
	StateRemoved      State = "Removed"
	StateCancelled    State = "Cancelled"
)

// Placeable reports whether a slot in this state may be (re-)placed.
func (s State) Placeable() bool {
	switch s {
	case StateUndefined, StateNotPlaced, StateCancelled, StateMissed:
		return true
	}
	return false
}

// Valid reports whether s is a known persisted state.
func (s State) Valid() bool {
	switch s {
	case StateNotPlaced, StateOpen, StatePartlyFilled, StateFilled,
		StateMissed, StateToBeRemoved, StateRemoved, StateCancelled:
		return true
	}
	return false
}

// CrossRef records the provenance of a "To be removed" marking: which filled
// order on the opposite side caused it.
type CrossRef struct {
	OrderID string          `json:"ladderCrossOrderId,omitempty"`
	Index   int             `json:"ladderCrossOrderIndex"`
	Type    core.Side       `json:"ladderCrossOrderType,omitempty"`
	Price   decimal.Decimal `json:"ladderCrossOrderPrice"`
}

// OrderRecord is one journal entity. Before a successful placement the record
// is virtual and ID holds a locally generated surrogate; after placement ID is
// the venue-assigned order id and the surrogate moves to LadderPreviousOrderID.
type OrderRecord struct {
	ID       string    `json:"_id"`
	Purpose  string    `json:"purpose"`
	Pair     string    `json:"pair"`
	Exchange string    `json:"exchange"`
	Side     core.Side `json:"type"`

	Price              decimal.Decimal `json:"price"`
	Coin1Amount        decimal.Decimal `json:"coin1Amount"`
	Coin2Amount        decimal.Decimal `json:"coin2Amount"`
	Coin1AmountInitial decimal.Decimal `json:"coin1AmountInitial"`

	LadderIndex             int    `json:"ladderIndex"`
	LadderPreviousIndex     int    `json:"ladderPreviousIndex"`
	LadderPreviousOrderID   string `json:"ladderPreviousOrderId,omitempty"`
	LadderReplacedByOrderID string `json:"ladderReplacedByOrderId,omitempty"`

	LadderState                   State  `json:"ladderState"`
	LadderNotPlacedReason         string `json:"ladderNotPlacedReason,omitempty"`
	LadderPreviousState           State  `json:"ladderPreviousState,omitempty"`
	LadderPreviousNotPlacedReason string `json:"ladderPreviousNotPlacedReason,omitempty"`

	Cross *CrossRef `json:"ladderCross,omitempty"`

	IsVirtual   bool `json:"isVirtual"`
	IsProcessed bool `json:"isProcessed"`
	IsExecuted  bool `json:"isExecuted"`
	IsClosed    bool `json:"isClosed"`
	IsCancelled bool `json:"isCancelled"`

	CreatedAt        time.Time `json:"createdAt"`
	LadderUpdateDate time.Time `json:"ladderUpdateDate"`
}

// SetState transitions the record to a new state, keeping the previous state
// and not-placed reason for audit.
func (r *OrderRecord) SetState(s State, notPlacedReason string) {
	r.LadderPreviousState = r.LadderState
	r.LadderPreviousNotPlacedReason = r.LadderNotPlacedReason
	r.LadderState = s
	r.LadderNotPlacedReason = notPlacedReason
	r.LadderUpdateDate = time.Now().UTC()
}

// SetCross attaches cross-order provenance from the filled order that caused
// this record to be retired.
func (r *OrderRecord) SetCross(filled *OrderRecord) {
	r.Cross = &CrossRef{
		OrderID: filled.ID,
		Index:   filled.LadderIndex,
		Type:    filled.Side,
		Price:   filled.Price,
	}
}

// MarkProcessed retires the record from the active set. Processed records are
// kept in the journal but never mutated again, except index renumbering for
// audit.
func (r *OrderRecord) MarkProcessed() {
	r.IsProcessed = true
	r.LadderUpdateDate = time.Now().UTC()
}

// ShiftIndex renumbers the record, keeping the old index for audit.
func (r *OrderRecord) ShiftIndex(delta int) {
	r.LadderPreviousIndex = r.LadderIndex
	r.LadderIndex += delta
	r.LadderUpdateDate = time.Now().UTC()
}
