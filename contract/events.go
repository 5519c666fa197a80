package contract

import "github.com/google/uuid"

// Event is emitted by the state machine whenever a contract is mutated.
// Consumers (notification dispatch, external-integration collaborators) are
// out of scope here; only the event contract is specified.
type Event interface {
	EventType() string
}

// Emitter receives Events. The coordinator wires a concrete Emitter; tests
// use NoopEmitter.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// StatusChanged fires on every successful transition.
type StatusChanged struct {
	ContractID uuid.UUID
	From       Status
	To         Status
}

func (StatusChanged) EventType() string { return "contract.status_changed" }

// CollateralObserved fires whenever the watcher's reported figure is
// persisted, whether or not it moved the status.
type CollateralObserved struct {
	ContractID uuid.UUID
	Sats       int64
}

func (CollateralObserved) EventType() string { return "contract.collateral_observed" }

// DisputeOpened fires when either party opens a dispute overlay.
type DisputeOpened struct {
	ContractID uuid.UUID
	ByBorrower bool
	PreStatus  Status
}

func (DisputeOpened) EventType() string { return "contract.dispute_opened" }

// DisputeResolved fires when a dispute overlay is lifted.
type DisputeResolved struct {
	ContractID uuid.UUID
	RestoredTo Status
}

func (DisputeResolved) EventType() string { return "contract.dispute_resolved" }

// LiquidationSubStatusChanged fires when the margin-call ladder advances.
type LiquidationSubStatusChanged struct {
	ContractID uuid.UUID
	To         LiquidationSubStatus
}

func (LiquidationSubStatusChanged) EventType() string {
	return "contract.liquidation_substatus_changed"
}
