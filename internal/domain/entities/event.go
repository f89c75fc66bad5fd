package entities

import "time"

// Event names emitted by the operation pipeline and the session
const (
	EventStepsList        = "STEPS_LIST"
	EventIntentCreated    = "INTENT_CREATED"
	EventStepComplete     = "STEP_COMPLETE"
	EventTransferComplete = "TRANSFER_COMPLETE"
	EventSwapComplete     = "SWAP_COMPLETE"
	EventError            = "ERROR"
	EventIntentStatus     = "INTENT_STATUS"
	EventBalancesUpdated  = "BALANCES_UPDATED"
	EventAllowanceUpdated = "ALLOWANCE_UPDATED"
)

// Step names listed in STEPS_LIST
const (
	StepAllowance = "allowance"
	StepDeposit   = "deposit"
	StepBridge    = "bridge"
	StepReceive   = "receive"
	StepTransfer  = "transfer"
	StepSwap      = "swap"
)

// NexusEvent is an observational progress record. It never drives state.
type NexusEvent struct {
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	Timestamp int64          `json:"timestamp"`
}

// NewEvent stamps an event with the current time in milliseconds
func NewEvent(name string, args map[string]any) NexusEvent {
	if args == nil {
		args = map[string]any{}
	}
	return NexusEvent{Name: name, Args: args, Timestamp: time.Now().UnixMilli()}
}
