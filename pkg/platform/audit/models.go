package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers movements of custodied funds. These require
	// guaranteed persistence in the same transaction as the movement.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers changes to who may move funds.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the custodian the event is about. Role events use the
	// custodian whose registry changed.
	Subject string
	Action  string
	// ActorID is the account that invoked the operation.
	ActorID string
	// Counterparty receives funds or a role.
	Counterparty string
	Asset        string
	Amount       uint64
	Reason       string
	RequestID    string
}

type AuditEvent string

const (
	EventCustodianDeployed AuditEvent = "custodian_deployed"
	EventCustodianFunded   AuditEvent = "custodian_funded"
	EventVestingReleased   AuditEvent = "vesting_released"
	EventVestingRecovered  AuditEvent = "vesting_recovered"
	EventVestingUnlocked   AuditEvent = "vesting_unlocked"

	EventRoleGranted   AuditEvent = "role_granted"
	EventRoleRevoked   AuditEvent = "role_revoked"
	EventRoleRenounced AuditEvent = "role_renounced"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVestingReleased:  CategoryCompliance,
	EventVestingRecovered: CategoryCompliance,
	EventVestingUnlocked:  CategoryCompliance,

	EventRoleGranted:   CategorySecurity,
	EventRoleRevoked:   CategorySecurity,
	EventRoleRenounced: CategorySecurity,

	EventCustodianDeployed: CategoryOperations,
	EventCustodianFunded:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// OutboxEntry is a persisted event awaiting relay to the message bus.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
