package domain

const (
	RoleBusiness        = "BUSINESS"
	RoleFreelancer      = "FREELANCER"
	RoleServiceProvider = "SERVICE_PROVIDER"
	RoleAdmin           = "ADMIN"
)

// Contract target types. A contract pays exactly one of the two profile kinds.
const (
	TargetFreelancer      = "freelancer"
	TargetServiceProvider = "service_provider"
)

const (
	ContractStatusActive    = "active"
	ContractStatusCompleted = "completed"
)

// Payment statuses of the escrow state machine.
const (
	PaymentUnpaid   = "unpaid"
	PaymentHeld     = "held"
	PaymentReleased = "released"
	PaymentDisputed = "disputed"
	PaymentRefunded = "refunded"
)

// paymentEdges lists every legal payment status change.
var paymentEdges = map[string][]string{
	PaymentUnpaid:   {PaymentHeld},
	PaymentHeld:     {PaymentReleased, PaymentDisputed, PaymentRefunded},
	PaymentDisputed: {PaymentHeld, PaymentRefunded},
}

// CanTransition reports whether the payment status may move from one value to another.
func CanTransition(from, to string) bool {
	for _, next := range paymentEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalPayment reports whether no further payment change is possible.
func IsTerminalPayment(status string) bool {
	return status == PaymentReleased || status == PaymentRefunded
}

func IsPaymentStatus(status string) bool {
	switch status {
	case PaymentUnpaid, PaymentHeld, PaymentReleased, PaymentDisputed, PaymentRefunded:
		return true
	}
	return false
}

// Audit event types.
const (
	EventCheckoutStarted   = "checkout_started"
	EventPaymentHeld       = "payment_held"
	EventReleaseRequested  = "release_requested"
	EventPaymentReleased   = "payment_released"
	EventDisputeOpened     = "dispute_opened"
	EventDisputeResolved   = "dispute_resolved"
	EventPaymentRefunded   = "payment_refunded"
	EventContractCreated   = "contract_created"
	EventContractCompleted = "contract_completed"
	EventDeliverableAdded  = "deliverable_uploaded"
)

// Notification types.
const (
	NotifPaymentHeld       = "PAYMENT_HELD"
	NotifReleaseRequested  = "RELEASE_REQUESTED"
	NotifPaymentReleased   = "PAYMENT_RELEASED"
	NotifPaymentDisputed   = "PAYMENT_DISPUTED"
	NotifDisputeResolved   = "DISPUTE_RESOLVED"
	NotifPaymentRefunded   = "PAYMENT_REFUNDED"
	NotifContractCreated   = "CONTRACT_CREATED"
	NotifContractCompleted = "CONTRACT_COMPLETED"
	NotifDeliverable       = "DELIVERABLE_UPLOADED"
	NotifReleaseReminder   = "RELEASE_REMINDER"
)
