package shared

// OperationKind defines the kinds of money movement the ledger applies
type OperationKind string

const (
	OperationKindDeposit        OperationKind = "DEPOSIT"
	OperationKindWithdrawal     OperationKind = "WITHDRAWAL"
	OperationKindTransferDebit  OperationKind = "TRANSFER_DEBIT"
	OperationKindTransferCredit OperationKind = "TRANSFER_CREDIT"
)

// EventKind defines the kinds of events staged in the outbox
type EventKind string

const (
	EventKindTransaction EventKind = "TRANSACTION"
	EventKindAudit       EventKind = "AUDIT"
)

// DeliveryStatus defines outbox delivery states
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "PENDING"
	DeliveryStatusDelivering DeliveryStatus = "DELIVERING"
	DeliveryStatusDelivered  DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed     DeliveryStatus = "FAILED"
)
