package domain

// Status is shared by accounts and clients.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Operation is the kind of ledger mutation a transaction requests.
type Operation string

const (
	OperationCredit   Operation = "credit"
	OperationDebit    Operation = "debit"
	OperationReserve  Operation = "reserve"
	OperationCapture  Operation = "capture"
	OperationReversal Operation = "reversal"
	OperationTransfer Operation = "transfer"
)

// Operations lists every supported operation in a stable order.
var Operations = []Operation{
	OperationCredit,
	OperationDebit,
	OperationReserve,
	OperationCapture,
	OperationReversal,
	OperationTransfer,
}

// TransactionStatus is the lifecycle state of a transaction record.
type TransactionStatus string

const (
	TxStatusPending TransactionStatus = "pending"
	TxStatusSuccess TransactionStatus = "success"
	TxStatusFailed  TransactionStatus = "failed"
)

// Metadata keys that link operations to other records.
const (
	MetadataDestinationAccountID = "destination_account_id"
	MetadataOriginalReferenceID  = "original_reference_id"
)

const (
	MaxReferenceIDLength  = 100
	MaxErrorMessageLength = 500
	MaxMetadataBytes      = 4000
	DefaultMaxAccounts    = 10
)
