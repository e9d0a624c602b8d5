package domain

import (
	"strings"

	"github.com/google/uuid"
)

// OperationMetadata is the typed linkage data an operation carries.
type OperationMetadata interface {
	operation() Operation
}

type TransferMetadata struct {
	DestinationAccountID uuid.UUID
}

func (TransferMetadata) operation() Operation { return OperationTransfer }

type ReversalMetadata struct {
	OriginalReferenceID string
}

func (ReversalMetadata) operation() Operation { return OperationReversal }

// DecodeMetadata converts the free-form request metadata into the variant the
// operation needs. Operations without linkage data return nil.
func DecodeMetadata(op Operation, raw map[string]any) (OperationMetadata, error) {
	switch op {
	case OperationTransfer:
		value, ok := stringValue(raw, MetadataDestinationAccountID)
		if !ok {
			return nil, Reject(CodeInvalidMetadata, "transfer requires metadata %s", MetadataDestinationAccountID)
		}
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, Reject(CodeInvalidMetadata, "%s is not a valid account id", MetadataDestinationAccountID)
		}
		return TransferMetadata{DestinationAccountID: id}, nil
	case OperationReversal:
		value, ok := stringValue(raw, MetadataOriginalReferenceID)
		if !ok {
			return nil, Reject(CodeInvalidMetadata, "reversal requires metadata %s", MetadataOriginalReferenceID)
		}
		return ReversalMetadata{OriginalReferenceID: value}, nil
	default:
		return nil, nil
	}
}

func stringValue(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}
