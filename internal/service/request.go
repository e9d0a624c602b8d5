package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var referenceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var suspiciousMetadataPatterns = []string{
	"<script",
	"javascript:",
	"onload=",
	"onerror=",
	"eval(",
	"function(",
}

// ValidationError reports malformed input. Nothing is persisted for it.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Command is a validated, typed transaction request.
type Command struct {
	Operation   domain.Operation
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	ReferenceID string
	Metadata    map[string]any
}

// RequestValidator applies format and range rules to inbound requests.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator registers the ledger-specific validation tags.
func NewRequestValidator() *RequestValidator {
	vld := validator.New(validator.WithRequiredStructEnabled())
	vld.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(vld, "operation", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseOperation(fl.Field().String())
		return err == nil
	})
	mustRegister(vld, "amount", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && domain.IsValidTransactionAmount(value)
	})
	mustRegister(vld, "currency", func(fl validator.FieldLevel) bool {
		return domain.IsSupportedCurrency(fl.Field().String())
	})
	mustRegister(vld, "reference", func(fl validator.FieldLevel) bool {
		return referenceIDPattern.MatchString(fl.Field().String())
	})
	mustRegister(vld, "metadata", func(fl validator.FieldLevel) bool {
		metadata, ok := fl.Field().Interface().(map[string]any)
		return ok && metadataIsSafe(metadata)
	})
	vld.RegisterStructValidation(validateLinkage, models.ProcessTransactionRequest{})

	return &RequestValidator{validate: vld}
}

func mustRegister(vld *validator.Validate, tag string, fn validator.Func) {
	if err := vld.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// metadataIsSafe bounds the encoded size and rejects script-like content in
// any key or string value, nested ones included.
func metadataIsSafe(metadata map[string]any) bool {
	if len(metadata) == 0 {
		return true
	}
	encoded, err := json.Marshal(metadata)
	if err != nil || len(encoded) > domain.MaxMetadataBytes {
		return false
	}
	return !containsSuspicious(metadata)
}

func containsSuspicious(v any) bool {
	switch val := v.(type) {
	case string:
		lowered := strings.ToLower(val)
		for _, pattern := range suspiciousMetadataPatterns {
			if strings.Contains(lowered, pattern) {
				return true
			}
		}
	case map[string]any:
		for k, item := range val {
			if containsSuspicious(k) || containsSuspicious(item) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if containsSuspicious(item) {
				return true
			}
		}
	}
	return false
}

func validateLinkage(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.ProcessTransactionRequest)
	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		return
	}
	switch op {
	case domain.OperationTransfer:
		dest, ok := req.Metadata[domain.MetadataDestinationAccountID].(string)
		id, parseErr := uuid.Parse(strings.TrimSpace(dest))
		switch {
		case !ok || parseErr != nil:
			sl.ReportError(req.Metadata, "metadata", "Metadata", "destination", "")
		case strings.EqualFold(id.String(), strings.TrimSpace(req.AccountID)):
			sl.ReportError(req.Metadata, "metadata", "Metadata", "distinct_destination", "")
		}
	case domain.OperationReversal:
		original, ok := req.Metadata[domain.MetadataOriginalReferenceID].(string)
		if !ok || strings.TrimSpace(original) == "" {
			sl.ReportError(req.Metadata, "metadata", "Metadata", "original_reference", "")
		}
	}
}

var fieldMessages = map[string]string{
	"required":             "is required",
	"uuid":                 "must be a valid UUID",
	"operation":            "must be one of credit, debit, reserve, capture, reversal, transfer",
	"amount":               "must be greater than 0, at most 10000000 and have at most 2 decimal places",
	"currency":             "must be one of BRL, USD, EUR",
	"len":                  "must be exactly 3 characters",
	"max":                  "is too long",
	"reference":            "may only contain letters, digits, '-' and '_'",
	"metadata":             "must be at most 4000 bytes of JSON without script content",
	"destination":          "transfer requires a valid destination_account_id",
	"distinct_destination": "destination_account_id must differ from account_id",
	"original_reference":   "reversal requires original_reference_id",
	"email":                "must be a valid email",
	"oneof":                "has an unsupported value",
}

func (v *RequestValidator) check(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %q check", fe.Tag())
		}
		if _, exists := out.Fields[fe.Field()]; !exists {
			out.Fields[fe.Field()] = msg
		}
	}
	return out
}

// Parse validates a transaction request and converts it into a Command.
func (v *RequestValidator) Parse(req models.ProcessTransactionRequest) (Command, error) {
	if err := v.check(req); err != nil {
		return Command{}, err
	}
	if !domain.IsValidTransactionAmount(req.Amount) {
		return Command{}, newValidationError("amount", fieldMessages["amount"])
	}
	op, _ := domain.ParseOperation(req.Operation)
	accountID, _ := uuid.Parse(req.AccountID)

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	return Command{
		Operation:   op,
		AccountID:   accountID,
		Amount:      req.Amount,
		Currency:    currency,
		ReferenceID: req.ReferenceID,
		Metadata:    req.Metadata,
	}, nil
}

// ValidateAccountRequest checks the shape of an account creation request.
func (v *RequestValidator) ValidateAccountRequest(req models.CreateAccountRequest) error {
	return v.check(req)
}

// ParseStatus validates a status update request.
func (v *RequestValidator) ParseStatus(req models.UpdateStatusRequest) (domain.Status, error) {
	if err := v.check(req); err != nil {
		return "", err
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return "", newValidationError("status", err.Error())
	}
	return status, nil
}
