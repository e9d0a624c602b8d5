package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReplayCache stores terminal transaction results keyed by reference id.
// Implementations swallow their own failures.
type ReplayCache interface {
	Get(ctx context.Context, referenceID string) (*models.TransactionResponse, bool)
	Put(ctx context.Context, resp *models.TransactionResponse)
}

// TransactionService is the transaction orchestrator: it enforces idempotency,
// takes the account locks, dispatches to the operation handler and commits.
type TransactionService struct {
	store     domain.Store
	gate      *ValidationGate
	validator *RequestValidator
	observer  Observer
	cache     ReplayCache
	now       func() time.Time
}

func NewTransactionService(store domain.Store, observer Observer) *TransactionService {
	if observer == nil {
		observer = Observers(nil)
	}
	return &TransactionService{
		store:     store,
		gate:      NewValidationGate(store.Reader()),
		validator: NewRequestValidator(),
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithReplayCache enables the read-through cache for idempotent replays.
func (s *TransactionService) WithReplayCache(cache ReplayCache) *TransactionService {
	s.cache = cache
	return s
}

// Gate exposes the validation gate for read-only checks.
func (s *TransactionService) Gate() *ValidationGate {
	return s.gate
}

// ProcessTransaction applies one operation request. Business outcomes,
// including rejections and replays, are returned as a response with a nil
// error. Malformed requests return *ValidationError; infrastructure failures
// return an error classified by domain.IsRetryable, and nothing is persisted.
func (s *TransactionService) ProcessTransaction(ctx context.Context, req models.ProcessTransactionRequest) (*models.TransactionResponse, error) {
	start := time.Now()
	cmd, err := s.validator.Parse(req)
	if err != nil {
		s.observer.Observe(ctx, Event{
			Type:        EventRequestRejected,
			OccurredAt:  s.now(),
			ReferenceID: req.ReferenceID,
			Operation:   domain.Operation(req.Operation),
			ErrorCode:   domain.CodeValidationFailed,
			Err:         err,
		})
		return nil, err
	}

	s.observer.Observe(ctx, s.commandEvent(EventTransactionAttempted, cmd))

	if resp, ok, err := s.lookupReplay(ctx, cmd); err != nil {
		return nil, s.abort(ctx, cmd, start, err)
	} else if ok {
		return resp, nil
	}

	verdict, err := s.gate.Validate(ctx, cmd.AccountID, cmd.Amount, cmd.Operation)
	if err != nil {
		return nil, s.abort(ctx, cmd, start, err)
	}
	if !verdict.Valid && verdict.ErrorCode == domain.CodeAccountNotFound {
		return s.synthesizeFailure(ctx, cmd, start, verdict.ErrorCode, verdict.ErrorMessage), nil
	}

	var (
		outcome *domain.Transaction
		replay  *domain.Transaction
	)
	err = s.store.RunInTx(ctx, func(uow domain.UnitOfWork) error {
		var txErr error
		outcome, replay, txErr = s.execute(ctx, uow, cmd, verdict)
		return txErr
	})

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return s.synthesizeFailure(ctx, cmd, start, domain.CodeAccountNotFound, fmt.Sprintf("account %s not found", cmd.AccountID)), nil
	case errors.Is(err, domain.ErrDuplicateReference):
		// A concurrent request with the same reference id committed first.
		existing, lookupErr := s.store.Reader().GetTransactionByReferenceID(ctx, cmd.ReferenceID)
		if lookupErr != nil {
			return nil, s.abort(ctx, cmd, start, fmt.Errorf("load concurrent duplicate: %w", lookupErr))
		}
		return s.replayed(ctx, cmd, existing), nil
	case err != nil:
		return nil, s.abort(ctx, cmd, start, err)
	case replay != nil:
		return s.replayed(ctx, cmd, replay), nil
	}

	resp := models.NewTransactionResponse(outcome)
	if s.cache != nil {
		s.cache.Put(ctx, resp)
	}

	eventType := EventTransactionSucceeded
	if outcome.Status == domain.TxStatusFailed {
		eventType = EventTransactionFailed
	}
	event := transactionEvent(eventType, outcome)
	event.Duration = time.Since(start)
	s.observer.Observe(ctx, event)

	return resp, nil
}

// execute runs inside the unit of work. It returns either the finalized
// transaction or an already-committed transaction to replay.
func (s *TransactionService) execute(ctx context.Context, uow domain.UnitOfWork, cmd Command, verdict ValidationResult) (*domain.Transaction, *domain.Transaction, error) {
	meta, metaErr := domain.DecodeMetadata(cmd.Operation, cmd.Metadata)

	var original *domain.Transaction
	if m, ok := meta.(domain.ReversalMetadata); ok {
		found, err := uow.GetTransactionByReferenceID(ctx, m.OriginalReferenceID)
		switch {
		case err == nil:
			original = found
		case !errors.Is(err, domain.ErrTransactionNotFound):
			return nil, nil, fmt.Errorf("load original transaction: %w", err)
		}
	}

	accounts, err := lockAccounts(ctx, uow, lockSet(cmd.AccountID, meta, original))
	if err != nil {
		return nil, nil, err
	}
	source, ok := accounts[cmd.AccountID]
	if !ok {
		return nil, nil, domain.ErrAccountNotFound
	}

	// Re-check under the lock: a concurrent request with this reference id
	// may have committed while we waited.
	existing, err := uow.GetTransactionByReferenceID(ctx, cmd.ReferenceID)
	if err == nil {
		return nil, existing, nil
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, nil, fmt.Errorf("check reference id: %w", err)
	}

	tx := domain.NewTransaction(cmd.AccountID, cmd.ReferenceID, cmd.Operation, cmd.Amount, cmd.Currency, cmd.Metadata, s.now())
	if err := uow.CreateTransaction(ctx, tx); err != nil {
		return nil, nil, fmt.Errorf("create transaction: %w", err)
	}

	before := *source
	op := &operation{
		uow:      uow,
		tx:       tx,
		meta:     meta,
		original: original,
		accounts: accounts,
	}

	opErr := s.dispatch(ctx, op, verdict, metaErr)
	if opErr != nil {
		rej, ok := domain.AsRejection(opErr)
		if !ok {
			return nil, nil, opErr
		}
		if err := tx.MarkAsFailed(rej.Code, rej.Message, s.now()); err != nil {
			return nil, nil, err
		}
		tx.RecordBalances(before)
	} else {
		for _, acc := range op.touched {
			if err := uow.SaveAccount(ctx, acc); err != nil {
				return nil, nil, fmt.Errorf("save account %s: %w", acc.ID, err)
			}
		}
		if err := tx.MarkAsSuccess(s.now()); err != nil {
			return nil, nil, err
		}
		tx.RecordBalances(*op.source())
	}

	if err := uow.SaveTransaction(ctx, tx); err != nil {
		return nil, nil, fmt.Errorf("finalize transaction: %w", err)
	}
	return tx, nil, nil
}

// dispatch re-checks status under the lock, applies any advisory gate
// rejection and then runs the operation handler.
func (s *TransactionService) dispatch(ctx context.Context, op *operation, verdict ValidationResult, metaErr error) error {
	source := op.source()
	if !source.IsActive() {
		return domain.Reject(domain.CodeAccountInactive, "account %s is %s", source.ID, source.Status)
	}
	client, err := op.uow.GetClient(ctx, source.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return domain.Reject(domain.CodeClientInactive, "client %s not found", source.ClientID)
		}
		return fmt.Errorf("get client: %w", err)
	}
	if !client.IsActive() {
		return domain.Reject(domain.CodeClientInactive, "client %s is %s", client.ID, client.Status)
	}
	if !verdict.Valid {
		return domain.Reject(verdict.ErrorCode, "%s", verdict.ErrorMessage)
	}
	if metaErr != nil {
		return metaErr
	}

	handler, ok := operationHandlers[op.tx.Operation]
	if !ok {
		return domain.Reject(domain.CodeUnsupportedOperation, "unsupported operation %s", op.tx.Operation)
	}
	return handler(ctx, op)
}

// lockSet lists every account the operation may mutate.
func lockSet(source uuid.UUID, meta domain.OperationMetadata, original *domain.Transaction) []uuid.UUID {
	ids := []uuid.UUID{source}
	switch m := meta.(type) {
	case domain.TransferMetadata:
		ids = append(ids, m.DestinationAccountID)
	case domain.ReversalMetadata:
		if original == nil || original.Operation != domain.OperationTransfer {
			break
		}
		if om, err := domain.DecodeMetadata(domain.OperationTransfer, original.Metadata); err == nil {
			ids = append(ids, om.(domain.TransferMetadata).DestinationAccountID)
		}
	}
	return ids
}

// lockAccounts locks accounts in ascending id order so concurrent multi-account
// operations cannot deadlock. Missing accounts are left out of the result.
func lockAccounts(ctx context.Context, uow domain.UnitOfWork, ids []uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].String() < unique[j].String() })

	locked := make(map[uuid.UUID]*domain.Account, len(unique))
	for _, id := range unique {
		acc, err := uow.GetAccountForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		locked[id] = acc
	}
	return locked, nil
}

func (s *TransactionService) lookupReplay(ctx context.Context, cmd Command) (*models.TransactionResponse, bool, error) {
	if s.cache != nil {
		if resp, ok := s.cache.Get(ctx, cmd.ReferenceID); ok {
			resp.Replayed = true
			s.observeReplay(ctx, cmd, resp)
			return resp, true, nil
		}
	}

	existing, err := s.store.Reader().GetTransactionByReferenceID(ctx, cmd.ReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup reference id: %w", err)
	}
	return s.replayed(ctx, cmd, existing), true, nil
}

func (s *TransactionService) replayed(ctx context.Context, cmd Command, tx *domain.Transaction) *models.TransactionResponse {
	resp := models.NewTransactionResponse(tx)
	if s.cache != nil {
		s.cache.Put(ctx, resp)
	}
	resp.Replayed = true
	if tx.AccountID != cmd.AccountID || tx.Operation != cmd.Operation || !tx.Amount.Equal(cmd.Amount) {
		zap.L().Warn("reference id replayed with a different payload",
			zap.String("reference_id", cmd.ReferenceID),
			zap.String("stored_operation", string(tx.Operation)),
			zap.String("requested_operation", string(cmd.Operation)),
		)
	}
	s.observeReplay(ctx, cmd, resp)
	return resp
}

func (s *TransactionService) observeReplay(ctx context.Context, cmd Command, resp *models.TransactionResponse) {
	event := s.commandEvent(EventTransactionReplayed, cmd)
	event.TransactionID = resp.TransactionID
	event.ErrorCode = domain.ErrorCode(resp.ErrorCode)
	s.observer.Observe(ctx, event)
}

// synthesizeFailure answers requests that could not be attached to an
// account. The response is not persisted.
func (s *TransactionService) synthesizeFailure(ctx context.Context, cmd Command, start time.Time, code domain.ErrorCode, message string) *models.TransactionResponse {
	event := s.commandEvent(EventTransactionFailed, cmd)
	event.ErrorCode = code
	event.ErrorMessage = message
	event.Duration = time.Since(start)
	s.observer.Observe(ctx, event)

	zero := domain.FormatAmount(decimal.Zero)
	return &models.TransactionResponse{
		ReferenceID:      cmd.ReferenceID,
		AccountID:        cmd.AccountID,
		Operation:        string(cmd.Operation),
		Status:           string(domain.TxStatusFailed),
		Balance:          zero,
		ReservedBalance:  zero,
		AvailableBalance: zero,
		Timestamp:        s.now(),
		ErrorCode:        string(code),
		ErrorMessage:     message,
	}
}

func (s *TransactionService) abort(ctx context.Context, cmd Command, start time.Time, err error) error {
	event := s.commandEvent(EventTransactionAborted, cmd)
	event.ErrorCode = domain.InfrastructureCode(err)
	event.ErrorMessage = err.Error()
	event.Duration = time.Since(start)
	event.Err = err
	s.observer.Observe(ctx, event)
	return fmt.Errorf("process transaction %s: %w", cmd.ReferenceID, err)
}

func (s *TransactionService) commandEvent(t EventType, cmd Command) Event {
	return Event{
		Type:        t,
		OccurredAt:  s.now(),
		AccountID:   cmd.AccountID,
		ReferenceID: cmd.ReferenceID,
		Operation:   cmd.Operation,
		Amount:      cmd.Amount,
		Currency:    cmd.Currency,
	}
}

// GetTransaction looks up a transaction by its reference id.
func (s *TransactionService) GetTransaction(ctx context.Context, referenceID string) (*models.TransactionResponse, error) {
	tx, err := s.store.Reader().GetTransactionByReferenceID(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", referenceID, err)
	}
	return models.NewTransactionResponse(tx), nil
}
