package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const referenceIDConstraint = "transactions_reference_id_key"

// mapError translates PostgreSQL failures into the domain's infrastructure
// sentinels, keeping the driver error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == referenceIDConstraint:
			return fmt.Errorf("%w: %w", domain.ErrDuplicateReference, err)
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		case pgErr.Code == "55P03":
			return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
		case pgErr.Code == "40P01" || pgErr.Code == "40001":
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P"):
			return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
