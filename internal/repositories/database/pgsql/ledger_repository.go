package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adboard/billing-engine/internal/apperrors"
	"github.com/adboard/billing-engine/internal/core/domain"
	portsrepo "github.com/adboard/billing-engine/internal/core/ports/repositories"
	"github.com/adboard/billing-engine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgxLedgerRepository implements the ledger store adapter on a pgx pool.
// Atomicity rests on two primitives: conditional UPDATE with a balance guard,
// and INSERT ... ON CONFLICT DO NOTHING on the unique correlation id.
type PgxLedgerRepository struct {
	BaseRepository
}

// NewLedgerRepository creates a new repository for ledger data.
func NewLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

func toDomainEntry(m models.LedgerEntry) domain.LedgerEntry {
	return domain.LedgerEntry{
		EntryID:       m.EntryID,
		AccountID:     m.AccountID,
		Amount:        m.Amount,
		CorrelationID: m.CorrelationID,
		Method:        domain.EntryMethod(m.Method),
		Status:        domain.EntryStatus(m.Status),
		Kind:          domain.ChargeKind(m.Kind),
		TxHash:        m.TxHash,
		NetworkFee:    m.NetworkFee,
		Asset:         m.Asset,
		CreatedAt:     m.CreatedAt,
		SettledAt:     m.SettledAt,
	}
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `
		SELECT account_id, kind, balance, created_at, last_updated_at
		FROM accounts
		WHERE account_id = $1;
	`
	var m models.Account
	err := r.Pool.QueryRow(ctx, query, accountID).Scan(
		&m.AccountID, &m.Kind, &m.Balance, &m.CreatedAt, &m.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	acct := domain.Account{
		AccountID:     m.AccountID,
		Kind:          domain.AccountKind(m.Kind),
		Balance:       m.Balance,
		CreatedAt:     m.CreatedAt,
		LastUpdatedAt: m.LastUpdatedAt,
	}
	return &acct, nil
}

// GetBalance reads the current balance of an account.
func (r *PgxLedgerRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.Pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1;`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperrors.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to read balance for account %s: %w", accountID, err)
	}
	return balance, nil
}

// FindEntryByOrderID retrieves a ledger entry by its external correlation id.
func (r *PgxLedgerRepository) FindEntryByOrderID(ctx context.Context, orderID string) (*domain.LedgerEntry, error) {
	query := `
		SELECT entry_id, account_id, amount, correlation_id, method, status, kind, tx_hash, network_fee, asset, created_at, settled_at
		FROM ledger_entries
		WHERE correlation_id = $1;
	`
	var m models.LedgerEntry
	err := r.Pool.QueryRow(ctx, query, orderID).Scan(
		&m.EntryID, &m.AccountID, &m.Amount, &m.CorrelationID, &m.Method, &m.Status,
		&m.Kind, &m.TxHash, &m.NetworkFee, &m.Asset, &m.CreatedAt, &m.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ledger entry %s: %w", orderID, err)
	}
	entry := toDomainEntry(m)
	return &entry, nil
}

// InsertPendingEntry persists a new pending gateway entry.
func (r *PgxLedgerRepository) InsertPendingEntry(ctx context.Context, entry domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (entry_id, account_id, amount, correlation_id, method, status, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.Pool.Exec(ctx, query,
		entry.EntryID, entry.AccountID, entry.Amount, entry.CorrelationID,
		string(entry.Method), string(entry.Status), string(entry.Kind), entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique violation
			return fmt.Errorf("%w: ledger entry with correlation id %s already exists", apperrors.ErrDuplicate, entry.CorrelationID)
		}
		return fmt.Errorf("failed to insert pending entry %s: %w", entry.CorrelationID, err)
	}
	return nil
}

// AtomicAdjustBalance applies delta plus a completed ledger entry keyed by
// idempotencyKey in one transaction. A duplicate key is a no-op reported as
// applied=false; a debit past zero fails with ErrInsufficientBalance.
func (r *PgxLedgerRepository) AtomicAdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal, idempotencyKey string, kind domain.ChargeKind) (decimal.Decimal, bool, error) {
	var newBalance decimal.Decimal
	applied := false
	now := time.Now().UTC()

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		inserted, err := insertCompletedEntry(ctx, tx, accountID, delta, idempotencyKey, kind, now)
		if err != nil {
			return err
		}
		if !inserted {
			return tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1;`, accountID).Scan(&newBalance)
		}
		applied = true
		newBalance, err = adjustBalanceGuarded(ctx, tx, accountID, delta, now)
		return err
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	return newBalance, applied, nil
}

// SettleCredit transitions pending/expired -> completed and credits the
// account, in one transaction. Already-completed entries are a no-op.
func (r *PgxLedgerRepository) SettleCredit(ctx context.Context, orderID string, audit domain.SettlementAudit) (*domain.CreditSettlement, error) {
	settlement := &domain.CreditSettlement{}

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		claim := `
			UPDATE ledger_entries
			SET status = 'completed', settled_at = $2, tx_hash = $3, network_fee = $4, asset = $5
			WHERE correlation_id = $1 AND status IN ('pending', 'expired')
			RETURNING account_id, amount;
		`
		err := tx.QueryRow(ctx, claim, orderID, audit.SettledAt, audit.TxHash, audit.NetworkFee, audit.Asset).
			Scan(&settlement.AccountID, &settlement.Amount)
		if errors.Is(err, pgx.ErrNoRows) {
			// Either unknown or already completed; a concurrent settle loses the
			// claim above and lands here as a duplicate.
			var status string
			lookup := `SELECT account_id, amount, status FROM ledger_entries WHERE correlation_id = $1;`
			if err := tx.QueryRow(ctx, lookup, orderID).Scan(&settlement.AccountID, &settlement.Amount, &status); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.ErrNotFound
				}
				return fmt.Errorf("failed to look up entry %s: %w", orderID, err)
			}
			if status != string(domain.StatusCompleted) {
				return fmt.Errorf("entry %s in unexpected status %s", orderID, status)
			}
			settlement.AlreadyApplied = true
			return tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1;`, settlement.AccountID).Scan(&settlement.NewBalance)
		}
		if err != nil {
			return fmt.Errorf("failed to claim entry %s: %w", orderID, err)
		}

		credit := `
			UPDATE accounts
			SET balance = balance + $2, last_updated_at = $3
			WHERE account_id = $1
			RETURNING balance;
		`
		if err := tx.QueryRow(ctx, credit, settlement.AccountID, settlement.Amount, audit.SettledAt).Scan(&settlement.NewBalance); err != nil {
			return fmt.Errorf("failed to credit account %s: %w", settlement.AccountID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// ChargeListing debits the fee, records a completed internal entry, and
// applies the listing state change atomically.
func (r *PgxLedgerRepository) ChargeListing(ctx context.Context, params portsrepo.ChargeListingParams) (*domain.ChargeOutcome, error) {
	outcome := &domain.ChargeOutcome{}

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		inserted, err := insertCompletedEntry(ctx, tx, params.AccountID, params.Fee.Neg(), params.CorrelationID, params.Kind, params.Now)
		if err != nil {
			return err
		}
		if !inserted {
			outcome.AlreadyApplied = true
			return tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1;`, params.AccountID).Scan(&outcome.NewBalance)
		}

		outcome.NewBalance, err = adjustBalanceGuarded(ctx, tx, params.AccountID, params.Fee.Neg(), params.Now)
		if err != nil {
			return err
		}

		update := `
			UPDATE listings
			SET is_active = CASE WHEN $2 THEN TRUE ELSE is_active END,
			    last_charged_at = CASE WHEN $3 THEN $5 ELSE last_charged_at END,
			    boost_until = COALESCE($4, boost_until),
			    last_updated_at = $5
			WHERE listing_id = $1;
		`
		tag, err := tx.Exec(ctx, update, params.ListingID, params.Activate, params.SetLastCharged, params.BoostUntil, params.Now)
		if err != nil {
			return fmt.Errorf("failed to update listing %s: %w", params.ListingID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, params.ListingID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ExpirePendingEntries flips pending entries created before cutoff to expired.
func (r *PgxLedgerRepository) ExpirePendingEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.Pool.Exec(ctx, `UPDATE ledger_entries SET status = 'expired' WHERE status = 'pending' AND created_at < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// insertCompletedEntry inserts a completed internal entry, reporting false on
// an idempotency-key conflict. Runs inside the caller's transaction.
func insertCompletedEntry(ctx context.Context, tx pgx.Tx, accountID string, amount decimal.Decimal, correlationID string, kind domain.ChargeKind, now time.Time) (bool, error) {
	query := `
		INSERT INTO ledger_entries (entry_id, account_id, amount, correlation_id, method, status, kind, created_at, settled_at)
		VALUES ($1, $2, $3, $4, 'internal', 'completed', $5, $6, $6)
		ON CONFLICT (correlation_id) DO NOTHING;
	`
	tag, err := tx.Exec(ctx, query, uuid.NewString(), accountID, amount, correlationID, string(kind), now)
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry %s: %w", correlationID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// adjustBalanceGuarded applies delta without letting the balance go negative.
// The guard in the WHERE clause is what keeps concurrent debits from both
// passing a read-then-write check.
func adjustBalanceGuarded(ctx context.Context, tx pgx.Tx, accountID string, delta decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, last_updated_at = $3
		WHERE account_id = $1 AND balance + $2 >= 0
		RETURNING balance;
	`
	var newBalance decimal.Decimal
	err := tx.QueryRow(ctx, query, accountID, delta, now).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish missing accounts from balance shortfall.
		var exists bool
		if probeErr := tx.QueryRow(ctx, `SELECT TRUE FROM accounts WHERE account_id = $1;`, accountID).Scan(&exists); probeErr != nil {
			if errors.Is(probeErr, pgx.ErrNoRows) {
				return decimal.Zero, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
			}
			return decimal.Zero, fmt.Errorf("failed to probe account %s: %w", accountID, probeErr)
		}
		return decimal.Zero, apperrors.ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust balance for account %s: %w", accountID, err)
	}
	return newBalance, nil
}
