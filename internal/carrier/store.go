package carrier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"
)

// ProfileClient round-trips the carrier account list through the remote
// customer profile. The backend field is one flat serialized collection, so
// callers always pass the complete desired list, never a delta.
type ProfileClient interface {
	CustomerCarrierAccounts(ctx context.Context, customerToken string) ([]entities.CarrierAccountRecord, error)
	SaveCustomerCarrierAccounts(ctx context.Context, customerToken string, records []entities.CarrierAccountRecord) error
}

// Store keeps saved carrier accounts on the customer profile when a
// credential is present and in the local table otherwise.
type Store struct {
	logger  *slog.Logger
	profile ProfileClient
	tx      trm.Manager
	db      *sqlx.DB
	qb      sq.StatementBuilderType
}

func NewStore(logger *slog.Logger, profile ProfileClient, tx trm.Manager, db *sqlx.DB) *Store {
	return &Store{
		logger:  logger.With(slog.String("store", "carrier")),
		profile: profile,
		tx:      tx,
		db:      db,
		qb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) List(ctx context.Context, deviceID, customerToken string) ([]entities.CarrierAccountRecord, error) {
	if customerToken != "" {
		return s.profile.CustomerCarrierAccounts(ctx, customerToken)
	}
	return s.listLocal(ctx, deviceID)
}

// Save replaces the stored list. A false return means nothing was changed
// and the caller should roll back its optimistic in-memory state.
func (s *Store) Save(ctx context.Context, deviceID, customerToken string, records []entities.CarrierAccountRecord) bool {
	var err error
	if customerToken != "" {
		err = s.profile.SaveCustomerCarrierAccounts(ctx, customerToken, records)
	} else {
		err = s.saveLocal(ctx, deviceID, records)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save carrier accounts",
			slog.Any("error", err),
			slog.Int("count", len(records)),
		)
		return false
	}
	return true
}

type record struct {
	ID            string         `db:"id"`
	DeviceID      string         `db:"device_id"`
	Nickname      sql.NullString `db:"nickname"`
	Carrier       string         `db:"carrier"`
	AccountNumber string         `db:"account_number"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (s *Store) listLocal(ctx context.Context, deviceID string) ([]entities.CarrierAccountRecord, error) {
	query, args := s.qb.Select("id", "device_id", "nickname", "carrier", "account_number", "created_at").
		From("carrier_accounts").
		Where(sq.Eq{"device_id": deviceID}).
		OrderBy("created_at").
		MustSql()

	var rows []record
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select carrier accounts: %w", err)
	}

	records := make([]entities.CarrierAccountRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, entities.CarrierAccountRecord{
			ID:            r.ID,
			Nickname:      r.Nickname.String,
			Carrier:       entities.CarrierKind(r.Carrier),
			AccountNumber: r.AccountNumber,
		})
	}
	return records, nil
}

// saveLocal mirrors the profile's replace-the-collection semantics:
// delete plus insert inside one transaction, so a failure leaves the
// previously stored list intact.
func (s *Store) saveLocal(ctx context.Context, deviceID string, records []entities.CarrierAccountRecord) error {
	return s.tx.Do(ctx, func(ctx context.Context) error {
		query, args := s.qb.Delete("carrier_accounts").
			Where(sq.Eq{"device_id": deviceID}).
			MustSql()
		if _, err := s.execContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete carrier accounts: %w", err)
		}

		if len(records) == 0 {
			return nil
		}

		q := s.qb.Insert("carrier_accounts").
			Columns("id", "device_id", "nickname", "carrier", "account_number", "created_at")
		now := time.Now()
		for _, r := range records {
			q = q.Values(r.ID, deviceID, nullString(r.Nickname), string(r.Carrier), r.AccountNumber, now)
		}

		query, args = q.MustSql()
		if _, err := s.execContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert carrier accounts: %w", err)
		}
		return nil
	})
}

func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
