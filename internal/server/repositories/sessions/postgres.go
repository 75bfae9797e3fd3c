package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, s *models.Session) error {
	flashes, err := json.Marshal(nonNilFlashes(s.Flashes))
	if err != nil {
		return fmt.Errorf("marshal flashes: %w", err)
	}

	var userID sql.NullInt64
	if s.UserID != nil {
		userID = sql.NullInt64{Int64: *s.UserID, Valid: true}
	}

	query := `
		INSERT INTO sessions (id, user_id, flashes, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    flashes = EXCLUDED.flashes,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, s.ID, userID, flashes, s.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, user_id, flashes, expires_at, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`
	var (
		s       models.Session
		userID  sql.NullInt64
		flashes []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &userID, &flashes, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if userID.Valid {
		s.UserID = &userID.Int64
	}
	if len(flashes) > 0 {
		if err := json.Unmarshal(flashes, &s.Flashes); err != nil {
			return nil, fmt.Errorf("unmarshal flashes: %w", err)
		}
	}
	return &s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
}

func (r *PostgresRepository) deleteWhere(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func nonNilFlashes(f []models.Flash) []models.Flash {
	if f == nil {
		return []models.Flash{}
	}
	return f
}
