// Package store implements core.Store on PostgreSQL and in memory.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/DataClean/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const uniqueViolation = "23505"

// Postgres stores accounts, uploads and cleaning runs in PostgreSQL.
type Postgres struct {
	db DBTX
}

// NewPostgres returns a store backed by db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

var _ core.Store = (*Postgres)(nil)

func (p *Postgres) CreateUser(ctx context.Context, email, hashedPassword string) (core.User, error) {
	var u core.User
	err := p.db.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password)
		VALUES ($1, $2)
		RETURNING id, email, hashed_password, created_at`,
		email, hashedPassword,
	).Scan(&u.ID, &u.Email, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.User{}, core.ErrEmailTaken
		}
		return core.User{}, dbError("create user", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return p.getUser(ctx, "email = $1", email)
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (core.User, error) {
	return p.getUser(ctx, "id = $1", id)
}

func (p *Postgres) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	var u core.User
	err := p.db.QueryRow(ctx,
		"SELECT id, email, hashed_password, created_at FROM users WHERE "+where, arg,
	).Scan(&u.ID, &u.Email, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		return core.User{}, dbError("get user", err)
	}
	return u, nil
}

func (p *Postgres) UpdatePassword(ctx context.Context, id int64, hashedPassword string) error {
	tag, err := p.db.Exec(ctx, "UPDATE users SET hashed_password = $2 WHERE id = $1", id, hashedPassword)
	if err != nil {
		return dbError("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (p *Postgres) CreateUpload(ctx context.Context, u core.FileUpload) (core.FileUpload, error) {
	err := p.db.QueryRow(ctx, `
		INSERT INTO file_uploads (user_id, original_filename, file_path)
		VALUES ($1, $2, $3)
		RETURNING id, uploaded_at`,
		u.UserID, u.OriginalFilename, u.FilePath,
	).Scan(&u.ID, &u.UploadedAt)
	if err != nil {
		return core.FileUpload{}, dbError("create upload", err)
	}
	return u, nil
}

const uploadColumns = "id, user_id, original_filename, file_path, uploaded_at"

func (p *Postgres) GetUpload(ctx context.Context, id int64) (core.FileUpload, error) {
	rows, err := p.db.Query(ctx, "SELECT "+uploadColumns+" FROM file_uploads WHERE id = $1", id)
	if err != nil {
		return core.FileUpload{}, dbError("get upload", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUpload)
	if err != nil {
		return core.FileUpload{}, dbError("get upload", err)
	}
	return u, nil
}

func (p *Postgres) ListUploads(ctx context.Context, userID int64) ([]core.FileUpload, error) {
	rows, err := p.db.Query(ctx,
		"SELECT "+uploadColumns+" FROM file_uploads WHERE user_id = $1 ORDER BY uploaded_at DESC, id DESC", userID)
	if err != nil {
		return nil, dbError("list uploads", err)
	}
	out, err := pgx.CollectRows(rows, scanUpload)
	if err != nil {
		return nil, dbError("list uploads", err)
	}
	return out, nil
}

func scanUpload(row pgx.CollectableRow) (core.FileUpload, error) {
	var u core.FileUpload
	err := row.Scan(&u.ID, &u.UserID, &u.OriginalFilename, &u.FilePath, &u.UploadedAt)
	return u, err
}

func (p *Postgres) CreateCleaning(ctx context.Context, rec core.CleaningRecord) (core.CleaningRecord, error) {
	err := p.db.QueryRow(ctx, `
		INSERT INTO cleaning_history
			(file_id, user_id, cleaned_file_path, cleaning_steps, instruction, original_rows, cleaned_rows)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		rec.FileID, rec.UserID, rec.CleanedFilePath, rec.CleaningSteps, rec.Instruction,
		rec.OriginalRows, rec.CleanedRows,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return core.CleaningRecord{}, dbError("create cleaning record", err)
	}
	return rec, nil
}

const cleaningColumns = "id, file_id, user_id, cleaned_file_path, cleaning_steps, instruction, original_rows, cleaned_rows, created_at"

func (p *Postgres) GetCleaning(ctx context.Context, id int64) (core.CleaningRecord, error) {
	rows, err := p.db.Query(ctx, "SELECT "+cleaningColumns+" FROM cleaning_history WHERE id = $1", id)
	if err != nil {
		return core.CleaningRecord{}, dbError("get cleaning record", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanCleaning)
	if err != nil {
		return core.CleaningRecord{}, dbError("get cleaning record", err)
	}
	return rec, nil
}

func (p *Postgres) ListCleanings(ctx context.Context, userID int64) ([]core.CleaningRecord, error) {
	rows, err := p.db.Query(ctx,
		"SELECT "+cleaningColumns+" FROM cleaning_history WHERE user_id = $1 ORDER BY created_at, id", userID)
	if err != nil {
		return nil, dbError("list cleaning history", err)
	}
	out, err := pgx.CollectRows(rows, scanCleaning)
	if err != nil {
		return nil, dbError("list cleaning history", err)
	}
	return out, nil
}

func scanCleaning(row pgx.CollectableRow) (core.CleaningRecord, error) {
	var (
		rec               core.CleaningRecord
		original, cleaned pgtype.Int4
	)
	err := row.Scan(&rec.ID, &rec.FileID, &rec.UserID, &rec.CleanedFilePath, &rec.CleaningSteps,
		&rec.Instruction, &original, &cleaned, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	rec.OriginalRows = intFromPg(original)
	rec.CleanedRows = intFromPg(cleaned)
	return rec, nil
}

func intFromPg(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

// dbError maps pgx's no-rows error to core.ErrNotFound. Anything else is
// reported as core.ErrIOFailure with the driver error still wrapped.
func dbError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrIOFailure, err)
}
