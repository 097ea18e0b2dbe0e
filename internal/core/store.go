package core

import (
	"context"
	"time"
)

// User is a registered account.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// FileUpload is an original CSV stored for a user.
type FileUpload struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	OriginalFilename string    `json:"filename"`
	FilePath         string    `json:"-"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// CleaningRecord is one persisted cleaning run.
//
// CleaningSteps holds the encoded step log. Rows written before row counts
// were recorded have nil OriginalRows and CleanedRows.
type CleaningRecord struct {
	ID              int64     `json:"id"`
	FileID          int64     `json:"file_id"`
	UserID          int64     `json:"user_id"`
	CleanedFilePath string    `json:"cleaned_file"`
	CleaningSteps   string    `json:"cleaning_steps"`
	Instruction     string    `json:"instruction"`
	OriginalRows    *int      `json:"original_rows,omitempty"`
	CleanedRows     *int      `json:"cleaned_rows,omitempty"`
	CreatedAt       time.Time `json:"cleaned_at"`
}

// Store persists users, uploads and cleaning history.
//
// Lookups return an error wrapping ErrNotFound when no row matches, and
// CreateUser returns one wrapping ErrEmailTaken on a duplicate email.
type Store interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdatePassword(ctx context.Context, id int64, hashedPassword string) error

	CreateUpload(ctx context.Context, u FileUpload) (FileUpload, error)
	GetUpload(ctx context.Context, id int64) (FileUpload, error)
	ListUploads(ctx context.Context, userID int64) ([]FileUpload, error)

	CreateCleaning(ctx context.Context, rec CleaningRecord) (CleaningRecord, error)
	GetCleaning(ctx context.Context, id int64) (CleaningRecord, error)
	ListCleanings(ctx context.Context, userID int64) ([]CleaningRecord, error)
}
