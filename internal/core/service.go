package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/DataClean/internal/auth"
	"github.com/JonMunkholm/DataClean/internal/cleaning"
	"github.com/JonMunkholm/DataClean/internal/dataset"
	"github.com/JonMunkholm/DataClean/internal/logging"
	"github.com/JonMunkholm/DataClean/internal/report"
)

// DefaultInstruction is recorded when a cleaning request carries no prompt.
const DefaultInstruction = "Please clean this file with the necessary steps."

// DefaultCleanTimeout bounds a single cleaning run.
const DefaultCleanTimeout = 2 * time.Minute

// Options configures a Service.
type Options struct {
	CleanTimeout    time.Duration
	MaxConcurrent   int
	MaxWait         time.Duration
	IdentityColumns []string
}

// Service provides the business logic behind the HTTP API.
type Service struct {
	store   Store
	uploads FileStore
	cleaned FileStore
	tokens  *auth.TokenManager
	limiter *JobLimiter
	opts    Options
}

// NewService wires a Service. uploads holds original files and cleaned holds
// pipeline output.
func NewService(store Store, uploads, cleaned FileStore, tokens *auth.TokenManager, opts Options) *Service {
	if opts.CleanTimeout <= 0 {
		opts.CleanTimeout = DefaultCleanTimeout
	}
	return &Service{
		store:   store,
		uploads: uploads,
		cleaned: cleaned,
		tokens:  tokens,
		limiter: NewJobLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
	}
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	u, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		return User{}, fmt.Errorf("register %s: %w", email, err)
	}
	logging.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and returns a bearer token. Accounts still on a
// legacy password hash are rehashed with bcrypt on success.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if !auth.VerifyPassword(u.HashedPassword, password) {
		return "", auth.ErrInvalidCredentials
	}

	if auth.IsLegacyHash(u.HashedPassword) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
				logging.FromContext(ctx).Warn("rehash legacy password failed", "user_id", u.ID, "error", err)
			}
		}
	}

	return s.tokens.Issue(u.ID, u.Email)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return User{}, err
	}
	u, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return User{}, auth.ErrInvalidToken
	}
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}
	if u.Email != claims.Email {
		return User{}, auth.ErrInvalidToken
	}
	return u, nil
}

// Upload stores an original CSV for userID.
func (s *Service) Upload(ctx context.Context, userID int64, filename string, r io.Reader) (FileUpload, error) {
	filename = SafeName(filename)
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return FileUpload{}, fmt.Errorf("%w: only csv files are allowed", ErrInvalidRequest)
	}

	path, err := s.uploads.Save(filename, r)
	if err != nil {
		return FileUpload{}, err
	}

	up, err := s.store.CreateUpload(ctx, FileUpload{
		UserID:           userID,
		OriginalFilename: filename,
		FilePath:         path,
	})
	if err != nil {
		if rmErr := s.uploads.Remove(path); rmErr != nil {
			logging.FromContext(ctx).Warn("remove orphaned upload failed", "path", path, "error", rmErr)
		}
		return FileUpload{}, fmt.Errorf("record upload: %w", err)
	}

	logging.FromContext(ctx).Info("file uploaded", "file_id", up.ID, "filename", filename)
	return up, nil
}

// ListUploads returns userID's uploads, newest first.
func (s *Service) ListUploads(ctx context.Context, userID int64) ([]FileUpload, error) {
	return s.store.ListUploads(ctx, userID)
}

// AgentResponse narrates a run in the shape clients of the cleaning
// endpoint expect. Every line is derived from the recorded steps.
type AgentResponse struct {
	Thinking      []string `json:"thinking"`
	StepsTaken    []string `json:"steps_taken"`
	FinalThoughts string   `json:"final_thoughts"`
}

// CleanResult is returned by Clean.
type CleanResult struct {
	Record      CleaningRecord
	Run         cleaning.Run
	CleanedFile string
	Agent       AgentResponse
}

// Clean runs the pipeline over one of userID's uploads, stores the cleaned
// file and records the run.
func (s *Service) Clean(ctx context.Context, userID, fileID int64, instruction string) (*CleanResult, error) {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}

	up, err := s.ownedUpload(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.CleanTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "file_id", fileID)
	start := time.Now()

	ds, err := loadDataset(s.uploads, up.FilePath)
	if err != nil {
		return nil, fmt.Errorf("load file %d: %w", fileID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, run, err := cleaning.Clean(ds, instruction, cleaning.Options{IdentityColumns: s.opts.IdentityColumns})
	if err != nil {
		if step, ok := cleaning.FailedStep(err); ok {
			logger.Warn("cleaning step failed", "step", step, "error", err)
		}
		return nil, fmt.Errorf("clean file %d: %w", fileID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dataset.Write(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: encode cleaned file: %v", ErrIOFailure, err)
	}
	path, err := s.cleaned.Save("cleaned_"+up.OriginalFilename, &buf)
	if err != nil {
		return nil, err
	}

	steps, err := json.Marshal(run)
	if err != nil {
		s.removeCleaned(ctx, path)
		return nil, fmt.Errorf("encode step log: %w", err)
	}

	rec, err := s.store.CreateCleaning(ctx, CleaningRecord{
		FileID:          up.ID,
		UserID:          userID,
		CleanedFilePath: path,
		CleaningSteps:   string(steps),
		Instruction:     instruction,
		OriginalRows:    &run.OriginalRows,
		CleanedRows:     &run.CleanedRows,
	})
	if err != nil {
		s.removeCleaned(ctx, path)
		return nil, fmt.Errorf("record cleaning of file %d: %w", fileID, err)
	}

	logger.Info("file cleaned",
		"cleaned_id", rec.ID,
		"original_rows", run.OriginalRows,
		"cleaned_rows", run.CleanedRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &CleanResult{
		Record:      rec,
		Run:         run,
		CleanedFile: filepath.Base(path),
		Agent:       narrate(run),
	}, nil
}

func (s *Service) removeCleaned(ctx context.Context, path string) {
	if err := s.cleaned.Remove(path); err != nil {
		logging.FromContext(ctx).Warn("remove cleaned file failed", "path", path, "error", err)
	}
}

func narrate(run cleaning.Run) AgentResponse {
	resp := AgentResponse{
		Thinking: []string{"Analyzing the file and determining the necessary cleaning steps..."},
	}
	for i, step := range run.Steps {
		resp.Thinking = append(resp.Thinking, fmt.Sprintf("%d. %s", i+1, stepIntent(step.Step)))
		resp.StepsTaken = append(resp.StepsTaken, step.Message)
	}
	resp.FinalThoughts = fmt.Sprintf("Data cleaning completed: %d rows in, %d rows out. The file is ready for download.",
		run.OriginalRows, run.CleanedRows)
	return resp
}

func stepIntent(step cleaning.StepName) string {
	switch step {
	case cleaning.StepFillMissing:
		return "Identifying missing values in string columns..."
	case cleaning.StepRemoveDuplicates:
		return "Detecting duplicate rows based on unique identifiers..."
	case cleaning.StepNormalizeStrings:
		return "Normalizing string formatting, especially for 'name' and 'email' columns..."
	default:
		return string(step)
	}
}

// OpenCleaned opens the cleaned file of one of userID's runs and returns it
// with its download name.
func (s *Service) OpenCleaned(ctx context.Context, userID, cleanedID int64) (io.ReadCloser, string, error) {
	rec, err := s.ownedCleaning(ctx, userID, cleanedID)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.cleaned.Open(rec.CleanedFilePath)
	if err != nil {
		return nil, "", fmt.Errorf("open cleaned file %d: %w", cleanedID, err)
	}
	return rc, filepath.Base(rec.CleanedFilePath), nil
}

// History returns userID's cleaning runs. Callers may only read their own.
func (s *Service) History(ctx context.Context, callerID, userID int64) ([]CleaningRecord, error) {
	if callerID != userID {
		return nil, ErrForbidden
	}
	recs, err := s.store.ListCleanings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no cleaning history found for this user", ErrNotFound)
	}
	return recs, nil
}

// Report builds the report rows for one of userID's runs. Runs recorded
// without row counts are counted from the stored files.
func (s *Service) Report(ctx context.Context, userID, cleanedID int64) ([]report.Row, error) {
	rec, err := s.ownedCleaning(ctx, userID, cleanedID)
	if err != nil {
		return nil, err
	}

	log, err := report.Decode([]byte(rec.CleaningSteps))
	if err != nil {
		return nil, fmt.Errorf("%w: run %d: %v", ErrIOFailure, cleanedID, err)
	}

	original := firstCount(rec.OriginalRows, log.OriginalRows)
	cleaned := firstCount(rec.CleanedRows, log.CleanedRows)

	if original == nil {
		up, err := s.store.GetUpload(ctx, rec.FileID)
		if err != nil {
			return nil, fmt.Errorf("original file of run %d: %w", cleanedID, err)
		}
		n, err := countRows(s.uploads, up.FilePath)
		if err != nil {
			return nil, fmt.Errorf("count original rows: %w", err)
		}
		original = &n
	}
	if cleaned == nil {
		n, err := countRows(s.cleaned, rec.CleanedFilePath)
		if err != nil {
			return nil, fmt.Errorf("count cleaned rows: %w", err)
		}
		cleaned = &n
	}

	return report.Build(log, *original, *cleaned), nil
}

// LimiterStatus reports cleaning concurrency.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForJobs blocks until in-flight cleaning runs finish.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) ownedUpload(ctx context.Context, userID, fileID int64) (FileUpload, error) {
	up, err := s.store.GetUpload(ctx, fileID)
	if err != nil {
		return FileUpload{}, fmt.Errorf("uploaded file %d: %w", fileID, err)
	}
	if up.UserID != userID {
		return FileUpload{}, fmt.Errorf("uploaded file %d: %w", fileID, ErrNotFound)
	}
	return up, nil
}

func (s *Service) ownedCleaning(ctx context.Context, userID, cleanedID int64) (CleaningRecord, error) {
	rec, err := s.store.GetCleaning(ctx, cleanedID)
	if err != nil {
		return CleaningRecord{}, fmt.Errorf("cleaning run %d: %w", cleanedID, err)
	}
	if rec.UserID != userID {
		return CleaningRecord{}, fmt.Errorf("cleaning run %d: %w", cleanedID, ErrNotFound)
	}
	return rec, nil
}

func loadDataset(fs FileStore, path string) (*dataset.Dataset, error) {
	rc, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return dataset.Load(rc)
}

func countRows(fs FileStore, path string) (int, error) {
	ds, err := loadDataset(fs, path)
	if err != nil {
		return 0, err
	}
	return ds.Len(), nil
}

func firstCount(counts ...*int) *int {
	for _, c := range counts {
		if c != nil {
			return c
		}
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidRequest)
	}
	return email, nil
}
