package core_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DataClean/internal/auth"
	"github.com/JonMunkholm/DataClean/internal/cleaning"
	"github.com/JonMunkholm/DataClean/internal/core"
	"github.com/JonMunkholm/DataClean/internal/report"
	"github.com/JonMunkholm/DataClean/internal/store"
)

const customers = "name,email,signup_date,age\n" +
	" bob ,BOB@X.com,2024-01-01,\n" +
	"Bob,bob@x.com,2024-01-01,3\n" +
	",c@x.com,2024-01-02,4\n"

type harness struct {
	svc     *core.Service
	mem     *store.Memory
	uploads *core.LocalFiles
	cleaned *core.LocalFiles
}

func newHarness(t *testing.T, st core.Store) harness {
	t.Helper()
	mem := store.NewMemory()
	if st == nil {
		st = mem
	}
	uploads, err := core.NewLocalFiles(t.TempDir())
	require.NoError(t, err)
	cleaned, err := core.NewLocalFiles(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager("test-secret-test-secret-test-secret", time.Hour, "dataclean")
	require.NoError(t, err)

	return harness{
		svc:     core.NewService(st, uploads, cleaned, tokens, core.Options{MaxConcurrent: 2, MaxWait: time.Second}),
		mem:     mem,
		uploads: uploads,
		cleaned: cleaned,
	}
}

func register(t *testing.T, h harness, email string) core.User {
	t.Helper()
	u, err := h.svc.Register(context.Background(), email, "password123")
	require.NoError(t, err)
	return u
}

func TestRegisterLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	u, err := h.svc.Register(ctx, " Ann@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)

	_, err = h.svc.Register(ctx, "ann@example.com", "password456")
	assert.ErrorIs(t, err, core.ErrEmailTaken)

	_, err = h.svc.Register(ctx, "not-an-email", "password123")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	_, err = h.svc.Register(ctx, "b@example.com", "short")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	token, err := h.svc.Login(ctx, "ann@example.com", "password123")
	require.NoError(t, err)

	got, err := h.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = h.svc.Login(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = h.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogin_RehashesLegacyPassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	sum := sha256.Sum256([]byte("password123"))
	u, err := h.mem.CreateUser(ctx, "old@example.com", hex.EncodeToString(sum[:]))
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, "old@example.com", "password123")
	require.NoError(t, err)

	got, err := h.mem.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, auth.IsLegacyHash(got.HashedPassword))
	assert.True(t, auth.VerifyPassword(got.HashedPassword, "password123"))
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	u := register(t, h, "ann@example.com")

	_, err := h.svc.Upload(ctx, u.ID, "notes.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	up, err := h.svc.Upload(ctx, u.ID, "../../customers.csv", strings.NewReader(customers))
	require.NoError(t, err)
	assert.Equal(t, "customers.csv", up.OriginalFilename)

	data, err := os.ReadFile(up.FilePath)
	require.NoError(t, err)
	assert.Equal(t, customers, string(data))

	list, err := h.svc.ListUploads(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, up.ID, list[0].ID)
}

func TestClean_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	u := register(t, h, "ann@example.com")

	up, err := h.svc.Upload(ctx, u.ID, "customers.csv", strings.NewReader(customers))
	require.NoError(t, err)

	res, err := h.svc.Clean(ctx, u.ID, up.ID, "")
	require.NoError(t, err)

	assert.Equal(t, core.DefaultInstruction, res.Run.Instruction)
	assert.Equal(t, 3, res.Run.OriginalRows)
	assert.Equal(t, 2, res.Run.CleanedRows)
	assert.True(t, strings.HasSuffix(res.CleanedFile, "_cleaned_customers.csv"))
	assert.Len(t, res.Agent.StepsTaken, 3)
	assert.Len(t, res.Agent.Thinking, 4)

	rc, name, err := h.svc.OpenCleaned(ctx, u.ID, res.Record.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, res.CleanedFile, name)
	assert.Equal(t, "name,email,signup_date,age\nBob,bob@x.com,2024-01-01,NaN\nUnknown,c@x.com,2024-01-02,4\n", string(data))

	rows, err := h.svc.Report(ctx, u.ID, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, report.FromCleaningRun(res.Run), rows)

	hist, err := h.svc.History(ctx, u.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, up.ID, hist[0].FileID)
}

func TestClean_Ownership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ann := register(t, h, "ann@example.com")
	bob := register(t, h, "bob@example.com")

	up, err := h.svc.Upload(ctx, ann.ID, "customers.csv", strings.NewReader(customers))
	require.NoError(t, err)

	_, err = h.svc.Clean(ctx, bob.ID, up.ID, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	res, err := h.svc.Clean(ctx, ann.ID, up.ID, "")
	require.NoError(t, err)

	_, _, err = h.svc.OpenCleaned(ctx, bob.ID, res.Record.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.svc.Report(ctx, bob.ID, res.Record.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.svc.History(ctx, bob.ID, ann.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = h.svc.History(ctx, bob.ID, bob.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClean_MissingIdentityColumn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	u := register(t, h, "ann@example.com")

	up, err := h.svc.Upload(ctx, u.ID, "people.csv", strings.NewReader("name,email\nann,a@x.com\n"))
	require.NoError(t, err)

	_, err = h.svc.Clean(ctx, u.ID, up.ID, "")
	assert.ErrorIs(t, err, cleaning.ErrInvalidInput)
	assert.Equal(t, "VAL002", core.MapError(err).Code)

	entries, err := os.ReadDir(h.cleaned.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingHistory struct {
	*store.Memory
}

func (failingHistory) CreateCleaning(context.Context, core.CleaningRecord) (core.CleaningRecord, error) {
	return core.CleaningRecord{}, errors.New("insert failed")
}

func TestClean_FailedInsertRemovesFile(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	h := newHarness(t, failingHistory{mem})

	u, err := h.svc.Register(ctx, "ann@example.com", "password123")
	require.NoError(t, err)
	up, err := h.svc.Upload(ctx, u.ID, "customers.csv", strings.NewReader(customers))
	require.NoError(t, err)

	_, err = h.svc.Clean(ctx, u.ID, up.ID, "")
	require.Error(t, err)

	entries, err := os.ReadDir(h.cleaned.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReport_LegacyRowRecountsFiles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	u := register(t, h, "ann@example.com")

	up, err := h.svc.Upload(ctx, u.ID, "customers.csv", strings.NewReader(customers))
	require.NoError(t, err)
	cleanedPath, err := h.cleaned.Save("cleaned_customers.csv", strings.NewReader("name,email\nBob,bob@x.com\n"))
	require.NoError(t, err)

	rec, err := h.mem.CreateCleaning(ctx, core.CleaningRecord{
		FileID:          up.ID,
		UserID:          u.ID,
		CleanedFilePath: cleanedPath,
		CleaningSteps:   `{'missing_values_filled_with_na': ['name', 'email'], 'duplicates_removed': True, 'strings_normalized': ['name', 'email']}`,
	})
	require.NoError(t, err)

	rows, err := h.svc.Report(ctx, u.ID, rec.ID)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "True", rows[1].AffectedColumns)
	assert.Equal(t, report.Row{Step: report.OriginalRows, AffectedColumns: "3"}, rows[4])
	assert.Equal(t, report.Row{Step: report.CleanedRows, AffectedColumns: "1"}, rows[5])
}

func TestClean_Cancelled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	u := register(t, h, "ann@example.com")
	up, err := h.svc.Upload(ctx, u.ID, "customers.csv", strings.NewReader(customers))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.svc.Clean(cancelled, u.ID, up.ID, "")
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, h.svc.LimiterStatus().Active)
	require.NoError(t, h.svc.WaitForJobs(ctx))
}
