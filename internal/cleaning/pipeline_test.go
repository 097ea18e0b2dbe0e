package cleaning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DataClean/internal/dataset"
)

const customersCSV = `name,email,signup_date,age,city
 alice smith ,ALICE@X.COM,2024-01-01,30,  Paris
Alice Smith,alice@x.com,2024-01-01,,Lyon
bob,bob@x.com,2024-02-01,,
,carol@x.com,2024-03-01,41,Nice
dave,DAVE@x.com ,2024-03-02,NaN,Nice
bob,bob@x.com,2024-02-01,55,Rome
`

func load(t *testing.T, src string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Load(strings.NewReader(src))
	require.NoError(t, err)
	return ds
}

func column(t *testing.T, ds *dataset.Dataset, name string) []dataset.Value {
	t.Helper()
	values, err := ds.Column(name)
	require.NoError(t, err)
	return values
}

func TestClean_BobExample(t *testing.T) {
	ds := load(t, "name,email,signup_date\n bob ,BOB@X.com,2024-01-01\nBob,bob@x.com,2024-01-01\n")

	out, run, err := Clean(ds, "", Options{})
	require.NoError(t, err)

	require.Equal(t, 1, out.Len())
	row := out.Row(0)
	assert.Equal(t, "Bob", row["name"].Raw)
	assert.Equal(t, "bob@x.com", row["email"].Raw)
	assert.Equal(t, 2, run.OriginalRows)
	assert.Equal(t, 1, run.CleanedRows)
}

func TestClean_NumericMissingPreserved(t *testing.T) {
	ds := load(t, customersCSV)

	before := column(t, ds, "age")
	out, _, err := Clean(ds, "", Options{})
	require.NoError(t, err)
	after := column(t, out, "age")

	kind, err := out.Kind("age")
	require.NoError(t, err)
	assert.Equal(t, dataset.KindNumeric, kind)

	// Rows 1 (alice dup) and 5 (bob dup) are removed; the rest keep their
	// missing ages in place.
	wantMissing := []bool{false, true, false, true}
	require.Len(t, after, len(wantMissing))
	for i, want := range wantMissing {
		assert.Equal(t, want, after[i].Missing, "row %d", i)
		if !after[i].Missing {
			assert.NotEqual(t, DefaultPlaceholder, after[i].Raw)
		}
	}
	assert.True(t, before[1].Missing)
}

func TestClean_StringCellsNeverMissing(t *testing.T) {
	out, _, err := Clean(load(t, customersCSV), "", Options{})
	require.NoError(t, err)

	for _, col := range out.ColumnsOfKind(dataset.KindString) {
		for i, v := range column(t, out, col) {
			assert.False(t, v.Missing, "%s row %d", col, i)
		}
	}
	assert.Equal(t, DefaultPlaceholder, out.Row(2)["name"].Raw)
}

func TestClean_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"customers", customersCSV},
		{"already clean", "name,email,signup_date\nBob,bob@x.com,2024-01-01\n"},
		{"names need casing", "name,email,signup_date\nmary-jane o'neil,M@X.COM,d1\nJOHN,j@x.com,d2\n"},
		{"empty table", "name,email,signup_date\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, _, err := Clean(load(t, tt.src), "", Options{})
			require.NoError(t, err)
			twice, run, err := Clean(once, "", Options{})
			require.NoError(t, err)

			assert.True(t, once.Equal(twice))
			assert.Equal(t, 0, run.Steps[1].Removed)
		})
	}
}

func TestOperations_Idempotent(t *testing.T) {
	ops := []Operation{FillMissing{}, RemoveDuplicates{}, NormalizeStrings{}}
	for _, op := range ops {
		t.Run(string(op.Name()), func(t *testing.T) {
			first, _, err := op.Apply(load(t, customersCSV))
			require.NoError(t, err)
			second, _, err := op.Apply(first)
			require.NoError(t, err)
			assert.True(t, first.Equal(second))
		})
	}
}

func TestClean_IdentityUnique(t *testing.T) {
	out, _, err := Clean(load(t, customersCSV), "", Options{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < out.Len(); i++ {
		row := out.Row(i)
		key := row["email"].Raw + "|" + row["signup_date"].Raw
		assert.False(t, seen[key], "duplicate identity %q", key)
		seen[key] = true
	}
	assert.LessOrEqual(t, out.Len(), 6)
	assert.Equal(t, 4, out.Len())
}

func TestClean_StepLog(t *testing.T) {
	_, run, err := Clean(load(t, customersCSV), "make it tidy", Options{})
	require.NoError(t, err)

	require.Len(t, run.Steps, 3)
	assert.Equal(t, "make it tidy", run.Instruction)
	assert.Equal(t, 6, run.OriginalRows)
	assert.Equal(t, 4, run.CleanedRows)

	fill := run.Steps[0]
	assert.Equal(t, StepFillMissing, fill.Step)
	assert.Equal(t, []string{"name", "email", "signup_date", "city"}, fill.Columns)
	assert.Equal(t, map[string]int{"name": 1, "email": 0, "signup_date": 0, "city": 1}, fill.Filled)

	dedup := run.Steps[1]
	assert.Equal(t, StepRemoveDuplicates, dedup.Step)
	assert.Equal(t, []string{"email", "signup_date"}, dedup.Columns)
	assert.Equal(t, 2, dedup.Removed)

	norm := run.Steps[2]
	assert.Equal(t, StepNormalizeStrings, norm.Step)
	assert.Equal(t, []string{"name", "email", "signup_date", "city"}, norm.Columns)
}

func TestClean_InstructionDoesNotChangeResult(t *testing.T) {
	a, _, err := Clean(load(t, customersCSV), "", Options{})
	require.NoError(t, err)
	b, _, err := Clean(load(t, customersCSV), "drop every row and uppercase everything", Options{})
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestClean_MissingIdentityColumn(t *testing.T) {
	ds := load(t, "name,email\n bob ,b@x.com\n")
	snapshot := ds.Clone()

	out, run, err := Clean(ds, "", Options{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Empty(t, run.Steps)
	assert.ErrorIs(t, err, ErrInvalidInput)

	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, StepRemoveDuplicates, step)
	assert.Contains(t, err.Error(), "cleaning step 2")
	assert.Contains(t, err.Error(), "signup_date")

	// Input untouched even though the first step already ran.
	assert.True(t, ds.Equal(snapshot))
}

func TestClean_CustomIdentity(t *testing.T) {
	ds := load(t, "id,email\n1,a@x.com\n1,b@x.com\n2,a@x.com\n")
	out, run, err := Clean(ds, "", Options{IdentityColumns: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"id"}, run.Steps[1].Columns)
}

func TestClean_NilDataset(t *testing.T) {
	_, _, err := Clean(nil, "", Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	ds := load(t, customersCSV)
	snapshot := ds.Clone()
	_, _, err := Clean(ds, "", Options{})
	require.NoError(t, err)
	assert.True(t, ds.Equal(snapshot))
}

// A cell that trims to a missing token is text in memory but reads back as
// missing once written, which can turn the column numeric on the next load.
func TestClean_TrimmedMissingTokenReloadsAsMissing(t *testing.T) {
	src := "name,email,signup_date,code\nann,a@x.com,d1,\" n/a \"\nbob,b@x.com,d2,7\n"
	ds := load(t, src)
	kind, err := ds.Kind("code")
	require.NoError(t, err)
	require.Equal(t, dataset.KindString, kind)

	out, _, err := Clean(ds, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, dataset.Text("n/a"), column(t, out, "code")[0])

	var buf strings.Builder
	require.NoError(t, dataset.Write(&buf, out))
	back := load(t, buf.String())

	kind, err = back.Kind("code")
	require.NoError(t, err)
	assert.Equal(t, dataset.KindNumeric, kind)
	assert.True(t, column(t, back, "code")[0].Missing)
}

func TestPipeline_Steps(t *testing.T) {
	p := NewPipeline(Options{})
	assert.Equal(t, []StepName{StepFillMissing, StepRemoveDuplicates, StepNormalizeStrings}, p.Steps())
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		column, in, want string
	}{
		{"name", "  jane DOE ", "Jane Doe"},
		{"email", " Jane@Example.COM", "jane@example.com"},
		{"city", "  new york  ", "new york"},
		{"name", "Jane Doe", "Jane Doe"},
		{"name", "o'neil", "O'Neil"},
		{"name", "MARY-ANN smith", "Mary-Ann Smith"},
		{"name", "3rd ave", "3Rd Ave"},
		{"name", "émile ZOLA", "Émile Zola"},
		{"email", "ÉMILE@EXAMPLE.COM", "émile@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.column+"/"+tt.in, func(t *testing.T) {
			got := normalizeText(tt.column, tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, normalizeText(tt.column, got), "not idempotent")
		})
	}
}
