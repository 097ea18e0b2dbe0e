package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, src string) *Dataset {
	t.Helper()
	d, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	return d
}

func TestLoad_InfersKinds(t *testing.T) {
	d := mustLoad(t, "name,age,score,active,empty\n"+
		"alice,30,1.5,true,\n"+
		"bob,,2,False,\n")

	assert.Equal(t, []string{"name", "age", "score", "active", "empty"}, d.Columns())
	assert.Equal(t, 2, d.Len())

	tests := []struct {
		column string
		want   Kind
	}{
		{"name", KindString},
		{"age", KindNumeric},
		{"score", KindNumeric},
		{"active", KindOther},
		{"empty", KindNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, err := d.Kind(tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	age, err := d.Column("age")
	require.NoError(t, err)
	assert.False(t, age[0].Missing)
	assert.Equal(t, 30.0, age[0].Num)
	assert.True(t, age[1].Missing)
}

func TestLoad_BooleanWithMissingIsString(t *testing.T) {
	d := mustLoad(t, "flag,id\ntrue,1\nNA,2\n")
	kind, err := d.Kind("flag")
	require.NoError(t, err)
	assert.Equal(t, KindString, kind)
}

func TestLoad_MissingTokens(t *testing.T) {
	d := mustLoad(t, "city\nParis\nNaN\nN/A\nnull\n\"\"\n")
	values, err := d.Column("city")
	require.NoError(t, err)

	missing := 0
	for _, v := range values {
		if v.Missing {
			missing++
		}
	}
	assert.Equal(t, 4, missing)
	assert.Equal(t, "Paris", values[0].Raw)
}

func TestLoad_StripsBOM(t *testing.T) {
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("email\na@x.com\n")...)
	d, err := Load(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, d.Columns())
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"empty file", "", "empty file"},
		{"whitespace only", "  \n\n", "empty file"},
		{"ragged row", "a,b\n1,2\n3\n", "line 3"},
		{"bare quote", "a,b\n1,\"x\"y\n", "line 2"},
		{"duplicate header", "a,a\n1,2\n", "duplicate column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWrite_RoundTripPreservesMissing(t *testing.T) {
	src := "name,amount,note\nann,1.50,\nbob,,hi\n"
	d := mustLoad(t, src)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	assert.Equal(t, "name,amount,note\nann,1.50,NaN\nbob,NaN,hi\n", buf.String())

	back, err := Load(&buf)
	require.NoError(t, err)
	assert.True(t, d.Equal(back))
}

func TestSetColumn_RowCountMismatch(t *testing.T) {
	d := mustLoad(t, "a\n1\n2\n")
	err := d.SetColumn("a", []Value{Text("x")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = d.SetColumn("missing", []Value{Text("x"), Text("y")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFilter_PreservesOrder(t *testing.T) {
	d := mustLoad(t, "id,name\n1,a\n2,b\n3,c\n4,d\n")
	out, err := d.Filter([]bool{true, false, true, true})
	require.NoError(t, err)

	ids, err := out.Column("name")
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "a", ids[0].Raw)
	assert.Equal(t, "c", ids[1].Raw)
	assert.Equal(t, "d", ids[2].Raw)

	// Source is untouched.
	assert.Equal(t, 4, d.Len())

	_, err = d.Filter([]bool{true})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDropDuplicates_KeepsFirst(t *testing.T) {
	d := mustLoad(t, "email,day,n\na,1,first\nb,1,x\na,1,second\na,2,y\n,3,m1\n,3,m2\n")
	out, removed, err := d.DropDuplicates([]string{"email", "day"})
	require.NoError(t, err)

	assert.Equal(t, 2, removed)
	assert.Equal(t, 4, out.Len())
	n, _ := out.Column("n")
	assert.Equal(t, "first", n[0].Raw)
	assert.Equal(t, "m1", n[3].Raw)
}

func TestDropDuplicates_MissingColumn(t *testing.T) {
	d := mustLoad(t, "email\na\n")
	_, _, err := d.DropDuplicates([]string{"email", "signup_date"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "signup_date")
}

func TestClone_IsIndependent(t *testing.T) {
	d := mustLoad(t, "a\nx\n")
	c := d.Clone()
	require.NoError(t, c.SetColumn("a", []Value{Text("y")}))

	orig, _ := d.Column("a")
	assert.Equal(t, "x", orig[0].Raw)
	assert.False(t, d.Equal(c))
}
