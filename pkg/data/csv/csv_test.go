package csv

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []float64{0, 0.5}, []float64{1250, 1.0 / 3}))
	assert.Equal(t, "time,rate\n0,1250\n0.5,0.3333333333\n", buf.String())
}

func TestWrite_LengthMismatch(t *testing.T) {
	err := Write(&bytes.Buffer{}, []float64{0}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestRead_DropsMissing(t *testing.T) {
	in := "time,rate\n0,1000\n1,\n2,NaN\n3,760\n"
	ti, q, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3}, ti)
	assert.Equal(t, []float64{1000, 760}, q)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"header", "t,q\n0,1\n"},
		{"value", "time,rate\n0,abc\n"},
		{"columns", "time,rate\n0,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "synthetic.csv")
	ti := []float64{0, 0.2, 0.4}
	q := []float64{1250, 1240.123456789012, 1230.5}

	require.NoError(t, WriteFile(path, ti, q))
	gotT, gotQ, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ti, gotT)
	assert.InDeltaSlice(t, q, gotQ, 1e-9)
}
