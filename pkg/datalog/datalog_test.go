package datalog

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestWriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	l := New(nopCloser{&buf}, logging.NewTestLogger(t))

	cmd, curr := 0.0, 0.0
	l.AddLogVar("roller_cmd", func() float64 { return cmd })
	l.AddLogVar("roller_curr", func() float64 { return curr })

	start := time.Date(2023, 3, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, l.Write(start))
	cmd, curr = 0.5, 38.5
	require.NoError(t, l.Write(start.Add(20*time.Millisecond)))
	l.AddLogVar("late", func() float64 { return 1 })
	assert.Equal(t, 2, l.Records())
	require.NoError(t, l.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, l.Session(), r.Header.Session)
	assert.True(t, start.Equal(r.Header.Started))
	assert.Equal(t, []string{"roller_cmd", "roller_curr"}, r.Header.Vars)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Elapsed)
	assert.Equal(t, []float64{0, 0}, rec.Values)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, (20 * time.Millisecond).Nanoseconds(), rec.Elapsed)
	assert.Equal(t, map[string]float64{"roller_cmd": 0.5, "roller_curr": 38.5}, r.Values(rec))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWriteAfterClose(t *testing.T) {
	l := New(nopCloser{&bytes.Buffer{}}, logging.NewTestLogger(t))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Write(time.Now()), ErrClosed)
}

func TestCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := Create(dir, logging.NewTestLogger(t))
	require.NoError(t, err)
	l.AddLogVar("x", func() float64 { return 1 })
	require.NoError(t, l.Write(time.Now()))
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), l.Session())
}
