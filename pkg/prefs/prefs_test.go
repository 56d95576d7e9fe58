package prefs

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestMissingFileGivesDefaults(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "nope.yaml"), logging.NewTestLogger(t))
	assert.False(t, s.ContainsKey("EndEffector/roller_in_cmd"))
	assert.Equal(t, 0.25, s.GetDouble("EndEffector/roller_in_cmd", 0.25))
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	logger := logging.NewTestLogger(t)

	s := Load(path, logger)
	s.SetDouble("EndEffector/roller_in_cmd", 0.6)
	s.SetDouble("EndEffector/roller_out_cmd", -1)
	s.SetBoolean("Field/cone", true)

	again := Load(path, logger)
	assert.True(t, again.ContainsKey("EndEffector/roller_in_cmd"))
	assert.Equal(t, 0.6, again.GetDouble("EndEffector/roller_in_cmd", 0))
	assert.Equal(t, -1.0, again.GetDouble("EndEffector/roller_out_cmd", 0), "integers read back as doubles")
	assert.True(t, again.GetBoolean("Field/cone", false))
	assert.Equal(t, []string{"EndEffector/roller_in_cmd", "EndEffector/roller_out_cmd", "Field/cone"}, again.Keys())
}

func TestMalformedValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("EndEffector/roller_in_cmd: fast\nEndEffector/roller_out_cmd: \"-0.5\"\n"), 0666))

	s := Load(path, logging.NewTestLogger(t))
	assert.Equal(t, 0.0, s.GetDouble("EndEffector/roller_in_cmd", 0))
	assert.Equal(t, -0.5, s.GetDouble("EndEffector/roller_out_cmd", 0))
}

func TestMalformedFileIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(":::\n\t- ["), 0666))

	s := Load(path, logging.NewTestLogger(t))
	assert.Empty(t, s.Keys())
	assert.Equal(t, 1.5, s.GetDouble("x", 1.5))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory(logging.NewTestLogger(t))
	s.SetDouble("a", 2)
	assert.Equal(t, 2.0, s.GetDouble("a", 0))
}
