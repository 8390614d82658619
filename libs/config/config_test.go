package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortRejectsOutOfRange(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	_, err := Port("TEST_PORT", "8080")
	require.Error(t, err)

	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8083")
	require.NoError(t, err)
	assert.Equal(t, "8083", p)
}

func TestDurationAndInt(t *testing.T) {
	t.Setenv("TEST_TTL", "90s")
	d, err := Duration("TEST_TTL", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("TEST_TTL", "soon")
	_, err = Duration("TEST_TTL", time.Minute)
	assert.Error(t, err)

	t.Setenv("TEST_LIMIT", "x")
	_, err = Int("TEST_LIMIT", 10)
	assert.Error(t, err)
}

func TestBoolFallback(t *testing.T) {
	t.Setenv("TEST_FLAG", "maybe")
	assert.True(t, Bool("TEST_FLAG", true))
	t.Setenv("TEST_FLAG", "off")
	assert.False(t, Bool("TEST_FLAG", true))
}

func TestLocation(t *testing.T) {
	t.Setenv("TEST_TZ", "")
	loc, err := Location("TEST_TZ", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	t.Setenv("TEST_TZ", "Not/AZone")
	_, err = Location("TEST_TZ", "UTC")
	assert.Error(t, err)
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_A=from-file\nDOTENV_B=from-file\n"), 0o600))

	t.Setenv("DOTENV_A", "from-env")
	t.Setenv("DOTENV_B", "")
	require.NoError(t, os.Unsetenv("DOTENV_B"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_A"))
	assert.Equal(t, "from-file", os.Getenv("DOTENV_B"))
	require.NoError(t, os.Unsetenv("DOTENV_B"))
}

func TestRatio(t *testing.T) {
	t.Setenv("TEST_RATIO", "")
	r, err := Ratio("TEST_RATIO", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, r)

	t.Setenv("TEST_RATIO", "0.1")
	r, err = Ratio("TEST_RATIO", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.1, r)

	for _, bad := range []string{"1.5", "-0.1", "half"} {
		t.Setenv("TEST_RATIO", bad)
		_, err = Ratio("TEST_RATIO", 1)
		assert.Error(t, err, bad)
	}
}
