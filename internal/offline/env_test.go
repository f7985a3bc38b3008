package offline

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareEnv_Offline(t *testing.T) {
	for _, key := range ProviderVars {
		t.Setenv(key, "live-value")
	}

	require.NoError(t, PrepareEnv(true))

	assert.Equal(t, Inert, os.Getenv(ProviderVar))
	assert.Equal(t, Inert, os.Getenv(ModelVar))
	for _, key := range ProviderVars[2:] {
		_, ok := os.LookupEnv(key)
		assert.False(t, ok, key)
	}
}

func TestPrepareEnv_Online(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv(ProviderVar, "openai")

	require.NoError(t, PrepareEnv(false))

	assert.Equal(t, "sk-test", os.Getenv("OPENAI_API_KEY"))
	assert.Equal(t, "openai", os.Getenv(ProviderVar))
}
