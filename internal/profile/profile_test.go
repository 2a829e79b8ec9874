package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validProfile(t *testing.T) *Profile {
	t.Helper()
	return &Profile{
		AIProvider:     "gemini",
		AIAPIKey:       "test-key",
		BridgeURL:      "http://localhost:3000",
		Mode:           "dev",
		Data:           t.TempDir(),
		MemoryWindow:   20,
		MemoryTTLHours: 24,
		AITimeout:      120,
	}
}

func TestProfileValidate(t *testing.T) {
	t.Run("valid profile passes", func(t *testing.T) {
		p := validProfile(t)
		require.NoError(t, p.Validate())
	})

	t.Run("missing AI key is fatal", func(t *testing.T) {
		p := validProfile(t)
		p.AIAPIKey = ""
		require.Error(t, p.Validate())
	})

	t.Run("missing bridge URL is fatal", func(t *testing.T) {
		p := validProfile(t)
		p.BridgeURL = ""
		require.Error(t, p.Validate())
	})

	t.Run("unknown provider is fatal", func(t *testing.T) {
		p := validProfile(t)
		p.AIProvider = "mystery"
		require.Error(t, p.Validate())
	})

	t.Run("credential key must be 32 bytes when set", func(t *testing.T) {
		p := validProfile(t)
		p.CredentialKey = "too-short"
		require.Error(t, p.Validate())

		p.CredentialKey = "0123456789abcdef0123456789abcdef"
		require.NoError(t, p.Validate())
	})

	t.Run("prod mode requires credential key", func(t *testing.T) {
		p := validProfile(t)
		p.Mode = "prod"
		require.Error(t, p.Validate())
	})

	t.Run("zero limits fall back to defaults", func(t *testing.T) {
		p := validProfile(t)
		p.MemoryWindow = 0
		p.MemoryTTLHours = 0
		p.AITimeout = 0
		require.NoError(t, p.Validate())
		require.Equal(t, 20, p.MemoryWindow)
		require.Equal(t, 24, p.MemoryTTLHours)
		require.Equal(t, 120, p.AITimeout)
	})
}

func TestFromEnvProviderDefaults(t *testing.T) {
	t.Setenv("WARELAY_AI_PROVIDER", "gemini")
	t.Setenv("WARELAY_AI_API_KEY", "k")
	t.Setenv("WARELAY_AI_BASE_URL", "")
	t.Setenv("WARELAY_AI_MODEL", "")

	p := &Profile{}
	p.FromEnv()
	require.Equal(t, "https://generativelanguage.googleapis.com", p.AIBaseURL)
	require.Equal(t, "gemini-2.5-flash", p.AIModel)
}
