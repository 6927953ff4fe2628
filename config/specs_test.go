package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-membership/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MEMBERSHIP_SECRET_KEY", "s3cret")
	t.Setenv("MEMBERSHIP_BASE_URL", "https://example.com/")

	specs, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", specs.GetSecretKey())
	assert.Equal(t, "https://example.com", specs.GetBaseURL())
	assert.Equal(t, "sqlite", specs.DBDriver)
	assert.Equal(t, 14, specs.BcryptCost)
	assert.Equal(t, 30*time.Second, specs.SendTimeout)

	smtp := specs.SMTP()
	assert.Equal(t, 587, smtp.Port)
	assert.Equal(t, "noreply@localhost", smtp.From)

	worker := specs.Worker()
	assert.Equal(t, "mail", worker.Queue)
	assert.Equal(t, 2, worker.Concurrency)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("MEMBERSHIP_SECRET_KEY", "placeholder")
	require.NoError(t, os.Unsetenv("MEMBERSHIP_SECRET_KEY"))
	require.NoError(t, os.Unsetenv("SECRET_KEY"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestEnvSpec_StringRedactsSecrets(t *testing.T) {
	specs := config.EnvSpec{SecretKey: "s3cret", SMTPPassword: "hunter2"}
	out := specs.String()
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}

func TestNewLogger(t *testing.T) {
	logger, err := config.NewLogger("debug", true)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = config.NewLogger("bogus", false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
