package auth

import (
	"testing"
	"time"

	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHeader_PlainToken(t *testing.T) {
	c := NewChecker("s3cret", "", "")
	assert.NoError(t, c.CheckHeader("Bearer s3cret"))
	assert.NoError(t, c.CheckHeader("bearer s3cret"))
	assert.ErrorIs(t, c.CheckHeader("Bearer s3cre"), internaltypes.ErrUnauthorized)
	assert.ErrorIs(t, c.CheckHeader("s3cret"), internaltypes.ErrUnauthorized)
	assert.ErrorIs(t, c.CheckHeader(""), internaltypes.ErrUnauthorized)
}

func TestCheck_Bcrypt(t *testing.T) {
	hash, err := HashToken("s3cret")
	require.NoError(t, err)

	c := NewChecker("", hash, "")
	assert.NoError(t, c.Check("s3cret"))
	assert.Error(t, c.Check("nope"))
}

func TestCheck_JWT(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	c := NewChecker("", "", string(secret))

	tok, err := IssueJWT(secret, "cron", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, c.CheckHeader("Bearer "+tok))

	expired, err := IssueJWT(secret, "cron", -time.Minute)
	require.NoError(t, err)
	assert.Error(t, c.Check(expired))

	foreign, err := IssueJWT([]byte("another-secret-another-secret-xx"), "cron", time.Minute)
	require.NoError(t, err)
	assert.Error(t, c.Check(foreign))
}

func TestCheck_NothingConfigured(t *testing.T) {
	c := NewChecker("", "", "")
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.Check("anything"), internaltypes.ErrUnauthorized)
}
