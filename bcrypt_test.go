package membership_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-membership"
)

func TestHashPasswordWithCost(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Unicode password",
			password: "lösenord-åäö",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := membership.HashPasswordWithCost(tt.password, bcrypt.MinCost)

			if tt.wantErr {
				assert.Equal(t, membership.TextCodeEmptyPassword, membership.TextCode(err))
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NoError(t, membership.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := membership.HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantCode string
		wantErr  bool
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
		},
		{
			name:     "Non-matching password",
			password: "wrongPassword",
			hash:     hash,
			wantErr:  true,
			wantCode: membership.TextCodeInvalidCreds,
		},
		{
			name:     "Invalid hash",
			password: password,
			hash:     "not-a-hash",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := membership.ComparePasswordAndHash(tt.password, tt.hash)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, membership.TextCode(err))
			}
		})
	}
}

func TestGenerateRandomPassword(t *testing.T) {
	pw, err := membership.GenerateRandomPassword(0)
	require.NoError(t, err)
	assert.Len(t, pw, membership.DefaultRandomPasswordLength)

	other, err := membership.GenerateRandomPassword(12)
	require.NoError(t, err)
	assert.Len(t, other, 12)
	assert.NotEqual(t, pw[:12], other)

	for _, r := range pw {
		assert.True(t, strings.ContainsRune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", r))
	}
}
