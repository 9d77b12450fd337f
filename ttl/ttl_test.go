package ttl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrozone/agricache/errors"
)

func TestValidate(t *testing.T) {
	config := DefaultConfig()

	tests := []struct {
		name    string
		ttl     time.Duration
		wantErr error
	}{
		{"valid TTL", 5 * time.Minute, nil},
		{"zero TTL with no-expiry allowed", 0, nil},
		{"minimum TTL", config.MinTTL, nil},
		{"maximum TTL", config.MaxTTL, nil},
		{"negative TTL", -1 * time.Second, errors.ErrInvalidTTL},
		{"below minimum", 500 * time.Millisecond, errors.ErrTTLTooShort},
		{"above maximum", 25 * time.Hour, errors.ErrTTLTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ttl, config)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateZeroTTLDisallowed(t *testing.T) {
	config := DefaultConfig()
	config.ZeroTTLMeansNoExpiry = false

	require.ErrorIs(t, Validate(0, config), errors.ErrInvalidTTL)
}

func TestValidateNeverClamps(t *testing.T) {
	config := DefaultConfig()

	// Out-of-range TTLs are rejected outright, not silently rewritten to
	// the nearest bound.
	require.Error(t, Validate(config.MinTTL-1, config))
	require.Error(t, Validate(config.MaxTTL+1, config))
	require.NoError(t, Validate(config.MinTTL, config))
	require.NoError(t, Validate(config.MaxTTL, config))
}

func TestExpirationTime(t *testing.T) {
	config := DefaultConfig()

	require.True(t, ExpirationTime(0, config).IsZero())

	before := time.Now()
	exp := ExpirationTime(time.Minute, config)
	require.False(t, exp.IsZero())
	require.True(t, exp.After(before.Add(59*time.Second)))
	require.True(t, exp.Before(before.Add(61*time.Second)))
}

func TestIsExpired(t *testing.T) {
	require.False(t, IsExpired(time.Time{}))
	require.False(t, IsExpired(time.Now().Add(time.Minute)))
	require.True(t, IsExpired(time.Now().Add(-time.Minute)))
}
