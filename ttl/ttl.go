// Package ttl bounds and resolves time-to-live values for cached entries.
// Callers validate a TTL against a Config, then resolve it to an absolute
// expiry; a zero TTL can mean "never expires" depending on configuration.
package ttl

import (
	"time"

	"github.com/agrozone/agricache/errors"
)

// Config bounds the TTL values a cache accepts.
type Config struct {
	// DefaultTTL applies when an entry is stored without an explicit TTL.
	DefaultTTL time.Duration

	// MinTTL and MaxTTL bound explicit, non-zero TTLs.
	MinTTL time.Duration
	MaxTTL time.Duration

	// ZeroTTLMeansNoExpiry lets a zero TTL disable expiry for that entry.
	// When false, a zero TTL is rejected.
	ZeroTTLMeansNoExpiry bool
}

// DefaultConfig returns the default TTL bounds.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:           5 * time.Minute,
		MinTTL:               1 * time.Second,
		MaxTTL:               24 * time.Hour,
		ZeroTTLMeansNoExpiry: true,
	}
}

// Validate rejects TTLs outside the configured bounds. Out-of-range values
// are an error, never silently clamped: a caller asking for a week must not
// quietly get a day.
func Validate(ttl time.Duration, config Config) error {
	switch {
	case ttl < 0:
		return errors.Wrap("Validate", nil, errors.ErrInvalidTTL)
	case ttl == 0:
		if !config.ZeroTTLMeansNoExpiry {
			return errors.Wrap("Validate", nil, errors.ErrInvalidTTL)
		}
		return nil
	case ttl < config.MinTTL:
		return errors.Wrap("Validate", nil, errors.ErrTTLTooShort)
	case ttl > config.MaxTTL:
		return errors.Wrap("Validate", nil, errors.ErrTTLTooLong)
	}
	return nil
}

// ExpirationTime resolves a validated TTL to an absolute expiry. The zero
// time means the entry never expires.
func ExpirationTime(ttl time.Duration, config Config) time.Time {
	if ttl == 0 && config.ZeroTTLMeansNoExpiry {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// IsExpired reports whether an expiry resolved by ExpirationTime has passed.
func IsExpired(expirationTime time.Time) bool {
	if expirationTime.IsZero() {
		return false
	}
	return time.Now().After(expirationTime)
}
