package config

import "time"

// LockoutConfig controls the failed-login limiter.  Unlike the generic
// token-bucket rate limit, this one counts authentication failures per
// identifier (email) inside a sliding window and locks the identifier out
// for a fixed duration once MaxAttempts is reached.
type LockoutConfig struct {
	MaxAttempts int           // failures inside the window before lockout
	Window      time.Duration // sliding window for counting failures
	Lockout     time.Duration // how long a locked identifier stays locked
}

func LoadLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts: envInt("LOGIN_MAX_ATTEMPTS", 5),
		Window:      envDur("LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
		Lockout:     envDur("LOGIN_LOCKOUT_DURATION", 30*time.Minute),
	}
}
