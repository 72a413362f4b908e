package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
)

// SignedJWT mints a short-lived HS256 token for every request. The secret is
// produced by secret at call time, so Env can supply it.
func SignedJWT(secret config.AuthorizationFunc, subject string, ttl time.Duration) config.AuthorizationFunc {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return func(source any, cfg config.Config) (any, error) {
		key, err := secret(source, cfg)
		if err != nil {
			return nil, err
		}
		keyString, ok := key.(string)
		if !ok || keyString == "" {
			return nil, fmt.Errorf("%w: signing secret must be a non-empty string", ErrMissingCredential)
		}

		now := time.Now()
		claims := jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(keyString))
		if err != nil {
			return nil, fmt.Errorf("failed to sign token: %w", err)
		}
		return token, nil
	}
}

// Static returns the same credential every time
func Static(token string) config.AuthorizationFunc {
	return func(any, config.Config) (any, error) {
		return token, nil
	}
}
