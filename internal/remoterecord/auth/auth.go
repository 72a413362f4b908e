// Package auth provides authorization producers for handler configs.
//
// A producer is stored under the authorization key and is only invoked when
// a source asks a request for its credential, so building configs and
// references never touches the environment or a token endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
)

// ErrMissingCredential is returned when a producer has nothing to offer
var ErrMissingCredential = errors.New("missing credential")

// Env reads the credential from an environment variable at call time
func Env(name string) config.AuthorizationFunc {
	return func(any, config.Config) (any, error) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return nil, fmt.Errorf("%w: environment variable %s is not set", ErrMissingCredential, name)
		}
		return v, nil
	}
}

// FromTokenSource returns the access token of ts. Wrap ts with
// oauth2.ReuseTokenSource to avoid a token request per call.
func FromTokenSource(ts oauth2.TokenSource) config.AuthorizationFunc {
	return func(any, config.Config) (any, error) {
		token, err := ts.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", err)
		}
		if token.AccessToken == "" {
			return nil, fmt.Errorf("%w: token source returned an empty access token", ErrMissingCredential)
		}
		return token.AccessToken, nil
	}
}

// RefreshToken exchanges a refresh token at cfg's token endpoint and reuses
// the access token until it expires
func RefreshToken(ctx context.Context, cfg *oauth2.Config, refreshToken string) config.AuthorizationFunc {
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return FromTokenSource(oauth2.ReuseTokenSource(nil, ts))
}

// PerSource resolves the credential from the entity a reference is bound to,
// for APIs where every local owner has its own token
func PerSource(fn func(source any) (string, error)) config.AuthorizationFunc {
	return func(source any, _ config.Config) (any, error) {
		if source == nil {
			return nil, fmt.Errorf("%w: no authorization source", ErrMissingCredential)
		}
		return fn(source)
	}
}
