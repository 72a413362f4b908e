package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
)

func resolve(t *testing.T, producer config.AuthorizationFunc, source any) (any, error) {
	t.Helper()
	cfg := config.MustNew(map[config.Key]any{
		config.KeyAuthorization:       producer,
		config.KeyAuthorizationSource: source,
	})
	req := &handler.Request{Handler: "Todo", RemoteID: "1", Config: cfg}
	return req.Authorization()
}

func TestEnv(t *testing.T) {
	t.Setenv("TODO_API_TOKEN", "secret")

	v, err := resolve(t, Env("TODO_API_TOKEN"), nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	_, err = resolve(t, Env("TODO_API_TOKEN_UNSET"), nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestEnv_ReadsAtCallTime(t *testing.T) {
	producer := Env("TODO_API_TOKEN_LATE")
	t.Setenv("TODO_API_TOKEN_LATE", "late")

	v, err := resolve(t, producer, nil)
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

func TestFromTokenSource(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})
	v, err := resolve(t, FromTokenSource(ts), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = resolve(t, FromTokenSource(oauth2.StaticTokenSource(&oauth2.Token{})), nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestRefreshToken_ReusesToken(t *testing.T) {
	var exchanges atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "r-1", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}
	producer := RefreshToken(context.Background(), cfg, "r-1")

	for i := 0; i < 3; i++ {
		v, err := resolve(t, producer, nil)
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, int32(1), exchanges.Load())
}

type owner struct{ token string }

func TestPerSource(t *testing.T) {
	producer := PerSource(func(source any) (string, error) {
		o, ok := source.(*owner)
		if !ok {
			return "", errors.New("unexpected source")
		}
		return o.token, nil
	})

	v, err := resolve(t, producer, &owner{token: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada", v)

	_, err = resolve(t, producer, nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestProducersAreLazy(t *testing.T) {
	var calls atomic.Int32
	producer := PerSource(func(any) (string, error) {
		calls.Add(1)
		return "x", nil
	})

	cfg := config.MustNew(map[config.Key]any{config.KeyAuthorization: producer})
	_ = cfg.Merge(config.Defaults())
	_ = cfg.String()
	assert.Zero(t, calls.Load())
}
