package httpsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/collection"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/registry"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/transform"
)

var todos = []map[string]any{
	{"id": 1, "userId": 1, "title": "delectus aut autem", "completed": false},
	{"id": 2, "userId": 1, "title": "quis ut nam facilis", "completed": true},
}

type fakeAPI struct {
	server   *httptest.Server
	requests atomic.Int32
	authz    atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			api.requests.Add(1)
			api.authz.Store(r.Header.Get("Authorization"))
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/todos", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeJSON(w, http.StatusOK, todos)
			return
		}
		params, err := transform.ParseDotParams(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		var out []map[string]any
		for _, todo := range todos {
			if params["completed"] == nil || params["completed"] == formatBool(todo["completed"]) {
				out = append(out, todo)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	r.Get("/todos/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		for _, todo := range todos {
			if handler.IDString(todo["id"]) == id {
				writeJSON(w, http.StatusOK, todo)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.Get("/wrapped/todos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": todos})
	})

	api.server = httptest.NewServer(r)
	t.Cleanup(api.server.Close)
	return api
}

func formatBool(v any) string {
	if b, ok := v.(bool); ok && b {
		return "true"
	}
	return "false"
}

func request(id string, authz any) *handler.Request {
	cfg := config.Defaults()
	if authz != nil {
		cfg = config.MustNew(map[config.Key]any{config.KeyAuthorization: authz}).WithDefaults()
	}
	return &handler.Request{Handler: "Todo", RemoteID: id, Config: cfg}
}

func TestRetrieve(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	payload, err := src.Retrieve(context.Background(), request("1", "token"))
	require.NoError(t, err)

	assert.Equal(t, "delectus aut autem", payload["title"])
	id, _ := payload.ID("id")
	assert.Equal(t, "1", id)
	assert.Equal(t, "Bearer token", api.authz.Load())
}

func TestRetrieve_AuthorizationWithScheme(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL+"/", "/todos/")
	require.NoError(t, err)

	_, err = src.Retrieve(context.Background(), request("1", "Basic dXNlcjpwYXNz"))
	require.NoError(t, err)
	assert.Equal(t, "Basic dXNlcjpwYXNz", api.authz.Load())
}

func TestRetrieve_NoAuthorization(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	_, err = src.Retrieve(context.Background(), request("1", nil))
	require.NoError(t, err)
	assert.Equal(t, "", api.authz.Load())
}

func TestRetrieve_ProducerErrorStopsRequest(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	want := errors.New("token expired")
	producer := config.AuthorizationFunc(func(any, config.Config) (any, error) { return nil, want })

	_, err = src.Retrieve(context.Background(), request("1", producer))
	assert.ErrorIs(t, err, want)
	assert.Zero(t, api.requests.Load())
}

func TestRetrieve_NotFound(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	_, err = src.Retrieve(context.Background(), request("404", nil))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.NotFound())
	assert.Contains(t, statusErr.Error(), "not found")
}

func TestRetrieve_EscapesID(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	_, err = src.Retrieve(context.Background(), request("a/b", nil))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Contains(t, statusErr.URL, "/todos/a%2Fb")
}

func TestListAll(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	payloads, err := src.ListAll(context.Background(), request("", nil))
	require.NoError(t, err)
	assert.Len(t, payloads, 2)
}

func TestListAll_Envelope(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "wrapped/todos", WithEnvelope("data"))
	require.NoError(t, err)

	payloads, err := src.ListAll(context.Background(), request("", nil))
	require.NoError(t, err)
	assert.Len(t, payloads, 2)

	other, err := New(api.server.URL, "wrapped/todos", WithEnvelope("items"))
	require.NoError(t, err)
	_, err = other.ListAll(context.Background(), request("", nil))
	assert.ErrorContains(t, err, `no "items" key`)
}

func TestListAll_LargeIDsKeepPrecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wrapped/accounts" {
			_, _ = w.Write([]byte(`{"data": [{"id": 9007199254740993}]}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id": 9007199254740993, "balance": 12.5}]`))
	}))
	defer srv.Close()

	src, err := New(srv.URL, "accounts")
	require.NoError(t, err)
	payloads, err := src.ListAll(context.Background(), request("", nil))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	id, ok := payloads[0].ID("id")
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", id)
	assert.Equal(t, json.Number("12.5"), payloads[0]["balance"])

	wrapped, err := New(srv.URL, "wrapped/accounts", WithEnvelope("data"))
	require.NoError(t, err)
	payloads, err = wrapped.ListAll(context.Background(), request("", nil))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	id, _ = payloads[0].ID("id")
	assert.Equal(t, "9007199254740993", id)
}

func TestFind_EncodesDotParams(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	payloads, err := src.Find(context.Background(), request("", nil), handler.Payload{"completed": true})
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "quis ut nam facilis", payloads[0]["title"])
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("not a url", "todos")
	assert.Error(t, err)
	_, err = New("://bad", "todos")
	assert.Error(t, err)
}

func TestWithHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Api-Version")
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	src, err := New(srv.URL, "todos", WithHeader("X-Api-Version", "2024-01"))
	require.NoError(t, err)
	_, err = src.Retrieve(context.Background(), request("1", nil))
	require.NoError(t, err)
	assert.Equal(t, "2024-01", got)
}

type todoRecord map[string]string

func (e todoRecord) FieldValue(name string) (string, bool) {
	v, ok := e[name]
	return v, ok && v != ""
}

func (e todoRecord) SetFieldValue(name, value string) error {
	e[name] = value
	return nil
}

func TestCollectionOverHTTP_SingleRequest(t *testing.T) {
	api := newFakeAPI(t)
	src, err := New(api.server.URL, "todos")
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.Register("Todo", src, config.MustNew(map[config.Key]any{
		config.KeyTransform: []string{"snake_case"},
	})))
	typ, err := reference.Declare(reg, "TodoReference")
	require.NoError(t, err)

	creator := collection.CreatorFunc(func(ctx context.Context, remoteID string) (reference.Entity, error) {
		return todoRecord{"remote_resource_id": remoteID}, nil
	})
	refs, err := collection.New(typ, []reference.Entity{todoRecord{"remote_resource_id": "1"}},
		collection.WithCreator(creator)).All(context.Background())
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, int32(1), api.requests.Load())

	userID, err := refs[1].Get(context.Background(), "user_id")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), userID)
	assert.Equal(t, int32(1), api.requests.Load())
}
