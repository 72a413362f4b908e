package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
)

// Payload is a mapping returned by a remote call
type Payload map[string]any

// Clone returns a shallow copy
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ID reads key from the payload as a normalized id string. The second result
// is false when the key is missing or nil.
func (p Payload) ID(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	id := IDString(v)
	return id, id != ""
}

// IDString normalizes an identifier value so that the JSON number 1, the int
// 1 and the string "1" all compare equal
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case json.Number:
		if !strings.ContainsAny(string(id), ".eE") {
			return id.String()
		}
		if f, err := id.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return id.String()
	case []byte:
		return string(id)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprintf("%v", id)
	}
}

// Request describes one remote call
type Request struct {
	// Handler is the registered name of the handler type
	Handler string
	// RemoteID identifies the remote record; empty for bulk calls
	RemoteID string
	// Config is the fully layered config for the call
	Config config.Config
}

// Authorization resolves the credential for this call. Producers are only
// invoked when a source actually asks for the credential.
func (r *Request) Authorization() (any, error) {
	return r.Config.ResolveAuthorization()
}

// AuthorizationString resolves the credential and renders it as a string
func (r *Request) AuthorizationString() (string, error) {
	authz, err := r.Authorization()
	if err != nil {
		return "", err
	}
	switch v := authz.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Retriever fetches the payload of a single remote record. Every handler
// type must implement it.
type Retriever interface {
	Retrieve(ctx context.Context, req *Request) (Payload, error)
}

// Lister returns every record visible to the caller in one call.
// Handler types that implement it let collections skip per-record calls.
type Lister interface {
	ListAll(ctx context.Context, req *Request) ([]Payload, error)
}

// Finder returns the records matching params in one call
type Finder interface {
	Find(ctx context.Context, req *Request, params Payload) ([]Payload, error)
}

// RetrieverFunc adapts a function to Retriever
type RetrieverFunc func(ctx context.Context, req *Request) (Payload, error)

// Retrieve implements Retriever
func (f RetrieverFunc) Retrieve(ctx context.Context, req *Request) (Payload, error) {
	return f(ctx, req)
}
