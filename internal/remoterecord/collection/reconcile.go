package collection

import (
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
)

// DefaultRemoteIDKey is the payload key read as the remote id
const DefaultRemoteIDKey = "id"

// Match pairs a local entity with the remote payload carrying its id
type Match struct {
	Entity  reference.Entity
	Payload handler.Payload
}

// Remote is a remote payload with no local entity, keyed by its id
type Remote struct {
	RemoteID string
	Payload  handler.Payload
}

// Result partitions a local set against a bulk remote response
type Result struct {
	// Matched holds local entities whose id appears in the response, in
	// local order
	Matched []Match
	// UnmatchedRemote holds response records with no local entity, in
	// response order
	UnmatchedRemote []Remote
	// UnmatchedLocal holds local entities absent from the response,
	// including entities with no id
	UnmatchedLocal []reference.Entity
	// Skipped holds response records without a readable id
	Skipped []handler.Payload
}

// Size is the number of entities in the reconciled output
func (r Result) Size() int {
	return len(r.Matched) + len(r.UnmatchedRemote)
}

// Reconcile matches local entities to remote payloads by id using a single
// hash index over the response. When the response repeats an id the last
// payload wins. Reconcile makes no remote calls and does not modify its
// inputs.
func Reconcile(local []reference.Entity, idField string, remote []handler.Payload, remoteIDKey string) Result {
	if remoteIDKey == "" {
		remoteIDKey = DefaultRemoteIDKey
	}

	var res Result

	// id -> payload, last one wins; order keeps first sighting of each id
	byID := make(map[string]handler.Payload, len(remote))
	order := make([]string, 0, len(remote))
	for _, payload := range remote {
		id, ok := payload.ID(remoteIDKey)
		if !ok {
			res.Skipped = append(res.Skipped, payload)
			continue
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = payload
	}

	consumed := make(map[string]bool, len(byID))
	for _, entity := range local {
		id, ok := entity.FieldValue(idField)
		if !ok || id == "" {
			res.UnmatchedLocal = append(res.UnmatchedLocal, entity)
			continue
		}
		payload, found := byID[id]
		if !found {
			res.UnmatchedLocal = append(res.UnmatchedLocal, entity)
			continue
		}
		res.Matched = append(res.Matched, Match{Entity: entity, Payload: payload})
		consumed[id] = true
	}

	for _, id := range order {
		if consumed[id] {
			continue
		}
		res.UnmatchedRemote = append(res.UnmatchedRemote, Remote{RemoteID: id, Payload: byID[id]})
	}

	return res
}

// remoteIDs returns the distinct ids present in a response, in order
func remoteIDs(remote []handler.Payload, remoteIDKey string) []string {
	seen := make(map[string]bool, len(remote))
	ids := make([]string, 0, len(remote))
	for _, payload := range remote {
		id, ok := payload.ID(remoteIDKey)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
