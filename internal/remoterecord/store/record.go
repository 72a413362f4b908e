package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
)

// Record is a locally persisted entity that points at one remote record
type Record struct {
	ID        uuid.UUID
	Kind      string
	RemoteID  string
	CreatedAt time.Time
	UpdatedAt time.Time

	// remoteField is the field name references read the remote id from
	remoteField string
}

// NewRecord builds an unsaved record
func NewRecord(kind, remoteID string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        uuid.New(),
		Kind:      kind,
		RemoteID:  remoteID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RemoteField returns the field name that exposes the remote id
func (r *Record) RemoteField() string {
	if r.remoteField == "" {
		return config.DefaultIDField
	}
	return r.remoteField
}

// FieldValue implements reference.Entity
func (r *Record) FieldValue(name string) (string, bool) {
	switch name {
	case r.RemoteField():
		return r.RemoteID, r.RemoteID != ""
	case "id":
		return r.ID.String(), r.ID != uuid.Nil
	case "kind":
		return r.Kind, r.Kind != ""
	}
	return "", false
}

// SetFieldValue implements reference.Entity. Only the remote id is writable.
func (r *Record) SetFieldValue(name, value string) error {
	if name != r.RemoteField() {
		return fmt.Errorf("field %s is not writable on %s records", name, r.Kind)
	}
	r.RemoteID = value
	r.UpdatedAt = time.Now().UTC()
	return nil
}
