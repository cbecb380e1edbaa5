package singleton

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Instance is the shared resource. It carries no payload; what matters is
// its identity, which is assigned once at construction and never changes.
type Instance struct {
	id      uuid.UUID
	created time.Time
}

// Factory builds a new Instance. A Factory that fails must not have
// published anything; the registry will call it again on a later access.
type Factory func() (*Instance, error)

// NewInstance is the default Factory.
func NewInstance() (*Instance, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("singleton: new instance id: %w", err)
	}
	return &Instance{id: id, created: time.Now()}, nil
}

// ID returns the instance's identity.
func (i *Instance) ID() uuid.UUID { return i.id }

// Key returns the identity in the form stored by the tracking set.
func (i *Instance) Key() string { return i.id.String() }

// CreatedAt returns the construction time.
func (i *Instance) CreatedAt() time.Time { return i.created }

// Same reports whether i and other are the same instance.
func (i *Instance) Same(other *Instance) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.id == other.id
}

func (i *Instance) String() string {
	if i == nil {
		return "<nil>"
	}
	return "instance(" + i.id.String() + ")"
}
