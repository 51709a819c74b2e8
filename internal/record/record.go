// Package record defines the normalized, versioned representation of a fact
// observed about an upstream entity at a point in time.
//
// The union of payload types is closed: every variant lives in this package
// and is registered in the codec table by hand. A record is an immutable
// value; a new observation is always a new record with a fresh identifier.
package record

import (
	"github.com/danya02/multibooru-mirror/internal/snowflake"
)

// TypeID identifies a union arm. Values are stable across versions and are
// part of the storage key, so they must never be renumbered.
type TypeID int

const (
	TypeDanbooru TypeID = 1
	TypeRule34   TypeID = 2
	TypeMedia    TypeID = 3
)

func (t TypeID) String() string {
	switch t {
	case TypeDanbooru:
		return "danbooru"
	case TypeRule34:
		return "rule34"
	case TypeMedia:
		return "media"
	}
	return "unknown"
}

// Data is the payload of a record: one concrete entity observation.
//
// Implementations form a closed set. The (TypeID, EntityType, EntityID)
// triple uniquely addresses the latest known state of one real-world entity
// and is the natural key for upsert storage.
type Data interface {
	// TypeID identifies the union arm.
	TypeID() TypeID
	// EntityType is a per-source sub-discriminant: the entity kind for
	// imageboard records, the download state for media records.
	EntityType() int
	// EntityID is a stable numeric key scoped to (TypeID, EntityType).
	EntityID() int64

	// sourceKind returns the wire tags for the codec envelope.
	sourceKind() (source, kind string)
}

// Record pairs a payload with the identifier minted at observation time.
type Record struct {
	ID   snowflake.Snowflake
	Data Data
}

// New wraps data in a Record with a freshly minted identifier carrying
// random uniqueness bits.
func New(data Data) Record {
	return Record{ID: snowflake.NewRandom(), Data: data}
}

// Key is the natural key of a record's entity for latest-state storage.
type Key struct {
	TypeID     TypeID
	EntityType int
	EntityID   int64
}

// Key returns the storage key of this record's entity.
func (r Record) Key() Key {
	return Key{
		TypeID:     r.Data.TypeID(),
		EntityType: r.Data.EntityType(),
		EntityID:   r.Data.EntityID(),
	}
}

// StateKind discriminates the closed set of entity states.
type StateKind string

const (
	// StateAbsent records that the entity does not exist; it may not have
	// been created yet.
	StateAbsent StateKind = "absent"
	// StatePresent carries the full entity payload.
	StatePresent StateKind = "present"
	// StateDeleted is a tombstone: the entity existed and no longer does.
	StateDeleted StateKind = "deleted"
)
