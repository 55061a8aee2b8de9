package model

import (
	"time"

	"github.com/hermesgraph/ingestd/internal/ids"
)

// Entity is a node in the knowledge graph. CreatedAt/CreatedAtBlock are set
// once; UpdatedAt/UpdatedAtBlock advance on every touch.
type Entity struct {
	ID             ids.ID    `json:"id" db:"id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	CreatedAtBlock uint64    `json:"created_at_block" db:"created_at_block"`
	UpdatedAtBlock uint64    `json:"updated_at_block" db:"updated_at_block"`
}

// DataType enumerates the allowed Property data types. Immutable once a
// property is first persisted (spec §3, §4.2 step 2).
type DataType int

const (
	DataTypeString DataType = iota
	DataTypeNumber
	DataTypeBoolean
	DataTypeTime
	DataTypePoint
	DataTypeRelation
)

func (d DataType) String() string {
	switch d {
	case DataTypeString:
		return "String"
	case DataTypeNumber:
		return "Number"
	case DataTypeBoolean:
		return "Boolean"
	case DataTypeTime:
		return "Time"
	case DataTypePoint:
		return "Point"
	case DataTypeRelation:
		return "Relation"
	default:
		return "Unknown"
	}
}

// Property is a typed attribute definition. DataType never changes once
// the property exists in storage (spec §4.2 step 2, scenario S9).
type Property struct {
	ID       ids.ID   `json:"id" db:"id"`
	DataType DataType `json:"data_type" db:"data_type"`
}

// Value attaches an entity to a property inside a space. Exactly one typed
// field is populated, selected by the owning property's DataType; Relation-
// typed values are stored in StringValue rather than emitted as a Relation.
type Value struct {
	ID         ids.ID `json:"id" db:"id"`
	EntityID   ids.ID `json:"entity_id" db:"entity_id"`
	PropertyID ids.ID `json:"property_id" db:"property_id"`
	SpaceID    ids.ID `json:"space_id" db:"space_id"`

	Language string `json:"language,omitempty" db:"language"`
	Unit     string `json:"unit,omitempty" db:"unit"`

	StringValue  *string    `json:"string_value,omitempty" db:"string_value"`
	NumberValue  *float64   `json:"number_value,omitempty" db:"number_value"`
	BooleanValue *bool      `json:"boolean_value,omitempty" db:"boolean_value"`
	TimeValue    *time.Time `json:"time_value,omitempty" db:"time_value"`
	PointValue   *Point     `json:"point_value,omitempty" db:"point_value"`
}

// Point is a simple geographic coordinate pair for DataTypePoint values.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Relation is a typed, directed edge between two entities, scoped to a
// space, with optional versioned endpoints and ordering.
type Relation struct {
	ID       ids.ID `json:"id" db:"id"`
	TypeID   ids.ID `json:"type_id" db:"type_id"`
	EntityID ids.ID `json:"entity_id" db:"entity_id"`
	SpaceID  ids.ID `json:"space_id" db:"space_id"`

	FromEntity ids.ID `json:"from_entity" db:"from_entity"`
	ToEntity   ids.ID `json:"to_entity" db:"to_entity"`

	FromSpace   *ids.ID `json:"from_space,omitempty" db:"from_space"`
	ToSpace     *ids.ID `json:"to_space,omitempty" db:"to_space"`
	FromVersion *ids.ID `json:"from_version,omitempty" db:"from_version"`
	ToVersion   *ids.ID `json:"to_version,omitempty" db:"to_version"`
	Position    *string `json:"position,omitempty" db:"position"`
	Verified    *bool   `json:"verified,omitempty" db:"verified"`
}

// RelationUnsetFields selects which nullable Relation columns an
// UnsetRelationFields op clears (spec §4.2 step 6).
type RelationUnsetFields struct {
	FromSpace   bool
	ToSpace     bool
	FromVersion bool
	ToVersion   bool
	Position    bool
	Verified    bool
}
