// Package ids defines the fixed-size identifier types shared across the
// topology engine, edit ingestion, and search pipelines: 16-byte UUID-shaped
// ids for spaces/topics/entities/properties/relations/values, and 20-byte
// blockchain addresses.
package ids

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ID is a 16-byte opaque identifier (UUID-shaped) for spaces, topics,
// entities, properties, relations, and values.
type ID [16]byte

// Nil is the zero-value ID, used as a sentinel for "not present" fields
// such as a DAO space's absent owner.
var Nil ID

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.New())
}

// IDFromBytes reads exactly 16 bytes into an ID. Returns an error if b is
// short; extra bytes beyond 16 are ignored by the caller's responsibility.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) < 16 {
		return id, fmt.Errorf("ids: need 16 bytes, got %d", len(b))
	}
	copy(id[:], b[:16])
	return id, nil
}

// String renders the ID as a canonical UUID string.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == Nil
}

// ParseID parses a canonical UUID string into an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("ids: invalid id %q: %w", s, err)
	}
	return ID(u), nil
}

// Value implements database/sql/driver.Valuer, storing an ID as its
// canonical UUID text form.
func (id ID) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements database/sql.Scanner, reading an ID back from either a
// UUID text column or a 16-byte bytea column.
func (id *ID) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*id = Nil
		return nil
	case string:
		parsed, err := ParseID(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case []byte:
		if len(v) == 16 {
			copy(id[:], v)
			return nil
		}
		parsed, err := ParseID(string(v))
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	default:
		return fmt.Errorf("ids: cannot scan %T into ID", src)
	}
}

// valueNamespace roots the deterministic value-id derivation (spec §4.2
// step 4: "deterministically derive the value id from (entity_id,
// property_id, space_id)"). Any fixed namespace works as long as it never
// changes; changing it would re-derive every existing value id.
var valueNamespace = uuid.MustParse("b7e39f1e-9f2b-4b3a-9b77-9d6f6a9c9c8e")

// DeriveValueID computes the deterministic id for a (entity, property,
// space) triple so repeated value ops against the same triple always
// resolve to the same row (spec §4.2 step 4).
func DeriveValueID(entityID, propertyID, spaceID ID) ID {
	name := make([]byte, 0, 48)
	name = append(name, entityID[:]...)
	name = append(name, propertyID[:]...)
	name = append(name, spaceID[:]...)
	return ID(uuid.NewSHA1(valueNamespace, name))
}

// Address is a 20-byte blockchain address, hex-encoded at external
// boundaries (logs, config, storage).
type Address [20]byte

// ZeroAddress is the sentinel "no address" value, used when a DAO's
// governance plugin has not yet been linked in the current block.
var ZeroAddress Address

// AddressFromBytes reads exactly 20 bytes into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) < 20 {
		return a, fmt.Errorf("ids: need 20 bytes for address, got %d", len(b))
	}
	copy(a[:], b[:20])
	return a, nil
}

// ParseAddress parses a hex-encoded address, tolerating an optional "0x" prefix.
func ParseAddress(s string) (Address, error) {
	s = trimHexPrefix(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("ids: invalid address %q: %w", s, err)
	}
	return AddressFromBytes(b)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// String renders the address as a "0x"-prefixed lowercase hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Value implements database/sql/driver.Valuer, storing an Address as its
// "0x"-prefixed hex text form.
func (a Address) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements database/sql.Scanner.
func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = ZeroAddress
		return nil
	case string:
		parsed, err := ParseAddress(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		if len(v) == 20 {
			copy(a[:], v)
			return nil
		}
		parsed, err := ParseAddress(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("ids: cannot scan %T into Address", src)
	}
}
