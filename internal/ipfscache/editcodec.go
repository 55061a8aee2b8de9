package ipfscache

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// Wire field numbers for the Edit/Op payload this cache decodes from IPFS.
// The upstream protobuf schema is out of scope (spec §1), so this package
// owns a minimal, manually-decoded wire format sufficient to round-trip
// model.Edit; it is decoded with protowire rather than generated code.
const (
	fieldEditOps = 1

	fieldOpKind             = 1
	fieldOpPropertyID       = 2
	fieldOpDataType         = 3
	fieldOpEntityID         = 4
	fieldOpValuePropertyID  = 5
	fieldOpValueSpaceID     = 6
	fieldOpValueLanguage    = 7
	fieldOpValueUnit        = 8
	fieldOpValueRaw         = 9
	fieldOpValueIsDelete    = 10
	fieldOpUnsetPropertyIDs = 11
	fieldOpRelation         = 12
	fieldOpUnsetFieldsMask  = 13

	fieldRelationID          = 1
	fieldRelationTypeID      = 2
	fieldRelationEntityID    = 3
	fieldRelationSpaceID     = 4
	fieldRelationFromEntity  = 5
	fieldRelationToEntity    = 6
	fieldRelationFromSpace   = 7
	fieldRelationToSpace     = 8
	fieldRelationFromVersion = 9
	fieldRelationToVersion   = 10
	fieldRelationPosition    = 11
	fieldRelationVerified    = 12
)

// unset-fields bitmask bit positions (fieldOpUnsetFieldsMask), matching
// spec §4.2 step 6's nullable relation columns.
const (
	unsetBitFromSpace = 1 << iota
	unsetBitToSpace
	unsetBitFromVersion
	unsetBitToVersion
	unsetBitPosition
	unsetBitVerified
)

// DecodeEdit parses raw protobuf-wire bytes (fetched from the IPFS
// gateway) into a model.Edit. spaceID is threaded in from the pending
// edit's originating space rather than read from the payload.
func DecodeEdit(spaceID ids.ID, data []byte) (*model.Edit, error) {
	edit := &model.Edit{SpaceID: spaceID}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.PermanentContentError(protowire.ParseError(n), "consume edit tag")
		}
		data = data[n:]

		switch {
		case num == fieldEditOps && typ == protowire.BytesType:
			opBytes, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, errors.PermanentContentError(protowire.ParseError(n), "consume op bytes")
			}
			data = data[n:]

			op, err := decodeOp(opBytes)
			if err != nil {
				return nil, err
			}
			edit.Ops = append(edit.Ops, op)

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, errors.PermanentContentError(protowire.ParseError(n), "skip unknown edit field")
			}
			data = data[n:]
		}
	}

	return edit, nil
}

func decodeOp(data []byte) (model.Op, error) {
	var op model.Op
	var unsetMask uint64
	var unsetPropertyIDs [][]byte

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return op, errors.PermanentContentError(protowire.ParseError(n), "consume op field tag")
		}
		data = data[n:]

		switch num {
		case fieldOpKind:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume op kind")
			}
			op.Kind = model.OpKind(v)
			data = data[n:]

		case fieldOpPropertyID:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume property_id")
			}
			id, err := ids.IDFromBytes(b)
			if err != nil {
				return op, errors.PermanentContentError(err, "decode property_id")
			}
			op.PropertyID = id
			data = data[n:]

		case fieldOpDataType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume data_type")
			}
			op.DataType = model.DataType(v)
			data = data[n:]

		case fieldOpEntityID:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume entity_id")
			}
			id, err := ids.IDFromBytes(b)
			if err != nil {
				return op, errors.PermanentContentError(err, "decode entity_id")
			}
			op.EntityID = id
			data = data[n:]

		case fieldOpValuePropertyID:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume value_property_id")
			}
			id, err := ids.IDFromBytes(b)
			if err != nil {
				return op, errors.PermanentContentError(err, "decode value_property_id")
			}
			op.ValuePropertyID = id
			data = data[n:]

		case fieldOpValueSpaceID:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume value_space_id")
			}
			id, err := ids.IDFromBytes(b)
			if err != nil {
				return op, errors.PermanentContentError(err, "decode value_space_id")
			}
			op.ValueSpaceID = id
			data = data[n:]

		case fieldOpValueLanguage:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume value_language")
			}
			op.ValueLanguage = string(b)
			data = data[n:]

		case fieldOpValueUnit:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume value_unit")
			}
			op.ValueUnit = string(b)
			data = data[n:]

		case fieldOpValueRaw:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume value_raw")
			}
			op.ValueRaw = string(b)
			data = data[n:]

		case fieldOpValueIsDelete:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume value_is_delete")
			}
			op.ValueIsDelete = v != 0
			data = data[n:]

		case fieldOpUnsetPropertyIDs:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume unset_property_id")
			}
			unsetPropertyIDs = append(unsetPropertyIDs, b)
			data = data[n:]

		case fieldOpRelation:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume relation")
			}
			rel, err := decodeRelation(b)
			if err != nil {
				return op, err
			}
			op.Relation = rel
			data = data[n:]

		case fieldOpUnsetFieldsMask:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "consume unset_fields mask")
			}
			unsetMask = v
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return op, errors.PermanentContentError(protowire.ParseError(n), "skip unknown op field")
			}
			data = data[n:]
		}
	}

	for _, b := range unsetPropertyIDs {
		id, err := ids.IDFromBytes(b)
		if err != nil {
			return op, errors.PermanentContentError(err, "decode unset_property_id")
		}
		op.UnsetPropertyIDs = append(op.UnsetPropertyIDs, id)
	}

	op.UnsetFields = model.RelationUnsetFields{
		FromSpace:   unsetMask&unsetBitFromSpace != 0,
		ToSpace:     unsetMask&unsetBitToSpace != 0,
		FromVersion: unsetMask&unsetBitFromVersion != 0,
		ToVersion:   unsetMask&unsetBitToVersion != 0,
		Position:    unsetMask&unsetBitPosition != 0,
		Verified:    unsetMask&unsetBitVerified != 0,
	}

	return op, nil
}

func decodeRelation(data []byte) (*model.Relation, error) {
	rel := &model.Relation{}

	readID := func(b []byte) (ids.ID, error) { return ids.IDFromBytes(b) }

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.PermanentContentError(protowire.ParseError(n), "consume relation field tag")
		}
		data = data[n:]

		switch num {
		case fieldRelationID, fieldRelationTypeID, fieldRelationEntityID, fieldRelationSpaceID,
			fieldRelationFromEntity, fieldRelationToEntity, fieldRelationFromSpace, fieldRelationToSpace,
			fieldRelationFromVersion, fieldRelationToVersion:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, errors.PermanentContentError(protowire.ParseError(n), "consume relation id field")
			}
			id, err := readID(b)
			if err != nil {
				return nil, errors.PermanentContentError(err, "decode relation id field")
			}
			assignRelationID(rel, num, id)
			data = data[n:]

		case fieldRelationPosition:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, errors.PermanentContentError(protowire.ParseError(n), "consume position")
			}
			pos := string(b)
			rel.Position = &pos
			data = data[n:]

		case fieldRelationVerified:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, errors.PermanentContentError(protowire.ParseError(n), "consume verified")
			}
			verified := v != 0
			rel.Verified = &verified
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, errors.PermanentContentError(protowire.ParseError(n), "skip unknown relation field")
			}
			data = data[n:]
		}
	}

	return rel, nil
}

func assignRelationID(rel *model.Relation, field int32, id ids.ID) {
	switch field {
	case fieldRelationID:
		rel.ID = id
	case fieldRelationTypeID:
		rel.TypeID = id
	case fieldRelationEntityID:
		rel.EntityID = id
	case fieldRelationSpaceID:
		rel.SpaceID = id
	case fieldRelationFromEntity:
		rel.FromEntity = id
	case fieldRelationToEntity:
		rel.ToEntity = id
	case fieldRelationFromSpace:
		rel.FromSpace = &id
	case fieldRelationToSpace:
		rel.ToSpace = &id
	case fieldRelationFromVersion:
		rel.FromVersion = &id
	case fieldRelationToVersion:
		rel.ToVersion = &id
	}
}

// EncodeEdit serializes a model.Edit back to this package's wire format.
// Used by tests and by any future re-publication path; the resolver only
// ever decodes, since edits always arrive from IPFS already encoded.
func EncodeEdit(edit *model.Edit) []byte {
	var out []byte
	for _, op := range edit.Ops {
		opBytes := encodeOp(op)
		out = protowire.AppendTag(out, fieldEditOps, protowire.BytesType)
		out = protowire.AppendBytes(out, opBytes)
	}
	return out
}

func encodeOp(op model.Op) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldOpKind, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(op.Kind))

	if op.PropertyID != ids.Nil {
		out = protowire.AppendTag(out, fieldOpPropertyID, protowire.BytesType)
		out = protowire.AppendBytes(out, op.PropertyID[:])
	}
	out = protowire.AppendTag(out, fieldOpDataType, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(op.DataType))

	if op.EntityID != ids.Nil {
		out = protowire.AppendTag(out, fieldOpEntityID, protowire.BytesType)
		out = protowire.AppendBytes(out, op.EntityID[:])
	}
	if op.ValuePropertyID != ids.Nil {
		out = protowire.AppendTag(out, fieldOpValuePropertyID, protowire.BytesType)
		out = protowire.AppendBytes(out, op.ValuePropertyID[:])
	}
	if op.ValueSpaceID != ids.Nil {
		out = protowire.AppendTag(out, fieldOpValueSpaceID, protowire.BytesType)
		out = protowire.AppendBytes(out, op.ValueSpaceID[:])
	}
	if op.ValueLanguage != "" {
		out = protowire.AppendTag(out, fieldOpValueLanguage, protowire.BytesType)
		out = protowire.AppendBytes(out, []byte(op.ValueLanguage))
	}
	if op.ValueUnit != "" {
		out = protowire.AppendTag(out, fieldOpValueUnit, protowire.BytesType)
		out = protowire.AppendBytes(out, []byte(op.ValueUnit))
	}
	if op.ValueRaw != "" {
		out = protowire.AppendTag(out, fieldOpValueRaw, protowire.BytesType)
		out = protowire.AppendBytes(out, []byte(op.ValueRaw))
	}
	if op.ValueIsDelete {
		out = protowire.AppendTag(out, fieldOpValueIsDelete, protowire.VarintType)
		out = protowire.AppendVarint(out, 1)
	}
	for _, id := range op.UnsetPropertyIDs {
		out = protowire.AppendTag(out, fieldOpUnsetPropertyIDs, protowire.BytesType)
		out = protowire.AppendBytes(out, id[:])
	}
	if op.Relation != nil {
		out = protowire.AppendTag(out, fieldOpRelation, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeRelation(op.Relation))
	}

	var mask uint64
	if op.UnsetFields.FromSpace {
		mask |= unsetBitFromSpace
	}
	if op.UnsetFields.ToSpace {
		mask |= unsetBitToSpace
	}
	if op.UnsetFields.FromVersion {
		mask |= unsetBitFromVersion
	}
	if op.UnsetFields.ToVersion {
		mask |= unsetBitToVersion
	}
	if op.UnsetFields.Position {
		mask |= unsetBitPosition
	}
	if op.UnsetFields.Verified {
		mask |= unsetBitVerified
	}
	if mask != 0 {
		out = protowire.AppendTag(out, fieldOpUnsetFieldsMask, protowire.VarintType)
		out = protowire.AppendVarint(out, mask)
	}

	return out
}

func encodeRelation(rel *model.Relation) []byte {
	var out []byte
	appendID := func(field int32, id ids.ID) {
		out = protowire.AppendTag(out, protowire.Number(field), protowire.BytesType)
		out = protowire.AppendBytes(out, id[:])
	}

	appendID(fieldRelationID, rel.ID)
	appendID(fieldRelationTypeID, rel.TypeID)
	appendID(fieldRelationEntityID, rel.EntityID)
	appendID(fieldRelationSpaceID, rel.SpaceID)
	appendID(fieldRelationFromEntity, rel.FromEntity)
	appendID(fieldRelationToEntity, rel.ToEntity)

	if rel.FromSpace != nil {
		appendID(fieldRelationFromSpace, *rel.FromSpace)
	}
	if rel.ToSpace != nil {
		appendID(fieldRelationToSpace, *rel.ToSpace)
	}
	if rel.FromVersion != nil {
		appendID(fieldRelationFromVersion, *rel.FromVersion)
	}
	if rel.ToVersion != nil {
		appendID(fieldRelationToVersion, *rel.ToVersion)
	}
	if rel.Position != nil {
		out = protowire.AppendTag(out, fieldRelationPosition, protowire.BytesType)
		out = protowire.AppendBytes(out, []byte(*rel.Position))
	}
	if rel.Verified != nil {
		out = protowire.AppendTag(out, fieldRelationVerified, protowire.VarintType)
		v := uint64(0)
		if *rel.Verified {
			v = 1
		}
		out = protowire.AppendVarint(out, v)
	}

	return out
}
