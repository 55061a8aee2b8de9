package chain

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
)

const wordSize = 32

// DecodeSpaceRegistered parses a SpaceRegistered action payload: space_id
// (16 bytes), a 32-byte topic field (zero for DAO, owner id in the last 16
// bytes for personal), then `u16 n_editors, n*16B ids, u16 n_members,
// m*16B ids` (spec §6).
func DecodeSpaceRegistered(data []byte) (SpaceRegistered, error) {
	var out SpaceRegistered
	if len(data) < 16+wordSize+2 {
		return out, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("space registered payload too short: %d bytes", len(data)))
	}

	spaceID, err := ids.IDFromBytes(data[0:16])
	if err != nil {
		return out, ingesterrors.PermanentContentError(err, "decode space_id")
	}
	out.SpaceID = spaceID

	topicField := data[16 : 16+wordSize]
	if isZero(topicField) {
		out.IsDAO = true
	} else {
		owner, err := ids.IDFromBytes(topicField[16:32])
		if err != nil {
			return out, ingesterrors.PermanentContentError(err, "decode owner")
		}
		out.Owner = owner
	}

	cursor := 16 + wordSize
	editors, next, err := readIDList(data, cursor)
	if err != nil {
		return out, ingesterrors.PermanentContentError(err, "decode editors")
	}
	out.Editors = editors

	members, _, err := readIDList(data, next)
	if err != nil {
		return out, ingesterrors.PermanentContentError(err, "decode members")
	}
	out.Members = members

	return out, nil
}

// readIDList reads a `u16 count, count*16B ids` run starting at offset.
func readIDList(data []byte, offset int) ([]ids.ID, int, error) {
	if offset+2 > len(data) {
		return nil, 0, ingesterrors.ProtocolErrorf("id list count truncated at offset %d", offset)
	}
	count := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	need := int(count) * 16
	if offset+need > len(data) {
		return nil, 0, ingesterrors.ProtocolErrorf("id list of %d entries truncated at offset %d", count, offset)
	}

	out := make([]ids.ID, 0, count)
	for i := 0; i < int(count); i++ {
		id, err := ids.IDFromBytes(data[offset : offset+16])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, id)
		offset += 16
	}
	return out, offset, nil
}

// DecodeSubspaceAdded parses source[16], a 32-byte slot holding either the
// target space (bytes 0:16) or the target topic (bytes 16:32), and a
// trailing u16 trust_kind discriminant (spec §6).
func DecodeSubspaceAdded(data []byte) (SubspaceAdded, error) {
	var out SubspaceAdded
	if len(data) < 16+wordSize+2 {
		return out, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("subspace added payload too short: %d bytes", len(data)))
	}

	source, err := ids.IDFromBytes(data[0:16])
	if err != nil {
		return out, ingesterrors.PermanentContentError(err, "decode source")
	}
	out.Source = source

	slot := data[16 : 16+wordSize]
	kind := TrustKind(binary.BigEndian.Uint16(data[16+wordSize : 16+wordSize+2]))
	out.Kind = kind

	switch kind {
	case TrustKindVerified, TrustKindRelated:
		target, err := ids.IDFromBytes(slot[0:16])
		if err != nil {
			return out, ingesterrors.PermanentContentError(err, "decode target space")
		}
		out.TargetSpace = target
	case TrustKindSubtopic:
		topic, err := ids.IDFromBytes(slot[16:32])
		if err != nil {
			return out, ingesterrors.PermanentContentError(err, "decode target topic")
		}
		out.TargetTopic = topic
	default:
		return out, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("unknown trust_kind 0x%04x", uint16(kind)))
	}

	return out, nil
}

// DecodeEditsPublished parses a length-prefixed content_uri string followed
// by a 20-byte dao_address (spec §6).
func DecodeEditsPublished(data []byte) (EditsPublished, error) {
	var out EditsPublished
	if len(data) < 4 {
		return out, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("edits published payload too short: %d bytes", len(data)))
	}

	uriLen := binary.BigEndian.Uint32(data[0:4])
	offset := 4
	if offset+int(uriLen)+20 > len(data) {
		return out, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("edits published payload truncated: uri_len=%d, trailing bytes %s", uriLen, hexutil.Encode(data[offset:])))
	}

	out.ContentURI = string(data[offset : offset+int(uriLen)])
	offset += int(uriLen)

	// go-ethereum's common.Address round-trips the raw 20 bytes and gives
	// us its checksum-aware Hex() for logging; the decoder's own ids.Address
	// stays the type the rest of the pipeline programs against.
	ethAddr := common.BytesToAddress(data[offset : offset+20])
	addr, err := ids.AddressFromBytes(ethAddr.Bytes())
	if err != nil {
		return out, ingesterrors.PermanentContentError(err, "decode dao_address")
	}
	out.DAOAddress = addr

	return out, nil
}

// DecodeActionLogHeader parses the raw on-chain action log payload's fixed
// header: word1 = action_type:u16 | action_version:u16 | object_type:4bits
// (padded) | space_pov:16B (last 16 bytes of the word); word2 =
// group_id:16B | object_id:16B (spec §6).
func DecodeActionLogHeader(payload []byte) (ActionLogHeader, []byte, error) {
	var h ActionLogHeader
	if len(payload) < wordSize*3 {
		return h, nil, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("action log payload too short: %d bytes", len(payload)))
	}

	word1 := payload[0:wordSize]
	h.ActionType = binary.BigEndian.Uint16(word1[0:2])
	h.ActionVersion = binary.BigEndian.Uint16(word1[2:4])
	h.ObjectType = ObjectType(word1[4] >> 4)

	spacePOV, err := ids.IDFromBytes(word1[wordSize-16 : wordSize])
	if err != nil {
		return h, nil, ingesterrors.PermanentContentError(err, "decode space_pov")
	}
	h.SpacePOV = spacePOV

	word2 := payload[wordSize : wordSize*2]
	groupID, err := ids.IDFromBytes(word2[0:16])
	if err != nil {
		return h, nil, ingesterrors.PermanentContentError(err, "decode group_id")
	}
	h.GroupID = groupID

	objectID, err := ids.IDFromBytes(word2[16:32])
	if err != nil {
		return h, nil, ingesterrors.PermanentContentError(err, "decode object_id")
	}
	h.ObjectID = objectID

	metadata, err := decodeDynamicMetadata(payload)
	if err != nil {
		return h, nil, err
	}

	return h, metadata, nil
}

// decodeDynamicMetadata follows the ABI-style offset word at [64:96) to a
// length-prefixed dynamic metadata payload.
func decodeDynamicMetadata(payload []byte) ([]byte, error) {
	if len(payload) < wordSize*3 {
		return nil, ingesterrors.ProtocolErrorf("action log payload missing metadata offset word")
	}

	offsetWord := payload[wordSize*2 : wordSize*3]
	offset := new(big.Int).SetBytes(offsetWord).Uint64()

	if offset+wordSize > uint64(len(payload)) {
		return nil, ingesterrors.ProtocolErrorf("metadata offset %d out of range (payload len %d)", offset, len(payload))
	}

	lengthWord := payload[offset : offset+wordSize]
	length := new(big.Int).SetBytes(lengthWord).Uint64()

	start := offset + wordSize
	if start+length > uint64(len(payload)) {
		return nil, ingesterrors.ProtocolErrorf("metadata length %d out of range at offset %d", length, start)
	}

	return payload[start : start+length], nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
