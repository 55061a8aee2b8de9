package chain

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/ids"
)

func word(fill func([]byte)) []byte {
	b := make([]byte, wordSize)
	fill(b)
	return b
}

func TestDecodeSpaceRegisteredDAO(t *testing.T) {
	spaceID := ids.NewID()
	var buf bytes.Buffer
	buf.Write(spaceID[:])
	buf.Write(word(func(b []byte) {})) // zero topic field -> DAO

	editor := ids.NewID()
	member := ids.NewID()
	binary.Write(&buf, binary.BigEndian, uint16(1))
	buf.Write(editor[:])
	binary.Write(&buf, binary.BigEndian, uint16(1))
	buf.Write(member[:])

	out, err := DecodeSpaceRegistered(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, out.IsDAO)
	assert.Equal(t, spaceID, out.SpaceID)
	assert.Equal(t, []ids.ID{editor}, out.Editors)
	assert.Equal(t, []ids.ID{member}, out.Members)
}

func TestDecodeSpaceRegisteredPersonal(t *testing.T) {
	spaceID := ids.NewID()
	owner := ids.NewID()
	var buf bytes.Buffer
	buf.Write(spaceID[:])
	buf.Write(word(func(b []byte) { copy(b[16:32], owner[:]) }))
	binary.Write(&buf, binary.BigEndian, uint16(0))
	binary.Write(&buf, binary.BigEndian, uint16(0))

	out, err := DecodeSpaceRegistered(buf.Bytes())
	require.NoError(t, err)
	assert.False(t, out.IsDAO)
	assert.Equal(t, owner, out.Owner)
}

func TestDecodeSubspaceAddedVerified(t *testing.T) {
	source := ids.NewID()
	target := ids.NewID()
	var buf bytes.Buffer
	buf.Write(source[:])
	buf.Write(word(func(b []byte) { copy(b[0:16], target[:]) }))
	binary.Write(&buf, binary.BigEndian, uint16(TrustKindVerified))

	out, err := DecodeSubspaceAdded(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, TrustKindVerified, out.Kind)
	assert.Equal(t, target, out.TargetSpace)
}

func TestDecodeSubspaceAddedSubtopic(t *testing.T) {
	source := ids.NewID()
	topic := ids.NewID()
	var buf bytes.Buffer
	buf.Write(source[:])
	buf.Write(word(func(b []byte) { copy(b[16:32], topic[:]) }))
	binary.Write(&buf, binary.BigEndian, uint16(TrustKindSubtopic))

	out, err := DecodeSubspaceAdded(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, TrustKindSubtopic, out.Kind)
	assert.Equal(t, topic, out.TargetTopic)
}

func TestDecodeEditsPublished(t *testing.T) {
	uri := []byte("ipfs://bafy123")
	addr := ids.Address{1, 2, 3}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(uri)))
	buf.Write(uri)
	buf.Write(addr[:])

	out, err := DecodeEditsPublished(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, string(uri), out.ContentURI)
	assert.Equal(t, addr, out.DAOAddress)
}

func TestDecodeActionLogHeaderWithMetadata(t *testing.T) {
	spacePOV := ids.NewID()
	groupID := ids.NewID()
	objectID := ids.NewID()
	metadata := []byte("hello metadata")

	word1 := make([]byte, wordSize)
	binary.BigEndian.PutUint16(word1[0:2], 7)
	binary.BigEndian.PutUint16(word1[2:4], 1)
	word1[4] = byte(ObjectTypeRelation) << 4
	copy(word1[16:32], spacePOV[:])

	word2 := make([]byte, wordSize)
	copy(word2[0:16], groupID[:])
	copy(word2[16:32], objectID[:])

	word3 := make([]byte, wordSize) // offset to dynamic payload = 96 (3 words in)
	binary.BigEndian.PutUint64(word3[24:32], uint64(wordSize*3))

	lenWord := make([]byte, wordSize)
	binary.BigEndian.PutUint64(lenWord[24:32], uint64(len(metadata)))

	var payload bytes.Buffer
	payload.Write(word1)
	payload.Write(word2)
	payload.Write(word3)
	payload.Write(lenWord)
	payload.Write(metadata)

	h, meta, err := DecodeActionLogHeader(payload.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(7), h.ActionType)
	assert.Equal(t, uint16(1), h.ActionVersion)
	assert.Equal(t, ObjectTypeRelation, h.ObjectType)
	assert.Equal(t, spacePOV, h.SpacePOV)
	assert.Equal(t, groupID, h.GroupID)
	assert.Equal(t, objectID, h.ObjectID)
	assert.Equal(t, metadata, meta)
}
