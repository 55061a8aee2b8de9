package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientAndPermanentClassification(t *testing.T) {
	transient := TransientErrorf(errors.New("dial tcp: timeout"), "fetch cid %s", "bafy123")
	permanent := PermanentContentError(errors.New("bad varint"), "decode edit")

	assert.True(t, IsTransient(transient))
	assert.False(t, IsPermanent(transient))

	assert.True(t, IsPermanent(permanent))
	assert.False(t, IsTransient(permanent))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsPermanent(errors.New("plain error")))
}

func TestProtocolErrorIsNotFatalButSkipsCleanly(t *testing.T) {
	err := ProtocolErrorf("block %d: empty output", 42)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeProtocol, GetType(err))
	assert.False(t, IsFatal(err))
}

func TestWithContextChaining(t *testing.T) {
	err := PermanentContentError(nil, "unknown data type code").
		WithContext("code", 9).
		WithContext("edit_cid", "bafy456")

	assert.Equal(t, 9, err.Context["code"])
	assert.Equal(t, "bafy456", err.Context["edit_cid"])
}

func TestConfigErrorIsFatal(t *testing.T) {
	err := ConfigErrorf("missing required env var %s", "GATEWAY_URL")
	assert.True(t, err.IsFatal())
	assert.True(t, IsFatal(err))
}

func TestWrapWithNilCauseStillUsable(t *testing.T) {
	err := PermanentContentError(nil, "unknown data type code")
	require.NotNil(t, err)
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "unknown data type code", err.Error())
}
