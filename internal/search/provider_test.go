package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hermesgraph/ingestd/internal/ids"
)

func TestValidateIDsRejectsZeroValue(t *testing.T) {
	entityID := newTestID(1)
	var zero ids.ID

	assert.Error(t, validateIDs(zero, entityID))
	assert.Error(t, validateIDs(entityID, zero))
	assert.NoError(t, validateIDs(entityID, newTestID(2)))
}

func TestValidatePropertyKeysRejectsEmptyAndBadChars(t *testing.T) {
	assert.Error(t, validatePropertyKeys(nil))
	assert.Error(t, validatePropertyKeys([]string{"bad key"}))
	assert.Error(t, validatePropertyKeys([]string{"bad-key"}))
	assert.NoError(t, validatePropertyKeys([]string{"description", "avatar_url"}))
}

func TestUnsetPropertiesScriptRemovesEachKey(t *testing.T) {
	script := unsetPropertiesScript([]string{"description", "avatar"})
	assert.Contains(t, script, "ctx._source.remove('description');")
	assert.Contains(t, script, "ctx._source.remove('avatar');")
}
