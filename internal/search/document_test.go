package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentIDFormat(t *testing.T) {
	entityID, spaceID := newTestID(1), newTestID(2)
	doc := NewEntityDocument(entityID, spaceID, nil, nil)

	assert.Equal(t, entityID.String()+"_"+spaceID.String(), doc.DocumentID())
}
