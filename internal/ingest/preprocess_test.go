package ingest

import (
	"crypto/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestAddress(t *testing.T) ids.Address {
	t.Helper()
	var b [20]byte
	_, err := rand.Read(b[:])
	require.NoError(t, err)
	addr, err := ids.AddressFromBytes(b[:])
	require.NoError(t, err)
	return addr
}

func TestFilterBlocklistDropsBlockedDAO(t *testing.T) {
	blocked := newTestAddress(t)
	allowed := newTestAddress(t)
	p := NewPreprocessor([]ids.Address{blocked}, nil, testLogger())

	edits := []model.PendingEdit{
		{DAOAddress: blocked, ContentURI: "ipfs://a"},
		{DAOAddress: allowed, ContentURI: "ipfs://b"},
	}

	out := p.filterBlocklist(edits)
	assert.Len(t, out, 1)
	assert.Equal(t, allowed, out[0].DAOAddress)
}

func TestFilterBlocklistNoopWhenEmpty(t *testing.T) {
	p := NewPreprocessor(nil, nil, testLogger())
	edits := []model.PendingEdit{{DAOAddress: newTestAddress(t)}}
	out := p.filterBlocklist(edits)
	assert.Equal(t, edits, out)
}

func TestJoinSpacesWithPluginsKeepsOnlyMatched(t *testing.T) {
	p := NewPreprocessor(nil, nil, testLogger())

	withGov := ids.NewID()
	withPersonal := ids.NewID()
	withoutPlugin := ids.NewID()

	output := model.Output{
		SpacesCreated: []model.Space{
			{SpaceID: withGov},
			{SpaceID: withPersonal},
			{SpaceID: withoutPlugin},
		},
		GovernancePlugins: []model.GovernancePlugin{
			{SpaceID: withGov, DAOAddress: newTestAddress(t)},
		},
		PersonalAdminPlugins: []model.PersonalAdminPlugin{
			{SpaceID: withPersonal, AdminAddress: newTestAddress(t)},
		},
	}

	out := p.joinSpacesWithPlugins(output)
	assert.Len(t, out, 2)

	kept := map[ids.ID]bool{}
	for _, s := range out {
		kept[s.SpaceID] = true
	}
	assert.True(t, kept[withGov])
	assert.True(t, kept[withPersonal])
	assert.False(t, kept[withoutPlugin])
}

func TestDeriveMemberEventsOnlyForCreatedSpaces(t *testing.T) {
	p := NewPreprocessor(nil, nil, testLogger())

	createdSpace := ids.NewID()
	otherSpace := ids.NewID()
	editorOfCreated := newTestAddress(t)
	editorOfOther := newTestAddress(t)

	editors := []model.EditorEvent{
		{DAOSpaceID: createdSpace, Editor: editorOfCreated},
		{DAOSpaceID: otherSpace, Editor: editorOfOther},
	}
	created := []model.Space{{SpaceID: createdSpace}}

	members := p.deriveMemberEvents(editors, created)
	assert.Len(t, members, 1)
	assert.Equal(t, createdSpace, members[0].DAOSpaceID)
	assert.Equal(t, editorOfCreated, members[0].Member)
}

func TestDeriveMemberEventsEmptyWhenNoSpacesCreated(t *testing.T) {
	p := NewPreprocessor(nil, nil, testLogger())
	editors := []model.EditorEvent{{DAOSpaceID: ids.NewID(), Editor: newTestAddress(t)}}
	members := p.deriveMemberEvents(editors, nil)
	assert.Empty(t, members)
}
