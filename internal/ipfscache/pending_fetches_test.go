package ipfscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestS5CIDOrdering reproduces spec §8 scenario S5 exactly: block 100 with
// 3 edits, block 101 with 1 edit, completions in order (100,100,101,100).
func TestS5CIDOrdering(t *testing.T) {
	p := NewPendingFetches()
	p.Register(100, "cursor-100", 3)
	p.Register(101, "cursor-101", 1)

	_, ok := p.CompleteOne(100)
	assert.False(t, ok)

	_, ok = p.CompleteOne(100)
	assert.False(t, ok)

	_, ok = p.CompleteOne(101)
	assert.False(t, ok, "101 drained but is not the minimum pending block yet")

	cursor, ok := p.CompleteOne(100)
	assert.True(t, ok)
	assert.Equal(t, "cursor-100", cursor)

	assert.Equal(t, 0, p.Len())
}

// TestPendingFetchesAdvancesToNextMinimum: once 100 is gone, a fresh
// registration+drain of 101 persists immediately since it is now the
// minimum live block.
func TestPendingFetchesAdvancesToNextMinimum(t *testing.T) {
	p := NewPendingFetches()
	p.Register(101, "cursor-101", 1)

	cursor, ok := p.CompleteOne(101)
	assert.True(t, ok)
	assert.Equal(t, "cursor-101", cursor)
}

// TestPendingFetchesUniversalInvariant: complete_one(b) returns Some(b,
// cursor) iff b is the minimum live block and its remaining counter
// reaches zero (spec §8 universal invariant).
func TestPendingFetchesUniversalInvariant(t *testing.T) {
	p := NewPendingFetches()
	p.Register(5, "c5", 1)
	p.Register(6, "c6", 1)
	p.Register(7, "c7", 1)

	// Complete the non-minimum blocks first: neither should persist.
	_, ok := p.CompleteOne(7)
	assert.False(t, ok)
	_, ok = p.CompleteOne(6)
	assert.False(t, ok)

	// Now 5 is both minimum and draining: persists.
	cursor, ok := p.CompleteOne(5)
	assert.True(t, ok)
	assert.Equal(t, "c5", cursor)
}
