package ipfscache

import "sync"

type pendingBlock struct {
	cursor    string
	remaining int
}

// PendingFetches is the block-ordered map from spec §4.3: tracks, per
// block, how many in-flight CID fetches remain, and guarantees that a
// cursor is only ever handed back for persistence once the *minimum* live
// block has fully drained — never ahead of any incomplete fetch, even
// when later blocks finish first.
type PendingFetches struct {
	mu     sync.Mutex
	blocks map[uint64]*pendingBlock
	order  []uint64 // ascending, currently-pending block numbers
}

// NewPendingFetches constructs an empty tracker.
func NewPendingFetches() *PendingFetches {
	return &PendingFetches{blocks: make(map[uint64]*pendingBlock)}
}

// Register records blockNumber's cursor and how many fetches it is
// waiting on. A count of 0 drains on the first CompleteOne call for that
// block; callers with zero edits in a block register a count of 1 and call
// CompleteOne once, as Resolver.HandleBlock and Resolver.ResolveBlock do.
func (p *PendingFetches) Register(blockNumber uint64, cursor string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.blocks[blockNumber] = &pendingBlock{cursor: cursor, remaining: count}
	p.insertOrder(blockNumber)
}

func (p *PendingFetches) insertOrder(blockNumber uint64) {
	i := 0
	for i < len(p.order) && p.order[i] < blockNumber {
		i++
	}
	p.order = append(p.order, 0)
	copy(p.order[i+1:], p.order[i:])
	p.order[i] = blockNumber
}

func (p *PendingFetches) removeOrder(blockNumber uint64) {
	for i, b := range p.order {
		if b == blockNumber {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// CompleteOne decrements blockNumber's remaining counter by one fetch
// completion (success or permanent failure). It returns (cursor, true)
// only when blockNumber was both the minimum pending block and just
// reached zero remaining; otherwise (\"\", false).
func (p *PendingFetches) CompleteOne(blockNumber uint64) (cursor string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, exists := p.blocks[blockNumber]
	if !exists {
		return "", false
	}

	entry.remaining--
	if entry.remaining > 0 {
		return "", false
	}

	isMin := len(p.order) > 0 && p.order[0] == blockNumber
	delete(p.blocks, blockNumber)
	p.removeOrder(blockNumber)

	if !isMin {
		return "", false
	}
	return entry.cursor, true
}

// Len reports how many blocks are currently pending, for diagnostics.
func (p *PendingFetches) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}
