package ipfscache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hermesgraph/ingestd/internal/chain"
	"github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/logging"
	"github.com/hermesgraph/ingestd/internal/model"
	"github.com/hermesgraph/ingestd/internal/retry"
)

// defaultResolverConcurrency is the CID Resolver's bounded fetch permit
// count (spec §4.3 step 2).
const defaultResolverConcurrency = 20

// Limiter is satisfied by both LocalRateLimiter and DistributedRateLimiter;
// the resolver waits for a permit before every gateway fetch.
type Limiter interface {
	Wait(ctx context.Context) error
}

// localLimiterAdapter lets a DistributedRateLimiter's poll-based Allow
// present the same blocking Wait contract LocalRateLimiter exposes
// natively.
type localLimiterAdapter struct {
	inner interface {
		Allow(ctx context.Context) (bool, error)
	}
}

func (l *localLimiterAdapter) Wait(ctx context.Context) error {
	for {
		ok, err := l.inner.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// WrapDistributed adapts a DistributedRateLimiter to the Limiter interface.
func WrapDistributed(l *DistributedRateLimiter) Limiter {
	return &localLimiterAdapter{inner: l}
}

// Resolver is the CID Resolver pipeline (spec §4.3): it subscribes to
// EditsPublished actions, fetches each edit's content from the IPFS
// gateway bounded by a semaphore and a rate limiter, decodes it, and
// writes the result into Cache. It coordinates cursor persistence across
// concurrent, out-of-order fetches via PendingFetches.
type Resolver struct {
	gatewayURL  string
	httpClient  *http.Client
	cache       Cache
	limiter     Limiter
	sem         *semaphore.Weighted
	retryPolicy retry.Policy
	pending     *PendingFetches
	logger      *logging.Logger
	consumerID  string
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	GatewayURL  string
	Concurrency int64 // 0 defaults to 20
	RetryPolicy retry.Policy
	ConsumerID  string
}

// NewResolver constructs a Resolver. The cache's PersistCursor is called
// at most once per block, when that block has fully drained and is the
// minimum pending block; a block that drains while a lower block is still
// pending is dropped without persisting its cursor (spec §4.3 step 3).
func NewResolver(cfg ResolverConfig, cache Cache, limiter Limiter, logger *logging.Logger) *Resolver {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultResolverConcurrency
	}
	policy := cfg.RetryPolicy
	if policy == (retry.Policy{}) {
		policy = retry.DefaultPolicy()
	}

	return &Resolver{
		gatewayURL:  strings.TrimSuffix(cfg.GatewayURL, "/") + "/",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		cache:       cache,
		limiter:     limiter,
		sem:         semaphore.NewWeighted(concurrency),
		retryPolicy: policy,
		pending:     NewPendingFetches(),
		logger:      logger,
		consumerID:  cfg.ConsumerID,
	}
}

// HandleBlock registers a block's pending edits and spawns a bounded fetch
// per edit. It returns once every fetch for the block has been launched;
// fetches themselves continue in the background and drive cursor
// persistence asynchronously via complete_one.
func (r *Resolver) HandleBlock(ctx context.Context, blockNumber uint64, cursor string, edits []model.PendingEdit) {
	if len(edits) == 0 {
		r.pending.Register(blockNumber, cursor, 1)
		r.complete(ctx, blockNumber)
		return
	}

	r.pending.Register(blockNumber, cursor, len(edits))
	for _, edit := range edits {
		edit := edit
		go r.fetch(ctx, blockNumber, edit)
	}
}

// OnEditsPublished adapts the BlockSource-driven chain.EditsPublished
// stream into per-block HandleBlock calls; cursor/blockNumber come from
// the enclosing BlockScopedData the caller is iterating.
func (r *Resolver) OnEditsPublished(ctx context.Context, blockNumber uint64, cursor string, spaceID ids.ID, action chain.EditsPublished) {
	r.HandleBlock(ctx, blockNumber, cursor, []model.PendingEdit{{
		SpaceID:    spaceID,
		ContentURI: action.ContentURI,
		DAOAddress: action.DAOAddress,
	}})
}

// Requeue re-fetches a single CID outside the normal block-ordered flow,
// for operator-triggered recovery of a cache entry recorded as errored
// after its backoff budget was exhausted (spec §9 open question: replay
// is deliberately not automatic).
func (r *Resolver) Requeue(ctx context.Context, spaceID ids.ID, contentURI string) error {
	cid := StripIPFSPrefix(contentURI)
	item, err := r.resolveOne(ctx, spaceID, cid)
	if err != nil {
		return err
	}
	return r.cache.Put(ctx, item)
}

// ResolveBlock runs HandleBlock's fetch logic but blocks until every edit
// in the block has resolved (from cache or gateway), returning one
// PreprocessedEdit per input edit in the same order. Cursor persistence
// still follows the decoupled PendingFetches bookkeeping; a caller that
// only needs content for the edit sub-handler should use this instead of
// HandleBlock.
func (r *Resolver) ResolveBlock(ctx context.Context, blockNumber uint64, cursor string, edits []model.PendingEdit) []*model.PreprocessedEdit {
	results := make([]*model.PreprocessedEdit, len(edits))

	if len(edits) == 0 {
		r.pending.Register(blockNumber, cursor, 1)
		r.complete(ctx, blockNumber)
		return results
	}

	r.pending.Register(blockNumber, cursor, len(edits))

	var wg sync.WaitGroup
	wg.Add(len(edits))
	for i, edit := range edits {
		i, edit := i, edit
		go func() {
			defer wg.Done()
			results[i] = r.resolveEdit(ctx, blockNumber, edit)
		}()
	}
	wg.Wait()

	return results
}

func (r *Resolver) fetch(ctx context.Context, blockNumber uint64, edit model.PendingEdit) {
	r.resolveEdit(ctx, blockNumber, edit)
}

func (r *Resolver) resolveEdit(ctx context.Context, blockNumber uint64, edit model.PendingEdit) *model.PreprocessedEdit {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.logger.Warn("resolver: semaphore acquire aborted", "error", err)
		r.complete(ctx, blockNumber)
		return &model.PreprocessedEdit{SpaceID: edit.SpaceID, IsErrored: true}
	}
	defer r.sem.Release(1)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			r.logger.Warn("resolver: rate limiter wait aborted", "error", err)
			r.complete(ctx, blockNumber)
			return &model.PreprocessedEdit{SpaceID: edit.SpaceID, IsErrored: true}
		}
	}

	cid := StripIPFSPrefix(edit.ContentURI)

	if cached, found, err := r.cache.Get(ctx, cid); err == nil && found {
		r.complete(ctx, blockNumber)
		return cached
	}

	item, err := r.resolveOne(ctx, edit.SpaceID, cid)
	if err != nil {
		r.logger.Error("resolver: permanent fetch failure, recording errored marker", "cid", cid, "error", err)
		item = &model.PreprocessedEdit{SpaceID: edit.SpaceID, CID: cid, IsErrored: true}
	}

	if err := r.cache.Put(ctx, item); err != nil {
		r.logger.Error("resolver: cache put failed", "cid", cid, "error", err)
	}

	r.complete(ctx, blockNumber)
	return item
}

// resolveOne fetches and decodes a single CID, retrying transient gateway
// errors per the resolver's backoff policy (spec §4.2 step 3, §4.3).
func (r *Resolver) resolveOne(ctx context.Context, spaceID ids.ID, cid string) (*model.PreprocessedEdit, error) {
	var item *model.PreprocessedEdit

	err := retry.Do(ctx, r.retryPolicy, errors.IsTransient, func() error {
		payload, err := r.fetchGateway(ctx, cid)
		if err != nil {
			return err
		}

		edit, err := DecodeEdit(spaceID, payload)
		if err != nil {
			return err
		}

		item = &model.PreprocessedEdit{SpaceID: spaceID, CID: cid, Edit: edit}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Resolver) fetchGateway(ctx context.Context, cid string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.gatewayURL+cid, nil)
	if err != nil {
		return nil, errors.PermanentContentError(err, "build gateway request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransientError(err, "gateway request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.TransientError(err, "read gateway response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, errors.PermanentContentErrorf(fmt.Errorf("gateway status %d", resp.StatusCode), "cid %s not found", cid)
	default:
		return nil, errors.TransientErrorf(fmt.Errorf("gateway status %d", resp.StatusCode), "gateway fetch for cid %s", cid)
	}
}

func (r *Resolver) complete(ctx context.Context, blockNumber uint64) {
	cursor, ok := r.pending.CompleteOne(blockNumber)
	if !ok {
		return
	}
	if err := r.cache.PersistCursor(ctx, r.consumerID, cursor, blockNumber); err != nil {
		r.logger.Error("resolver: cursor persistence failed", "block", blockNumber, "error", err)
	}
}
