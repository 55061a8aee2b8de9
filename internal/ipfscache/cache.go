// Package ipfscache implements the content-addressed cache mapping CID to
// a decoded Edit (or an errored marker), per-consumer cursor storage, and
// the CID Resolver pipeline that fetches missing CIDs from the IPFS
// gateway with retry/backoff (spec §4.3).
package ipfscache

import (
	"context"
	"strings"

	"github.com/hermesgraph/ingestd/internal/model"
)

// Cache is the IPFS cache contract from spec §4.3: has/get/put plus
// per-consumer cursor load/persist. It is a multi-reader single-writer
// store; Put is idempotent and safe under concurrent calls (spec §5).
type Cache interface {
	Has(ctx context.Context, cid string) (bool, error)

	// Get returns (item, true, nil) when cid is populated, (nil, false,
	// nil) when it is NotPopulated (the caller should fetch), or a
	// non-nil error for a storage failure.
	Get(ctx context.Context, cid string) (*model.PreprocessedEdit, bool, error)

	// Put is an idempotent upsert.
	Put(ctx context.Context, item *model.PreprocessedEdit) error

	LoadCursor(ctx context.Context, consumerID string) (string, error)
	PersistCursor(ctx context.Context, consumerID string, cursor string, block uint64) error
}

// StripIPFSPrefix removes a leading "ipfs://" from a content URI, per spec
// §6 ("URIs may carry an ipfs:// prefix to be stripped").
func StripIPFSPrefix(uri string) string {
	return strings.TrimPrefix(uri, "ipfs://")
}
