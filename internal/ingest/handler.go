// Package ingest implements the Edit Ingestion Pipeline (spec §4.2):
// preprocessing, squashing, and the per-block transactional handler that
// applies a block's spaces, trust edges, memberships, subspaces, editors,
// and edits to storage and to the in-memory topology engine.
package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
	"github.com/hermesgraph/ingestd/internal/storage"
	"github.com/hermesgraph/ingestd/internal/topology"
	"github.com/hermesgraph/ingestd/internal/topology/export"
)

// Handler is the per-block transactional handler. Each sub-handler
// (space, trust, membership, subspace, editor, edit) runs concurrently and
// is joined before the block cursor commits.
type Handler struct {
	store      storage.Store
	engine     *topology.Engine
	mirror     export.Mirror
	consumerID string
	logger     *logrus.Logger
}

// NewHandler constructs a Handler. consumerID identifies this handler's
// own resume cursor, distinct from the CID resolver's cursor. mirror
// receives the recomputed canonical graph whenever Engine.Apply reports a
// change; pass export.NoopMirror{} to skip the Neo4j sink entirely.
func NewHandler(store storage.Store, engine *topology.Engine, mirror export.Mirror, consumerID string, logger *logrus.Logger) *Handler {
	return &Handler{store: store, engine: engine, mirror: mirror, consumerID: consumerID, logger: logger}
}

// HandleBlock applies one block's preprocessed content and advances the
// block cursor once every sub-handler has joined.
func (h *Handler) HandleBlock(ctx context.Context, blockNumber uint64, cursor string, pre *Preprocessed) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return h.handleSpaces(gctx, blockNumber, pre.Spaces) })
	g.Go(func() error { return h.handleTrustEdges(gctx, pre.TrustEdges) })
	g.Go(func() error { return h.handleMemberships(gctx, pre.MembershipDeltas) })
	g.Go(func() error { return h.handleSubspaces(gctx, pre.SubspaceDeltas) })
	g.Go(func() error { return h.handleEditorsAndMembers(gctx, pre.Editors, pre.Members) })
	g.Go(func() error { return h.handleEdits(gctx, blockNumber, pre.Edits) })

	if err := g.Wait(); err != nil {
		return err
	}

	if err := h.store.PersistBlockCursor(ctx, h.consumerID, cursor, blockNumber); err != nil {
		return ingesterrors.DatabaseError(err, "persist block cursor")
	}
	return nil
}

// HandleUndo implements the undo-signal contract from spec §7/§9: accept
// the signal but crash loud instead of deleting rows, since automatic
// rollback semantics are an explicit open question.
func (h *Handler) HandleUndo(lastValidBlock uint64) error {
	h.logger.WithField("last_valid_block", lastValidBlock).
		Fatal("ingest: undo signal received, automatic rollback not implemented")
	return ingesterrors.ErrUndoUnimplemented
}

func (h *Handler) handleSpaces(ctx context.Context, blockNumber uint64, spaces []model.Space) error {
	for _, space := range spaces {
		if err := h.store.UpsertSpace(ctx, space); err != nil {
			h.logger.WithError(err).WithField("space_id", space.SpaceID.String()).Error("ingest: upsert space failed")
			continue
		}
		graph, changed := h.engine.Apply(topology.Event{Kind: topology.EventSpaceCreated, SpaceID: space.SpaceID, TopicID: space.TopicID})
		h.mirrorIfChanged(ctx, graph, changed)
	}
	return nil
}

func (h *Handler) handleTrustEdges(ctx context.Context, edges []model.TrustEdge) error {
	for _, edge := range edges {
		if err := h.store.UpsertTrustEdge(ctx, edge); err != nil {
			h.logger.WithError(err).WithField("source_space", edge.SourceSpace.String()).Error("ingest: upsert trust edge failed")
			continue
		}
		graph, changed := h.engine.Apply(topology.Event{Kind: topology.EventTrustExtended, Edge: edge})
		h.mirrorIfChanged(ctx, graph, changed)
	}
	return nil
}

// mirrorIfChanged pushes a recomputed canonical graph to the mirror sink.
// Mirror failures are logged, not propagated: the entity/value/relation
// store is the system of record, and the Neo4j mirror is a best-effort
// convenience (spec §4.1's canonical graph semantics don't depend on it).
func (h *Handler) mirrorIfChanged(ctx context.Context, graph *topology.CanonicalGraph, changed bool) {
	if !changed || h.mirror == nil {
		return
	}
	if err := h.mirror.WriteCanonicalGraph(ctx, graph); err != nil {
		h.logger.WithError(err).Warn("ingest: canonical graph mirror write failed")
	}
}

func (h *Handler) handleMemberships(ctx context.Context, deltas []model.MembershipDelta) error {
	for _, delta := range deltas {
		if err := h.store.UpsertMembership(ctx, delta); err != nil {
			h.logger.WithError(err).WithField("space_id", delta.SpaceID.String()).Error("ingest: upsert membership failed")
		}
	}
	return nil
}

func (h *Handler) handleSubspaces(ctx context.Context, deltas []model.SubspaceDelta) error {
	for _, delta := range deltas {
		if err := h.store.UpsertSubspace(ctx, delta); err != nil {
			h.logger.WithError(err).WithField("parent_space_id", delta.ParentSpaceID.String()).Error("ingest: upsert subspace failed")
		}
	}
	return nil
}

func (h *Handler) handleEditorsAndMembers(ctx context.Context, editors []model.EditorEvent, members []model.MemberEvent) error {
	for _, e := range editors {
		if err := h.store.UpsertEditor(ctx, e); err != nil {
			h.logger.WithError(err).WithField("dao_space_id", e.DAOSpaceID.String()).Error("ingest: upsert editor failed")
		}
	}
	for _, m := range members {
		if err := h.store.UpsertMember(ctx, m); err != nil {
			h.logger.WithError(err).WithField("dao_space_id", m.DAOSpaceID.String()).Error("ingest: upsert member failed")
		}
	}
	return nil
}

func (h *Handler) handleEdits(ctx context.Context, blockNumber uint64, edits []*model.PreprocessedEdit) error {
	blockTime := time.Now()
	for _, edit := range edits {
		if edit.IsErrored {
			h.logger.WithFields(logrus.Fields{
				"space_id": edit.SpaceID.String(),
				"cid":      edit.CID,
			}).Warn("ingest: errored ipfs cache entry, skipping edit")
			continue
		}
		h.handleEdit(ctx, edit.SpaceID, edit.Edit, blockNumber, blockTime)
	}
	return nil
}

// handleEdit applies one edit's ops to storage (spec §4.2 "Edit
// sub-handler"). Failures within a single step are logged and the
// remaining steps still run; there is no shared transaction across the
// store's per-batch calls, so atomicity is limited to what each storage
// call itself commits.
func (h *Handler) handleEdit(ctx context.Context, spaceID ids.ID, edit *model.Edit, blockNumber uint64, blockTime time.Time) {
	if edit == nil {
		return
	}

	propCache := h.applyProperties(ctx, edit)
	h.applyEntities(ctx, edit, blockNumber, blockTime)
	h.applyValues(ctx, edit, spaceID, propCache)
	h.applyRelations(ctx, edit)
}

func (h *Handler) applyProperties(ctx context.Context, edit *model.Edit) map[ids.ID]model.DataType {
	var raw []model.Property
	for _, op := range edit.Ops {
		if op.Kind == model.OpCreateProperty {
			raw = append(raw, model.Property{ID: op.PropertyID, DataType: op.DataType})
		}
	}

	properties := squashProperties(raw)
	if len(properties) > 0 {
		if err := h.store.UpsertProperties(ctx, properties); err != nil {
			h.logger.WithError(err).Error("ingest: upsert properties failed")
		}
	}

	cache := make(map[ids.ID]model.DataType, len(properties))
	for _, p := range properties {
		cache[p.ID] = p.DataType
	}
	return cache
}

func (h *Handler) applyEntities(ctx context.Context, edit *model.Edit, blockNumber uint64, blockTime time.Time) {
	seen := make(map[ids.ID]struct{})
	var entities []model.Entity
	for _, op := range edit.Ops {
		if op.Kind != model.OpUpdateEntity && op.Kind != model.OpUnsetEntityValues {
			continue
		}
		if _, ok := seen[op.EntityID]; ok {
			continue
		}
		seen[op.EntityID] = struct{}{}
		entities = append(entities, model.Entity{
			ID:             op.EntityID,
			CreatedAt:      blockTime,
			UpdatedAt:      blockTime,
			CreatedAtBlock: blockNumber,
			UpdatedAtBlock: blockNumber,
		})
	}

	if len(entities) == 0 {
		return
	}
	if err := h.store.UpsertEntities(ctx, entities); err != nil {
		h.logger.WithError(err).Error("ingest: upsert entities failed")
	}
}

func (h *Handler) applyValues(ctx context.Context, edit *model.Edit, spaceID ids.ID, propCache map[ids.ID]model.DataType) {
	var rawOps []valueOp

	resolveType := func(propertyID ids.ID) (model.DataType, bool) {
		if dt, ok := propCache[propertyID]; ok {
			return dt, true
		}
		p, found, err := h.store.GetProperty(ctx, propertyID)
		if err != nil || !found {
			return 0, false
		}
		return p.DataType, true
	}

	for _, op := range edit.Ops {
		switch op.Kind {
		case model.OpUpdateEntity:
			if op.ValuePropertyID.IsNil() {
				continue
			}
			dataType, ok := resolveType(op.ValuePropertyID)
			if !ok {
				h.logger.WithFields(logrus.Fields{
					"entity_id":   op.EntityID.String(),
					"property_id": op.ValuePropertyID.String(),
				}).Warn("ingest: dropping value, unknown property")
				continue
			}

			vop := valueOp{
				id:         ids.DeriveValueID(op.EntityID, op.ValuePropertyID, op.ValueSpaceID),
				entityID:   op.EntityID,
				propertyID: op.ValuePropertyID,
				spaceID:    op.ValueSpaceID,
				language:   op.ValueLanguage,
				unit:       op.ValueUnit,
				isDelete:   op.ValueIsDelete,
			}

			if !op.ValueIsDelete {
				if err := populateTypedField(&vop, dataType, op.ValueRaw); err != nil {
					h.logger.WithFields(logrus.Fields{
						"entity_id":   op.EntityID.String(),
						"property_id": op.ValuePropertyID.String(),
						"error":       err,
					}).Warn("ingest: dropping value, failed validation")
					continue
				}
			}

			rawOps = append(rawOps, vop)

		case model.OpUnsetEntityValues:
			for _, propertyID := range op.UnsetPropertyIDs {
				rawOps = append(rawOps, valueOp{
					id:         ids.DeriveValueID(op.EntityID, propertyID, op.ValueSpaceID),
					entityID:   op.EntityID,
					propertyID: propertyID,
					spaceID:    op.ValueSpaceID,
					isDelete:   true,
				})
			}
		}
	}

	sets, deletes := squashValueOps(rawOps)

	if len(sets) > 0 {
		if err := h.store.UpsertValues(ctx, sets); err != nil {
			h.logger.WithError(err).Error("ingest: upsert values failed")
		}
	}
	if len(deletes) > 0 {
		if err := h.store.DeleteValues(ctx, spaceID, deletes); err != nil {
			h.logger.WithError(err).Error("ingest: delete values failed")
		}
	}
}

// applyRelations applies created, then updated, then unset-fields, then
// deleted relation ops, in that order across the whole edit (spec §4.2
// step 6).
func (h *Handler) applyRelations(ctx context.Context, edit *model.Edit) {
	for _, op := range edit.Ops {
		if op.Kind == model.OpCreateRelation && op.Relation != nil {
			if err := h.store.UpsertRelation(ctx, *op.Relation); err != nil {
				h.logger.WithError(err).WithField("relation_id", op.Relation.ID.String()).Error("ingest: create relation failed")
			}
		}
	}
	for _, op := range edit.Ops {
		if op.Kind == model.OpUpdateRelation && op.Relation != nil {
			if err := h.store.UpdateRelation(ctx, *op.Relation, model.RelationUnsetFields{}); err != nil {
				h.logger.WithError(err).WithField("relation_id", op.Relation.ID.String()).Error("ingest: update relation failed")
			}
		}
	}
	for _, op := range edit.Ops {
		if op.Kind == model.OpUnsetRelationFields && op.Relation != nil {
			if err := h.store.UpdateRelation(ctx, *op.Relation, op.UnsetFields); err != nil {
				h.logger.WithError(err).WithField("relation_id", op.Relation.ID.String()).Error("ingest: unset relation fields failed")
			}
		}
	}
	for _, op := range edit.Ops {
		if op.Kind == model.OpDeleteRelation && op.Relation != nil {
			if err := h.store.DeleteRelation(ctx, op.Relation.ID); err != nil {
				h.logger.WithError(err).WithField("relation_id", op.Relation.ID.String()).Error("ingest: delete relation failed")
			}
		}
	}
}
