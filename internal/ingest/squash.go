package ingest

import (
	"time"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// valueOp is a single, not-yet-squashed Value touch extracted from an
// edit's ops (spec §4.2 step 4), before last-write-wins squashing by
// derived value id.
type valueOp struct {
	id         ids.ID
	entityID   ids.ID
	propertyID ids.ID
	spaceID    ids.ID
	isDelete   bool

	language string
	unit     string

	stringValue  *string
	numberValue  *float64
	booleanValue *bool
	timeValue    *time.Time
	pointValue   *model.Point
}

// squashProperties keeps the last occurrence of each property id in edit
// order (spec §4.2 step 1, "Squashing" section).
func squashProperties(props []model.Property) []model.Property {
	order := make([]ids.ID, 0, len(props))
	byID := make(map[ids.ID]model.Property, len(props))

	for _, p := range props {
		if _, seen := byID[p.ID]; !seen {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}

	out := make([]model.Property, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// squashValueOps keeps the last occurrence of each derived value id,
// partitioning the survivors into SET upserts and DELETE ids (spec §4.2
// step 4/step 5, "Squashing" section).
func squashValueOps(ops []valueOp) (sets []model.Value, deletes []ids.ID) {
	order := make([]ids.ID, 0, len(ops))
	byID := make(map[ids.ID]valueOp, len(ops))

	for _, op := range ops {
		if _, seen := byID[op.id]; !seen {
			order = append(order, op.id)
		}
		byID[op.id] = op
	}

	for _, id := range order {
		op := byID[id]
		if op.isDelete {
			deletes = append(deletes, id)
			continue
		}
		sets = append(sets, model.Value{
			ID:           op.id,
			EntityID:     op.entityID,
			PropertyID:   op.propertyID,
			SpaceID:      op.spaceID,
			Language:     op.language,
			Unit:         op.unit,
			StringValue:  op.stringValue,
			NumberValue:  op.numberValue,
			BooleanValue: op.booleanValue,
			TimeValue:    op.timeValue,
			PointValue:   op.pointValue,
		})
	}
	return sets, deletes
}
