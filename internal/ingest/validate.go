package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/model"
)

// populateTypedField validates raw against dataType and fills the matching
// field of a valueOp. Relation-typed values are stored as a plain string,
// never emitted as a Relation (spec §4.2 step 4).
func populateTypedField(op *valueOp, dataType model.DataType, raw string) error {
	switch dataType {
	case model.DataTypeString, model.DataTypeRelation:
		op.stringValue = &raw

	case model.DataTypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ingesterrors.PermanentContentErrorf(err, "invalid number value %q", raw)
		}
		op.numberValue = &n

	case model.DataTypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return ingesterrors.PermanentContentErrorf(err, "invalid boolean value %q", raw)
		}
		op.booleanValue = &b

	case model.DataTypeTime:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ingesterrors.PermanentContentErrorf(err, "invalid time value %q", raw)
		}
		op.timeValue = &t

	case model.DataTypePoint:
		p, err := parsePoint(raw)
		if err != nil {
			return err
		}
		op.pointValue = &p

	default:
		return ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("unknown data type %v", dataType))
	}

	return nil
}

// parsePoint accepts "lat,lng".
func parsePoint(raw string) (model.Point, error) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return model.Point{}, ingesterrors.New(ingesterrors.ErrorTypePermanentContent, ingesterrors.SeverityMedium,
			fmt.Sprintf("invalid point value %q", raw))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Point{}, ingesterrors.PermanentContentErrorf(err, "invalid point latitude %q", raw)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Point{}, ingesterrors.PermanentContentErrorf(err, "invalid point longitude %q", raw)
	}

	return model.Point{Lat: lat, Lng: lng}, nil
}
