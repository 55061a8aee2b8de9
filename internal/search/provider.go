package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/logging"
)

// defaultBulkBatchCap bounds a single bulk call (spec §4.5 "batch size is
// capped, default 1000").
const defaultBulkBatchCap = 1000

// propertyKeyPattern is the allowed shape for an unset property key (spec
// §4.5 "keys must match [A-Za-z0-9_]+").
var propertyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// UpdateEntityRequest upserts an entity document: create it if absent,
// patch the given fields if present (spec §4.5 "update_document").
type UpdateEntityRequest struct {
	EntityID ids.ID
	SpaceID  ids.ID

	Name        *string
	Description *string
	Avatar      *string
	Cover       *string
}

// DeleteEntityRequest deletes a single entity document (spec §4.5
// "delete_document").
type DeleteEntityRequest struct {
	EntityID ids.ID
	SpaceID  ids.ID
}

// UnsetEntityPropertiesRequest removes the named fields from a document in
// place (spec §4.5 "unset_document_properties").
type UnsetEntityPropertiesRequest struct {
	EntityID     ids.ID
	SpaceID      ids.ID
	PropertyKeys []string
}

// BatchOperationResult is the per-item outcome of a bulk call.
type BatchOperationResult struct {
	EntityID ids.ID
	SpaceID  ids.ID
	Success  bool
	Error    string
}

// BatchOperationSummary is the aggregate outcome of a bulk call (spec §4.5
// "bulk variants returning BatchOperationSummary").
type BatchOperationSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []BatchOperationResult
}

// SearchIndexProvider is the Search Index Provider Contract (spec §4.5): a
// backend-agnostic surface the loader drives. The only production
// implementation is ElasticsearchProvider; tests use a hand-written fake.
type SearchIndexProvider interface {
	EnsureIndexExists(ctx context.Context) error
	UpdateDocument(ctx context.Context, req UpdateEntityRequest) error
	DeleteDocument(ctx context.Context, req DeleteEntityRequest) error
	UnsetDocumentProperties(ctx context.Context, req UnsetEntityPropertiesRequest) error
	BulkUpdateDocuments(ctx context.Context, reqs []UpdateEntityRequest) BatchOperationSummary
	BulkDeleteDocuments(ctx context.Context, reqs []DeleteEntityRequest) BatchOperationSummary
}

// validateIDs rejects a request whose entity_id/space_id is the zero
// value; ids.ID is already UUID-shaped, so there is no separate
// string-format check to perform (spec §4.5 "non-empty UUID-shaped ids").
func validateIDs(entityID, spaceID ids.ID) error {
	var zero ids.ID
	if entityID == zero {
		return ingesterrors.ValidationError("entity_id must be non-zero")
	}
	if spaceID == zero {
		return ingesterrors.ValidationError("space_id must be non-zero")
	}
	return nil
}

// validatePropertyKeys rejects an empty key list or a key containing
// characters outside [A-Za-z0-9_] (spec §4.5).
func validatePropertyKeys(keys []string) error {
	if len(keys) == 0 {
		return ingesterrors.ValidationError("unset requires at least one property key")
	}
	for _, key := range keys {
		if !propertyKeyPattern.MatchString(key) {
			return ingesterrors.ValidationErrorf("invalid property key %q", key)
		}
	}
	return nil
}

// ElasticsearchProvider implements SearchIndexProvider against an
// Elasticsearch cluster via the go-elasticsearch client's esapi requests.
type ElasticsearchProvider struct {
	client     *elasticsearch.Client
	indexAlias string
	batchCap   int
	logger     *logging.Logger
}

// ElasticsearchProviderConfig configures an ElasticsearchProvider.
type ElasticsearchProviderConfig struct {
	Addresses  []string
	IndexAlias string
	BatchCap   int // 0 defaults to 1000
}

// NewElasticsearchProvider constructs an ElasticsearchProvider.
func NewElasticsearchProvider(cfg ElasticsearchProviderConfig, logger *logging.Logger) (*ElasticsearchProvider, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, ingesterrors.Wrap(err, ingesterrors.ErrorTypeExternal, ingesterrors.SeverityCritical, "construct elasticsearch client")
	}

	batchCap := cfg.BatchCap
	if batchCap <= 0 {
		batchCap = defaultBulkBatchCap
	}

	return &ElasticsearchProvider{
		client:     client,
		indexAlias: cfg.IndexAlias,
		batchCap:   batchCap,
		logger:     logger,
	}, nil
}

// EnsureIndexExists creates the index alias's backing index if it is
// absent; a present index is left untouched (spec §4.5
// "ensure_index_exists").
func (p *ElasticsearchProvider) EnsureIndexExists(ctx context.Context) error {
	existsResp, err := esapi.IndicesExistsRequest{Index: []string{p.indexAlias}}.Do(ctx, p.client)
	if err != nil {
		return ingesterrors.ExternalError(err, "check index existence")
	}
	defer existsResp.Body.Close()

	if existsResp.StatusCode == 200 {
		return nil
	}

	createResp, err := esapi.IndicesCreateRequest{Index: p.indexAlias}.Do(ctx, p.client)
	if err != nil {
		return ingesterrors.ExternalError(err, "create index")
	}
	defer createResp.Body.Close()

	if createResp.IsError() {
		return ingesterrors.ExternalErrorf(fmt.Errorf("status %s", createResp.Status()), "create index %s", p.indexAlias)
	}
	return nil
}

// UpdateDocument upserts a document: present fields are merged into an
// existing document, or used to create one if absent (spec §4.5
// "update_document" — create-on-absent, patch-on-present).
func (p *ElasticsearchProvider) UpdateDocument(ctx context.Context, req UpdateEntityRequest) error {
	if err := validateIDs(req.EntityID, req.SpaceID); err != nil {
		return err
	}

	doc := map[string]interface{}{
		"entity_id": req.EntityID.String(),
		"space_id":  req.SpaceID.String(),
	}
	if req.Name != nil {
		doc["name"] = *req.Name
	}
	if req.Description != nil {
		doc["description"] = *req.Description
	}
	if req.Avatar != nil {
		doc["avatar"] = *req.Avatar
	}
	if req.Cover != nil {
		doc["cover"] = *req.Cover
	}

	body, err := json.Marshal(map[string]interface{}{"doc": doc, "doc_as_upsert": true})
	if err != nil {
		return ingesterrors.InternalError("marshal update body")
	}

	resp, err := esapi.UpdateRequest{
		Index:      p.indexAlias,
		DocumentID: documentID(req.EntityID, req.SpaceID),
		Body:       bytes.NewReader(body),
	}.Do(ctx, p.client)
	if err != nil {
		return ingesterrors.TransientError(err, "update document")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return ingesterrors.TransientErrorf(fmt.Errorf("status %s", resp.Status()), "update document %s", documentID(req.EntityID, req.SpaceID))
	}
	return nil
}

// DeleteDocument deletes a document; a document that is already absent is
// treated as a successful delete (spec §4.5 "delete_document" —
// 404-tolerant).
func (p *ElasticsearchProvider) DeleteDocument(ctx context.Context, req DeleteEntityRequest) error {
	if err := validateIDs(req.EntityID, req.SpaceID); err != nil {
		return err
	}

	resp, err := esapi.DeleteRequest{
		Index:      p.indexAlias,
		DocumentID: documentID(req.EntityID, req.SpaceID),
	}.Do(ctx, p.client)
	if err != nil {
		return ingesterrors.TransientError(err, "delete document")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil
	}
	if resp.IsError() {
		return ingesterrors.TransientErrorf(fmt.Errorf("status %s", resp.Status()), "delete document %s", documentID(req.EntityID, req.SpaceID))
	}
	return nil
}

// UnsetDocumentProperties removes the named fields from a document via a
// Painless script (spec §4.5 "unset_document_properties").
func (p *ElasticsearchProvider) UnsetDocumentProperties(ctx context.Context, req UnsetEntityPropertiesRequest) error {
	if err := validateIDs(req.EntityID, req.SpaceID); err != nil {
		return err
	}
	if err := validatePropertyKeys(req.PropertyKeys); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]interface{}{
		"script": map[string]interface{}{
			"source": unsetPropertiesScript(req.PropertyKeys),
			"lang":   "painless",
		},
	})
	if err != nil {
		return ingesterrors.InternalError("marshal unset script")
	}

	resp, err := esapi.UpdateRequest{
		Index:      p.indexAlias,
		DocumentID: documentID(req.EntityID, req.SpaceID),
		Body:       bytes.NewReader(body),
	}.Do(ctx, p.client)
	if err != nil {
		return ingesterrors.TransientError(err, "unset document properties")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil
	}
	if resp.IsError() {
		return ingesterrors.TransientErrorf(fmt.Errorf("status %s", resp.Status()), "unset properties on document %s", documentID(req.EntityID, req.SpaceID))
	}
	return nil
}

// unsetPropertiesScript builds a Painless script removing each field from
// ctx._source, matching the grounding source's create_unset_properties_script.
func unsetPropertiesScript(keys []string) string {
	var sb bytes.Buffer
	for _, key := range keys {
		fmt.Fprintf(&sb, "ctx._source.remove('%s');", key)
	}
	return sb.String()
}

// BulkUpdateDocuments issues one UpdateDocument call per request, tallying
// per-item results rather than failing the whole batch on one error (spec
// §4.5 "bulk variants"). The batch size is capped; requests beyond the cap
// are dropped and logged.
func (p *ElasticsearchProvider) BulkUpdateDocuments(ctx context.Context, reqs []UpdateEntityRequest) BatchOperationSummary {
	if len(reqs) > p.batchCap {
		p.logger.Warn("search provider: bulk update batch exceeds cap, dropping excess", "size", len(reqs), "cap", p.batchCap)
		reqs = reqs[:p.batchCap]
	}

	summary := BatchOperationSummary{Total: len(reqs), Results: make([]BatchOperationResult, 0, len(reqs))}
	for _, req := range reqs {
		result := BatchOperationResult{EntityID: req.EntityID, SpaceID: req.SpaceID, Success: true}
		if err := p.UpdateDocument(ctx, req); err != nil {
			result.Success = false
			result.Error = err.Error()
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary
}

// BulkDeleteDocuments issues one DeleteDocument call per request; since
// DeleteDocument is already 404-tolerant, a document that never existed
// still counts as a successful delete (spec §4.5 "bulk variants").
func (p *ElasticsearchProvider) BulkDeleteDocuments(ctx context.Context, reqs []DeleteEntityRequest) BatchOperationSummary {
	if len(reqs) > p.batchCap {
		p.logger.Warn("search provider: bulk delete batch exceeds cap, dropping excess", "size", len(reqs), "cap", p.batchCap)
		reqs = reqs[:p.batchCap]
	}

	summary := BatchOperationSummary{Total: len(reqs), Results: make([]BatchOperationResult, 0, len(reqs))}
	for _, req := range reqs {
		result := BatchOperationResult{EntityID: req.EntityID, SpaceID: req.SpaceID, Success: true}
		if err := p.DeleteDocument(ctx, req); err != nil {
			result.Success = false
			result.Error = err.Error()
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary
}
