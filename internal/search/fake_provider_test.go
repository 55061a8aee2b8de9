package search

import (
	"context"

	"github.com/hermesgraph/ingestd/internal/ids"
)

// fakeDocument mirrors EntityDocument's text fields as pointers that are
// nil when never set or unset, so tests can assert on absence rather than
// just zero values.
type fakeDocument struct {
	name        *string
	description *string
	avatar      *string
	cover       *string
}

// fakeProvider is an in-memory SearchIndexProvider used to exercise the
// loader and orchestrator without a real Elasticsearch cluster.
type fakeProvider struct {
	docs          map[string]*fakeDocument
	deleted       map[string]bool
	ensureCalled  bool
	updateCalls   int
	deleteCalls   int
	unsetCalls    int
	failUpdateFor map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		docs:          make(map[string]*fakeDocument),
		deleted:       make(map[string]bool),
		failUpdateFor: make(map[string]bool),
	}
}

func (p *fakeProvider) EnsureIndexExists(ctx context.Context) error {
	p.ensureCalled = true
	return nil
}

func (p *fakeProvider) UpdateDocument(ctx context.Context, req UpdateEntityRequest) error {
	p.updateCalls++
	id := documentID(req.EntityID, req.SpaceID)
	if p.failUpdateFor[id] {
		return errFakeUpdate
	}

	doc, ok := p.docs[id]
	if !ok {
		doc = &fakeDocument{}
		p.docs[id] = doc
	}
	if req.Name != nil {
		doc.name = req.Name
	}
	if req.Description != nil {
		doc.description = req.Description
	}
	if req.Avatar != nil {
		doc.avatar = req.Avatar
	}
	if req.Cover != nil {
		doc.cover = req.Cover
	}
	delete(p.deleted, id)
	return nil
}

func (p *fakeProvider) DeleteDocument(ctx context.Context, req DeleteEntityRequest) error {
	p.deleteCalls++
	id := documentID(req.EntityID, req.SpaceID)
	delete(p.docs, id)
	p.deleted[id] = true
	return nil
}

func (p *fakeProvider) UnsetDocumentProperties(ctx context.Context, req UnsetEntityPropertiesRequest) error {
	p.unsetCalls++
	id := documentID(req.EntityID, req.SpaceID)
	doc, ok := p.docs[id]
	if !ok {
		return nil
	}
	for _, key := range req.PropertyKeys {
		switch key {
		case "name":
			doc.name = nil
		case "description":
			doc.description = nil
		case "avatar":
			doc.avatar = nil
		case "cover":
			doc.cover = nil
		}
	}
	return nil
}

func (p *fakeProvider) BulkUpdateDocuments(ctx context.Context, reqs []UpdateEntityRequest) BatchOperationSummary {
	summary := BatchOperationSummary{Total: len(reqs)}
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

func (p *fakeProvider) BulkDeleteDocuments(ctx context.Context, reqs []DeleteEntityRequest) BatchOperationSummary {
	summary := BatchOperationSummary{Total: len(reqs)}
	for _, req := range reqs {
		_ = p.DeleteDocument(ctx, req)
		summary.Succeeded++
		summary.Results = append(summary.Results, BatchOperationResult{EntityID: req.EntityID, SpaceID: req.SpaceID, Success: true})
	}
	return summary
}

var errFakeUpdate = &fakeError{"fake update failure"}

type fakeError struct{ msg string }

func (e *fakeError) Error() string { return e.msg }

func newTestID(b byte) ids.ID {
	var id ids.ID
	id[0] = b
	id[15] = 1
	return id
}
