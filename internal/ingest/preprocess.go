package ingest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/ipfscache"
	"github.com/hermesgraph/ingestd/internal/model"
)

// Preprocessor implements spec §4.2 "Preprocessing": it filters edits
// against a DAO blocklist, resolves their IPFS content, joins newly
// created spaces with their governance/personal-admin plugins, and
// derives membership events for editors of DAOs created in the same
// block.
type Preprocessor struct {
	blocklist map[ids.Address]struct{}
	resolver  *ipfscache.Resolver
	logger    *logrus.Logger
}

// NewPreprocessor constructs a Preprocessor. blocklist holds DAO
// addresses whose edits are dropped before CID resolution.
func NewPreprocessor(blocklist []ids.Address, resolver *ipfscache.Resolver, logger *logrus.Logger) *Preprocessor {
	set := make(map[ids.Address]struct{}, len(blocklist))
	for _, addr := range blocklist {
		set[addr] = struct{}{}
	}
	return &Preprocessor{blocklist: set, resolver: resolver, logger: logger}
}

// Preprocessed is the result of preprocessing one block.
type Preprocessed struct {
	Spaces           []model.Space
	TrustEdges       []model.TrustEdge
	MembershipDeltas []model.MembershipDelta
	SubspaceDeltas   []model.SubspaceDelta
	Editors          []model.EditorEvent
	Members          []model.MemberEvent
	Edits            []*model.PreprocessedEdit
}

// Process runs the full preprocessing pipeline for one block's decoded
// Output.
func (p *Preprocessor) Process(ctx context.Context, blockNumber uint64, cursor string, output model.Output) *Preprocessed {
	filtered := p.filterBlocklist(output.EditsPublished)
	edits := p.resolver.ResolveBlock(ctx, blockNumber, cursor, filtered)

	spaces := p.joinSpacesWithPlugins(output)
	members := p.deriveMemberEvents(output.EditorEvents, spaces)

	return &Preprocessed{
		Spaces:           spaces,
		TrustEdges:       output.TrustEdges,
		MembershipDeltas: output.MembershipDeltas,
		SubspaceDeltas:   output.SubspaceDeltas,
		Editors:          output.EditorEvents,
		Members:          members,
		Edits:            edits,
	}
}

// filterBlocklist drops edits whose DAO address is blocklisted (spec §4.2
// step 2).
func (p *Preprocessor) filterBlocklist(edits []model.PendingEdit) []model.PendingEdit {
	if len(p.blocklist) == 0 {
		return edits
	}

	out := make([]model.PendingEdit, 0, len(edits))
	for _, edit := range edits {
		if _, blocked := p.blocklist[edit.DAOAddress]; blocked {
			p.logger.WithFields(logrus.Fields{
				"dao_address": edit.DAOAddress.String(),
				"content_uri": edit.ContentURI,
			}).Debug("ingest: skipping blocklisted DAO edit")
			continue
		}
		out = append(out, edit)
	}
	return out
}

// joinSpacesWithPlugins keeps only spaces that have a matching governance
// or personal-admin plugin created in the same block; a space with
// neither is skipped for this block (spec §4.2 step 4).
func (p *Preprocessor) joinSpacesWithPlugins(output model.Output) []model.Space {
	hasPlugin := make(map[ids.ID]struct{}, len(output.GovernancePlugins)+len(output.PersonalAdminPlugins))
	for _, plugin := range output.GovernancePlugins {
		hasPlugin[plugin.SpaceID] = struct{}{}
	}
	for _, plugin := range output.PersonalAdminPlugins {
		hasPlugin[plugin.SpaceID] = struct{}{}
	}

	out := make([]model.Space, 0, len(output.SpacesCreated))
	for _, space := range output.SpacesCreated {
		if _, ok := hasPlugin[space.SpaceID]; !ok {
			p.logger.WithField("space_id", space.SpaceID.String()).
				Debug("ingest: space has no matching plugin in block, skipping")
			continue
		}
		out = append(out, space)
	}
	return out
}

// deriveMemberEvents emits a MemberEvent for every editor event whose DAO
// space was created (and joined with a plugin) in this same block: an
// editor of a freshly created DAO is also one of its first members (spec
// §4.2 step 5).
func (p *Preprocessor) deriveMemberEvents(editors []model.EditorEvent, createdSpaces []model.Space) []model.MemberEvent {
	created := make(map[ids.ID]struct{}, len(createdSpaces))
	for _, s := range createdSpaces {
		created[s.SpaceID] = struct{}{}
	}

	var members []model.MemberEvent
	for _, e := range editors {
		if _, ok := created[e.DAOSpaceID]; ok {
			members = append(members, model.MemberEvent{DAOSpaceID: e.DAOSpaceID, Member: e.Editor})
		}
	}
	return members
}
