// Package negotiation implements the two-party settings-change flow: one
// partner proposes a change to the couple's session settings, the other
// accepts or declines. There is no arbiter beyond the stored proposal row.
package negotiation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/calebfife/tandem/internal/feed"
	"github.com/calebfife/tandem/internal/model"
	"github.com/calebfife/tandem/internal/store"
)

// Collections published by the negotiator.
const (
	CollectionProposals = "session_settings_proposals"
	CollectionSettings  = "session_settings"
)

var (
	// ErrProposalPending is returned by Propose while another proposal is
	// still awaiting a response.
	ErrProposalPending = errors.New("a settings proposal is already pending")

	// ErrNotPending is returned by Respond for a proposal that is unknown,
	// already resolved, or otherwise not the couple's pending proposal.
	ErrNotPending = errors.New("proposal is not pending")

	// ErrSelfResponse is returned when a partner tries to resolve their own
	// proposal.
	ErrSelfResponse = errors.New("cannot respond to your own proposal")

	// ErrEmptyProposal is returned for a proposal that changes nothing.
	ErrEmptyProposal = errors.New("proposal contains no changes")
)

// Negotiator drives the proposal state machine for all couples.
type Negotiator struct {
	proposals *store.ProposalStore
	settings  *store.SettingsStore
	feed      *feed.Feed
	logger    *slog.Logger
}

func New(proposals *store.ProposalStore, settings *store.SettingsStore, f *feed.Feed, logger *slog.Logger) *Negotiator {
	return &Negotiator{
		proposals: proposals,
		settings:  settings,
		feed:      f,
		logger:    logger,
	}
}

// Propose creates a pending proposal for the couple. Only one proposal may be
// pending at a time; a second Propose fails with ErrProposalPending rather
// than silently replacing the first partner's intent.
func (n *Negotiator) Propose(coupleID, partnerID int64, patch model.SettingsPatch) (*model.SessionSettingsProposal, error) {
	if patch.Empty() {
		return nil, ErrEmptyProposal
	}

	pending, err := n.proposals.GetPending(coupleID)
	if err != nil {
		return nil, fmt.Errorf("check pending proposal: %w", err)
	}
	if pending != nil {
		return nil, ErrProposalPending
	}

	// The partial unique index on pending proposals backstops the check above
	// if two Propose calls race.
	proposal, err := n.proposals.CreatePending(coupleID, partnerID, patch)
	if err != nil {
		return nil, ErrProposalPending
	}

	n.publish(coupleID, feed.KindInsert, CollectionProposals, *proposal)
	n.logger.Info("proposal created", "couple_id", coupleID, "proposal_id", proposal.ID, "proposed_by", partnerID)
	return proposal, nil
}

// Pending returns the couple's pending proposal, or nil.
func (n *Negotiator) Pending(coupleID int64) (*model.SessionSettingsProposal, error) {
	return n.proposals.GetPending(coupleID)
}

// Respond resolves the pending proposal identified by proposalID. On accept
// the proposed changes are merged into the couple's live settings; on decline
// the settings are untouched. Resolution is one-way: responding to an
// already-resolved proposal fails with ErrNotPending and changes nothing.
func (n *Negotiator) Respond(proposalID string, partnerID int64, accept bool) (*model.SessionSettingsProposal, error) {
	proposal, err := n.proposals.GetByID(proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	if proposal == nil || proposal.Status != model.ProposalPending {
		return nil, ErrNotPending
	}
	if proposal.ProposedBy == partnerID {
		return nil, ErrSelfResponse
	}

	status := model.ProposalDeclined
	if accept {
		status = model.ProposalAccepted
	}

	resolved, err := n.proposals.Resolve(proposalID, status)
	if err != nil {
		return nil, fmt.Errorf("resolve proposal: %w", err)
	}
	if !resolved {
		// Lost a race to another response; the first resolution stands.
		return nil, ErrNotPending
	}

	if accept {
		settings, err := n.settings.ApplyPatch(proposal.CoupleID, proposal.Settings)
		if err != nil {
			return nil, fmt.Errorf("apply accepted settings: %w", err)
		}
		n.publish(proposal.CoupleID, feed.KindUpdate, CollectionSettings, *settings)
	}

	updated, err := n.proposals.GetByID(proposalID)
	if err != nil {
		return nil, fmt.Errorf("reload proposal: %w", err)
	}

	n.publish(proposal.CoupleID, feed.KindUpdate, CollectionProposals, *updated)
	n.logger.Info("proposal resolved", "couple_id", proposal.CoupleID, "proposal_id", proposalID, "status", status, "resolved_by", partnerID)
	return updated, nil
}

func (n *Negotiator) publish(coupleID int64, kind, collection string, record any) {
	if n.feed != nil {
		n.feed.Publish(coupleID, feed.Event{Kind: kind, Collection: collection, Record: record})
	}
}
