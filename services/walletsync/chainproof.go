package walletsync

import (
	"context"

	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

// fetchHeaderValidated returns the header at the given height, proven to
// belong to the chain described by the session's validated weight proof.
// Inside the proof's recent window this is a direct hash comparison; below it
// the containing sub-epoch is located and a chained header fetch connects the
// claimed block to the window edge. Validated headers are cached so repeated
// proofs against the same block cost nothing.
func (v *CoinStateValidator) fetchHeaderValidated(ctx context.Context, session *SyncSession, height uint32) (*model.HeaderBlock, error) {
	if hb, ok := session.Cache.Header(height); ok {
		return hb, nil
	}

	_, wpResult := session.Proof()

	if height > wpResult.TipHeight {
		return nil, errors.NewInvalidArgumentError("height %d is beyond the proof tip %d", height, wpResult.TipHeight)
	}

	// Recent window: the proof already carries the header.
	if len(wpResult.RecentHeaders) > 0 && height >= wpResult.RecentHeaders[0].Height {
		hb := wpResult.RecentHeaders[height-wpResult.RecentHeaders[0].Height]
		session.Cache.SetHeader(hb)

		return hb, nil
	}

	hb, err := session.Peer.RequestBlockHeader(ctx, height)
	if err != nil {
		return nil, err
	}

	if hb.Height != height {
		return nil, errors.NewInclusionProofFailedError("peer %s returned header at height %d for a request at %d",
			session.Peer.PeerID(), hb.Height, height)
	}

	if err = v.verifyBlockInChain(ctx, session, hb); err != nil {
		return nil, err
	}

	session.Cache.SetHeader(hb)

	return hb, nil
}

// verifyBlockInChain proves that hb, which lies below the recent window,
// belongs to the proof-anchored chain: locate its sub-epoch, cross-check the
// peer's sub-epoch response against the proof, then walk a chained header
// fetch from hb up to the window edge with a signature spot-check near the
// validated end.
func (v *CoinStateValidator) verifyBlockInChain(ctx context.Context, session *SyncSession, hb *model.HeaderBlock) error {
	_, wpResult := session.Proof()

	ses := containingSubEpoch(wpResult.SubEpochs, hb.Height)
	if ses == nil {
		return errors.NewInclusionProofFailedError("height %d is not covered by any sub-epoch in the proof", hb.Height)
	}

	if err := v.crossCheckSubEpoch(ctx, session, ses); err != nil {
		return err
	}

	return v.verifyChainToWindow(ctx, session, hb)
}

// crossCheckSubEpoch asks the peer for its summaries over the sub-epoch's
// range and requires the proof's summary hash to appear in the response. A
// peer that cannot reproduce the summary it proved weight with is lying.
func (v *CoinStateValidator) crossCheckSubEpoch(ctx context.Context, session *SyncSession, ses *model.SubEpochSummary) error {
	resp, ok := session.Cache.SESResponse(ses.StartHeight, ses.EndHeight)
	if !ok {
		var err error

		resp, err = session.Peer.RequestSESHashes(ctx, ses.StartHeight, ses.EndHeight)
		if err != nil {
			return err
		}

		session.Cache.SetSESResponse(ses.StartHeight, ses.EndHeight, resp)
	}

	for _, got := range resp {
		if got.Hash.IsEqual(ses.Hash) {
			return nil
		}
	}

	return errors.NewInclusionProofFailedError("peer %s sub-epoch response does not contain summary %s",
		session.Peer.PeerID(), ses.Hash.String())
}

// verifyChainToWindow fetches the headers between hb and the recent window
// edge and checks the chain link rules on every step, the anchor equality at
// the edge, and the farmer signatures on the blocks nearest the validated
// end.
func (v *CoinStateValidator) verifyChainToWindow(ctx context.Context, session *SyncSession, hb *model.HeaderBlock) error {
	_, wpResult := session.Proof()

	edge := wpResult.RecentHeaders[0]

	chainHeaders, err := v.fetchHeaderRange(ctx, session, hb.Height, edge.Height)
	if err != nil {
		return err
	}

	if len(chainHeaders) == 0 || !chainHeaders[0].Hash().IsEqual(hb.Hash()) {
		return errors.NewInclusionProofFailedError("peer %s header chain does not start at the claimed block %s",
			session.Peer.PeerID(), hb.Hash().String())
	}

	for i := 1; i < len(chainHeaders); i++ {
		if err = chainHeaders[i].CheckChainLink(chainHeaders[i-1]); err != nil {
			return errors.NewInclusionProofFailedError("header chain from %d breaks at height %d",
				hb.Height, chainHeaders[i].Height, err)
		}
	}

	// Anchor: the last fetched header must be the window edge itself.
	last := chainHeaders[len(chainHeaders)-1]
	if !last.Hash().IsEqual(edge.Hash()) {
		return errors.NewInclusionProofFailedError("header chain from %d does not anchor at the proof window edge",
			hb.Height)
	}

	// Spot-check the farmer signatures on the blocks nearest the validated
	// edge. Bounded cost; a forgery would need this many signed blocks.
	checkFrom := 0
	if len(chainHeaders) > v.settings.WalletSync.SignatureSpotCheckWindow {
		checkFrom = len(chainHeaders) - v.settings.WalletSync.SignatureSpotCheckWindow
	}

	for _, ch := range chainHeaders[checkFrom:] {
		if err = ch.VerifyFoliageSignature(); err != nil {
			return errors.NewInclusionProofFailedError("foliage signature check failed at height %d", ch.Height, err)
		}
	}

	// The whole chain is now validated; keep it for later entries.
	for _, ch := range chainHeaders {
		session.Cache.SetHeader(ch)
	}

	return nil
}

// fetchHeaderRange fetches headers [start, end] in batches, consulting the
// session cache per batch.
func (v *CoinStateValidator) fetchHeaderRange(ctx context.Context, session *SyncSession, start, end uint32) ([]*model.HeaderBlock, error) {
	batchSize := uint32(v.settings.WalletSync.HeaderBatchSize)
	if batchSize == 0 {
		batchSize = 500
	}

	headers := make([]*model.HeaderBlock, 0, end-start+1)

	for batchStart := start; batchStart <= end; {
		batchEnd := batchStart + batchSize - 1
		if batchEnd > end {
			batchEnd = end
		}

		batch, ok := session.Cache.HeaderBatch(batchStart, batchEnd)
		if !ok {
			var err error

			batch, err = session.Peer.RequestHeaderBlocks(ctx, batchStart, batchEnd)
			if err != nil {
				return nil, err
			}

			if len(batch) != int(batchEnd-batchStart+1) {
				return nil, errors.NewInclusionProofFailedError("peer %s returned %d headers for range %d..%d",
					session.Peer.PeerID(), len(batch), batchStart, batchEnd)
			}

			session.Cache.SetHeaderBatch(batchStart, batchEnd, batch)
		}

		headers = append(headers, batch...)
		batchStart = batchEnd + 1
	}

	return headers, nil
}

func containingSubEpoch(summaries []*model.SubEpochSummary, height uint32) *model.SubEpochSummary {
	for _, ses := range summaries {
		if ses.Contains(height) {
			return ses
		}
	}

	return nil
}
