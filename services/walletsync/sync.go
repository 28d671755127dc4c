package walletsync

import (
	"context"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/weightproof"
	"github.com/verdant-network/walletnode/util/merkleproof"
	"github.com/verdant-network/walletnode/util/tracing"
)

// syncContext carries the state of one sync attempt through its steps.
type syncContext struct {
	session   *SyncSession
	announced *model.Peak
	decision  SyncDecision
	startTime time.Time

	// short backtrack state
	forkHeight uint32
	backtrack  []*model.HeaderBlock

	// full resync state
	proof    *model.WeightProof
	wpResult *weightproof.ValidationResult
	states   []*model.CoinState
}

// syncToPeer sequences one sync attempt against one peer:
//
//  1. EXTEND: fetch the one new block, verify it links, replay it.
//  2. SHORT_BACKTRACK: walk back to a locally known block, roll back, replay
//     forward.
//  3. FULL_RESYNC: weight proof -> validation -> subscription fixed point ->
//     coin state validation -> commit.
//
// Trusted peers skip the coin state validator; their registered states are
// written directly, the connection being pinned by configuration. Every write
// path ends in the committer's additive idempotent merges, which is what
// makes re-entering this method after any failure safe.
func (s *Server) syncToPeer(ctx context.Context, session *SyncSession, announced *model.Peak, decision SyncDecision) (err error) {
	ctx, _, deferFn := tracing.Tracer("walletsync").Start(ctx, "syncToPeer",
		tracing.WithParentStat(s.stats),
		tracing.WithLogMessage(s.logger, "[syncToPeer][%s] %s sync to peak %s at height %d",
			session.Peer.PeerID(), decision.String(), announced.Hash.String(), announced.Height),
	)
	defer deferFn()

	sc := &syncContext{
		session:   session,
		announced: announced,
		decision:  decision,
		startTime: time.Now(),
	}

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		prometheusSyncTotal.WithLabelValues(sc.decision.String(), result).Inc()
		prometheusSyncDuration.WithLabelValues(sc.decision.String()).Observe(time.Since(sc.startTime).Seconds())
	}()

	switch decision {
	case SyncExtend:
		err = s.syncExtend(ctx, sc)

	case SyncShortBacktrack:
		err = s.syncShortBacktrack(ctx, sc)

	case SyncFullResync:
		err = s.syncFullResync(ctx, sc)

	default:
		return errors.NewInvalidArgumentError("sync decision %s is not actionable", decision.String())
	}

	// Blocks missing locally are recovered by escalating to the
	// full-fidelity path instead of propagating.
	if err != nil && errors.Is(err, errors.ErrMissingLocalBlocks) &&
		(decision == SyncExtend || decision == SyncShortBacktrack) {
		s.logger.Infof("[syncToPeer][%s] escalating to full resync: %v", session.Peer.PeerID(), err)

		sc.decision = SyncFullResync
		err = s.syncFullResync(ctx, sc)
	}

	return err
}

// syncExtend handles the fast path: the announced block claims to sit
// directly on the local peak.
func (s *Server) syncExtend(ctx context.Context, sc *syncContext) error {
	local, err := s.chainStore.GetBestPeak(ctx)
	if err != nil {
		return err
	}

	if local == nil {
		return errors.NewMissingLocalBlocksError("cannot extend without a local peak")
	}

	hb, err := sc.session.Peer.RequestBlockHeader(ctx, sc.announced.Height)
	if err != nil {
		return err
	}

	if !hb.Hash().IsEqual(sc.announced.Hash) {
		return errors.NewNetworkPeerMaliciousError("peer %s served block %s for announced peak %s",
			sc.session.Peer.PeerID(), hb.Hash().String(), sc.announced.Hash.String())
	}

	localTip, err := s.chainStore.GetHeaderByHeight(ctx, local.Height)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			return errors.NewMissingLocalBlocksError("no local header at peak height %d", local.Height)
		}

		return err
	}

	if err = hb.CheckChainLink(localTip); err != nil {
		// Announced block does not sit on our tip after all; treat as a fork.
		return errors.NewMissingLocalBlocksError("announced block does not extend the local tip", err)
	}

	sc.forkHeight = local.Height
	sc.backtrack = []*model.HeaderBlock{hb}

	return s.replayForward(ctx, sc)
}

// syncShortBacktrack walks back from the announced peak until a locally known
// block, rolls local state back to the fork, and replays forward.
func (s *Server) syncShortBacktrack(ctx context.Context, sc *syncContext) error {
	if err := s.walkBack(ctx, sc); err != nil {
		return err
	}

	if err := s.rollbackToFork(ctx, sc); err != nil {
		return err
	}

	return s.replayForward(ctx, sc)
}

// walkBack collects the announced-side headers newest first until one's
// previous hash is known locally, bounded by the short sync threshold.
func (s *Server) walkBack(ctx context.Context, sc *syncContext) error {
	peer := sc.session.Peer

	var chainDown []*model.HeaderBlock

	height := sc.announced.Height

	for i := uint32(0); i <= s.settings.WalletSync.ShortSyncThreshold; i++ {
		hb, err := peer.RequestBlockHeader(ctx, height)
		if err != nil {
			return err
		}

		if len(chainDown) == 0 {
			if !hb.Hash().IsEqual(sc.announced.Hash) {
				return errors.NewNetworkPeerMaliciousError("peer %s served block %s for announced peak %s",
					peer.PeerID(), hb.Hash().String(), sc.announced.Hash.String())
			}
		} else if err = chainDown[len(chainDown)-1].CheckChainLink(hb); err != nil {
			return errors.NewNetworkPeerMaliciousError("peer %s backtrack chain does not link at height %d",
				peer.PeerID(), height, err)
		}

		chainDown = append(chainDown, hb)

		known, err := s.chainStore.GetBlockExists(ctx, hb.PrevHash)
		if err != nil {
			return err
		}

		if known {
			sc.forkHeight = hb.Height - 1

			// Reverse into ascending replay order.
			sc.backtrack = make([]*model.HeaderBlock, len(chainDown))
			for j, h := range chainDown {
				sc.backtrack[len(chainDown)-1-j] = h
			}

			return nil
		}

		if height == 0 {
			break
		}

		height--
	}

	return errors.NewMissingLocalBlocksError("no common block within %d blocks of peak %s",
		s.settings.WalletSync.ShortSyncThreshold, sc.announced.Hash.String())
}

// rollbackToFork undoes local chain and coin state above the fork height,
// serialized through the committer.
func (s *Server) rollbackToFork(ctx context.Context, sc *syncContext) error {
	s.logger.Infof("[syncToPeer][%s] rolling back to fork height %d", sc.session.Peer.PeerID(), sc.forkHeight)

	if err := s.committer.Rollback(ctx, sc.forkHeight); err != nil {
		return err
	}

	return s.chainStore.RollbackToHeight(ctx, sc.forkHeight)
}

// replayForward applies the backtrack headers oldest first: for each
// transaction block the additions and removals for the wallet's interests are
// fetched, proven (untrusted peers), and committed.
func (s *Server) replayForward(ctx context.Context, sc *syncContext) error {
	peer := sc.session.Peer

	for _, hb := range sc.backtrack {
		if hb.IsTransactionBlock {
			states, err := s.fetchBlockCoinStates(ctx, sc, hb)
			if err != nil {
				return err
			}

			if _, err = s.committer.Commit(ctx, states); err != nil {
				return err
			}
		}

		if err := s.chainStore.StoreHeaders(ctx, []*model.HeaderBlock{hb}); err != nil {
			return err
		}
	}

	tip := sc.backtrack[len(sc.backtrack)-1]

	if err := s.chainStore.SetBestPeak(ctx, &model.Peak{Hash: tip.Hash(), Height: tip.Height, Weight: tip.Weight}); err != nil {
		return err
	}

	s.logger.Infof("[syncToPeer][%s] replayed %d blocks to height %d", peer.PeerID(), len(sc.backtrack), tip.Height)

	return nil
}

// fetchBlockCoinStates turns one transaction block into coin state changes
// for the wallet's interests. For untrusted peers every returned coin is
// checked against the block's commitment roots.
func (s *Server) fetchBlockCoinStates(ctx context.Context, sc *syncContext, hb *model.HeaderBlock) ([]*model.CoinState, error) {
	peer := sc.session.Peer

	var states []*model.CoinState

	puzzleHashes := s.interests.PuzzleHashes()
	if len(puzzleHashes) > 0 {
		additions, err := peer.RequestAdditions(ctx, hb.Height, hb.Hash(), puzzleHashes)
		if err != nil {
			return nil, err
		}

		for _, c := range additions.Coins {
			if !sc.session.Trusted {
				proof := additions.ProofFor(*c.PuzzleHash)
				if proof == nil || !merkleproof.VerifyProof(*c.PuzzleHash, proof, hb.AdditionsRoot) {
					return nil, errors.NewInclusionProofFailedError("addition proof for coin %s fails against block %d",
						c.ID().String(), hb.Height)
				}
			}

			states = append(states, &model.CoinState{
				Coin:          c,
				CreatedHeight: model.Uint32Ptr(hb.Height),
			})
		}
	}

	coinIDs := s.interests.CoinIDs()
	if len(coinIDs) > 0 {
		removals, err := peer.RequestRemovals(ctx, hb.Height, hb.Hash(), coinIDs)
		if err != nil {
			return nil, err
		}

		for _, c := range removals.Coins {
			coinID := c.ID()

			if !sc.session.Trusted {
				proof := removals.ProofFor(coinID)
				if proof == nil || !merkleproof.VerifyProof(coinID, proof, hb.RemovalsRoot) {
					return nil, errors.NewInclusionProofFailedError("removal proof for coin %s fails against block %d",
						coinID.String(), hb.Height)
				}
			}

			// Definitive bloom negatives skip the store roundtrip; the lookup
			// below still handles false positives.
			if !s.committer.Seen(coinID) {
				continue
			}

			stored, err := s.coinStore.GetCoinState(ctx, coinID)
			if err != nil {
				if errors.Is(err, errors.ErrCoinNotFound) {
					// A spend of a coin we never saw created; the creation
					// will arrive through subscriptions.
					continue
				}

				return nil, err
			}

			spent := *stored
			spent.SpentHeight = model.Uint32Ptr(hb.Height)
			states = append(states, &spent)
		}
	}

	return states, nil
}

// syncFullResync rebuilds the local view from a weight proof: proof fetch and
// validation, chain state commit, subscription fixed point, coin state
// validation, commit.
func (s *Server) syncFullResync(ctx context.Context, sc *syncContext) error {
	if !sc.session.Trusted {
		if err := s.fetchAndValidateWeightProof(ctx, sc); err != nil {
			return err
		}

		if err := s.commitChainState(ctx, sc); err != nil {
			return err
		}
	}

	if err := s.subscribeToFixedPoint(ctx, sc); err != nil {
		return err
	}

	if err := s.validateAndCommitStates(ctx, sc); err != nil {
		return err
	}

	return s.finalizePeak(ctx, sc)
}

// fetchAndValidateWeightProof obtains the proof for the announced peak and
// runs the validator. The cache holds structural validity only, keyed by
// proof content; the fork point depends on what is stored locally and is
// recomputed against the current summary list on every hit.
func (s *Server) fetchAndValidateWeightProof(ctx context.Context, sc *syncContext) error {
	peer := sc.session.Peer

	proof, err := peer.RequestProofOfWeight(ctx, sc.announced.Height, sc.announced.Hash)
	if err != nil {
		return err
	}

	// The proof must actually anchor the peak the peer announced.
	if !proof.TipHash.IsEqual(sc.announced.Hash) || proof.TipHeight != sc.announced.Height || proof.TotalWeight != sc.announced.Weight {
		return errors.NewNetworkPeerMaliciousError("peer %s weight proof anchors %s, not the announced peak %s",
			peer.PeerID(), proof.TipHash.String(), sc.announced.Hash.String())
	}

	proofHash := proof.Hash()

	localSES, err := s.chainStore.GetSubEpochSummaries(ctx)
	if err != nil {
		return err
	}

	if cached := s.proofCache.Get(proofHash); cached != nil {
		s.logger.Debugf("[syncToPeer][%s] weight proof %s already validated", peer.PeerID(), proofHash.String())

		result := *cached.Value()
		result.ForkPoint = weightproof.ComputeForkPoint(result.SubEpochs, localSES)

		sc.proof = proof
		sc.wpResult = &result
		sc.session.SetProof(proof, &result)

		return nil
	}

	result, err := s.wpValidator.ValidateWeightProof(ctx, proof, localSES)
	if err != nil {
		return err
	}

	s.proofCache.Set(proofHash, result, ttlcache.DefaultTTL)

	sc.proof = proof
	sc.wpResult = result
	sc.session.SetProof(proof, result)

	return nil
}

// commitChainState persists the proof's window headers and sub-epoch list,
// rolling back past the fork point first when the proof diverges from the
// local chain.
func (s *Server) commitChainState(ctx context.Context, sc *syncContext) error {
	local, err := s.chainStore.GetBestPeak(ctx)
	if err != nil {
		return err
	}

	if local != nil && sc.wpResult.ForkPoint < local.Height {
		if err = s.committer.Rollback(ctx, sc.wpResult.ForkPoint); err != nil {
			return err
		}

		if err = s.chainStore.RollbackToHeight(ctx, sc.wpResult.ForkPoint); err != nil {
			return err
		}
	}

	if err = s.chainStore.StoreHeaders(ctx, sc.wpResult.RecentHeaders); err != nil {
		return err
	}

	return s.chainStore.StoreSubEpochSummaries(ctx, sc.wpResult.SubEpochs)
}

// subscribeToFixedPoint registers the wallet's interests with the peer in
// batches, feeding returned states back into the registry, until a round
// discovers nothing new. Interest growth is monotone and bounded, so the
// loop terminates in at most N/batch+1 rounds.
func (s *Server) subscribeToFixedPoint(ctx context.Context, sc *syncContext) error {
	peer := sc.session.Peer
	batchSize := s.settings.WalletSync.SubscriptionBatchSize

	minHeight := uint32(0)
	if sc.wpResult != nil {
		minHeight = sc.wpResult.ForkPoint
	}

	collected := make(map[chainhash.Hash]*model.CoinState)
	rounds := 0

	for {
		rounds++

		puzzleMark, coinMark := sc.session.Watermarks()

		newPuzzles := s.interests.PuzzleHashes()[puzzleMark:]
		newCoins := s.interests.CoinIDs()[coinMark:]

		if len(newPuzzles) == 0 && len(newCoins) == 0 {
			break
		}

		sc.session.SetWatermarks(puzzleMark+len(newPuzzles), coinMark+len(newCoins))

		for start := 0; start < len(newPuzzles); start += batchSize {
			end := start + batchSize
			if end > len(newPuzzles) {
				end = len(newPuzzles)
			}

			states, err := peer.RegisterInterestInPuzzleHashes(ctx, newPuzzles[start:end], minHeight)
			if err != nil {
				return err
			}

			s.collectStates(collected, states)
		}

		for start := 0; start < len(newCoins); start += batchSize {
			end := start + batchSize
			if end > len(newCoins) {
				end = len(newCoins)
			}

			states, err := peer.RegisterInterestInCoins(ctx, newCoins[start:end], minHeight)
			if err != nil {
				return err
			}

			s.collectStates(collected, states)
		}
	}

	prometheusSubscriptionRounds.Observe(float64(rounds))

	sc.states = make([]*model.CoinState, 0, len(collected))
	for _, state := range collected {
		sc.states = append(sc.states, state)
	}

	s.logger.Infof("[syncToPeer][%s] subscription fixed point after %d rounds, %d states collected",
		peer.PeerID(), rounds, len(sc.states))

	return nil
}

// collectStates dedupes received states by content hash and feeds the
// registry, which is what can grow the next subscription round.
func (s *Server) collectStates(collected map[chainhash.Hash]*model.CoinState, states []*model.CoinState) {
	for _, state := range states {
		collected[state.Hash()] = state
	}

	s.interests.ObserveStates(states)
}

// validateAndCommitStates runs the coin state validator over the collected
// states (untrusted peers only) and commits what was proven. Trusted peers'
// states are written directly.
func (s *Server) validateAndCommitStates(ctx context.Context, sc *syncContext) error {
	if len(sc.states) == 0 {
		return nil
	}

	if sc.session.Trusted {
		for _, state := range sc.states {
			if err := state.Validate(); err != nil {
				return err
			}
		}

		_, err := s.committer.Commit(ctx, sc.states)

		return err
	}

	results, err := s.csValidator.ValidateStates(ctx, sc.session, sc.states)
	if err != nil {
		return err
	}

	accepted := AcceptedStates(results)

	if len(accepted) < len(results) {
		s.logger.Infof("[syncToPeer][%s] %d of %d states accepted, %d deferred",
			sc.session.Peer.PeerID(), len(accepted), len(results), len(results)-len(accepted))
	}

	if len(accepted) == 0 {
		return nil
	}

	_, err = s.committer.Commit(ctx, accepted)

	return err
}

// finalizePeak records the synced peak. For untrusted peers this is the
// validated proof tip; for trusted peers the announced peak is taken as is.
func (s *Server) finalizePeak(ctx context.Context, sc *syncContext) error {
	if !sc.session.Trusted && sc.wpResult != nil {
		if err := s.chainStore.SetBestPeak(ctx, &model.Peak{
			Hash:   sc.proof.TipHash,
			Height: sc.wpResult.TipHeight,
			Weight: sc.wpResult.TipWeight,
		}); err != nil {
			return err
		}

		return nil
	}

	return s.chainStore.SetBestPeak(ctx, sc.announced)
}
