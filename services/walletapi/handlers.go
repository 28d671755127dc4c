package walletapi

import (
	"net/http"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/p2p"
	"github.com/verdant-network/walletnode/util/tracing"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetSyncStatus returns the sync service snapshot.
//
// Example: GET /api/v1/sync/status
func (s *Server) GetSyncStatus(c echo.Context) error {
	status, err := s.syncServer.GetStatus(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return s.sendJSON(c, http.StatusOK, status)
}

// GetFSMState returns the sync service's FSM state.
func (s *Server) GetFSMState(c echo.Context) error {
	return s.sendJSON(c, http.StatusOK, map[string]string{
		"state": s.syncServer.FSMState(),
	})
}

// TriggerResync asks the sync service to run the next sync as a full resync.
// The resync itself happens on the next peak announcement, so the request is
// accepted rather than completed.
func (s *Server) TriggerResync(c echo.Context) error {
	s.syncServer.ForceFullResync()

	s.logger.Infof("[walletapi] full resync requested")

	return s.sendJSON(c, http.StatusAccepted, map[string]string{
		"status": "full resync scheduled for next peak announcement",
	})
}

type peakJSON struct {
	Hash   string `json:"hash"`
	Height uint32 `json:"height"`
	Weight uint64 `json:"weight"`
}

// GetPeak returns the local best peak, or 404 before first sync.
func (s *Server) GetPeak(c echo.Context) error {
	peak, err := s.chainStore.GetBestPeak(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if peak == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no peak synced yet")
	}

	return s.sendJSON(c, http.StatusOK, &peakJSON{
		Hash:   peak.Hash.String(),
		Height: peak.Height,
		Weight: peak.Weight,
	})
}

type coinsResponse struct {
	Coins []*model.CoinState `json:"coins"`
	Count int                `json:"count"`
}

// GetCoins returns stored coin states.
//
// Query parameters:
//   - puzzle_hash: restrict to these puzzle hashes (repeatable)
//   - unspent: "true" returns only coins without a spent height
func (s *Server) GetCoins(c echo.Context) error {
	_, _, deferFn := tracing.Tracer("walletapi").Start(c.Request().Context(), "GetCoins",
		tracing.WithParentStat(s.stats),
	)
	defer deferFn()

	states, err := s.queryCoins(c)
	if err != nil {
		return err
	}

	return s.sendJSON(c, http.StatusOK, &coinsResponse{Coins: states, Count: len(states)})
}

// GetCoin returns the stored state for one coin by its ID.
func (s *Server) GetCoin(c echo.Context) error {
	coinID, err := chainhash.NewHashFromStr(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.NewInvalidArgumentError("invalid coin id", err).Error())
	}

	state, err := s.coinStore.GetCoinState(c.Request().Context(), *coinID)
	if err != nil {
		if errors.Is(err, errors.ErrCoinNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}

		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return s.sendJSON(c, http.StatusOK, state)
}

func (s *Server) queryCoins(c echo.Context) ([]*model.CoinState, error) {
	ctx := c.Request().Context()

	if hashes, ok := c.QueryParams()["puzzle_hash"]; ok {
		puzzleHashes := make([]chainhash.Hash, 0, len(hashes))

		for _, h := range hashes {
			ph, err := chainhash.NewHashFromStr(h)
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, errors.NewInvalidArgumentError("invalid puzzle hash %q", h, err).Error())
			}

			puzzleHashes = append(puzzleHashes, *ph)
		}

		states, err := s.coinStore.GetCoinStatesByPuzzleHashes(ctx, puzzleHashes)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		if c.QueryParam("unspent") == "true" {
			states = filterUnspent(states)
		}

		return states, nil
	}

	if c.QueryParam("unspent") == "true" {
		states, err := s.coinStore.GetUnspentCoins(ctx)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return states, nil
	}

	// no filter: everything we watch
	states, err := s.coinStore.GetCoinStatesByPuzzleHashes(ctx, s.syncServer.Interests().PuzzleHashes())
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return states, nil
}

func filterUnspent(states []*model.CoinState) []*model.CoinState {
	unspent := states[:0]

	for _, state := range states {
		if state.SpentHeight == nil {
			unspent = append(unspent, state)
		}
	}

	return unspent
}

type interestsRequest struct {
	PuzzleHashes []string `json:"puzzle_hashes"`
	CoinIDs      []string `json:"coin_ids"`
}

type interestsResponse struct {
	PuzzleHashes []string `json:"puzzle_hashes"`
	CoinIDs      []string `json:"coin_ids"`
}

// GetInterests returns the registered puzzle hashes and coin IDs.
func (s *Server) GetInterests(c echo.Context) error {
	interests := s.syncServer.Interests()

	return s.sendJSON(c, http.StatusOK, &interestsResponse{
		PuzzleHashes: hashStrings(interests.PuzzleHashes()),
		CoinIDs:      hashStrings(interests.CoinIDs()),
	})
}

// AddInterests registers additional puzzle hashes and coin IDs to watch. New
// entries are picked up by the next sync's subscription round.
func (s *Server) AddInterests(c echo.Context) error {
	var req interestsRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.NewInvalidArgumentError("invalid interests body", err).Error())
	}

	puzzleHashes, err := parseHashes(req.PuzzleHashes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	coinIDs, err := parseHashes(req.CoinIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	interests := s.syncServer.Interests()
	addedPuzzles := interests.AddPuzzleHashes(puzzleHashes)
	addedCoins := interests.AddCoinIDs(coinIDs)

	s.logger.Infof("[walletapi] registered %d puzzle hashes and %d coin ids", addedPuzzles, addedCoins)

	return s.sendJSON(c, http.StatusOK, map[string]int{
		"added_puzzle_hashes": addedPuzzles,
		"added_coin_ids":      addedCoins,
	})
}

type peersResponse struct {
	NodeID string         `json:"node_id,omitempty"`
	Peers  []p2p.PeerInfo `json:"peers"`
}

// GetPeers returns the known gossip peers, most recently heard first.
func (s *Server) GetPeers(c echo.Context) error {
	resp := &peersResponse{Peers: []p2p.PeerInfo{}}

	if s.peers != nil {
		resp.NodeID = s.peers.NodeID()
		resp.Peers = s.peers.Peers()
	}

	return s.sendJSON(c, http.StatusOK, resp)
}

// GetBannedPeers returns the currently banned peers and their ban expiries.
func (s *Server) GetBannedPeers(c echo.Context) error {
	banned := map[string]string{}

	if s.peers != nil {
		for peerID, until := range s.peers.BannedPeers() {
			banned[peerID] = until.Format(time.RFC3339)
		}
	}

	return s.sendJSON(c, http.StatusOK, banned)
}

func parseHashes(in []string) ([]chainhash.Hash, error) {
	out := make([]chainhash.Hash, 0, len(in))

	for _, str := range in {
		h, err := chainhash.NewHashFromStr(str)
		if err != nil {
			return nil, errors.NewInvalidArgumentError("invalid hash %q", str, err)
		}

		out = append(out, *h)
	}

	return out, nil
}

func hashStrings(hashes []chainhash.Hash) []string {
	out := make([]string, len(hashes))
	for i := range hashes {
		out[i] = hashes[i].String()
	}

	return out
}
