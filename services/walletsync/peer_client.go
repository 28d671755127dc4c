package walletsync

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sesRecordSize = 80

// PeerClient is the HTTP implementation of WalletPeerI. Every request passes
// the per-peer rate limiter and circuit breaker and runs under the configured
// per-request timeout. Responses that fail to parse are converted into
// invalid-response errors so callers can score the peer.
type PeerClient struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	peerID    string
	baseURL   string
	breaker   *CircuitBreaker
	rateLimit *rate.Limiter
}

// NewPeerClient creates a client for one peer's wallet protocol endpoints.
func NewPeerClient(logger ulogger.Logger, tSettings *settings.Settings, peerID, baseURL string) *PeerClient {
	ws := tSettings.WalletSync

	limit := rate.Limit(ws.RequestRateLimit)
	if ws.RequestRateLimit <= 0 {
		limit = rate.Inf
	}

	burst := ws.RequestRateBurst
	if burst <= 0 {
		burst = 1
	}

	return &PeerClient{
		logger:   logger,
		settings: tSettings,
		peerID:   peerID,
		baseURL:  baseURL,
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: ws.BreakerFailureThreshold,
			ResetTimeout:     ws.BreakerResetTimeout,
		}),
		rateLimit: rate.NewLimiter(limit, burst),
	}
}

func (p *PeerClient) PeerID() string {
	return p.peerID
}

func (p *PeerClient) BaseURL() string {
	return p.baseURL
}

// do runs one guarded round trip and returns the raw response body.
func (p *PeerClient) do(ctx context.Context, url string, requestBody ...[]byte) ([]byte, error) {
	if !p.breaker.Allow() {
		return nil, errors.NewServiceUnavailableError("circuit breaker open for peer %s", p.peerID)
	}

	if err := p.rateLimit.Wait(ctx); err != nil {
		return nil, errors.NewContextCanceledError("rate limiter wait aborted for peer %s", p.peerID, err)
	}

	timeout := p.settings.WalletSync.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := util.DoHTTPRequest(reqCtx, url, requestBody...)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}

	p.breaker.RecordSuccess()

	return body, nil
}

func (p *PeerClient) RequestBlockHeader(ctx context.Context, height uint32) (*model.HeaderBlock, error) {
	body, err := p.do(ctx, fmt.Sprintf("%s/block_header/%d", p.baseURL, height))
	if err != nil {
		return nil, err
	}

	hb, err := model.NewHeaderBlockFromBytes(body)
	if err != nil {
		return nil, errors.NewNetworkInvalidResponseError("peer %s returned an unparseable header for height %d", p.peerID, height, err)
	}

	return hb, nil
}

func (p *PeerClient) RequestHeaderBlocks(ctx context.Context, start, end uint32) ([]*model.HeaderBlock, error) {
	if end < start {
		return nil, errors.NewInvalidArgumentError("header range %d..%d is inverted", start, end)
	}

	body, err := p.do(ctx, fmt.Sprintf("%s/header_blocks/%d/%d", p.baseURL, start, end))
	if err != nil {
		return nil, err
	}

	headers, err := decodeHeaderBatch(body)
	if err != nil {
		return nil, errors.NewNetworkInvalidResponseError("peer %s returned an unparseable header batch %d..%d", p.peerID, start, end, err)
	}

	return headers, nil
}

func (p *PeerClient) RequestProofOfWeight(ctx context.Context, height uint32, hash *chainhash.Hash) (*model.WeightProof, error) {
	body, err := p.do(ctx, fmt.Sprintf("%s/proof_of_weight/%d/%s", p.baseURL, height, hash.String()))
	if err != nil {
		return nil, err
	}

	proof, err := model.NewWeightProofFromBytes(body)
	if err != nil {
		return nil, errors.NewNetworkInvalidResponseError("peer %s returned an unparseable weight proof for %s", p.peerID, hash.String(), err)
	}

	return proof, nil
}

func (p *PeerClient) RequestSESHashes(ctx context.Context, start, end uint32) ([]*model.SubEpochSummary, error) {
	body, err := p.do(ctx, fmt.Sprintf("%s/ses_hashes/%d/%d", p.baseURL, start, end))
	if err != nil {
		return nil, err
	}

	if len(body)%sesRecordSize != 0 {
		return nil, errors.NewNetworkInvalidResponseError("peer %s returned a malformed sub-epoch response of %d bytes", p.peerID, len(body))
	}

	summaries := make([]*model.SubEpochSummary, 0, len(body)/sesRecordSize)

	for offset := 0; offset < len(body); offset += sesRecordSize {
		ses, err := model.NewSubEpochSummaryFromBytes(body[offset : offset+sesRecordSize])
		if err != nil {
			return nil, errors.NewNetworkInvalidResponseError("peer %s returned an unparseable sub-epoch summary", p.peerID, err)
		}

		summaries = append(summaries, ses)
	}

	return summaries, nil
}

type registerInterestRequest struct {
	Hashes    []string `json:"hashes"`
	MinHeight uint32   `json:"min_height"`
}

func (p *PeerClient) RegisterInterestInPuzzleHashes(ctx context.Context, puzzleHashes []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error) {
	return p.registerInterest(ctx, "register_interest/puzzle_hashes", puzzleHashes, minHeight)
}

func (p *PeerClient) RegisterInterestInCoins(ctx context.Context, coinIDs []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error) {
	return p.registerInterest(ctx, "register_interest/coins", coinIDs, minHeight)
}

func (p *PeerClient) registerInterest(ctx context.Context, endpoint string, hashes []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error) {
	req := registerInterestRequest{
		Hashes:    make([]string, 0, len(hashes)),
		MinHeight: minHeight,
	}

	for _, h := range hashes {
		req.Hashes = append(req.Hashes, h.String())
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewProcessingError("failed to marshal interest request", err)
	}

	body, err := p.do(ctx, fmt.Sprintf("%s/%s", p.baseURL, endpoint), reqBody)
	if err != nil {
		return nil, err
	}

	var states []*model.CoinState
	if err = json.Unmarshal(body, &states); err != nil {
		return nil, errors.NewNetworkInvalidResponseError("peer %s returned unparseable coin states", p.peerID, err)
	}

	return states, nil
}

type coinProofRequest struct {
	Height     uint32   `json:"height"`
	HeaderHash string   `json:"header_hash"`
	Filter     []string `json:"filter,omitempty"`
}

func (p *PeerClient) RequestAdditions(ctx context.Context, height uint32, headerHash *chainhash.Hash, puzzleHashes []chainhash.Hash) (*model.CoinProofBatch, error) {
	return p.requestCoinProofs(ctx, "additions", height, headerHash, puzzleHashes)
}

func (p *PeerClient) RequestRemovals(ctx context.Context, height uint32, headerHash *chainhash.Hash, coinIDs []chainhash.Hash) (*model.CoinProofBatch, error) {
	return p.requestCoinProofs(ctx, "removals", height, headerHash, coinIDs)
}

func (p *PeerClient) requestCoinProofs(ctx context.Context, endpoint string, height uint32, headerHash *chainhash.Hash, filter []chainhash.Hash) (*model.CoinProofBatch, error) {
	req := coinProofRequest{
		Height:     height,
		HeaderHash: headerHash.String(),
	}

	for _, h := range filter {
		req.Filter = append(req.Filter, h.String())
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewProcessingError("failed to marshal %s request", endpoint, err)
	}

	body, err := p.do(ctx, fmt.Sprintf("%s/%s", p.baseURL, endpoint), reqBody)
	if err != nil {
		return nil, err
	}

	batch := &model.CoinProofBatch{}
	if err = json.Unmarshal(body, batch); err != nil {
		return nil, errors.NewNetworkInvalidResponseError("peer %s returned an unparseable %s batch for height %d", p.peerID, endpoint, height, err)
	}

	return batch, nil
}

// decodeHeaderBatch parses a count-prefixed list of length-prefixed header
// blocks, the same framing the weight proof uses for its window.
func decodeHeaderBatch(b []byte) ([]*model.HeaderBlock, error) {
	if len(b) < 4 {
		return nil, errors.NewInvalidArgumentError("header batch too short")
	}

	count := int(binary.LittleEndian.Uint32(b))
	offset := 4

	// Every entry carries a length prefix and at least a base-size header,
	// which bounds how many can fit in the remaining bytes.
	if count > (len(b)-offset)/(4+model.HeaderBlockBaseSize) {
		return nil, errors.NewInvalidArgumentError("header batch claims %d headers in %d bytes", count, len(b)-offset)
	}

	headers := make([]*model.HeaderBlock, 0, count)

	for i := 0; i < count; i++ {
		if len(b) < offset+4 {
			return nil, errors.NewInvalidArgumentError("header batch truncated at header %d", i)
		}

		headerLen := int(binary.LittleEndian.Uint32(b[offset:]))
		offset += 4

		if len(b) < offset+headerLen {
			return nil, errors.NewInvalidArgumentError("header batch truncated in header %d", i)
		}

		hb, err := model.NewHeaderBlockFromBytes(b[offset : offset+headerLen])
		if err != nil {
			return nil, err
		}

		headers = append(headers, hb)
		offset += headerLen
	}

	return headers, nil
}

// EncodeHeaderBatch is the inverse of the batch decoding, used by the API
// when serving header ranges.
func EncodeHeaderBatch(headers []*model.HeaderBlock) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(headers)))

	for _, hb := range headers {
		headerBytes := hb.Bytes()
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(headerBytes)))
		buf = append(buf, headerBytes...)
	}

	return buf
}
