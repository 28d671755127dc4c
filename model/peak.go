package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
)

// Peak identifies a chain tip by hash, height and cumulative weight.
type Peak struct {
	Hash   *chainhash.Hash
	Height uint32
	Weight uint64
}

// PeakAnnouncement is the gossip message a peer publishes when its peak
// advances. DataHubURL is where the announcing peer serves the wallet
// protocol HTTP endpoints.
type PeakAnnouncement struct {
	Hash       string `json:"hash"`
	Height     uint32 `json:"height"`
	Weight     uint64 `json:"weight"`
	DataHubURL string `json:"data_hub_url"`
	PeerID     string `json:"peer_id"`
	Timestamp  int64  `json:"timestamp"`
}

// Peak parses the announcement's hash into a Peak.
func (pa *PeakAnnouncement) Peak() (*Peak, error) {
	hash, err := chainhash.NewHashFromStr(pa.Hash)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("peak announcement has invalid hash %q", pa.Hash, err)
	}

	return &Peak{Hash: hash, Height: pa.Height, Weight: pa.Weight}, nil
}

func NewPeakAnnouncementFromJSON(b []byte) (*PeakAnnouncement, error) {
	var pa PeakAnnouncement
	if err := json.Unmarshal(b, &pa); err != nil {
		return nil, errors.NewInvalidArgumentError("failed to unmarshal peak announcement", err)
	}

	return &pa, nil
}

func (pa *PeakAnnouncement) JSON() ([]byte, error) {
	b, err := json.Marshal(pa)
	if err != nil {
		return nil, errors.NewProcessingError("failed to marshal peak announcement", err)
	}

	return b, nil
}
