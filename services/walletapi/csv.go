package walletapi

import (
	"net/http"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/verdant-network/walletnode/model"
)

// coinCSVRow flattens a coin state for spreadsheet export. Heights are empty
// strings when unknown, not zero, so an unspent coin is distinguishable from
// one spent at genesis.
type coinCSVRow struct {
	CoinID        string `csv:"coin_id"`
	ParentCoinID  string `csv:"parent_coin_id"`
	PuzzleHash    string `csv:"puzzle_hash"`
	Amount        uint64 `csv:"amount"`
	CreatedHeight string `csv:"created_height"`
	SpentHeight   string `csv:"spent_height"`
}

// GetCoinsCSV returns the same coin set as GetCoins in CSV form, for wallet
// bookkeeping exports. Accepts the same query parameters.
func (s *Server) GetCoinsCSV(c echo.Context) error {
	states, err := s.queryCoins(c)
	if err != nil {
		return err
	}

	rows := make([]*coinCSVRow, 0, len(states))
	for _, state := range states {
		rows = append(rows, coinStateToCSVRow(state))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="coins.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	return gocsv.Marshal(&rows, c.Response().Writer)
}

func coinStateToCSVRow(state *model.CoinState) *coinCSVRow {
	row := &coinCSVRow{
		CoinID:       state.Coin.ID().String(),
		ParentCoinID: state.Coin.ParentCoinID.String(),
		PuzzleHash:   state.Coin.PuzzleHash.String(),
		Amount:       state.Coin.Amount,
	}

	if state.CreatedHeight != nil {
		row.CreatedHeight = formatHeight(*state.CreatedHeight)
	}

	if state.SpentHeight != nil {
		row.SpentHeight = formatHeight(*state.SpentHeight)
	}

	return row
}
