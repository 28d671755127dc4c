package walletapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func formatHeight(h uint32) string {
	return strconv.FormatUint(uint64(h), 10)
}

// sendJSON writes a JSON response. When a signing key is configured, the
// SHA-256 of the payload is signed and attached as an X-Signature header so
// clients can pin this node's identity across a reverse proxy.
func (s *Server) sendJSON(c echo.Context, status int, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if s.privKey != nil {
		hash := sha256.Sum256(payload)

		signature, err := s.privKey.Sign(hash[:])
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		c.Response().Header().Set("X-Signature", hex.EncodeToString(signature))
	}

	return c.Blob(status, echo.MIMEApplicationJSON, payload)
}
