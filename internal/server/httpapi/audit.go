package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sfstore/sfs/internal/server/models"
)

type divergencesResponse struct {
	// Scanned is the result of a fresh set comparison between the two
	// backends.
	Scanned []models.Divergence `json:"scanned"`
	// Flagged is the journal of divergences reported by the coordinator
	// during failed protocols.
	Flagged []models.Divergence `json:"flagged"`
}

func (s *Server) listDivergences(c echo.Context) error {
	scanned, err := s.audit.Scan(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	resp := divergencesResponse{
		Scanned: scanned,
		Flagged: s.audit.Flagged(),
	}
	if resp.Scanned == nil {
		resp.Scanned = []models.Divergence{}
	}
	if resp.Flagged == nil {
		resp.Flagged = []models.Divergence{}
	}
	return c.JSON(http.StatusOK, resp)
}

type reclaimResponse struct {
	Reclaimed int `json:"reclaimed"`
	Marked    int `json:"marked"`
}

func (s *Server) reclaim(c echo.Context) error {
	reclaimed, marked, err := s.audit.Reconcile(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reclaimResponse{Reclaimed: reclaimed, Marked: marked})
}
