package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sfstore/sfs/internal/server/models"
)

type basketResponse struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FileCount   int64     `json:"file_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toBasketResponse(b *models.Basket) basketResponse {
	return basketResponse{
		Name:        b.Name,
		Description: b.Description,
		FileCount:   b.FileCount,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type createBasketRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) createBasket(c echo.Context) error {
	var req createBasketRequest
	if err := c.Bind(&req); err != nil {
		return writeErrorCode(c, http.StatusBadRequest, codeInvalidName, "invalid request body")
	}

	basket, err := s.baskets.Create(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toBasketResponse(basket))
}

func (s *Server) listBaskets(c echo.Context) error {
	limit, offset := pagination(c)

	list, err := s.baskets.List(c.Request().Context(), limit, offset)
	if err != nil {
		return writeError(c, err)
	}

	out := make([]basketResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBasketResponse(b))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getBasket(c echo.Context) error {
	basket, err := s.baskets.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBasketResponse(basket))
}

func (s *Server) deleteBasket(c echo.Context) error {
	cascade := c.QueryParam("cascade") == "true"

	if err := s.baskets.Delete(c.Request().Context(), c.Param("name"), cascade); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
