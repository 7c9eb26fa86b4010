package http

import (
	"errors"
	"net/http"
	"strconv"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/internal/digest/service"
	"golang-stock-digest/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DigestHandler handles HTTP requests for digests.
type DigestHandler struct {
	digestService service.DigestService
	logger        *logger.Logger
}

// NewDigestHandler creates a new DigestHandler.
func NewDigestHandler(digestService service.DigestService, logger *logger.Logger) *DigestHandler {
	return &DigestHandler{digestService: digestService, logger: logger}
}

// RegisterRoutes registers the digest routes to the Echo group.
func (h *DigestHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/generate", h.GenerateDigest)
	g.GET("/today", h.GetTodayDigest)
	g.GET("/history", h.GetDigestHistory)
}

// GenerateDigest generates (or regenerates) today's digest for a user on
// demand and optionally emails it.
func (h *DigestHandler) GenerateDigest(c echo.Context) error {
	var req dto.GenerateDigestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	resp, err := h.digestService.GenerateAndStore(c.Request().Context(), req.UserID, req.SendEmail)
	if err != nil {
		h.logger.Error("Failed to generate digest", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// GetTodayDigest returns the stored digest for the user's current day.
func (h *DigestHandler) GetTodayDigest(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid user_id"})
	}

	resp, err := h.digestService.GetTodayDigest(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrDigestNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No digest for today"})
		}
		h.logger.Error("Failed to load today's digest", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// GetDigestHistory returns the user's most recent digests, newest first.
func (h *DigestHandler) GetDigestHistory(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid user_id"})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
	}

	resp, err := h.digestService.GetDigestHistory(c.Request().Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to load digest history", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func parseUserID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.QueryParam("user_id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid user_id")
	}
	return uint(id), nil
}
