package apiv1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ReadinessChecker reports whether the gateway can reach the backend
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

type HealthGroup struct {
	checker     ReadinessChecker
	routerGroup *echo.Group
}

func NewHealthGroup(g *echo.Group, checker ReadinessChecker) *HealthGroup {
	group := &HealthGroup{routerGroup: g, checker: checker}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	err := h.checker.Ready(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ok",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
