package main

import (
	"errors"
	"net/http"

	"github.com/odan-platform/sentinel/analytics"
	"github.com/odan-platform/sentinel/moderation"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
)

const analyticsKeyHeader = "X-Analytics-Key"

type textModerationRequest struct {
	Text string `json:"text"`
}

type imageModerationRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

type batchModerationRequest struct {
	Items []batchItem `json:"items"`
}

type batchItem struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type batchItemResult struct {
	ID string `json:"id"`
	moderation.Verdict
}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Models    map[string]string `json:"models"`
	Analytics map[string]any    `json:"analytics"`
}

type hourlyStatsResponse struct {
	WindowDays int                      `json:"windowDays"`
	Timezone   string                   `json:"timezone"`
	Buckets    []analytics.HourlyBucket `json:"buckets"`
}

func (srv *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: versioninfo.Short(),
		Models: map[string]string{
			"text_nsfw":      srv.cfg.TextNSFWModel,
			"text_offensive": srv.cfg.TextOffensiveModel,
			"image_nsfw":     srv.cfg.ImageNSFWModel,
		},
		Analytics: map[string]any{
			"ticket_stats_window_days": srv.cfg.WindowDays,
			"ticket_stats_timezone":    srv.cfg.Timezone,
			"carto_enabled":            srv.cfg.SinkConfigured,
			"database_configured":      srv.cfg.StoreConfigured,
		},
	})
}

func (srv *Server) handleModerateText(c echo.Context) error {
	var req textModerationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	verdict := srv.engine.ModerateText(c.Request().Context(), req.Text)
	return c.JSON(http.StatusOK, verdict)
}

func (srv *Server) handleModerateImage(c echo.Context) error {
	var req imageModerationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	verdict := srv.engine.ModerateImage(c.Request().Context(), req.ImageBase64)
	return c.JSON(http.StatusOK, verdict)
}

func (srv *Server) handleModerateBatch(c echo.Context) error {
	var req batchModerationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	results := make([]batchItemResult, 0, len(req.Items))
	for _, item := range req.Items {
		var verdict moderation.Verdict
		switch item.Type {
		case "text":
			verdict = srv.engine.ModerateText(ctx, item.Content)
		case "image":
			verdict = srv.engine.ModerateImage(ctx, item.Content)
		default:
			verdict = moderation.Verdict{
				IsSafe:     true,
				Confidence: 0.0,
				Reason:     "Unknown type",
				Details:    map[string]any{},
			}
		}
		results = append(results, batchItemResult{ID: item.ID, Verdict: verdict})
	}

	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

func (srv *Server) handleHourlyStats(c echo.Context) error {
	if srv.cfg.AnalyticsAPIKey != "" && c.Request().Header.Get(analyticsKeyHeader) != srv.cfg.AnalyticsAPIKey {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid analytics key")
	}

	buckets, err := srv.buckets.Hourly(c.Request().Context())
	if err != nil {
		if errors.Is(err, analytics.ErrNotConfigured) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Analytics database not configured")
		}
		return err
	}

	return c.JSON(http.StatusOK, hourlyStatsResponse{
		WindowDays: srv.cfg.WindowDays,
		Timezone:   srv.cfg.Timezone,
		Buckets:    buckets,
	})
}
