package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/domain/site"
	"github.com/yanqian/redisolar/internal/domain/sitestats"
)

// HealthChecker probes a backing dependency.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Handler wires the HTTP transport to domain services.
type Handler struct {
	meterSvc meter.Service
	siteSvc  site.Service
	statsSvc sitestats.Service
	health   HealthChecker
	logger   *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(meterSvc meter.Service, siteSvc site.Service, statsSvc sitestats.Service, health HealthChecker, logger *slog.Logger) *Handler {
	return &Handler{
		meterSvc: meterSvc,
		siteSvc:  siteSvc,
		statsSvc: statsSvc,
		health:   health,
		logger:   logger.With("component", "http.handler"),
	}
}

// CreateSite registers a site.
func (h *Handler) CreateSite(c *gin.Context) {
	var req site.Site
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	key, err := h.siteSvc.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "site": req})
}

// ListSites returns every site, or the sites around a point when lat, lng
// and radius are given.
func (h *Handler) ListSites(c *gin.Context) {
	if c.Query("lat") == "" && c.Query("lng") == "" && c.Query("radius") == "" {
		sites, err := h.siteSvc.List(c.Request.Context())
		if err != nil {
			abortWithError(c, fromServiceError(err))
			return
		}
		c.JSON(http.StatusOK, sites)
		return
	}

	query, err := parseGeoQuery(c)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	sites, err := h.siteSvc.Nearby(c.Request.Context(), query)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, sites)
}

// GetSite returns one site.
func (h *Handler) GetSite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	found, err := h.siteSvc.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, found)
}

// SubmitReadings ingests a batch of meter readings.
func (h *Handler) SubmitReadings(c *gin.Context) {
	var req meter.ReadingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.meterSvc.Submit(c.Request.Context(), req.Readings); err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accepted": len(req.Readings)})
}

// RecentReadings returns the newest readings across all sites.
func (h *Handler) RecentReadings(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	entries, err := h.meterSvc.Recent(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, entries)
}

// SiteReadings returns the newest readings of one site.
func (h *Handler) SiteReadings(c *gin.Context) {
	siteID, ok := pathID(c, "siteId")
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	entries, err := h.meterSvc.RecentForSite(c.Request.Context(), siteID, limit)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, entries)
}

// SiteStats returns the daily rollup of a site.
func (h *Handler) SiteStats(c *gin.Context) {
	siteID, ok := pathID(c, "siteId")
	if !ok {
		return
	}
	var ts int64
	if raw := c.Query("timestamp"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "timestamp must be unix seconds", err))
			return
		}
		ts = parsed
	}
	stats, err := h.statsSvc.Get(c.Request.Context(), siteID, ts)
	if err != nil {
		abortWithError(c, fromServiceError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health reports whether the store is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.health.Check(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseGeoQuery(c *gin.Context) (site.GeoQuery, error) {
	var (
		query site.GeoQuery
		err   error
	)
	if query.Lat, err = strconv.ParseFloat(c.Query("lat"), 64); err != nil {
		return site.GeoQuery{}, errInvalidParam("lat")
	}
	if query.Lng, err = strconv.ParseFloat(c.Query("lng"), 64); err != nil {
		return site.GeoQuery{}, errInvalidParam("lng")
	}
	if query.Radius, err = strconv.ParseFloat(c.Query("radius"), 64); err != nil {
		return site.GeoQuery{}, errInvalidParam("radius")
	}
	query.Unit = site.DistanceUnit(strings.ToLower(c.DefaultQuery("radiusUnit", string(site.UnitKilometers))))
	if raw := c.Query("onlyExcessCapacity"); raw != "" {
		if query.OnlyExcessCapacity, err = strconv.ParseBool(raw); err != nil {
			return site.GeoQuery{}, errInvalidParam("onlyExcessCapacity")
		}
	}
	return query, nil
}

func errInvalidParam(name string) error {
	return fmt.Errorf("invalid query parameter %s", name)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", name+" must be a positive integer", err))
		return 0, false
	}
	return id, true
}

// queryLimit reads n; absent means the service default.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("n")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "n must be a positive integer", err))
		return 0, false
	}
	return n, true
}
