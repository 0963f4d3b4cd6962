package site

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "github.com/yanqian/redisolar/pkg/errors"
)

// Service exposes site management and lookup.
type Service interface {
	Create(ctx context.Context, site Site) (string, error)
	Get(ctx context.Context, id int64) (Site, error)
	List(ctx context.Context) ([]Site, error)
	Nearby(ctx context.Context, query GeoQuery) ([]Site, error)
}

type service struct {
	registry Registry
	logger   *slog.Logger
}

// NewService wires the site domain.
func NewService(registry Registry, logger *slog.Logger) Service {
	return &service{registry: registry, logger: logger.With("component", "site.service")}
}

func (s *service) Create(ctx context.Context, site Site) (string, error) {
	if err := validateSite(site); err != nil {
		return "", err
	}
	key, err := s.registry.Insert(ctx, site)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStoreError, "site insert failed", err)
	}
	s.logger.Info("site registered", "siteId", site.ID, "geo", site.Coordinate != nil)
	return key, nil
}

func (s *service) Get(ctx context.Context, id int64) (Site, error) {
	if id <= 0 {
		return Site{}, apperrors.Invalid("site id must be positive")
	}
	found, ok, err := s.registry.FindByID(ctx, id)
	if err != nil {
		return Site{}, apperrors.Wrap(apperrors.CodeStoreError, "site lookup failed", err)
	}
	if !ok {
		return Site{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("site %d not found", id), nil)
	}
	return found, nil
}

func (s *service) List(ctx context.Context) ([]Site, error) {
	sites, err := s.registry.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "site listing failed", err)
	}
	return sites, nil
}

func (s *service) Nearby(ctx context.Context, query GeoQuery) ([]Site, error) {
	if query.Unit == "" {
		query.Unit = UnitKilometers
	}
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	var (
		sites []Site
		err   error
	)
	if query.OnlyExcessCapacity {
		sites, err = s.registry.FindByGeoWithExcessCapacity(ctx, query)
	} else {
		sites, err = s.registry.FindByGeo(ctx, query)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "geo search failed", err)
	}
	return sites, nil
}

func validateSite(site Site) error {
	if site.ID <= 0 {
		return apperrors.Invalid("site id must be positive")
	}
	if site.Panels < 0 {
		return apperrors.Invalid("panels cannot be negative")
	}
	if site.Capacity < 0 || math.IsNaN(site.Capacity) || math.IsInf(site.Capacity, 0) {
		return apperrors.Invalid("capacity must be a non-negative number")
	}
	if site.Coordinate != nil {
		return validateCoordinate(site.Coordinate.Lat, site.Coordinate.Lng)
	}
	return nil
}

func validateQuery(query GeoQuery) error {
	if err := validateCoordinate(query.Lat, query.Lng); err != nil {
		return err
	}
	if !(query.Radius > 0) || math.IsInf(query.Radius, 0) {
		return apperrors.Invalid("radius must be positive")
	}
	if _, err := ParseUnit(string(query.Unit)); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid radius unit", err)
	}
	return nil
}

// validateCoordinate applies the limits of the geo index, which rejects
// latitudes beyond ±85.05112878.
func validateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -85.05112878 || lat > 85.05112878 {
		return apperrors.Invalid("latitude out of range")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return apperrors.Invalid("longitude out of range")
	}
	return nil
}
