package site

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/redisolar/pkg/errors"
)

func TestServiceCreateValidates(t *testing.T) {
	registry := &stubRegistry{}
	svc := NewService(registry, newTestLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, Site{ID: 0})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.Create(ctx, Site{ID: 1, Coordinate: &Coordinate{Lat: 91, Lng: 0}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Empty(t, registry.inserted)

	key, err := svc.Create(ctx, Site{ID: 4, Capacity: 5.5, Panels: 4})
	require.NoError(t, err)
	require.Equal(t, "site:4", key)
	require.Len(t, registry.inserted, 1)
}

func TestServiceGetNotFound(t *testing.T) {
	svc := NewService(&stubRegistry{}, newTestLogger())

	_, err := svc.Get(context.Background(), 99)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestServiceGetStoreError(t *testing.T) {
	svc := NewService(&stubRegistry{err: errors.New("i/o timeout")}, newTestLogger())

	_, err := svc.Get(context.Background(), 1)
	require.True(t, apperrors.IsCode(err, apperrors.CodeStoreError))
}

func TestServiceNearbySelectsQuery(t *testing.T) {
	registry := &stubRegistry{}
	svc := NewService(registry, newTestLogger())
	ctx := context.Background()

	_, err := svc.Nearby(ctx, GeoQuery{Lat: 37.8, Lng: -122.2, Radius: 10})
	require.NoError(t, err)
	require.Equal(t, "geo", registry.lastCall)
	require.Equal(t, UnitKilometers, registry.lastQuery.Unit)

	_, err = svc.Nearby(ctx, GeoQuery{Lat: 37.8, Lng: -122.2, Radius: 10, Unit: UnitMiles, OnlyExcessCapacity: true})
	require.NoError(t, err)
	require.Equal(t, "capacity", registry.lastCall)
}

func TestServiceNearbyRejectsBadQueries(t *testing.T) {
	svc := NewService(&stubRegistry{}, newTestLogger())
	ctx := context.Background()

	for _, q := range []GeoQuery{
		{Lat: 37.8, Lng: -122.2, Radius: 0},
		{Lat: 37.8, Lng: -122.2, Radius: -1},
		{Lat: 37.8, Lng: -190, Radius: 1},
		{Lat: 37.8, Lng: -122.2, Radius: 1, Unit: "parsec"},
	} {
		_, err := svc.Nearby(ctx, q)
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "%+v", q)
	}
}

func TestParseUnit(t *testing.T) {
	unit, err := ParseUnit("KM")
	require.NoError(t, err)
	require.Equal(t, UnitKilometers, unit)

	unit, err = ParseUnit(" Mi ")
	require.NoError(t, err)
	require.Equal(t, UnitMiles, unit)

	_, err = ParseUnit("yards")
	require.Error(t, err)
}

type stubRegistry struct {
	inserted  []Site
	err       error
	lastCall  string
	lastQuery GeoQuery
}

func (s *stubRegistry) Insert(_ context.Context, site Site) (string, error) {
	s.inserted = append(s.inserted, site)
	return "site:4", s.err
}

func (s *stubRegistry) FindByID(_ context.Context, _ int64) (Site, bool, error) {
	return Site{}, false, s.err
}

func (s *stubRegistry) FindAll(_ context.Context) ([]Site, error) {
	return nil, s.err
}

func (s *stubRegistry) FindByGeo(_ context.Context, query GeoQuery) ([]Site, error) {
	s.lastCall = "geo"
	s.lastQuery = query
	return nil, s.err
}

func (s *stubRegistry) FindByGeoWithExcessCapacity(_ context.Context, query GeoQuery) ([]Site, error) {
	s.lastCall = "capacity"
	s.lastQuery = query
	return nil, s.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
