// Package sitestore persists sites as hashes with a geo index over them.
package sitestore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/site"
	"github.com/yanqian/redisolar/internal/infra/keys"
)

// Hash field names of a site.
const (
	fieldID         = "id"
	fieldCapacity   = "capacity"
	fieldPanels     = "panels"
	fieldAddress    = "address"
	fieldCity       = "city"
	fieldState      = "state"
	fieldPostalCode = "postalCode"
	fieldLat        = "lat"
	fieldLng        = "lng"
)

// Store implements site.Registry.
type Store struct {
	client valkey.Client
	keys   keys.Generator
}

var _ site.Registry = (*Store)(nil)

// New constructs the registry.
func New(client valkey.Client, gen keys.Generator) *Store {
	return &Store{client: client, keys: gen}
}

// Insert writes the site hash, then records the key in the ids set, then
// indexes the coordinate when there is one. The steps are sequential and not
// atomic: a failure part way leaves the earlier writes in place, so a hash may
// exist without an ids or geo entry. The returned value is the hash key.
func (s *Store) Insert(ctx context.Context, st site.Site) (string, error) {
	key := s.keys.SiteHashKey(st.ID)

	hset := s.client.B().Hset().Key(key).FieldValue()
	for _, kv := range encodeSite(st) {
		hset = hset.FieldValue(kv[0], kv[1])
	}
	if err := s.client.Do(ctx, hset.Build()).Error(); err != nil {
		return "", fmt.Errorf("write site %d: %w", st.ID, err)
	}
	if err := s.client.Do(ctx, s.client.B().Sadd().Key(s.keys.SiteIDsKey()).Member(key).Build()).Error(); err != nil {
		return "", fmt.Errorf("register site %d: %w", st.ID, err)
	}
	if st.Coordinate != nil {
		cmd := s.client.B().Geoadd().Key(s.keys.SiteGeoKey()).LongitudeLatitudeMember().
			LongitudeLatitudeMember(st.Coordinate.Lng, st.Coordinate.Lat, key).Build()
		if err := s.client.Do(ctx, cmd).Error(); err != nil {
			return "", fmt.Errorf("index site %d: %w", st.ID, err)
		}
	}
	return key, nil
}

// FindByID returns the site, or false when no hash exists for it.
func (s *Store) FindByID(ctx context.Context, id int64) (site.Site, bool, error) {
	values, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.keys.SiteHashKey(id)).Build()).AsStrMap()
	if err != nil {
		return site.Site{}, false, fmt.Errorf("read site %d: %w", id, err)
	}
	if len(values) == 0 {
		return site.Site{}, false, nil
	}
	return decodeSite(values), true, nil
}

// FindAll returns every registered site. Keys whose hash is gone are skipped.
func (s *Store) FindAll(ctx context.Context) ([]site.Site, error) {
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.keys.SiteIDsKey()).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list site keys: %w", err)
	}
	return s.hydrate(ctx, members)
}

// FindByGeo returns the sites within the radius, nearest first.
func (s *Store) FindByGeo(ctx context.Context, query site.GeoQuery) ([]site.Site, error) {
	cmd, err := s.georadius(query)
	if err != nil {
		return nil, err
	}
	members, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	return s.hydrate(ctx, members)
}

// FindByGeoWithExcessCapacity narrows FindByGeo to sites whose capacity
// ranking score reaches site.CapacityThreshold. Sites without a score are
// left out. Distance order is kept.
func (s *Store) FindByGeoWithExcessCapacity(ctx context.Context, query site.GeoQuery) ([]site.Site, error) {
	sites, err := s.FindByGeo(ctx, query)
	if err != nil || len(sites) == 0 {
		return sites, err
	}
	rankingKey := s.keys.CapacityRankingKey()
	cmds := make(valkey.Commands, 0, len(sites))
	for _, st := range sites {
		cmds = append(cmds, s.client.B().Zscore().Key(rankingKey).Member(strconv.FormatInt(st.ID, 10)).Build())
	}
	out := make([]site.Site, 0, len(sites))
	for i, resp := range s.client.DoMulti(ctx, cmds...) {
		score, err := resp.AsFloat64()
		if err != nil {
			if valkey.IsValkeyNil(err) {
				continue
			}
			return nil, fmt.Errorf("capacity score for site %d: %w", sites[i].ID, err)
		}
		if score >= site.CapacityThreshold {
			out = append(out, sites[i])
		}
	}
	return out, nil
}

func (s *Store) georadius(q site.GeoQuery) (valkey.Completed, error) {
	radius := s.client.B().Georadius().Key(s.keys.SiteGeoKey()).Longitude(q.Lng).Latitude(q.Lat).Radius(q.Radius)
	if q.Unit == "" {
		q.Unit = site.UnitKilometers
	}
	unit, err := site.ParseUnit(string(q.Unit))
	if err != nil {
		return valkey.Completed{}, err
	}
	switch unit {
	case site.UnitMeters:
		return radius.M().Asc().Build(), nil
	case site.UnitMiles:
		return radius.Mi().Asc().Build(), nil
	case site.UnitFeet:
		return radius.Ft().Asc().Build(), nil
	default:
		return radius.Km().Asc().Build(), nil
	}
}

// hydrate loads the hashes in one pipelined batch, keeping the input order.
func (s *Store) hydrate(ctx context.Context, hashKeys []string) ([]site.Site, error) {
	out := make([]site.Site, 0, len(hashKeys))
	if len(hashKeys) == 0 {
		return out, nil
	}
	cmds := make(valkey.Commands, 0, len(hashKeys))
	for _, key := range hashKeys {
		cmds = append(cmds, s.client.B().Hgetall().Key(key).Build())
	}
	for i, resp := range s.client.DoMulti(ctx, cmds...) {
		values, err := resp.AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hashKeys[i], err)
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, decodeSite(values))
	}
	return out, nil
}

func encodeSite(st site.Site) [][2]string {
	fields := [][2]string{
		{fieldID, strconv.FormatInt(st.ID, 10)},
		{fieldCapacity, strconv.FormatFloat(st.Capacity, 'f', -1, 64)},
		{fieldPanels, strconv.FormatInt(st.Panels, 10)},
		{fieldAddress, st.Address},
		{fieldCity, st.City},
		{fieldState, st.State},
		{fieldPostalCode, st.PostalCode},
	}
	if st.Coordinate != nil {
		fields = append(fields,
			[2]string{fieldLat, strconv.FormatFloat(st.Coordinate.Lat, 'f', -1, 64)},
			[2]string{fieldLng, strconv.FormatFloat(st.Coordinate.Lng, 'f', -1, 64)},
		)
	}
	return fields
}

// decodeSite tolerates malformed numbers by leaving the zero value. The
// coordinate is rebuilt only when both halves are present.
func decodeSite(values map[string]string) site.Site {
	st := site.Site{
		Address:    values[fieldAddress],
		City:       values[fieldCity],
		State:      values[fieldState],
		PostalCode: values[fieldPostalCode],
	}
	st.ID, _ = strconv.ParseInt(values[fieldID], 10, 64)
	st.Panels, _ = strconv.ParseInt(values[fieldPanels], 10, 64)
	st.Capacity, _ = strconv.ParseFloat(values[fieldCapacity], 64)

	rawLat, hasLat := values[fieldLat]
	rawLng, hasLng := values[fieldLng]
	if hasLat && hasLng {
		lat, _ := strconv.ParseFloat(rawLat, 64)
		lng, _ := strconv.ParseFloat(rawLng, 64)
		st.Coordinate = &site.Coordinate{Lat: lat, Lng: lng}
	}
	return st
}
