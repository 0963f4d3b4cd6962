package sitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/redisolar/internal/domain/site"
	"github.com/yanqian/redisolar/internal/infra/keys"
	"github.com/yanqian/redisolar/internal/infra/valkeytest"
)

var (
	vallejo = site.Site{
		ID: 1, Capacity: 3.5, Panels: 3,
		Address: "637 Britannia Drive", City: "Vallejo", State: "CA", PostalCode: "94591",
		Coordinate: &site.Coordinate{Lat: 38.10476999999999, Lng: -122.193849},
	}
	unionCity = site.Site{
		ID: 2, Capacity: 4.5, Panels: 3,
		Address: "31353 Santa Elena Way", City: "Union City", State: "CA", PostalCode: "94587",
		Coordinate: &site.Coordinate{Lat: 37.593981, Lng: -122.059762},
	}
	oakland = site.Site{
		ID: 3, Capacity: 4.5, Panels: 3,
		Address: "1732 27th Avenue", City: "Oakland", State: "CA", PostalCode: "94601",
		Coordinate: &site.Coordinate{Lat: 37.783431, Lng: -122.228238},
	}
)

func newStore(t *testing.T) (*Store, keys.Generator) {
	t.Helper()
	client, _ := valkeytest.NewClient(t)
	gen := keys.New("test:sites")
	return New(client, gen), gen
}

func TestInsertWithoutCoordinate(t *testing.T) {
	store, gen := newStore(t)
	ctx := context.Background()
	st := site.Site{ID: 4, Capacity: 5.5, Panels: 4, Address: "910 Pine St", City: "Oakland", State: "CA", PostalCode: "94577"}

	key, err := store.Insert(ctx, st)
	require.NoError(t, err)
	require.Equal(t, "test:sites:sites:info:4", key)

	members, err := store.client.Do(ctx, store.client.B().Smembers().Key(gen.SiteIDsKey()).Build()).AsStrSlice()
	require.NoError(t, err)
	require.Equal(t, []string{key}, members)

	values, err := store.client.Do(ctx, store.client.B().Hgetall().Key(key).Build()).AsStrMap()
	require.NoError(t, err)
	require.Equal(t, "5.5", values["capacity"])
	require.NotContains(t, values, "lat")

	got, ok, err := store.FindByID(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, st, got)
}

func TestInsertWithCoordinate(t *testing.T) {
	store, gen := newStore(t)
	ctx := context.Background()

	key, err := store.Insert(ctx, oakland)
	require.NoError(t, err)

	pos, err := store.client.Do(ctx, store.client.B().Geopos().Key(gen.SiteGeoKey()).Member(key).Build()).ToArray()
	require.NoError(t, err)
	require.Len(t, pos, 1)
	require.False(t, pos[0].IsNil())

	got, ok, err := store.FindByID(ctx, oakland.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, oakland, got)
}

func TestFindByIDMissing(t *testing.T) {
	store, _ := newStore(t)

	_, ok, err := store.FindByID(context.Background(), 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindAll(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	sites, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Empty(t, sites)

	for _, st := range []site.Site{vallejo, unionCity, oakland} {
		_, err := store.Insert(ctx, st)
		require.NoError(t, err)
	}
	sites, err = store.FindAll(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []site.Site{vallejo, unionCity, oakland}, sites)
}

func TestFindAllSkipsVanishedHashes(t *testing.T) {
	store, gen := newStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, vallejo)
	require.NoError(t, err)
	require.NoError(t, store.client.Do(ctx, store.client.B().Sadd().Key(gen.SiteIDsKey()).Member(gen.SiteHashKey(99)).Build()).Error())

	sites, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []site.Site{vallejo}, sites)
}

func TestFindByGeo(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	for _, st := range []site.Site{vallejo, unionCity, oakland} {
		_, err := store.Insert(ctx, st)
		require.NoError(t, err)
	}

	cases := []struct {
		name  string
		query site.GeoQuery
		want  []int64
	}{
		{"oakland", site.GeoQuery{Lat: 37.804829, Lng: -122.272476, Radius: 10, Unit: site.UnitKilometers}, []int64{3}},
		{"vallejo", site.GeoQuery{Lat: 38.104086, Lng: -122.256637, Radius: 10, Unit: site.UnitKilometers}, []int64{1}},
		{"union city", site.GeoQuery{Lat: 37.596323, Lng: -122.081630, Radius: 10, Unit: "KM"}, []int64{2}},
		{"wide radius", site.GeoQuery{Lat: 37.596323, Lng: -122.081630, Radius: 60, Unit: site.UnitKilometers}, []int64{2, 3, 1}},
		{"wide radius miles", site.GeoQuery{Lat: 37.596323, Lng: -122.081630, Radius: 40, Unit: site.UnitMiles}, []int64{2, 3, 1}},
		{"unit defaults to kilometers", site.GeoQuery{Lat: 37.596323, Lng: -122.081630, Radius: 40}, []int64{2, 3}},
		{"mountain view", site.GeoQuery{Lat: 37.4134391, Lng: -122.1513072, Radius: 10, Unit: site.UnitKilometers}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sites, err := store.FindByGeo(ctx, tc.query)
			require.NoError(t, err)
			require.Equal(t, tc.want, ids(sites))
		})
	}
}

func TestFindByGeoRejectsUnknownUnit(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.FindByGeo(context.Background(), site.GeoQuery{Lat: 1, Lng: 1, Radius: 1, Unit: "furlong"})
	require.Error(t, err)
}

func TestFindByGeoWithExcessCapacity(t *testing.T) {
	client, server := valkeytest.NewClient(t)
	gen := keys.New("test:sites")
	store := New(client, gen)
	ctx := context.Background()
	for _, st := range []site.Site{vallejo, unionCity, oakland} {
		_, err := store.Insert(ctx, st)
		require.NoError(t, err)
	}
	_, err := server.ZAdd(gen.CapacityRankingKey(), 0.2, "1")
	require.NoError(t, err)
	_, err = server.ZAdd(gen.CapacityRankingKey(), 0.19, "2")
	require.NoError(t, err)

	query := site.GeoQuery{Lat: 37.596323, Lng: -122.081630, Radius: 60, Unit: site.UnitKilometers}
	sites, err := store.FindByGeoWithExcessCapacity(ctx, query)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(sites))

	_, err = server.ZAdd(gen.CapacityRankingKey(), 0.9, "3")
	require.NoError(t, err)
	sites, err = store.FindByGeoWithExcessCapacity(ctx, query)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1}, ids(sites))
}

func ids(sites []site.Site) []int64 {
	var out []int64
	for _, st := range sites {
		out = append(out, st.ID)
	}
	return out
}
