package site

import "context"

// Registry persists sites and answers geo queries over them.
type Registry interface {
	Insert(ctx context.Context, site Site) (string, error)
	FindByID(ctx context.Context, id int64) (Site, bool, error)
	FindAll(ctx context.Context) ([]Site, error)
	FindByGeo(ctx context.Context, query GeoQuery) ([]Site, error)
	FindByGeoWithExcessCapacity(ctx context.Context, query GeoQuery) ([]Site, error)
}
