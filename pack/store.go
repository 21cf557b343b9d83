package pack

import (
	"context"

	"github.com/clubworks/prepaid/id"
)

type Store interface {
	Create(ctx context.Context, p *Package) error
	// CreateMany bulk-creates packages and must preserve submission order so
	// callers can line its results up with their correlation keys.
	CreateMany(ctx context.Context, ps []*Package) error
	Get(ctx context.Context, packageID id.PackageID) (*Package, error)
	List(ctx context.Context, memberID id.MemberID, appID string, opts ListOpts) ([]*Package, error)
	Update(ctx context.Context, p *Package) error
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
