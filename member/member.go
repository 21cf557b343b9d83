// Package member defines the lookup contract for the external member
// directory. The engine does not own member data; callers inject a Directory
// backed by whatever system holds it.
package member

import (
	"context"

	"github.com/clubworks/prepaid/id"
)

// Member is the slice of a member record the engine needs: enough to
// resolve a transfer's member reference and attribute actors.
type Member struct {
	ID    id.MemberID `json:"id"`
	Name  string      `json:"name"`
	Phone string      `json:"phone,omitempty"`
}

// Directory resolves members by name or phone number. An empty result is the
// not-found case; implementations should not turn it into an error.
type Directory interface {
	Search(ctx context.Context, nameOrPhone string) ([]Member, error)
}

// DirectoryFunc adapts a plain function to a Directory.
type DirectoryFunc func(ctx context.Context, nameOrPhone string) ([]Member, error)

// Search implements Directory.
func (f DirectoryFunc) Search(ctx context.Context, nameOrPhone string) ([]Member, error) {
	return f(ctx, nameOrPhone)
}
