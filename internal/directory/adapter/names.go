package adapter

import (
	"context"

	"measurehub_backend/internal/directory/service"
	"measurehub_backend/internal/exports"
)

// UserNameLookup resolves user ids to display names for export rendering.
type UserNameLookup struct {
	svc *service.Service
}

// NewUserNameLookup creates a name lookup adapter over the directory service.
func NewUserNameLookup(svc *service.Service) *UserNameLookup {
	return &UserNameLookup{svc: svc}
}

// UserName returns the user's full name.
func (a *UserNameLookup) UserName(ctx context.Context, id int64) (string, error) {
	user, err := a.svc.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.FullName, nil
}

var _ exports.NameLookup = (*UserNameLookup)(nil)
