// Package adapter satisfies interfaces other modules define against the
// directory, keeping them decoupled from directory internals.
package adapter

import (
	"context"

	"measurehub_backend/internal/directory/service"
	"measurehub_backend/internal/directory/transport"
	invitesservice "measurehub_backend/internal/invites/service"
)

// UserProvisioner implements the invites module's provisioning interface on
// top of the directory service.
type UserProvisioner struct {
	svc *service.Service
}

// NewUserProvisioner creates a provisioning adapter for invite redemption.
func NewUserProvisioner(svc *service.Service) *UserProvisioner {
	return &UserProvisioner{svc: svc}
}

// ProvisionUser creates the user account an invite redemption grants.
func (a *UserProvisioner) ProvisionUser(ctx context.Context, user invitesservice.NewUser) (int64, error) {
	created, err := a.svc.CreateUser(ctx, transport.CreateUserRequest{
		FullName:       user.FullName,
		Phone:          user.Phone,
		Email:          user.Email,
		Password:       user.Password,
		Role:           user.Role,
		TelegramChatID: user.TelegramChatID,
	})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

var _ invitesservice.UserProvisioner = (*UserProvisioner)(nil)
