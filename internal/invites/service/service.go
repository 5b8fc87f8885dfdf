// Package service implements invite link lifecycle: creation, revocation,
// QR rendering and redemption into a provisioned user account.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"measurehub_backend/internal/invites/repository"
	"measurehub_backend/internal/invites/transport"
	"measurehub_backend/platform/apperr"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/logger"
)

const (
	defaultMaxUses = 1
	qrImageSize    = 256
)

// NewUser is the account an invite redemption provisions.
type NewUser struct {
	FullName       string
	Phone          string
	Email          *string
	Password       *string
	Role           string
	TelegramChatID *int64
}

// UserProvisioner creates user accounts. Implemented by the directory
// module's adapter.
type UserProvisioner interface {
	ProvisionUser(ctx context.Context, user NewUser) (int64, error)
}

// Service provides business logic for invite links.
type Service struct {
	repo  repository.Store
	users UserProvisioner
	cfg   config.InviteConfig
	log   *logger.Logger
	now   func() time.Time
}

// New creates a new invite service.
func New(repo repository.Store, users UserProvisioner, cfg config.InviteConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, users: users, cfg: cfg, log: log, now: time.Now}
}

// Create issues a new invite link for the given role.
func (s *Service) Create(ctx context.Context, actorID int64, req transport.CreateInviteRequest) (transport.InviteResponse, error) {
	maxUses := req.MaxUses
	if maxUses == 0 {
		maxUses = defaultMaxUses
	}

	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := s.now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	inv, err := s.repo.Create(ctx, repository.CreateParams{
		Token:     uuid.NewString(),
		Role:      req.Role,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
		CreatedBy: &actorID,
	})
	if err != nil {
		return transport.InviteResponse{}, apperr.Wrap(apperr.KindInternal, "create invite", err).WithOp("invites.Create")
	}

	s.log.Info("invite created", "id", inv.ID, "role", inv.Role, "maxUses", inv.MaxUses)
	return s.toResponse(inv), nil
}

// List returns all invite links, newest first.
func (s *Service) List(ctx context.Context) (transport.InviteListResponse, error) {
	invites, err := s.repo.List(ctx)
	if err != nil {
		return transport.InviteListResponse{}, apperr.Wrap(apperr.KindInternal, "list invites", err).WithOp("invites.List")
	}

	items := make([]transport.InviteResponse, 0, len(invites))
	for _, inv := range invites {
		items = append(items, s.toResponse(inv))
	}
	return transport.InviteListResponse{Items: items, Total: len(items)}, nil
}

// Revoke disables an invite link. Revoking an already revoked invite is a
// no-op.
func (s *Service) Revoke(ctx context.Context, id int64) error {
	err := s.repo.Revoke(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("invite not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "revoke invite", err).WithOp("invites.Revoke")
	}

	s.log.Info("invite revoked", "id", id)
	return nil
}

// QRCodePNG renders the invite URL as a PNG QR code. Only usable invites
// get a code.
func (s *Service) QRCodePNG(ctx context.Context, id int64) ([]byte, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("invite not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load invite", err).WithOp("invites.QRCodePNG")
	}

	if usableErr := s.usable(inv); usableErr != nil {
		return nil, usableErr
	}

	png, err := qrcode.Encode(s.inviteURL(inv.Token), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "render qr code", err).WithOp("invites.QRCodePNG")
	}
	return png, nil
}

// Redeem consumes one use of the invite and provisions the account. The use
// counter is incremented under a guard, so concurrent redemptions cannot
// push past max_uses.
func (s *Service) Redeem(ctx context.Context, req transport.RedeemInviteRequest) (transport.RedeemInviteResponse, error) {
	inv, err := s.repo.GetByToken(ctx, req.Token)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.RedeemInviteResponse{}, apperr.NotFound("invite not found")
	}
	if err != nil {
		return transport.RedeemInviteResponse{}, apperr.Wrap(apperr.KindInternal, "load invite", err).WithOp("invites.Redeem")
	}

	if usableErr := s.usable(inv); usableErr != nil {
		return transport.RedeemInviteResponse{}, usableErr
	}

	consumed, err := s.repo.ConsumeUse(ctx, inv.ID)
	if err != nil {
		return transport.RedeemInviteResponse{}, apperr.Wrap(apperr.KindInternal, "consume invite", err).WithOp("invites.Redeem")
	}
	if !consumed {
		return transport.RedeemInviteResponse{}, apperr.Gone("invite no longer usable")
	}

	userID, err := s.users.ProvisionUser(ctx, NewUser{
		FullName:       req.FullName,
		Phone:          req.Phone,
		Email:          req.Email,
		Password:       req.Password,
		Role:           inv.Role,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		// The use is already burned; the admin issues a fresh link if the
		// caller cannot fix their input.
		s.log.Warn("invite consumed but provisioning failed", "inviteId", inv.ID, "error", err)
		return transport.RedeemInviteResponse{}, err
	}

	s.log.Info("invite redeemed", "inviteId", inv.ID, "userId", userID, "role", inv.Role)
	return transport.RedeemInviteResponse{UserID: userID, Role: inv.Role}, nil
}

// usable rejects revoked, expired and exhausted invites with a Gone error.
func (s *Service) usable(inv repository.Invite) error {
	switch {
	case inv.RevokedAt != nil:
		return apperr.Gone("invite revoked")
	case inv.ExpiresAt != nil && !inv.ExpiresAt.After(s.now()):
		return apperr.Gone("invite expired")
	case inv.UseCount >= inv.MaxUses:
		return apperr.Gone("invite exhausted")
	}
	return nil
}

func (s *Service) inviteURL(token string) string {
	base := strings.TrimRight(s.cfg.GetInviteLinkBase(), "/")
	if base == "" {
		return token
	}
	return base + "?token=" + token
}

func (s *Service) toResponse(inv repository.Invite) transport.InviteResponse {
	return transport.InviteResponse{
		ID:        inv.ID,
		Token:     inv.Token,
		URL:       s.inviteURL(inv.Token),
		Role:      inv.Role,
		MaxUses:   inv.MaxUses,
		UseCount:  inv.UseCount,
		ExpiresAt: formatTimePtr(inv.ExpiresAt),
		RevokedAt: formatTimePtr(inv.RevokedAt),
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
