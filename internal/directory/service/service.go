// Package service implements directory lookups and administration: dealer
// name bindings, zones with their membership, and the user catalog.
package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"measurehub_backend/internal/directory/repository"
	"measurehub_backend/internal/directory/transport"
	"measurehub_backend/platform/apperr"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/phone"
)

// Service provides business logic for the measurer directory.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new directory service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// normalizeName canonicalizes dealer and zone names for storage and lookup.
// Both sides of every lookup pass through here, so matches are exact.
func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ResolveDealer maps an external dealer name to the bound internal user.
// A miss is (0, false, nil): absence is a normal outcome, not an error.
func (s *Service) ResolveDealer(ctx context.Context, dealerName string) (int64, bool, error) {
	name := normalizeName(dealerName)
	if name == "" {
		return 0, false, nil
	}
	return s.repo.ResolveDealerUserID(ctx, name)
}

// ResolveZone maps an address/zone hint to an active zone id. The CRM sends
// the zone name verbatim, so the hint is matched as a normalized name.
func (s *Service) ResolveZone(ctx context.Context, hint string) (int64, bool, error) {
	name := normalizeName(hint)
	if name == "" {
		return 0, false, nil
	}
	return s.repo.ResolveZoneID(ctx, name)
}

// EligibleMeasurers returns the active measurers of a zone in ascending id
// order. An empty zone yields an empty slice.
func (s *Service) EligibleMeasurers(ctx context.Context, zoneID int64) ([]int64, error) {
	return s.repo.EligibleMeasurerIDs(ctx, zoneID)
}

// GlobalPool returns every active measurer in ascending id order.
func (s *Service) GlobalPool(ctx context.Context) ([]int64, error) {
	return s.repo.ActiveMeasurerIDs(ctx)
}

// Watchers returns the administrative users that receive copies of job
// notifications.
func (s *Service) Watchers(ctx context.Context) ([]repository.User, error) {
	return s.repo.ListWatchers(ctx)
}

// GetUser returns a single user for notification rendering and admin views.
func (s *Service) GetUser(ctx context.Context, id int64) (repository.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListUsers retrieves users with optional filters.
func (s *Service) ListUsers(ctx context.Context, req transport.ListUsersRequest) (transport.UserListResponse, error) {
	users, err := s.repo.ListUsers(ctx, repository.ListUsersParams{
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return transport.UserListResponse{}, err
	}
	return toUserListResponse(users), nil
}

// CreateUser provisions a new directory user. The phone is normalized to
// E.164 and an optional password is hashed before storage.
func (s *Service) CreateUser(ctx context.Context, req transport.CreateUserRequest) (transport.UserResponse, error) {
	var passwordHash *string
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return transport.UserResponse{}, apperr.Internal("hash password").WithOp("directory.CreateUser")
		}
		h := string(hash)
		passwordHash = &h
	}

	var email *string
	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		email = &e
	}

	notificationsEnabled := true
	if req.NotificationsEnabled != nil {
		notificationsEnabled = *req.NotificationsEnabled
	}

	u, err := s.repo.CreateUser(ctx, repository.CreateUserParams{
		FullName:             strings.TrimSpace(req.FullName),
		Phone:                phone.NormalizeE164(req.Phone),
		Email:                email,
		PasswordHash:         passwordHash,
		Role:                 req.Role,
		TelegramChatID:       req.TelegramChatID,
		NotificationsEnabled: notificationsEnabled,
	})
	if err != nil {
		return transport.UserResponse{}, err
	}

	s.log.Info("user created", "id", u.ID, "role", u.Role)
	return toUserResponse(u), nil
}

// UpdateUser applies a partial update to a user.
func (s *Service) UpdateUser(ctx context.Context, id int64, req transport.UpdateUserRequest) (transport.UserResponse, error) {
	params := repository.UpdateUserParams{
		ID:                   id,
		FullName:             req.FullName,
		Role:                 req.Role,
		TelegramChatID:       req.TelegramChatID,
		IsActive:             req.IsActive,
		NotificationsEnabled: req.NotificationsEnabled,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	u, err := s.repo.UpdateUser(ctx, params)
	if err != nil {
		return transport.UserResponse{}, err
	}

	s.log.Info("user updated", "id", u.ID)
	return toUserResponse(u), nil
}

// DeleteUser removes a user. Zone memberships, dealer name bindings and
// round-robin cursor references are cleaned up in the same transaction.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "id", id)
	return nil
}

// ListZones retrieves all zones.
func (s *Service) ListZones(ctx context.Context) (transport.ZoneListResponse, error) {
	zones, err := s.repo.ListZones(ctx)
	if err != nil {
		return transport.ZoneListResponse{}, err
	}

	items := make([]transport.ZoneResponse, 0, len(zones))
	for _, z := range zones {
		items = append(items, toZoneResponse(z))
	}
	return transport.ZoneListResponse{Items: items, Total: len(items)}, nil
}

// GetZone retrieves a zone with its members.
func (s *Service) GetZone(ctx context.Context, id int64) (transport.ZoneDetailResponse, error) {
	z, err := s.repo.GetZoneByID(ctx, id)
	if err != nil {
		return transport.ZoneDetailResponse{}, err
	}
	members, err := s.repo.ListZoneMembers(ctx, id)
	if err != nil {
		return transport.ZoneDetailResponse{}, err
	}

	resp := transport.ZoneDetailResponse{ZoneResponse: toZoneResponse(z)}
	resp.Members = make([]transport.UserResponse, 0, len(members))
	for _, m := range members {
		resp.Members = append(resp.Members, toUserResponse(m))
	}
	return resp, nil
}

// CreateZone registers a new zone under its normalized name.
func (s *Service) CreateZone(ctx context.Context, req transport.CreateZoneRequest) (transport.ZoneResponse, error) {
	name := normalizeName(req.Name)
	if name == "" {
		return transport.ZoneResponse{}, apperr.Validation("zone name is required")
	}

	z, err := s.repo.CreateZone(ctx, name)
	if err != nil {
		return transport.ZoneResponse{}, err
	}

	s.log.Info("zone created", "id", z.ID, "name", z.Name)
	return toZoneResponse(z), nil
}

// DeleteZone removes a zone and its memberships.
func (s *Service) DeleteZone(ctx context.Context, id int64) error {
	if err := s.repo.DeleteZone(ctx, id); err != nil {
		return err
	}
	s.log.Info("zone deleted", "id", id)
	return nil
}

// AddZoneMember adds a user to a zone.
func (s *Service) AddZoneMember(ctx context.Context, zoneID, userID int64) error {
	return s.repo.AddZoneMember(ctx, zoneID, userID)
}

// RemoveZoneMember removes a user from a zone.
func (s *Service) RemoveZoneMember(ctx context.Context, zoneID, userID int64) error {
	return s.repo.RemoveZoneMember(ctx, zoneID, userID)
}

// ListMeasurerNames retrieves all dealer names with their bindings.
func (s *Service) ListMeasurerNames(ctx context.Context) (transport.MeasurerNameListResponse, error) {
	names, err := s.repo.ListMeasurerNames(ctx)
	if err != nil {
		return transport.MeasurerNameListResponse{}, err
	}

	items := make([]transport.MeasurerNameResponse, 0, len(names))
	for _, n := range names {
		items = append(items, toMeasurerNameResponse(n))
	}
	return transport.MeasurerNameListResponse{Items: items, Total: len(items)}, nil
}

// CreateMeasurerName registers a dealer name under its normalized form.
func (s *Service) CreateMeasurerName(ctx context.Context, req transport.CreateMeasurerNameRequest) (transport.MeasurerNameResponse, error) {
	name := normalizeName(req.Name)
	if name == "" {
		return transport.MeasurerNameResponse{}, apperr.Validation("measurer name is required")
	}

	n, err := s.repo.CreateMeasurerName(ctx, name)
	if err != nil {
		return transport.MeasurerNameResponse{}, err
	}

	s.log.Info("measurer name created", "id", n.ID, "name", n.Name)
	return toMeasurerNameResponse(n), nil
}

// DeleteMeasurerName removes a dealer name. Jobs already assigned through it
// keep their assignment and reason; removal never rewrites history.
func (s *Service) DeleteMeasurerName(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMeasurerName(ctx, id); err != nil {
		return err
	}
	s.log.Info("measurer name deleted", "id", id)
	return nil
}

// AssignMeasurerName binds a dealer name to a user.
func (s *Service) AssignMeasurerName(ctx context.Context, nameID, userID int64) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.AssignMeasurerName(ctx, nameID, userID); err != nil {
		return err
	}
	s.log.Info("measurer name assigned", "nameId", nameID, "userId", userID)
	return nil
}

// UnassignMeasurerName removes the user binding of a dealer name.
func (s *Service) UnassignMeasurerName(ctx context.Context, nameID int64) error {
	return s.repo.UnassignMeasurerName(ctx, nameID)
}

func toUserResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:                   u.ID,
		FullName:             u.FullName,
		Phone:                u.Phone,
		Email:                u.Email,
		Role:                 u.Role,
		TelegramChatID:       u.TelegramChatID,
		IsActive:             u.IsActive,
		NotificationsEnabled: u.NotificationsEnabled,
		CreatedAt:            u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            u.UpdatedAt.Format(time.RFC3339),
	}
}

func toUserListResponse(users []repository.User) transport.UserListResponse {
	items := make([]transport.UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	return transport.UserListResponse{Items: items, Total: len(items)}
}

func toZoneResponse(z repository.Zone) transport.ZoneResponse {
	return transport.ZoneResponse{
		ID:        z.ID,
		Name:      z.Name,
		IsActive:  z.IsActive,
		CreatedAt: z.CreatedAt.Format(time.RFC3339),
	}
}

func toMeasurerNameResponse(n repository.MeasurerName) transport.MeasurerNameResponse {
	return transport.MeasurerNameResponse{
		ID:             n.ID,
		Name:           n.Name,
		AssignedUserID: n.AssignedUserID,
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
	}
}
