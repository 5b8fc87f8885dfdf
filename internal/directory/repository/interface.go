package repository

import (
	"context"
	"time"
)

// User is a directory account: operators, measurers, and watchers alike.
type User struct {
	ID                   int64      `db:"id"`
	FullName             string     `db:"full_name"`
	Phone                string     `db:"phone"`
	Email                *string    `db:"email"`
	PasswordHash         *string    `db:"password_hash"`
	Role                 string     `db:"role"`
	TelegramChatID       *int64     `db:"telegram_chat_id"`
	IsActive             bool       `db:"is_active"`
	NotificationsEnabled bool       `db:"notifications_enabled"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// Zone is a service area measurers can be assigned to. Names are stored
// normalized (trimmed, lowercased) so lookups are exact matches.
type Zone struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// MeasurerName is an external dealer/measurer label from the CRM, optionally
// bound to an internal user. Names are stored normalized.
type MeasurerName struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	AssignedUserID *int64    `db:"assigned_user_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// CreateUserParams contains parameters for creating a user.
type CreateUserParams struct {
	FullName             string
	Phone                string
	Email                *string
	PasswordHash         *string
	Role                 string
	TelegramChatID       *int64
	NotificationsEnabled bool
}

// UpdateUserParams contains parameters for a partial user update.
type UpdateUserParams struct {
	ID                   int64
	FullName             *string
	Phone                *string
	Role                 *string
	TelegramChatID       *int64
	IsActive             *bool
	NotificationsEnabled *bool
}

// ListUsersParams filters the user listing.
type ListUsersParams struct {
	Role     *string
	IsActive *bool
}

// UserReader provides read operations over the user directory.
type UserReader interface {
	GetUserByID(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, params ListUsersParams) ([]User, error)
	// ListWatchers returns active admins, supervisors and observers that
	// opted into notifications and have a chat bound.
	ListWatchers(ctx context.Context) ([]User, error)
	// ActiveMeasurerIDs returns every active measurer's id in ascending order
	// (the global assignment pool).
	ActiveMeasurerIDs(ctx context.Context) ([]int64, error)
}

// UserWriter provides write operations over the user directory.
type UserWriter interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	UpdateUser(ctx context.Context, params UpdateUserParams) (User, error)
	// DeleteUser removes the user together with its zone memberships, dealer
	// name bindings and round-robin cursor references in one transaction.
	DeleteUser(ctx context.Context, id int64) error
}

// ZoneReader provides read operations over zones and their membership.
type ZoneReader interface {
	GetZoneByID(ctx context.Context, id int64) (Zone, error)
	ListZones(ctx context.Context) ([]Zone, error)
	ListZoneMembers(ctx context.Context, zoneID int64) ([]User, error)
	// ResolveZoneID looks up an active zone by normalized name. A miss is
	// (0, false, nil), never an error.
	ResolveZoneID(ctx context.Context, name string) (int64, bool, error)
	// EligibleMeasurerIDs returns active measurers belonging to the zone in
	// ascending id order.
	EligibleMeasurerIDs(ctx context.Context, zoneID int64) ([]int64, error)
}

// ZoneWriter provides write operations over zones and their membership.
type ZoneWriter interface {
	CreateZone(ctx context.Context, name string) (Zone, error)
	// DeleteZone removes the zone and its memberships in one transaction.
	DeleteZone(ctx context.Context, id int64) error
	AddZoneMember(ctx context.Context, zoneID, userID int64) error
	RemoveZoneMember(ctx context.Context, zoneID, userID int64) error
}

// NameReader provides read operations over dealer name bindings.
type NameReader interface {
	ListMeasurerNames(ctx context.Context) ([]MeasurerName, error)
	// ResolveDealerUserID looks up the user bound to a normalized dealer
	// name. A miss is (0, false, nil), never an error.
	ResolveDealerUserID(ctx context.Context, name string) (int64, bool, error)
}

// NameWriter provides write operations over dealer name bindings.
type NameWriter interface {
	CreateMeasurerName(ctx context.Context, name string) (MeasurerName, error)
	DeleteMeasurerName(ctx context.Context, id int64) error
	// AssignMeasurerName binds the name to a user, replacing any previous binding.
	AssignMeasurerName(ctx context.Context, nameID, userID int64) error
	UnassignMeasurerName(ctx context.Context, nameID int64) error
}

// Repository combines all directory repository operations.
type Repository interface {
	UserReader
	UserWriter
	ZoneReader
	ZoneWriter
	NameReader
	NameWriter
}
