package transport

// CreateUserRequest contains data for creating a directory user.
type CreateUserRequest struct {
	FullName             string  `json:"fullName" validate:"required,min=1,max=200"`
	Phone                string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email                *string `json:"email,omitempty" validate:"omitempty,email"`
	Password             *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	Role                 string  `json:"role" validate:"required,oneof=admin supervisor manager measurer observer"`
	TelegramChatID       *int64  `json:"telegramChatId,omitempty"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
}

// UpdateUserRequest contains data for a partial user update.
type UpdateUserRequest struct {
	FullName             *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=200"`
	Phone                *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role                 *string `json:"role,omitempty" validate:"omitempty,oneof=admin supervisor manager measurer observer"`
	TelegramChatID       *int64  `json:"telegramChatId,omitempty"`
	IsActive             *bool   `json:"isActive,omitempty"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
}

// ListUsersRequest filters the user listing.
type ListUsersRequest struct {
	Role     *string `form:"role" validate:"omitempty,oneof=admin supervisor manager measurer observer"`
	IsActive *bool   `form:"isActive"`
}

// UserResponse represents a user in API responses. Password hashes never leave
// the service layer.
type UserResponse struct {
	ID                   int64   `json:"id"`
	FullName             string  `json:"fullName"`
	Phone                string  `json:"phone,omitempty"`
	Email                *string `json:"email,omitempty"`
	Role                 string  `json:"role"`
	TelegramChatID       *int64  `json:"telegramChatId,omitempty"`
	IsActive             bool    `json:"isActive"`
	NotificationsEnabled bool    `json:"notificationsEnabled"`
	CreatedAt            string  `json:"createdAt"`
	UpdatedAt            string  `json:"updatedAt"`
}

// UserListResponse wraps a list of users.
type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Total int            `json:"total"`
}

// CreateZoneRequest contains data for creating a zone.
type CreateZoneRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// AddZoneMemberRequest adds a user to a zone.
type AddZoneMemberRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// ZoneResponse represents a zone in API responses.
type ZoneResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// ZoneDetailResponse is a zone together with its members.
type ZoneDetailResponse struct {
	ZoneResponse
	Members []UserResponse `json:"members"`
}

// ZoneListResponse wraps a list of zones.
type ZoneListResponse struct {
	Items []ZoneResponse `json:"items"`
	Total int            `json:"total"`
}

// CreateMeasurerNameRequest contains data for registering a dealer name.
type CreateMeasurerNameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// AssignMeasurerNameRequest binds a dealer name to a user.
type AssignMeasurerNameRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// MeasurerNameResponse represents a dealer name binding in API responses.
type MeasurerNameResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	AssignedUserID *int64 `json:"assignedUserId,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// MeasurerNameListResponse wraps a list of dealer names.
type MeasurerNameListResponse struct {
	Items []MeasurerNameResponse `json:"items"`
	Total int                    `json:"total"`
}
