// Package transport defines request and response shapes for invite endpoints.
package transport

// CreateInviteRequest describes a new invite link.
type CreateInviteRequest struct {
	Role           string `json:"role" validate:"required,oneof=admin supervisor manager measurer observer"`
	MaxUses        int    `json:"maxUses,omitempty" validate:"omitempty,gte=1,lte=1000"`
	ExpiresInHours int    `json:"expiresInHours,omitempty" validate:"omitempty,gte=1,lte=8760"`
}

// InviteResponse represents an invite link in API responses.
type InviteResponse struct {
	ID        int64   `json:"id"`
	Token     string  `json:"token"`
	URL       string  `json:"url"`
	Role      string  `json:"role"`
	MaxUses   int     `json:"maxUses"`
	UseCount  int     `json:"useCount"`
	ExpiresAt *string `json:"expiresAt,omitempty"`
	RevokedAt *string `json:"revokedAt,omitempty"`
	CreatedBy *int64  `json:"createdBy,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

// InviteListResponse wraps a list of invites.
type InviteListResponse struct {
	Items []InviteResponse `json:"items"`
	Total int              `json:"total"`
}

// RedeemInviteRequest consumes an invite token and provisions the caller's
// account.
type RedeemInviteRequest struct {
	Token          string  `json:"token" validate:"required"`
	FullName       string  `json:"fullName" validate:"required,min=1,max=200"`
	Phone          string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Password       *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	TelegramChatID *int64  `json:"telegramChatId,omitempty"`
}

// RedeemInviteResponse reports the provisioned account.
type RedeemInviteResponse struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}
