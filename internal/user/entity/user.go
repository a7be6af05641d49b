package entity

import "time"

// User represents an account row in the `users` table.
// UUID is the stable external id; ID is internal to the store.
type User struct {
	ID             int64     `db:"id" json:"id"`
	UUID           string    `db:"uuid" json:"uuid"`
	Email          string    `db:"email" json:"email"`
	Nickname       string    `db:"nickname" json:"nickname"`
	AvatarURL      string    `db:"avatar_url" json:"avatar_url"`
	Locale         string    `db:"locale" json:"locale,omitempty"`
	SigninType     string    `db:"signin_type" json:"signin_type,omitempty"`
	SigninIP       string    `db:"signin_ip" json:"signin_ip,omitempty"`
	SigninProvider string    `db:"signin_provider" json:"signin_provider,omitempty"`
	SigninOpenID   string    `db:"signin_openid" json:"signin_openid,omitempty"`
	InviteCode     string    `db:"invite_code" json:"invite_code"`
	InvitedBy      string    `db:"invited_by" json:"invited_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// UserUpdate is a partial update; nil fields are left untouched.
// UpdatedAt is only written when set.
type UserUpdate struct {
	Email      *string
	Nickname   *string
	AvatarURL  *string
	Locale     *string
	InviteCode *string
	InvitedBy  *string
	UpdatedAt  *time.Time
}
