package models

// UserSummary is the slice of profile data attached to conversations and
// messages. Profiles are owned by the identity service; this backend keeps a
// read-only replica for display purposes.
type UserSummary struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	IsVerified  bool    `json:"is_verified"`
}
