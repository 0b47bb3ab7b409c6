package models

import "time"

// Account is a registered user as stored by an accounts repository.
// PasswordHash never leaves the server; use Profile for responses.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          string
	Avatar       string
	CreatedAt    time.Time
}

// Profile is the public projection of an Account.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"userBio"`
	Avatar      string `json:"avatar,omitempty"`
}

// Profile returns the public view of a. Email is included only when
// withEmail is set (register and delete responses).
func (a *Account) Profile(withEmail bool) Profile {
	p := Profile{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Bio:         a.Bio,
		Avatar:      a.Avatar,
	}
	if withEmail {
		p.Email = a.Email
	}
	return p
}

// ProfileUpdate lists the fields to overwrite; nil leaves a field as is.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Avatar      *string
}

// Apply overwrites the fields of a that u sets.
func (u ProfileUpdate) Apply(a *Account) {
	if u.DisplayName != nil {
		a.DisplayName = *u.DisplayName
	}
	if u.Bio != nil {
		a.Bio = *u.Bio
	}
	if u.Avatar != nil {
		a.Avatar = *u.Avatar
	}
}

// Empty reports whether u changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.Bio == nil && u.Avatar == nil
}
