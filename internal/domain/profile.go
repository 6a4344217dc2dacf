package domain

import "time"

// AdminFlag is the administrator marker of a profile. The stored column is a
// nullable boolean, so a profile may not know yet whether it belongs to an
// administrator.
type AdminFlag int

const (
	AdminUnknown AdminFlag = iota
	AdminFalse
	AdminTrue
)

// AdminFlagFromBool maps a nullable boolean onto an AdminFlag.
func AdminFlagFromBool(v *bool) AdminFlag {
	switch {
	case v == nil:
		return AdminUnknown
	case *v:
		return AdminTrue
	default:
		return AdminFalse
	}
}

// Bool returns the nullable boolean form used on the wire and in storage.
func (f AdminFlag) Bool() *bool {
	switch f {
	case AdminTrue:
		v := true
		return &v
	case AdminFalse:
		v := false
		return &v
	default:
		return nil
	}
}

// Granted resolves the flag for authorization; Unknown is not an administrator.
func (f AdminFlag) Granted() bool {
	return f == AdminTrue
}

func (f AdminFlag) String() string {
	switch f {
	case AdminTrue:
		return "true"
	case AdminFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Profile is the application-level record of a user, keyed by the user ID.
type Profile struct {
	ID          string
	FirstName   string
	LastName    string
	AvatarURL   string
	PhoneNumber string
	Admin       AdminFlag
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAdmin reports whether the profile grants administrator access.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Admin.Granted()
}

// FullName joins first and last name, skipping empty parts.
func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ProfileFields carries the user-editable subset of a profile. Nil fields are
// left untouched by an update.
type ProfileFields struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	AvatarURL   *string
}

// Apply copies the set fields onto the profile.
func (f ProfileFields) Apply(p *Profile) {
	if f.FirstName != nil {
		p.FirstName = *f.FirstName
	}
	if f.LastName != nil {
		p.LastName = *f.LastName
	}
	if f.PhoneNumber != nil {
		p.PhoneNumber = *f.PhoneNumber
	}
	if f.AvatarURL != nil {
		p.AvatarURL = *f.AvatarURL
	}
}

// Empty reports whether no field is set.
func (f ProfileFields) Empty() bool {
	return f.FirstName == nil && f.LastName == nil && f.PhoneNumber == nil && f.AvatarURL == nil
}

// UserWithProfile is the admin view of an account.
type UserWithProfile struct {
	User    User
	Profile *Profile
}
