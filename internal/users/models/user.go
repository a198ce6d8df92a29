package models

import (
	"strings"
	"time"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// DocumentType classifies the identity document backing a user record.
type DocumentType string

const (
	DocumentNationalID DocumentType = "NationalID"
	DocumentPassport   DocumentType = "Passport"
	DocumentForeignID  DocumentType = "ForeignID"
)

// ParseDocumentType validates enum membership.
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocumentNationalID, DocumentPassport, DocumentForeignID:
		return DocumentType(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "invalid document type %q", s)
}

// Role is the authorization role mirrored onto the principal directory.
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleAgent      Role = "Agent"
	RoleRegular    Role = "Regular"
)

// ParseRole validates enum membership.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuperAdmin, RoleAdmin, RoleAgent, RoleRegular:
		return Role(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "invalid role %q", s)
}

// Channel is the user's preferred communication channel.
type Channel string

const (
	ChannelEmail Channel = "Email"
	ChannelPhone Channel = "Phone"
	ChannelSMS   Channel = "SMS"
	ChannelChat  Channel = "Chat"
)

// ParseChannel validates enum membership.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelPhone, ChannelSMS, ChannelChat:
		return Channel(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "invalid communication channel %q", s)
}

// User is the domain entity owned by the user record store. The subject ID is
// assigned by the principal directory during the create sequence and is the
// row's primary key; a row whose subject has no matching principal is an
// inconsistent state that read paths must surface, never hide.
type User struct {
	SubjectID    id.SubjectID
	TenantID     id.TenantID
	DocumentType DocumentType
	Role         Role
	IDNumber     string
	Name         string
	LastName     string
	Phone        string
	Channel      Channel
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateFields is a partial field set for user updates. Only non-nil fields
// are applied; absent fields leave existing values untouched.
type UpdateFields struct {
	TenantID     *id.TenantID
	DocumentType *DocumentType
	Role         *Role
	IDNumber     *string
	Name         *string
	LastName     *string
	Phone        *string
	Channel      *Channel
}

// Empty reports whether no field is present.
func (f UpdateFields) Empty() bool {
	return f.TenantID == nil && f.DocumentType == nil && f.Role == nil &&
		f.IDNumber == nil && f.Name == nil && f.LastName == nil &&
		f.Phone == nil && f.Channel == nil
}

// TouchesMirror reports whether the update includes fields that are mirrored
// as principal directory attributes (tenant and role).
func (f UpdateFields) TouchesMirror() bool {
	return f.TenantID != nil || f.Role != nil
}

// MirrorAttributes returns the directory attribute map for the mirrored
// fields present in the update.
func (f UpdateFields) MirrorAttributes() map[string]string {
	attrs := make(map[string]string, 2)
	if f.TenantID != nil {
		attrs[AttrTenantID] = f.TenantID.String()
	}
	if f.Role != nil {
		attrs[AttrRole] = string(*f.Role)
	}
	return attrs
}

// Validate re-checks enum membership. Update paths accept partial input that
// bypasses the boundary's create validation, so the fields must be validated
// again here.
func (f UpdateFields) Validate() error {
	if f.DocumentType != nil {
		if _, err := ParseDocumentType(string(*f.DocumentType)); err != nil {
			return err
		}
	}
	if f.Role != nil {
		if _, err := ParseRole(string(*f.Role)); err != nil {
			return err
		}
	}
	if f.Channel != nil {
		if _, err := ParseChannel(string(*f.Channel)); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the present fields onto u and stamps the update time.
func (f UpdateFields) Apply(u *User, now time.Time) {
	if f.TenantID != nil {
		u.TenantID = *f.TenantID
	}
	if f.DocumentType != nil {
		u.DocumentType = *f.DocumentType
	}
	if f.Role != nil {
		u.Role = *f.Role
	}
	if f.IDNumber != nil {
		u.IDNumber = *f.IDNumber
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.LastName != nil {
		u.LastName = *f.LastName
	}
	if f.Phone != nil {
		u.Phone = *f.Phone
	}
	if f.Channel != nil {
		u.Channel = *f.Channel
	}
	u.UpdatedAt = now
}

// Directory attribute names for the mirrored authorization claims.
const (
	AttrTenantID = "custom:tenant_id"
	AttrRole     = "custom:role"
)

// Filter narrows user listings. Exact-match predicates (tenant, document
// type, id number) and case-insensitive substring predicates (name, last
// name) combine with logical AND; the zero filter matches all rows.
type Filter struct {
	TenantID     id.TenantID
	DocumentType DocumentType
	IDNumber     string
	Name         string
	LastName     string
}

// Empty reports whether the filter has no predicates.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Matches evaluates the filter against a user. The in-memory store and the
// list-merge path share this; the Postgres store compiles the same predicates
// to SQL.
func (f Filter) Matches(u *User) bool {
	if !f.TenantID.IsNil() && u.TenantID != f.TenantID {
		return false
	}
	if f.DocumentType != "" && u.DocumentType != f.DocumentType {
		return false
	}
	if f.IDNumber != "" && u.IDNumber != f.IDNumber {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.LastName != "" && !strings.Contains(strings.ToLower(u.LastName), strings.ToLower(f.LastName)) {
		return false
	}
	return true
}
