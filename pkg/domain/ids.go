// Package domain holds typed identifiers shared across modules.
package domain

// SubjectID is the immutable key assigned by the principal directory at
// creation time. It joins the directory principal and the user row for the
// lifetime of the account; it is never reassigned.
type SubjectID string

func (s SubjectID) String() string {
	return string(s)
}

// IsNil reports whether the subject ID is empty.
func (s SubjectID) IsNil() bool {
	return s == ""
}

// TenantID identifies the tenant a user belongs to.
type TenantID string

func (t TenantID) String() string {
	return string(t)
}

// IsNil reports whether the tenant ID is empty.
func (t TenantID) IsNil() bool {
	return t == ""
}
