package handler

import (
	"time"

	"registrar/internal/users/models"
	"registrar/internal/users/service"
)

// UserResponse is the HTTP representation of a user. Directory-sourced
// fields (email, enabled, status) are present only on merged reads.
type UserResponse struct {
	SubjectID    string    `json:"subject_id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email,omitempty"`
	DocumentType string    `json:"document_type"`
	Role         string    `json:"role"`
	IDNumber     string    `json:"id_number"`
	Name         string    `json:"name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	Channel      string    `json:"channel"`
	Enabled      bool      `json:"enabled"`
	Status       string    `json:"status,omitempty"`
	Orphaned     bool      `json:"orphaned,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FromUser converts a bare row (no directory join).
func FromUser(u *models.User) *UserResponse {
	return &UserResponse{
		SubjectID:    u.SubjectID.String(),
		TenantID:     u.TenantID.String(),
		DocumentType: string(u.DocumentType),
		Role:         string(u.Role),
		IDNumber:     u.IDNumber,
		Name:         u.Name,
		LastName:     u.LastName,
		Phone:        u.Phone,
		Channel:      string(u.Channel),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// FromView converts a merged row-plus-directory view.
func FromView(v *service.UserView) *UserResponse {
	resp := FromUser(v.User)
	resp.Email = v.Email
	resp.Enabled = v.Enabled
	resp.Status = v.Status
	resp.Orphaned = v.Orphaned
	return resp
}

// ListResponse is the HTTP response for GET /users.
type ListResponse struct {
	Users []*UserResponse `json:"users"`
}

// FromViews converts a merged listing.
func FromViews(views []*service.UserView) *ListResponse {
	users := make([]*UserResponse, 0, len(views))
	for _, v := range views {
		users = append(users, FromView(v))
	}
	return &ListResponse{Users: users}
}
