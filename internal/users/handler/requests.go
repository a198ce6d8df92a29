package handler

import (
	"net/url"
	"strings"

	"registrar/internal/users/models"
	"registrar/internal/users/service"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/email"
)

// CreateUserRequest is the HTTP request body for POST /users.
type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	TenantID     string `json:"tenant_id"`
	DocumentType string `json:"document_type"`
	Role         string `json:"role"`
	IDNumber     string `json:"id_number"`
	Name         string `json:"name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	Channel      string `json:"channel"`

	// Parsed values (populated by Validate)
	parsedDocumentType models.DocumentType
	parsedRole         models.Role
	parsedChannel      models.Channel
}

// Validate validates and parses the request. Validation failures reject
// the request before any command is built.
func (r *CreateUserRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if !email.Valid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if strings.TrimSpace(r.TenantID) == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if strings.TrimSpace(r.IDNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "id_number is required")
	}
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.LastName) == "" {
		return dErrors.New(dErrors.CodeValidation, "name and last_name are required")
	}

	var err error
	if r.parsedDocumentType, err = models.ParseDocumentType(r.DocumentType); err != nil {
		return err
	}
	if r.parsedRole, err = models.ParseRole(r.Role); err != nil {
		return err
	}
	if r.parsedChannel, err = models.ParseChannel(r.Channel); err != nil {
		return err
	}
	return nil
}

// ToInput converts the validated request to a service input.
func (r *CreateUserRequest) ToInput() service.CreateInput {
	return service.CreateInput{
		Email:        r.Email,
		Password:     r.Password,
		TenantID:     id.TenantID(strings.TrimSpace(r.TenantID)),
		DocumentType: r.parsedDocumentType,
		Role:         r.parsedRole,
		IDNumber:     strings.TrimSpace(r.IDNumber),
		Name:         strings.TrimSpace(r.Name),
		LastName:     strings.TrimSpace(r.LastName),
		Phone:        strings.TrimSpace(r.Phone),
		Channel:      r.parsedChannel,
	}
}

// RegisterUserRequest is the HTTP request body for POST /users/register.
// There is no role field; self-registered users are always Regular.
type RegisterUserRequest struct {
	CreateUserRequest
}

// Validate validates the self-registration request.
func (r *RegisterUserRequest) Validate() error {
	r.Role = string(models.RoleRegular)
	return r.CreateUserRequest.Validate()
}

// UpdateUserRequest is the HTTP request body for PUT /users/{subjectID}
// and PUT /users/me. Absent fields leave stored values untouched.
type UpdateUserRequest struct {
	TenantID     *string `json:"tenant_id"`
	DocumentType *string `json:"document_type"`
	Role         *string `json:"role"`
	IDNumber     *string `json:"id_number"`
	Name         *string `json:"name"`
	LastName     *string `json:"last_name"`
	Phone        *string `json:"phone"`
	Channel      *string `json:"channel"`

	parsed models.UpdateFields
}

// Validate parses the present fields. Enum membership failures reject the
// whole request.
func (r *UpdateUserRequest) Validate() error {
	if r.TenantID != nil {
		if strings.TrimSpace(*r.TenantID) == "" {
			return dErrors.New(dErrors.CodeValidation, "tenant_id cannot be empty")
		}
		tenantID := id.TenantID(strings.TrimSpace(*r.TenantID))
		r.parsed.TenantID = &tenantID
	}
	if r.DocumentType != nil {
		documentType, err := models.ParseDocumentType(*r.DocumentType)
		if err != nil {
			return err
		}
		r.parsed.DocumentType = &documentType
	}
	if r.Role != nil {
		role, err := models.ParseRole(*r.Role)
		if err != nil {
			return err
		}
		r.parsed.Role = &role
	}
	if r.Channel != nil {
		channel, err := models.ParseChannel(*r.Channel)
		if err != nil {
			return err
		}
		r.parsed.Channel = &channel
	}
	r.parsed.IDNumber = r.IDNumber
	r.parsed.Name = r.Name
	r.parsed.LastName = r.LastName
	r.parsed.Phone = r.Phone

	if r.parsed.Empty() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

// ToFields returns the parsed partial field set.
func (r *UpdateUserRequest) ToFields() models.UpdateFields {
	return r.parsed
}

// FilterFromQuery builds a listing filter from URL query parameters.
func FilterFromQuery(values url.Values) models.Filter {
	return models.Filter{
		TenantID:     id.TenantID(strings.TrimSpace(values.Get("tenant_id"))),
		DocumentType: models.DocumentType(strings.TrimSpace(values.Get("document_type"))),
		IDNumber:     strings.TrimSpace(values.Get("id_number")),
		Name:         strings.TrimSpace(values.Get("name")),
		LastName:     strings.TrimSpace(values.Get("last_name")),
	}
}
