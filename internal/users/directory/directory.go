// Package directory wraps the managed identity provider behind a small
// capability contract. The provider owns credentials, email, and the
// tenant/role attribute mirrors used in authorization claims; everything else
// about a user lives in the record store.
package directory

import (
	"context"
	"fmt"

	"registrar/internal/users/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// Typed failures for the contract. They wrap the platform sentinels so
// callers can match either the named condition or the infrastructure fact.
var (
	ErrDuplicatePrincipal = fmt.Errorf("duplicate principal: %w", sentinel.ErrConflict)
	ErrPrincipalNotFound  = fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	ErrUnavailable        = fmt.Errorf("directory unavailable: %w", sentinel.ErrUnavailable)
)

// Principal is the directory's record of a user: subject identifier, account
// flags, and the attribute map carrying the tenant/role mirrors.
type Principal struct {
	SubjectID  id.SubjectID
	Email      string
	Enabled    bool
	Status     string
	Attributes map[string]string
}

// TenantID reads the mirrored tenant attribute.
func (p *Principal) TenantID() id.TenantID {
	return id.TenantID(p.Attributes[AttrTenantID])
}

// Attribute names mirrored from the record store. The canonical values live
// with the mirror logic in models; adapters reference them through here.
const (
	AttrTenantID = models.AttrTenantID
	AttrRole     = models.AttrRole
)

// CreateInput carries everything the provider needs to mint a principal.
type CreateInput struct {
	Email      string
	Secret     string
	Attributes map[string]string
}

// Directory is the capability contract the orchestrator consumes.
//
// CreatePrincipal fails with ErrDuplicatePrincipal when the provider's
// uniqueness constraint on the login identifier is violated; any other
// provider-side failure surfaces as ErrUnavailable. The returned principal
// carries the provider-assigned subject identifier.
type Directory interface {
	CreatePrincipal(ctx context.Context, in CreateInput) (*Principal, error)
	DeletePrincipal(ctx context.Context, subjectID id.SubjectID) error
	UpdateAttributes(ctx context.Context, subjectID id.SubjectID, attrs map[string]string) error
	GetPrincipal(ctx context.Context, subjectID id.SubjectID) (*Principal, error)
	ListPrincipals(ctx context.Context, tenantID id.TenantID) ([]*Principal, error)
}
