package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	id "registrar/pkg/domain"
)

// InMemoryDirectory is a process-local Directory for development and tests.
// It enforces the same uniqueness constraint on the login email as the
// managed provider and stores only a bcrypt hash of the credential secret.
type InMemoryDirectory struct {
	mu         sync.RWMutex
	principals map[id.SubjectID]*record
	byEmail    map[string]id.SubjectID
}

type record struct {
	principal  Principal
	secretHash []byte
}

// NewInMemory constructs an empty in-memory directory.
func NewInMemory() *InMemoryDirectory {
	return &InMemoryDirectory{
		principals: make(map[id.SubjectID]*record),
		byEmail:    make(map[string]id.SubjectID),
	}
}

func (d *InMemoryDirectory) CreatePrincipal(ctx context.Context, in CreateInput) (*Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byEmail[in.Email]; exists {
		return nil, ErrDuplicatePrincipal
	}

	subjectID := id.SubjectID(uuid.NewString())
	attrs := make(map[string]string, len(in.Attributes)+2)
	for k, v := range in.Attributes {
		attrs[k] = v
	}
	attrs["sub"] = subjectID.String()
	attrs["email"] = in.Email

	rec := &record{
		principal: Principal{
			SubjectID:  subjectID,
			Email:      in.Email,
			Enabled:    true,
			Status:     "CONFIRMED",
			Attributes: attrs,
		},
		secretHash: hash,
	}
	d.principals[subjectID] = rec
	d.byEmail[in.Email] = subjectID

	p := rec.principal
	return &p, nil
}

func (d *InMemoryDirectory) DeletePrincipal(ctx context.Context, subjectID id.SubjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.principals[subjectID]
	if !ok {
		return ErrPrincipalNotFound
	}
	delete(d.byEmail, rec.principal.Email)
	delete(d.principals, subjectID)
	return nil
}

func (d *InMemoryDirectory) UpdateAttributes(ctx context.Context, subjectID id.SubjectID, attrs map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.principals[subjectID]
	if !ok {
		return ErrPrincipalNotFound
	}
	for k, v := range attrs {
		rec.principal.Attributes[k] = v
	}
	return nil
}

func (d *InMemoryDirectory) GetPrincipal(ctx context.Context, subjectID id.SubjectID) (*Principal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.principals[subjectID]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	p := rec.principal
	p.Attributes = copyAttrs(rec.principal.Attributes)
	return &p, nil
}

func (d *InMemoryDirectory) ListPrincipals(ctx context.Context, tenantID id.TenantID) ([]*Principal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var principals []*Principal
	for _, rec := range d.principals {
		if !tenantID.IsNil() && rec.principal.TenantID() != tenantID {
			continue
		}
		p := rec.principal
		p.Attributes = copyAttrs(rec.principal.Attributes)
		principals = append(principals, &p)
	}
	return principals, nil
}

// VerifySecret checks a login secret against the stored hash. Not part of the
// Directory contract; the dev server uses it for local credential checks.
func (d *InMemoryDirectory) VerifySecret(email, secret string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subjectID, ok := d.byEmail[email]
	if !ok {
		return false
	}
	rec := d.principals[subjectID]
	return bcrypt.CompareHashAndPassword(rec.secretHash, []byte(secret)) == nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
