package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	id "registrar/pkg/domain"
)

// CognitoAPI is the narrow slice of the Cognito client the adapter uses.
// Tests substitute a fake.
type CognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cognito.AdminCreateUserInput, optFns ...func(*cognito.Options)) (*cognito.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cognito.AdminSetUserPasswordInput, optFns ...func(*cognito.Options)) (*cognito.AdminSetUserPasswordOutput, error)
	AdminDeleteUser(ctx context.Context, params *cognito.AdminDeleteUserInput, optFns ...func(*cognito.Options)) (*cognito.AdminDeleteUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cognito.AdminUpdateUserAttributesInput, optFns ...func(*cognito.Options)) (*cognito.AdminUpdateUserAttributesOutput, error)
	AdminGetUser(ctx context.Context, params *cognito.AdminGetUserInput, optFns ...func(*cognito.Options)) (*cognito.AdminGetUserOutput, error)
	ListUsers(ctx context.Context, params *cognito.ListUsersInput, optFns ...func(*cognito.Options)) (*cognito.ListUsersOutput, error)
}

// CognitoDirectory implements Directory against an AWS Cognito user pool.
// Each call is bounded by callTimeout; expiry surfaces as ErrUnavailable.
type CognitoDirectory struct {
	api         CognitoAPI
	userPoolID  string
	callTimeout time.Duration
}

// CognitoOption configures a CognitoDirectory.
type CognitoOption func(*CognitoDirectory)

// WithCallTimeout overrides the per-call deadline applied at the adapter
// boundary.
func WithCallTimeout(d time.Duration) CognitoOption {
	return func(c *CognitoDirectory) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewCognito constructs a directory backed by the given Cognito user pool,
// loading AWS configuration from the environment.
func NewCognito(ctx context.Context, region, userPoolID string, opts ...CognitoOption) (*CognitoDirectory, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewCognitoWithAPI(cognito.NewFromConfig(awsCfg), userPoolID, opts...), nil
}

// NewCognitoWithAPI constructs a directory over an existing client. Used by
// tests and by callers that need custom endpoints.
func NewCognitoWithAPI(api CognitoAPI, userPoolID string, opts ...CognitoOption) *CognitoDirectory {
	c := &CognitoDirectory{
		api:         api,
		userPoolID:  userPoolID,
		callTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CognitoDirectory) CreatePrincipal(ctx context.Context, in CreateInput) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(in.Email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	for name, value := range in.Attributes {
		attrs = append(attrs, types.AttributeType{Name: aws.String(name), Value: aws.String(value)})
	}

	out, err := c.api.AdminCreateUser(ctx, &cognito.AdminCreateUserInput{
		UserPoolId:        aws.String(c.userPoolID),
		Username:          aws.String(in.Email),
		UserAttributes:    attrs,
		TemporaryPassword: aws.String(in.Secret),
		MessageAction:     types.MessageActionTypeSuppress,
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return nil, ErrDuplicatePrincipal
		}
		return nil, fmt.Errorf("%w: admin create user: %v", ErrUnavailable, err)
	}

	// Promote the temporary password so the account is usable immediately.
	_, err = c.api.AdminSetUserPassword(ctx, &cognito.AdminSetUserPasswordInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(in.Email),
		Password:   aws.String(in.Secret),
		Permanent:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: set permanent password: %v", ErrUnavailable, err)
	}

	return principalFromUserType(out.User), nil
}

func (c *CognitoDirectory) DeletePrincipal(ctx context.Context, subjectID id.SubjectID) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	_, err := c.api.AdminDeleteUser(ctx, &cognito.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(subjectID.String()),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return ErrPrincipalNotFound
		}
		return fmt.Errorf("%w: admin delete user: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *CognitoDirectory) UpdateAttributes(ctx context.Context, subjectID id.SubjectID, attrs map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	userAttrs := make([]types.AttributeType, 0, len(attrs))
	for name, value := range attrs {
		userAttrs = append(userAttrs, types.AttributeType{Name: aws.String(name), Value: aws.String(value)})
	}

	_, err := c.api.AdminUpdateUserAttributes(ctx, &cognito.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(subjectID.String()),
		UserAttributes: userAttrs,
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return ErrPrincipalNotFound
		}
		return fmt.Errorf("%w: admin update user attributes: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *CognitoDirectory) GetPrincipal(ctx context.Context, subjectID id.SubjectID) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.AdminGetUser(ctx, &cognito.AdminGetUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(subjectID.String()),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%w: admin get user: %v", ErrUnavailable, err)
	}

	attrs := attributeMap(out.UserAttributes)
	return &Principal{
		SubjectID:  id.SubjectID(attrs["sub"]),
		Email:      attrs["email"],
		Enabled:    out.Enabled,
		Status:     string(out.UserStatus),
		Attributes: attrs,
	}, nil
}

// ListPrincipals pages through the pool. The provider cannot filter on custom
// attributes server-side, so the tenant predicate is applied here.
func (c *CognitoDirectory) ListPrincipals(ctx context.Context, tenantID id.TenantID) ([]*Principal, error) {
	var principals []*Principal
	var paginationToken *string

	for {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		out, err := c.api.ListUsers(callCtx, &cognito.ListUsersInput{
			UserPoolId:      aws.String(c.userPoolID),
			PaginationToken: paginationToken,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: list users: %v", ErrUnavailable, err)
		}

		for i := range out.Users {
			p := principalFromUserType(&out.Users[i])
			if tenantID.IsNil() || p.TenantID() == tenantID {
				principals = append(principals, p)
			}
		}

		if out.PaginationToken == nil {
			return principals, nil
		}
		paginationToken = out.PaginationToken
	}
}

func principalFromUserType(u *types.UserType) *Principal {
	if u == nil {
		return &Principal{Attributes: map[string]string{}}
	}
	attrs := attributeMap(u.Attributes)
	return &Principal{
		SubjectID:  id.SubjectID(attrs["sub"]),
		Email:      attrs["email"],
		Enabled:    u.Enabled,
		Status:     string(u.UserStatus),
		Attributes: attrs,
	}
}

func attributeMap(attrs []types.AttributeType) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Name != nil && a.Value != nil {
			m[*a.Name] = *a.Value
		}
	}
	return m
}
