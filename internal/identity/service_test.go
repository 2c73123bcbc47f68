package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsdesk/opsdesk/internal/shared"
)

type memoryIdentityRepo struct {
	profiles map[uuid.UUID]Profile
	roles    map[uuid.UUID][]Role
	grants   map[uuid.UUID][]uuid.UUID
}

func newMemoryIdentityRepo() *memoryIdentityRepo {
	return &memoryIdentityRepo{
		profiles: make(map[uuid.UUID]Profile),
		roles:    make(map[uuid.UUID][]Role),
		grants:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *memoryIdentityRepo) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryIdentityRepo) FindProfileByEmail(ctx context.Context, email string) (Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return Profile{}, shared.ErrNotFound
}

func (r *memoryIdentityRepo) ListRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	return append([]Role(nil), r.roles[userID]...), nil
}

func (r *memoryIdentityRepo) ListGrantedDepartments(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), r.grants[userID]...), nil
}

func TestResolveCollapsesToHighestRole(t *testing.T) {
	repo := newMemoryIdentityRepo()
	userID := uuid.New()
	dept := uuid.New()
	granted := uuid.New()
	repo.profiles[userID] = Profile{ID: userID, Email: "sam@opsdesk.local", DepartmentID: &dept}
	repo.roles[userID] = []Role{RoleStaff, RoleManager, RoleSupervisor}
	repo.grants[userID] = []uuid.UUID{granted}

	svc := NewService(repo, "secret", time.Hour)
	principal, err := svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, RoleManager, principal.Role)
	require.Equal(t, dept, *principal.PrimaryDepartment)
	require.Equal(t, []uuid.UUID{granted}, principal.GrantedDepartments)
}

func TestResolveDefaultsToStaffWithoutRoleRecord(t *testing.T) {
	repo := newMemoryIdentityRepo()
	userID := uuid.New()
	repo.profiles[userID] = Profile{ID: userID, Email: "new@opsdesk.local"}

	svc := NewService(repo, "secret", time.Hour)
	principal, err := svc.Resolve(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, RoleStaff, principal.Role)
	require.Nil(t, principal.PrimaryDepartment)
}

func TestResolveUnknownUserIsUnauthenticated(t *testing.T) {
	svc := NewService(newMemoryIdentityRepo(), "secret", time.Hour)
	_, err := svc.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryIdentityRepo()
	userID := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.profiles[userID] = Profile{ID: userID, Email: "sam@opsdesk.local", PasswordHash: string(hash)}

	svc := NewService(repo, "secret", time.Hour)

	profile, err := svc.Authenticate(context.Background(), "sam@opsdesk.local", "hunter22")
	require.NoError(t, err)
	require.Equal(t, userID, profile.ID)

	_, err = svc.Authenticate(context.Background(), "sam@opsdesk.local", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@opsdesk.local", "hunter22")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService(newMemoryIdentityRepo(), "secret", time.Hour)
	userID := uuid.New()

	token, expiresAt, err := svc.IssueToken(userID, "sam@opsdesk.local", time.Now())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	got, err := svc.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, userID, got)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewService(newMemoryIdentityRepo(), "secret-a", time.Hour)
	verifier := NewService(newMemoryIdentityRepo(), "secret-b", time.Hour)

	token, _, err := issuer.IssueToken(uuid.New(), "", time.Now())
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := NewService(newMemoryIdentityRepo(), "secret", time.Minute)
	token, _, err := svc.IssueToken(uuid.New(), "", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}
