package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/identity"
)

func newAdminRouter(service *Service, principal *identity.Principal) http.Handler {
	handler := NewHandler(nil, service)
	r := chi.NewRouter()
	if principal != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(identity.ContextWithPrincipal(req.Context(), *principal)))
			})
		})
	}
	r.Route("/admin", handler.MountRoutes)
	return r
}

func manageUser(t *testing.T, router http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/admin/manage-user", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestManageUserRequiresAuthentication(t *testing.T) {
	f := newAdminFixture(t)
	router := newAdminRouter(f.service, nil)

	rec := manageUser(t, router, map[string]any{"action": "delete", "userId": uuid.NewString()})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Error)
}

func TestManageUserRejectsInsufficientRole(t *testing.T) {
	f := newAdminFixture(t)
	target := f.users.add(identity.RoleStaff)

	manager := identity.Principal{UserID: uuid.New(), Role: identity.RoleManager}
	router := newAdminRouter(f.service, &manager)

	rec := manageUser(t, router, map[string]any{"action": "delete", "userId": target.String()})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestManageUserUpdateSuccessEnvelope(t *testing.T) {
	f := newAdminFixture(t)
	target := f.users.add(identity.RoleStaff)
	router := newAdminRouter(f.service, &f.admin)

	rec := manageUser(t, router, map[string]any{
		"action":   "update",
		"userId":   target.String(),
		"role":     "manager",
		"fullName": "Priya Raman",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "User updated successfully", resp.Message)
	require.Equal(t, identity.RoleManager, f.users.roles[target])
}

func TestManageUserSelfDeleteReturns400(t *testing.T) {
	f := newAdminFixture(t)
	f.users.profiles[f.admin.UserID] = UserSummary{ID: f.admin.UserID, Role: identity.RoleAdmin}
	router := newAdminRouter(f.service, &f.admin)

	rec := manageUser(t, router, map[string]any{"action": "delete", "userId": f.admin.UserID.String()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManageUserDuplicateGrantReturns400(t *testing.T) {
	f := newAdminFixture(t)
	target := f.users.add(identity.RoleStaff)
	dept := uuid.New()
	router := newAdminRouter(f.service, &f.admin)

	body := map[string]any{
		"action":       "grant_department_access",
		"userId":       target.String(),
		"departmentId": dept.String(),
	}
	rec := manageUser(t, router, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = manageUser(t, router, body)
	require.Equal(t, http.StatusBadRequest, rec.Code, "duplicate grant maps to 400, not 409")
}

func TestManageUserUnknownAction(t *testing.T) {
	f := newAdminFixture(t)
	router := newAdminRouter(f.service, &f.admin)

	rec := manageUser(t, router, map[string]any{"action": "promote", "userId": uuid.NewString()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsersEndpoint(t *testing.T) {
	f := newAdminFixture(t)
	f.users.add(identity.RoleStaff)
	router := newAdminRouter(f.service, &f.admin)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []UserSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
}
