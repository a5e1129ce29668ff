package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"pinky-api/domain"
)

type mockDirectory struct {
	users       map[string]domain.User
	memberships []domain.Membership
}

func (m *mockDirectory) GetUserByID(id string) (domain.User, bool) {
	user, ok := m.users[id]
	return user, ok
}

func (m *mockDirectory) FindMembership(userID, organizationID string) (domain.Membership, bool) {
	for _, mem := range m.memberships {
		if mem.UserID == userID && mem.OrganizationID == organizationID {
			return mem, true
		}
	}
	return domain.Membership{}, false
}

func newTestGate(t *testing.T) (*Gate, *Auth, domain.User, *mockDirectory) {
	t.Helper()
	auth := NewAuth("test-secret", time.Hour)
	user := domain.User{ID: uuid.NewString(), Email: "gate@example.com"}
	dir := &mockDirectory{users: map[string]domain.User{user.ID: user}}
	return NewGate(auth, dir), auth, user, dir
}

func passThrough(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func runGate(t *testing.T, handler echo.HandlerFunc, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/org/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return body
}

func TestAuthenticateResolvesUser(t *testing.T) {
	gate, auth, user, _ := newTestGate(t)
	token, err := auth.Issue(user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, ok := gate.Authenticate("Bearer " + token)
	if !ok {
		t.Fatalf("expected authentication to succeed")
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	gate, auth, user, dir := newTestGate(t)
	token, err := auth.Issue(user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	vanished, err := auth.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	testCases := map[string]string{
		"no_header":     "",
		"malformed":     "Token " + token,
		"garbage_token": "Bearer a.b.c",
		"unknown_user":  "Bearer " + vanished,
	}
	for name, header := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, ok := gate.Authenticate(header); ok {
				t.Fatalf("expected authentication to fail")
			}
		})
	}

	// A valid token whose user has been removed must also fail.
	delete(dir.users, user.ID)
	if _, ok := gate.Authenticate("Bearer " + token); ok {
		t.Fatalf("expected authentication to fail for removed user")
	}
}

func TestClassifyOrg(t *testing.T) {
	gate, _, user, dir := newTestGate(t)
	activeOrg := uuid.NewString()
	inactiveOrg := uuid.NewString()
	dir.memberships = []domain.Membership{
		{UserID: user.ID, OrganizationID: activeOrg, Role: domain.RoleOrganizer, Status: domain.MembershipActive},
		{UserID: user.ID, OrganizationID: inactiveOrg, Role: domain.RoleAdmin, Status: domain.MembershipInactive},
	}

	testCases := map[string]struct {
		header string
		want   OrgClass
	}{
		"missing":     {header: "", want: OrgMissing},
		"invalid":     {header: "not-a-uuid", want: OrgInvalid},
		"unknown_org": {header: uuid.NewString(), want: OrgForbidden},
		"inactive":    {header: inactiveOrg, want: OrgForbidden},
		"active":      {header: activeOrg, want: OrgOK},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			org, class := gate.ClassifyOrg(user.ID, tc.header)
			if class != tc.want {
				t.Fatalf("expected class %d, got %d", tc.want, class)
			}
			if tc.want == OrgOK {
				if org.OrgID != activeOrg || org.Role != domain.RoleOrganizer {
					t.Fatalf("unexpected org context: %#v", org)
				}
			}
		})
	}
}

func TestRequireUserRejectsBeforeOrgChecks(t *testing.T) {
	gate, _, _, _ := newTestGate(t)
	handler := gate.RequireUser(gate.RequireOrg(passThrough))

	// Org header present but no credential: the caller must see 401, never a
	// hint about tenant membership.
	rec := runGate(t, handler, map[string]string{HeaderOrgID: uuid.NewString()})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected error code %q", body.Code)
	}
}

func TestRequireOrgOutcomes(t *testing.T) {
	gate, auth, user, dir := newTestGate(t)
	activeOrg := uuid.NewString()
	dir.memberships = []domain.Membership{
		{UserID: user.ID, OrganizationID: activeOrg, Role: domain.RoleMember, Status: domain.MembershipActive},
	}
	token, err := auth.Issue(user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	handler := gate.RequireUser(gate.RequireOrg(passThrough))

	testCases := map[string]struct {
		orgHeader  string
		wantStatus int
		wantCode   string
	}{
		"missing":   {orgHeader: "", wantStatus: http.StatusBadRequest, wantCode: "MISSING_ORG_HEADER"},
		"invalid":   {orgHeader: "nope", wantStatus: http.StatusBadRequest, wantCode: "INVALID_ORG_HEADER"},
		"forbidden": {orgHeader: uuid.NewString(), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		"ok":        {orgHeader: activeOrg, wantStatus: http.StatusOK},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			headers := map[string]string{echo.HeaderAuthorization: "Bearer " + token}
			if tc.orgHeader != "" {
				headers[HeaderOrgID] = tc.orgHeader
			}
			rec := runGate(t, handler, headers)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantCode != "" {
				if body := decodeErrorBody(t, rec); body.Code != tc.wantCode {
					t.Fatalf("expected code %q, got %q", tc.wantCode, body.Code)
				}
			}
		})
	}
}
