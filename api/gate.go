package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"pinky-api/domain"
)

// HeaderOrgID selects the active organization for tenant-scoped requests.
const HeaderOrgID = "X-Org-Id"

const (
	ctxUserKey = "pinky.user"
	ctxOrgKey  = "pinky.org"
)

// OrgClass is the outcome of classifying the organization-selector header.
type OrgClass int

const (
	// OrgOK means the header resolved to an ACTIVE membership.
	OrgOK OrgClass = iota
	// OrgMissing means the header was absent.
	OrgMissing
	// OrgInvalid means the header was present but not a well-formed id.
	OrgInvalid
	// OrgForbidden means no ACTIVE membership exists for the pair.
	OrgForbidden
)

// OrgContext is the resolved tenant context of an authorized request.
type OrgContext struct {
	OrgID string
	Role  domain.MembershipRole
}

// Gate resolves a request's credential material into an identity and, for
// tenant-scoped routes, an organization context. It never reports an
// org-context failure to an unauthenticated caller: authentication always
// fails first.
type Gate struct {
	tokens TokenService
	store  Directory
}

// NewGate creates a Gate over the given token service and directory.
func NewGate(tokens TokenService, store Directory) *Gate {
	return &Gate{tokens: tokens, store: store}
}

// Authenticate resolves the Authorization header to a stored user. Any
// failure (absent or malformed header, invalid token, unknown user) yields
// a collapsed unauthenticated outcome.
func (g *Gate) Authenticate(authHeader string) (domain.User, bool) {
	token, err := bearerToken(authHeader)
	if err != nil {
		return domain.User{}, false
	}
	payload, err := g.tokens.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	return g.store.GetUserByID(payload.UserID)
}

// ClassifyOrg classifies the organization-selector header for an
// authenticated user.
func (g *Gate) ClassifyOrg(userID, header string) (OrgContext, OrgClass) {
	if header == "" {
		return OrgContext{}, OrgMissing
	}
	if _, err := uuid.Parse(header); err != nil {
		return OrgContext{}, OrgInvalid
	}
	membership, ok := g.store.FindMembership(userID, header)
	if !ok || membership.Status != domain.MembershipActive {
		return OrgContext{}, OrgForbidden
	}
	return OrgContext{OrgID: header, Role: membership.Role}, OrgOK
}

// RequireUser is echo middleware enforcing authentication. The resolved user
// is stored on the request context.
func (g *Gate) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := g.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return errorResponse(c, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		}
		c.Set(ctxUserKey, user)
		return next(c)
	}
}

// RequireOrg is echo middleware enforcing a resolved organization context.
// It must run after RequireUser.
func (g *Gate) RequireOrg(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := userFrom(c)
		org, class := g.ClassifyOrg(user.ID, c.Request().Header.Get(HeaderOrgID))
		switch class {
		case OrgMissing:
			return errorResponse(c, http.StatusBadRequest, "Missing X-Org-Id header", "MISSING_ORG_HEADER")
		case OrgInvalid:
			return errorResponse(c, http.StatusBadRequest, "Invalid X-Org-Id header", "INVALID_ORG_HEADER")
		case OrgForbidden:
			return errorResponse(c, http.StatusForbidden, "Forbidden", "FORBIDDEN")
		}
		c.Set(ctxOrgKey, org)
		return next(c)
	}
}

func userFrom(c echo.Context) domain.User {
	user, _ := c.Get(ctxUserKey).(domain.User)
	return user
}

func orgFrom(c echo.Context) OrgContext {
	org, _ := c.Get(ctxOrgKey).(OrgContext)
	return org
}
