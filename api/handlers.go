package api

import (
	"io"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"pinky-api/domain"
)

const loginBodyMaxSize = 16 * 1024 // 16 KiB

// Register wires up all API routes on the provided Echo instance. Public
// routes skip the gate, self routes require authentication only, everything
// else requires an ACTIVE membership in the selected organization. Unmatched
// requests are gated by their path class, not the registered method set, so a
// wrong-method request sees the same gates as the matching GET or POST would.
func Register(e *echo.Echo, store Storage, gate *Gate, tokens TokenService, logger *log.Logger) {
	e.GET("/health", health())
	e.POST("/auth/login", login(store, tokens))

	e.GET("/me", me(store), gate.RequireUser)
	e.GET("/me/memberships", memberships(store), gate.RequireUser)

	e.GET("/org/ping", orgPing(), gate.RequireUser, gate.RequireOrg)
	e.GET("/microtasks", microTaskList(store, logger), gate.RequireUser, gate.RequireOrg)
	e.GET("/microtasks/:id", microTaskDetail(store), gate.RequireUser, gate.RequireOrg)

	e.RouteNotFound("/*", notFound(gate))
}

type routeClass int

const (
	routePublic routeClass = iota
	routeSelf
	routeOrg
)

// classifyPath assigns a path to its gate class. Classification is by path
// alone; the request method never changes which gates apply.
func classifyPath(path string) routeClass {
	if path == "/health" || strings.HasPrefix(path, "/auth/") {
		return routePublic
	}
	if path == "/me" || strings.HasPrefix(path, "/me/") {
		return routeSelf
	}
	return routeOrg
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errorResponse(c echo.Context, status int, message, code string) error {
	return c.JSON(status, errorBody{Message: message, Code: code})
}

func health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

type loginRequest struct {
	Email       string  `json:"email"`
	DisplayName *string `json:"displayName"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

func login(store Storage, tokens TokenService) echo.HandlerFunc {
	return func(c echo.Context) error {
		lr := io.LimitReader(c.Request().Body, loginBodyMaxSize)
		var body loginRequest
		if err := sonic.ConfigStd.NewDecoder(lr).Decode(&body); err != nil {
			return errorResponse(c, http.StatusBadRequest, "Invalid JSON payload", "INVALID_JSON")
		}
		if !validLoginBody(body) {
			return errorResponse(c, http.StatusBadRequest, "Invalid login payload", "INVALID_BODY")
		}

		displayName := ""
		if body.DisplayName != nil {
			displayName = *body.DisplayName
		}
		user, ok := store.GetUserByEmail(body.Email)
		if !ok {
			user = store.CreateUser(body.Email, displayName)
		}
		store.SeedUserMemberships(user)
		store.EnsureSeedMicroTasksForUser(user.ID)

		accessToken, err := tokens.Issue(user.ID)
		if err != nil {
			c.Logger().Error(err)
			return errorResponse(c, http.StatusInternalServerError, "Unable to issue token", "TOKEN_ISSUE_FAILED")
		}
		return c.JSON(http.StatusOK, loginResponse{AccessToken: accessToken})
	}
}

func validLoginBody(body loginRequest) bool {
	addr, err := mail.ParseAddress(body.Email)
	if err != nil || addr.Address != body.Email {
		return false
	}
	if body.DisplayName != nil && *body.DisplayName == "" {
		return false
	}
	return true
}

type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

func me(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Re-resolve in case the record vanished between gate and handler.
		user, ok := store.GetUserByID(userFrom(c).ID)
		if !ok {
			return errorResponse(c, http.StatusNotFound, "User not found", "USER_NOT_FOUND")
		}
		return c.JSON(http.StatusOK, meResponse{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName})
	}
}

type membershipOrg struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type membershipEntry struct {
	Organization membershipOrg         `json:"organization"`
	Role         domain.MembershipRole `json:"role"`
}

func memberships(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := userFrom(c)
		entries := []membershipEntry{}
		for _, m := range store.ListMembershipsForUser(user.ID) {
			org := membershipOrg{ID: m.OrganizationID, Name: "Unknown"}
			if record, ok := store.GetOrganizationByID(m.OrganizationID); ok {
				org.Name = record.Name
			}
			entries = append(entries, membershipEntry{Organization: org, Role: m.Role})
		}
		return c.JSON(http.StatusOK, entries)
	}
}

type orgPingResponse struct {
	Status         string                `json:"status"`
	OrganizationID string                `json:"organizationId"`
	Role           domain.MembershipRole `json:"role"`
}

func orgPing() echo.HandlerFunc {
	return func(c echo.Context) error {
		org := orgFrom(c)
		return c.JSON(http.StatusOK, orgPingResponse{Status: "ok", OrganizationID: org.OrgID, Role: org.Role})
	}
}

type taskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type microTaskListItem struct {
	ID     string                 `json:"id"`
	Title  string                 `json:"title"`
	Status domain.MicroTaskStatus `json:"status"`
	Task   *taskRef               `json:"task"`
	DueAt  *time.Time             `json:"dueAt"`
}

func microTaskList(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newListRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		org := orgFrom(c)
		status := domain.MicroTaskOpen
		if param := c.QueryParam("status"); param != "" {
			status = domain.MicroTaskStatus(param)
			if !domain.ValidMicroTaskStatus(status) {
				metrics.SetErrorStage("invalid_status")
				err = errorResponse(c, http.StatusBadRequest, "Invalid status", "INVALID_STATUS")
				return err
			}
		}
		metrics.SetStatusFilter(status)

		listStart := time.Now()
		microTasks := store.ListMicroTasksForOrganization(ctx, org.OrgID, status)
		metrics.ObserveList(time.Since(listStart))
		metrics.SetReturned(len(microTasks))

		sort.SliceStable(microTasks, func(i, j int) bool {
			return microTasks[i].CreatedAt.After(microTasks[j].CreatedAt)
		})

		payload := make([]microTaskListItem, 0, len(microTasks))
		for _, mt := range microTasks {
			payload = append(payload, microTaskListItem{
				ID:     mt.ID,
				Title:  mt.Title,
				Status: mt.Status,
				Task:   taskRefFor(store, mt.TaskID),
				DueAt:  mt.DueAt,
			})
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, payload)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func taskRefFor(store Storage, taskID string) *taskRef {
	task, ok := store.GetTaskByID(taskID)
	if !ok {
		return nil
	}
	return &taskRef{ID: task.ID, Title: task.Title}
}

type microTaskDetailResponse struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description *string                `json:"description"`
	Status      domain.MicroTaskStatus `json:"status"`
	Task        *taskRef               `json:"task"`
	DueAt       *time.Time             `json:"dueAt"`
	CreatedAt   time.Time              `json:"createdAt"`
}

func microTaskDetail(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if _, err := uuid.Parse(id); err != nil {
			return errorResponse(c, http.StatusBadRequest, "Invalid microtask id", "INVALID_ID")
		}
		org := orgFrom(c)
		mt, ok := store.GetMicroTaskByID(id)
		if !ok || mt.OrganizationID != org.OrgID {
			// Cross-tenant ids look identical to unknown ids.
			return errorResponse(c, http.StatusNotFound, "MicroTask not found", "NOT_FOUND")
		}
		var description *string
		if mt.Description != "" {
			description = &mt.Description
		}
		return c.JSON(http.StatusOK, microTaskDetailResponse{
			ID:          mt.ID,
			Title:       mt.Title,
			Description: description,
			Status:      mt.Status,
			Task:        taskRefFor(store, mt.TaskID),
			DueAt:       mt.DueAt,
			CreatedAt:   mt.CreatedAt,
		})
	}
}

func notFound(gate *Gate) echo.HandlerFunc {
	respond := func(c echo.Context) error {
		return errorResponse(c, http.StatusNotFound, "Not Found", "NOT_FOUND")
	}
	return func(c echo.Context) error {
		switch classifyPath(c.Request().URL.Path) {
		case routePublic:
			return respond(c)
		case routeSelf:
			return gate.RequireUser(respond)(c)
		default:
			return gate.RequireUser(gate.RequireOrg(respond))(c)
		}
	}
}
