// Package api exposes HTTP handlers for the activities service.
package api

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"example.com/mergington/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the public and admin endpoints onto r. admin wraps
// every /admin route; pass nil to leave them open.
func (h *Handler) RegisterRoutes(r *mux.Router, admin mux.MiddlewareFunc) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	r.HandleFunc("/activities", h.listActivities).Methods(http.MethodGet)
	r.HandleFunc("/activities/{name}/signup", h.signUp).Methods(http.MethodPost)
	r.HandleFunc("/activities/{name}/unregister", h.unregister).Methods(http.MethodDelete)
	r.HandleFunc("/users/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/users/{email}/schedule", h.schedule).Methods(http.MethodGet)

	adminRouter := r.PathPrefix("/admin").Subrouter()
	if admin != nil {
		adminRouter.Use(admin)
	}
	adminRouter.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	adminRouter.HandleFunc("/activities/popular", h.popularActivities).Methods(http.MethodGet)
	adminRouter.HandleFunc("/users", h.users).Methods(http.MethodGet)
	adminRouter.HandleFunc("/activities", h.createActivity).Methods(http.MethodPost)
	adminRouter.HandleFunc("/activities/{name}", h.updateActivity).Methods(http.MethodPut)
	adminRouter.HandleFunc("/activities/{name}", h.deleteActivity).Methods(http.MethodDelete)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Not Found")
	})
}

// RegisterStatic serves assets under /static/ and redirects / to the student page.
func RegisterStatic(r *mux.Router, assets fs.FS) {
	r.Handle("/", http.RedirectHandler("/static/index.html", http.StatusTemporaryRedirect)).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(assets)))).Methods(http.MethodGet, http.MethodHead)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	rosters, err := h.service.ListActivities(r.Context())
	record("list_activities", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activityDirectory(rosters))
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	email := r.URL.Query().Get("email")

	err := h.service.SignUp(r.Context(), name, email)
	record("sign_up", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Signed up %s for %s", email, name)})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	email := r.URL.Query().Get("email")

	err := h.service.Unregister(r.Context(), name, email)
	record("unregister", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Unregistered %s from %s", email, name)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ResolveOrCreateUser(r.Context(), r.URL.Query().Get("email"))
	record("resolve_user", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		User:    toUserView(*user),
		Message: "User authenticated successfully",
	})
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.GetSchedule(r.Context(), mux.Vars(r)["email"])
	record("get_schedule", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ScheduleResponse{
		User:     toUserView(schedule.User),
		Schedule: make([]ScheduleEntry, 0, len(schedule.Activities)),
	}
	for _, activity := range schedule.Activities {
		resp.Schedule = append(resp.Schedule, ScheduleEntry{
			Name:        activity.Name,
			Description: activity.Description,
			Schedule:    activity.Schedule,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ActivityRequest is the payload for POST /admin/activities and
// PUT /admin/activities/{name}. On PUT the name comes from the path.
type ActivityRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Schedule        string `json:"schedule"`
	MaxParticipants int    `json:"max_participants"`
}

func (r ActivityRequest) input() domain.ActivityInput {
	return domain.ActivityInput{
		Name:            strings.TrimSpace(r.Name),
		Description:     r.Description,
		Schedule:        r.Schedule,
		MaxParticipants: r.MaxParticipants,
	}
}

func decodeActivityRequest(w http.ResponseWriter, r *http.Request) (ActivityRequest, bool) {
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return req, false
	}
	return req, true
}
