// Package demo is a small user API served through the REST pipeline. It
// shows every controller style the kernel accepts: returned values,
// returned errors and responses written directly.
package demo

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/restkit/internal/core/domain"
	"github.com/tjfontaine/restkit/internal/kernel"
	"github.com/tjfontaine/restkit/internal/server"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Profile is a user together with links to related resources.
type Profile struct {
	User  any               `json:"user" msgpack:"user"`
	Links map[string]string `json:"links" msgpack:"links"`
}

// Router returns the application routes. Unknown paths and methods are
// reported as errors so REST routes answer them with an envelope.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.NotFound(kernel.Handle(func(http.ResponseWriter, *http.Request) (any, error) {
		return nil, domain.ErrNotFound()
	}))
	r.MethodNotAllowed(kernel.Handle(func(http.ResponseWriter, *http.Request) (any, error) {
		return nil, domain.ErrMethodNotAllowed()
	}))

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", kernel.Handle(h.listUsers))
		r.Post("/", kernel.Handle(h.createUser))
		r.Get("/{id}", kernel.Handle(h.getUser))
		r.Delete("/{id}", kernel.Handle(h.deleteUser))
		r.Get("/{id}/profile", kernel.Handle(h.getProfile))
	})

	r.Get("/admin", h.admin)
	return r
}

func (h *Handler) listUsers(http.ResponseWriter, *http.Request) (any, error) {
	return h.store.List(), nil
}

func (h *Handler) getUser(_ http.ResponseWriter, r *http.Request) (any, error) {
	id, err := userID(r)
	if err != nil {
		return nil, err
	}
	server.AddLogField(r.Context(), "user_id", strconv.Itoa(id))

	u, ok := h.store.Get(id)
	if !ok {
		return nil, domain.ErrNotFound()
	}
	return u, nil
}

func (h *Handler) createUser(_ http.ResponseWriter, r *http.Request) (any, error) {
	body := domain.BodyFrom(r.Context())

	formErr := domain.NewFormValidationError("user")
	name, _ := body["name"].(string)
	email, _ := body["email"].(string)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		formErr.Add("name", "required", "Name is required.")
	}
	switch {
	case email == "":
		formErr.Add("email", "required", "Email is required.")
	case !strings.Contains(email, "@"):
		formErr.Add("email", "invalid", "Email must be a valid email address.")
	}
	if formErr.HasErrors() {
		return nil, formErr
	}

	u, err := h.store.Create(name, email)
	if err != nil {
		return nil, err
	}
	server.AddLogField(r.Context(), "user_id", strconv.Itoa(u.ID))
	return domain.Created(u), nil
}

func (h *Handler) deleteUser(_ http.ResponseWriter, r *http.Request) (any, error) {
	id, err := userID(r)
	if err != nil {
		return nil, err
	}
	if !h.store.Delete(id) {
		return nil, domain.ErrNotFound()
	}
	return nil, nil
}

// getProfile loads the user through a sub-request to the user route and
// decorates it with links. A failed sub-request without an envelope becomes
// error.user.profile_unavailable; other non-envelope responses pass through.
func (h *Handler) getProfile(_ http.ResponseWriter, r *http.Request) (any, error) {
	k, ok := kernel.FromContext(r.Context())
	if !ok {
		return nil, fmt.Errorf("profile: no kernel in request context")
	}

	id := chi.URLParam(r, "id")
	sub, err := http.NewRequest(http.MethodGet, "/api/users/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	resp, err := k.SubRequest(r.Context(), sub)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	env := resp.Envelope
	if env == nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, domain.NewError("error.user.profile_unavailable", "The user profile could not be loaded.").
				WithStatusCode(http.StatusBadGateway).
				WithCause(fmt.Errorf("user sub-request answered %d without an envelope", resp.StatusCode))
		}
		return resp, nil
	}
	if env.IsError() {
		return nil, domain.NewError(env.Code, env.Message).
			WithStatusCode(env.StatusCode).
			WithCause(fmt.Errorf("user sub-request failed"))
	}
	return Profile{
		User: env.Data,
		Links: map[string]string{
			"self": "/api/users/" + id + "/profile",
			"user": "/api/users/" + id,
		},
	}, nil
}

func (h *Handler) admin(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("restkit admin\n"))
}

func userID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, domain.NewError("error.user.invalid_id", "User id must be a positive integer.").
			WithField("id", "invalid", fmt.Sprintf("%q is not a valid user id.", raw))
	}
	return id, nil
}
