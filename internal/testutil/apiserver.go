package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"todo/internal/service"
)

// NewAPIHandler serves the remote todo API over HTTP on top of svc, so the
// real HTTP client and the CLI binary can be tested end to end.
// Errors that are *service.APIError keep their status and detail; any other
// error is a 500.
func NewAPIHandler(svc service.Service) http.Handler {
	h := &apiHandler{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /login/google", h.loginGoogle)
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("GET /users/me", h.me)
	mux.HandleFunc("PUT /users/profile", h.updateProfile)
	mux.HandleFunc("GET /todos/", h.listTasks)
	mux.HandleFunc("POST /todos/", h.createTask)
	mux.HandleFunc("PUT /todos/{id}", h.updateTask)
	mux.HandleFunc("DELETE /todos/{id}", h.deleteTask)
	return mux
}

type apiHandler struct {
	svc service.Service
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *apiHandler) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	tok, err := h.svc.Login(r.Context(), body.Email, body.Password)
	reply(w, tok, err)
}

func (h *apiHandler) loginGoogle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &body) {
		return
	}
	tok, err := h.svc.LoginGoogle(r.Context(), body.Token)
	reply(w, tok, err)
}

func (h *apiHandler) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !decode(w, r, &body) {
		return
	}
	user, err := h.svc.Register(r.Context(), body.Email, body.Password)
	reply(w, map[string]any{"info": user}, err)
}

func (h *apiHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), bearer(r))
	reply(w, user, err)
}

func (h *apiHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var update service.ProfileUpdate
	if !decode(w, r, &update) {
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), bearer(r), update)
	reply(w, user, err)
}

func (h *apiHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	skip, err1 := queryInt(r, "skip", 0)
	limit, err2 := queryInt(r, "limit", 100)
	if err := errors.Join(err1, err2); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tasks, err := h.svc.ListTasks(r.Context(), bearer(r), skip, limit)
	reply(w, tasks, err)
}

func (h *apiHandler) createTask(w http.ResponseWriter, r *http.Request) {
	var task service.NewTask
	if !decode(w, r, &task) {
		return
	}
	created, err := h.svc.CreateTask(r.Context(), bearer(r), task)
	reply(w, created, err)
}

func (h *apiHandler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var update service.TaskUpdate
	if !decode(w, r, &update) {
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), bearer(r), id, update)
	reply(w, task, err)
}

func (h *apiHandler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := h.svc.DeleteTask(r.Context(), bearer(r), id)
	reply(w, task, err)
}

func bearer(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body: "+err.Error())
		return false
	}
	return true
}

func reply(w http.ResponseWriter, v any, err error) {
	if err != nil {
		var apiErr *service.APIError
		if errors.As(err, &apiErr) {
			writeDetail(w, apiErr.StatusCode, apiErr.Detail)
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
