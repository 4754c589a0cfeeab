package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sudhakar086/nasa-python-sgp4/internal/httputil"
	"github.com/sudhakar086/nasa-python-sgp4/internal/session"
)

const maxBodyBytes = 64 << 10

type sessionHandlers struct {
	registry *session.Registry
	logger   *slog.Logger
}

type createResponse struct {
	ID   string       `json:"id"`
	Page session.Page `json:"page"`
}

// create opens a page; the controller submits its defaults immediately.
func (h *sessionHandlers) create(w http.ResponseWriter, r *http.Request) {
	id, c := h.registry.Create()
	httputil.WriteJSON(w, http.StatusCreated, createResponse{ID: id, Page: c.Snapshot()})
}

func (h *sessionHandlers) get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.Snapshot())
}

func (h *sessionHandlers) remove(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Remove(r.PathValue("id")) {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandlers) submit(w http.ResponseWriter, r *http.Request) {
	var req session.Inputs
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, func(c *session.Controller) error { return c.Submit(req.Line1, req.Line2) })
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *sessionHandlers) edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, func(c *session.Controller) error { return c.Edit(req.Field, req.Value) })
}

type saveRequest struct {
	Name string `json:"name"`
}

func (h *sessionHandlers) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, func(c *session.Controller) error { return c.Save(req.Name) })
}

func (h *sessionHandlers) openList(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, (*session.Controller).OpenList)
}

func (h *sessionHandlers) closeList(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, (*session.Controller).CloseList)
}

func (h *sessionHandlers) ackAlert(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, (*session.Controller).AckAlert)
}

func (h *sessionHandlers) load(w http.ResponseWriter, r *http.Request) {
	rid, ok := recordID(w, r)
	if !ok {
		return
	}
	h.act(w, r, func(c *session.Controller) error { return c.Load(rid) })
}

func (h *sessionHandlers) delete(w http.ResponseWriter, r *http.Request) {
	rid, ok := recordID(w, r)
	if !ok {
		return
	}
	h.act(w, r, func(c *session.Controller) error { return c.Delete(rid) })
}

// act applies an intent to the session named in the path and responds with
// the page as it stands once the intent has been handled.
func (h *sessionHandlers) act(w http.ResponseWriter, r *http.Request, intent func(*session.Controller) error) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	err := intent(c)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, c.Snapshot())
	case errors.Is(err, session.ErrClosed):
		httputil.WriteError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrUnknownRecord), errors.Is(err, session.ErrNoStore):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrUnknownField):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("session intent failed", "component", "api", "session", r.PathValue("id"), "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *sessionHandlers) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return c, true
}

func recordID(w http.ResponseWriter, r *http.Request) (int, bool) {
	rid, err := strconv.Atoi(r.PathValue("rid"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "record id must be an integer")
		return 0, false
	}
	return rid, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
