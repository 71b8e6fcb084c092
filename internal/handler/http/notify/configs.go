package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/respond"
)

// ConfigService is the channel config store as seen by the handlers.
type ConfigService interface {
	List(ctx context.Context) ([]*entity.ChannelConfig, error)
	Add(ctx context.Context, cfg *entity.ChannelConfig) error
	Update(ctx context.Context, cfg *entity.ChannelConfig) error
	SetEnabled(ctx context.Context, key entity.ChannelKey, enabled bool) error
	Delete(ctx context.Context, key entity.ChannelKey) error
	SupportedTypes() []entity.ChannelTypeInfo
}

type empty struct{}

type ListConfigsHandler struct{ Svc ConfigService }

func (h ListConfigsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ConfigDTO, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, toDTO(cfg))
	}
	respond.JSON(w, http.StatusOK, out)
}

type CreateConfigHandler struct{ Svc ConfigService }

func (h CreateConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg, ok := decodeConfig(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Add(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, empty{})
}

type UpdateConfigHandler struct{ Svc ConfigService }

func (h UpdateConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg, ok := decodeConfig(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Update(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, empty{})
}

// DeleteConfigHandler removes the config named by ?name=&type=.
type DeleteConfigHandler struct{ Svc ConfigService }

func (h DeleteConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := parseKey(q.Get("name"), q.Get("type"))
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, empty{})
}

type EnableConfigHandler struct{ Svc ConfigService }

func (h EnableConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	key, err := parseKey(req.Name, req.Type)
	if err != nil {
		badRequest(w, err)
		return
	}
	if req.Enabled == nil {
		badRequest(w, errors.New("enabled is required"))
		return
	}
	if err := h.Svc.SetEnabled(r.Context(), key, *req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, empty{})
}

// TypesHandler serves the static channel type catalog.
type TypesHandler struct{ Svc ConfigService }

func (h TypesHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, h.Svc.SupportedTypes())
}

/* ───── ヘルパ ───── */

// decodeConfig reads a ConfigDTO body. On failure the response has already
// been written.
func decodeConfig(w http.ResponseWriter, r *http.Request) (*entity.ChannelConfig, bool) {
	var dto ConfigDTO
	if err := respond.DecodeJSON(r, &dto); err != nil {
		badRequest(w, err)
		return nil, false
	}
	cfg, err := fromDTO(dto)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return cfg, true
}

func parseKey(name, rawType string) (entity.ChannelKey, error) {
	if strings.TrimSpace(name) == "" {
		return entity.ChannelKey{}, errors.New("name is required")
	}
	t, err := entity.ParseChannelType(rawType)
	if err != nil {
		return entity.ChannelKey{}, err
	}
	return entity.ChannelKey{Name: name, Type: t}, nil
}
