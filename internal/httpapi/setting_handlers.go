package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"

	"github.com/sportscouncil/backoffice/internal/settings"
)

// SettingRequest is the JSON body for PUT /v1/settings/{key}.
type SettingRequest struct {
	Value string `json:"value"`
}

// SettingResponse is one stored setting. Secret values are masked.
type SettingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) settingRoutes() {
	s.group.Get("/settings", s.handleSettingList,
		okapi.DocSummary("List stored settings (secrets masked)"),
		okapi.DocTags("Settings"),
		okapi.DocResponse([]SettingResponse{}),
	)
	s.group.Put("/settings/{key}", s.handleSettingPut,
		okapi.DocSummary("Store a setting; secret keys are encrypted at rest"),
		okapi.DocTags("Settings"),
		okapi.DocPathParam("key", "string", "Setting key"),
		okapi.DocRequestBody(SettingRequest{}),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	s.group.Delete("/settings/{key}", s.handleSettingDelete,
		okapi.DocSummary("Delete a setting"),
		okapi.DocTags("Settings"),
		okapi.DocPathParam("key", "string", "Setting key"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
}

func (s *Server) handleSettingList(c *okapi.Context) error {
	list, err := s.deps.Settings.List(c.Context())
	if err != nil {
		s.logger.ErrorContext(c.Context(), "listing settings failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("listing settings failed")
	}
	resp := make([]SettingResponse, len(list))
	for i, st := range list {
		resp[i] = SettingResponse{
			Key:       st.Key,
			Value:     st.Value,
			Encrypted: st.Encrypted,
			UpdatedAt: st.UpdatedAt,
		}
	}
	return c.OK(resp)
}

func (s *Server) handleSettingPut(c *okapi.Context) error {
	key := c.Param("key")
	var req SettingRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Value == "" {
		return c.AbortBadRequest("value is required")
	}

	if err := s.deps.Settings.Set(c.Context(), key, req.Value); err != nil {
		s.logger.ErrorContext(c.Context(), "storing setting failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("storing setting failed")
	}

	s.logger.InfoContext(c.Context(), "setting stored via api",
		slog.String("user_id", c.GetString("userID")),
		slog.String("key", key),
	)
	return c.OK(map[string]string{"status": "stored", "key": key})
}

func (s *Server) handleSettingDelete(c *okapi.Context) error {
	key := c.Param("key")
	if err := s.deps.Settings.Delete(c.Context(), key); err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorBody{Error: "setting not found"})
		}
		s.logger.ErrorContext(c.Context(), "deleting setting failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("deleting setting failed")
	}
	return c.OK(map[string]string{"status": "deleted", "key": key})
}
