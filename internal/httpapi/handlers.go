// Package httpapi serves the local control API over the command surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/j-veylop/credit-reset-dashboard/internal/apperr"
	"github.com/j-veylop/credit-reset-dashboard/internal/httpapi/response"
	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/accounts"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

// Commands is the part of services.Manager the API exposes.
type Commands interface {
	GetStatus(ctx context.Context) (services.Status, error)
	GetUsage(ctx context.Context, accountID string) (*models.Usage, error)
	ListAccounts() []models.AccountView
	AddAccount(ctx context.Context, name, apiKey string) (models.AccountView, error)
	UpdateAccount(ctx context.Context, id string, u accounts.Update) (models.AccountView, error)
	DeleteAccount(ctx context.Context, id string) error
	GetSchedule(ctx context.Context) (services.ScheduleView, error)
	UpdateSchedule(ctx context.Context, cfg models.ScheduleConfig) (services.ScheduleView, error)
	GetPreferences(ctx context.Context) (models.Preferences, error)
	UpdatePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error)
	ManualReset(ctx context.Context) (scheduler.ManualResult, error)
	GetLogs(ctx context.Context, limit int) ([]models.AuditEntry, error)
	ClearLogs(ctx context.Context) (int64, error)
	GetHistory(ctx context.Context, accountID string, limit int) ([]models.ResetRecord, error)
}

// AddAccountRequest is the body of POST /accounts.
type AddAccountRequest struct {
	Name   string `json:"name" validate:"max=100"`
	APIKey string `json:"apiKey" validate:"required"`
}

// UpdateAccountRequest is the body of PUT /accounts/{id}. Absent fields are
// left unchanged.
type UpdateAccountRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=100"`
	APIKey  *string `json:"apiKey,omitempty" validate:"omitempty,min=1"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// ScheduleRequest is the body of PUT /schedule.
type ScheduleRequest struct {
	Enabled     *bool  `json:"enabled" validate:"required"`
	Timezone    string `json:"timezone" validate:"required,timezone"`
	FirstReset  string `json:"firstReset" validate:"required,hhmm"`
	SecondReset string `json:"secondReset" validate:"required,hhmm"`
}

// PreferencesRequest is the body of PUT /preferences.
type PreferencesRequest struct {
	NotificationsEnabled *bool `json:"notificationsEnabled" validate:"required"`
	AuditRetention       *int  `json:"auditRetention" validate:"required,min=0,max=100000"`
}

// ClearLogsResult reports how many audit entries were removed.
type ClearLogsResult struct {
	Deleted int64 `json:"deleted"`
}

// Handler serves every control API route.
type Handler struct {
	log      *slog.Logger
	cmds     Commands
	validate *validator.Validate
}

// New creates a Handler.
func New(log *slog.Logger, cmds Commands) *Handler {
	return &Handler{
		log:      logger.Or(log),
		cmds:     cmds,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	return v
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.cmds.GetStatus(r.Context())
	if err != nil {
		h.fail(w, r, "httpapi.Status", err)
		return
	}
	render.JSON(w, r, response.OKWithData(st))
}

func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.cmds.GetUsage(r.Context(), r.URL.Query().Get("account"))
	if err != nil {
		h.fail(w, r, "httpapi.Usage", err)
		return
	}
	render.JSON(w, r, response.OKWithData(usage))
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.cmds.ListAccounts()))
}

func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.AddAccount"

	var req AddAccountRequest
	if !h.decode(w, r, op, &req) {
		return
	}

	view, err := h.cmds.AddAccount(r.Context(), req.Name, req.APIKey)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	h.logger(r, op).Info("account added", slog.String("account", view.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(view))
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.UpdateAccount"

	var req UpdateAccountRequest
	if !h.decode(w, r, op, &req) {
		return
	}

	view, err := h.cmds.UpdateAccount(r.Context(), chi.URLParam(r, "id"), accounts.Update{
		Name:    req.Name,
		APIKey:  req.APIKey,
		Enabled: req.Enabled,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	render.JSON(w, r, response.OKWithData(view))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.cmds.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "httpapi.DeleteAccount", err)
		return
	}
	render.JSON(w, r, response.OK())
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	view, err := h.cmds.GetSchedule(r.Context())
	if err != nil {
		h.fail(w, r, "httpapi.GetSchedule", err)
		return
	}
	render.JSON(w, r, response.OKWithData(view))
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.UpdateSchedule"

	var req ScheduleRequest
	if !h.decode(w, r, op, &req) {
		return
	}

	// Both times already passed the hhmm validator.
	first, _ := models.ParseTimeOfDay(req.FirstReset)
	second, _ := models.ParseTimeOfDay(req.SecondReset)

	view, err := h.cmds.UpdateSchedule(r.Context(), models.ScheduleConfig{
		Timezone:    req.Timezone,
		FirstReset:  first,
		SecondReset: second,
		Enabled:     *req.Enabled,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	render.JSON(w, r, response.OKWithData(view))
}

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.cmds.GetPreferences(r.Context())
	if err != nil {
		h.fail(w, r, "httpapi.GetPreferences", err)
		return
	}
	render.JSON(w, r, response.OKWithData(prefs))
}

func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.UpdatePreferences"

	var req PreferencesRequest
	if !h.decode(w, r, op, &req) {
		return
	}

	prefs, err := h.cmds.UpdatePreferences(r.Context(), models.Preferences{
		NotificationsEnabled: *req.NotificationsEnabled,
		AuditRetention:       *req.AuditRetention,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	render.JSON(w, r, response.OKWithData(prefs))
}

func (h *Handler) ManualReset(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.ManualReset"

	res, err := h.cmds.ManualReset(r.Context())
	if err != nil {
		h.fail(w, r, op, err)
		return
	}

	h.logger(r, op).Info("manual reset finished",
		slog.Bool("success", res.Success), slog.String("message", res.Message))
	render.JSON(w, r, response.OKWithData(res))
}

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.GetLogs"

	limit, ok := h.limit(w, r, op)
	if !ok {
		return
	}
	entries, err := h.cmds.GetLogs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	render.JSON(w, r, response.OKWithData(entries))
}

func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	n, err := h.cmds.ClearLogs(r.Context())
	if err != nil {
		h.fail(w, r, "httpapi.ClearLogs", err)
		return
	}
	render.JSON(w, r, response.OKWithData(ClearLogsResult{Deleted: n}))
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.GetHistory"

	limit, ok := h.limit(w, r, op)
	if !ok {
		return
	}
	records, err := h.cmds.GetHistory(r.Context(), r.URL.Query().Get("account"), limit)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	render.JSON(w, r, response.OKWithData(records))
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// decode reads and validates a JSON body, writing the failure response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	log := h.logger(r, op)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "failed to decode request"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		log.Error(msg, logger.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(apperr.CodeInvalidInput, msg))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			h.fail(w, r, op, err)
			return false
		}
		log.Info("invalid request", logger.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return false
	}
	return true
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request, op string) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.fail(w, r, op, apperr.New(apperr.CodeInvalidInput, "limit must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperr.HTTPStatus(err)
	log := h.logger(r, op)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
	} else {
		log.Info("request rejected", logger.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, response.FromError(err))
}
