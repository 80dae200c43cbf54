package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/snaplink/snaplink/internal/errx"
	"github.com/snaplink/snaplink/internal/httpx"
	"github.com/snaplink/snaplink/internal/qr"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL           string `json:"url"`
	CustomAlias   string `json:"custom_alias,omitempty"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
	Password      string `json:"password,omitempty"`
}

// CreateLinkResponse represents the JSON response for a created link.
type CreateLinkResponse struct {
	ID                string `json:"id"`
	ShortCode         string `json:"short_code"`
	OriginalURL       string `json:"original_url"`
	ShortURL          string `json:"short_url"`
	ExpiresAt         string `json:"expires_at"`
	PasswordProtected bool   `json:"password_protected"`
	CreatedAt         string `json:"created_at"`
}

// AnalyticsResponse represents the JSON response for link analytics.
type AnalyticsResponse struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	TotalClicks int64  `json:"total_clicks"`
}

// LinkStatsResponse represents one entry in the admin listing.
type LinkStatsResponse struct {
	ShortCode         string `json:"short_code"`
	OriginalURL       string `json:"original_url"`
	ExpiresAt         string `json:"expires_at"`
	PasswordProtected bool   `json:"password_protected"`
	TotalClicks       int64  `json:"total_clicks"`
	CreatedAt         string `json:"created_at"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) shortURL(code string) string {
	return fmt.Sprintf("%s/%s", h.baseURL, code)
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.URL == "" {
		logger.WarnContext(ctx, "request validation failed",
			"custom_alias", req.CustomAlias,
		)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		OriginalURL:   req.URL,
		CustomAlias:   req.CustomAlias,
		ExpiresInDays: req.ExpiresInDays,
		Password:      req.Password,
	})
	if err != nil {
		h.handleCreateError(ctx, w, err)
		return
	}

	resp := CreateLinkResponse{
		ID:                link.ID.String(),
		ShortCode:         link.Code,
		OriginalURL:       link.OriginalURL,
		ShortURL:          h.shortURL(link.Code),
		ExpiresAt:         formatExpiry(link.ExpiresAt),
		PasswordProtected: link.PasswordProtected(),
		CreatedAt:         link.CreatedAt.Format(time.RFC3339),
	}

	logger.InfoContext(ctx, "link created successfully",
		"link_id", link.ID.String(),
		"short_code", link.Code,
		"custom_alias", req.CustomAlias != "",
		"expires", link.ExpiresAt != nil,
	)

	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// ResolveLink handles GET requests to resolve a short code and redirect to
// the original URL. A password gate reads the password query parameter.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid code format",
			"code", code,
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	suppliedPassword := r.URL.Query().Get("password")

	originalURL, err := h.service.Resolve(ctx, code, suppliedPassword)
	if err != nil {
		h.handleResolveError(ctx, w, err, code)
		return
	}

	logger.InfoContext(ctx, "code resolved successfully",
		"code", code,
		"original_url", originalURL,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// Analytics handles GET requests for per-code click analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	analytics, err := h.service.Analytics(ctx, code)
	if err != nil {
		h.handleLookupError(ctx, w, err, code)
		return
	}

	logger.InfoContext(ctx, "analytics reported",
		"code", code,
		"total_clicks", analytics.TotalClicks,
	)

	httpx.WriteJSON(w, http.StatusOK, AnalyticsResponse{
		ShortCode:   analytics.Code,
		OriginalURL: analytics.OriginalURL,
		TotalClicks: analytics.TotalClicks,
	})
}

// ListLinks handles GET requests for the admin listing of all links with
// their click counts, newest first.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	stats, err := h.service.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list links",
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		httpx.WriteError(w, httpx.ErrorKindToStatus(errx.KindOf(err)),
			httpx.ErrorKindToCode(errx.KindOf(err)),
			"Unable to list links at this time", nil)
		return
	}

	resp := make([]LinkStatsResponse, 0, len(stats))
	for _, s := range stats {
		resp = append(resp, LinkStatsResponse{
			ShortCode:         s.Code,
			OriginalURL:       s.OriginalURL,
			ExpiresAt:         formatExpiry(s.ExpiresAt),
			PasswordProtected: s.PasswordProtected(),
			TotalClicks:       s.TotalClicks,
			CreatedAt:         s.CreatedAt.Format(time.RFC3339),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// DeleteLink handles DELETE requests. Deleting an unknown code succeeds.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	if err := h.service.Delete(ctx, code); err != nil {
		logger.ErrorContext(ctx, "failed to delete link",
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
			"code", code,
		)
		httpx.WriteError(w, httpx.ErrorKindToStatus(errx.KindOf(err)),
			httpx.ErrorKindToCode(errx.KindOf(err)),
			"Unable to delete this link at this time", nil)
		return
	}

	logger.InfoContext(ctx, "link deleted", "code", code)

	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// QRCode handles GET requests for a PNG QR image of the short URL.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	// Unknown codes 404 instead of encoding a dead short URL.
	if _, err := h.service.GetByCode(ctx, code); err != nil {
		h.handleLookupError(ctx, w, err, code)
		return
	}

	png, err := qr.PNG(h.shortURL(code))
	if err != nil {
		logger.ErrorContext(ctx, "failed to render qr code",
			"error", err.Error(),
			"code", code,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to render QR code at this time", nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		logger.ErrorContext(ctx, "failed to write qr response", "error", err.Error())
	}
}

// handleCreateError handles errors from the Create service method.
func (h *Handler) handleCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		h.logger.WarnContext(ctx, "alias conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This alias is already taken",
			map[string]string{
				"hint": "Try a different custom alias or let us generate one for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create short link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleResolveError handles errors from the Resolve service method.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Gone:
		h.logger.WarnContext(ctx, "link expired", logAttrs...)
		httpx.WriteError(w, http.StatusGone, "expired",
			"this link has expired", nil)

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, "password required", logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "password_required",
			"this link is password protected",
			map[string]string{
				"hint": "Add ?password=yourpassword to the URL",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid code", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// handleLookupError handles errors from non-redirect lookups (analytics, QR).
func (h *Handler) handleLookupError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid code", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error looking up link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to look up this link at this time", nil)
	}
}

// validateCodeFormat performs basic code format validation for the HTTP
// layer. This is a lightweight check before calling the service layer.
func validateCodeFormat(code string) error {
	if code == "" {
		return errors.New("invalid link")
	}

	if len(code) > MaxCodeLength {
		return errors.New("invalid link")
	}
	return nil
}
