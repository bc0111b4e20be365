// Package router wires the HTTP surface: route registration,
// middleware composition, request validation, and the mapping of
// service errors to HTTP status codes.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mbelenkov/shrink/internal/auth"
	"github.com/mbelenkov/shrink/internal/gzippedhttp"
	"github.com/mbelenkov/shrink/internal/ipchecker"
	"github.com/mbelenkov/shrink/internal/logger"
	"github.com/mbelenkov/shrink/internal/models"
	"github.com/mbelenkov/shrink/internal/ratelimit"
	"github.com/mbelenkov/shrink/internal/service"
)

type shortener interface {
	SignUp(ctx context.Context, req models.SignupRequest) (string, error)
	Login(ctx context.Context, req models.LoginRequest) (string, error)
	Shorten(ctx context.Context, userID string, req models.ShortenRequest) (models.ShortenResponse, error)
	UserLinks(ctx context.Context, userID string, page, limit int) (models.UserLinksResponse, error)
	Delete(ctx context.Context, userID, linkID string) error
	Resolve(ctx context.Context, code string) (string, error)
	Stats(ctx context.Context) (models.InternalStatsResponse, error)
	Ping(ctx context.Context) error
}

type authenticator interface {
	Authenticate(h http.Handler) http.Handler
}

// Router holds the handlers of the HTTP API.
type Router struct {
	service   shortener
	validate  *validator.Validate
	ipChecker *ipchecker.IPChecker
}

// Options configures middleware behavior of the router.
type Options struct {
	// AllowedOrigins is the CORS allow-list; "*" allows any origin.
	AllowedOrigins []string

	// AuthRateLimitRPS and AuthRateLimitBurst bound the per-IP request
	// rate of the signup and login endpoints.
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
}

// New builds the chi mux with all routes and middlewares registered.
func New(
	svc shortener,
	theAuth authenticator,
	ipChecker *ipchecker.IPChecker,
	opts Options,
) http.Handler {
	rt := &Router{
		service:   svc,
		validate:  validator.New(),
		ipChecker: ipChecker,
	}

	authLimiter := ratelimit.Middleware(opts.AuthRateLimitRPS, opts.AuthRateLimitBurst)

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
	)

	router.Route(`/api/v1`, func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(authLimiter)
			public.Post(`/users/signup`, rt.PostSignup)
			public.Post(`/users/login`, rt.PostLogin)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(theAuth.Authenticate, gzippedhttp.GzipResponse)
			protected.Post(`/urls/shorten`, rt.PostShorten)
			protected.Get(`/urls`, rt.GetUserURLs)
			protected.Delete(`/urls/{id}`, rt.DeleteURL)
		})

		api.Get(`/internal/stats`, rt.GetInternalStats)
	})

	router.Get(`/ping`, rt.GetPing)
	router.Get(`/{shortCode}`, rt.GetRedirectToOriginalURL)

	return router
}

// PostSignup handles POST /api/v1/users/signup.
func (rt *Router) PostSignup(response http.ResponseWriter, request *http.Request) {
	var req models.SignupRequest
	if !rt.decodeAndValidate(response, request, &req) {
		return
	}

	userID, err := rt.service.SignUp(request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			writeError(response, http.StatusConflict, err.Error())
			return
		}
		writeInternalError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.SignupResponse{UserID: userID})
}

// PostLogin handles POST /api/v1/users/login.
func (rt *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var req models.LoginRequest
	if !rt.decodeAndValidate(response, request, &req) {
		return
	}

	token, err := rt.service.Login(request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(response, http.StatusUnauthorized, err.Error())
			return
		}
		writeInternalError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.LoginResponse{Token: token})
}

// PostShorten handles POST /api/v1/urls/shorten.
func (rt *Router) PostShorten(response http.ResponseWriter, request *http.Request) {
	userID, ok := auth.UserIDFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, "no token provided")
		return
	}

	var req models.ShortenRequest
	if !rt.decodeAndValidate(response, request, &req) {
		return
	}

	result, err := rt.service.Shorten(request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCustomCode):
			writeError(response, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCodeTaken):
			writeError(response, http.StatusConflict, err.Error())
		default:
			writeInternalError(response, err)
		}
		return
	}

	writeJSON(response, http.StatusCreated, result)
}

// GetUserURLs handles GET /api/v1/urls with optional page and limit
// query parameters.
func (rt *Router) GetUserURLs(response http.ResponseWriter, request *http.Request) {
	userID, ok := auth.UserIDFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, "no token provided")
		return
	}

	page := queryInt(request, "page")
	limit := queryInt(request, "limit")

	result, err := rt.service.UserLinks(request.Context(), userID, page, limit)
	if err != nil {
		writeInternalError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, result)
}

// DeleteURL handles DELETE /api/v1/urls/{id}.
func (rt *Router) DeleteURL(response http.ResponseWriter, request *http.Request) {
	userID, ok := auth.UserIDFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, "no token provided")
		return
	}

	linkID := chi.URLParam(request, "id")

	err := rt.service.Delete(request.Context(), userID, linkID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			writeError(response, http.StatusNotFound, "URL not found")
		case errors.Is(err, service.ErrNotOwner):
			writeError(response, http.StatusForbidden, err.Error())
		default:
			writeInternalError(response, err)
		}
		return
	}

	writeJSON(response, http.StatusOK, map[string]string{"message": "URL deleted successfully"})
}

// GetRedirectToOriginalURL handles GET /{shortCode}: it resolves the
// code, counts the click, and redirects to the destination.
func (rt *Router) GetRedirectToOriginalURL(response http.ResponseWriter, request *http.Request) {
	code := chi.URLParam(request, "shortCode")

	destination, err := rt.service.Resolve(request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			writeError(response, http.StatusNotFound, err.Error())
			return
		}
		writeInternalError(response, err)
		return
	}

	http.Redirect(response, request, destination, http.StatusFound)
}

// GetInternalStats handles GET /api/v1/internal/stats. It is only
// served to callers inside the configured trusted subnet.
func (rt *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	if rt.ipChecker.IsTrustedSubnetEmpty() {
		writeError(response, http.StatusForbidden, "forbidden")
		return
	}

	clientIP, err := rt.ipChecker.GetClientIP(request)
	if err != nil || !rt.ipChecker.Check(clientIP) {
		writeError(response, http.StatusForbidden, "forbidden")
		return
	}

	stats, err := rt.service.Stats(request.Context())
	if err != nil {
		writeInternalError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

// GetPing handles GET /ping and reports storage health.
func (rt *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := rt.service.Ping(request.Context()); err != nil {
		writeInternalError(response, err)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// decodeAndValidate decodes the JSON body into target and validates it.
// On failure it writes the 400 response and returns false.
func (rt *Router) decodeAndValidate(
	response http.ResponseWriter,
	request *http.Request,
	target interface{},
) bool {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		writeError(response, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := rt.validate.Struct(target); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			writeInternalError(response, err)
			return false
		}
		writeJSON(response, http.StatusBadRequest, models.ErrorResponse{
			Message: "validation failed",
			Errors:  fieldErrors(validationErrs),
		})
		return false
	}

	return true
}

func fieldErrors(validationErrs validator.ValidationErrors) map[string]string {
	result := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		var reason string
		switch fieldErr.Tag() {
		case "required":
			reason = "is required"
		case "email":
			reason = "must be a valid email address"
		case "url":
			reason = "must be a valid URL"
		case "min":
			reason = fmt.Sprintf("must be at least %s characters", fieldErr.Param())
		case "max":
			reason = fmt.Sprintf("must be at most %s characters", fieldErr.Param())
		default:
			reason = "is invalid"
		}
		result[fieldErr.Field()] = reason
	}

	return result
}

func queryInt(request *http.Request, name string) int {
	value, err := strconv.Atoi(request.URL.Query().Get(name))
	if err != nil {
		return 0
	}

	return value
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding response body:", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{Message: message})
}

func writeInternalError(response http.ResponseWriter, err error) {
	logger.Log.Errorln("internal error:", zap.Error(err))
	writeError(response, http.StatusInternalServerError, "internal server error")
}
