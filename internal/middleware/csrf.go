package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"
	"github.com/gorilla/securecookie"

	"sales-analytics/internal/config"
	"sales-analytics/internal/errors"
	"sales-analytics/internal/observability"
)

const (
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF rejects unsafe requests (uploads) that lack a valid token. Safe
// requests pass and get a token for the forms they render.
func CSRF(cfg config.SecurityConfig, secure bool, key []byte, logger *slog.Logger) Middleware {
	if !cfg.EnableCSRF {
		return func(next http.Handler) http.Handler { return next }
	}

	protect := csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.FieldName(CSRFFieldName),
		csrf.RequestHeader(CSRFHeaderName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(originHosts(cfg.AllowedOrigins)),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appErr := errors.Wrap(csrf.FailureReason(r), errors.CodeForbidden, "Invalid or missing CSRF token")
			errors.WriteError(w, r, logger, appErr, observability.GetRequestID(r.Context()))
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// CSRFToken returns the token for r, or "" when protection is off.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

// CSRFKey returns the configured key, or a random one when none is set.
// A random key invalidates outstanding tokens on restart.
func CSRFKey(cfg config.SecurityConfig) (key []byte, generated bool, err error) {
	if cfg.CSRFKey != "" {
		key, err = cfg.CSRFKeyBytes()
		return key, false, err
	}

	key = securecookie.GenerateRandomKey(32)
	if key == nil {
		return nil, true, fmt.Errorf("generate csrf key: no entropy")
	}
	return key, true, nil
}

func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
