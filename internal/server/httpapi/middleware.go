package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const claimsKey ctxKey = "claims"

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// authenticate rejects requests without a valid bearer token and stores the
// token claims in the request context.
func authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get(common.AuthorizationHeaderName)
			if !strings.HasPrefix(h, common.BearerPrefix) {
				respondStatus(w, r, http.StatusUnauthorized, "missing token")
				return
			}

			claims, err := tokens.ParseToken(strings.TrimPrefix(h, common.BearerPrefix))
			if err != nil {
				status, msg := statusFor(err)
				respondStatus(w, r, status, msg)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logging.ContextWith(ctx, "user", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := claimsFrom(r.Context())
		if c == nil || c.Role != models.RoleAdmin {
			respondStatus(w, r, http.StatusForbidden, common.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			ctx := logging.ContextWith(r.Context(), "request_id", middleware.GetReqID(r.Context()))

			next.ServeHTTP(ww, r.WithContext(ctx))

			log.Info(ctx, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start))
		})
	}
}
