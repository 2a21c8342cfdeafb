package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/netx"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/server/ratelimit"
	"github.com/dmitrijs2005/bankapp/internal/server/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const (
	sessionKey ctxKey = "session"
	userKey    ctxKey = "user"
)

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// safePath is r's path with reset tokens masked, for logs.
func safePath(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, "/reset_password/") {
		return "/reset_password/{token}"
	}
	return r.URL.Path
}

// sensitivePath reports whether failures on path must not reveal details.
func sensitivePath(path string) bool {
	return path == "/login" || strings.HasPrefix(path, "/reset_password")
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := s.clock().Sub(start)

		route := safePath(r)
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(status), elapsed.Seconds())

		s.logger.Info(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"ip", netx.ClientIP(r),
		)
	})
}

// noCache keeps authenticated pages out of browser and proxy caches.
func noCache(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate, private, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

func (s *Server) rateLimit(scope string, limits []ratelimit.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := netx.ClientIP(r)

			res, err := s.limiter.Allow(r.Context(), scope, ip, limits...)

			var rle *ratelimit.RateLimitError
			switch {
			case errors.As(err, &rle):
				s.tooManyRequests(w, r, scope, ip, res, rle)
				return
			case err != nil:
				s.logger.Error(r.Context(), "rate limiter unavailable", "ip", ip, "path", safePath(r), "error", err)
				if sensitivePath(r.URL.Path) {
					writeError(w, http.StatusServiceUnavailable, MsgUnavailable)
					return
				}
			default:
				s.setLimitHeaders(w, res)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) setLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	if res.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(s.clock().Add(res.ResetAfter).Unix(), 10))
}

type rateLimitBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func (s *Server) tooManyRequests(w http.ResponseWriter, r *http.Request, scope, ip string, res ratelimit.Result, rle *ratelimit.RateLimitError) {
	s.sleep(r.Context(), s.penalty)

	s.logger.Warn(r.Context(), "rate limit exceeded", "ip", ip, "path", safePath(r), "limit", rle.Limit.String())
	s.metrics.RateLimited(scope)

	res.Remaining = 0
	s.setLimitHeaders(w, res)
	w.Header().Set("Retry-After", strconv.Itoa(rle.RetryAfterSeconds()))

	sensitive := sensitivePath(r.URL.Path)
	if wantsJSON(r) {
		msg := MsgTooManyRequests
		if sensitive {
			msg = MsgTooManyAttempts
		}
		writeJSON(w, http.StatusTooManyRequests, rateLimitBody{
			Error:      "Rate limit exceeded",
			Message:    msg,
			StatusCode: http.StatusTooManyRequests,
		})
		return
	}

	msg := fmt.Sprintf("Rate limit exceeded: %s", rle.Limit)
	if sensitive {
		msg = MsgTooManyAttempts
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(msg))
}

// requireSession resolves the session cookie to an active user and slides
// the session expiry.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := s.sessions.Load(ctx, r)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				s.fail(w, r, err)
				return
			}
			http.SetCookie(w, s.sessions.ClearCookie())
			s.fail(w, r, common.ErrorUnauthorized)
			return
		}

		user, err := s.users.Account(ctx, sess.UserID)
		if err == nil && user.Status != common.StatusActive {
			err = common.ErrorNotFound
		}
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				s.fail(w, r, err)
				return
			}
			_ = s.sessions.Destroy(ctx, sess.ID)
			http.SetCookie(w, s.sessions.ClearCookie())
			s.fail(w, r, common.ErrorUnauthorized)
			return
		}

		http.SetCookie(w, s.sessions.Cookie(sess))
		noCache(w)

		ctx = context.WithValue(ctx, sessionKey, sess)
		ctx = context.WithValue(ctx, userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := userFrom(r.Context()); u == nil || !u.IsAdmin {
			s.logger.Warn(r.Context(), "admin route refused", "ip", netx.ClientIP(r), "path", safePath(r))
			s.fail(w, r, common.ErrorForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
