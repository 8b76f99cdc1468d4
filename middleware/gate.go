package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/session"
	"github.com/kasuganosora/neighborly/token"
	"go.uber.org/zap"
)

const (
	userKey    = "auth_user"
	sessionKey = "auth_session"
	resultKey  = "auth_result"
)

// Outcome is the gate's decision for one request.
type Outcome string

const (
	Authenticated Outcome = "authenticated"
	Anonymous     Outcome = "anonymous"
	Rejected      Outcome = "rejected"
)

// Rejection reasons.
const (
	ReasonSessionRevoked = "SESSION_REVOKED_OR_EXPIRED"
	ReasonAccountFrozen  = "ACCOUNT_FROZEN"
	ReasonInternal       = "INTERNAL"
)

// Request is what the gate looks at.
type Request struct {
	Bearer    string
	Route     string // "METHOD /route/:template"
	IP        string
	UserAgent string
}

// Result is the gate's verdict. Err is set for Rejected.
type Result struct {
	Outcome Outcome
	User    *model.User
	Session *model.Session
	Reason  string
	Err     error
}

// GateConfig wires a Gate.
type GateConfig struct {
	Tokens   *token.Service
	Sessions *session.Store
	Accounts *account.Service
	Toucher  *session.Toucher
	Metrics  *Metrics
	Logger   *zap.Logger
	// FrozenAllowed lists the routes a frozen account may still call.
	FrozenAllowed []string
}

// Gate turns an optional bearer token into exactly one identity per request.
// The session row is read from the database on every request; there is no
// cache in front of it.
type Gate struct {
	tokens        *token.Service
	sessions      *session.Store
	accounts      *account.Service
	toucher       *session.Toucher
	metrics       *Metrics
	logger        *zap.Logger
	frozenAllowed map[string]bool
	now           func() time.Time
}

// NewGate creates a Gate.
func NewGate(cfg GateConfig) *Gate {
	allowed := make(map[string]bool, len(cfg.FrozenAllowed))
	for _, r := range cfg.FrozenAllowed {
		allowed[r] = true
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		tokens:        cfg.Tokens,
		sessions:      cfg.Sessions,
		accounts:      cfg.Accounts,
		toucher:       cfg.Toucher,
		metrics:       cfg.Metrics,
		logger:        logger,
		frozenAllowed: allowed,
		now:           time.Now,
	}
}

// RouteKey builds the key used in the frozen allow-list.
func RouteKey(method, fullPath string) string {
	return method + " " + fullPath
}

func rejected(reason string, err error) Result {
	return Result{Outcome: Rejected, Reason: reason, Err: err}
}

// Authenticate decides the request. A missing or unverifiable token is
// anonymous; a verifiable token without a live session is rejected.
func (g *Gate) Authenticate(ctx context.Context, req Request) Result {
	if req.Bearer == "" {
		return Result{Outcome: Anonymous}
	}
	if _, ok := g.tokens.Verify(req.Bearer); !ok {
		return Result{Outcome: Anonymous}
	}

	sess, err := g.sessions.FindByToken(ctx, req.Bearer)
	if errors.Is(err, session.ErrNotFound) {
		return rejected(ReasonSessionRevoked, apperr.Unauthenticated("session revoked or expired"))
	}
	if err != nil {
		return rejected(ReasonInternal, apperr.Internal(err))
	}
	now := g.now()
	if !sess.Live(now) {
		return rejected(ReasonSessionRevoked, apperr.Unauthenticated("session revoked or expired"))
	}

	user, err := g.accounts.FindByID(ctx, sess.UserID)
	if apperr.CodeOf(err) == apperr.CodeNotFound || (err == nil && !user.Active) {
		return rejected(ReasonSessionRevoked, apperr.Unauthenticated("session revoked or expired"))
	}
	if err != nil {
		return rejected(ReasonInternal, err)
	}
	if user.Frozen && !g.frozenAllowed[req.Route] {
		return rejected(ReasonAccountFrozen, apperr.AccountLocked("account is frozen"))
	}

	if g.toucher != nil {
		g.toucher.Touch(session.Activity{
			SessionID: sess.ID,
			UserID:    user.ID,
			IP:        req.IP,
			UserAgent: req.UserAgent,
			At:        now,
		})
	}
	return Result{Outcome: Authenticated, User: user, Session: sess}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Handler runs the gate on every request. Rejected requests stop here;
// anonymous ones continue and are refused by RequireAuth where needed.
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := g.Authenticate(c.Request.Context(), Request{
			Bearer:    BearerToken(c.GetHeader("Authorization")),
			Route:     RouteKey(c.Request.Method, c.FullPath()),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		g.metrics.ObserveGate(res.Outcome, res.Reason)
		c.Set(resultKey, res)

		switch res.Outcome {
		case Rejected:
			if res.Reason == ReasonInternal {
				g.logger.Error("auth gate failure", zap.String("trace_id", GetTraceID(c)), zap.Error(res.Err))
			}
			apperr.Respond(c, res.Err)
			return
		case Authenticated:
			c.Set(userKey, res.User)
			c.Set(sessionKey, res.Session)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(userKey); ok {
		return v.(*model.User)
	}
	return nil
}

// CurrentSession returns the session backing the request, or nil.
func CurrentSession(c *gin.Context) *model.Session {
	if v, ok := c.Get(sessionKey); ok {
		return v.(*model.Session)
	}
	return nil
}

// RequireAuth refuses anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			apperr.Respond(c, apperr.Unauthenticated("authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRole refuses users holding none of roles. It implies RequireAuth.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			apperr.Respond(c, apperr.Unauthenticated("authentication required"))
			return
		}
		if !account.HasAnyRole(u, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": apperr.Body{
				Code: apperr.CodeForbidden, Message: "insufficient role",
			}})
			return
		}
		c.Next()
	}
}
