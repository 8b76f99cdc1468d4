// Package integration runs the whole service behind a real HTTP listener with
// Redis-backed cache and pub/sub, audit and hooks wired as in main.go.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	apirest "github.com/kasuganosora/neighborly/api/rest"
	"github.com/kasuganosora/neighborly/audit"
	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/message"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/relation"
	"github.com/kasuganosora/neighborly/scheduler"
	"github.com/kasuganosora/neighborly/session"
	"github.com/kasuganosora/neighborly/testutil"
	"github.com/kasuganosora/neighborly/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// streamKeepalive is short so stream tests observe revocation quickly.
const streamKeepalive = 100 * time.Millisecond

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB       *gorm.DB
	Redis    *miniredis.Miniredis
	Cache    cache.Cache
	PubSub   cache.PubSub
	Audit    *audit.Service
	Toucher  *session.Toucher
	Sessions *session.Service
	Sched    *scheduler.Scheduler
	Server   *httptest.Server
	URL      string
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	mr := miniredis.RunT(t)
	cacheCfg := cache.CacheConfig{RedisAddr: mr.Addr()}
	c, err := cache.NewCache(cacheCfg)
	require.NoError(t, err)
	pubsub, err := cache.NewPubSub(cacheCfg)
	require.NoError(t, err)
	logger := zap.NewNop()

	// ---- Hooks / Audit ----
	hooks := hook.NewHookCenter()
	auditSvc := audit.New(db, logger)
	auditSvc.Subscribe(hooks)

	// ---- Services ----
	accounts := account.New(db, hooks, 4)
	store := session.NewStore(db)
	tokens := token.New("integration-test-secret", 72*time.Hour)
	sessions := session.NewService(store, tokens, accounts, hooks, logger)
	toucher := session.NewToucher(db, c, time.Minute, logger)
	msgs := message.New(db, pubsub, logger)
	metrics := mw.NewMetrics()
	sched := scheduler.New(logger)

	gate := mw.NewGate(mw.GateConfig{
		Tokens:        tokens,
		Sessions:      store,
		Accounts:      accounts,
		Toucher:       toucher,
		Metrics:       metrics,
		Logger:        logger,
		FrozenAllowed: apirest.FrozenAllowList,
	})

	// ---- Gin HTTP Server ----
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger), metrics.Middleware())
	r.Use(mw.NewRateLimiter(ctx, rate.Limit(1000), 2000).Handler())
	apirest.Mount(r, apirest.Deps{
		DB:              db,
		Accounts:        accounts,
		Sessions:        sessions,
		Friends:         relation.NewFriendService(db, hooks, 720*time.Hour),
		Blocks:          relation.NewBlockService(db, hooks),
		Contacts:        relation.NewContactService(db, msgs, hooks, logger),
		Facade:          relation.NewFacade(db),
		Messages:        msgs,
		PubSub:          pubsub,
		StreamKeepalive: streamKeepalive,
		Scheduler:       sched,
		Gate:            gate,
		Metrics:         metrics,
		Logger:          logger,
	})

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:       db,
		Redis:    mr,
		Cache:    c,
		PubSub:   pubsub,
		Audit:    auditSvc,
		Toucher:  toucher,
		Sessions: sessions,
		Sched:    sched,
		Server:   server,
		URL:      server.URL,
	}
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts
}

// Close shuts down the server and flushes the background writers. Safe to
// call more than once.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Sched.Stop()
	ts.Toucher.Stop()
	ts.Audit.Stop(context.Background())
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string, headers ...string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token, headers...)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// Status performs the request and returns only its status code.
func Status(t *testing.T, resp *http.Response) int {
	t.Helper()
	resp.Body.Close()
	return resp.StatusCode
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Account helpers ---

// Account is a registered, logged-in test user.
type Account struct {
	ID    int64
	Email string
	Token string
}

// Register creates an account through the API and logs it in.
func (ts *TestServer) Register(t *testing.T, prefix string, extra ...map[string]string) *Account {
	t.Helper()
	email := UniqueID(prefix) + "@example.com"
	body := map[string]string{
		"email":        email,
		"password":     testutil.TestPassword,
		"display_name": prefix,
	}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	resp := ts.PostJSON(t, "/api/users", body, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	ReadJSON(t, resp, &created)
	return &Account{ID: created.User.ID, Email: email, Token: ts.Login(t, email)}
}

// Login returns a fresh token for email.
func (ts *TestServer) Login(t *testing.T, email string) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/session", map[string]string{
		"email":    email,
		"password": testutil.TestPassword,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &result)
	require.NotEmpty(t, result.Token)
	return result.Token
}

var idCounter int64

// UniqueID returns a unique string with the given prefix.
func UniqueID(prefix string) string {
	n := atomic.AddInt64(&idCounter, 1)
	return fmt.Sprintf("%s%d_%d", prefix, n, time.Now().UnixNano()%100000)
}
