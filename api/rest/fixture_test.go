package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/api/rest"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/message"
	mw "github.com/kasuganosora/neighborly/middleware"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
	"github.com/kasuganosora/neighborly/scheduler"
	"github.com/kasuganosora/neighborly/session"
	"github.com/kasuganosora/neighborly/testutil"
	"github.com/kasuganosora/neighborly/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	db       *gorm.DB
	router   *gin.Engine
	accounts *account.Service
	sched    *scheduler.Scheduler
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	hooks := hook.NewHookCenter()

	accounts := account.New(db, hooks, 4)
	store := session.NewStore(db)
	tokens := token.New("rest-secret", time.Hour)
	sessions := session.NewService(store, tokens, accounts, hooks, logger)
	toucher := session.NewToucher(db, c, time.Minute, logger)
	t.Cleanup(toucher.Stop)
	msgs := message.New(db, ps, logger)
	metrics := mw.NewMetrics()
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	gate := mw.NewGate(mw.GateConfig{
		Tokens:        tokens,
		Sessions:      store,
		Accounts:      accounts,
		Toucher:       toucher,
		Metrics:       metrics,
		Logger:        logger,
		FrozenAllowed: rest.FrozenAllowList,
	})

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger), metrics.Middleware())
	rest.Mount(r, rest.Deps{
		DB:              db,
		Accounts:        accounts,
		Sessions:        sessions,
		Friends:         relation.NewFriendService(db, hooks, 720*time.Hour),
		Blocks:          relation.NewBlockService(db, hooks),
		Contacts:        relation.NewContactService(db, msgs, hooks, logger),
		Facade:          relation.NewFacade(db),
		Messages:        msgs,
		PubSub:          ps,
		Scheduler:       sched,
		Gate:            gate,
		Metrics:         metrics,
		MetricsAllowIPs: []string{"127.0.0.1"},
		Logger:          logger,
	})
	return &server{db: db, router: r, accounts: accounts, sched: sched}
}

func (s *server) do(method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// user creates an account and logs it in, returning the user and its token.
func (s *server) user(t *testing.T, email string, opts ...func(*model.User)) (*model.User, string) {
	t.Helper()
	u := testutil.CreateUser(t, s.db, email, opts...)
	return u, s.login(t, email)
}

func (s *server) login(t *testing.T, email string) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/session", "", map[string]string{
		"email": email, "password": testutil.TestPassword, "device": "test",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *server) freeze(t *testing.T, id int64) {
	t.Helper()
	_, err := s.accounts.Freeze(context.Background(), id)
	require.NoError(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out.Error.Code
}

// idOf reads body[key]["id"].
func idOf(t *testing.T, w *httptest.ResponseRecorder, key string) int64 {
	t.Helper()
	obj, ok := decode(t, w)[key].(map[string]interface{})
	require.True(t, ok, "missing %q in %s", key, w.Body.String())
	return int64(obj["id"].(float64))
}

func newRequestFrom(method, path, ip string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func serve(s *server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}
