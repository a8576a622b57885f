package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/auth"
	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

type authFixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
}

func newAuthFixture(t *testing.T, backend http.HandlerFunc) *authFixture {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	client, err := apiclient.New(srv.URL + "/api")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")

	svc := auth.NewService(auth.NewAPIRepository(client), auth.SessionStore{}, nil)
	handler := auth.NewHandler(nil, svc, sessions, csrf)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
			require.NoError(t, sessions.Commit(req.Context(), w, sess))
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return &authFixture{router: r, sessions: sessions, redis: mr}
}

func (f *authFixture) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatalf("no session cookie")
	return nil
}

func TestLoginFlow(t *testing.T) {
	token := accessToken(t, time.Hour)
	fixture := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var creds auth.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "ACME", creds.TenantCode)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.Tokens{AccessToken: token, RefreshToken: "r1", TokenType: "Bearer"})
	})

	first := fixture.do(t, http.MethodGet, "/auth/csrf", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	anon := sessionCookie(t, first)

	rec := fixture.do(t, http.MethodPost, "/auth/login", `{"username":"maria","password":"pw","tenantCode":"ACME"}`, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signedIn := sessionCookie(t, rec)
	require.NotEqual(t, anon.Value, signedIn.Value)
	require.False(t, fixture.redis.Exists("console:session:"+anon.Value))

	var body struct {
		Principal auth.Principal `json:"principal"`
		CSRFToken string         `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "maria", body.Principal.Username)
	require.NotEmpty(t, body.CSRFToken)

	me := fixture.do(t, http.MethodGet, "/auth/me", "", signedIn)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), `"tenantCode":"ACME"`)

	company := fixture.do(t, http.MethodPost, "/auth/company", `{"companyId":"7"}`, signedIn)
	require.Equal(t, http.StatusOK, company.Code)
	require.Contains(t, company.Body.String(), `"companyId":"7"`)

	out := fixture.do(t, http.MethodPost, "/auth/logout", "", signedIn)
	require.Equal(t, http.StatusNoContent, out.Code)
	after := fixture.do(t, http.MethodGet, "/auth/me", "", signedIn)
	require.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestLoginMapsBackendStatus(t *testing.T) {
	cases := map[int]int{
		http.StatusUnauthorized:        http.StatusUnauthorized,
		http.StatusLocked:              http.StatusLocked,
		http.StatusNotFound:            http.StatusNotFound,
		http.StatusInternalServerError: http.StatusBadGateway,
	}
	for backendStatus, want := range cases {
		fixture := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(backendStatus)
		})
		rec := fixture.do(t, http.MethodPost, "/auth/login", `{"username":"maria","password":"pw","tenantCode":"ACME"}`, nil)
		require.Equal(t, want, rec.Code, "backend status %d", backendStatus)
	}
}

func TestLoginValidatesBody(t *testing.T) {
	fixture := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("backend must not be called")
	})
	rec := fixture.do(t, http.MethodPost, "/auth/login", `{"username":"maria"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"Password":"required"`)
	require.Contains(t, rec.Body.String(), `"TenantCode":"required"`)
}

func TestMeRequiresOperator(t *testing.T) {
	fixture := newAuthFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	rec := fixture.do(t, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"redirect":"/auth/login"`)
}
