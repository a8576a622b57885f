package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	client, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return client
}

func TestDoAttachesTokenAndScope(t *testing.T) {
	var seen *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}, WithTokenSource(StaticToken("abc")))

	ctx := WithCompany(WithTenant(context.Background(), "tenant-1"), "42")
	var out []struct {
		ID int64 `json:"id"`
	}
	err := client.Get(ctx, "/permissions/user/u1", url.Values{"tenantId": {"tenant-1"}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "/api/permissions/user/u1", seen.URL.Path)
	require.Equal(t, "tenant-1", seen.URL.Query().Get("tenantId"))
	require.Equal(t, "Bearer abc", seen.Header.Get("Authorization"))
	require.Equal(t, "tenant-1", seen.Header.Get(HeaderTenantID))
	require.Equal(t, "42", seen.Header.Get(HeaderCompanyID))
}

func TestDoMapsStatusToFailureClass(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   error
		msg    string
	}{
		{http.StatusUnauthorized, ``, ErrAuth, "status 401"},
		{http.StatusForbidden, `{"message":"forbidden"}`, ErrAuth, "forbidden"},
		{http.StatusBadRequest, `{"username":"required","email":"invalid"}`, ErrValidation, "invalid, required"},
		{http.StatusNotFound, `{"error":"Role not found"}`, ErrNotFound, "Role not found"},
		{http.StatusInternalServerError, `boom`, ErrTransport, "boom"},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		err := client.Get(context.Background(), "/roles", nil, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, tc.kind), "status %d", tc.status)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, tc.status, apiErr.StatusCode)
		require.Equal(t, tc.msg, apiErr.Message)
	}
}

func TestDoInvokesUnauthorizedHandler(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithUnauthorizedHandler(func(context.Context) { calls++ }))

	err := client.Delete(context.Background(), "/permissions/user/u/permission/1", nil)
	require.ErrorIs(t, err, ErrAuth)
	require.Equal(t, 1, calls)
}

func TestDoTokenFailureIsAuthError(t *testing.T) {
	hit := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}, WithTokenSource(TokenFunc(func(context.Context) (string, error) {
		return "", errors.New("no session")
	})))

	err := client.Get(context.Background(), "/roles", nil, nil)
	require.ErrorIs(t, err, ErrAuth)
	require.False(t, hit)
}

func TestDoNonJSONResponseIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})
	var out []int
	err := client.Get(context.Background(), "/roles", nil, &out)
	require.ErrorIs(t, err, ErrTransport)
}

func TestDoEmptyBodyAndPostPayload(t *testing.T) {
	var body, method string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	})
	var out map[string]any
	err := client.Put(context.Background(), "/users/1", nil, map[string]any{"roleIds": []int{1, 2}}, &out)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, http.MethodPut, method)
	require.JSONEq(t, `{"roleIds":[1,2]}`, body)
}

func TestDoUnreachableServer(t *testing.T) {
	client, err := New("http://127.0.0.1:1/api")
	require.NoError(t, err)
	err = client.Get(context.Background(), "/roles", nil, nil)
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, "could not reach the server", UserMessage(err))
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)
}

func TestCloneOverridesTokenSource(t *testing.T) {
	var auth []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
	}, WithTokenSource(StaticToken("access")))

	refresh := client.Clone(WithTokenSource(StaticToken("refresh")))
	require.NoError(t, refresh.Post(context.Background(), "/auth/refresh", nil, nil, nil))
	require.NoError(t, client.Get(context.Background(), "/roles", nil, nil))
	require.Equal(t, []string{"Bearer refresh", "Bearer access"}, auth)
}
