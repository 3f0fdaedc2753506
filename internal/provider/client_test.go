package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fzdarsky/hiveauth/internal/provider"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, opts ...provider.Option) *provider.Client {
	t.Helper()
	c, err := provider.New("", append([]provider.Option{provider.WithEndpoint(url)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_Endpoint(t *testing.T) {
	assert.Equal(t, "https://cognito-idp.eu-west-1.amazonaws.com/", provider.Endpoint("eu-west-1"))

	_, err := provider.New("")
	assert.Error(t, err)

	_, err = provider.New("eu-west-1")
	assert.NoError(t, err)
}

func TestClient_InitiateAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-amz-json-1.1", r.Header.Get("Content-Type"))
		assert.Equal(t, "AWSCognitoIdentityProviderService.InitiateAuth", r.Header.Get("X-Amz-Target"))

		var in cognito.InitiateAuthInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, cognito.AuthFlowUserSRP, in.AuthFlow)
		assert.Equal(t, "client-id", in.ClientID)
		assert.Equal(t, "alice", in.AuthParameters["USERNAME"])

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_, _ = io.WriteString(w, `{
			"ChallengeName": "PASSWORD_VERIFIER",
			"ChallengeParameters": {"SALT": "ab01", "SRP_B": "ff", "SECRET_BLOCK": "c2I=", "USER_ID_FOR_SRP": "sub"},
			"Session": "sess-1"
		}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	out, err := c.InitiateAuth(context.Background(), cognito.NewUserSRPAuth("client-id", "alice", "abcd"))
	require.NoError(t, err)
	assert.Equal(t, cognito.ChallengePasswordVerifier, out.ChallengeName)
	assert.Equal(t, "sess-1", out.Session)
	assert.Equal(t, "sub", out.ChallengeParameters["USER_ID_FOR_SRP"])
}

func TestClient_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Amzn-ErrorType", "NotAuthorizedException:http://internal.amazon.com/coral/")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"__type":"com.amazonaws#NotAuthorizedException","message":"Incorrect username or password."}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.RespondToAuthChallenge(context.Background(), cognito.NewSMSMFAResponse("cid", "s", "u", "1"))
	require.Error(t, err)

	var perr *cognito.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, cognito.ErrTypeNotAuthorized, perr.Code())
	assert.Equal(t, "Incorrect username or password.", perr.Message)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
}

func TestClient_EmptyResponseBody(t *testing.T) {
	var target string
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		target = r.Header.Get("X-Amz-Target")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	err := c.UpdateDeviceStatus(context.Background(), &cognito.UpdateDeviceStatusInput{
		AccessToken: "a", DeviceKey: "k", DeviceRememberedStatus: cognito.DeviceRemembered,
	})
	require.NoError(t, err)
	assert.Equal(t, "AWSCognitoIdentityProviderService.UpdateDeviceStatus", target)
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.ConfirmDevice(context.Background(), &cognito.ConfirmDeviceInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

// flakyTransport fails the first n round trips with err, then delegates.
type flakyTransport struct {
	failures int32
	err      error
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return f.next.RoundTrip(req)
}

func TestClient_RetriesDialErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"AuthenticationResult":{"IdToken":"id","AccessToken":"a","ExpiresIn":3600}}`)
	}))
	defer server.Close()

	ft := &flakyTransport{
		failures: 2,
		err:      &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
		next:     http.DefaultTransport,
	}
	c := newTestClient(t, server.URL,
		provider.WithHTTPClient(&http.Client{Transport: ft}),
		provider.WithRetry(3, time.Millisecond))

	out, err := c.InitiateAuth(context.Background(), cognito.NewRefreshAuth("cid", "r"))
	require.NoError(t, err)
	assert.Equal(t, "id", out.AuthenticationResult.IDToken)
	assert.Equal(t, int32(3), ft.calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	ft := &flakyTransport{
		failures: 100,
		err:      &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	c := newTestClient(t, "http://127.0.0.1:1/",
		provider.WithHTTPClient(&http.Client{Transport: ft}),
		provider.WithRetry(3, time.Millisecond))

	_, err := c.InitiateAuth(context.Background(), cognito.NewRefreshAuth("cid", "r"))
	require.Error(t, err)
	assert.Equal(t, int32(4), ft.calls.Load())
}

func TestClient_DoesNotRetrySentRequests(t *testing.T) {
	ft := &flakyTransport{failures: 100, err: io.ErrUnexpectedEOF}
	c := newTestClient(t, "http://127.0.0.1:1/",
		provider.WithHTTPClient(&http.Client{Transport: ft}),
		provider.WithRetry(3, time.Millisecond))

	_, err := c.InitiateAuth(context.Background(), cognito.NewRefreshAuth("cid", "r"))
	require.Error(t, err)
	assert.Equal(t, int32(1), ft.calls.Load())

	var perr *cognito.ProviderError
	assert.False(t, errors.As(err, &perr))
}

func TestClient_CancelDuringBackoff(t *testing.T) {
	ft := &flakyTransport{
		failures: 100,
		err:      &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	c := newTestClient(t, "http://127.0.0.1:1/",
		provider.WithHTTPClient(&http.Client{Transport: ft}),
		provider.WithRetry(3, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.InitiateAuth(ctx, cognito.NewRefreshAuth("cid", "r"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), ft.calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL, provider.WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.InitiateAuth(context.Background(), cognito.NewRefreshAuth("cid", "r"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var perr *cognito.ProviderError
	assert.False(t, errors.As(err, &perr), "a timeout is a transport failure, not a provider answer")
}
