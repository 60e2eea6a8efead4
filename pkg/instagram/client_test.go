package instagram

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reelgrab/pkg/errors"
	"reelgrab/pkg/logger"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(15*time.Second, logger.NewTestLogger())

	require.NotNil(t, client)
	assert.Equal(t, 15*time.Second, client.httpClient.Timeout)
	assert.Equal(t, MobileUserAgent, client.Header("User-Agent"))
	assert.Equal(t, Referer, client.Header("Referer"))
}

func TestGetTextSendsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, logger.NewNopLogger())
	client.SetHeader("Sec-Fetch-Dest", "document")
	client.SetSession("sess123", "csrf456")

	body, err := client.GetText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, MobileUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "document", got.Get("Sec-Fetch-Dest"))
	assert.Equal(t, "sessionid=sess123; csrftoken=csrf456", got.Get("Cookie"))
	assert.Equal(t, "csrf456", got.Get("X-CSRFToken"))
}

func TestSetSessionIgnoresEmpty(t *testing.T) {
	client := NewClient(time.Second, logger.NewNopLogger())
	client.SetSession("", "csrf")
	assert.Empty(t, client.Header("Cookie"))
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded; charset=UTF-8", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://www.instagram.com/reel/C1/", r.PostForm.Get("q"))
		assert.Equal(t, "media", r.PostForm.Get("t"))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, logger.NewNopLogger())
	body, err := client.PostForm(context.Background(), server.URL, url.Values{
		"q": {"https://www.instagram.com/reel/C1/"},
		"t": {"media"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errors.ErrorType
	}{
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{http.StatusBadGateway, errors.ErrorTypeServerError},
		{http.StatusForbidden, errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := NewClient(time.Second, logger.NewNopLogger())
			client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{
				handler: func(req *http.Request) (*http.Response, error) {
					return newResponse(tt.status, "nope"), nil
				},
			}})

			_, err := client.GetText(context.Background(), "https://www.instagram.com/p/x/")
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.TypeOf(err))

			var typed *errors.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tt.status, typed.Code)
		})
	}
}

func TestNetworkErrorIsTyped(t *testing.T) {
	client := NewClient(time.Second, logger.NewNopLogger())
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{
		handler: func(req *http.Request) (*http.Response, error) {
			return nil, io.ErrUnexpectedEOF
		},
	}})

	_, err := client.GetText(context.Background(), "https://www.instagram.com/p/x/")
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
}

func TestBodyIsCapped(t *testing.T) {
	client := NewClient(time.Second, logger.NewNopLogger())
	client.maxBodyBytes = 10
	client.SetHTTPClient(&http.Client{Transport: &mockRoundTripper{
		handler: func(req *http.Request) (*http.Response, error) {
			return newResponse(http.StatusOK, strings.Repeat("a", 100)), nil
		},
	}})

	body, err := client.GetText(context.Background(), "https://www.instagram.com/p/x/")
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(5*time.Second, logger.NewNopLogger())
	_, err := client.GetText(ctx, server.URL)
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
}
