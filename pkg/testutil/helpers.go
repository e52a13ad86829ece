package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewHTTPRequest creates a JSON request for handler tests. A nil body sends
// no payload.
func NewHTTPRequest(method, path string, body any) *http.Request {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(MustJSONBytes(body))
	}

	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// WithTenantHeader sets the header read by httputil.TenantMiddleware.
func WithTenantHeader(req *http.Request, tenantID string) *http.Request {
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	return req
}

// ExecuteRequest serves req on handler and returns the recorded response.
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// ErrorResponse is the error half of the httputil response envelope.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details"`
	Retryable bool              `json:"retryable"`
}

// AssertErrorCode checks status and error code of an error envelope and
// returns the decoded error for further assertions.
func AssertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	AssertStatus(t, rr, status)

	var body struct {
		Success bool           `json:"success"`
		Error   *ErrorResponse `json:"error"`
	}
	ParseJSONBody(t, rr, &body)
	require.False(t, body.Success)
	require.NotNil(t, body.Error, "response carries no error: %s", rr.Body.String())
	assert.Equal(t, code, body.Error.Code)
	return *body.Error
}

// ParseJSONBody parses the response body into the target
func ParseJSONBody(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	err := json.Unmarshal(rr.Body.Bytes(), target)
	require.NoError(t, err, "failed to parse response body: %s", rr.Body.String())
}

// MustJSONBytes marshals the value to JSON bytes or panics
func MustJSONBytes(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
