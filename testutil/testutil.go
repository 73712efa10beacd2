package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test for the rest of the test.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	t.Setenv("GO_ENV", "test")
	RequireTestEnvironment(t)
}

// FormFile is a file part of a multipart request.
type FormFile struct {
	Field    string
	Filename string
	Content  []byte
}

// MultipartBody encodes fields and files as multipart/form-data and returns
// the body with its content type.
func MultipartBody(t *testing.T, fields map[string]string, files ...FormFile) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		require.NoError(t, err)
		_, err = part.Write(f.Content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// Envelope is the JSON body every API response is wrapped in.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// DecodeEnvelope parses a response body, and the data member into data when it is not nil.
func DecodeEnvelope(t *testing.T, body []byte, data interface{}) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), "response should be valid JSON: %s", body)
	if data != nil {
		require.NotEmpty(t, env.Data, "response has no data: %s", body)
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// ErrorCode returns the error code of a failed response, or "" on success.
func (e Envelope) ErrorCode() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// BearerRequest builds a request carrying an access token.
func BearerRequest(t *testing.T, method, url, token string, body *bytes.Buffer, contentType string) *http.Request {
	t.Helper()

	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, body)
	}
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}
