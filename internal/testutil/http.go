// Package testutil holds shared helpers for handler and service tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// HTTPTestHelper drives a gin router through httptest recorders.
type HTTPTestHelper struct {
	t      *testing.T
	router *gin.Engine
}

// NewHTTPTestHelper creates a helper with a fresh test-mode router.
func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		t:      t,
		router: gin.New(),
	}
}

// Router exposes the underlying router for route registration.
func (h *HTTPTestHelper) Router() *gin.Engine {
	return h.router
}

// GetJSON performs a GET request expecting a JSON response.
func (h *HTTPTestHelper) GetJSON(url string) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, url, nil)
}

// PostJSON performs a POST request with a JSON payload.
func (h *HTTPTestHelper) PostJSON(url string, payload interface{}) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, url, payload)
}

// PatchJSON performs a PATCH request with a JSON payload.
func (h *HTTPTestHelper) PatchJSON(url string, payload interface{}) *httptest.ResponseRecorder {
	return h.do(http.MethodPatch, url, payload)
}

// Delete performs a DELETE request.
func (h *HTTPTestHelper) Delete(url string) *httptest.ResponseRecorder {
	return h.do(http.MethodDelete, url, nil)
}

func (h *HTTPTestHelper) do(method, url string, payload interface{}) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(h.t, err, "Failed to marshal JSON payload")
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(h.t, err, "Failed to create HTTP request")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)
	return recorder
}

// AssertJSONResponse asserts status and unmarshals the JSON body.
func (h *HTTPTestHelper) AssertJSONResponse(recorder *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())

	err := json.Unmarshal(recorder.Body.Bytes(), target)
	require.NoError(h.t, err, "Failed to unmarshal JSON response")
}

// AssertErrorResponse asserts status and that the error field contains the
// given substring.
func (h *HTTPTestHelper) AssertErrorResponse(recorder *httptest.ResponseRecorder, expectedStatus int, expectedErrorSubstring string) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code")

	var errorResponse map[string]interface{}
	err := json.Unmarshal(recorder.Body.Bytes(), &errorResponse)
	require.NoError(h.t, err, "Failed to unmarshal error response")

	errorMessage, exists := errorResponse["error"]
	require.True(h.t, exists, "Expected error field in response")
	require.Contains(h.t, errorMessage, expectedErrorSubstring)
}
