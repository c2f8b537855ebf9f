// controller/query_controller_test.go
package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/veildata/veil/controller"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
	mock_service "github.com/veildata/veil/test/service_mock"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "veil-controller-test")
	if err != nil {
		panic(err)
	}
	logger.InitLogger(dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func setupQueryRouter(qc *controller.QueryController, withCaller bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if withCaller {
		r.Use(func(c *gin.Context) {
			c.Set("caller", &model.Caller{Key: "caller-1", Name: "Test Caller", Active: true})
		})
	}
	api := r.Group("/")
	qc.RegisterRoutes(api)
	return r
}

func postQuery(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/query", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer some.signed.token")
	router.ServeHTTP(w, req)
	return w
}

func TestExecuteQuery_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQueryService := mock_service.NewMockIQueryService(ctrl)
	router := setupQueryRouter(controller.NewQueryController(mockQueryService), true)

	mean := 8012.4
	mockQueryService.EXPECT().
		ExecuteQuery(gomock.Any(), gomock.Any(), "some.signed.token", gomock.Any(), gomock.Any()).
		Return(&model.QueryResult{
			Results:     map[string]*float64{"mean": &mean},
			Epsilon:     1.0,
			Category:    "health",
			Purpose:     "research",
			RecordCount: 29,
		}, model.RateLimitDecision{Allowed: true, Limit: 30, Remaining: 12, ResetTime: 1_700_000_060_000}, nil)

	w := postQuery(router, `{"category":"health","aggregations":["mean"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "12", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000060", w.Header().Get("X-RateLimit-Reset"))

	var body model.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "health", body.Category)
	assert.Equal(t, int64(29), body.RecordCount)
	require.NotNil(t, body.Results["mean"])
	assert.Equal(t, mean, *body.Results["mean"])
}

func TestExecuteQuery_MissingCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQueryService := mock_service.NewMockIQueryService(ctrl)
	router := setupQueryRouter(controller.NewQueryController(mockQueryService), false)

	w := postQuery(router, `{"category":"health"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExecuteQuery_InvalidBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQueryService := mock_service.NewMockIQueryService(ctrl)
	router := setupQueryRouter(controller.NewQueryController(mockQueryService), true)

	// Category is required.
	w := postQuery(router, `{"epsilon":1.0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteQuery_FailureStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"token malformed", veil_errors.ErrTokenMalformed, http.StatusForbidden},
		{"token expired", veil_errors.ErrTokenExpired, http.StatusForbidden},
		{"token revoked", veil_errors.ErrTokenRevoked, http.StatusForbidden},
		{"verification failed", veil_errors.ErrVerificationFailed, http.StatusForbidden},
		{"missing consent", veil_errors.ErrMissingConsent, http.StatusForbidden},
		{"insufficient scopes", veil_errors.ErrInsufficientScopes.WithReason("lacks: aggregate"), http.StatusForbidden},
		{"unknown category", veil_errors.ErrUnknownCategory, http.StatusBadRequest},
		{"invalid parameter", veil_errors.ErrInvalidParameter, http.StatusBadRequest},
		{"internal", veil_errors.ErrInternalServer, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockQueryService := mock_service.NewMockIQueryService(ctrl)
			router := setupQueryRouter(controller.NewQueryController(mockQueryService), true)

			mockQueryService.EXPECT().
				ExecuteQuery(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(nil, model.RateLimitDecision{Allowed: true, Limit: 30, Remaining: 3}, tc.err)

			w := postQuery(router, `{"category":"health"}`)
			assert.Equal(t, tc.status, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["code"])
		})
	}
}

func TestExecuteQuery_RateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQueryService := mock_service.NewMockIQueryService(ctrl)
	router := setupQueryRouter(controller.NewQueryController(mockQueryService), true)

	mockQueryService.EXPECT().
		ExecuteQuery(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, model.RateLimitDecision{
			Allowed:    false,
			Limit:      30,
			Remaining:  0,
			ResetTime:  1_700_000_060_000,
			RetryAfter: 42,
		}, veil_errors.ErrRateLimited)

	w := postQuery(router, `{"category":"health"}`)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body["code"])
}
