package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/feedbackhub/internal/adapters/cache"
	"github.com/zatekoja/feedbackhub/internal/api/handlers"
	"github.com/zatekoja/feedbackhub/internal/application/services"
	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	redisclient "github.com/zatekoja/feedbackhub/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

type stubFeedbackService struct {
	submitted []services.SubmitFeedbackInput
	projects  []*entities.Project
	err       error
}

func (s *stubFeedbackService) Submit(ctx context.Context, project *entities.Project, input services.SubmitFeedbackInput) (*entities.Feedback, error) {
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperrors.NewValidationError("message is required")
	}
	s.submitted = append(s.submitted, input)
	s.projects = append(s.projects, project)

	feedback := &entities.Feedback{
		ID:        "fb-" + strconv.Itoa(len(s.submitted)),
		Name:      input.Name,
		Email:     input.Email,
		Message:   input.Message,
		Rating:    input.Rating,
		Metadata:  input.Metadata,
		CreatedAt: time.Date(2026, 10, 19, 14, 22, 33, 0, time.UTC),
	}
	if project != nil {
		feedback.ProjectID = &project.ID
	}
	return feedback, nil
}

type stubKeyResolver struct {
	projects map[string]*entities.Project
}

func (s *stubKeyResolver) ResolveAPIKey(ctx context.Context, apiKey string) (*entities.Project, error) {
	if project, ok := s.projects[apiKey]; ok && project.IsActive {
		return project, nil
	}
	return nil, apperrors.NewUnauthorizedError("invalid API key")
}

func newKeyResolver() *stubKeyResolver {
	return &stubKeyResolver{projects: map[string]*entities.Project{
		"fbk_live":     {ID: "proj-1", Name: "Docs", IsActive: true},
		"fbk_disabled": {ID: "proj-2", Name: "Old", IsActive: false},
	}}
}

var withDedup = handlers.IngestionProtection{DedupWindow: 24 * time.Hour}

func postFeedback(handler *handlers.FeedbackHandler, body, ip, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body))
	req.RemoteAddr = ip + ":1234"
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	handler.SubmitFeedback(w, req)
	return w
}

func TestFeedbackHandler_SubmitFeedback_Success(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	body := `{"name":"Ada","email":"ada@example.com","message":"Great flow","rating":4,"metadata":{"page":"/pricing"}}`
	w := postFeedback(handler, body, "10.0.0.1", "fbk_live")

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, service.submitted, 1)
	assert.Equal(t, "proj-1", service.projects[0].ID)

	var response entities.Feedback
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Great flow", response.Message)
	require.NotNil(t, response.Rating)
	assert.Equal(t, 4, *response.Rating)
	require.NotNil(t, response.ProjectID)
	assert.Equal(t, "proj-1", *response.ProjectID)
	assert.Equal(t, "/pricing", response.Metadata["page"])
}

func TestFeedbackHandler_SubmitFeedback_Unassigned(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	w := postFeedback(handler, `{"message":"no key"}`, "10.0.0.3", "")

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, service.projects, 1)
	assert.Nil(t, service.projects[0])
}

func TestFeedbackHandler_SubmitFeedback_RejectsBadAPIKey(t *testing.T) {
	for _, key := range []string{"fbk_unknown", "fbk_disabled"} {
		t.Run(key, func(t *testing.T) {
			service := &stubFeedbackService{}
			handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

			w := postFeedback(handler, `{"message":"hello"}`, "10.0.0.4", key)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, service.submitted)
		})
	}
}

func TestFeedbackHandler_SubmitFeedback_Validation(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	w := postFeedback(handler, `{"message":"   "}`, "10.0.0.5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "message is required", response["error"])

	w = postFeedback(handler, `not json`, "10.0.0.5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postFeedback(handler, `{"message":"`+strings.Repeat("x", 5001)+`"}`, "10.0.0.5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, service.submitted)
}

func TestFeedbackHandler_SubmitFeedback_StoreFailureIsGeneric(t *testing.T) {
	service := &stubFeedbackService{err: apperrors.NewInternalError("failed to create feedback", context.DeadlineExceeded)}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	w := postFeedback(handler, `{"message":"hello"}`, "10.0.0.6", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "deadline")
	assert.Contains(t, w.Body.String(), "failed to submit feedback")
}

func TestFeedbackHandler_SubmitFeedback_RateLimit(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	for i := 0; i < 5; i++ {
		w := postFeedback(handler, `{"rating":4,"message":"ok-`+strconv.Itoa(i)+`"}`, "10.0.0.2", "")
		assert.Equal(t, http.StatusCreated, w.Code)
	}

	w := postFeedback(handler, `{"rating":4,"message":"ok-over"}`, "10.0.0.2", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestFeedbackHandler_SubmitFeedback_Duplicate(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, withDedup)

	body := `{"rating":5,"message":"Great flow","email":"test@example.com"}`
	assert.Equal(t, http.StatusCreated, postFeedback(handler, body, "10.0.0.9", "").Code)

	w := postFeedback(handler, body, "10.0.0.9", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate_ignored")
	assert.Len(t, service.submitted, 1)
}

func TestFeedbackHandler_SubmitFeedback_NearDuplicatesAreStored(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, withDedup)

	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"Thanks!"}`, "10.0.0.11", "").Code)
	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"thanks!"}`, "10.0.0.11", "").Code)
	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"Thanks! "}`, "10.0.0.11", "").Code)

	require.Len(t, service.submitted, 3)
	assert.Equal(t, "thanks!", service.submitted[1].Message)
}

func TestFeedbackHandler_SubmitFeedback_DedupDisabledByDefault(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"Thanks!"}`, "10.0.0.12", "").Code)
	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"Thanks!"}`, "10.0.0.12", "").Code)
	assert.Len(t, service.submitted, 2)
}

func TestFeedbackHandler_SubmitFeedback_FailedSubmitCanBeRetried(t *testing.T) {
	service := &stubFeedbackService{err: apperrors.NewInternalError("db down", nil)}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, withDedup)

	assert.Equal(t, http.StatusInternalServerError, postFeedback(handler, `{"message":"retry me"}`, "10.0.0.10", "").Code)

	service.err = nil
	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"retry me"}`, "10.0.0.10", "").Code)
}

func TestFeedbackHandler_SubmitFeedback_InvalidRequestsDoNotUseRateBudget(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusBadRequest, postFeedback(handler, `{"message":""}`, "10.0.0.13", "").Code)
		assert.Equal(t, http.StatusBadRequest, postFeedback(handler, `{"message":"ok","rating":9}`, "10.0.0.13", "").Code)
	}

	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"real feedback"}`, "10.0.0.13", "").Code)
}

func TestFeedbackHandler_SubmitFeedback_ForwardedForFromUntrustedPeerIsIgnored(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"message":"spoof-`+strconv.Itoa(i)+`"}`))
		req.RemoteAddr = "10.0.0.14:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))
		w := httptest.NewRecorder()
		handler.SubmitFeedback(w, req)

		if i < 5 {
			assert.Equal(t, http.StatusCreated, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}
}

func TestFeedbackHandler_SubmitFeedback_TrustedProxyForwardsClient(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), nil, handlers.IngestionProtection{
		TrustedProxies: []string{"172.16.0.0/12"},
	})

	post := func(forwardedFor, message string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"message":"`+message+`"}`))
		req.RemoteAddr = "172.16.0.2:443"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		handler.SubmitFeedback(w, req)
		return w.Code
	}

	// Spoofed leading entries are skipped: the client is the last untrusted hop
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, post("1.1.1."+strconv.Itoa(i)+", 198.51.100.7, 172.16.0.9", "a-"+strconv.Itoa(i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, post("9.9.9.9, 198.51.100.7", "a-over"))

	// Another client behind the same proxy has its own budget
	assert.Equal(t, http.StatusCreated, post("198.51.100.8", "b-0"))
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := handlers.ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", "", "not-an-ip"})

	require.Error(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.10/32", prefixes[1].String())
}

func TestFeedbackHandler_SubmitFeedback_RedisProtection(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	provider := cache.NewRedisAdapter(redisclient.NewClientFromRedis(rdb))

	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service, newKeyResolver(), provider, withDedup)

	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"first"}`, "10.1.0.1", "").Code)
	assert.Equal(t, http.StatusAccepted, postFeedback(handler, `{"message":"first"}`, "10.1.0.1", "").Code)
	assert.True(t, mr.Exists("feedback:rate:10.1.0.1"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"more-`+strconv.Itoa(i)+`"}`, "10.1.0.1", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, postFeedback(handler, `{"message":"too many"}`, "10.1.0.1", "").Code)

	mr.FastForward(time.Hour + time.Second)
	assert.Equal(t, http.StatusCreated, postFeedback(handler, `{"message":"next hour"}`, "10.1.0.1", "").Code)
	assert.Len(t, service.submitted, 5)
}
