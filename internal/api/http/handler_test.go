package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mentorlab/mentor-server/internal/model"
	"github.com/mentorlab/mentor-server/internal/service"
	"github.com/mentorlab/mentor-server/internal/testutil"
	"github.com/mentorlab/mentor-server/internal/token"
)

// MockConversationService mocks the ConversationService interface
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) SendMessage(ctx context.Context, externalID, message string) (service.ConversationResult, error) {
	args := m.Called(ctx, externalID, message)
	return args.Get(0).(service.ConversationResult), args.Error(1)
}

func (m *MockConversationService) DeleteTurn(ctx context.Context, externalID string, turnID uuid.UUID) error {
	args := m.Called(ctx, externalID, turnID)
	return args.Error(0)
}

// MockMentorService mocks the MentorService interface
type MockMentorService struct {
	mock.Mock
}

func (m *MockMentorService) CreateMentor(ctx context.Context, externalID, background, goal string) (model.MentorProfile, error) {
	args := m.Called(ctx, externalID, background, goal)
	return args.Get(0).(model.MentorProfile), args.Error(1)
}

func (m *MockMentorService) GetActiveMentor(ctx context.Context, externalID string) (model.MentorProfile, error) {
	args := m.Called(ctx, externalID)
	return args.Get(0).(model.MentorProfile), args.Error(1)
}

// MockExportService mocks the ExportService interface
type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportTranscript(ctx context.Context, externalID string) (string, error) {
	args := m.Called(ctx, externalID)
	return args.String(0), args.Error(1)
}

type apiMocks struct {
	conversation *MockConversationService
	mentor       *MockMentorService
	export       *MockExportService
}

func newTestRouter(t *testing.T) (http.Handler, *apiMocks, string) {
	t.Helper()
	m := &apiMocks{
		conversation: new(MockConversationService),
		mentor:       new(MockMentorService),
		export:       new(MockExportService),
	}

	tokens := token.NewJWT("test-secret")
	serviceToken, err := tokens.GenerateServiceToken("telegram-gateway")
	require.NoError(t, err)

	handler := NewHandler(m.conversation, m.mentor, m.export, testutil.MakeNoopLogger())
	router := NewRouter(handler, tokens, testutil.MakeNoopLogger())
	return router, m, serviceToken
}

func doRequest(router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	router, _, serviceToken := newTestRouter(t)

	t.Run("missing token", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/turns", "", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/api/v1/turns", "garbage", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("healthz needs no token", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid token passes auth", func(t *testing.T) {
		// Reaches binding validation rather than being rejected at auth.
		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSendMessage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.conversation.On("SendMessage", mock.Anything, "tg:100", "hello").
			Return(service.ConversationResult{Reply: "hi there", Persisted: true}, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken,
			map[string]string{"user_id": "tg:100", "message": "hello"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp sendMessageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "hi there", resp.Reply)
		assert.True(t, resp.Persisted)
	})

	t.Run("missing message field", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)

		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken,
			map[string]string{"user_id": "tg:100"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		m.conversation.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quota exhausted maps to 402", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.conversation.On("SendMessage", mock.Anything, "tg:100", "hello").
			Return(service.ConversationResult{}, &model.EntitlementError{Reason: model.DenyQuotaExhausted})

		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken,
			map[string]string{"user_id": "tg:100", "message": "hello"})

		require.Equal(t, http.StatusPaymentRequired, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "quota_exhausted", resp["reason"])
	})

	t.Run("generation failure maps to 502", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.conversation.On("SendMessage", mock.Anything, "tg:100", "hello").
			Return(service.ConversationResult{}, model.ErrGenerationFailed)

		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken,
			map[string]string{"user_id": "tg:100", "message": "hello"})

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("unknown user maps to 404", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.conversation.On("SendMessage", mock.Anything, "tg:404", "hello").
			Return(service.ConversationResult{}, model.ErrNotFound)

		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken,
			map[string]string{"user_id": "tg:404", "message": "hello"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unexpected error maps to 500", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.conversation.On("SendMessage", mock.Anything, "tg:100", "hello").
			Return(service.ConversationResult{}, errors.New("boom"))

		w := doRequest(router, http.MethodPost, "/api/v1/turns", serviceToken,
			map[string]string{"user_id": "tg:100", "message": "hello"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDeleteTurn(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		turnID := uuid.New()
		m.conversation.On("DeleteTurn", mock.Anything, "tg:100", turnID).Return(nil)

		w := doRequest(router, http.MethodDelete, "/api/v1/turns/"+turnID.String()+"?user_id=tg:100", serviceToken, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("invalid turn id", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)

		w := doRequest(router, http.MethodDelete, "/api/v1/turns/not-a-uuid?user_id=tg:100", serviceToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		m.conversation.AssertNotCalled(t, "DeleteTurn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing user_id", func(t *testing.T) {
		router, _, serviceToken := newTestRouter(t)

		w := doRequest(router, http.MethodDelete, "/api/v1/turns/"+uuid.NewString(), serviceToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown turn maps to 404", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		turnID := uuid.New()
		m.conversation.On("DeleteTurn", mock.Anything, "tg:100", turnID).Return(model.ErrNotFound)

		w := doRequest(router, http.MethodDelete, "/api/v1/turns/"+turnID.String()+"?user_id=tg:100", serviceToken, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCreateMentor(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		profile := model.MentorProfile{
			ID:          uuid.New(),
			Name:        "Elena",
			Age:         42,
			Personality: "direct but warm",
			Greeting:    "Hi!",
		}
		m.mentor.On("CreateMentor", mock.Anything, "tg:100", "I code in Python", "learn Go").
			Return(profile, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/mentors", serviceToken,
			map[string]string{"user_id": "tg:100", "background": "I code in Python", "goal": "learn Go"})

		require.Equal(t, http.StatusCreated, w.Code)
		var resp mentorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Elena", resp.Name)
		assert.Equal(t, profile.ID.String(), resp.ID)
	})

	t.Run("invalid background maps to 400", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.mentor.On("CreateMentor", mock.Anything, "tg:100", "x", "").
			Return(model.MentorProfile{}, model.ErrInvalidBackground)

		w := doRequest(router, http.MethodPost, "/api/v1/mentors", serviceToken,
			map[string]string{"user_id": "tg:100", "background": "x"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mentor quota maps to 402", func(t *testing.T) {
		router, m, serviceToken := newTestRouter(t)
		m.mentor.On("CreateMentor", mock.Anything, "tg:100", "bg", "").
			Return(model.MentorProfile{}, &model.EntitlementError{Reason: model.DenySubscriptionRequired})

		w := doRequest(router, http.MethodPost, "/api/v1/mentors", serviceToken,
			map[string]string{"user_id": "tg:100", "background": "bg"})

		require.Equal(t, http.StatusPaymentRequired, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "subscription_required", resp["reason"])
	})
}

func TestGetActiveMentor(t *testing.T) {
	router, m, serviceToken := newTestRouter(t)

	t.Run("success", func(t *testing.T) {
		m.mentor.On("GetActiveMentor", mock.Anything, "tg:100").
			Return(model.MentorProfile{ID: uuid.New(), Name: "Elena"}, nil)

		w := doRequest(router, http.MethodGet, "/api/v1/mentors/active?user_id=tg:100", serviceToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing user_id", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/v1/mentors/active", serviceToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportTranscript(t *testing.T) {
	router, m, serviceToken := newTestRouter(t)
	m.export.On("ExportTranscript", mock.Anything, "tg:100").
		Return("exports/u/m-123", nil)

	w := doRequest(router, http.MethodPost, "/api/v1/exports", serviceToken,
		map[string]string{"user_id": "tg:100"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "exports/u/m-123", resp["key"])
}
