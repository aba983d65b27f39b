package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mentorlab/mentor-server/internal/model"
)

// MockUserStore mocks the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByExternalID(ctx context.Context, externalID string) (model.User, error) {
	args := m.Called(ctx, externalID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

// Create echoes the input user when the mock is configured with Return(nil, err).
func (m *MockUserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return user, args.Error(1)
	}
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) UpdateTier(ctx context.Context, id uuid.UUID, tier model.Tier, premiumUntil *time.Time) error {
	args := m.Called(ctx, id, tier, premiumUntil)
	return args.Error(0)
}

func (m *MockUserStore) Retire(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMentorStore mocks the MentorStore interface
type MockMentorStore struct {
	mock.Mock
}

// Create echoes the input mentor when the mock is configured with Return(nil, err).
func (m *MockMentorStore) Create(ctx context.Context, mentor model.Mentor) (model.Mentor, error) {
	args := m.Called(ctx, mentor)
	if args.Get(0) == nil {
		return mentor, args.Error(1)
	}
	return args.Get(0).(model.Mentor), args.Error(1)
}

func (m *MockMentorStore) GetByID(ctx context.Context, id uuid.UUID) (model.Mentor, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Mentor), args.Error(1)
}

func (m *MockMentorStore) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (model.Mentor, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Mentor), args.Error(1)
}

// MockTurnStore mocks the TurnStore interface
type MockTurnStore struct {
	mock.Mock
}

// Append echoes the input turn when the mock is configured with Return(nil, err).
func (m *MockTurnStore) Append(ctx context.Context, turn model.Turn) (model.Turn, error) {
	args := m.Called(ctx, turn)
	if args.Get(0) == nil {
		return turn, args.Error(1)
	}
	return args.Get(0).(model.Turn), args.Error(1)
}

func (m *MockTurnStore) GetByIDs(ctx context.Context, mentorID uuid.UUID, ids []uuid.UUID) ([]model.Turn, error) {
	args := m.Called(ctx, mentorID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Turn), args.Error(1)
}

func (m *MockTurnStore) GetByMentorID(ctx context.Context, mentorID uuid.UUID) ([]model.Turn, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Turn), args.Error(1)
}

func (m *MockTurnStore) GetUnembedded(ctx context.Context, limit int) ([]model.Turn, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Turn), args.Error(1)
}

func (m *MockTurnStore) MarkEmbedded(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockTurnStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockVectorStore mocks the VectorStore interface
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, mentorID, turnID uuid.UUID, vector []float32, meta model.VectorMeta) error {
	args := m.Called(ctx, mentorID, turnID, vector, meta)
	return args.Error(0)
}

func (m *MockVectorStore) Search(ctx context.Context, mentorID uuid.UUID, queryVector []float32, k int) ([]model.Hit, error) {
	args := m.Called(ctx, mentorID, queryVector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Hit), args.Error(1)
}

func (m *MockVectorStore) Remove(ctx context.Context, mentorID, turnID uuid.UUID) error {
	args := m.Called(ctx, mentorID, turnID)
	return args.Error(0)
}

// MockAIClient mocks the AIClient interface
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	args := m.Called(ctx, system, user, maxTokens)
	return args.String(0), args.Error(1)
}

func (m *MockAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockGate mocks the Gate interface
type MockGate struct {
	mock.Mock
}

func (m *MockGate) CheckTurn(ctx context.Context, user model.User) (model.Decision, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.Decision), args.Error(1)
}

func (m *MockGate) ReleaseTurn(ctx context.Context, user model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockGate) CheckMentorCreation(ctx context.Context, user model.User) (model.Decision, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(model.Decision), args.Error(1)
}

func (m *MockGate) ReleaseMentorCreation(ctx context.Context, user model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockStorage mocks the Storage interface
type MockStorage struct {
	mock.Mock

	uploaded []byte
}

func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, _ := io.ReadAll(reader)
	m.uploaded = data
	args := m.Called(ctx, key, mock.Anything)
	return args.Error(0)
}

func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockGenerator mocks the PersonaGenerator interface
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, background string) (model.PersonaDraft, error) {
	args := m.Called(ctx, background)
	return args.Get(0).(model.PersonaDraft), args.Error(1)
}

// fakeEncryptor is a transparent stand-in: ciphertext is the plaintext with a
// marker prefix. Specific ciphertexts can be made to fail authentication.
type fakeEncryptor struct {
	failDecrypt map[string]bool
}

func (f *fakeEncryptor) Encrypt(plaintext, contextKey []byte) ([]byte, error) {
	return append([]byte("enc:"), plaintext...), nil
}

func (f *fakeEncryptor) Decrypt(ciphertext, contextKey []byte) ([]byte, error) {
	if f.failDecrypt != nil && f.failDecrypt[string(ciphertext)] {
		return nil, model.ErrDecryptionFailed
	}
	if !bytes.HasPrefix(ciphertext, []byte("enc:")) {
		return nil, model.ErrDecryptionFailed
	}
	return ciphertext[4:], nil
}
