package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	apperrors "ideaforge-api/pkg/errors"
)

type mockProfiles struct{ mock.Mock }

func (m *mockProfiles) GetByID(ctx context.Context, userID string) (*entity.UserProfile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*entity.UserProfile)
	return p, args.Error(1)
}

func (m *mockProfiles) IncrementExtraSubmissions(ctx context.Context, userID string, delta int) (int64, error) {
	args := m.Called(ctx, userID, delta)
	return args.Get(0).(int64), args.Error(1)
}

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) Create(ctx context.Context, txn *entity.PaymentTransaction) error {
	return m.Called(ctx, txn).Error(0)
}

func (m *mockTransactions) GetBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error) {
	args := m.Called(ctx, sessionID)
	t, _ := args.Get(0).(*entity.PaymentTransaction)
	return t, args.Error(1)
}

// passthroughTx 直接执行回调，记录是否回滚
type passthroughTx struct {
	rolledBack bool
}

func (p *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	p.rolledBack = err != nil
	return err
}

var _ repository.Transactor = (*passthroughTx)(nil)

func completedEvent() CheckoutEvent {
	return CheckoutEvent{
		Type:        EventCheckoutCompleted,
		SessionID:   "cs_test_123",
		UserID:      "7f1c3f9e-2b7a-4f57-9a53-0c1c5b0f7a10",
		PackSize:    3,
		AmountCents: 900,
		Currency:    "usd",
		Raw:         []byte(`{"id":"evt_1"}`),
	}
}

func TestApply_GrantsPack(t *testing.T) {
	profiles, txns, tx := &mockProfiles{}, &mockTransactions{}, &passthroughTx{}
	evt := completedEvent()
	txns.On("Create", mock.Anything, mock.MatchedBy(func(p *entity.PaymentTransaction) bool {
		return p.ProviderSessionID == evt.SessionID && p.PackSize == 3 && p.UserID == evt.UserID && string(p.Payload) == `{"id":"evt_1"}`
	})).Return(nil)
	profiles.On("IncrementExtraSubmissions", mock.Anything, evt.UserID, 3).Return(int64(1), nil)

	out, err := NewService(tx, profiles, txns, "secret").Apply(context.Background(), evt)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.False(t, tx.rolledBack)
	profiles.AssertExpectations(t)
	txns.AssertExpectations(t)
}

func TestApply_DuplicateSessionIsIdempotent(t *testing.T) {
	profiles, txns := &mockProfiles{}, &mockTransactions{}
	txns.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicate)

	out, err := NewService(&passthroughTx{}, profiles, txns, "secret").Apply(context.Background(), completedEvent())
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.False(t, out.Applied)
	profiles.AssertNotCalled(t, "IncrementExtraSubmissions", mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_UnknownProfileRollsBack(t *testing.T) {
	profiles, txns, tx := &mockProfiles{}, &mockTransactions{}, &passthroughTx{}
	txns.On("Create", mock.Anything, mock.Anything).Return(nil)
	profiles.On("IncrementExtraSubmissions", mock.Anything, mock.Anything, 3).Return(int64(0), nil)

	_, err := NewService(tx, profiles, txns, "secret").Apply(context.Background(), completedEvent())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProfileNotFound))
	assert.True(t, tx.rolledBack)
}

func TestApply_StoreFailureIsWrapped(t *testing.T) {
	profiles, txns := &mockProfiles{}, &mockTransactions{}
	txns.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := NewService(&passthroughTx{}, profiles, txns, "secret").Apply(context.Background(), completedEvent())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDatabaseError))
}

func TestApply_IgnoresOtherEventsAndRejectsIncomplete(t *testing.T) {
	svc := NewService(&passthroughTx{}, &mockProfiles{}, &mockTransactions{}, "secret")

	out, err := svc.Apply(context.Background(), CheckoutEvent{Type: "checkout.session.expired"})
	require.NoError(t, err)
	assert.True(t, out.Ignored)

	evt := completedEvent()
	evt.PackSize = 0
	_, err = svc.Apply(context.Background(), evt)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	svc := NewService(nil, nil, nil, "whsec")

	assert.NoError(t, svc.VerifySignature(payload, Sign([]byte("whsec"), payload)))
	assert.ErrorIs(t, svc.VerifySignature(payload, Sign([]byte("other"), payload)), apperrors.ErrSignatureInvalid)
	assert.ErrorIs(t, svc.VerifySignature(payload, "deadbeef"), apperrors.ErrSignatureInvalid)
	assert.ErrorIs(t, svc.VerifySignature([]byte("tampered"), Sign([]byte("whsec"), payload)), apperrors.ErrSignatureInvalid)

	unconfigured := NewService(nil, nil, nil, "")
	assert.ErrorIs(t, unconfigured.VerifySignature(payload, Sign(nil, payload)), apperrors.ErrSignatureInvalid)
}
