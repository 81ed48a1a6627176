package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/model"
	"github.com/enroll/queue-server-go/internal/repository"
	"github.com/enroll/queue-server-go/internal/sms"
	"github.com/enroll/queue-server-go/internal/testutil"
)

const (
	phoneA = "01000000001"
	phoneB = "01000000002"
	phoneC = "01000000003"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg sms.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// inlineTasks runs submitted work synchronously so tests can assert on it.
type inlineTasks struct {
	names []string
	errs  []error
}

func (i *inlineTasks) Submit(name string, fn func(context.Context) error) bool {
	i.names = append(i.names, name)
	i.errs = append(i.errs, fn(context.Background()))
	return true
}

// steppingClock advances one millisecond per call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Millisecond)
		return current
	}
}

type fixture struct {
	svc         *QueueService
	turns       *TurnNotifier
	tasks       *inlineTasks
	sender      *mockSender
	queueRepo   repository.QueueRepository
	settingRepo repository.SettingRepository
}

func newFixture(t *testing.T, smsEnabled bool) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t, smsEnabled)
	queueRepo := repository.NewQueueRepository(db.DB)
	settingRepo := repository.NewSettingRepository(db.DB)

	sender := &mockSender{}
	turns := NewTurnNotifier(queueRepo, settingRepo, sender, "0212345678")
	turns.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	tasks := &inlineTasks{}

	svc := NewQueueService(queueRepo, settingRepo, turns, tasks, smsEnabled).
		WithClock(steppingClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)))

	return &fixture{
		svc:         svc,
		turns:       turns,
		tasks:       tasks,
		sender:      sender,
		queueRepo:   queueRepo,
		settingRepo: settingRepo,
	}
}

func TestQueueService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("first waiter has rank one", func(t *testing.T) {
		f := newFixture(t, false)

		require.NoError(t, f.svc.Register(ctx, "formula", phoneA))

		rank, err := f.svc.Rank(ctx, phoneA)
		require.NoError(t, err)
		assert.Equal(t, &model.Rank{Type: model.QueueTypeFormula, Rank: 1}, rank)
	})

	t.Run("rejects invalid phone", func(t *testing.T) {
		f := newFixture(t, false)

		for _, phone := range []string{"", "0101234567", "01112345678", "010123456789", "010-1234-5678"} {
			err := f.svc.Register(ctx, "formula", phone)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPhone), phone)
		}
	})

	t.Run("rejects unknown queue type", func(t *testing.T) {
		f := newFixture(t, false)

		err := f.svc.Register(ctx, "karting", phoneA)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeUnknownQueue))
	})

	t.Run("phone is checked before queue type", func(t *testing.T) {
		f := newFixture(t, false)

		err := f.svc.Register(ctx, "karting", "bad")
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPhone))
	})

	t.Run("duplicate phone in any queue", func(t *testing.T) {
		f := newFixture(t, false)

		require.NoError(t, f.svc.Register(ctx, "formula", phoneA))

		err := f.svc.Register(ctx, "baja", phoneA)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDuplicatePhone))

		err = f.svc.Register(ctx, "formula", phoneA)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDuplicatePhone))

		overview, err := f.svc.Overview(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, overview[model.QueueTypeFormula].Length)
		assert.Equal(t, 0, overview[model.QueueTypeBaja].Length)
	})
}

func TestQueueService_Rank(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	require.NoError(t, f.svc.Register(ctx, "formula", phoneC))
	require.NoError(t, f.svc.Register(ctx, "formula", phoneA))
	require.NoError(t, f.svc.Register(ctx, "formula", phoneB))

	t.Run("ranks follow arrival regardless of query order", func(t *testing.T) {
		expected := map[string]int{phoneC: 1, phoneA: 2, phoneB: 3}
		for _, phone := range []string{phoneB, phoneA, phoneC, phoneA, phoneB} {
			rank, err := f.svc.Rank(ctx, phone)
			require.NoError(t, err)
			assert.Equal(t, expected[phone], rank.Rank, phone)
		}
	})

	t.Run("absent phone is not found", func(t *testing.T) {
		_, err := f.svc.Rank(ctx, "01099999999")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

		appErr, _ := apperrors.AsAppError(err)
		assert.Equal(t, "등록 대기중인 대회가 없습니다.", appErr.Message)
	})
}

func TestQueueService_Overview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	require.NoError(t, f.svc.Register(ctx, "formula", phoneA))
	require.NoError(t, f.svc.Register(ctx, "baja", phoneB))
	require.NoError(t, f.svc.Register(ctx, "baja", phoneC))

	overview, err := f.svc.Overview(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.QueueSummary{Name: "Formula", Short: "FSK", Length: 1}, overview[model.QueueTypeFormula])
	assert.Equal(t, model.QueueSummary{Name: "Baja", Short: "BSK", Length: 2}, overview[model.QueueTypeBaja])

	require.NoError(t, f.svc.Delete(ctx, "baja", phoneB))

	overview, err = f.svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, overview[model.QueueTypeBaja].Length)
}

func TestQueueService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	require.NoError(t, f.svc.Register(ctx, "formula", phoneB))
	require.NoError(t, f.svc.Register(ctx, "formula", phoneA))

	t.Run("ordered by arrival", func(t *testing.T) {
		entries, err := f.svc.List(ctx, "formula")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, phoneB, entries[0].Phone)
		assert.Equal(t, phoneA, entries[1].Phone)
		assert.Less(t, entries[0].Timestamp, entries[1].Timestamp)
	})

	t.Run("idempotent without writes", func(t *testing.T) {
		first, err := f.svc.List(ctx, "formula")
		require.NoError(t, err)
		second, err := f.svc.List(ctx, "formula")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.svc.List(ctx, "karting")
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeUnknownQueue))
	})
}

func TestQueueService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("missing pair is not found and changes nothing", func(t *testing.T) {
		f := newFixture(t, false)
		require.NoError(t, f.svc.Register(ctx, "formula", phoneA))

		err := f.svc.Delete(ctx, "baja", phoneA)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

		err = f.svc.Delete(ctx, "formula", phoneB)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

		entries, err := f.svc.List(ctx, "formula")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Empty(t, f.tasks.names)
	})

	t.Run("validates input first", func(t *testing.T) {
		f := newFixture(t, false)

		assert.True(t, apperrors.Is(f.svc.Delete(ctx, "formula", "nope"), apperrors.ErrCodeInvalidPhone))
		assert.True(t, apperrors.Is(f.svc.Delete(ctx, "karting", phoneA), apperrors.ErrCodeUnknownQueue))
	})

	t.Run("threshold zero sends nothing", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.svc.Register(ctx, "formula", phoneA))
		require.NoError(t, f.svc.Register(ctx, "formula", phoneB))

		require.NoError(t, f.svc.Delete(ctx, "formula", phoneA))

		assert.Equal(t, []string{"turn-notify:formula"}, f.tasks.names)
		assert.Equal(t, []error{nil}, f.tasks.errs)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("no notifier configured", func(t *testing.T) {
		db := testutil.SetupTestDB(t, false)
		svc := NewQueueService(
			repository.NewQueueRepository(db.DB),
			repository.NewSettingRepository(db.DB),
			nil, nil, false,
		)

		require.NoError(t, svc.Register(ctx, "baja", phoneA))
		assert.NoError(t, svc.Delete(ctx, "baja", phoneA))
	})
}

func TestQueueService_DeleteNotifiesNextWaiter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.svc.Register(ctx, "formula", phoneA))
	require.NoError(t, f.svc.Register(ctx, "formula", phoneB))
	require.NoError(t, f.svc.Register(ctx, "formula", phoneC))

	rank, err := f.svc.Rank(ctx, phoneB)
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Rank)

	require.NoError(t, f.svc.SetSMSThreshold(ctx, 1))

	f.sender.On("Send", mock.Anything, sms.Message{
		To:      phoneB,
		From:    "0212345678",
		Content: "[FSK 2026]\n등록 대기 순서 1번입니다. 등록 부스로 오세요.",
	}).Return(nil).Once()

	require.NoError(t, f.svc.Delete(ctx, "formula", phoneA))

	f.sender.AssertExpectations(t)
	assert.Equal(t, []error{nil}, f.tasks.errs)
}

func TestQueueService_DeleteSendFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.svc.Register(ctx, "baja", phoneA))
	require.NoError(t, f.svc.Register(ctx, "baja", phoneB))
	require.NoError(t, f.svc.Register(ctx, "baja", phoneC))
	require.NoError(t, f.svc.SetSMSThreshold(ctx, 2))

	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg sms.Message) bool {
		return msg.To == phoneC
	})).Return(errors.New("gateway down")).Once()

	err := f.svc.Delete(ctx, "baja", phoneA)
	require.NoError(t, err)

	f.sender.AssertExpectations(t)
	require.Len(t, f.tasks.errs, 1)
	assert.Error(t, f.tasks.errs[0])

	entries, err := f.svc.List(ctx, "baja")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestQueueService_SMSThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects positive value without transport", func(t *testing.T) {
		f := newFixture(t, false)

		err := f.svc.SetSMSThreshold(ctx, 1)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeSMSNotConfigured))

		v, err := f.svc.SMSThreshold(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, v)
	})

	t.Run("zero is always accepted", func(t *testing.T) {
		f := newFixture(t, false)
		assert.NoError(t, f.svc.SetSMSThreshold(ctx, 0))
	})

	t.Run("negative is invalid", func(t *testing.T) {
		f := newFixture(t, true)
		err := f.svc.SetSMSThreshold(ctx, -1)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidSetting))
	})

	t.Run("persists with transport", func(t *testing.T) {
		f := newFixture(t, true)

		require.NoError(t, f.svc.SetSMSThreshold(ctx, 3))

		v, err := f.svc.SMSThreshold(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("floors legacy float values", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.settingRepo.Set(ctx, model.SettingSMS, "2.7"))

		v, err := f.svc.SMSThreshold(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		valid    bool
	}{
		{`0`, 0, true},
		{`3`, 3, true},
		{`"5"`, 5, true},
		{`" 2 "`, 2, true},
		{`4.0`, 4, true},
		{`-1`, 0, false},
		{`1.5`, 0, false},
		{`"abc"`, 0, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`true`, 0, false},
		{`[]`, 0, false},
		{``, 0, false},
		{`99999999`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseThreshold(json.RawMessage(tt.raw))
			if !tt.valid {
				assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidSetting))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}
