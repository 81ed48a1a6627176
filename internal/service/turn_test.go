package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/model"
	"github.com/enroll/queue-server-go/internal/sms"
)

func TestTurnMessage(t *testing.T) {
	assert.Equal(t,
		"[BSK 2025]\n등록 대기 순서 3번입니다. 등록 부스로 오세요.",
		TurnMessage("BSK", 2025, 3),
	)
}

func TestTurnNotifier_NotifyNth(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture, queueType string, phones ...string) {
		t.Helper()
		for _, p := range phones {
			require.NoError(t, f.svc.Register(ctx, queueType, p))
		}
	}

	t.Run("threshold below one skips", func(t *testing.T) {
		f := newFixture(t, true)
		seed(t, f, "formula", phoneA)

		require.NoError(t, f.turns.NotifyNth(ctx, model.QueueTypeFormula))
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("queue shorter than threshold skips", func(t *testing.T) {
		f := newFixture(t, true)
		seed(t, f, "formula", phoneA, phoneB)
		require.NoError(t, f.svc.SetSMSThreshold(ctx, 3))

		require.NoError(t, f.turns.NotifyNth(ctx, model.QueueTypeFormula))
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("targets the n-th waiter of the given type only", func(t *testing.T) {
		f := newFixture(t, true)
		seed(t, f, "formula", phoneA)
		seed(t, f, "baja", phoneB, phoneC)
		require.NoError(t, f.svc.SetSMSThreshold(ctx, 2))

		f.sender.On("Send", mock.Anything, sms.Message{
			To:      phoneC,
			From:    "0212345678",
			Content: TurnMessage("BSK", 2026, 2),
		}).Return(nil).Once()

		require.NoError(t, f.turns.NotifyNth(ctx, model.QueueTypeBaja))
		f.sender.AssertExpectations(t)
	})

	t.Run("send failure is returned", func(t *testing.T) {
		f := newFixture(t, true)
		seed(t, f, "formula", phoneA)
		require.NoError(t, f.svc.SetSMSThreshold(ctx, 1))

		f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()

		err := f.turns.NotifyNth(ctx, model.QueueTypeFormula)
		assert.ErrorContains(t, err, "timeout")
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeExternal))
	})

	t.Run("unreadable setting is returned", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.settingRepo.Set(ctx, model.SettingSMS, "many"))

		err := f.turns.NotifyNth(ctx, model.QueueTypeFormula)
		assert.Error(t, err)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}
