package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/metrics"
	"github.com/enroll/queue-server-go/internal/model"
	"github.com/enroll/queue-server-go/internal/repository"
	"github.com/enroll/queue-server-go/internal/sms"
	"github.com/enroll/queue-server-go/internal/util"
)

type SMSSender interface {
	Send(ctx context.Context, msg sms.Message) error
}

// TurnNotifier tells the waiter who is now N-th in line that their turn is
// coming, N being the sms setting.
type TurnNotifier struct {
	queueRepo   repository.QueueRepository
	settingRepo repository.SettingRepository
	sender      SMSSender
	from        string
	now         func() time.Time
}

func NewTurnNotifier(
	queueRepo repository.QueueRepository,
	settingRepo repository.SettingRepository,
	sender SMSSender,
	from string,
) *TurnNotifier {
	return &TurnNotifier{
		queueRepo:   queueRepo,
		settingRepo: settingRepo,
		sender:      sender,
		from:        from,
		now:         time.Now,
	}
}

// TurnMessage is the SMS body sent to the notified waiter.
func TurnMessage(short string, year, n int) string {
	return fmt.Sprintf("[%s %d]\n등록 대기 순서 %d번입니다. 등록 부스로 오세요.", short, year, n)
}

// NotifyNth sends at most one message for queueType. A threshold below one or
// a queue shorter than the threshold is not an error.
func (n *TurnNotifier) NotifyNth(ctx context.Context, queueType model.QueueType) error {
	threshold, err := readThreshold(ctx, n.settingRepo)
	if err != nil {
		return fmt.Errorf("read sms threshold: %w", err)
	}
	if threshold < 1 {
		metrics.RecordNotification(metrics.NotificationSkipped)
		return nil
	}

	target, err := n.queueRepo.FindAtOffset(ctx, queueType, threshold-1)
	if err != nil {
		return fmt.Errorf("find notification target: %w", err)
	}
	if target == nil {
		metrics.RecordNotification(metrics.NotificationSkipped)
		log.Debug().
			Str("type", string(queueType)).
			Int("threshold", threshold).
			Msg("queue shorter than sms threshold, nothing to notify")
		return nil
	}

	info, ok := model.LookupQueueType(string(target.Type))
	if !ok {
		return fmt.Errorf("unknown queue type %q", target.Type)
	}

	err = n.sender.Send(ctx, sms.Message{
		To:      target.Phone,
		From:    n.from,
		Content: TurnMessage(info.Short, n.now().Year(), threshold),
	})
	if err != nil {
		metrics.RecordNotification(metrics.NotificationFailed)
		log.Error().
			Err(err).
			Str("phone", util.MaskPhone(target.Phone)).
			Str("type", string(queueType)).
			Int("threshold", threshold).
			Msg("turn notification failed")
		return apperrors.External("sens", err)
	}

	metrics.RecordNotification(metrics.NotificationSent)
	log.Info().
		Str("phone", util.MaskPhone(target.Phone)).
		Str("type", string(queueType)).
		Int("threshold", threshold).
		Msg("turn notification sent")

	return nil
}

// readThreshold returns the stored sms value. A missing row reads as 0.
func readThreshold(ctx context.Context, repo repository.SettingRepository) (int, error) {
	setting, err := repo.Get(ctx, model.SettingSMS)
	if err != nil {
		return 0, err
	}
	if setting == nil {
		return 0, nil
	}

	if v, err := strconv.Atoi(setting.Value); err == nil {
		return v, nil
	}
	// rows written by older deployments may hold a float
	f, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stored sms value %q", setting.Value)
	}
	return int(math.Floor(f)), nil
}
