package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/enroll/queue-server-go/internal/errors"
	"github.com/enroll/queue-server-go/internal/metrics"
	"github.com/enroll/queue-server-go/internal/model"
	"github.com/enroll/queue-server-go/internal/repository"
	"github.com/enroll/queue-server-go/internal/util"
)

const (
	msgNotWaiting   = "등록 대기중인 대회가 없습니다."
	msgNoSuchWaiter = "해당 전화번호의 대기자가 없습니다."

	maxThreshold = 10000
)

// TaskSubmitter runs work after the request has been answered.
type TaskSubmitter interface {
	Submit(name string, fn func(context.Context) error) bool
}

// QueueService is the only path that mutates queue entries and settings.
type QueueService struct {
	queueRepo   repository.QueueRepository
	settingRepo repository.SettingRepository
	turns       *TurnNotifier
	tasks       TaskSubmitter
	smsEnabled  bool
	now         func() time.Time
}

// NewQueueService wires the service. turns and tasks may be nil, in which case
// deletions never notify anyone.
func NewQueueService(
	queueRepo repository.QueueRepository,
	settingRepo repository.SettingRepository,
	turns *TurnNotifier,
	tasks TaskSubmitter,
	smsEnabled bool,
) *QueueService {
	return &QueueService{
		queueRepo:   queueRepo,
		settingRepo: settingRepo,
		turns:       turns,
		tasks:       tasks,
		smsEnabled:  smsEnabled,
		now:         time.Now,
	}
}

// WithClock replaces the clock used for registration timestamps.
func (s *QueueService) WithClock(now func() time.Time) *QueueService {
	s.now = now
	return s
}

func (s *QueueService) SMSEnabled() bool {
	return s.smsEnabled
}

func (s *QueueService) Overview(ctx context.Context) (map[model.QueueType]model.QueueSummary, error) {
	counts, err := s.queueRepo.CountByType(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	out := make(map[model.QueueType]model.QueueSummary)
	for _, qt := range model.QueueTypes() {
		out[qt.ID] = model.QueueSummary{
			Name:   qt.Name,
			Short:  qt.Short,
			Length: counts[qt.ID],
		}
	}
	return out, nil
}

func (s *QueueService) Register(ctx context.Context, queueType, phone string) error {
	info, known := model.LookupQueueType(queueType)
	label := "unknown"
	if known {
		label = queueType
	}

	if !model.IsValidPhone(phone) {
		metrics.RecordRegistration(label, metrics.RegistrationRejected)
		return apperrors.InvalidPhone()
	}
	if !known {
		metrics.RecordRegistration(label, metrics.RegistrationRejected)
		return apperrors.UnknownQueue(queueType)
	}

	err := s.queueRepo.Create(ctx, model.CreateQueueEntryParams{
		Phone:     phone,
		Timestamp: s.now().UnixMilli(),
		Type:      info.ID,
	})
	if errors.Is(err, repository.ErrDuplicatePhone) {
		metrics.RecordRegistration(label, metrics.RegistrationDuplicate)
		return apperrors.DuplicatePhone()
	}
	if err != nil {
		return apperrors.Database(err)
	}

	metrics.RecordRegistration(label, metrics.RegistrationCreated)
	log.Info().
		Str("phone", util.MaskPhone(phone)).
		Str("type", queueType).
		Msg("waiter registered")

	return nil
}

func (s *QueueService) Rank(ctx context.Context, phone string) (*model.Rank, error) {
	rank, err := s.queueRepo.FindRank(ctx, phone)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if rank == nil {
		return nil, apperrors.NotFound(msgNotWaiting)
	}
	return rank, nil
}

func (s *QueueService) List(ctx context.Context, queueType string) ([]model.QueueEntry, error) {
	info, ok := model.LookupQueueType(queueType)
	if !ok {
		return nil, apperrors.UnknownQueue(queueType)
	}

	entries, err := s.queueRepo.FindByType(ctx, info.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entries, nil
}

// Delete removes the waiter and, once the row is gone, hands the turn
// notification to the background pool.
func (s *QueueService) Delete(ctx context.Context, queueType, phone string) error {
	if !model.IsValidPhone(phone) {
		return apperrors.InvalidPhone()
	}
	info, ok := model.LookupQueueType(queueType)
	if !ok {
		return apperrors.UnknownQueue(queueType)
	}

	removed, err := s.queueRepo.Delete(ctx, phone, info.ID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !removed {
		return apperrors.NotFound(msgNoSuchWaiter)
	}

	metrics.RecordDeletion(queueType)
	s.notifyTurn(info.ID)

	return nil
}

func (s *QueueService) notifyTurn(queueType model.QueueType) {
	if s.turns == nil || s.tasks == nil {
		return
	}
	s.tasks.Submit("turn-notify:"+string(queueType), func(ctx context.Context) error {
		return s.turns.NotifyNth(ctx, queueType)
	})
}

func (s *QueueService) SMSThreshold(ctx context.Context) (int, error) {
	v, err := readThreshold(ctx, s.settingRepo)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return v, nil
}

// SetSMSThreshold stores a new threshold. Positive values need a fully
// configured SMS transport.
func (s *QueueService) SetSMSThreshold(ctx context.Context, value int) error {
	if value < 0 || value > maxThreshold {
		return apperrors.InvalidSetting()
	}
	if value > 0 && !s.smsEnabled {
		return apperrors.SMSNotConfigured()
	}

	if err := s.settingRepo.Set(ctx, model.SettingSMS, strconv.Itoa(value)); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// ParseThreshold accepts a JSON number or a numeric string holding a
// non-negative whole number.
func ParseThreshold(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, apperrors.InvalidSetting()
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0, apperrors.InvalidSetting()
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > maxThreshold {
		return 0, apperrors.InvalidSetting()
	}
	return int(f), nil
}
