package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"learnhub/internal/dto"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	apperrors "learnhub/pkg/errors"
	"learnhub/pkg/objectstore"
)

// ── 活动模块业务错误 ──

var (
	ErrEventNotFound        = fmt.Errorf("%w: 活动不存在", apperrors.ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("%w: 尚未报名该活动", apperrors.ErrNotFound)
	ErrEventFull            = errors.New("活动名额已满")
	ErrEventEnded           = errors.New("活动已结束")
	ErrAlreadyRegistered    = errors.New("已报名该活动")
	ErrEventTime            = errors.New("结束时间必须晚于开始时间")
	ErrICSInvalid           = errors.New("ICS 格式解析失败")
)

const (
	ticketQRSize   = 256
	icsMaxFileSize = 5 * 1024 * 1024 // 5MB
	calendarName   = "LearnHub 校园活动"
)

// EventService 校园活动业务接口
type EventService interface {
	Create(ctx context.Context, userID string, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	// List upcoming=true 时只返回未结束的活动
	List(ctx context.Context, upcoming bool) ([]dto.EventResponse, error)
	Get(ctx context.Context, id string) (*dto.EventResponse, error)
	Register(ctx context.Context, userID, eventID string) (*dto.RegistrationResponse, error)
	CancelRegistration(ctx context.Context, userID, eventID string) error
	MyRegistrations(ctx context.Context, userID string) ([]dto.RegistrationResponse, error)
	// Ticket 返回报名凭证二维码（PNG）
	Ticket(ctx context.Context, userID, eventID string) ([]byte, error)
	// Calendar 导出未结束活动的 iCalendar 订阅
	Calendar(ctx context.Context) ([]byte, error)
	// ImportCalendar 从 .ics 批量创建活动，返回创建数量
	ImportCalendar(ctx context.Context, userID string, r io.Reader) (int, error)
	UploadPoster(ctx context.Context, eventID string, r io.Reader, contentType string) (*dto.UploadResponse, error)
}

type eventService struct {
	repo    *repository.Repository
	objects objectstore.Store
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventService 创建 EventService 实例
func NewEventService(repo *repository.Repository, objects objectstore.Store, loc *time.Location, logger *zap.Logger) EventService {
	if loc == nil {
		loc = time.UTC
	}
	return &eventService{repo: repo, objects: objects, loc: loc, logger: logger, now: time.Now}
}

func (s *eventService) Create(ctx context.Context, userID string, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	title := collapseSpaces(req.Title)
	if title == "" {
		return nil, ErrEmptyContent
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrEventTime
	}

	event := &model.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		CreatedBy:   userID,
	}
	event.Touch(s.now())

	if err := s.repo.Event.Save(ctx, event); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, err
	}
	resp := dto.NewEventResponse(event)
	return &resp, nil
}

func (s *eventService) List(ctx context.Context, upcoming bool) ([]dto.EventResponse, error) {
	events, err := s.listEvents(ctx, upcoming)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		out = append(out, dto.NewEventResponse(&events[i]))
	}
	return out, nil
}

func (s *eventService) Get(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, "查询活动失败")
	}
	resp := dto.NewEventResponse(event)
	return &resp, nil
}

func (s *eventService) Register(ctx context.Context, userID, eventID string) (*dto.RegistrationResponse, error) {
	now := s.now()
	reg := &model.EventRegistration{
		EventID:      eventID,
		UserID:       userID,
		TicketCode:   newTicketCode(),
		RegisteredAt: now,
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		event, err := tx.Event.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.EndsAt.After(now) {
			return ErrEventEnded
		}
		if _, err := tx.Event.GetRegistration(ctx, eventID, userID); err == nil {
			return ErrAlreadyRegistered
		} else if !repository.IsNotFound(err) {
			return err
		}
		if event.IsFull() {
			return ErrEventFull
		}

		if err := tx.Event.SaveRegistration(ctx, reg); err != nil {
			return err
		}
		return tx.Event.UpdateFields(ctx, eventID, map[string]interface{}{
			"attendeeCount": event.AttendeeCount + 1,
		})
	})
	if err != nil {
		return nil, s.mapError(err, "活动报名失败")
	}

	s.logger.Info("活动报名", zap.String("event_id", eventID), zap.String("user_id", userID))
	resp := dto.NewRegistrationResponse(reg)
	return &resp, nil
}

func (s *eventService) CancelRegistration(ctx context.Context, userID, eventID string) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		event, err := tx.Event.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if _, err := tx.Event.GetRegistration(ctx, eventID, userID); err != nil {
			if repository.IsNotFound(err) {
				return ErrRegistrationNotFound
			}
			return err
		}
		if err := tx.Event.DeleteRegistration(ctx, eventID, userID); err != nil {
			return err
		}
		count := event.AttendeeCount - 1
		if count < 0 {
			count = 0
		}
		return tx.Event.UpdateFields(ctx, eventID, map[string]interface{}{"attendeeCount": count})
	})
	if err != nil {
		return s.mapError(err, "取消报名失败")
	}
	return nil
}

func (s *eventService) MyRegistrations(ctx context.Context, userID string) ([]dto.RegistrationResponse, error) {
	regs, err := s.repo.Event.ListRegistrationsByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询报名记录失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.RegistrationResponse, 0, len(regs))
	for i := range regs {
		out = append(out, dto.NewRegistrationResponse(&regs[i]))
	}
	return out, nil
}

func (s *eventService) Ticket(ctx context.Context, userID, eventID string) ([]byte, error) {
	reg, err := s.repo.Event.GetRegistration(ctx, eventID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRegistrationNotFound
		}
		s.logger.Error("查询报名记录失败", zap.Error(err))
		return nil, err
	}

	png, err := qrcode.Encode(TicketPayload(reg), qrcode.Medium, ticketQRSize)
	if err != nil {
		s.logger.Error("生成二维码失败", zap.Error(err))
		return nil, err
	}
	return png, nil
}

// TicketPayload 二维码内容：签到端据此核验报名
func TicketPayload(reg *model.EventRegistration) string {
	return fmt.Sprintf("learnhub:ticket:%s:%s:%s", reg.EventID, reg.UserID, reg.TicketCode)
}

// ────────────────────── iCalendar ──────────────────────

func (s *eventService) Calendar(ctx context.Context) ([]byte, error) {
	events, err := s.listEvents(ctx, true)
	if err != nil {
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//learnhub//events//CN")
	cal.SetName(calendarName)
	cal.SetXWRCalName(calendarName)
	cal.SetXWRTimezone(s.loc.String())

	stamp := s.now()
	for _, e := range events {
		ve := cal.AddEvent(e.ID + "@learnhub")
		ve.SetDtStampTime(stamp)
		ve.SetCreatedTime(e.CreatedAt)
		ve.SetModifiedAt(e.UpdatedAt)
		ve.SetStartAt(e.StartsAt)
		ve.SetEndAt(e.EndsAt)
		ve.SetSummary(e.Title)
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
	}
	return []byte(cal.Serialize()), nil
}

func (s *eventService) ImportCalendar(ctx context.Context, userID string, r io.Reader) (int, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(r, icsMaxFileSize))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrICSInvalid, err)
	}

	now := s.now()
	created := 0
	for _, ve := range cal.Events() {
		event, ok := eventFromVEvent(ve, s.loc)
		if !ok {
			continue
		}
		event.CreatedBy = userID
		event.Touch(now)
		if err := s.repo.Event.Save(ctx, event); err != nil {
			s.logger.Error("导入活动失败", zap.Error(err))
			return created, err
		}
		created++
	}

	s.logger.Info("导入活动日历", zap.Int("created", created))
	return created, nil
}

// eventFromVEvent 解析单个 VEVENT；缺少标题或开始时间时跳过，缺少结束时间默认 1 小时
func eventFromVEvent(ve *ics.VEvent, loc *time.Location) (*model.Event, bool) {
	summary := ve.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return nil, false
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, false
	}
	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		end = start.Add(time.Hour)
	}

	event := &model.Event{
		ID:       uuid.NewString(),
		Title:    collapseSpaces(summary.Value),
		StartsAt: start.In(loc),
		EndsAt:   end.In(loc),
	}
	if p := ve.GetProperty(ics.ComponentPropertyLocation); p != nil {
		event.Location = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ics.ComponentPropertyDescription); p != nil {
		event.Description = strings.TrimSpace(p.Value)
	}
	return event, true
}

func (s *eventService) UploadPoster(ctx context.Context, eventID string, r io.Reader, contentType string) (*dto.UploadResponse, error) {
	ext, ok := objectstore.ImageExtension(contentType)
	if !ok {
		return nil, ErrUnsupportedImage
	}
	if _, err := s.repo.Event.GetByID(ctx, eventID); err != nil {
		return nil, s.mapError(err, "查询活动失败")
	}

	key := objectstore.Key("events", eventID, "poster-"+uuid.NewString()[:8]+ext)
	url, err := s.objects.Upload(ctx, key, r, contentType)
	if err != nil {
		s.logger.Error("上传活动海报失败", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if err := s.repo.Event.UpdateFields(ctx, eventID, map[string]interface{}{
		"posterUrl": url,
		"updatedAt": s.now(),
	}); err != nil {
		return nil, s.mapError(err, "保存活动海报失败")
	}
	return &dto.UploadResponse{URL: url}, nil
}

// ── 辅助函数 ──

func (s *eventService) listEvents(ctx context.Context, upcoming bool) ([]model.Event, error) {
	events, err := s.repo.Event.List(ctx)
	if err != nil {
		s.logger.Error("查询活动列表失败", zap.Error(err))
		return nil, err
	}
	if !upcoming {
		return events, nil
	}
	now := s.now()
	kept := events[:0]
	for _, e := range events {
		if e.EndsAt.After(now) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func (s *eventService) mapError(err error, msg string) error {
	switch {
	case repository.IsNotFound(err):
		return ErrEventNotFound
	case errors.Is(err, ErrRegistrationNotFound),
		errors.Is(err, ErrEventFull),
		errors.Is(err, ErrEventEnded),
		errors.Is(err, ErrAlreadyRegistered):
		return err
	}
	s.logger.Error(msg, zap.Error(err))
	return err
}

func newTicketCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
