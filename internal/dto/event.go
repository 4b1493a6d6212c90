package dto

import (
	"time"

	"learnhub/internal/model"
)

// ── 活动模块 DTO ──

// CreateEventRequest 创建活动请求
type CreateEventRequest struct {
	Title       string    `json:"title"       binding:"required,max=120"`
	Description string    `json:"description" binding:"omitempty,max=5000"`
	Location    string    `json:"location"    binding:"omitempty,max=120"`
	StartsAt    time.Time `json:"starts_at"   binding:"required"`
	EndsAt      time.Time `json:"ends_at"     binding:"required,gtfield=StartsAt"`
	Capacity    int       `json:"capacity"    binding:"omitempty,min=0"`
}

// EventListRequest 活动列表查询参数
type EventListRequest struct {
	Upcoming bool `form:"upcoming"`
}

// EventResponse 活动响应
type EventResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	Capacity      int    `json:"capacity"`
	AttendeeCount int    `json:"attendee_count"`
	PosterURL     string `json:"poster_url,omitempty"`
	IsFull        bool   `json:"is_full"`
}

// NewEventResponse model.Event → EventResponse
func NewEventResponse(e *model.Event) EventResponse {
	return EventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Location:      e.Location,
		StartsAt:      formatTime(e.StartsAt),
		EndsAt:        formatTime(e.EndsAt),
		Capacity:      e.Capacity,
		AttendeeCount: e.AttendeeCount,
		PosterURL:     e.PosterURL,
		IsFull:        e.IsFull(),
	}
}

// RegistrationResponse 报名响应
type RegistrationResponse struct {
	EventID      string `json:"event_id"`
	UserID       string `json:"user_id"`
	TicketCode   string `json:"ticket_code"`
	RegisteredAt string `json:"registered_at"`
}

// NewRegistrationResponse model.EventRegistration → RegistrationResponse
func NewRegistrationResponse(r *model.EventRegistration) RegistrationResponse {
	return RegistrationResponse{
		EventID:      r.EventID,
		UserID:       r.UserID,
		TicketCode:   r.TicketCode,
		RegisteredAt: formatTime(r.RegisteredAt),
	}
}
