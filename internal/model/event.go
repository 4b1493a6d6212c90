package model

import "time"

// Event 校园活动，对应 events；Capacity 为 0 表示不限人数
type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	Capacity      int       `json:"capacity"`
	AttendeeCount int       `json:"attendeeCount"`
	PosterURL     string    `json:"posterUrl,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	Timestamps
}

// IsFull 是否已满员
func (e *Event) IsFull() bool {
	return e.Capacity > 0 && e.AttendeeCount >= e.Capacity
}

// EventRegistration 活动报名，对应 event_registrations，文档 ID 为 eventId_userId
type EventRegistration struct {
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	TicketCode   string    `json:"ticketCode"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventRegistrationID 组合主键
func EventRegistrationID(eventID, userID string) string {
	return eventID + "_" + userID
}
