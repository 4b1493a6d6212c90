package repository

import (
	"context"
	"sort"

	"learnhub/internal/model"
	"learnhub/pkg/docstore"
)

// EventRepository 活动数据访问接口
type EventRepository interface {
	Save(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// List 按开始时间正序
	List(ctx context.Context) ([]model.Event, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error

	SaveRegistration(ctx context.Context, reg *model.EventRegistration) error
	GetRegistration(ctx context.Context, eventID, userID string) (*model.EventRegistration, error)
	DeleteRegistration(ctx context.Context, eventID, userID string) error
	ListRegistrationsByUser(ctx context.Context, userID string) ([]model.EventRegistration, error)
}

type eventRepo struct {
	store docstore.Store
	tx    docstore.Tx
}

func (r *eventRepo) Save(ctx context.Context, event *model.Event) error {
	return r.tx.Set(ctx, model.CollectionEvents, event.ID, event)
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	if err := getDoc(ctx, r.tx, model.CollectionEvents, id, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) List(ctx context.Context) ([]model.Event, error) {
	events, err := queryDocs[model.Event](ctx, r.store, model.CollectionEvents)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartsAt.Before(events[j].StartsAt)
	})
	return events, nil
}

func (r *eventRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.tx.Update(ctx, model.CollectionEvents, id, fields)
}

func (r *eventRepo) SaveRegistration(ctx context.Context, reg *model.EventRegistration) error {
	return r.tx.Set(ctx, model.CollectionEventRegistrations,
		model.EventRegistrationID(reg.EventID, reg.UserID), reg)
}

func (r *eventRepo) GetRegistration(ctx context.Context, eventID, userID string) (*model.EventRegistration, error) {
	var reg model.EventRegistration
	err := getDoc(ctx, r.tx, model.CollectionEventRegistrations,
		model.EventRegistrationID(eventID, userID), &reg)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *eventRepo) DeleteRegistration(ctx context.Context, eventID, userID string) error {
	return r.tx.Delete(ctx, model.CollectionEventRegistrations, model.EventRegistrationID(eventID, userID))
}

func (r *eventRepo) ListRegistrationsByUser(ctx context.Context, userID string) ([]model.EventRegistration, error) {
	return queryDocs[model.EventRegistration](ctx, r.store, model.CollectionEventRegistrations,
		docstore.Eq("userId", userID))
}
