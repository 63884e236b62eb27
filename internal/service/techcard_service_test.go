package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cleanops/internal/schedule"
	"github.com/stretchr/testify/require"
)

func TestTechCardServiceCreateDerivesSchedule(t *testing.T) {
	gdb := setupTestDB(t)
	objects := NewObjectService(gdb)
	svc := NewTechCardService(gdb)
	ctx := context.Background()

	object, err := objects.Create(ctx, ObjectInput{Name: "БЦ", ManagerID: 1})
	require.NoError(t, err)

	card, err := svc.Create(ctx, TechCardInput{ObjectID: object.ID, WorkType: "Вынос мусора", FrequencyText: "3 раза в неделю"})
	require.NoError(t, err)
	require.NotEmpty(t, card.ID)
	require.True(t, card.Active)
	require.True(t, card.FrequencyParsed)
	require.InDelta(t, 7.0/3.0, card.FrequencyDays, 1e-9)
	require.Equal(t, "18:00", card.PreferredTime)
	require.Equal(t, 24, card.MaxDelayHours)

	explicit, err := svc.Create(ctx, TechCardInput{
		ObjectID:      object.ID,
		WorkType:      "Проверка",
		FrequencyText: "по графику",
		FrequencyDays: 14,
		PreferredTime: "11:30",
		MaxDelayHours: 6,
	})
	require.NoError(t, err)
	require.Equal(t, 14.0, explicit.FrequencyDays)
	require.True(t, explicit.FrequencyParsed)
	require.Equal(t, "11:30", explicit.PreferredTime)
	require.Equal(t, 6, explicit.MaxDelayHours)
}

func TestTechCardServiceValidation(t *testing.T) {
	gdb := setupTestDB(t)
	objects := NewObjectService(gdb)
	svc := NewTechCardService(gdb)
	ctx := context.Background()

	object, err := objects.Create(ctx, ObjectInput{Name: "БЦ", ManagerID: 1})
	require.NoError(t, err)

	_, err = svc.Create(ctx, TechCardInput{WorkType: "Уборка"})
	require.True(t, errors.Is(err, ErrMalformedInput))
	_, err = svc.Create(ctx, TechCardInput{ObjectID: object.ID})
	require.True(t, errors.Is(err, ErrMalformedInput))
	_, err = svc.Create(ctx, TechCardInput{ObjectID: object.ID, WorkType: "Уборка", PreferredTime: "8am"})
	require.True(t, errors.Is(err, ErrMalformedInput))
	_, err = svc.Create(ctx, TechCardInput{ObjectID: object.ID, WorkType: "Уборка", PreferredTime: "24:00"})
	require.True(t, errors.Is(err, ErrMalformedInput))
	_, err = svc.Create(ctx, TechCardInput{ObjectID: object.ID, WorkType: "Уборка", MaxDelayHours: -1})
	require.True(t, errors.Is(err, ErrMalformedInput))
	_, err = svc.Create(ctx, TechCardInput{ObjectID: "missing", WorkType: "Уборка"})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestTechCardServiceListUpdateDelete(t *testing.T) {
	gdb := setupTestDB(t)
	objects := NewObjectService(gdb)
	svc := NewTechCardService(gdb)
	ctx := context.Background()

	first, err := objects.Create(ctx, ObjectInput{Name: "A", ManagerID: 1})
	require.NoError(t, err)
	second, err := objects.Create(ctx, ObjectInput{Name: "B", ManagerID: 2})
	require.NoError(t, err)

	card, err := svc.Create(ctx, TechCardInput{ObjectID: first.ID, WorkType: "Уборка", FrequencyText: "ежедневно"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, TechCardInput{ObjectID: second.ID, WorkType: "Уборка", FrequencyText: "ежедневно"})
	require.NoError(t, err)

	byManager, err := svc.List(ctx, TechCardFilter{ManagerIDs: []uint{1}})
	require.NoError(t, err)
	require.Len(t, byManager, 1)
	require.Equal(t, card.ID, byManager[0].ID)

	byObject, err := svc.List(ctx, TechCardFilter{ObjectIDs: []string{second.ID}})
	require.NoError(t, err)
	require.Len(t, byObject, 1)

	inactive := false
	updated, err := svc.Update(ctx, card.ID, TechCardInput{ObjectID: first.ID, WorkType: "Уборка", FrequencyText: "ежемесячно", Active: &inactive})
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.Equal(t, 30.0, updated.FrequencyDays)
	require.Equal(t, 72, updated.MaxDelayHours)

	active, err := svc.List(ctx, TechCardFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, svc.Delete(ctx, card.ID))
	require.True(t, errors.Is(svc.Delete(ctx, card.ID), ErrNotFound))
	_, err = svc.Get(ctx, card.ID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestTechCardFrequencyAudit(t *testing.T) {
	gdb := setupTestDB(t)
	objects := NewObjectService(gdb)
	svc := NewTechCardService(gdb)
	ctx := context.Background()

	object, err := objects.Create(ctx, ObjectInput{Name: "A", ManagerID: 1})
	require.NoError(t, err)

	_, err = svc.Create(ctx, TechCardInput{ObjectID: object.ID, WorkType: "Уборка", FrequencyText: "ежедневно"})
	require.NoError(t, err)
	unknown, err := svc.Create(ctx, TechCardInput{ObjectID: object.ID, WorkType: "Полировка", FrequencyText: "по требованию"})
	require.NoError(t, err)

	entries, err := svc.FrequencyAudit(ctx, TechCardFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, unknown.ID, entries[0].TechCardID)
	require.Equal(t, "по требованию", entries[0].FrequencyText)
	require.Equal(t, 1.0, entries[0].FrequencyDays)
	require.Equal(t, schedule.DefaultTime, unknown.PreferredTime)
}
