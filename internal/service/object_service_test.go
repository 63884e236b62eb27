package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/stretchr/testify/require"
)

func TestObjectServiceCreateAppliesDefaults(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewObjectService(gdb)

	object, err := svc.Create(context.Background(), ObjectInput{Name: "  Склад №3 ", ManagerID: 7})
	require.NoError(t, err)
	require.NotEmpty(t, object.ID)
	require.Equal(t, "Склад №3", object.Name)
	require.Equal(t, "08:00", object.WorkingHoursStart)
	require.Equal(t, "20:00", object.WorkingHoursEnd)
	require.Equal(t, "1,2,3,4,5,6,7", object.WorkingDays)
	require.Equal(t, "Europe/Moscow", object.Timezone)

	lateShift, err := svc.Create(context.Background(), ObjectInput{Name: "Круглосуточный", WorkingHoursStart: "16:00", WorkingHoursEnd: "24:00"})
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, CalendarFor(*lateShift).WorkEnd)
}

func TestObjectServiceValidation(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewObjectService(gdb)
	ctx := context.Background()

	cases := []ObjectInput{
		{},
		{Name: "A", WorkingHoursStart: "25:00"},
		{Name: "A", WorkingHoursStart: "24:00", WorkingHoursEnd: "24:00"},
		{Name: "A", WorkingHoursStart: "20:00", WorkingHoursEnd: "08:00"},
		{Name: "A", WorkingDays: "1,8"},
		{Name: "A", Timezone: "Mars/Olympus"},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		require.True(t, errors.Is(err, ErrMalformedInput), "input %+v", input)
	}
}

func TestObjectServiceListUpdateDelete(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewObjectService(gdb)
	cards := NewTechCardService(gdb)
	ctx := context.Background()

	north, err := svc.Create(ctx, ObjectInput{Name: "БЦ Северный", Address: "ул. Ленина, 1", ManagerID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ObjectInput{Name: "ТЦ Южный", ManagerID: 2})
	require.NoError(t, err)

	all, err := svc.List(ctx, ObjectFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := svc.List(ctx, ObjectFilter{ManagerIDs: []uint{1}})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, north.ID, mine[0].ID)

	found, err := svc.List(ctx, ObjectFilter{Search: "Ленина"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	none, err := svc.List(ctx, ObjectFilter{ManagerIDs: []uint{}})
	require.NoError(t, err)
	require.Empty(t, none)

	updated, err := svc.Update(ctx, north.ID, ObjectInput{Name: "БЦ Северный-2", ManagerID: 1, WorkingHoursStart: "07:00", Timezone: "Asia/Yekaterinburg", RequirePhotoForCompletion: true})
	require.NoError(t, err)
	require.Equal(t, "07:00", updated.WorkingHoursStart)
	require.True(t, updated.RequirePhotoForCompletion)

	cal := CalendarFor(*updated)
	require.Equal(t, 7*time.Hour, cal.WorkStart)
	require.Equal(t, "Asia/Yekaterinburg", cal.Location.String())

	_, err = cards.Create(ctx, TechCardInput{ObjectID: north.ID, WorkType: "Уборка", FrequencyText: "ежедневно"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, north.ID))
	_, err = svc.Get(ctx, north.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	var remaining int64
	require.NoError(t, gdb.Model(&db.TechCard{}).Where("object_id = ?", north.ID).Count(&remaining).Error)
	require.Zero(t, remaining)

	require.True(t, errors.Is(svc.Delete(ctx, north.ID), ErrNotFound))
	_, err = svc.Update(ctx, "missing", ObjectInput{Name: "x"})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCalendarForFallsBackOnBadStoredValues(t *testing.T) {
	cal := CalendarFor(db.Object{WorkingHoursStart: "bad", WorkingHoursEnd: "06:00", WorkingDays: "x", Timezone: "Nowhere/Land"})
	require.Equal(t, time.UTC, cal.Location)
	require.Equal(t, 8*time.Hour, cal.WorkStart)
	require.Equal(t, 20*time.Hour, cal.WorkEnd)
	require.Nil(t, cal.WorkingDays)
}
