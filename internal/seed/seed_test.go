package seed

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const fixtureYAML = `
users:
  - username: ivanova
    password: secret
    display_name: Иванова А.
    role: manager
  - username: petrov
    password: secret
    role: deputy
    managers: [ivanova]
objects:
  - name: БЦ Северный
    manager: ivanova
    working_hours_start: "07:00"
    working_hours_end: "21:00"
    working_days: "1,2,3,4,5"
    require_photo_for_completion: true
    tech_cards:
      - room_name: Холл
        work_type: Влажная уборка
        frequency: ежедневно
      - work_type: Вынос мусора
        frequency: 2 раза в день
        start_date: "2025-03-01"
`

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:seed-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func TestApplyIsRepeatable(t *testing.T) {
	gdb := setupSeedTestDB(t)
	ctx := context.Background()

	fixture, err := Decode(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, fixture.Users, 2)
	require.Len(t, fixture.Objects[0].TechCards, 2)

	summary, err := Apply(ctx, gdb, fixture)
	require.NoError(t, err)
	require.Equal(t, Summary{Users: 2, Assignments: 1, Objects: 1, TechCards: 2}, summary)

	again, err := Apply(ctx, gdb, fixture)
	require.NoError(t, err)
	require.Equal(t, Summary{}, again)

	var object db.Object
	require.NoError(t, gdb.First(&object, "name = ?", "БЦ Северный").Error)
	require.Equal(t, "07:00", object.WorkingHoursStart)
	require.True(t, object.RequirePhotoForCompletion)

	var cards []db.TechCard
	require.NoError(t, gdb.Order("work_type").Find(&cards).Error)
	require.Len(t, cards, 2)
	require.Equal(t, "Влажная уборка", cards[0].WorkType)
	require.InDelta(t, 1, cards[0].FrequencyDays, 1e-9)
	require.Nil(t, cards[0].StartDate)
	require.Equal(t, "Вынос мусора", cards[1].WorkType)
	require.InDelta(t, 0.5, cards[1].FrequencyDays, 1e-9)
	require.NotNil(t, cards[1].StartDate)
}

func TestApplyRejectsUnknownManager(t *testing.T) {
	gdb := setupSeedTestDB(t)

	_, err := Apply(context.Background(), gdb, Fixture{
		Objects: []ObjectFixture{{Name: "A", Manager: "ghost"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ghost")
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("users:\n  - username: a\n    colour: red\n"))
	require.Error(t, err)

	fixture, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, fixture.Users)
}
