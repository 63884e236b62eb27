package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var moscow = mustLocation("Europe/Moscow")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// 每个测试独占一个内存库，单连接保证内存库在测试期间不被释放
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// recordingNotifier 记录发送的消息
type recordingNotifier struct {
	mu       sync.Mutex
	messages []sentMessage
}

type sentMessage struct {
	chatID string
	text   string
}

func (r *recordingNotifier) Send(_ context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (r *recordingNotifier) sent() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage(nil), r.messages...)
}

type fixture struct {
	db       *gorm.DB
	clock    *clock.Fixed
	notifier *recordingNotifier
	manager  db.User
	object   *db.Object
	card     *db.TechCard

	objects      *ObjectService
	cards        *TechCardService
	generator    *Generator
	materializer *Materializer
	reconciler   *Reconciler
	calendar     *CalendarAggregator
}

// 2025-03-10 是周一
var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func msk(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, moscow)
}

// newFixture 构造经理、对象（08:00–20:00）与每日 08:00 的技术卡
func newFixture(t *testing.T, objectInput ObjectInput) *fixture {
	t.Helper()

	gdb := setupTestDB(t)
	f := &fixture{
		db:       gdb,
		clock:    clock.NewFixed(msk(testDay, 8, 0)),
		notifier: &recordingNotifier{},
	}
	f.manager = createUser(t, gdb, "manager", db.RoleManager)

	f.objects = NewObjectService(gdb)
	f.cards = NewTechCardService(gdb)
	f.generator = NewGenerator(gdb, f.clock, zap.NewNop())
	f.materializer = NewMaterializer(gdb, f.clock, f.notifier, zap.NewNop())
	f.reconciler = NewReconciler(gdb, f.clock, f.notifier, zap.NewNop())
	f.calendar = NewCalendarAggregator(gdb, f.generator)

	if objectInput.Name == "" {
		objectInput.Name = "БЦ Северный"
	}
	if objectInput.ManagerID == 0 {
		objectInput.ManagerID = f.manager.ID
	}
	object, err := f.objects.Create(context.Background(), objectInput)
	require.NoError(t, err)
	f.object = object

	f.card = f.createCard(t, TechCardInput{
		WorkType:      "Влажная уборка",
		RoomName:      "Холл",
		FrequencyText: "ежедневно",
		PreferredTime: "08:00",
		MaxDelayHours: 4,
	})
	return f
}

func (f *fixture) createCard(t *testing.T, input TechCardInput) *db.TechCard {
	t.Helper()
	if input.ObjectID == "" {
		input.ObjectID = f.object.ID
	}
	if input.StartDate == nil {
		start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		input.StartDate = &start
	}
	card, err := f.cards.Create(context.Background(), input)
	require.NoError(t, err)
	return card
}

func createUser(t *testing.T, gdb *gorm.DB, username, role string) db.User {
	t.Helper()
	user := db.User{Username: username, Password: "x", DisplayName: strings.ToUpper(username[:1]) + username[1:], Role: role}
	require.NoError(t, gdb.Create(&user).Error)
	return user
}

func countTasks(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&db.Task{}).Count(&n).Error)
	return n
}

func findVirtual(tasks []VirtualTask, id string) (VirtualTask, bool) {
	for _, task := range tasks {
		if task.ID == id {
			return task, true
		}
	}
	return VirtualTask{}, false
}

func dayRequest(day time.Time) GenerateRequest {
	return GenerateRequest{DateFrom: day, DateTo: day}
}
