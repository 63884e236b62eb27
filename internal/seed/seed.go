// Package seed 从 YAML 夹具导入用户、对象与技术卡，重复导入不会产生重复数据。
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/schedule"
	"github.com/cleanops/internal/service"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixture 是夹具文件的顶层结构
type Fixture struct {
	Users   []UserFixture   `yaml:"users"`
	Objects []ObjectFixture `yaml:"objects"`
}

// UserFixture 描述一个账号；Deputy 的 Managers 为其可查看的经理用户名
type UserFixture struct {
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	DisplayName string   `yaml:"display_name"`
	Role        string   `yaml:"role"`
	Managers    []string `yaml:"managers"`
}

// ObjectFixture 描述一个对象及其技术卡
type ObjectFixture struct {
	Name                        string            `yaml:"name"`
	Address                     string            `yaml:"address"`
	Manager                     string            `yaml:"manager"`
	WorkingHoursStart           string            `yaml:"working_hours_start"`
	WorkingHoursEnd             string            `yaml:"working_hours_end"`
	WorkingDays                 string            `yaml:"working_days"`
	Timezone                    string            `yaml:"timezone"`
	RequirePhotoForCompletion   bool              `yaml:"require_photo_for_completion"`
	RequireCommentForCompletion bool              `yaml:"require_comment_for_completion"`
	TelegramChatID              string            `yaml:"telegram_chat_id"`
	TechCards                   []TechCardFixture `yaml:"tech_cards"`
}

// TechCardFixture 描述一张技术卡
type TechCardFixture struct {
	RoomName      string `yaml:"room_name"`
	WorkType      string `yaml:"work_type"`
	Description   string `yaml:"description"`
	Frequency     string `yaml:"frequency"`
	PreferredTime string `yaml:"preferred_time"`
	MaxDelayHours int    `yaml:"max_delay_hours"`
	StartDate     string `yaml:"start_date"`
}

// Summary 统计本次导入新建的记录数
type Summary struct {
	Users       int
	Assignments int
	Objects     int
	TechCards   int
}

// Decode 解析 YAML 夹具
func Decode(r io.Reader) (Fixture, error) {
	var fixture Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixture); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixture{}, nil
		}
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fixture, nil
}

// Apply 按 用户 → 副手指派 → 对象 → 技术卡 的顺序导入，已存在的记录跳过
func Apply(ctx context.Context, gdb *gorm.DB, fixture Fixture) (Summary, error) {
	var summary Summary
	objects := service.NewObjectService(gdb)
	cards := service.NewTechCardService(gdb)

	users := make(map[string]db.User, len(fixture.Users))
	for _, uf := range fixture.Users {
		user, created, err := ensureUser(ctx, gdb, uf)
		if err != nil {
			return summary, err
		}
		if created {
			summary.Users++
		}
		users[user.Username] = user
	}

	for _, uf := range fixture.Users {
		for _, managerName := range uf.Managers {
			manager, err := lookupUser(ctx, gdb, users, managerName)
			if err != nil {
				return summary, err
			}
			assignment := db.DeputyAssignment{DeputyID: users[strings.TrimSpace(uf.Username)].ID, ManagerID: manager.ID}
			res := gdb.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment)
			if res.Error != nil {
				return summary, fmt.Errorf("assign deputy %s: %w", uf.Username, res.Error)
			}
			if res.RowsAffected > 0 {
				summary.Assignments++
			}
		}
	}

	for _, of := range fixture.Objects {
		manager, err := lookupUser(ctx, gdb, users, of.Manager)
		if err != nil {
			return summary, err
		}

		object, created, err := ensureObject(ctx, gdb, objects, of, manager.ID)
		if err != nil {
			return summary, err
		}
		if created {
			summary.Objects++
		}

		for _, cf := range of.TechCards {
			created, err := ensureTechCard(ctx, gdb, cards, object.ID, cf)
			if err != nil {
				return summary, fmt.Errorf("object %s: %w", of.Name, err)
			}
			if created {
				summary.TechCards++
			}
		}
	}

	return summary, nil
}

func ensureUser(ctx context.Context, gdb *gorm.DB, uf UserFixture) (db.User, bool, error) {
	username := strings.TrimSpace(uf.Username)
	if username == "" {
		return db.User{}, false, errors.New("user without username")
	}

	var existing db.User
	err := gdb.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return db.User{}, false, fmt.Errorf("find user %s: %w", username, err)
	}

	role := strings.TrimSpace(uf.Role)
	switch role {
	case "":
		role = db.RoleManager
	case db.RoleManager, db.RoleDeputy, db.RoleAdmin:
	default:
		return db.User{}, false, fmt.Errorf("user %s: unknown role %q", username, role)
	}
	if strings.TrimSpace(uf.Password) == "" {
		return db.User{}, false, fmt.Errorf("user %s: password is required", username)
	}

	hashed, err := db.HashPassword(uf.Password)
	if err != nil {
		return db.User{}, false, err
	}

	user := db.User{Username: username, Password: hashed, DisplayName: strings.TrimSpace(uf.DisplayName), Role: role}
	if err := gdb.WithContext(ctx).Create(&user).Error; err != nil {
		return db.User{}, false, fmt.Errorf("create user %s: %w", username, err)
	}
	return user, true, nil
}

func lookupUser(ctx context.Context, gdb *gorm.DB, cache map[string]db.User, username string) (db.User, error) {
	username = strings.TrimSpace(username)
	if user, ok := cache[username]; ok {
		return user, nil
	}

	var user db.User
	if err := gdb.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.User{}, fmt.Errorf("unknown user %q", username)
		}
		return db.User{}, fmt.Errorf("find user %s: %w", username, err)
	}
	cache[username] = user
	return user, nil
}

func ensureObject(ctx context.Context, gdb *gorm.DB, objects *service.ObjectService, of ObjectFixture, managerID uint) (*db.Object, bool, error) {
	var existing db.Object
	err := gdb.WithContext(ctx).Where("name = ? AND manager_id = ?", strings.TrimSpace(of.Name), managerID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find object %s: %w", of.Name, err)
	}

	object, err := objects.Create(ctx, service.ObjectInput{
		Name:                        of.Name,
		Address:                     of.Address,
		ManagerID:                   managerID,
		WorkingHoursStart:           of.WorkingHoursStart,
		WorkingHoursEnd:             of.WorkingHoursEnd,
		WorkingDays:                 of.WorkingDays,
		Timezone:                    of.Timezone,
		RequirePhotoForCompletion:   of.RequirePhotoForCompletion,
		RequireCommentForCompletion: of.RequireCommentForCompletion,
		TelegramChatID:              of.TelegramChatID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create object %s: %w", of.Name, err)
	}
	return object, true, nil
}

func ensureTechCard(ctx context.Context, gdb *gorm.DB, cards *service.TechCardService, objectID string, cf TechCardFixture) (bool, error) {
	var count int64
	if err := gdb.WithContext(ctx).Model(&db.TechCard{}).
		Where("object_id = ? AND work_type = ? AND room_name = ?", objectID, strings.TrimSpace(cf.WorkType), strings.TrimSpace(cf.RoomName)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("find tech card: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	input := service.TechCardInput{
		ObjectID:      objectID,
		RoomName:      cf.RoomName,
		WorkType:      cf.WorkType,
		Description:   cf.Description,
		FrequencyText: cf.Frequency,
		PreferredTime: cf.PreferredTime,
		MaxDelayHours: cf.MaxDelayHours,
	}
	if raw := strings.TrimSpace(cf.StartDate); raw != "" {
		start, err := time.Parse(schedule.DateLayout, raw)
		if err != nil {
			return false, fmt.Errorf("tech card %s: bad start date %q", cf.WorkType, raw)
		}
		input.StartDate = &start
	}

	if _, err := cards.Create(ctx, input); err != nil {
		return false, fmt.Errorf("create tech card %s: %w", cf.WorkType, err)
	}
	return true, nil
}
