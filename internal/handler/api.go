package handler

import (
	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/notify"
	"github.com/cleanops/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db           *gorm.DB
	clock        clock.Clock
	logger       *zap.Logger
	objects      *service.ObjectService
	cards        *service.TechCardService
	generator    *service.Generator
	materializer *service.Materializer
	reconciler   *service.Reconciler
	calendar     *service.CalendarAggregator
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, clk clock.Clock, notifier notify.Notifier, logger *zap.Logger) *API {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	generator := service.NewGenerator(db, clk, logger)

	return &API{
		db:           db,
		clock:        clk,
		logger:       logger,
		objects:      service.NewObjectService(db),
		cards:        service.NewTechCardService(db),
		generator:    generator,
		materializer: service.NewMaterializer(db, clk, notifier, logger),
		reconciler:   service.NewReconciler(db, clk, notifier, logger),
		calendar:     service.NewCalendarAggregator(db, generator),
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Reconciler 供 CLI 与定时任务复用同一组服务
func (a *API) Reconciler() *service.Reconciler {
	return a.reconciler
}
