package comparison

import (
	"comparison-review/core/reconcile"
	"comparison-review/core/report"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	db      *gorm.DB
	service *Service
	handler *Handler
}

// NewFeature creates a new comparison review feature.
func NewFeature(db *gorm.DB, cfg reconcile.Config, publisher *report.Publisher, logger *zap.Logger, sessionLimit int) *Feature {
	svc := NewService(db, cfg, publisher, logger, sessionLimit)
	h := NewHandler(svc)
	return &Feature{db: db, service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "comparison"
}

// IsEnabled reports whether a database connection is available.
func (f *Feature) IsEnabled() bool {
	return f.db != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
