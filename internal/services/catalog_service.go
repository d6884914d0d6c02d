package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
)

// ========== Severity ==========

// SeverityService manages the severity catalog
type SeverityService struct {
	*CRUD[database.Severity, api.SeverityRequest, api.SeverityResponse]
}

// NewSeverityService creates a new severity service
func NewSeverityService(db *gorm.DB, log *zap.SugaredLogger) *SeverityService {
	return &SeverityService{CRUD: NewCRUD[database.Severity, api.SeverityRequest, api.SeverityResponse](db, log, "severity", severityMapper{})}
}

// GetByName returns the live severity with the given name, or nil
func (s *SeverityService) GetByName(ctx context.Context, name string) (*api.SeverityResponse, error) {
	return s.FindOne(ctx, whereEq("name", name))
}

// GetByLevel returns the live severities at the given level
func (s *SeverityService) GetByLevel(ctx context.Context, level int) ([]api.SeverityResponse, error) {
	return s.FindAll(ctx, whereEq("level", level))
}

type severityMapper struct{}

func (severityMapper) ToEntity(_ *gorm.DB, req *api.SeverityRequest) (*database.Severity, error) {
	e := &database.Severity{
		Name:        strings.TrimSpace(deref(req.Name)),
		Description: deref(req.Description),
	}
	if req.Level != nil {
		e.Level = *req.Level
	}
	return e, nil
}

func (severityMapper) ToResponse(e *database.Severity) api.SeverityResponse {
	return api.SeverityResponse{
		ID:          e.ID,
		Name:        e.Name,
		Level:       e.Level,
		Description: e.Description,
		IsDeleted:   e.IsDeleted,
		DeletedAt:   e.DeletedAt,
	}
}

func (severityMapper) ApplyUpdate(_ *gorm.DB, e *database.Severity, req *api.SeverityRequest) error {
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Level != nil {
		e.Level = *req.Level
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	return nil
}

func (severityMapper) CheckUnique(tx *gorm.DB, e *database.Severity) error {
	return checkUniqueColumn(tx, &database.Severity{}, "severity", "name", e.Name, e.ID)
}

// Most severe first
func (severityMapper) DefaultOrder() string {
	return "level DESC, id ASC"
}

// ========== Rule Status ==========

// RuleStatusService manages the rule status catalog
type RuleStatusService struct {
	*CRUD[database.RuleStatus, api.CatalogRequest, api.CatalogResponse]
}

// NewRuleStatusService creates a new rule status service
func NewRuleStatusService(db *gorm.DB, log *zap.SugaredLogger) *RuleStatusService {
	return &RuleStatusService{CRUD: NewCRUD[database.RuleStatus, api.CatalogRequest, api.CatalogResponse](db, log, "rule_status", ruleStatusMapper{})}
}

// GetByName returns the live rule status with the given name, or nil
func (s *RuleStatusService) GetByName(ctx context.Context, name string) (*api.CatalogResponse, error) {
	return s.FindOne(ctx, whereEq("name", name))
}

type ruleStatusMapper struct{}

func (ruleStatusMapper) ToEntity(_ *gorm.DB, req *api.CatalogRequest) (*database.RuleStatus, error) {
	return &database.RuleStatus{
		Name:        strings.TrimSpace(deref(req.Name)),
		Description: deref(req.Description),
	}, nil
}

func (ruleStatusMapper) ToResponse(e *database.RuleStatus) api.CatalogResponse {
	return api.CatalogResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		IsDeleted:   e.IsDeleted,
		DeletedAt:   e.DeletedAt,
	}
}

func (ruleStatusMapper) ApplyUpdate(_ *gorm.DB, e *database.RuleStatus, req *api.CatalogRequest) error {
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	return nil
}

func (ruleStatusMapper) CheckUnique(tx *gorm.DB, e *database.RuleStatus) error {
	return checkUniqueColumn(tx, &database.RuleStatus{}, "rule status", "name", e.Name, e.ID)
}

// ========== Alert Status ==========

// AlertStatusService manages the status vocabulary shared by alerts and incidents
type AlertStatusService struct {
	*CRUD[database.AlertStatus, api.CatalogRequest, api.CatalogResponse]
}

// NewAlertStatusService creates a new alert status service
func NewAlertStatusService(db *gorm.DB, log *zap.SugaredLogger) *AlertStatusService {
	return &AlertStatusService{CRUD: NewCRUD[database.AlertStatus, api.CatalogRequest, api.CatalogResponse](db, log, "alert_status", alertStatusMapper{})}
}

// GetByName returns the live alert status with the given name, or nil
func (s *AlertStatusService) GetByName(ctx context.Context, name string) (*api.CatalogResponse, error) {
	return s.FindOne(ctx, whereEq("name", name))
}

type alertStatusMapper struct{}

func (alertStatusMapper) ToEntity(_ *gorm.DB, req *api.CatalogRequest) (*database.AlertStatus, error) {
	return &database.AlertStatus{
		Name:        strings.TrimSpace(deref(req.Name)),
		Description: deref(req.Description),
	}, nil
}

func (alertStatusMapper) ToResponse(e *database.AlertStatus) api.CatalogResponse {
	return api.CatalogResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		IsDeleted:   e.IsDeleted,
		DeletedAt:   e.DeletedAt,
	}
}

func (alertStatusMapper) ApplyUpdate(_ *gorm.DB, e *database.AlertStatus, req *api.CatalogRequest) error {
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	return nil
}

func (alertStatusMapper) CheckUnique(tx *gorm.DB, e *database.AlertStatus) error {
	return checkUniqueColumn(tx, &database.AlertStatus{}, "alert status", "name", e.Name, e.ID)
}
