package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
)

// RuleService manages detection rule definitions. Conditions are stored
// verbatim; nothing here evaluates them.
type RuleService struct {
	*CRUD[database.Rule, api.RuleRequest, api.RuleResponse]
}

// NewRuleService creates a new rule service
func NewRuleService(db *gorm.DB, log *zap.SugaredLogger) *RuleService {
	return &RuleService{CRUD: NewCRUD[database.Rule, api.RuleRequest, api.RuleResponse](db, log, "rule", ruleMapper{})}
}

// ListByEnabled returns live rules with the given enabled flag
func (s *RuleService) ListByEnabled(ctx context.Context, enabled bool, p api.PageRequest) (api.Page[api.RuleResponse], error) {
	return s.ListWhere(ctx, p, whereEq("enabled", enabled))
}

// ListByStatus returns live rules in the given rule status
func (s *RuleService) ListByStatus(ctx context.Context, statusID uint, p api.PageRequest) (api.Page[api.RuleResponse], error) {
	return s.ListWhere(ctx, p, whereEq("status_id", statusID))
}

// SearchByName returns live rules whose name contains fragment, ignoring case
func (s *RuleService) SearchByName(ctx context.Context, fragment string, p api.PageRequest) (api.Page[api.RuleResponse], error) {
	pattern := "%" + strings.ToLower(fragment) + "%"
	return s.ListWhere(ctx, p, func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(name) LIKE ?", pattern)
	})
}

// ListActiveEnabled returns every enabled live rule in the given status
func (s *RuleService) ListActiveEnabled(ctx context.Context, activeStatusID uint) ([]api.RuleResponse, error) {
	return s.FindAll(ctx, whereEq("enabled", true), whereEq("status_id", activeStatusID))
}

// ToggleEnabled sets the enabled flag and nothing else
func (s *RuleService) ToggleEnabled(ctx context.Context, ruleID uint, enabled bool) (api.RuleResponse, error) {
	return s.mustMutate(ctx, ruleID, "toggle", func(_ *gorm.DB, e *database.Rule) error {
		e.Enabled = enabled
		return nil
	})
}

type ruleMapper struct{}

func (ruleMapper) ToEntity(tx *gorm.DB, req *api.RuleRequest) (*database.Rule, error) {
	status, err := resolveRef[database.RuleStatus](tx, "rule status", *req.StatusID)
	if err != nil {
		return nil, err
	}
	severity, err := resolveRef[database.Severity](tx, "severity", *req.DefaultSeverityID)
	if err != nil {
		return nil, err
	}

	e := &database.Rule{
		Name:              strings.TrimSpace(deref(req.Name)),
		Description:       deref(req.Description),
		Condition:         deref(req.Condition),
		StatusID:          status.ID,
		Status:            status,
		DefaultSeverityID: severity.ID,
		DefaultSeverity:   severity,
		Enabled:           true,
		AlertMessage:      deref(req.AlertMessage),
	}
	if req.Enabled != nil {
		e.Enabled = *req.Enabled
	}
	return e, nil
}

func (ruleMapper) ToResponse(e *database.Rule) api.RuleResponse {
	resp := api.RuleResponse{
		ID:                e.ID,
		Name:              e.Name,
		Description:       e.Description,
		Condition:         e.Condition,
		StatusID:          e.StatusID,
		DefaultSeverityID: e.DefaultSeverityID,
		Enabled:           e.Enabled,
		AlertMessage:      e.AlertMessage,
		IsDeleted:         e.IsDeleted,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	if e.Status != nil {
		resp.Status = e.Status.Name
	}
	if e.DefaultSeverity != nil {
		resp.DefaultSeverity = e.DefaultSeverity.Name
	}
	return resp
}

func (ruleMapper) ApplyUpdate(tx *gorm.DB, e *database.Rule, req *api.RuleRequest) error {
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Condition != nil {
		e.Condition = *req.Condition
	}
	if req.Enabled != nil {
		e.Enabled = *req.Enabled
	}
	if req.AlertMessage != nil {
		e.AlertMessage = *req.AlertMessage
	}

	status, ok, err := resolveForUpdate[database.RuleStatus](tx, "rule status", req.StatusID)
	if err != nil {
		return err
	}
	if ok {
		e.StatusID, e.Status = status.ID, status
	}

	severity, ok, err := resolveForUpdate[database.Severity](tx, "severity", req.DefaultSeverityID)
	if err != nil {
		return err
	}
	if ok {
		e.DefaultSeverityID, e.DefaultSeverity = severity.ID, severity
	}
	return nil
}

func (ruleMapper) CheckUnique(tx *gorm.DB, e *database.Rule) error {
	return checkUniqueColumn(tx, &database.Rule{}, "rule", "name", e.Name, e.ID)
}

func (ruleMapper) Preload(db *gorm.DB) *gorm.DB {
	return db.Preload("Status").Preload("DefaultSeverity")
}
