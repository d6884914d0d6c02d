package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
	"github.com/igapp/aurora/internal/metrics"
)

// Lifecycle transition labels shared by alerts and incidents
const (
	TransitionAssign        = "assign"
	TransitionNotes         = "notes"
	TransitionTimeline      = "timeline"
	TransitionResolve       = "resolve"
	TransitionFalsePositive = "false_positive"
)

// AlertService drives the alert lifecycle: NEW, INVESTIGATING, then RESOLVED
// or FALSE_POSITIVE. Target status ids are supplied by the caller and trusted
// to carry the intended meaning.
type AlertService struct {
	*CRUD[database.Alert, api.AlertRequest, api.AlertResponse]
}

// NewAlertService creates a new alert service
func NewAlertService(db *gorm.DB, log *zap.SugaredLogger) *AlertService {
	return &AlertService{CRUD: NewCRUD[database.Alert, api.AlertRequest, api.AlertResponse](db, log, "alert", alertMapper{})}
}

// AssignToAnalyst hands the alert to an analyst and moves it to the given
// status. resolved_at is left untouched.
func (s *AlertService) AssignToAnalyst(ctx context.Context, alertID uint, analyst string, investigatingStatusID uint) (api.AlertResponse, error) {
	resp, err := s.mustMutate(ctx, alertID, TransitionAssign, func(tx *gorm.DB, e *database.Alert) error {
		status, err := resolveRef[database.AlertStatus](tx, "alert status", investigatingStatusID)
		if err != nil {
			return err
		}
		e.AssignedTo = analyst
		e.StatusID, e.Status = status.ID, status
		return nil
	})
	return s.transitioned(resp, err, TransitionAssign)
}

// AddInvestigationNotes replaces the alert's notes without changing its status
func (s *AlertService) AddInvestigationNotes(ctx context.Context, alertID uint, notes string) (api.AlertResponse, error) {
	resp, err := s.mustMutate(ctx, alertID, TransitionNotes, func(_ *gorm.DB, e *database.Alert) error {
		e.InvestigationNotes = notes
		return nil
	})
	return s.transitioned(resp, err, TransitionNotes)
}

// Resolve moves the alert to the resolved status and stamps resolved_at
func (s *AlertService) Resolve(ctx context.Context, alertID uint, resolvedStatusID uint) (api.AlertResponse, error) {
	return s.close(ctx, alertID, resolvedStatusID, TransitionResolve)
}

// MarkFalsePositive closes the alert like Resolve, with a different status
func (s *AlertService) MarkFalsePositive(ctx context.Context, alertID uint, falsePositiveStatusID uint) (api.AlertResponse, error) {
	return s.close(ctx, alertID, falsePositiveStatusID, TransitionFalsePositive)
}

func (s *AlertService) close(ctx context.Context, alertID, statusID uint, transition string) (api.AlertResponse, error) {
	resp, err := s.mustMutate(ctx, alertID, transition, func(tx *gorm.DB, e *database.Alert) error {
		status, err := resolveRef[database.AlertStatus](tx, "alert status", statusID)
		if err != nil {
			return err
		}
		now := database.Now()
		e.StatusID, e.Status = status.ID, status
		e.ResolvedAt = &now
		return nil
	})
	return s.transitioned(resp, err, transition)
}

func (s *AlertService) transitioned(resp api.AlertResponse, err error, transition string) (api.AlertResponse, error) {
	if err != nil {
		return resp, err
	}
	metrics.LifecycleTransitions.WithLabelValues("alert", transition).Inc()
	s.log.Infow("Alert transitioned", "id", resp.ID, "transition", transition, "status", resp.Status, "assigned_to", resp.AssignedTo)
	return resp, nil
}

// ListByStatus returns alerts in the given status, newest first
func (s *AlertService) ListByStatus(ctx context.Context, statusID uint, p api.PageRequest) (api.Page[api.AlertResponse], error) {
	return s.ListWhere(ctx, p, whereEq("status_id", statusID))
}

// ListBySeverity returns alerts with the given severity, newest first
func (s *AlertService) ListBySeverity(ctx context.Context, severityID uint, p api.PageRequest) (api.Page[api.AlertResponse], error) {
	return s.ListWhere(ctx, p, whereEq("severity_id", severityID))
}

// ListByRule returns alerts raised by the rule, newest first
func (s *AlertService) ListByRule(ctx context.Context, ruleID uint, p api.PageRequest) (api.Page[api.AlertResponse], error) {
	return s.ListWhere(ctx, p, whereEq("rule_id", ruleID))
}

// ListByTimeRange returns alerts created in [start, end]
func (s *AlertService) ListByTimeRange(ctx context.Context, start, end time.Time) ([]api.AlertResponse, error) {
	return s.FindAll(ctx, createdBetween(start, end))
}

// CountByStatus returns the number of alerts in the given status
func (s *AlertService) CountByStatus(ctx context.Context, statusID uint) (int64, error) {
	return s.CountWhere(ctx, whereEq("status_id", statusID))
}

// ListOpenByAnalyst returns the analyst's alerts that are not in resolvedStatusID
func (s *AlertService) ListOpenByAnalyst(ctx context.Context, analyst string, resolvedStatusID uint) ([]api.AlertResponse, error) {
	return s.FindAll(ctx, whereEq("assigned_to", analyst), func(db *gorm.DB) *gorm.DB {
		return db.Where("status_id <> ?", resolvedStatusID)
	})
}

// GetAlertIncidents returns the ids of the incidents holding the alert, ascending
func (s *AlertService) GetAlertIncidents(ctx context.Context, alertID uint) ([]uint, error) {
	return database.AlertIncidentIDs(s.db.WithContext(ctx), alertID)
}

type alertMapper struct{}

func (alertMapper) ToEntity(tx *gorm.DB, req *api.AlertRequest) (*database.Alert, error) {
	rule, err := resolveRef[database.Rule](tx, "rule", *req.RuleID)
	if err != nil {
		return nil, err
	}
	event, err := resolveRef[database.LogEvent](tx, "log event", *req.LogEventID)
	if err != nil {
		return nil, err
	}
	source, err := resolveRef[database.Source](tx, "source", *req.SourceID)
	if err != nil {
		return nil, err
	}
	severity, err := resolveRef[database.Severity](tx, "severity", *req.SeverityID)
	if err != nil {
		return nil, err
	}
	status, err := resolveRef[database.AlertStatus](tx, "alert status", *req.StatusID)
	if err != nil {
		return nil, err
	}

	return &database.Alert{
		RuleID:             rule.ID,
		Rule:               rule,
		LogEventID:         event.ID,
		LogEvent:           event,
		SourceID:           source.ID,
		Source:             source,
		SeverityID:         severity.ID,
		Severity:           severity,
		StatusID:           status.ID,
		Status:             status,
		Message:            req.Message,
		AssignedTo:         deref(req.AssignedTo),
		InvestigationNotes: deref(req.InvestigationNotes),
	}, nil
}

func (alertMapper) ToResponse(e *database.Alert) api.AlertResponse {
	resp := api.AlertResponse{
		ID:                 e.ID,
		RuleID:             e.RuleID,
		LogEventID:         e.LogEventID,
		SeverityID:         e.SeverityID,
		StatusID:           e.StatusID,
		Message:            e.Message,
		AssignedTo:         e.AssignedTo,
		InvestigationNotes: e.InvestigationNotes,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
		ResolvedAt:         e.ResolvedAt,
	}
	if e.Rule != nil {
		resp.RuleName = e.Rule.Name
	}
	if e.Source != nil {
		resp.SourceID = e.Source.AgentID
	}
	if e.Severity != nil {
		resp.Severity = e.Severity.Name
	}
	if e.Status != nil {
		resp.Status = e.Status.Name
	}
	return resp
}

// ApplyUpdate always overwrites the message. References change only when the
// new id resolves; assignee and notes change only when present.
func (alertMapper) ApplyUpdate(tx *gorm.DB, e *database.Alert, req *api.AlertRequest) error {
	rule, ok, err := resolveForUpdate[database.Rule](tx, "rule", req.RuleID)
	if err != nil {
		return err
	}
	if ok {
		e.RuleID, e.Rule = rule.ID, rule
	}

	event, ok, err := resolveForUpdate[database.LogEvent](tx, "log event", req.LogEventID)
	if err != nil {
		return err
	}
	if ok {
		e.LogEventID, e.LogEvent = event.ID, event
	}

	source, ok, err := resolveForUpdate[database.Source](tx, "source", req.SourceID)
	if err != nil {
		return err
	}
	if ok {
		e.SourceID, e.Source = source.ID, source
	}

	severity, ok, err := resolveForUpdate[database.Severity](tx, "severity", req.SeverityID)
	if err != nil {
		return err
	}
	if ok {
		e.SeverityID, e.Severity = severity.ID, severity
	}

	status, ok, err := resolveForUpdate[database.AlertStatus](tx, "alert status", req.StatusID)
	if err != nil {
		return err
	}
	if ok {
		e.StatusID, e.Status = status.ID, status
	}

	e.Message = req.Message
	if req.AssignedTo != nil {
		e.AssignedTo = *req.AssignedTo
	}
	if req.InvestigationNotes != nil {
		e.InvestigationNotes = *req.InvestigationNotes
	}
	return nil
}

func (alertMapper) Preload(db *gorm.DB) *gorm.DB {
	return db.Preload("Rule").Preload("Source").Preload("Severity").Preload("Status")
}

func (alertMapper) DefaultOrder() string {
	return "created_at DESC, id DESC"
}

// Delete removes the alert and its incident memberships; incidents stay.
func (alertMapper) Delete(tx *gorm.DB, id uint) error {
	if err := database.ClearAlertMembership(tx, id); err != nil {
		return err
	}
	return tx.Delete(&database.Alert{}, id).Error
}
