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

// Membership change labels
const (
	MembershipAttach = "attach"
	MembershipDetach = "detach"
)

// IncidentService groups alerts into incidents. Incidents reuse the alert
// status vocabulary; their transitions never touch member alerts.
type IncidentService struct {
	*CRUD[database.Incident, api.IncidentRequest, api.IncidentResponse]
}

// NewIncidentService creates a new incident service
func NewIncidentService(db *gorm.DB, log *zap.SugaredLogger) *IncidentService {
	return &IncidentService{CRUD: NewCRUD[database.Incident, api.IncidentRequest, api.IncidentResponse](db, log, "incident", incidentMapper{})}
}

// CreateWithAlerts opens an incident holding the given alerts. Nothing is
// committed when any alert id does not resolve.
func (s *IncidentService) CreateWithAlerts(ctx context.Context, req *api.IncidentRequest, alertIDs []uint) (api.IncidentResponse, error) {
	attached := 0
	resp, err := s.createWith(ctx, req, func(tx *gorm.DB, e *database.Incident) error {
		for _, alertID := range alertIDs {
			if _, err := resolveRef[database.Alert](tx, "alert", alertID); err != nil {
				return err
			}
			inserted, err := database.AttachAlert(tx, e.ID, alertID)
			if err != nil {
				return err
			}
			if inserted {
				attached++
			}
		}
		return nil
	})
	if err != nil {
		return resp, err
	}

	metrics.MembershipChanges.WithLabelValues(MembershipAttach).Add(float64(attached))
	return resp, nil
}

// AddAlert puts the alert into the incident. Adding a member again is a no-op.
func (s *IncidentService) AddAlert(ctx context.Context, incidentID, alertID uint) (api.IncidentResponse, error) {
	var inserted bool
	resp, err := s.mustMutate(ctx, incidentID, MembershipAttach, func(tx *gorm.DB, e *database.Incident) error {
		if _, err := resolveRef[database.Alert](tx, "alert", alertID); err != nil {
			return err
		}
		var err error
		inserted, err = database.AttachAlert(tx, e.ID, alertID)
		return err
	})
	if err != nil {
		return resp, err
	}

	if inserted {
		metrics.MembershipChanges.WithLabelValues(MembershipAttach).Inc()
		s.log.Infow("Alert attached to incident", "incident_id", incidentID, "alert_id", alertID)
	}
	return resp, nil
}

// RemoveAlert takes the alert out of the incident. The alert itself is kept;
// removing a non-member is a no-op.
func (s *IncidentService) RemoveAlert(ctx context.Context, incidentID, alertID uint) (api.IncidentResponse, error) {
	var removed bool
	resp, err := s.mustMutate(ctx, incidentID, MembershipDetach, func(tx *gorm.DB, e *database.Incident) error {
		if _, err := resolveRef[database.Alert](tx, "alert", alertID); err != nil {
			return err
		}
		var err error
		removed, err = database.DetachAlert(tx, e.ID, alertID)
		return err
	})
	if err != nil {
		return resp, err
	}

	if removed {
		metrics.MembershipChanges.WithLabelValues(MembershipDetach).Inc()
		s.log.Infow("Alert detached from incident", "incident_id", incidentID, "alert_id", alertID)
	}
	return resp, nil
}

// GetIncidentAlerts returns the member alert ids in ascending order.
// A missing incident yields an empty set, same as an incident without alerts.
func (s *IncidentService) GetIncidentAlerts(ctx context.Context, incidentID uint) ([]uint, error) {
	return database.IncidentAlertIDs(s.db.WithContext(ctx), incidentID)
}

// AssignToAnalyst hands the incident to an analyst and moves it to the given status
func (s *IncidentService) AssignToAnalyst(ctx context.Context, incidentID uint, analyst string, investigatingStatusID uint) (api.IncidentResponse, error) {
	resp, err := s.mustMutate(ctx, incidentID, TransitionAssign, func(tx *gorm.DB, e *database.Incident) error {
		status, err := resolveRef[database.AlertStatus](tx, "alert status", investigatingStatusID)
		if err != nil {
			return err
		}
		e.AssignedTo = analyst
		e.StatusID, e.Status = &status.ID, status
		return nil
	})
	return s.transitioned(resp, err, TransitionAssign)
}

// UpdateTimeline replaces the free-text timeline
func (s *IncidentService) UpdateTimeline(ctx context.Context, incidentID uint, timeline string) (api.IncidentResponse, error) {
	resp, err := s.mustMutate(ctx, incidentID, TransitionTimeline, func(_ *gorm.DB, e *database.Incident) error {
		e.Timeline = timeline
		return nil
	})
	return s.transitioned(resp, err, TransitionTimeline)
}

// Resolve moves the incident to the resolved status and stamps resolved_at
func (s *IncidentService) Resolve(ctx context.Context, incidentID uint, resolvedStatusID uint) (api.IncidentResponse, error) {
	return s.close(ctx, incidentID, resolvedStatusID, TransitionResolve)
}

// MarkFalsePositive closes the incident like Resolve, with a different status
func (s *IncidentService) MarkFalsePositive(ctx context.Context, incidentID uint, falsePositiveStatusID uint) (api.IncidentResponse, error) {
	return s.close(ctx, incidentID, falsePositiveStatusID, TransitionFalsePositive)
}

func (s *IncidentService) close(ctx context.Context, incidentID, statusID uint, transition string) (api.IncidentResponse, error) {
	resp, err := s.mustMutate(ctx, incidentID, transition, func(tx *gorm.DB, e *database.Incident) error {
		status, err := resolveRef[database.AlertStatus](tx, "alert status", statusID)
		if err != nil {
			return err
		}
		now := database.Now()
		e.StatusID, e.Status = &status.ID, status
		e.ResolvedAt = &now
		return nil
	})
	return s.transitioned(resp, err, transition)
}

func (s *IncidentService) transitioned(resp api.IncidentResponse, err error, transition string) (api.IncidentResponse, error) {
	if err != nil {
		return resp, err
	}
	metrics.LifecycleTransitions.WithLabelValues("incident", transition).Inc()
	s.log.Infow("Incident transitioned", "id", resp.ID, "uuid", resp.UUID, "transition", transition, "status", resp.Status)
	return resp, nil
}

// GetByUUID returns the incident with the given external reference, or nil
func (s *IncidentService) GetByUUID(ctx context.Context, uuid string) (*api.IncidentResponse, error) {
	return s.FindOne(ctx, whereEq("uuid", uuid))
}

// ListByStatus returns incidents in the given status, newest first
func (s *IncidentService) ListByStatus(ctx context.Context, statusID uint, p api.PageRequest) (api.Page[api.IncidentResponse], error) {
	return s.ListWhere(ctx, p, whereEq("status_id", statusID))
}

// ListBySeverity returns incidents with the given severity, newest first
func (s *IncidentService) ListBySeverity(ctx context.Context, severityID uint, p api.PageRequest) (api.Page[api.IncidentResponse], error) {
	return s.ListWhere(ctx, p, whereEq("severity_id", severityID))
}

// ListByAssignee returns incidents assigned to the analyst, newest first
func (s *IncidentService) ListByAssignee(ctx context.Context, analyst string, p api.PageRequest) (api.Page[api.IncidentResponse], error) {
	return s.ListWhere(ctx, p, whereEq("assigned_to", analyst))
}

// ListByTimeRange returns incidents created in [start, end]
func (s *IncidentService) ListByTimeRange(ctx context.Context, start, end time.Time) ([]api.IncidentResponse, error) {
	return s.FindAll(ctx, createdBetween(start, end))
}

// ListOpen returns incidents that have not been resolved or dismissed
func (s *IncidentService) ListOpen(ctx context.Context) ([]api.IncidentResponse, error) {
	return s.FindAll(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("resolved_at IS NULL")
	})
}

// CountByStatus returns the number of incidents in the given status
func (s *IncidentService) CountByStatus(ctx context.Context, statusID uint) (int64, error) {
	return s.CountWhere(ctx, whereEq("status_id", statusID))
}

type incidentMapper struct{}

func (incidentMapper) ToEntity(tx *gorm.DB, req *api.IncidentRequest) (*database.Incident, error) {
	severity, err := resolveOptionalRef[database.Severity](tx, "severity", req.SeverityID)
	if err != nil {
		return nil, err
	}
	status, err := resolveOptionalRef[database.AlertStatus](tx, "alert status", req.StatusID)
	if err != nil {
		return nil, err
	}

	e := &database.Incident{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		AssignedTo:  deref(req.AssignedTo),
		Timeline:    deref(req.Timeline),
	}
	if severity != nil {
		e.SeverityID, e.Severity = &severity.ID, severity
	}
	if status != nil {
		e.StatusID, e.Status = &status.ID, status
	}
	return e, nil
}

func (incidentMapper) ToResponse(e *database.Incident) api.IncidentResponse {
	resp := api.IncidentResponse{
		ID:          e.ID,
		UUID:        e.UUID,
		Title:       e.Title,
		Description: e.Description,
		SeverityID:  e.SeverityID,
		StatusID:    e.StatusID,
		AssignedTo:  e.AssignedTo,
		Timeline:    e.Timeline,
		AlertIDs:    []uint{},
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		ResolvedAt:  e.ResolvedAt,
	}
	if e.Severity != nil {
		resp.Severity = e.Severity.Name
	}
	if e.Status != nil {
		resp.Status = e.Status.Name
	}
	return resp
}

func (incidentMapper) ApplyUpdate(tx *gorm.DB, e *database.Incident, req *api.IncidentRequest) error {
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.AssignedTo != nil {
		e.AssignedTo = *req.AssignedTo
	}
	if req.Timeline != nil {
		e.Timeline = *req.Timeline
	}

	severity, ok, err := resolveForUpdate[database.Severity](tx, "severity", req.SeverityID)
	if err != nil {
		return err
	}
	if ok {
		e.SeverityID, e.Severity = &severity.ID, severity
	}

	status, ok, err := resolveForUpdate[database.AlertStatus](tx, "alert status", req.StatusID)
	if err != nil {
		return err
	}
	if ok {
		e.StatusID, e.Status = &status.ID, status
	}
	return nil
}

func (incidentMapper) Preload(db *gorm.DB) *gorm.DB {
	return db.Preload("Severity").Preload("Status")
}

func (incidentMapper) DefaultOrder() string {
	return "created_at DESC, id DESC"
}

// Decorate fills in member alert ids with one query per batch
func (incidentMapper) Decorate(db *gorm.DB, resps []api.IncidentResponse) error {
	ids := make([]uint, 0, len(resps))
	for _, r := range resps {
		ids = append(ids, r.ID)
	}
	members, err := database.IncidentAlertIDsByIncident(db, ids)
	if err != nil {
		return err
	}
	for i := range resps {
		if alertIDs, ok := members[resps[i].ID]; ok {
			resps[i].AlertIDs = alertIDs
		}
	}
	return nil
}

// Delete removes the incident and its memberships; member alerts stay.
func (incidentMapper) Delete(tx *gorm.DB, id uint) error {
	if err := database.ClearIncidentMembership(tx, id); err != nil {
		return err
	}
	return tx.Delete(&database.Incident{}, id).Error
}
