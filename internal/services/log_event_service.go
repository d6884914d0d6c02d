package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
	"github.com/igapp/aurora/internal/utils"
)

const messagePreviewLen = 120

// LogEventService stores raw observations reported by sources
type LogEventService struct {
	*CRUD[database.LogEvent, api.LogEventRequest, api.LogEventResponse]
}

// NewLogEventService creates a new log event service
func NewLogEventService(db *gorm.DB, log *zap.SugaredLogger) *LogEventService {
	return &LogEventService{CRUD: NewCRUD[database.LogEvent, api.LogEventRequest, api.LogEventResponse](db, log, "log_event", logEventMapper{})}
}

// Create stores the event; the timestamp defaults to now
func (s *LogEventService) Create(ctx context.Context, req *api.LogEventRequest) (api.LogEventResponse, error) {
	resp, err := s.CRUD.Create(ctx, req)
	if err != nil {
		return resp, err
	}
	s.log.Debugw("Log event stored", "id", resp.ID, "agent_id", resp.AgentID, "message", utils.TruncateText(resp.Message, messagePreviewLen))
	return resp, nil
}

// ListBySource returns events reported by the agent, newest first
func (s *LogEventService) ListBySource(ctx context.Context, agentID string, p api.PageRequest) (api.Page[api.LogEventResponse], error) {
	return s.ListWhere(ctx, p, func(db *gorm.DB) *gorm.DB {
		sources := db.Session(&gorm.Session{NewDB: true}).
			Model(&database.Source{}).
			Select("id").
			Where("agent_id = ?", agentID)
		return db.Where("source_id IN (?)", sources)
	})
}

// ListBySeverity returns events tagged with the severity
func (s *LogEventService) ListBySeverity(ctx context.Context, severityID uint, p api.PageRequest) (api.Page[api.LogEventResponse], error) {
	return s.ListWhere(ctx, p, whereEq("severity_id", severityID))
}

// ListByTimeRange returns events whose event time lies in [start, end]
func (s *LogEventService) ListByTimeRange(ctx context.Context, start, end time.Time) ([]api.LogEventResponse, error) {
	return s.FindAll(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("timestamp >= ? AND timestamp <= ?", start.UTC(), end.UTC())
	})
}

// Search returns events whose message contains keyword, ignoring case
func (s *LogEventService) Search(ctx context.Context, keyword string, p api.PageRequest) (api.Page[api.LogEventResponse], error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	return s.ListWhere(ctx, p, func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(message) LIKE ?", pattern)
	})
}

// CountBySeverity returns the number of events tagged with the severity
func (s *LogEventService) CountBySeverity(ctx context.Context, severityID uint) (int64, error) {
	return s.CountWhere(ctx, whereEq("severity_id", severityID))
}

type logEventMapper struct{}

func (logEventMapper) ToEntity(tx *gorm.DB, req *api.LogEventRequest) (*database.LogEvent, error) {
	source, err := resolveRef[database.Source](tx, "source", *req.SourceID)
	if err != nil {
		return nil, err
	}
	severity, err := resolveOptionalRef[database.Severity](tx, "severity", req.SeverityID)
	if err != nil {
		return nil, err
	}

	e := &database.LogEvent{
		SourceID: source.ID,
		Source:   source,
		Message:  req.Message,
		RawData:  req.RawData,
	}
	if severity != nil {
		e.SeverityID = &severity.ID
		e.Severity = severity
	}
	if req.Timestamp != nil {
		e.Timestamp = req.Timestamp.UTC()
	}
	return e, nil
}

func (logEventMapper) ToResponse(e *database.LogEvent) api.LogEventResponse {
	resp := api.LogEventResponse{
		ID:         e.ID,
		SourceID:   e.SourceID,
		Message:    e.Message,
		SeverityID: e.SeverityID,
		RawData:    e.RawData,
		Timestamp:  e.Timestamp,
		CreatedAt:  e.CreatedAt,
	}
	if e.Source != nil {
		resp.AgentID = e.Source.AgentID
	}
	if e.Severity != nil {
		resp.Severity = e.Severity.Name
	}
	return resp
}

// ApplyUpdate always overwrites the message. Source and severity change only
// when the new id resolves.
func (logEventMapper) ApplyUpdate(tx *gorm.DB, e *database.LogEvent, req *api.LogEventRequest) error {
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
		e.SeverityID, e.Severity = &severity.ID, severity
	}

	e.Message = req.Message
	if req.RawData != nil {
		e.RawData = req.RawData
	}
	if req.Timestamp != nil {
		e.Timestamp = req.Timestamp.UTC()
	}
	return nil
}

func (logEventMapper) Preload(db *gorm.DB) *gorm.DB {
	return db.Preload("Source").Preload("Severity")
}

func (logEventMapper) DefaultOrder() string {
	return "created_at DESC, id DESC"
}
