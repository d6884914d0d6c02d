package services

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
)

// SourceService manages the registry of reporting agents
type SourceService struct {
	*CRUD[database.Source, api.SourceRequest, api.SourceResponse]
}

// NewSourceService creates a new source service
func NewSourceService(db *gorm.DB, log *zap.SugaredLogger) *SourceService {
	return &SourceService{CRUD: NewCRUD[database.Source, api.SourceRequest, api.SourceResponse](db, log, "source", sourceMapper{})}
}

// GetByAgentID returns the live source registered under agentID, or nil
func (s *SourceService) GetByAgentID(ctx context.Context, agentID string) (*api.SourceResponse, error) {
	return s.FindOne(ctx, whereEq("agent_id", agentID))
}

// GetByIPAddress returns the first live source with the given address, or nil
func (s *SourceService) GetByIPAddress(ctx context.Context, ip string) (*api.SourceResponse, error) {
	return s.FindOne(ctx, whereEq("ip_address", ip))
}

// ListByActive returns live sources with the given active flag
func (s *SourceService) ListByActive(ctx context.Context, active bool, p api.PageRequest) (api.Page[api.SourceResponse], error) {
	return s.ListWhere(ctx, p, whereEq("is_active", active))
}

// ListByHostname returns live sources reporting from hostname
func (s *SourceService) ListByHostname(ctx context.Context, hostname string, p api.PageRequest) (api.Page[api.SourceResponse], error) {
	return s.ListWhere(ctx, p, whereEq("hostname", hostname))
}

// RecordHeartbeat stamps the agent's last heartbeat and marks it active
func (s *SourceService) RecordHeartbeat(ctx context.Context, agentID string) (api.SourceResponse, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&database.Source{}).
		Scopes(database.NotDeleted).
		Where("agent_id = ?", agentID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return api.SourceResponse{}, errors.Wrapf(err, "failed to look up source %q", agentID)
	}
	if len(ids) == 0 {
		return api.SourceResponse{}, notFound("source", agentID)
	}

	return s.mustMutate(ctx, ids[0], "heartbeat", func(_ *gorm.DB, e *database.Source) error {
		now := database.Now()
		e.LastHeartbeat = &now
		e.IsActive = true
		return nil
	})
}

type sourceMapper struct{}

func (sourceMapper) ToEntity(_ *gorm.DB, req *api.SourceRequest) (*database.Source, error) {
	e := &database.Source{
		AgentID:      strings.TrimSpace(deref(req.AgentID)),
		Hostname:     strings.TrimSpace(deref(req.Hostname)),
		IPAddress:    deref(req.IPAddress),
		OSType:       deref(req.OSType),
		AgentVersion: deref(req.AgentVersion),
		IsActive:     true,
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	return e, nil
}

func (sourceMapper) ToResponse(e *database.Source) api.SourceResponse {
	return api.SourceResponse{
		ID:            e.ID,
		AgentID:       e.AgentID,
		Hostname:      e.Hostname,
		IPAddress:     e.IPAddress,
		OSType:        e.OSType,
		AgentVersion:  e.AgentVersion,
		IsActive:      e.IsActive,
		LastHeartbeat: e.LastHeartbeat,
		IsDeleted:     e.IsDeleted,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func (sourceMapper) ApplyUpdate(_ *gorm.DB, e *database.Source, req *api.SourceRequest) error {
	if req.AgentID != nil {
		e.AgentID = strings.TrimSpace(*req.AgentID)
	}
	if req.Hostname != nil {
		e.Hostname = strings.TrimSpace(*req.Hostname)
	}
	if req.IPAddress != nil {
		e.IPAddress = *req.IPAddress
	}
	if req.OSType != nil {
		e.OSType = *req.OSType
	}
	if req.AgentVersion != nil {
		e.AgentVersion = *req.AgentVersion
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	return nil
}

func (sourceMapper) CheckUnique(tx *gorm.DB, e *database.Source) error {
	return checkUniqueColumn(tx, &database.Source{}, "source", "agent_id", e.AgentID, e.ID)
}
