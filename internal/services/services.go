package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles every entity service over one store
type Services struct {
	Severities    *SeverityService
	RuleStatuses  *RuleStatusService
	AlertStatuses *AlertStatusService
	Sources       *SourceService
	LogEvents     *LogEventService
	Rules         *RuleService
	Alerts        *AlertService
	Incidents     *IncidentService
}

// New wires all services to db
func New(db *gorm.DB, log *zap.SugaredLogger) *Services {
	return &Services{
		Severities:    NewSeverityService(db, log),
		RuleStatuses:  NewRuleStatusService(db, log),
		AlertStatuses: NewAlertStatusService(db, log),
		Sources:       NewSourceService(db, log),
		LogEvents:     NewLogEventService(db, log),
		Rules:         NewRuleService(db, log),
		Alerts:        NewAlertService(db, log),
		Incidents:     NewIncidentService(db, log),
	}
}

// EntityCount is the number of live rows of one entity
type EntityCount struct {
	Entity string
	Count  int64
}

// Stats counts the live rows of every entity, catalogs first
func (s *Services) Stats(ctx context.Context) ([]EntityCount, error) {
	counters := []struct {
		entity string
		count  func(context.Context) (int64, error)
	}{
		{"severities", s.Severities.Count},
		{"rule_statuses", s.RuleStatuses.Count},
		{"alert_statuses", s.AlertStatuses.Count},
		{"sources", s.Sources.Count},
		{"log_events", s.LogEvents.Count},
		{"rules", s.Rules.Count},
		{"alerts", s.Alerts.Count},
		{"incidents", s.Incidents.Count},
	}

	stats := make([]EntityCount, 0, len(counters))
	for _, c := range counters {
		n, err := c.count(ctx)
		if err != nil {
			return nil, err
		}
		stats = append(stats, EntityCount{Entity: c.entity, Count: n})
	}
	return stats, nil
}
