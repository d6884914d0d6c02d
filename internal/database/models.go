package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ========== Reference Catalogs ==========

// Severity is a ranked severity level (CRITICAL, HIGH, ...). Higher Level means more severe.
type Severity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;not null;uniqueIndex:idx_severities_name,where:is_deleted = false" json:"name"`
	Level       int       `gorm:"not null;default:0;index" json:"level"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete
}

func (Severity) TableName() string {
	return "severities"
}

// RuleStatus is the lifecycle vocabulary for detection rules (ACTIVE, INACTIVE, ARCHIVED)
type RuleStatus struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;not null;uniqueIndex:idx_rule_statuses_name,where:is_deleted = false" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete
}

func (RuleStatus) TableName() string {
	return "rule_statuses"
}

// AlertStatus is the lifecycle vocabulary shared by alerts and incidents
// (NEW, INVESTIGATING, RESOLVED, FALSE_POSITIVE)
type AlertStatus struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;not null;uniqueIndex:idx_alert_statuses_name,where:is_deleted = false" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete
}

func (AlertStatus) TableName() string {
	return "alert_statuses"
}

// ========== Source Registry ==========

// Source is an agent running on a monitored host
type Source struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AgentID       string     `gorm:"size:128;not null;uniqueIndex:idx_sources_agent_id,where:is_deleted = false" json:"agent_id"`
	Hostname      string     `gorm:"size:255;not null;index" json:"hostname"`
	IPAddress     string     `gorm:"size:64;index" json:"ip_address"`
	OSType        string     `gorm:"size:64" json:"os_type"`
	AgentVersion  string     `gorm:"size:64" json:"agent_version"`
	IsActive      bool       `gorm:"not null;index" json:"is_active"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	SoftDelete
}

func (Source) TableName() string {
	return "sources"
}

// ========== Log Events ==========

// LogEvent is a raw observation reported by a source
type LogEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SourceID   uint      `gorm:"not null;index" json:"source_id"`
	SeverityID *uint     `gorm:"index" json:"severity_id,omitempty"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	RawData    *string   `gorm:"type:text" json:"raw_data,omitempty"` // opaque metadata blob, usually JSON
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`

	Source   *Source   `gorm:"foreignKey:SourceID" json:"source,omitempty"`
	Severity *Severity `gorm:"foreignKey:SeverityID" json:"severity,omitempty"`
}

func (LogEvent) TableName() string {
	return "log_events"
}

// BeforeCreate defaults the event time to the creation time
func (e *LogEvent) BeforeCreate(tx *gorm.DB) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = Now()
	}
	return nil
}

// ========== Rules ==========

// Rule is a detection rule definition. Condition is stored verbatim and never evaluated here.
type Rule struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:255;not null;uniqueIndex:idx_rules_name,where:is_deleted = false" json:"name"`
	Description       string    `gorm:"type:text" json:"description"`
	Condition         string    `gorm:"type:text;not null" json:"condition"`
	StatusID          uint      `gorm:"not null;index" json:"status_id"`
	DefaultSeverityID uint      `gorm:"not null;index" json:"default_severity_id"`
	Enabled           bool      `gorm:"not null;index" json:"enabled"`
	AlertMessage      string    `gorm:"type:text" json:"alert_message"` // e.g. "Suspicious activity detected: {message}"
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	SoftDelete

	Status          *RuleStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
	DefaultSeverity *Severity   `gorm:"foreignKey:DefaultSeverityID" json:"default_severity,omitempty"`
}

func (Rule) TableName() string {
	return "rules"
}

// ========== Alerts ==========

// Alert is one detection: a rule matched a log event
type Alert struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	RuleID             uint       `gorm:"not null;index" json:"rule_id"`
	LogEventID         uint       `gorm:"not null;index" json:"log_event_id"`
	SourceID           uint       `gorm:"not null;index" json:"source_id"`
	SeverityID         uint       `gorm:"not null;index" json:"severity_id"`
	StatusID           uint       `gorm:"not null;index" json:"status_id"`
	Message            string     `gorm:"type:text" json:"message"`
	AssignedTo         string     `gorm:"size:255;index" json:"assigned_to"`
	InvestigationNotes string     `gorm:"type:text" json:"investigation_notes"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Rule     *Rule        `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
	LogEvent *LogEvent    `gorm:"foreignKey:LogEventID" json:"log_event,omitempty"`
	Source   *Source      `gorm:"foreignKey:SourceID" json:"source,omitempty"`
	Severity *Severity    `gorm:"foreignKey:SeverityID" json:"severity,omitempty"`
	Status   *AlertStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}

// IsResolved reports whether the alert reached a terminal status
func (a *Alert) IsResolved() bool {
	return a.ResolvedAt != nil
}

// ========== Incidents ==========

// Incident groups related alerts into one investigative unit.
// Membership lives in incident_alerts (see IncidentAlert).
type Incident struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        string     `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	SeverityID  *uint      `gorm:"index" json:"severity_id,omitempty"`
	StatusID    *uint      `gorm:"index" json:"status_id,omitempty"`
	AssignedTo  string     `gorm:"size:255;index" json:"assigned_to"`
	Timeline    string     `gorm:"type:text" json:"timeline"`
	ResolvedAt  *time.Time `gorm:"index" json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Severity *Severity    `gorm:"foreignKey:SeverityID" json:"severity,omitempty"`
	Status   *AlertStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
}

func (Incident) TableName() string {
	return "incidents"
}

// BeforeCreate hook to assign the external UUID
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == "" {
		i.UUID = uuid.NewString()
	}
	return nil
}

// IsOpen returns true while the incident has not been resolved or dismissed
func (i *Incident) IsOpen() bool {
	return i.ResolvedAt == nil
}

// AllModels lists every model managed by AutoMigrate, leaves first.
func AllModels() []interface{} {
	return []interface{}{
		&Severity{},
		&RuleStatus{},
		&AlertStatus{},
		&Source{},
		&LogEvent{},
		&Rule{},
		&Alert{},
		&Incident{},
		&IncidentAlert{},
	}
}
