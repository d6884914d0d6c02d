package api

import "time"

// Request shapes serve both create and update. Pointer fields are optional on
// update: nil leaves the stored value alone, non-nil (even "") overwrites it.
// Plain value fields are always overwritten on update.

// ========== Catalog Types ==========

// SeverityRequest creates or updates a severity
type SeverityRequest struct {
	Name        *string `json:"name" validate:"required,notblank,max=64"`
	Level       *int    `json:"level" validate:"omitempty,gte=0"`
	Description *string `json:"description"`
}

// CatalogRequest creates or updates a rule status or an alert status
type CatalogRequest struct {
	Name        *string `json:"name" validate:"required,notblank,max=64"`
	Description *string `json:"description"`
}

// SeverityResponse is a severity as returned to callers
type SeverityResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Level       int        `json:"level"`
	Description string     `json:"description"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// CatalogResponse is a rule status or alert status as returned to callers
type CatalogResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// ========== Source Types ==========

// SourceRequest registers or updates an agent
type SourceRequest struct {
	AgentID      *string `json:"agent_id" validate:"required,notblank,max=128"`
	Hostname     *string `json:"hostname" validate:"required,notblank,max=255"`
	IPAddress    *string `json:"ip_address" validate:"omitempty,ip"`
	OSType       *string `json:"os_type" validate:"omitempty,max=64"`
	AgentVersion *string `json:"agent_version" validate:"omitempty,max=64"`
	IsActive     *bool   `json:"is_active"`
}

// SourceResponse is a source as returned to callers
type SourceResponse struct {
	ID            uint       `json:"id"`
	AgentID       string     `json:"agent_id"`
	Hostname      string     `json:"hostname"`
	IPAddress     string     `json:"ip_address"`
	OSType        string     `json:"os_type"`
	AgentVersion  string     `json:"agent_version"`
	IsActive      bool       `json:"is_active"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	IsDeleted     bool       `json:"is_deleted"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ========== Log Event Types ==========

// LogEventRequest records or updates a log event. Message is always overwritten on update.
type LogEventRequest struct {
	SourceID   *uint      `json:"source_id" validate:"required"`
	Message    string     `json:"message" validate:"required,notblank"`
	SeverityID *uint      `json:"severity_id"`
	RawData    *string    `json:"raw_data"`
	Timestamp  *time.Time `json:"timestamp"`
}

// LogEventResponse is a log event as returned to callers
type LogEventResponse struct {
	ID         uint      `json:"id"`
	SourceID   uint      `json:"source_id"`
	AgentID    string    `json:"agent_id"`
	Message    string    `json:"message"`
	SeverityID *uint     `json:"severity_id,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	RawData    *string   `json:"raw_data,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// ========== Rule Types ==========

// RuleRequest creates or updates a detection rule
type RuleRequest struct {
	Name              *string `json:"name" validate:"required,notblank,max=255"`
	Description       *string `json:"description"`
	Condition         *string `json:"condition" validate:"required,notblank"`
	StatusID          *uint   `json:"status_id" validate:"required"`
	DefaultSeverityID *uint   `json:"default_severity_id" validate:"required"`
	Enabled           *bool   `json:"enabled"`
	AlertMessage      *string `json:"alert_message"`
}

// RuleResponse is a rule as returned to callers
type RuleResponse struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Condition         string    `json:"condition"`
	StatusID          uint      `json:"status_id"`
	Status            string    `json:"status"`
	DefaultSeverityID uint      `json:"default_severity_id"`
	DefaultSeverity   string    `json:"default_severity"`
	Enabled           bool      `json:"enabled"`
	AlertMessage      string    `json:"alert_message"`
	IsDeleted         bool      `json:"is_deleted"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ========== Alert Types ==========

// AlertRequest raises or updates an alert. Message is always overwritten on update.
type AlertRequest struct {
	RuleID             *uint   `json:"rule_id" validate:"required"`
	LogEventID         *uint   `json:"log_event_id" validate:"required"`
	SourceID           *uint   `json:"source_id" validate:"required"`
	SeverityID         *uint   `json:"severity_id" validate:"required"`
	StatusID           *uint   `json:"status_id" validate:"required"`
	Message            string  `json:"message"`
	AssignedTo         *string `json:"assigned_to"`
	InvestigationNotes *string `json:"investigation_notes"`
}

// AlertResponse is an alert as returned to callers. SourceID carries the
// agent id of the source, Severity and Status carry catalog names.
type AlertResponse struct {
	ID                 uint       `json:"id"`
	RuleID             uint       `json:"rule_id"`
	RuleName           string     `json:"rule_name"`
	LogEventID         uint       `json:"log_event_id"`
	SourceID           string     `json:"source_id"`
	SeverityID         uint       `json:"severity_id"`
	Severity           string     `json:"severity"`
	StatusID           uint       `json:"status_id"`
	Status             string     `json:"status"`
	Message            string     `json:"message"`
	AssignedTo         string     `json:"assigned_to"`
	InvestigationNotes string     `json:"investigation_notes"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ResolvedAt         *time.Time `json:"resolved_at"`
}

// ========== Incident Types ==========

// IncidentRequest opens or updates an incident
type IncidentRequest struct {
	Title       *string `json:"title" validate:"required,notblank,max=255"`
	Description *string `json:"description"`
	SeverityID  *uint   `json:"severity_id"`
	StatusID    *uint   `json:"status_id"`
	AssignedTo  *string `json:"assigned_to"`
	Timeline    *string `json:"timeline"`
}

// IncidentResponse is an incident with its member alert ids
type IncidentResponse struct {
	ID          uint       `json:"id"`
	UUID        string     `json:"uuid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	SeverityID  *uint      `json:"severity_id,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	StatusID    *uint      `json:"status_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	AssignedTo  string     `json:"assigned_to"`
	Timeline    string     `json:"timeline"`
	AlertIDs    []uint     `json:"alert_ids"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

// ========== Field Helpers ==========

// String returns a pointer to s
func String(s string) *string { return &s }

// Uint returns a pointer to u
func Uint(u uint) *uint { return &u }

// Int returns a pointer to i
func Int(i int) *int { return &i }

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Time returns a pointer to t
func Time(t time.Time) *time.Time { return &t }
