// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"time"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
)

// ========================================
// Source Builder
// ========================================

// SourceBuilder builds Source rows for testing
type SourceBuilder struct {
	source database.Source
}

// NewSourceBuilder creates a new source builder with defaults
func NewSourceBuilder() *SourceBuilder {
	return &SourceBuilder{
		source: database.Source{
			AgentID:      "test-agent",
			Hostname:     "test-host",
			IPAddress:    "10.0.0.1",
			OSType:       "linux",
			AgentVersion: "1.0.0",
			IsActive:     true,
		},
	}
}

// WithAgentID sets the agent id
func (b *SourceBuilder) WithAgentID(agentID string) *SourceBuilder {
	b.source.AgentID = agentID
	return b
}

// WithHostname sets the hostname
func (b *SourceBuilder) WithHostname(hostname string) *SourceBuilder {
	b.source.Hostname = hostname
	return b
}

// WithIPAddress sets the IP address
func (b *SourceBuilder) WithIPAddress(ip string) *SourceBuilder {
	b.source.IPAddress = ip
	return b
}

// Inactive marks the source as inactive
func (b *SourceBuilder) Inactive() *SourceBuilder {
	b.source.IsActive = false
	return b
}

// Deleted marks the source as soft-deleted
func (b *SourceBuilder) Deleted() *SourceBuilder {
	b.source.MarkDeleted(time.Now())
	return b
}

// Build returns the constructed source
func (b *SourceBuilder) Build() database.Source {
	return b.source
}

// ========================================
// Rule Request Builder
// ========================================

// RuleRequestBuilder builds RuleRequest values for testing
type RuleRequestBuilder struct {
	req api.RuleRequest
}

// NewRuleRequestBuilder creates a rule request referencing the given status and severity
func NewRuleRequestBuilder(statusID, severityID uint) *RuleRequestBuilder {
	return &RuleRequestBuilder{
		req: api.RuleRequest{
			Name:              api.String("test-rule"),
			Condition:         api.String("event.type == 'login_failed'"),
			StatusID:          api.Uint(statusID),
			DefaultSeverityID: api.Uint(severityID),
			AlertMessage:      api.String("Suspicious activity detected: {message}"),
		},
	}
}

// WithName sets the rule name
func (b *RuleRequestBuilder) WithName(name string) *RuleRequestBuilder {
	b.req.Name = api.String(name)
	return b
}

// WithCondition sets the condition
func (b *RuleRequestBuilder) WithCondition(condition string) *RuleRequestBuilder {
	b.req.Condition = api.String(condition)
	return b
}

// Disabled creates the rule disabled
func (b *RuleRequestBuilder) Disabled() *RuleRequestBuilder {
	b.req.Enabled = api.Bool(false)
	return b
}

// Build returns the constructed request
func (b *RuleRequestBuilder) Build() *api.RuleRequest {
	req := b.req
	return &req
}

// ========================================
// Alert Request Builder
// ========================================

// AlertRequestBuilder builds AlertRequest values for testing
type AlertRequestBuilder struct {
	req api.AlertRequest
}

// NewAlertRequestBuilder creates an alert request from the fixture references
func NewAlertRequestBuilder(f *Fixtures) *AlertRequestBuilder {
	return &AlertRequestBuilder{
		req: api.AlertRequest{
			RuleID:     api.Uint(f.Rule.ID),
			LogEventID: api.Uint(f.LogEvent.ID),
			SourceID:   api.Uint(f.Source.ID),
			SeverityID: api.Uint(f.Critical.ID),
			StatusID:   api.Uint(f.New.ID),
			Message:    "Suspicious activity detected: failed login",
		},
	}
}

// WithStatus sets the status id
func (b *AlertRequestBuilder) WithStatus(id uint) *AlertRequestBuilder {
	b.req.StatusID = api.Uint(id)
	return b
}

// WithSeverity sets the severity id
func (b *AlertRequestBuilder) WithSeverity(id uint) *AlertRequestBuilder {
	b.req.SeverityID = api.Uint(id)
	return b
}

// WithRule sets the rule id
func (b *AlertRequestBuilder) WithRule(id uint) *AlertRequestBuilder {
	b.req.RuleID = api.Uint(id)
	return b
}

// WithSource sets the source id
func (b *AlertRequestBuilder) WithSource(id uint) *AlertRequestBuilder {
	b.req.SourceID = api.Uint(id)
	return b
}

// WithMessage sets the message
func (b *AlertRequestBuilder) WithMessage(message string) *AlertRequestBuilder {
	b.req.Message = message
	return b
}

// WithAssignee sets the assignee
func (b *AlertRequestBuilder) WithAssignee(analyst string) *AlertRequestBuilder {
	b.req.AssignedTo = api.String(analyst)
	return b
}

// Build returns the constructed request
func (b *AlertRequestBuilder) Build() *api.AlertRequest {
	req := b.req
	return &req
}

// ========================================
// Incident Request Builder
// ========================================

// IncidentRequestBuilder builds IncidentRequest values for testing
type IncidentRequestBuilder struct {
	req api.IncidentRequest
}

// NewIncidentRequestBuilder creates an incident request with a title only
func NewIncidentRequestBuilder() *IncidentRequestBuilder {
	return &IncidentRequestBuilder{
		req: api.IncidentRequest{
			Title: api.String("Test Incident"),
		},
	}
}

// WithTitle sets the title
func (b *IncidentRequestBuilder) WithTitle(title string) *IncidentRequestBuilder {
	b.req.Title = api.String(title)
	return b
}

// WithSeverity sets the severity id
func (b *IncidentRequestBuilder) WithSeverity(id uint) *IncidentRequestBuilder {
	b.req.SeverityID = api.Uint(id)
	return b
}

// WithStatus sets the status id
func (b *IncidentRequestBuilder) WithStatus(id uint) *IncidentRequestBuilder {
	b.req.StatusID = api.Uint(id)
	return b
}

// WithAssignee sets the assignee
func (b *IncidentRequestBuilder) WithAssignee(analyst string) *IncidentRequestBuilder {
	b.req.AssignedTo = api.String(analyst)
	return b
}

// Build returns the constructed request
func (b *IncidentRequestBuilder) Build() *api.IncidentRequest {
	req := b.req
	return &req
}
