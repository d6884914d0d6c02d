package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
	"github.com/igapp/aurora/internal/testhelpers"
)

func TestAlertService_EndToEndScenario(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svcs := New(db, testhelpers.TestLogger(t))
	ctx := context.Background()

	critical, err := svcs.Severities.Create(ctx, &api.SeverityRequest{Name: api.String("CRITICAL"), Level: api.Int(5)})
	require.NoError(t, err)
	active, err := svcs.RuleStatuses.Create(ctx, &api.CatalogRequest{Name: api.String("ACTIVE")})
	require.NoError(t, err)
	rule, err := svcs.Rules.Create(ctx, &api.RuleRequest{
		Name:              api.String("R1"),
		Condition:         api.String("x"),
		StatusID:          api.Uint(active.ID),
		DefaultSeverityID: api.Uint(critical.ID),
		Enabled:           api.Bool(true),
	})
	require.NoError(t, err)
	source, err := svcs.Sources.Create(ctx, &api.SourceRequest{AgentID: api.String("a1"), Hostname: api.String("h1")})
	require.NoError(t, err)
	event, err := svcs.LogEvents.Create(ctx, &api.LogEventRequest{SourceID: api.Uint(source.ID), Message: "failed login"})
	require.NoError(t, err)
	newStatus, err := svcs.AlertStatuses.Create(ctx, &api.CatalogRequest{Name: api.String("NEW")})
	require.NoError(t, err)

	alert, err := svcs.Alerts.Create(ctx, &api.AlertRequest{
		RuleID:     api.Uint(rule.ID),
		LogEventID: api.Uint(event.ID),
		SourceID:   api.Uint(source.ID),
		SeverityID: api.Uint(critical.ID),
		StatusID:   api.Uint(newStatus.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, "R1", alert.RuleName)
	assert.Equal(t, "a1", alert.SourceID)
	assert.Equal(t, "CRITICAL", alert.Severity)
	assert.Equal(t, "NEW", alert.Status)
	assert.Nil(t, alert.ResolvedAt)
}

func TestAlertService_CreateMissingReference(t *testing.T) {
	svcs, db, f := setupServices(t)

	_, err := svcs.Alerts.Create(context.Background(), testhelpers.NewAlertRequestBuilder(f).WithStatus(9999).Build())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int64(0), testhelpers.CountRows(t, db, &database.Alert{}))
}

func TestAlertService_CreateRequiresAllReferences(t *testing.T) {
	svcs, _, _ := setupServices(t)

	_, err := svcs.Alerts.Create(context.Background(), &api.AlertRequest{Message: "orphan"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Len(t, ValidationFields(err), 5)
}

func TestAlertService_Lifecycle(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)

	assigned, err := svcs.Alerts.AssignToAnalyst(ctx, created.ID, "alice", f.Investigating.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", assigned.AssignedTo)
	assert.Equal(t, "INVESTIGATING", assigned.Status)
	assert.Nil(t, assigned.ResolvedAt)

	noted, err := svcs.Alerts.AddInvestigationNotes(ctx, created.ID, "source IP belongs to a scanner")
	require.NoError(t, err)
	assert.Equal(t, "source IP belongs to a scanner", noted.InvestigationNotes)
	assert.Equal(t, "INVESTIGATING", noted.Status)
	assert.Nil(t, noted.ResolvedAt)

	resolved, err := svcs.Alerts.Resolve(ctx, created.ID, f.Resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, "RESOLVED", resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	testhelpers.AssertTimeWithin(t, *resolved.ResolvedAt, time.Now(), 5*time.Second, "resolved_at")
	assert.Equal(t, "alice", resolved.AssignedTo)
	assert.False(t, resolved.UpdatedAt.Before(created.UpdatedAt))
}

func TestAlertService_MarkFalsePositiveSetsResolvedAt(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)

	dismissed, err := svcs.Alerts.MarkFalsePositive(ctx, created.ID, f.FalsePositive.ID)
	require.NoError(t, err)
	assert.Equal(t, "FALSE_POSITIVE", dismissed.Status)
	assert.NotNil(t, dismissed.ResolvedAt)
}

func TestAlertService_TransitionFailuresLeaveAlertUnchanged(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)

	_, err = svcs.Alerts.AssignToAnalyst(ctx, created.ID, "mallory", 9999)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = svcs.Alerts.Resolve(ctx, 9999, f.Resolved.ID)
	assert.True(t, IsNotFound(err))

	_, err = svcs.Alerts.AddInvestigationNotes(ctx, 9999, "notes")
	assert.True(t, IsNotFound(err))

	got, err := svcs.Alerts.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "", got.AssignedTo)
	assert.Equal(t, "NEW", got.Status)
}

func TestAlertService_PartialUpdateKeepsAssignee(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).WithAssignee("alice").Build())
	require.NoError(t, err)

	updated, err := svcs.Alerts.Update(ctx, created.ID, &api.AlertRequest{Message: "new message"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "new message", updated.Message)
	assert.Equal(t, "alice", updated.AssignedTo)
	assert.Equal(t, "NEW", updated.Status)
	assert.Equal(t, "R1", updated.RuleName)
}

func TestAlertService_UpdateReferences(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).WithMessage("keep").Build())
	require.NoError(t, err)

	updated, err := svcs.Alerts.Update(ctx, created.ID, &api.AlertRequest{
		SeverityID: api.Uint(f.Low.ID),
		StatusID:   api.Uint(9999),
		RuleID:     api.Uint(9999),
		Message:    "",
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "LOW", updated.Severity)
	assert.Equal(t, "NEW", updated.Status)
	assert.Equal(t, f.Rule.ID, updated.RuleID)
	assert.Equal(t, "", updated.Message)
}

func TestAlertService_CountByStatus(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	for _, status := range []uint{f.New.ID, f.New.ID, f.Investigating.ID} {
		_, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).WithStatus(status).Build())
		require.NoError(t, err)
	}

	n, err := svcs.Alerts.CountByStatus(ctx, f.New.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAlertService_Filters(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	otherRule := database.Rule{Name: "R2", Condition: "y", StatusID: f.Active.ID, DefaultSeverityID: f.Low.ID, Enabled: true}
	testhelpers.MustCreate(t, db, &otherRule)

	a1, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)
	a2, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).WithRule(otherRule.ID).WithSeverity(f.Low.ID).Build())
	require.NoError(t, err)

	byStatus, err := svcs.Alerts.ListByStatus(ctx, f.New.ID, api.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, byStatus.Data, 2)
	assert.Equal(t, a2.ID, byStatus.Data[0].ID, "newest first")

	bySeverity, err := svcs.Alerts.ListBySeverity(ctx, f.Low.ID, api.PageRequest{})
	require.NoError(t, err)
	require.Len(t, bySeverity.Data, 1)
	assert.Equal(t, a2.ID, bySeverity.Data[0].ID)

	byRule, err := svcs.Alerts.ListByRule(ctx, f.Rule.ID, api.PageRequest{})
	require.NoError(t, err)
	require.Len(t, byRule.Data, 1)
	assert.Equal(t, a1.ID, byRule.Data[0].ID)

	inWindow, err := svcs.Alerts.ListByTimeRange(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, inWindow, 2)

	past, err := svcs.Alerts.ListByTimeRange(ctx, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestAlertService_ListByTimeRangeAnyZone(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)

	for _, zone := range []*time.Location{time.UTC, time.FixedZone("UTC+5", 5*60*60), time.FixedZone("UTC-7", -7*60*60)} {
		start := created.CreatedAt.Add(-time.Minute).In(zone)
		end := created.CreatedAt.Add(time.Minute).In(zone)

		found, err := svcs.Alerts.ListByTimeRange(ctx, start, end)
		require.NoError(t, err)
		require.Len(t, found, 1, "bounds in %s", zone)
		assert.Equal(t, created.ID, found[0].ID)
	}
}

func TestAlertService_ListOpenByAnalyst(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	open, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)
	done, err := svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).Build())
	require.NoError(t, err)
	_, err = svcs.Alerts.Create(ctx, testhelpers.NewAlertRequestBuilder(f).WithAssignee("bob").Build())
	require.NoError(t, err)

	_, err = svcs.Alerts.AssignToAnalyst(ctx, open.ID, "alice", f.Investigating.ID)
	require.NoError(t, err)
	_, err = svcs.Alerts.AssignToAnalyst(ctx, done.ID, "alice", f.Investigating.ID)
	require.NoError(t, err)
	_, err = svcs.Alerts.Resolve(ctx, done.ID, f.Resolved.ID)
	require.NoError(t, err)

	mine, err := svcs.Alerts.ListOpenByAnalyst(ctx, "alice", f.Resolved.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, open.ID, mine[0].ID)
}

func TestAlertService_GetAlertIncidents(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	alert := f.InsertAlert(t, db, f.New.ID, "shared")
	other := f.InsertAlert(t, db, f.New.ID, "other")
	first, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{alert.ID})
	require.NoError(t, err)
	second, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{alert.ID, other.ID})
	require.NoError(t, err)
	third, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{other.ID})
	require.NoError(t, err)

	incidents, err := svcs.Alerts.GetAlertIncidents(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, second.ID}, incidents)
	testhelpers.AssertSliceNotContains(t, incidents, third.ID, "alert incidents")

	_, err = svcs.Incidents.RemoveAlert(ctx, first.ID, alert.ID)
	require.NoError(t, err)
	incidents, err = svcs.Alerts.GetAlertIncidents(ctx, alert.ID)
	require.NoError(t, err)
	testhelpers.AssertSliceContains(t, incidents, second.ID, "alert incidents after removal")
	testhelpers.AssertSliceNotContains(t, incidents, first.ID, "alert incidents after removal")

	none, err := svcs.Alerts.GetAlertIncidents(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAlertService_DeleteDropsMembershipOnly(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	alert := f.InsertAlert(t, db, f.New.ID, "member")
	incident, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{alert.ID})
	require.NoError(t, err)

	require.NoError(t, svcs.Alerts.Delete(ctx, alert.ID))

	got, err := svcs.Alerts.GetByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	members, err := svcs.Incidents.GetIncidentAlerts(ctx, incident.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	incidents, err := svcs.Alerts.GetAlertIncidents(ctx, alert.ID)
	require.NoError(t, err)
	assert.Empty(t, incidents)

	stillThere, err := svcs.Incidents.GetByID(ctx, incident.ID)
	require.NoError(t, err)
	assert.NotNil(t, stillThere)
}
