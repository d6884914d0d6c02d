package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
	"github.com/igapp/aurora/internal/metrics"
	"github.com/igapp/aurora/internal/testhelpers"
)

func TestIncidentService_CreateAssignsUUID(t *testing.T) {
	svcs, _, f := setupServices(t)

	created, err := svcs.Incidents.Create(context.Background(), testhelpers.NewIncidentRequestBuilder().
		WithTitle("Credential stuffing").
		WithSeverity(f.Critical.ID).
		WithStatus(f.New.ID).
		Build())
	require.NoError(t, err)

	_, parseErr := uuid.Parse(created.UUID)
	assert.NoError(t, parseErr)
	assert.Equal(t, "CRITICAL", created.Severity)
	assert.Equal(t, "NEW", created.Status)
	assert.NotNil(t, created.AlertIDs)
	assert.Empty(t, created.AlertIDs)
	assert.Nil(t, created.ResolvedAt)
}

func TestIncidentService_CreateWithoutCatalogs(t *testing.T) {
	svcs, _, _ := setupServices(t)

	created, err := svcs.Incidents.Create(context.Background(), testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)
	assert.Nil(t, created.SeverityID)
	assert.Nil(t, created.StatusID)
	assert.Equal(t, "", created.Status)
}

func TestIncidentService_CreateUnresolvedSeverity(t *testing.T) {
	svcs, db, _ := setupServices(t)

	_, err := svcs.Incidents.Create(context.Background(), testhelpers.NewIncidentRequestBuilder().WithSeverity(9999).Build())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int64(0), testhelpers.CountRows(t, db, &database.Incident{}))
}

func TestIncidentService_MembershipIsASet(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")
	a2 := f.InsertAlert(t, db, f.New.ID, "two")

	incident, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)

	_, err = svcs.Incidents.AddAlert(ctx, incident.ID, a1.ID)
	require.NoError(t, err)
	_, err = svcs.Incidents.AddAlert(ctx, incident.ID, a1.ID)
	require.NoError(t, err)
	resp, err := svcs.Incidents.AddAlert(ctx, incident.ID, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a1.ID, a2.ID}, resp.AlertIDs)

	members, err := svcs.Incidents.GetIncidentAlerts(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a1.ID, a2.ID}, members)

	resp, err = svcs.Incidents.RemoveAlert(ctx, incident.ID, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a2.ID}, resp.AlertIDs)
	testhelpers.AssertSliceNotContains(t, resp.AlertIDs, a1.ID, "members after removal")

	// Removing a non-member changes nothing
	resp, err = svcs.Incidents.RemoveAlert(ctx, incident.ID, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{a2.ID}, resp.AlertIDs)

	// The removed alert still exists
	got, err := svcs.Alerts.GetByID(ctx, a1.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestIncidentService_MembershipCounterCountsChanges(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")
	a2 := f.InsertAlert(t, db, f.New.ID, "two")

	attached := metrics.MembershipChanges.WithLabelValues(MembershipAttach)
	detached := metrics.MembershipChanges.WithLabelValues(MembershipDetach)
	attachBefore := testutil.ToFloat64(attached)
	detachBefore := testutil.ToFloat64(detached)

	incident, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{a1.ID, a1.ID})
	require.NoError(t, err)
	assert.Equal(t, attachBefore+1, testutil.ToFloat64(attached), "duplicate ids collapse into one row")

	_, err = svcs.Incidents.AddAlert(ctx, incident.ID, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, attachBefore+1, testutil.ToFloat64(attached), "re-adding a member")

	_, err = svcs.Incidents.AddAlert(ctx, incident.ID, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, attachBefore+2, testutil.ToFloat64(attached))

	_, err = svcs.Incidents.RemoveAlert(ctx, incident.ID, a2.ID)
	require.NoError(t, err)
	_, err = svcs.Incidents.RemoveAlert(ctx, incident.ID, a2.ID)
	require.NoError(t, err)
	assert.Equal(t, detachBefore+1, testutil.ToFloat64(detached))
}

func TestIncidentService_MembershipMissingEntities(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	alert := f.InsertAlert(t, db, f.New.ID, "lonely")
	incident, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)

	_, err = svcs.Incidents.AddAlert(ctx, 9999, alert.ID)
	assert.True(t, IsNotFound(err))

	_, err = svcs.Incidents.AddAlert(ctx, incident.ID, 9999)
	assert.True(t, IsNotFound(err))

	_, err = svcs.Incidents.RemoveAlert(ctx, incident.ID, 9999)
	assert.True(t, IsNotFound(err))

	assert.Equal(t, int64(0), testhelpers.CountRows(t, db, &database.IncidentAlert{}))
}

func TestIncidentService_CreateWithAlerts(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")
	a2 := f.InsertAlert(t, db, f.New.ID, "two")

	created, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{a2.ID, a1.ID, a2.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{a1.ID, a2.ID}, created.AlertIDs)
}

func TestIncidentService_CreateWithAlertsIsAtomic(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")

	_, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{a1.ID, 9999})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	assert.Equal(t, int64(0), testhelpers.CountRows(t, db, &database.Incident{}))
	assert.Equal(t, int64(0), testhelpers.CountRows(t, db, &database.IncidentAlert{}))
}

func TestIncidentService_GetIncidentAlertsMissingIncident(t *testing.T) {
	svcs, _, _ := setupServices(t)

	members, err := svcs.Incidents.GetIncidentAlerts(context.Background(), 9999)
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)
}

func TestIncidentService_DeleteKeepsAlerts(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")
	incident, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{a1.ID})
	require.NoError(t, err)

	require.NoError(t, svcs.Incidents.Delete(ctx, incident.ID))

	gone, err := svcs.Incidents.GetByID(ctx, incident.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, int64(0), testhelpers.CountRows(t, db, &database.IncidentAlert{}))

	alert, err := svcs.Alerts.GetByID(ctx, a1.ID)
	require.NoError(t, err)
	assert.NotNil(t, alert)
}

func TestIncidentService_TransitionsDoNotCascade(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")
	incident, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().WithStatus(f.New.ID).Build(), []uint{a1.ID})
	require.NoError(t, err)

	assigned, err := svcs.Incidents.AssignToAnalyst(ctx, incident.ID, "carol", f.Investigating.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", assigned.AssignedTo)
	assert.Equal(t, "INVESTIGATING", assigned.Status)
	assert.Nil(t, assigned.ResolvedAt)

	withTimeline, err := svcs.Incidents.UpdateTimeline(ctx, incident.ID, "09:00 first alert\n09:05 escalated")
	require.NoError(t, err)
	assert.Equal(t, "09:00 first alert\n09:05 escalated", withTimeline.Timeline)

	resolved, err := svcs.Incidents.Resolve(ctx, incident.ID, f.Resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, "RESOLVED", resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, []uint{a1.ID}, resolved.AlertIDs)

	alert, err := svcs.Alerts.GetByID(ctx, a1.ID)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "NEW", alert.Status)
	assert.Equal(t, "", alert.AssignedTo)
	assert.Nil(t, alert.ResolvedAt)
}

func TestIncidentService_MarkFalsePositive(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	incident, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)

	dismissed, err := svcs.Incidents.MarkFalsePositive(ctx, incident.ID, f.FalsePositive.ID)
	require.NoError(t, err)
	assert.Equal(t, "FALSE_POSITIVE", dismissed.Status)
	assert.NotNil(t, dismissed.ResolvedAt)

	_, err = svcs.Incidents.Resolve(ctx, incident.ID, 9999)
	assert.True(t, IsNotFound(err))
}

func TestIncidentService_Lookups(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	open, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().WithTitle("open").WithAssignee("dave").WithSeverity(f.Low.ID).Build())
	require.NoError(t, err)
	closed, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().WithTitle("closed").WithStatus(f.New.ID).Build())
	require.NoError(t, err)
	_, err = svcs.Incidents.Resolve(ctx, closed.ID, f.Resolved.ID)
	require.NoError(t, err)

	byUUID, err := svcs.Incidents.GetByUUID(ctx, open.UUID)
	require.NoError(t, err)
	require.NotNil(t, byUUID)
	assert.Equal(t, open.ID, byUUID.ID)

	missing, err := svcs.Incidents.GetByUUID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	stillOpen, err := svcs.Incidents.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, stillOpen, 1)
	assert.Equal(t, open.ID, stillOpen[0].ID)

	byStatus, err := svcs.Incidents.ListByStatus(ctx, f.Resolved.ID, api.PageRequest{})
	require.NoError(t, err)
	require.Len(t, byStatus.Data, 1)
	assert.Equal(t, closed.ID, byStatus.Data[0].ID)

	bySeverity, err := svcs.Incidents.ListBySeverity(ctx, f.Low.ID, api.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, bySeverity.Data, 1)

	byAssignee, err := svcs.Incidents.ListByAssignee(ctx, "dave", api.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, byAssignee.Data, 1)

	n, err := svcs.Incidents.CountByStatus(ctx, f.Resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := svcs.Incidents.ListByTimeRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestIncidentService_ListIncludesMembers(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	a1 := f.InsertAlert(t, db, f.New.ID, "one")
	withAlert, err := svcs.Incidents.CreateWithAlerts(ctx, testhelpers.NewIncidentRequestBuilder().Build(), []uint{a1.ID})
	require.NoError(t, err)
	_, err = svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)

	page, err := svcs.Incidents.List(ctx, api.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	for _, inc := range page.Data {
		if inc.ID == withAlert.ID {
			assert.Equal(t, []uint{a1.ID}, inc.AlertIDs)
		} else {
			assert.Empty(t, inc.AlertIDs)
		}
	}
}

func TestIncidentService_PartialUpdate(t *testing.T) {
	svcs, _, f := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().WithAssignee("erin").WithSeverity(f.Critical.ID).Build())
	require.NoError(t, err)

	updated, err := svcs.Incidents.Update(ctx, created.ID, &api.IncidentRequest{
		Description: api.String("lateral movement suspected"),
		SeverityID:  api.Uint(9999),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Test Incident", updated.Title)
	assert.Equal(t, "erin", updated.AssignedTo)
	assert.Equal(t, "CRITICAL", updated.Severity)
	assert.Equal(t, "lateral movement suspected", updated.Description)
	assert.Equal(t, created.UUID, updated.UUID)
}

func TestIncidentService_UpdateRejectsBlankTitle(t *testing.T) {
	svcs, _, _ := setupServices(t)
	ctx := context.Background()

	created, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)

	_, err = svcs.Incidents.Update(ctx, created.ID, &api.IncidentRequest{Title: api.String("")})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, ValidationFields(err), "title")

	got, err := svcs.Incidents.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Test Incident", got.Title)
}

func TestIncidentService_ConcurrentAddAlert(t *testing.T) {
	svcs, db, f := setupServices(t)
	ctx := context.Background()

	const workers = 8
	alertIDs := make([]uint, workers)
	for i := range alertIDs {
		alertIDs[i] = f.InsertAlert(t, db, f.New.ID, testhelpers.UniqueName("burst")).ID
	}
	incident, err := svcs.Incidents.Create(ctx, testhelpers.NewIncidentRequestBuilder().Build())
	require.NoError(t, err)

	testhelpers.MustCompleteWithin(t, 10*time.Second, func() {
		testhelpers.ConcurrentTest(t, workers, func(workerID int) {
			if _, err := svcs.Incidents.AddAlert(ctx, incident.ID, alertIDs[workerID]); err != nil {
				t.Errorf("worker %d: %v", workerID, err)
			}
		})
	})

	members, err := svcs.Incidents.GetIncidentAlerts(ctx, incident.ID)
	require.NoError(t, err)
	testhelpers.AssertIDSet(t, alertIDs, members, "incident members")
}
