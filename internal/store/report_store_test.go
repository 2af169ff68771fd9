package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/incidentdesk/incident-board/internal/models"
)

func newTestStore(t *testing.T) *ReportStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A second connection would see a different in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Report{}, &models.Comment{}))
	return NewReportStore(db, 24*time.Hour)
}

func mustCreate(t *testing.T, s *ReportStore, password string) *ReportView {
	t.Helper()
	view, err := s.CreateReport(CreateReportInput{
		Title:       "Leak",
		Location:    "5th Ave",
		Description: "Gas smell",
		Password:    password,
	})
	require.NoError(t, err)
	return view
}

func TestCreateReport(t *testing.T) {
	s := newTestStore(t)
	start := time.Now()

	view := mustCreate(t, s, "p1")

	assert.True(t, view.IsOpen)
	assert.False(t, view.IsExpired)
	assert.NotNil(t, view.Comments)
	assert.Empty(t, view.Comments)
	assert.WithinDuration(t, start.Add(24*time.Hour), view.ExpiresAt, 5*time.Second)

	// The outward representation must not carry the credential in any form.
	body, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), "p1")
}

func TestCreateReport_HashesPassword(t *testing.T) {
	s := newTestStore(t)
	view := mustCreate(t, s, "p1")

	row, err := s.getReport(view.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.NotEqual(t, "p1", row.Password)
	assert.NotEmpty(t, row.Password)
}

func TestCreateReport_LongPasswordAccepted(t *testing.T) {
	s := newTestStore(t)
	long := strings.Repeat("a", 100)

	view, err := s.CreateReport(CreateReportInput{
		Title:       "Leak",
		Location:    "5th Ave",
		Description: "Gas smell",
		Password:    long,
	})
	require.NoError(t, err)

	err = s.CloseReport(view.ID, strings.Repeat("a", 99))
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	require.NoError(t, s.CloseReport(view.ID, long))
}

func TestListOpenReports_ExcludesClosed(t *testing.T) {
	s := newTestStore(t)
	open := mustCreate(t, s, "p1")
	closed := mustCreate(t, s, "p2")
	require.NoError(t, s.CloseReport(closed.ID, "p2"))

	views, err := s.ListOpenReports()
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, open.ID, views[0].ID)
	assert.True(t, views[0].IsOpen)

	body, err := json.Marshal(views)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
}

func TestListOpenReports_EmptySet(t *testing.T) {
	s := newTestStore(t)

	views, err := s.ListOpenReports()
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestListOpenReports_GroupsCommentsInInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	first := mustCreate(t, s, "p1")
	second := mustCreate(t, s, "p2")

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.CreateComment(first.ID, content)
		require.NoError(t, err)
	}
	_, err := s.CreateComment(second.ID, "lonely")
	require.NoError(t, err)

	views, err := s.ListOpenReports()
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := make(map[uuid.UUID]ReportView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}

	require.Len(t, byID[first.ID].Comments, 3)
	assert.Equal(t, "one", byID[first.ID].Comments[0].Content)
	assert.Equal(t, "two", byID[first.ID].Comments[1].Content)
	assert.Equal(t, "three", byID[first.ID].Comments[2].Content)

	require.Len(t, byID[second.ID].Comments, 1)
	assert.Equal(t, "lonely", byID[second.ID].Comments[0].Content)
	assert.Equal(t, second.ID, byID[second.ID].Comments[0].ReportID)
}

func TestListOpenReports_ExpiredStaysListed(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	view := mustCreate(t, s, "p1")
	s.now = func() time.Time { return base.Add(25 * time.Hour) }

	views, err := s.ListOpenReports()
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, view.ID, views[0].ID)
	assert.True(t, views[0].IsOpen)
	assert.True(t, views[0].IsExpired)
}

func TestCloseReport_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.CloseReport(uuid.New(), "anything")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.EqualError(t, err, "Report does not exist with that id")
}

func TestCloseReport_WrongPasswordDoesNotMutate(t *testing.T) {
	s := newTestStore(t)
	view := mustCreate(t, s, "p1")

	err := s.CloseReport(view.ID, "wrong")
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.EqualError(t, err, "Password incorrect for this report, please try again")

	row, err := s.getReport(view.ID)
	require.NoError(t, err)
	assert.True(t, row.IsOpen)
}

func TestCloseReport_TwiceFailsInvalidState(t *testing.T) {
	s := newTestStore(t)
	view := mustCreate(t, s, "p1")

	require.NoError(t, s.CloseReport(view.ID, "p1"))

	err := s.CloseReport(view.ID, "p1")
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.EqualError(t, err, "This report has already been closed")
}

func TestMarkClosed_LostUpdateConflict(t *testing.T) {
	s := newTestStore(t)
	view := mustCreate(t, s, "p1")

	// Another request wins the race and closes the row first.
	require.NoError(t, s.markClosed(view.ID))

	err := s.markClosed(view.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.EqualError(t, err, "Report not updated")
}

func TestCreateComment_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateComment(uuid.New(), "hello")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.EqualError(t, err, "no comment has been made")
}

func TestCreateComment_ClosedReport(t *testing.T) {
	s := newTestStore(t)
	view := mustCreate(t, s, "p1")
	require.NoError(t, s.CloseReport(view.ID, "p1"))

	_, err := s.CreateComment(view.ID, "late")
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.EqualError(t, err, "report has been closed, no comment has been made")
}

func TestCreateComment_ExpiredReport(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	s.now = func() time.Time { return base }
	view := mustCreate(t, s, "p1")

	s.now = func() time.Time { return base.Add(24*time.Hour + time.Minute) }

	_, err := s.CreateComment(view.ID, "too late")
	require.Error(t, err)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.EqualError(t, err, "discussion time on this report has expired, no comment has been made")

	// The guard must reject before anything is written.
	var count int64
	require.NoError(t, s.db.Model(&models.Comment{}).Where("report_id = ?", view.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateComment_ResetsWindowFromNow(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return base }
	view := mustCreate(t, s, "p1")

	// Ten hours in: the new deadline is a full window from the comment,
	// not the old deadline plus a window.
	s.now = func() time.Time { return base.Add(10 * time.Hour) }

	comment, err := s.CreateComment(view.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, view.ID, comment.ReportID)
	assert.Equal(t, "confirmed", comment.Content)

	row, err := s.getReport(view.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(34*time.Hour), row.ExpiresAt, time.Second)
}

func TestReportLifecycleScenario(t *testing.T) {
	s := newTestStore(t)

	view := mustCreate(t, s, "p1")
	assert.True(t, view.IsOpen)

	comment, err := s.CreateComment(view.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, view.ID, comment.ReportID)

	row, err := s.getReport(view.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), row.ExpiresAt, 5*time.Second)

	require.NoError(t, s.CloseReport(view.ID, "p1"))

	_, err = s.CreateComment(view.ID, "late")
	require.Error(t, err)
	assert.EqualError(t, err, "report has been closed, no comment has been made")
}
