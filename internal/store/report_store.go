package store

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/incidentdesk/incident-board/internal/models"
)

// Guard messages, surfaced to clients verbatim.
const (
	msgReportMissing  = "Report does not exist with that id"
	msgWrongPassword  = "Password incorrect for this report, please try again"
	msgAlreadyClosed  = "This report has already been closed"
	msgNotUpdated     = "Report not updated"
	msgCommentMissing = "no comment has been made"
	msgCommentClosed  = "report has been closed, no comment has been made"
	msgCommentExpired = "discussion time on this report has expired, no comment has been made"
)

// ReportStore owns all report and comment persistence and enforces the report
// lifecycle: a report is born open with a discussion window of ttl, every
// accepted comment resets the window to a full ttl from that moment, and a
// close is a one-way transition gated by the owner password.
//
// The gorm handle is created once at startup and passed in; consistency under
// concurrent requests relies on single-statement row atomicity plus the
// guarded close update, not on application locks.
type ReportStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewReportStore(db *gorm.DB, ttl time.Duration) *ReportStore {
	return &ReportStore{db: db, ttl: ttl, now: time.Now}
}

// ReportView is the outward representation of a report: no credential field
// at all, comments always present (empty, never nil) and expiry computed
// against the clock at read time rather than persisted.
type ReportView struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Location    string           `json:"location"`
	Description string           `json:"description"`
	IsOpen      bool             `json:"is_open"`
	IsExpired   bool             `json:"is_expired"`
	ExpiresAt   time.Time        `json:"expires_at"`
	CreatedAt   time.Time        `json:"created_at"`
	Comments    []models.Comment `json:"comments"`
}

// CreateReportInput carries the caller-validated fields for a new report.
type CreateReportInput struct {
	Title       string
	Location    string
	Description string
	Password    string
}

// ListOpenReports returns every open report with its comments in insertion
// order. Expired-but-open reports are included; expiry only gates commenting.
func (s *ReportStore) ListOpenReports() ([]ReportView, error) {
	var reports []models.Report
	if err := s.db.Where("is_open = ?", true).Order("created_at ASC").Find(&reports).Error; err != nil {
		return nil, storeFailure(err)
	}
	if len(reports) == 0 {
		// Nothing open, skip the comment fetch entirely.
		return []ReportView{}, nil
	}

	ids := make([]uuid.UUID, len(reports))
	for i, r := range reports {
		ids[i] = r.ID
	}

	var comments []models.Comment
	if err := s.db.Where("report_id IN ?", ids).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, storeFailure(err)
	}

	grouped := make(map[uuid.UUID][]models.Comment, len(reports))
	for _, c := range comments {
		grouped[c.ReportID] = append(grouped[c.ReportID], c)
	}

	now := s.now()
	views := make([]ReportView, len(reports))
	for i, r := range reports {
		views[i] = newView(r, grouped[r.ID], now)
	}
	return views, nil
}

// CreateReport inserts a new open report with a fresh discussion window. The
// password is hashed before it touches a row and the returned view carries no
// credential.
func (s *ReportStore) CreateReport(in CreateReportInput) (*ReportView, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, storeFailure(err)
	}

	now := s.now()
	report := models.Report{
		ID:          uuid.New(),
		Title:       in.Title,
		Location:    in.Location,
		Description: in.Description,
		Password:    hash,
		IsOpen:      true,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.db.Create(&report).Error; err != nil {
		return nil, storeFailure(err)
	}

	view := newView(report, nil, now)
	return &view, nil
}

// CloseReport flips an open report to closed. Guards run in order (existence,
// then credential, then state) and each failure keeps its own kind and message. The
// update itself is re-guarded on is_open so a concurrent close surfaces as a
// conflict instead of silently succeeding twice.
func (s *ReportStore) CloseReport(id uuid.UUID, password string) error {
	report, err := s.getReport(id)
	if err != nil {
		return err
	}
	if report == nil {
		return failure(KindNotFound, msgReportMissing)
	}
	if !checkPassword(report.Password, password) {
		return failure(KindUnauthorized, msgWrongPassword)
	}
	if !report.IsOpen {
		return failure(KindInvalidState, msgAlreadyClosed)
	}
	return s.markClosed(id)
}

// CreateComment adds a comment to an open, unexpired report and resets the
// discussion window to a full ttl from now (absolute, not added to the old
// deadline). The insert and the window reset share one transaction so a
// failed reset rolls the comment back.
func (s *ReportStore) CreateComment(reportID uuid.UUID, content string) (*models.Comment, error) {
	report, err := s.getReport(reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, failure(KindNotFound, msgCommentMissing)
	}
	if !report.IsOpen {
		return nil, failure(KindInvalidState, msgCommentClosed)
	}
	now := s.now()
	if report.ExpiresAt.Before(now) {
		return nil, failure(KindInvalidState, msgCommentExpired)
	}

	comment := models.Comment{
		ID:       uuid.New(),
		ReportID: reportID,
		Content:  content,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Report{}).
			Where("id = ?", reportID).
			Update("expires_at", now.Add(s.ttl)).Error
	})
	if err != nil {
		return nil, storeFailure(err)
	}
	return &comment, nil
}

// getReport fetches the full row including the stored credential. This is the
// only read that sees the password; nothing outside this package does.
func (s *ReportStore) getReport(id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := s.db.First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure(err)
	}
	return &report, nil
}

// markClosed performs the guarded open→closed update. Zero affected rows
// means the report was closed between the guard checks and this statement.
func (s *ReportStore) markClosed(id uuid.UUID) error {
	res := s.db.Model(&models.Report{}).
		Where("id = ? AND is_open = ?", id, true).
		Update("is_open", false)
	if res.Error != nil {
		return storeFailure(res.Error)
	}
	if res.RowsAffected == 0 {
		return failure(KindConflict, msgNotUpdated)
	}
	return nil
}

// hashPassword digests the token before bcrypt because bcrypt caps its input
// at 72 bytes and the board puts no length bound on passwords. The digest is
// base64-encoded so the bcrypt input is printable and fixed-length.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(digestPassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), digestPassword(password)) == nil
}

func digestPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func newView(r models.Report, comments []models.Comment, now time.Time) ReportView {
	if comments == nil {
		comments = []models.Comment{}
	}
	return ReportView{
		ID:          r.ID,
		Title:       r.Title,
		Location:    r.Location,
		Description: r.Description,
		IsOpen:      r.IsOpen,
		IsExpired:   r.ExpiresAt.Before(now),
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		Comments:    comments,
	}
}
