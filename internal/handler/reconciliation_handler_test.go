package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
)

type reconciliationServiceMock struct {
	report     *models.ReconciliationReport
	compliance *models.InternshipCompliance
	file       *service.ExportFile
	err        error

	scanned    bool
	lastFormat string
	lastActor  service.Actor
}

func (m *reconciliationServiceMock) Missing(_ context.Context, actor service.Actor) (*models.ReconciliationReport, error) {
	m.lastActor = actor
	return m.report, m.err
}

func (m *reconciliationServiceMock) Scan(context.Context) (*models.ReconciliationReport, error) {
	m.scanned = true
	return m.report, m.err
}

func (m *reconciliationServiceMock) Compliance(_ context.Context, _ string, actor service.Actor) (*models.InternshipCompliance, error) {
	m.lastActor = actor
	return m.compliance, m.err
}

func (m *reconciliationServiceMock) Export(_ context.Context, format string, actor service.Actor) (*service.ExportFile, error) {
	m.lastFormat, m.lastActor = format, actor
	return m.file, m.err
}

type dispatcherMock struct {
	report *models.ReconciliationReport
	err    error
}

func (d *dispatcherMock) Dispatch(_ context.Context, report *models.ReconciliationReport) (*dto.ReminderDispatchResult, error) {
	d.report = report
	if d.err != nil {
		return nil, d.err
	}
	return &dto.ReminderDispatchResult{Period: report.Period.String(), Tier: string(report.Tier), Queued: len(report.Missing)}, nil
}

func sampleReport() *models.ReconciliationReport {
	return &models.ReconciliationReport{
		Period:  models.Period{Month: 5, Year: 2024},
		Tier:    models.UrgencyCritical,
		Missing: []models.MissingReceipt{{InternshipID: "i-1"}, {InternshipID: "i-2"}},
	}
}

func TestReconciliationHandlerMissing(t *testing.T) {
	mockSvc := &reconciliationServiceMock{report: sampleReport()}
	h := NewReconciliationHandler(mockSvc, nil)

	teacher := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	c, w := newTestContext(http.MethodGet, "/reconciliation/missing", nil, teacher)
	h.Missing(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.lastActor.UserID)
	assert.Contains(t, w.Body.String(), `"urgency_tier":"CRITICAL"`)
	assert.Contains(t, w.Body.String(), `"total":2`)
}

func TestReconciliationHandlerExport(t *testing.T) {
	mockSvc := &reconciliationServiceMock{file: &service.ExportFile{
		Filename:    "missing-receipts-2024-05.csv",
		ContentType: "text/csv",
		Content:     []byte("Student\n"),
	}}
	h := NewReconciliationHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodGet, "/reconciliation/missing/export", nil, adminClaims)
	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mockSvc.lastFormat)
	assert.Equal(t, `attachment; filename="missing-receipts-2024-05.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student\n", w.Body.String())

	mockSvc.err = appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	c, w = newTestContext(http.MethodGet, "/reconciliation/missing/export?format=doc", nil, adminClaims)
	h.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "doc", mockSvc.lastFormat)
}

func TestReconciliationHandlerReminders(t *testing.T) {
	disabled := NewReconciliationHandler(&reconciliationServiceMock{report: sampleReport()}, nil)
	c, w := newTestContext(http.MethodPost, "/reconciliation/reminders", nil, adminClaims)
	disabled.Reminders(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	mockSvc := &reconciliationServiceMock{report: sampleReport()}
	dispatcher := &dispatcherMock{}
	h := NewReconciliationHandler(mockSvc, dispatcher)
	c, w = newTestContext(http.MethodPost, "/reconciliation/reminders", nil, adminClaims)
	h.Reminders(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, mockSvc.scanned)
	assert.Contains(t, w.Body.String(), `"queued":2`)

	dispatcher.err = errors.New("queue not running")
	c, w = newTestContext(http.MethodPost, "/reconciliation/reminders", nil, adminClaims)
	h.Reminders(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReconciliationHandlerCompliance(t *testing.T) {
	mockSvc := &reconciliationServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "internship not found")}
	h := NewReconciliationHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodGet, "/internships/i-9/compliance", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "i-9"}}
	h.Compliance(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
