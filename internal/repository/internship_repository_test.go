package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dekont-api/internal/models"
)

var internshipRowColumns = []string{"id", "student_id", "company_id", "teacher_id", "start_date", "end_date", "termination_date", "status",
	"student_name", "student_user_id", "class_name", "enrollment_number", "company_name", "teacher_name", "teacher_user_id"}

func TestInternshipRepositoryListCollectingBoundsPeriod(t *testing.T) {
	db, mock, cleanup := newReceiptMock(t)
	defer cleanup()
	repo := NewInternshipRepository(db)

	period := models.Period{Month: 3, Year: 2024}
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.start_date < $1")).
		WithArgs(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "teacher-user").
		WillReturnRows(sqlmock.NewRows(internshipRowColumns).
			AddRow("int-1", "stu-1", "co-1", "t-1", start, nil, nil, "ACTIVE", "Ayse", "stu-user", "12-A", "1042", "Acme", "Mehmet", "teacher-user"))

	internships, err := repo.ListCollecting(context.Background(), period, models.InternshipFilter{TeacherUserID: "teacher-user"})
	require.NoError(t, err)
	require.Len(t, internships, 1)
	assert.True(t, internships[0].CoordinatedBy("teacher-user"))
	assert.True(t, internships[0].CollectsFor(period))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInternshipRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newReceiptMock(t)
	defer cleanup()
	repo := NewInternshipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
