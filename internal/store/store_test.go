package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"meter-image-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_MeterByID(t *testing.T) {
	now := time.Now()

	// The lookup must filter on is_active in SQL so that a deactivated
	// meter behaves exactly like a missing one.
	meterQuery := regexp.QuoteMeta(`SELECT * FROM "water_meters" WHERE id = $1 AND is_active = $2`)

	testCases := []struct {
		name             string
		meterID          int64
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedCode     string
		expectedErr      error
		expectAnyErr     bool
	}{
		{
			name:    "Active meter is returned",
			meterID: 1,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(meterQuery).
					WillReturnRows(sqlmock.NewRows([]string{"id", "consumer_id", "meter_code", "location", "is_active", "created_at"}).
						AddRow(1, 10, "WM-001", "Block A", true, now))
			},
			expectedCode: "WM-001",
		},
		{
			name:    "Missing meter maps to ErrMeterNotFound",
			meterID: 999,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(meterQuery).
					WillReturnRows(sqlmock.NewRows([]string{"id", "consumer_id", "meter_code", "location", "is_active", "created_at"}))
			},
			expectedErr: ErrMeterNotFound,
		},
		{
			name:    "Database failure is not reported as not-found",
			meterID: 1,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(meterQuery).
					WillReturnError(errors.New("connection refused"))
			},
			expectAnyErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			meter, err := store.MeterByID(context.Background(), tc.meterID)

			switch {
			case tc.expectedErr != nil:
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, meter)
			case tc.expectAnyErr:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrMeterNotFound)
				assert.Nil(t, meter)
			default:
				assert.NoError(t, err)
				require.NotNil(t, meter)
				assert.Equal(t, tc.expectedCode, meter.MeterCode)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_CreateImage(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      bool
		expectedID       int64
	}{
		{
			name: "Insert succeeds and backfills the ID",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				// Processed carries a column default, so gorm omits it from
				// the INSERT; args are left unpinned on purpose.
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "images"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
				mock.ExpectCommit()
			},
			expectedID: 42,
		},
		{
			name: "Insert failure is propagated",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "images"`)).
					WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			img := &model.Image{
				WaterMeterID: 7,
				ImageURL:     "uploads/7_20250102_030405_abc.jpg",
			}
			err := store.CreateImage(context.Background(), img)

			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedID, img.ID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_DeleteImage(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "images" WHERE "images"."id" = $1`)).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.DeleteImage(context.Background(), 42)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ReadingByTaskID(t *testing.T) {
	readingQuery := regexp.QuoteMeta(`SELECT * FROM "readings" WHERE task_id = $1`)

	t.Run("Missing reading maps to ErrReadingNotFound", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(readingQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id", "image_id", "water_meter_id", "task_id", "value", "raw_text", "confidence", "status", "error_message", "created_at"}))

		reading, err := store.ReadingByTaskID(context.Background(), "no-such-task")
		assert.ErrorIs(t, err, ErrReadingNotFound)
		assert.Nil(t, reading)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Existing reading is returned", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(readingQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id", "image_id", "water_meter_id", "task_id", "value", "raw_text", "confidence", "status", "error_message", "created_at"}).
				AddRow(3, 42, 7, "task-123", 1234.5, "001234.5", 0.93, "success", "", time.Now()))

		reading, err := store.ReadingByTaskID(context.Background(), "task-123")
		require.NoError(t, err)
		require.NotNil(t, reading)
		assert.Equal(t, "success", reading.Status)
		assert.InDelta(t, 1234.5, reading.Value, 0.001)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
