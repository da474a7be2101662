package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/furniturefinder/internal/domain/entities"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

func newMockWriter(t *testing.T) (*ProductWriter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProductWriter(postgres.NewClientFromDB(db)), mock
}

func TestProductWriter_Upsert(t *testing.T) {
	writer, mock := newMockWriter(t)

	mock.ExpectExec(`INSERT INTO "furniture" .* ON CONFLICT .*DO UPDATE SET .*EXCLUDED.current_price`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := writer.Upsert(context.Background(), &entities.Product{
		ID:           "p-1",
		Name:         "Oak Bed",
		Brand:        "West Elm",
		CurrentPrice: entities.FloatPtr(450),
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductWriter_UpsertFailureIsInternal(t *testing.T) {
	writer, mock := newMockWriter(t)

	mock.ExpectExec(`INSERT INTO "furniture"`).WillReturnError(errors.New("constraint violated"))

	err := writer.Upsert(context.Background(), &entities.Product{ID: "p-1", Name: "Oak Bed"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestProductWriter_EnsureSchemaAndTruncate(t *testing.T) {
	writer, mock := newMockWriter(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS furniture`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`TRUNCATE "furniture"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, writer.EnsureSchema(context.Background()))
	require.NoError(t, writer.Truncate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNullFloat(t *testing.T) {
	assert.False(t, nullFloat(nil).Valid)
	v := nullFloat(entities.FloatPtr(12.5))
	assert.True(t, v.Valid)
	assert.Equal(t, 12.5, v.Float64)
}
