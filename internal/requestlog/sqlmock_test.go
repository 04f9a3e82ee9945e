package requestlog

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// openMockedDB wires a gorm.DB onto a go-sqlmock connection, letting the
// sink's SQL be asserted without a live database. mysql's dialector is used
// purely for its placeholder/quoting style; no mysql server is involved.
func openMockedDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

// TestGormSink_RecordRequest_IssuesInsert verifies the sink issues exactly
// one INSERT per RecordRequest call against the request_log table, without
// needing a live database connection.
func TestGormSink_RecordRequest_IssuesInsert(t *testing.T) {
	db, mock := openMockedDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `request_log`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sink := &GormSink{db: db, logger: zap.NewNop()}
	sink.RecordRequest(context.Background(), Stats{Provider: "anthropic", Model: "claude-sonnet", Success: true})

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGormSink_RecordRequest_SwallowsWriteFailure confirms a broken
// request-log sink never propagates an error back to the caller — the
// chat-completion response it is describing must not fail alongside it.
func TestGormSink_RecordRequest_SwallowsWriteFailure(t *testing.T) {
	db, mock := openMockedDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `request_log`").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	sink := &GormSink{db: db, logger: zap.NewNop()}
	require.NotPanics(t, func() {
		sink.RecordRequest(context.Background(), Stats{Provider: "openai", Model: "gpt-4o"})
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

var _ = sql.ErrNoRows
