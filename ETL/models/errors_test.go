package models

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"обрыв соединения", driver.ErrBadConn, true},
		{"невалидное соединение", mysql.ErrInvalidConn, true},
		{"таймаут контекста", context.DeadlineExceeded, true},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205}, true},
		{"deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"дубликат ключа", &mysql.MySQLError{Number: 1062}, false},
		{"нарушение FK", &mysql.MySQLError{Number: 1452}, false},
		{"обычная ошибка", errors.New("boom"), false},
		{"обернутый deadlock", fmt.Errorf("фаза Load: %w", &mysql.MySQLError{Number: 1213}), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestIsIntegrityViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"дубликат ключа", &mysql.MySQLError{Number: 1062}, true},
		{"нет родительской строки", &mysql.MySQLError{Number: 1452}, true},
		{"строка используется", &mysql.MySQLError{Number: 1451}, true},
		{"нарушение CHECK", &mysql.MySQLError{Number: 3819}, true},
		{"deadlock", &mysql.MySQLError{Number: 1213}, false},
		{"не MySQL ошибка", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsIntegrityViolation(tc.err))
		})
	}
}

func TestChunkError(t *testing.T) {
	cause := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	err := &ChunkError{Chunk: 3, Offset: 1500, Size: 500, Err: cause}

	assert.Contains(t, err.Error(), "чанке 3")
	assert.Contains(t, err.Error(), "1500-1999")

	// Классификация видит исходную ошибку сквозь обертку чанка
	var mysqlErr *mysql.MySQLError
	require.ErrorAs(t, err, &mysqlErr)
	assert.True(t, IsIntegrityViolation(err))
}

func TestDateID(t *testing.T) {
	assert.Equal(t, 20240315, DateID(mustDate(t, "2024-03-15")))
	assert.Equal(t, 20200101, DateID(mustDate(t, "2020-01-01")))
	assert.Equal(t, 20301231, DateID(mustDate(t, "2030-12-31")))
}
