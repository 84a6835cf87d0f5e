// Package repository 提供 store 接口的 PostgreSQL 实现
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/nurseshift/internal/database"
	"github.com/paiban/nurseshift/pkg/store"
)

// uniqueViolation PostgreSQL 唯一约束冲突错误码
const uniqueViolation = "23505"

// Store 聚合各仓储，实现 store.Store
type Store struct {
	*DepartmentRepository
	*ShiftRepository
	*CalendarRepository
	*PriorityRepository
	*AssignmentRepository
}

var _ store.Store = (*Store)(nil)

// New 创建 PostgreSQL 存储
func New(db *database.DB) *Store {
	return &Store{
		DepartmentRepository: NewDepartmentRepository(db),
		ShiftRepository:      NewShiftRepository(db),
		CalendarRepository:   NewCalendarRepository(db),
		PriorityRepository:   NewPriorityRepository(db),
		AssignmentRepository: NewAssignmentRepository(db),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// conditions 拼接 WHERE 条件并维护占位符序号
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(format string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.args)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.clauses, " AND ")
}

// uuidArray 转为 uuid[] 参数，SQL 中配合 ::uuid[] 使用
func uuidArray(ids []uuid.UUID) interface{} {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
