package override

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paiban/nurseshift/pkg/errors"
	"github.com/paiban/nurseshift/pkg/model"
)

func TestReplacements_RankedByLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, f.a, f.morning, "2024-03-15")
	f.seed(t, f.b, f.morning, "2024-03-13")
	f.seed(t, f.b, f.morning, "2024-03-14")

	list, err := f.svc.Replacements(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, f.c.ID, list[0].StaffID)
	assert.Equal(t, 1, list[0].Rank)
	assert.Equal(t, f.b.ID, list[1].StaffID)
	assert.Equal(t, 2, list[1].MonthShifts)
	assert.Greater(t, list[0].Score, list[1].Score)

	list, err = f.svc.Replacements(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReplacements_SkipsIneligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, f.a, f.morning, "2024-03-15")
	f.seed(t, f.b, f.early, "2024-03-15")
	f.store.PutLeave(&model.Leave{ID: uuid.New(), StaffID: f.c.ID, Status: model.LeaveApproved,
		DateRange: model.DateRange{Start: "2024-03-15", End: "2024-03-15"}})

	list, err := f.svc.Replacements(ctx, a.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.svc.Remove(ctx, a.ID))
	_, err = f.svc.Replacements(ctx, a.ID, 5)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
}

func TestTakeOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, f.a, f.morning, "2024-03-15")

	_, err := f.svc.TakeOver(ctx, a.ID, f.a.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	_, err = f.svc.TakeOver(ctx, a.ID, f.asst.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	_, err = f.svc.TakeOver(ctx, a.ID, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	f.seed(t, f.b, f.early, "2024-03-15")
	_, err = f.svc.TakeOver(ctx, a.ID, f.b.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeIneligible))

	moved, err := f.svc.TakeOver(ctx, a.ID, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.c.ID, moved.StaffID)
	assert.Equal(t, map[uuid.UUID]bool{f.c.ID: true}, f.slotStaff(t, f.morning, "2024-03-15"))
}
