package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/nurseshift/internal/app"
	"github.com/paiban/nurseshift/internal/config"
)

func testApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.App.Env = "test"
	cfg.Storage.Driver = "memory"
	cfg.RateLimit.Requests = 0
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func executeCmd(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(a)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestPrioritiesListAndSwap(t *testing.T) {
	a := testApp(t)
	dept := app.DemoDepartmentID.String()

	out, err := executeCmd(t, a, "priorities", "list", "-d", dept)
	require.NoError(t, err)
	assert.Contains(t, out, "共 6 项，启用 6 项")

	res, err := a.Registry.List(context.Background(), app.DemoDepartmentID)
	require.NoError(t, err)
	first, second := res.Priorities[0], res.Priorities[1]

	out, err = executeCmd(t, a, "priorities", "swap", first.ID.String(), second.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "已交换")

	res, err = a.Registry.List(context.Background(), app.DemoDepartmentID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, res.Priorities[0].ID)
}

func TestPrioritiesSwap_BadArgs(t *testing.T) {
	a := testApp(t)

	_, err := executeCmd(t, a, "priorities", "swap", "only-one")
	assert.Error(t, err)

	_, err = executeCmd(t, a, "priorities", "swap", "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UUID")
}

func TestGenerate(t *testing.T) {
	a := testApp(t)
	dept := app.DemoDepartmentID.String()

	out, err := executeCmd(t, a, "generate", "-d", dept, "-m", "2024-03", "--from", "2024-03-04", "--to", "2024-03-06")
	require.NoError(t, err)
	assert.Contains(t, out, "策略: greedy")
	assert.NotContains(t, out, "新增: 0 ")

	_, err = executeCmd(t, a, "generate", "-d", dept, "-m", "2024-03", "--from", "2024-03-04", "--to", "2024-03-06")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALREADY_GENERATED")

	out, err = executeCmd(t, a, "generate", "-d", dept, "-m", "2024-03", "--from", "2024-03-04", "--to", "2024-03-06", "--replace")
	require.NoError(t, err)
	assert.NotContains(t, out, "取消: 0 ")
}

func TestGenerate_RequiresFlags(t *testing.T) {
	a := testApp(t)
	_, err := executeCmd(t, a, "generate", "-m", "2024-03")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "department")
}

func TestCalendar(t *testing.T) {
	a := testApp(t)
	out, err := executeCmd(t, a, "calendar", "-d", app.DemoDepartmentID.String(), "-m", "2024-02")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 30) // 表头 + 29 天
	assert.Contains(t, lines[4], "2024-02-04")
	assert.Contains(t, lines[4], "Sunday")
	assert.NotContains(t, lines[4], "✓")
}

func TestMigrate_MemoryStore(t *testing.T) {
	a := testApp(t)
	_, err := executeCmd(t, a, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
