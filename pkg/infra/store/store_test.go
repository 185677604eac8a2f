package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/pkg/schedule"
	"github.com/cascadehq/cascade/pkg/trigger"
	"github.com/cascadehq/cascade/pkg/workflow"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cascade.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testDefinition(name string) *workflow.WorkflowDefinition {
	def := workflow.NewDefinition(name, "")
	def.Steps = []workflow.WorkflowStep{
		{
			ID:        "a",
			Name:      "a",
			Kind:      workflow.StepKindAction,
			Action:    workflow.StepAction{Type: workflow.ActionWait},
			DependsOn: []string{},
		},
	}
	return def
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"workflow_definitions", "schedules", "triggers"} {
		var count int
		err := db.SQL().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "missing table %s", table)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cascade.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestDefinitionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteDefinitionStore(openTestDB(t))

	t.Run("register and get", func(t *testing.T) {
		def := testDefinition("deploy")
		require.NoError(t, s.Register(ctx, def))

		got, err := s.GetDefinition(def.ID)
		require.NoError(t, err)
		assert.Equal(t, def.ID, got.ID)
		assert.Equal(t, "deploy", got.Name)
		require.Len(t, got.Steps, 1)
		assert.Equal(t, "a", got.Steps[0].ID)
	})

	t.Run("register replaces existing", func(t *testing.T) {
		def := testDefinition("rollout")
		require.NoError(t, s.Register(ctx, def))

		def.Name = "rollout-v2"
		require.NoError(t, s.Register(ctx, def))

		got, err := s.GetDefinition(def.ID)
		require.NoError(t, err)
		assert.Equal(t, "rollout-v2", got.Name)
	})

	t.Run("register rejects invalid definition", func(t *testing.T) {
		def := testDefinition("broken")
		def.Steps[0].DependsOn = []string{"missing"}
		require.Error(t, s.Register(ctx, def))
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := s.GetDefinition("nope")
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("list ordered by name", func(t *testing.T) {
		db := NewSQLiteDefinitionStore(openTestDB(t))
		require.NoError(t, db.Register(ctx, testDefinition("beta")))
		require.NoError(t, db.Register(ctx, testDefinition("alpha")))

		defs, err := db.List(ctx)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "alpha", defs[0].Name)
		assert.Equal(t, "beta", defs[1].Name)
	})

	t.Run("delete", func(t *testing.T) {
		def := testDefinition("ephemeral")
		require.NoError(t, s.Register(ctx, def))
		require.NoError(t, s.Delete(ctx, def.ID))

		_, err := s.GetDefinition(def.ID)
		assert.ErrorIs(t, err, workflow.ErrNotFound)

		err = s.Delete(ctx, def.ID)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestScheduleStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("save and get", func(t *testing.T) {
		s := NewSQLiteScheduleStore(openTestDB(t))

		sw := schedule.NewScheduledWorkflow("wf-1", schedule.Every(60, false))
		sw.UpdateNextExecution(now)
		require.NoError(t, s.Save(ctx, sw))

		got, err := s.Get(ctx, sw.ID)
		require.NoError(t, err)
		assert.Equal(t, sw.ID, got.ID)
		assert.Equal(t, "wf-1", got.WorkflowID)
		require.NotNil(t, got.NextExecution)
	})

	t.Run("get unknown", func(t *testing.T) {
		s := NewSQLiteScheduleStore(openTestDB(t))
		_, err := s.Get(ctx, "sched_nope")
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("list due", func(t *testing.T) {
		s := NewSQLiteScheduleStore(openTestDB(t))

		due := schedule.NewScheduledWorkflow("wf-due", schedule.Once(now.Add(-time.Minute)))
		due.UpdateNextExecution(now.Add(-2 * time.Minute))
		require.NoError(t, s.Save(ctx, due))

		future := schedule.NewScheduledWorkflow("wf-future", schedule.Once(now.Add(time.Hour)))
		future.UpdateNextExecution(now)
		require.NoError(t, s.Save(ctx, future))

		disabled := schedule.NewScheduledWorkflow("wf-off", schedule.Once(now.Add(-time.Minute)))
		disabled.UpdateNextExecution(now.Add(-2 * time.Minute))
		disabled.Enabled = false
		require.NoError(t, s.Save(ctx, disabled))

		list, err := s.ListDue(ctx, now)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "wf-due", list[0].WorkflowID)
	})

	t.Run("list by workflow", func(t *testing.T) {
		s := NewSQLiteScheduleStore(openTestDB(t))
		require.NoError(t, s.Save(ctx, schedule.NewScheduledWorkflow("wf-a", schedule.Every(60, false))))
		require.NoError(t, s.Save(ctx, schedule.NewScheduledWorkflow("wf-a", schedule.Every(120, false))))
		require.NoError(t, s.Save(ctx, schedule.NewScheduledWorkflow("wf-b", schedule.Every(60, false))))

		list, err := s.ListByWorkflow(ctx, "wf-a")
		require.NoError(t, err)
		assert.Len(t, list, 2)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("update", func(t *testing.T) {
		s := NewSQLiteScheduleStore(openTestDB(t))

		sw := schedule.NewScheduledWorkflow("wf-1", schedule.Every(60, false))
		require.NoError(t, s.Save(ctx, sw))

		sw.Enabled = false
		require.NoError(t, s.Update(ctx, sw))

		got, err := s.Get(ctx, sw.ID)
		require.NoError(t, err)
		assert.False(t, got.Enabled)

		missing := schedule.NewScheduledWorkflow("wf-x", schedule.Every(60, false))
		err = s.Update(ctx, missing)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := NewSQLiteScheduleStore(openTestDB(t))

		sw := schedule.NewScheduledWorkflow("wf-1", schedule.Every(60, false))
		require.NoError(t, s.Save(ctx, sw))
		require.NoError(t, s.Delete(ctx, sw.ID))

		_, err := s.Get(ctx, sw.ID)
		assert.True(t, errors.Is(err, workflow.ErrNotFound))

		err = s.Delete(ctx, sw.ID)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestTriggerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := NewSQLiteTriggerStore(openTestDB(t))

		tr := trigger.NewTrigger("on-push", "wf-1", trigger.EventTypeIs("push")).
			WithRateLimit(5, 60)
		require.NoError(t, s.Save(ctx, tr))

		got, err := s.Get(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, tr.ID, got.ID)
		assert.Equal(t, "on-push", got.Name)
		require.NotNil(t, got.RateLimit)
		assert.Equal(t, 5, got.RateLimit.MaxExecutions)
		assert.Equal(t, trigger.CondEventType, got.Condition.Type)
	})

	t.Run("get unknown", func(t *testing.T) {
		s := NewSQLiteTriggerStore(openTestDB(t))
		_, err := s.Get(ctx, "trg_nope")
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("list enabled ordered by priority", func(t *testing.T) {
		s := NewSQLiteTriggerStore(openTestDB(t))

		low := trigger.NewTrigger("low", "wf-1", trigger.EventTypeIs("push")).WithPriority(10)
		high := trigger.NewTrigger("high", "wf-1", trigger.EventTypeIs("push")).WithPriority(200)
		off := trigger.NewTrigger("off", "wf-1", trigger.EventTypeIs("push"))
		off.Enabled = false

		require.NoError(t, s.Save(ctx, high))
		require.NoError(t, s.Save(ctx, low))
		require.NoError(t, s.Save(ctx, off))

		enabled, err := s.ListEnabled(ctx)
		require.NoError(t, err)
		require.Len(t, enabled, 2)
		assert.Equal(t, "low", enabled[0].Name)
		assert.Equal(t, "high", enabled[1].Name)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("list by workflow", func(t *testing.T) {
		s := NewSQLiteTriggerStore(openTestDB(t))
		require.NoError(t, s.Save(ctx, trigger.NewTrigger("a", "wf-a", trigger.EventTypeIs("push"))))
		require.NoError(t, s.Save(ctx, trigger.NewTrigger("b", "wf-b", trigger.EventTypeIs("push"))))

		list, err := s.ListByWorkflow(ctx, "wf-a")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a", list[0].Name)
	})

	t.Run("update", func(t *testing.T) {
		s := NewSQLiteTriggerStore(openTestDB(t))

		tr := trigger.NewTrigger("on-push", "wf-1", trigger.EventTypeIs("push"))
		require.NoError(t, s.Save(ctx, tr))

		tr.Enabled = false
		require.NoError(t, s.Update(ctx, tr))

		got, err := s.Get(ctx, tr.ID)
		require.NoError(t, err)
		assert.False(t, got.Enabled)

		missing := trigger.NewTrigger("ghost", "wf-1", trigger.EventTypeIs("push"))
		err = s.Update(ctx, missing)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := NewSQLiteTriggerStore(openTestDB(t))

		tr := trigger.NewTrigger("on-push", "wf-1", trigger.EventTypeIs("push"))
		require.NoError(t, s.Save(ctx, tr))
		require.NoError(t, s.Delete(ctx, tr.ID))

		_, err := s.Get(ctx, tr.ID)
		assert.ErrorIs(t, err, workflow.ErrNotFound)

		err = s.Delete(ctx, tr.ID)
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestComplexConditionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteTriggerStore(openTestDB(t))

	cond := trigger.All(
		trigger.EventTypeIs("deployment"),
		trigger.Any(
			trigger.SourceIs(trigger.SourceWebhook),
			trigger.PayloadFieldEquals("env", "prod"),
		),
		trigger.Not(trigger.MetadataEquals("dry_run", "true")),
	)
	tr := trigger.NewTrigger("complex", "wf-1", cond)
	require.NoError(t, s.Save(ctx, tr))

	got, err := s.Get(ctx, tr.ID)
	require.NoError(t, err)

	ev := trigger.NewEvent("deployment", trigger.SourceWebhook, map[string]any{"env": "prod"})
	assert.True(t, got.Condition.Matches(ev))

	dry := trigger.NewEvent("deployment", trigger.SourceWebhook, map[string]any{"env": "prod"}).
		WithMetadata("dry_run", "true")
	assert.False(t, got.Condition.Matches(dry))
}
