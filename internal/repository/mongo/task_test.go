package mongo_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mkovalev/taskboard/internal/apperrors"
	"github.com/mkovalev/taskboard/internal/models"
	"github.com/mkovalev/taskboard/internal/repository"
	"github.com/mkovalev/taskboard/internal/testutil"
)

func Test_TaskRepo(t *testing.T) {
	t.Parallel()

	mc := testutil.StartMongoContainer(t)
	t.Cleanup(mc.Terminate)

	repo := mc.Storage.Tasks()

	createTask := func(t *testing.T, ownerID uuid.UUID, title string) models.Task {
		t.Helper()

		task, err := repo.CreateTask(t.Context(), repository.CreateTaskParams{
			Title:   title,
			OwnerID: ownerID,
		})
		require.NoError(t, err, "task should be created without errors")
		return task
	}

	t.Run("CreateTask defaults", func(t *testing.T) {
		owner := uuid.New()
		task := createTask(t, owner, "write report")

		require.NotEqual(t, uuid.Nil, task.ID)
		require.Equal(t, models.TaskStatusOpen, task.Status, "status defaults to open")
		require.Equal(t, owner, task.OwnerID)
		require.NotNil(t, task.Tags, "tags default to an empty list, not null")
		require.Empty(t, task.Tags)
		require.False(t, task.IsDeleted)
	})

	t.Run("GetTask", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			task := createTask(t, uuid.New(), "fetch me")

			got, err := repo.GetTask(t.Context(), task.ID)
			require.NoError(t, err)
			require.Equal(t, task.ID, got.ID)
			require.Equal(t, "fetch me", got.Title)
		})

		t.Run("not found", func(t *testing.T) {
			_, err := repo.GetTask(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("UpdateTask", func(t *testing.T) {
		t.Run("partial update", func(t *testing.T) {
			task := createTask(t, uuid.New(), "old title")

			status := models.TaskStatusDone
			updated, err := repo.UpdateTask(t.Context(), task.ID, repository.UpdateTaskParams{Status: &status})
			require.NoError(t, err)

			require.Equal(t, models.TaskStatusDone, updated.Status)
			require.Equal(t, "old title", updated.Title, "untouched fields should keep their values")
			require.True(t, updated.UpdatedAt.After(task.UpdatedAt) || updated.UpdatedAt.Equal(task.UpdatedAt))
		})

		t.Run("set and clear due date", func(t *testing.T) {
			task := createTask(t, uuid.New(), "dated")

			due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Millisecond)
			updated, err := repo.UpdateTask(t.Context(), task.ID, repository.UpdateTaskParams{DueDate: &due})
			require.NoError(t, err)
			require.NotNil(t, updated.DueDate)
			require.True(t, due.Equal(*updated.DueDate))

			updated, err = repo.UpdateTask(t.Context(), task.ID, repository.UpdateTaskParams{ClearDueDate: true})
			require.NoError(t, err)
			require.Nil(t, updated.DueDate)
		})

		t.Run("not found", func(t *testing.T) {
			title := "whatever"
			_, err := repo.UpdateTask(t.Context(), uuid.New(), repository.UpdateTaskParams{Title: &title})
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("SoftDeleteTask", func(t *testing.T) {
		task := createTask(t, uuid.New(), "to be tombstoned")

		require.NoError(t, repo.SoftDeleteTask(t.Context(), task.ID))

		_, err := repo.GetTask(t.Context(), task.ID)
		require.ErrorIs(t, err, apperrors.ErrTaskNotFound, "tombstoned tasks disappear from reads")

		err = repo.SoftDeleteTask(t.Context(), task.ID)
		require.ErrorIs(t, err, apperrors.ErrTaskNotFound, "repeated delete reports not-found")

		title := "revive attempt"
		_, err = repo.UpdateTask(t.Context(), task.ID, repository.UpdateTaskParams{Title: &title})
		require.ErrorIs(t, err, apperrors.ErrTaskNotFound, "tombstoned tasks can not be updated")
	})

	t.Run("HardDeleteTask", func(t *testing.T) {
		task := createTask(t, uuid.New(), "to be removed")

		// Hard delete removes the document even after a tombstone
		require.NoError(t, repo.SoftDeleteTask(t.Context(), task.ID))
		require.NoError(t, repo.HardDeleteTask(t.Context(), task.ID))

		err := repo.HardDeleteTask(t.Context(), task.ID)
		require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	})

	t.Run("ListTasks", func(t *testing.T) {
		// Fresh owners so the shared collection doesn't leak between subtests
		alice := uuid.New()
		bob := uuid.New()

		first := createTask(t, alice, "buy groceries")
		status := models.TaskStatusDone
		_, err := repo.UpdateTask(t.Context(), first.ID, repository.UpdateTaskParams{Status: &status})
		require.NoError(t, err)

		createTask(t, alice, "call the plumber")
		createTask(t, bob, "review groceries budget")

		deleted := createTask(t, alice, "already gone")
		require.NoError(t, repo.SoftDeleteTask(t.Context(), deleted.ID))

		t.Run("scoped to owner", func(t *testing.T) {
			tasks, total, err := repo.ListTasks(t.Context(), repository.ListTasksParams{OwnerID: &alice})
			require.NoError(t, err)
			require.EqualValues(t, 2, total, "tombstoned tasks are excluded")
			require.Len(t, tasks, 2)
			for _, task := range tasks {
				require.Equal(t, alice, task.OwnerID)
			}
		})

		t.Run("filter by status", func(t *testing.T) {
			done := models.TaskStatusDone
			tasks, total, err := repo.ListTasks(t.Context(), repository.ListTasksParams{OwnerID: &alice, Status: &done})
			require.NoError(t, err)
			require.EqualValues(t, 1, total)
			require.Equal(t, first.ID, tasks[0].ID)
		})

		t.Run("text search", func(t *testing.T) {
			tasks, total, err := repo.ListTasks(t.Context(), repository.ListTasksParams{Search: "groceries"})
			require.NoError(t, err)
			require.EqualValues(t, 2, total, "search spans owners when none is given")
			require.Len(t, tasks, 2)
		})

		t.Run("sort by title ascending", func(t *testing.T) {
			tasks, _, err := repo.ListTasks(t.Context(), repository.ListTasksParams{OwnerID: &alice, Sort: "title"})
			require.NoError(t, err)
			require.Len(t, tasks, 2)
			require.Equal(t, "buy groceries", tasks[0].Title)
			require.Equal(t, "call the plumber", tasks[1].Title)
		})

		t.Run("paging", func(t *testing.T) {
			tasks, total, err := repo.ListTasks(t.Context(), repository.ListTasksParams{OwnerID: &alice, Page: 2, Limit: 1})
			require.NoError(t, err)
			require.EqualValues(t, 2, total)
			require.Len(t, tasks, 1)
		})
	})
}
