package forms

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var updated = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func towerForm(version int) *models.Form {
	return &models.Form{
		ID:              "form-tower",
		Name:            "Tower inspection",
		Description:     "Quarterly",
		Version:         version,
		AssignedUserIDs: []string{"u2", "u1"},
		UpdatedAt:       updated,
		Steps: []models.Step{
			{ID: "st-2", StepNumber: 2, Title: "Antennas", Questions: []models.Question{
				{ID: "q-count", QuestionText: "How many?", Type: models.QuestionNumber, OrderNumber: 1, IsRequired: true},
			}},
			{ID: "st-1", StepNumber: 1, Title: "General", Questions: []models.Question{
				{ID: "q-issues", QuestionText: "Issues", Type: models.QuestionMultipleChoice, OrderNumber: 2,
					Options: []string{"rust", "bolts"}, Metadata: map[string]any{"hint": "pick all"}},
				{ID: "q-notes", QuestionText: "Notes", Type: models.QuestionText, OrderNumber: 1},
			}},
		},
	}
}

func TestReplace_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Replace(ctx, towerForm(1)))

	got, err := r.FindByID(ctx, "form-tower")
	require.NoError(t, err)
	assert.Equal(t, "Tower inspection", got.Name)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, updated, got.UpdatedAt)
	assert.Equal(t, []string{"u1", "u2"}, got.AssignedUserIDs)

	require.Len(t, got.Steps, 2)
	assert.Equal(t, 1, got.Steps[0].StepNumber)
	require.Len(t, got.Steps[0].Questions, 2)
	assert.Equal(t, "q-notes", got.Steps[0].Questions[0].ID)
	assert.Nil(t, got.Steps[0].Questions[0].Options)
	assert.Nil(t, got.Steps[0].Questions[0].Metadata)

	issues := got.Steps[0].Questions[1]
	assert.Equal(t, []string{"rust", "bolts"}, issues.Options)
	assert.Equal(t, map[string]any{"hint": "pick all"}, issues.Metadata)
	assert.True(t, got.Steps[1].Questions[0].IsRequired)
}

func TestReplace_WholeSnapshot(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Replace(ctx, towerForm(1)))

	next := towerForm(2)
	next.Steps = next.Steps[:1]
	next.AssignedUserIDs = []string{"u3"}
	require.NoError(t, r.Replace(ctx, next))

	got, err := r.FindByID(ctx, "form-tower")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "st-2", got.Steps[0].ID)
	assert.Equal(t, []string{"u3"}, got.AssignedUserIDs)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplace_RejectsInvalid(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	bad := towerForm(1)
	bad.Steps[1].StepNumber = 2

	require.ErrorIs(t, r.Replace(context.Background(), bad), models.ErrInvalidForm)
}

func TestReplaceAll_PrunesMissing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	other := &models.Form{ID: "form-shelter", Name: "Shelter", Version: 1, UpdatedAt: updated}
	require.NoError(t, r.ReplaceAll(ctx, []*models.Form{towerForm(1), other}))

	all, err := r.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "form-shelter", all[0].ID)
	assert.Empty(t, all[0].Steps)

	require.NoError(t, r.ReplaceAll(ctx, []*models.Form{other}))
	_, err = r.FindByID(ctx, "form-tower")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, r.ReplaceAll(ctx, nil))
	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFindByUser(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Replace(ctx, towerForm(1)))

	mine, err := r.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Steps, 2)

	none, err := r.FindByUser(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDelete_Cascades(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, r.Replace(ctx, towerForm(1)))

	require.NoError(t, r.Delete(ctx, "form-tower"))
	require.ErrorIs(t, r.Delete(ctx, "form-tower"), common.ErrNotFound)

	var steps, questions int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM form_steps`).Scan(&steps))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&questions))
	assert.Zero(t, steps)
	assert.Zero(t, questions)
}
