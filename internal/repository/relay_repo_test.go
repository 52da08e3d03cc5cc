package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"powersense/internal/models"
	"powersense/internal/repository"
	"powersense/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepos(t *testing.T) (*repository.Repository, int) {
	t.Helper()
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "relays.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	repos := repository.NewRepository(conn)
	uid, err := repos.Auth.Create("owner@example.com", "hash")
	require.NoError(t, err)
	return repos, uid
}

func TestRelaySQLite_CRUDRoundTrip(t *testing.T) {
	repos, uid := newSQLiteRepos(t)
	ctx := context.Background()

	limit := 2.5
	dev := models.RelayDevice{
		ID:              "r-1",
		OwnerID:         uid,
		Name:            "Kettle",
		Description:     "kitchen",
		ControlEndpoint: "1",
		Threshold:       &limit,
		ThresholdUnit:   models.UnitAmps,
	}
	require.NoError(t, repos.Relays.Create(ctx, dev))
	require.NoError(t, repos.Relays.Create(ctx, models.RelayDevice{ID: "r-2", OwnerID: uid, Name: "Heater", ThresholdUnit: models.UnitWatts}))

	list, err := repos.Relays.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Heater", list[0].Name, "ordered by name")
	assert.Nil(t, list[0].Threshold)
	require.NotNil(t, list[1].Threshold)
	assert.InDelta(t, 2.5, *list[1].Threshold, 1e-9)

	require.NoError(t, repos.Relays.SetOn(ctx, "r-1", true))
	require.NoError(t, repos.Relays.SetFavorite(ctx, "r-1", true))
	dev.Name = "Big kettle"
	dev.Threshold = nil
	require.NoError(t, repos.Relays.Update(ctx, dev))

	got, err := repos.Relays.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.True(t, got.IsOn)
	assert.True(t, got.IsFavorite)
	assert.Equal(t, "Big kettle", got.Name)
	assert.Nil(t, got.Threshold)

	require.NoError(t, repos.Relays.Delete(ctx, uid, "r-1"))
	_, err = repos.Relays.Get(ctx, "r-1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.True(t, errors.Is(repos.Relays.Delete(ctx, uid, "r-1"), repository.ErrNotFound))
}

func TestRelaySQLite_DeleteScopedToOwner(t *testing.T) {
	repos, uid := newSQLiteRepos(t)
	ctx := context.Background()
	require.NoError(t, repos.Relays.Create(ctx, models.RelayDevice{ID: "r-1", OwnerID: uid, Name: "Fan", ThresholdUnit: "A"}))

	err := repos.Relays.Delete(ctx, uid+1, "r-1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRelaySQLite_SetOnMissingRow(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE relays SET is_on = ? WHERE id = ?`)).
		WithArgs(true, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := repository.NewRelaySQLite(conn)
	assert.True(t, errors.Is(repo.SetOn(context.Background(), "ghost", true), repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileAndSettings_RoundTrip(t *testing.T) {
	repos, uid := newSQLiteRepos(t)
	ctx := context.Background()

	p, err := repos.Profiles.Get(ctx, uid)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.True(t, errors.Is(repos.Profiles.UpdateImage(ctx, uid, "x"), repository.ErrNotFound))

	require.NoError(t, repos.Profiles.Save(ctx, models.UserProfile{UID: uid, Email: "owner@example.com", FullName: "Ada"}))
	require.NoError(t, repos.Profiles.UpdateImage(ctx, uid, "https://img/1.png"))
	p, err = repos.Profiles.Get(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ada", p.FullName)
	assert.Equal(t, "https://img/1.png", p.ProfileImageURL)

	s, err := repos.Settings.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(uid), s)

	alerting, err := repos.Settings.ListAlerting(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerting)

	s.PerApplianceAlert = true
	s.Theme = models.ThemeDark
	require.NoError(t, repos.Settings.Save(ctx, s))

	alerting, err = repos.Settings.ListAlerting(ctx)
	require.NoError(t, err)
	require.Len(t, alerting, 1)
	assert.Equal(t, models.ThemeDark, alerting[0].Theme)
	assert.True(t, alerting[0].PerApplianceAlert)
}
