package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "repo.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *database.DB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "x", Role: role}
	require.NoError(t, NewSQLiteUserRepo(db.Conn).Create(context.Background(), u))
	return u
}

func seedCourse(t *testing.T, db *database.DB, coordinator string) *models.Course {
	t.Helper()
	c := &models.Course{Name: "Physics", CoordinatorID: coordinator}
	require.NoError(t, NewSQLiteCourseRepo(db.Conn).Create(context.Background(), c))
	return c
}

func TestUserRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSQLiteUserRepo(db.Conn)

	u := seedUser(t, db, "asha", models.RoleCoordinator)
	assert.NotEmpty(t, u.ID)

	got, err := repo.GetByUsername(ctx, "asha")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleCoordinator, got.Role)

	err = repo.Create(ctx, &models.User{Username: "asha", PasswordHash: "y", Role: models.RoleStudent})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	users, err := repo.GetByIDs(ctx, []string{u.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSessionRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "ravi", models.RoleStudent)
	repo := NewSQLiteSessionRepo(db.Conn)

	s := &models.Session{UserID: u.ID, RefreshToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByRefreshToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	require.NoError(t, repo.DeleteByID(ctx, s.ID))
	_, err = repo.GetByRefreshToken(ctx, "tok")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestLectureRepo_ListOldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "asha", models.RoleCoordinator)
	c := seedCourse(t, db, u.ID)
	other := seedCourse(t, db, u.ID)
	repo := NewSQLiteLectureRepo(db.Conn)

	for _, name := range []string{"Intro", "Entropy"} {
		require.NoError(t, repo.Create(ctx, &models.Lecture{CourseID: c.ID, Name: name, CreatedBy: u.ID}))
	}
	require.NoError(t, repo.Create(ctx, &models.Lecture{CourseID: other.ID, Name: "Elsewhere", CreatedBy: u.ID}))

	list, err := repo.List(ctx, Filter{"course_id": {c.ID}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Intro", list[0].Name)
	assert.Equal(t, "Entropy", list[1].Name)
}

func TestMaterialRepo_CreateInTx(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "asha", models.RoleCoordinator)
	c := seedCourse(t, db, u.ID)

	m := &models.Material{CourseID: c.ID, Name: "Notes", CreatedBy: u.ID, Files: []string{"http://x/a.pdf", "http://x/b.pdf"}}
	err := database.WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		return NewSQLiteMaterialRepo(tx).Create(ctx, m)
	})
	require.NoError(t, err)

	list, err := NewSQLiteMaterialRepo(db.Conn).List(ctx, Filter{"course_id": {c.ID}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"http://x/a.pdf", "http://x/b.pdf"}, list[0].Files)
}

func TestMessageRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "ravi", models.RoleStudent)
	repo := NewSQLiteMessageRepo(db.Conn)
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	first := &models.Message{CorrelationID: "c-1", Room: "course-1", LectureID: "l1", SenderID: u.ID, SenderName: "Ravi", Text: "hi", CreatedAt: base.Add(time.Second)}
	second := &models.Message{Room: "course-1", LectureID: "l1", SenderID: u.ID, Text: "earlier", CreatedAt: base}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	dup := &models.Message{CorrelationID: "c-1", Room: "course-1", SenderID: u.ID, Text: "hi", CreatedAt: base}
	assert.ErrorIs(t, repo.Create(ctx, dup), pkg.ErrAlreadyExists)

	byCorr, err := repo.GetByCorrelation(ctx, "course-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byCorr.ID)

	list, err := repo.List(ctx, Filter{"room": {"course-1"}, "lecture_id": {"l1"}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "earlier", list[0].Text)

	now := time.Now()
	first.Text = "hello"
	first.EditedAt = &now
	require.NoError(t, repo.Update(ctx, first))
	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.NotNil(t, got.EditedAt)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), pkg.ErrNotFound)
}

func TestDoubtRepo_OrderedByTime(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "ravi", models.RoleStudent)
	repo := NewSQLiteDoubtRepo(db.Conn)

	require.NoError(t, repo.Create(ctx, &models.Doubt{Room: "c1", LectureID: "l1", SenderID: u.ID, Count: 1, Time: 2.0}))
	require.NoError(t, repo.Create(ctx, &models.Doubt{Room: "c1", LectureID: "l1", SenderID: u.ID, Count: 2, Time: 0.5}))

	list, err := repo.List(ctx, Filter{"lecture_id": {"l1"}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0.5, list[0].Time)
	assert.Equal(t, 2, list[0].Count)
}

func TestAttendanceRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "asha", models.RoleCoordinator)

	a := &models.Attendance{CoordinatorID: u.ID, LectureID: "l1", CourseID: "c1",
		Entries: []string{u.ID + "_1", u.ID + "_2"}, ClassStrength: 4, Percentage: 50}
	err := database.WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		return NewSQLiteAttendanceRepo(tx).Create(ctx, a)
	})
	require.NoError(t, err)

	list, err := NewSQLiteAttendanceRepo(db.Conn).List(ctx, Filter{"lecture_id": {"l1"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.Entries, list[0].Entries)
	assert.Equal(t, 50.0, list[0].Percentage)
}
