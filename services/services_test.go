package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tulisin/apperr"
	"tulisin/auth"
	"tulisin/db"
	"tulisin/models"
	"tulisin/repository"
)

type testEnv struct {
	db       *db.DB
	auth     *AuthService
	sections *SectionService
	notes    *NoteService
	tokens   *auth.TokenManager
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	d, err := db.Open(ctx, db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, d.Migrate(ctx))
	t.Cleanup(func() { _ = d.Close() })

	tokens := auth.NewTokenManager("test-secret", 0)
	return &testEnv{
		db:       d,
		auth:     NewAuthService(d, tokens, bcrypt.MinCost),
		sections: NewSectionService(d),
		notes:    NewNoteService(d),
		tokens:   tokens,
	}
}

func (e *testEnv) register(t *testing.T, email string) *models.User {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{Name: "Test", Email: email, Password: "abcdef"})
	require.NoError(t, err)
	return &res.User
}

func (e *testEnv) countNotes(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM notes").Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	// Test case 1: email is normalized and a token is issued
	t.Run("Register", func(t *testing.T) {
		res, err := env.auth.Register(ctx, RegisterInput{Name: "  John  ", Email: "  John@Example.COM ", Password: "abcdef"})
		require.NoError(t, err)
		assert.Equal(t, "john@example.com", res.User.Email)
		assert.Equal(t, "John", res.User.Name)
		assert.NotEmpty(t, res.Token)
		assert.NotEmpty(t, res.ExpiresAt)

		p, err := env.tokens.Verify(res.Token)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, p.UserID)
		assert.Equal(t, "john@example.com", p.Email)
	})

	// Test case 2: second registration differing only in case conflicts
	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := env.auth.Register(ctx, RegisterInput{Name: "Other", Email: "JOHN@example.com", Password: "abcdef"})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		e, _ := apperr.From(err)
		assert.Equal(t, "Email already exists", e.Message)
	})

	t.Run("Login", func(t *testing.T) {
		res, err := env.auth.Login(ctx, LoginInput{Email: "John@example.com", Password: "abcdef"})
		require.NoError(t, err)
		assert.Equal(t, "john@example.com", res.User.Email)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		_, err := env.auth.Login(ctx, LoginInput{Email: "john@example.com", Password: "wrong-password"})
		e, ok := apperr.From(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeAuthentication, e.Code)
		assert.Equal(t, "Invalid email or password", e.Message)
	})

	t.Run("LoginUnknownEmail", func(t *testing.T) {
		_, err := env.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "abcdef"})
		e, ok := apperr.From(err)
		require.True(t, ok)
		assert.Equal(t, "Invalid email or password", e.Message)
	})

	t.Run("CurrentUser", func(t *testing.T) {
		res, err := env.auth.Login(ctx, LoginInput{Email: "john@example.com", Password: "abcdef"})
		require.NoError(t, err)

		u, err := env.auth.CurrentUser(ctx, res.User.ID)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, u.ID)

		_, err = env.auth.CurrentUser(ctx, uuid.NewString())
		e, ok := apperr.From(err)
		require.True(t, ok)
		assert.Equal(t, "User not found", e.Message)
		assert.Equal(t, apperr.CodeAuthentication, e.Code)
	})
}

func TestSectionService(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	section, err := env.sections.Create(ctx, alice.ID, "Work")
	require.NoError(t, err)
	assert.Equal(t, int64(0), section.NotesCount)

	t.Run("GetOtherUser", func(t *testing.T) {
		_, err := env.sections.Get(ctx, section.ID, bob.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		list, err := env.sections.List(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = env.sections.List(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Update", func(t *testing.T) {
		updated, err := env.sections.Update(ctx, section.ID, alice.ID, "Office")
		require.NoError(t, err)
		assert.Equal(t, "Office", updated.Name)

		_, err = env.sections.Update(ctx, section.ID, bob.ID, "Mine")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("DeleteCascadesNotes", func(t *testing.T) {
		doomed, err := env.sections.Create(ctx, alice.ID, "Doomed")
		require.NoError(t, err)
		_, err = env.notes.Create(ctx, alice.ID, CreateNoteInput{Title: strPtr("x"), SectionID: doomed.ID})
		require.NoError(t, err)
		before := env.countNotes(t)

		require.NoError(t, env.sections.Delete(ctx, doomed.ID, alice.ID))
		assert.Equal(t, before-1, env.countNotes(t))

		_, err = env.sections.Get(ctx, doomed.ID, alice.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := env.sections.Delete(ctx, uuid.NewString(), alice.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("DeleteOtherUserKeepsNotes", func(t *testing.T) {
		_, err := env.notes.Create(ctx, alice.ID, CreateNoteInput{Title: strPtr("keep"), SectionID: section.ID})
		require.NoError(t, err)
		before := env.countNotes(t)

		err = env.sections.Delete(ctx, section.ID, bob.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, before, env.countNotes(t))
	})
}

func TestNoteService(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	work, err := env.sections.Create(ctx, alice.ID, "Work")
	require.NoError(t, err)
	ideas, err := env.sections.Create(ctx, alice.ID, "Ideas")
	require.NoError(t, err)
	bobs, err := env.sections.Create(ctx, bob.ID, "Bob's")
	require.NoError(t, err)

	// Test case 1: creating into someone else's section writes nothing
	t.Run("CreateInForeignSection", func(t *testing.T) {
		before := env.countNotes(t)
		_, err := env.notes.Create(ctx, alice.ID, CreateNoteInput{Title: strPtr("sneaky"), SectionID: bobs.ID})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		e, _ := apperr.From(err)
		assert.Equal(t, "Section not found", e.Message)
		assert.Equal(t, before, env.countNotes(t))
	})

	note, err := env.notes.Create(ctx, alice.ID, CreateNoteInput{Title: strPtr("T"), Content: strPtr("body"), SectionID: work.ID})
	require.NoError(t, err)

	t.Run("Get", func(t *testing.T) {
		got, err := env.notes.Get(ctx, note.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "body", got.Content)

		_, err = env.notes.Get(ctx, note.ID, bob.ID)
		e, ok := apperr.From(err)
		require.True(t, ok)
		assert.Equal(t, "Note not found", e.Message)
	})

	// Test case 2: limit and offset are clamped
	t.Run("ListClamps", func(t *testing.T) {
		page, err := env.notes.List(ctx, alice.ID, work.ID, 0, -5)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Limit)
		assert.Equal(t, 0, page.Offset)
		assert.Equal(t, int64(1), page.Total)

		page, err = env.notes.List(ctx, alice.ID, work.ID, 500, 0)
		require.NoError(t, err)
		assert.Equal(t, 100, page.Limit)
	})

	t.Run("ListForeignSection", func(t *testing.T) {
		_, err := env.notes.List(ctx, alice.ID, bobs.ID, 10, 0)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	// Test case 3: empty update leaves the row untouched
	t.Run("UpdateNothing", func(t *testing.T) {
		got, err := env.notes.Update(ctx, note.ID, alice.ID, repository.NoteChanges{})
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(note.UpdatedAt))
		assert.Equal(t, "body", got.Content)
	})

	t.Run("UpdateIntoForeignSection", func(t *testing.T) {
		_, err := env.notes.Update(ctx, note.ID, alice.ID, repository.NoteChanges{
			Title:     strPtr("moved"),
			SectionID: &bobs.ID,
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		got, err := env.notes.Get(ctx, note.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "T", got.Title)
		assert.Equal(t, work.ID, got.SectionID)
	})

	t.Run("UpdateMoves", func(t *testing.T) {
		got, err := env.notes.Update(ctx, note.ID, alice.ID, repository.NoteChanges{SectionID: &ideas.ID})
		require.NoError(t, err)
		assert.Equal(t, ideas.ID, got.SectionID)
	})

	t.Run("UpdateOtherUsersNote", func(t *testing.T) {
		_, err := env.notes.Update(ctx, note.ID, bob.ID, repository.NoteChanges{Title: strPtr("mine")})
		e, ok := apperr.From(err)
		require.True(t, ok)
		assert.Equal(t, "Note not found", e.Message)
	})

	// Test case 4: deleting twice reports not found
	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, env.notes.Delete(ctx, note.ID, alice.ID))

		err := env.notes.Delete(ctx, note.ID, alice.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		err = env.notes.Delete(ctx, uuid.NewString(), alice.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
