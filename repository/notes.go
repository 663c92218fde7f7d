package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tulisin/db"
	"tulisin/models"
)

const noteColumns = "id, title, content, section_id, user_id, created_at, updated_at"

type ListNotesParams struct {
	UserID    string
	SectionID string
	Limit     int
	Offset    int
}

type CreateNoteParams struct {
	Title     *string
	Content   *string
	SectionID string
	UserID    string
}

// NoteChanges lists the mutable note fields; nil means "leave as is".
type NoteChanges struct {
	Title     *string
	Content   *string
	SectionID *string
}

func (c NoteChanges) IsEmpty() bool {
	return c.Title == nil && c.Content == nil && c.SectionID == nil
}

// assignments yields the SET clauses and their arguments, always in the
// order title, content, section_id.
func (c NoteChanges) assignments() ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if c.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *c.Title)
	}
	if c.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *c.Content)
	}
	if c.SectionID != nil {
		sets = append(sets, "section_id = ?")
		args = append(args, *c.SectionID)
	}
	return sets, args
}

// ListNotes returns one page of the section's notes newest first, plus the
// total number of notes matching the filter.
func ListNotes(ctx context.Context, q db.Querier, p ListNotesParams) ([]models.NoteMetadata, int64, error) {
	var total int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notes
		WHERE user_id = ? AND section_id = ?
	`, p.UserID, p.SectionID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, title, section_id, user_id, created_at, updated_at
		FROM notes
		WHERE user_id = ? AND section_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, p.UserID, p.SectionID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []models.NoteMetadata{}
	for rows.Next() {
		var n models.NoteMetadata
		if err := rows.Scan(&n.ID, &n.Title, &n.SectionID, &n.UserID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func FindNote(ctx context.Context, q db.Querier, id, userID string) (*models.Note, error) {
	n := &models.Note{}
	err := q.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ? AND user_id = ?", id, userID).
		Scan(&n.ID, &n.Title, &n.Content, &n.SectionID, &n.UserID, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

// CreateNote inserts a note. Missing title or content are stored as "".
func CreateNote(ctx context.Context, q db.Querier, p CreateNoteParams) (*models.Note, error) {
	ts := now()
	n := &models.Note{
		ID:        uuid.NewString(),
		Title:     deref(p.Title),
		Content:   deref(p.Content),
		SectionID: p.SectionID,
		UserID:    p.UserID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, section_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Content, n.SectionID, n.UserID, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

// UpdateNote applies only the supplied fields. With no fields it returns the
// current row without writing, so updated_at stays put.
func UpdateNote(ctx context.Context, q db.Querier, id, userID string, changes NoteChanges) (*models.Note, error) {
	if changes.IsEmpty() {
		return FindNote(ctx, q, id, userID)
	}

	sets, args := changes.assignments()
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id, userID)

	_, err := q.ExecContext(ctx,
		"UPDATE notes SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return FindNote(ctx, q, id, userID)
}

func DeleteNote(ctx context.Context, q db.Querier, id, userID string) (bool, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM notes WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteSectionNotes removes every note the user keeps in the section.
func DeleteSectionNotes(ctx context.Context, q db.Querier, sectionID, userID string) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM notes WHERE section_id = ? AND user_id = ?", sectionID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete section notes: %w", err)
	}
	return res.RowsAffected()
}

// SectionOwnedBy reports whether the section exists and belongs to the user.
func SectionOwnedBy(ctx context.Context, q db.Querier, sectionID, userID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM sections WHERE id = ? AND user_id = ? LIMIT 1", sectionID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify section ownership: %w", err)
	}
	return true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
