package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tulisin/db"
	"tulisin/models"
)

const sectionSelect = `
	SELECT s.id, s.name, s.user_id, s.created_at, s.updated_at, COUNT(n.id) AS notes_count
	FROM sections s
	LEFT JOIN notes n ON n.section_id = s.id
`

const sectionGroupBy = `GROUP BY s.id, s.name, s.user_id, s.created_at, s.updated_at`

type CreateSectionParams struct {
	Name   string
	UserID string
}

// ListSections returns the user's sections newest first, each with its live note count.
func ListSections(ctx context.Context, q db.Querier, userID string) ([]models.Section, error) {
	rows, err := q.QueryContext(ctx, sectionSelect+`
		WHERE s.user_id = ?
		`+sectionGroupBy+`
		ORDER BY s.created_at DESC, s.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	sections := []models.Section{}
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.ID, &s.Name, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.NotesCount); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func FindSection(ctx context.Context, q db.Querier, id, userID string) (*models.Section, error) {
	s := &models.Section{}
	err := q.QueryRowContext(ctx, sectionSelect+`
		WHERE s.id = ? AND s.user_id = ?
		`+sectionGroupBy, id, userID).
		Scan(&s.ID, &s.Name, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.NotesCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return s, nil
}

// CreateSection inserts a section; a new section has no notes.
func CreateSection(ctx context.Context, q db.Querier, p CreateSectionParams) (*models.Section, error) {
	ts := now()
	s := &models.Section{
		ID:        uuid.NewString(),
		Name:      p.Name,
		UserID:    p.UserID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO sections (id, name, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.UserID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}
	return s, nil
}

// RenameSection changes the name only and returns the row with a fresh note count.
func RenameSection(ctx context.Context, q db.Querier, id, userID, name string) (*models.Section, error) {
	_, err := q.ExecContext(ctx, `
		UPDATE sections SET name = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, name, now(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}
	// affected-row counts differ between drivers for no-op updates, so re-read
	return FindSection(ctx, q, id, userID)
}

func DeleteSection(ctx context.Context, q db.Querier, id, userID string) (bool, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM sections WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
