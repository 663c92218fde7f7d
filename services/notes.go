// Package services applies ownership rules and transaction boundaries on top
// of the repositories. Reads run on a checked-out client, writes in a
// transaction; business failures come back as *apperr.Error.
package services

import (
	"context"

	"tulisin/apperr"
	"tulisin/db"
	"tulisin/models"
	"tulisin/repository"
)

const (
	DefaultNotesLimit = 50
	MaxNotesLimit     = 100
)

type NoteService struct {
	db *db.DB
}

func NewNoteService(d *db.DB) *NoteService {
	return &NoteService{db: d}
}

type CreateNoteInput struct {
	Title     *string
	Content   *string
	SectionID string
}

// List returns one page of a section's notes. limit is clamped to
// [1, MaxNotesLimit] and offset to >= 0.
func (s *NoteService) List(ctx context.Context, userID, sectionID string, limit, offset int) (*models.NotesPage, error) {
	params := repository.ListNotesParams{
		UserID:    userID,
		SectionID: sectionID,
		Limit:     min(max(limit, 1), MaxNotesLimit),
		Offset:    max(offset, 0),
	}

	return db.WithClientResult(ctx, s.db, func(c *db.Client) (*models.NotesPage, error) {
		owned, err := repository.SectionOwnedBy(ctx, c, sectionID, userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, apperr.NotFoundResource("Section", "")
		}

		notes, total, err := repository.ListNotes(ctx, c, params)
		if err != nil {
			return nil, err
		}
		return &models.NotesPage{
			Notes:  notes,
			Total:  total,
			Limit:  params.Limit,
			Offset: params.Offset,
		}, nil
	})
}

func (s *NoteService) Get(ctx context.Context, id, userID string) (*models.Note, error) {
	return db.WithClientResult(ctx, s.db, func(c *db.Client) (*models.Note, error) {
		note, err := repository.FindNote(ctx, c, id, userID)
		if err != nil {
			return nil, err
		}
		if note == nil {
			return nil, apperr.NotFoundResource("Note", "")
		}
		return note, nil
	})
}

// Create verifies the target section belongs to the caller and inserts the
// note in the same transaction.
func (s *NoteService) Create(ctx context.Context, userID string, in CreateNoteInput) (*models.Note, error) {
	return db.InTxResult(ctx, s.db, func(tx *db.Tx) (*models.Note, error) {
		if err := requireSection(ctx, tx, in.SectionID, userID); err != nil {
			return nil, err
		}
		return repository.CreateNote(ctx, tx, repository.CreateNoteParams{
			Title:     in.Title,
			Content:   in.Content,
			SectionID: in.SectionID,
			UserID:    userID,
		})
	})
}

// Update applies the supplied fields. Moving a note re-checks ownership of
// the destination section first.
func (s *NoteService) Update(ctx context.Context, id, userID string, changes repository.NoteChanges) (*models.Note, error) {
	return db.InTxResult(ctx, s.db, func(tx *db.Tx) (*models.Note, error) {
		if changes.SectionID != nil {
			if err := requireSection(ctx, tx, *changes.SectionID, userID); err != nil {
				return nil, err
			}
		}

		note, err := repository.UpdateNote(ctx, tx, id, userID, changes)
		if err != nil {
			return nil, err
		}
		if note == nil {
			return nil, apperr.NotFoundResource("Note", "")
		}
		return note, nil
	})
}

func (s *NoteService) Delete(ctx context.Context, id, userID string) error {
	return s.db.InTx(ctx, func(tx *db.Tx) error {
		deleted, err := repository.DeleteNote(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFoundResource("Note", "")
		}
		return nil
	})
}

func requireSection(ctx context.Context, q db.Querier, sectionID, userID string) error {
	owned, err := repository.SectionOwnedBy(ctx, q, sectionID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return apperr.NotFoundResource("Section", "")
	}
	return nil
}
