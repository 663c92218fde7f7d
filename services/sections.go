package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"tulisin/apperr"
	"tulisin/db"
	"tulisin/models"
	"tulisin/repository"
)

type SectionService struct {
	db *db.DB
}

func NewSectionService(d *db.DB) *SectionService {
	return &SectionService{db: d}
}

func (s *SectionService) List(ctx context.Context, userID string) ([]models.Section, error) {
	return db.WithClientResult(ctx, s.db, func(c *db.Client) ([]models.Section, error) {
		return repository.ListSections(ctx, c, userID)
	})
}

func (s *SectionService) Get(ctx context.Context, id, userID string) (*models.Section, error) {
	return db.WithClientResult(ctx, s.db, func(c *db.Client) (*models.Section, error) {
		section, err := repository.FindSection(ctx, c, id, userID)
		if err != nil {
			return nil, err
		}
		if section == nil {
			return nil, apperr.NotFoundResource("Section", "")
		}
		return section, nil
	})
}

func (s *SectionService) Create(ctx context.Context, userID, name string) (*models.Section, error) {
	return db.InTxResult(ctx, s.db, func(tx *db.Tx) (*models.Section, error) {
		return repository.CreateSection(ctx, tx, repository.CreateSectionParams{Name: name, UserID: userID})
	})
}

func (s *SectionService) Update(ctx context.Context, id, userID, name string) (*models.Section, error) {
	return db.InTxResult(ctx, s.db, func(tx *db.Tx) (*models.Section, error) {
		section, err := repository.RenameSection(ctx, tx, id, userID, name)
		if err != nil {
			return nil, err
		}
		if section == nil {
			return nil, apperr.NotFoundResource("Section", "")
		}
		return section, nil
	})
}

// Delete removes the section together with its notes.
func (s *SectionService) Delete(ctx context.Context, id, userID string) error {
	return s.db.InTx(ctx, func(tx *db.Tx) error {
		removed, err := repository.DeleteSectionNotes(ctx, tx, id, userID)
		if err != nil {
			return err
		}

		deleted, err := repository.DeleteSection(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFoundResource("Section", "")
		}

		if removed > 0 {
			log.Debug().Str("section_id", id).Int64("notes", removed).Msg("Deleted section notes")
		}
		return nil
	})
}
