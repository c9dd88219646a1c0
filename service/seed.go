package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/models"
	"github.com/Skryldev/itemstore/repo"
)

// DefaultSeedCount is how many items a seed run inserts when not told otherwise.
const DefaultSeedCount = 25

var (
	sampleNames = []string{
		"Buy groceries", "Call mom", "Pay the rent",
		"Go to the gym", "Read a book", "Write some code",
		"Prepare the report", "Tidy the room", "Fix the computer",
		"Book a doctor visit", "Buy a present", "Practice English",
	}
	sampleDescriptions = []string{
		"Important this week", "Do not forget", "Urgent",
		"Self-improvement", "Work", "Personal",
		"Family", "Education", "Health", "Finances",
	}
)

// SeedSampleItems fills an empty table with n demo items inside a single
// serializable transaction, so two concurrent seeders cannot both see an
// empty table and insert. Every second item is edited once so the list view
// shows a mix of fresh and updated rows. It returns how many items were
// inserted; a non-empty table is left alone.
func (s *ItemService) SeedSampleItems(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	inserted := 0
	err := s.db.ExecTx(ctx, func(tx *db.Tx) error {
		items := repo.NewItemRepo(tx, s.repoOpts...)

		count, err := items.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			s.logger.InfoContext(ctx, "seed: table not empty, skipping", slog.Int64("count", count))
			return nil
		}

		params := make([]models.CreateItemParams, n)
		for i := range params {
			params[i] = models.CreateItemParams{
				Name:        fmt.Sprintf("%s #%d", sampleNames[(i+1)%len(sampleNames)], i+1),
				Description: sampleDescriptions[((i+1)*7)%len(sampleDescriptions)],
			}
		}
		created, err := items.CreateMany(ctx, params)
		if err != nil {
			return fmt.Errorf("seed items: %w", err)
		}

		for i, item := range created {
			if (i+1)%2 != 0 {
				continue
			}
			_, err = items.Update(ctx, models.UpdateItemParams{
				ID:          item.ID,
				Name:        item.Name,
				Description: item.Description + " (updated)",
			})
			if err != nil {
				return fmt.Errorf("seed update %d: %w", i+1, err)
			}
		}
		inserted = len(created)
		return nil
	}, db.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("service/seed: %w", err)
	}
	if inserted > 0 {
		s.logger.InfoContext(ctx, "seed: sample items created", slog.Int("count", inserted))
	}
	return inserted, nil
}
