package dummydb

import (
	"context"
	"sort"

	"github.com/kymoni/elimu/core/chat"
)

type chatRepository struct {
	db *interactionTable
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db.interaction}
}

func (repo *chatRepository) CreateInteraction(_ context.Context, in chat.Interaction) (chat.Interaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	in.ID = newPK()
	repo.db.table[in.ID] = &in
	return in, nil
}

func (repo *chatRepository) QueryRecentInteractions(_ context.Context, studentID string, limit int) ([]chat.Interaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	interactions := make([]chat.Interaction, 0)
	for _, in := range repo.db.table {
		if in.StudentID == studentID {
			interactions = append(interactions, *in)
		}
	}
	sort.Slice(interactions, func(i, j int) bool { return interactions[i].CreatedAt.After(interactions[j].CreatedAt) })
	if limit > 0 && len(interactions) > limit {
		interactions = interactions[:limit]
	}
	return interactions, nil
}
