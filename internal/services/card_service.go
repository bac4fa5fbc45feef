package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ccexpense/internal/core"
)

// CardService manages credit cards. Deleting a card never cascades to
// transactions; dangling cardId references are tolerated.
type CardService struct {
	store CardStore
}

func NewCardService(store CardStore) *CardService {
	return &CardService{store: store}
}

func (s *CardService) Create(ctx context.Context, card core.CreditCard) (core.CreditCard, error) {
	if err := card.Validate(); err != nil {
		return core.CreditCard{}, fmt.Errorf("validate card: %w", err)
	}
	card.ID = uuid.NewString()
	if err := s.store.CreateCard(ctx, card); err != nil {
		return core.CreditCard{}, err
	}
	return card, nil
}

func (s *CardService) List(ctx context.Context) ([]core.CreditCard, error) {
	return s.store.ListCards(ctx)
}

func (s *CardService) Update(ctx context.Context, card core.CreditCard) (core.CreditCard, error) {
	if err := card.Validate(); err != nil {
		return core.CreditCard{}, fmt.Errorf("validate card: %w", err)
	}
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return core.CreditCard{}, err
	}
	return card, nil
}

func (s *CardService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteCard(ctx, id)
}
