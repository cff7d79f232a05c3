package usecase

import (
	"context"

	"github.com/iho/creditledger/internal/domain"
)

// EntryUseCase handles ledger entry listing.
type EntryUseCase struct {
	entryRepo LedgerEntryRepository
	userRepo  UserRepository
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(entryRepo LedgerEntryRepository, userRepo UserRepository) *EntryUseCase {
	return &EntryUseCase{
		entryRepo: entryRepo,
		userRepo:  userRepo,
	}
}

// GetEntriesByUserInput represents input for listing entries.
type GetEntriesByUserInput struct {
	UserID string
	Limit  int
	Offset int
}

// GetEntriesByUser lists a user's entries, newest first.
func (uc *EntryUseCase) GetEntriesByUser(ctx context.Context, input GetEntriesByUserInput) ([]*domain.LedgerEntry, error) {
	if err := domain.ValidateUserID(input.UserID); err != nil {
		return nil, err
	}

	if input.Limit <= 0 {
		input.Limit = DefaultEntriesPageSize
	}

	if input.Limit > MaxEntriesPageSize {
		input.Limit = MaxEntriesPageSize
	}

	if input.Offset < 0 {
		input.Offset = 0
	}

	if _, err := uc.userRepo.GetCachedBalance(ctx, input.UserID); err != nil {
		return nil, err
	}

	return uc.entryRepo.ListPage(ctx, input.UserID, input.Limit, input.Offset)
}

// GetCachedBalance returns the user's cached balance as stored.
func (uc *EntryUseCase) GetCachedBalance(ctx context.Context, userID string) (*domain.CachedBalance, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	return uc.userRepo.GetCachedBalance(ctx, userID)
}
