package httpserver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type stubAddressRepo struct {
	domain.AddressRepo
	byID map[uuid.UUID]*domain.Address
}

func (r *stubAddressRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	if a, ok := r.byID[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func TestResolveSavedAddress(t *testing.T) {
	owner := &domain.Customer{ID: uuid.New(), Email: "shopper@example.com"}
	other := &domain.Customer{ID: uuid.New(), Email: "other@example.com"}
	saved := &domain.Address{
		ID:         uuid.New(),
		CustomerID: owner.ID,
		FullName:   "Nico Moreyra",
		Line1:      "123 Calle Falsa",
		Line2:      "Apt 4",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62704",
		Country:    "US",
		Phone:      "+1 555 0100",
	}
	s := &Server{addresses: &stubAddressRepo{byID: map[uuid.UUID]*domain.Address{saved.ID: saved}}}

	got, err := s.resolveSavedAddress(context.Background(), owner, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nico Moreyra", got.FullName)
	assert.Equal(t, "123 Calle Falsa", got.Line1)
	assert.Equal(t, "Apt 4", got.Line2)
	assert.Equal(t, "62704", got.PostalCode)
	assert.Equal(t, owner.Email, got.Email, "snapshot carries the session email")

	// someone else's saved address is indistinguishable from a missing one
	_, err = s.resolveSavedAddress(context.Background(), other, saved.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.resolveSavedAddress(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
