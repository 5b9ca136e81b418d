package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

// PlaceholderName is shown when the identity lookup fails. Resolution is
// display-only and never blocks a state transition.
const PlaceholderName = "unknown"

// StoreResolver resolves identities from the user table.
type StoreResolver struct {
	Store store.DataStore
}

var _ core.IdentityResolver = StoreResolver{}

func (r StoreResolver) Resolve(ctx context.Context, id domain.UserID) core.Identity {
	u, err := r.Store.GetUser(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.identity").Str("user", string(id)).Msg("identity lookup failed, using placeholder")
		return core.Identity{Name: PlaceholderName}
	}
	return core.Identity{Name: u.Name, Role: u.Role}
}
