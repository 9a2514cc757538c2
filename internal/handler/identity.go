package handler

import (
	"context"
	"net/http"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// IdentityResolver looks up the uploader identity of a signed-in user.
// *service.AuthService implements it.
type IdentityResolver interface {
	Identity(ctx context.Context, userID string) (model.Identity, error)
}

// currentIdentity resolves the identity behind the request's session.
func currentIdentity(r *http.Request, identities IdentityResolver) (model.Identity, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return model.Identity{}, apperror.Unauthenticated("sign in to continue")
	}
	id, err := identities.Identity(r.Context(), userID)
	if err != nil {
		return model.Identity{}, err
	}
	return id, nil
}
