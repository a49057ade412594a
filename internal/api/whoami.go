package api

import (
	"context"
	"fmt"

	"github.com/nhle/boletin/internal/model"
)

// WhoAmIPath is the identity endpoint, relative to the API root.
const WhoAmIPath = "/auth/whoami/"

// WhoAmI returns the authenticated user. The preview role travels with the
// request, so a super-user previewing a role is reported with that role's
// groups.
func (c *Client) WhoAmI(ctx context.Context) (model.Identity, error) {
	var identity model.Identity
	if err := c.GetJSON(ctx, WhoAmIPath, &identity); err != nil {
		return model.Identity{}, fmt.Errorf("fetching identity: %w", err)
	}
	return identity, nil
}
