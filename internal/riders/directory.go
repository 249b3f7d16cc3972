package riders

import (
	"context"
	"fmt"

	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
)

type activeUserLister interface {
	ListActiveInArea(ctx context.Context, role enums.UserRole, area string) ([]models.User, error)
}

// Directory answers which riders currently serve an area.
type Directory struct {
	users activeUserLister
}

func NewDirectory(repo activeUserLister) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Directory{users: repo}, nil
}

// ListActive returns the active riders of area ordered by email. Position k
// names the same rider for as long as the set does not change. Riders whose
// phone cannot be written onto an order item are left out. An empty slice is
// a valid answer.
func (d *Directory) ListActive(ctx context.Context, area string) ([]users.Rider, error) {
	rows, err := d.users.ListActiveInArea(ctx, enums.UserRoleRider, users.NormalizeArea(area))
	if err != nil {
		return nil, err
	}
	riders := make([]users.Rider, 0, len(rows))
	for i := range rows {
		if !models.BindableRiderPhone(rows[i].Phone) {
			continue
		}
		rider, err := users.RiderFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		riders = append(riders, rider)
	}
	return riders, nil
}
