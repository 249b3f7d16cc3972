package riders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
)

type fixture struct {
	repo      *users.Repository
	directory *Directory
	svc       Service
	conn      *db.Client
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	repo := users.NewRepository(gdb)
	client := db.NewFromConn(gdb, 0)
	emitter := outbox.NewService(outbox.NewRepository(gdb), logger.Nop())

	directory, err := NewDirectory(repo)
	require.NoError(t, err)
	svc, err := NewService(repo, UsersAvailabilityWriter(), client, emitter, 0, nil)
	require.NoError(t, err)
	return fixture{repo: repo, directory: directory, svc: svc, conn: client}
}

func (f fixture) add(t *testing.T, email, area string, role enums.UserRole) {
	t.Helper()
	_, err := f.repo.Create(context.Background(), users.CreateUserDTO{
		Email: email, PasswordHash: "h", Name: email, Phone: "tel:" + email, Area: area, Role: role,
	})
	require.NoError(t, err)
}

func TestDirectoryListsActiveRidersByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "r2@example.com", "uptown", enums.UserRoleRider)
	f.add(t, "r1@example.com", "uptown", enums.UserRoleRider)
	f.add(t, "r3@example.com", "downtown", enums.UserRoleRider)
	f.add(t, "seller@example.com", "uptown", enums.UserRoleSeller)

	riders, err := f.directory.ListActive(ctx, "uptown")
	require.NoError(t, err)
	require.Len(t, riders, 2)
	assert.Equal(t, "r1@example.com", riders[0].Email)
	assert.Equal(t, "tel:r1@example.com", riders[0].Phone)
	assert.True(t, riders[0].Active)

	empty, err := f.directory.ListActive(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDirectorySkipsRidersWithoutUsablePhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "r2@example.com", "uptown", enums.UserRoleRider)
	for email, phone := range map[string]string{
		"r0@example.com": models.RiderUnassigned,
		"r1@example.com": "  ",
	} {
		_, err := f.repo.Create(ctx, users.CreateUserDTO{
			Email: email, PasswordHash: "h", Name: email, Phone: phone, Area: "uptown", Role: enums.UserRoleRider,
		})
		require.NoError(t, err)
	}

	riders, err := f.directory.ListActive(ctx, "uptown")
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, "r2@example.com", riders[0].Email)
}

func TestSetActiveStatusRemovesRiderFromDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "r1@example.com", "uptown", enums.UserRoleRider)
	f.add(t, "r2@example.com", "uptown", enums.UserRoleRider)

	dto, err := f.svc.SetActiveStatus(ctx, "R1@example.com", false)
	require.NoError(t, err)
	assert.False(t, dto.IsActive)

	riders, err := f.directory.ListActive(ctx, "uptown")
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, "r2@example.com", riders[0].Email)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventRiderAvailabilityChanged, events[0].EventType)
	assert.Equal(t, dto.ID, events[0].AggregateID)

	// same value again is a no-op
	_, err = f.svc.SetActiveStatus(ctx, "r1@example.com", false)
	require.NoError(t, err)
	require.NoError(t, f.conn.DB().Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestSetActiveStatusRequiresRider(t *testing.T) {
	f := newFixture(t)
	f.add(t, "seller@example.com", "uptown", enums.UserRoleSeller)

	_, err := f.svc.SetActiveStatus(context.Background(), "seller@example.com", false)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.SetActiveStatus(context.Background(), "missing@example.com", true)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
