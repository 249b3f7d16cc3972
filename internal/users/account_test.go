package users

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

func TestAccountFromModelSelectsVariant(t *testing.T) {
	base := models.User{ID: uuid.New(), Email: "a@b.c", Phone: "1", Area: "uptown", IsActive: true}

	cases := map[enums.UserRole]any{
		enums.UserRoleCustomer: Customer{},
		enums.UserRoleSeller:   Seller{},
		enums.UserRoleRider:    Rider{},
	}
	for role, want := range cases {
		u := base
		u.Role = role
		account, err := AccountFromModel(&u)
		require.NoError(t, err)
		assert.IsType(t, want, account)
		assert.Equal(t, role, account.Role())
		assert.Equal(t, "a@b.c", account.ContactInfo().Email)
	}

	base.Role = enums.UserRole("admin")
	_, err := AccountFromModel(&base)
	assert.Error(t, err)
}

func TestRiderFromModelRejectsOtherRoles(t *testing.T) {
	seller := &models.User{ID: uuid.New(), Role: enums.UserRoleSeller, Area: "uptown"}
	_, err := RiderFromModel(seller)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	s, err := SellerFromModel(seller)
	require.NoError(t, err)
	assert.Equal(t, "uptown", s.Area)

	rider := &models.User{ID: uuid.New(), Role: enums.UserRoleRider, Phone: "555", IsActive: true}
	r, err := RiderFromModel(rider)
	require.NoError(t, err)
	assert.True(t, r.Active)
	assert.Equal(t, "555", r.Phone)
}
