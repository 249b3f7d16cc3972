package users

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// Contact holds the fields every account variant shares.
type Contact struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Phone   string    `json:"phone"`
}

// Account is implemented by Customer, Seller and Rider.
type Account interface {
	Role() enums.UserRole
	ContactInfo() Contact
}

type Customer struct {
	Contact
}

type Seller struct {
	Contact
	Area string `json:"area"`
}

type Rider struct {
	Contact
	Area   string `json:"area"`
	Active bool   `json:"active"`
}

func (Customer) Role() enums.UserRole { return enums.UserRoleCustomer }
func (Seller) Role() enums.UserRole   { return enums.UserRoleSeller }
func (Rider) Role() enums.UserRole    { return enums.UserRoleRider }

func (c Customer) ContactInfo() Contact { return c.Contact }
func (s Seller) ContactInfo() Contact   { return s.Contact }
func (r Rider) ContactInfo() Contact    { return r.Contact }

// AccountFromModel returns the variant selected by the row's role.
func AccountFromModel(u *models.User) (Account, error) {
	if u == nil {
		return nil, fmt.Errorf("user is nil")
	}
	contact := Contact{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Address: u.Address,
		Phone:   u.Phone,
	}
	switch u.Role {
	case enums.UserRoleCustomer:
		return Customer{Contact: contact}, nil
	case enums.UserRoleSeller:
		return Seller{Contact: contact, Area: u.Area}, nil
	case enums.UserRoleRider:
		return Rider{Contact: contact, Area: u.Area, Active: u.IsActive}, nil
	default:
		return nil, fmt.Errorf("unknown user role %q", u.Role)
	}
}

// SellerFromModel narrows u to a Seller or reports NOT_FOUND.
func SellerFromModel(u *models.User) (Seller, error) {
	account, err := AccountFromModel(u)
	if err != nil {
		return Seller{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "seller not found")
	}
	seller, ok := account.(Seller)
	if !ok {
		return Seller{}, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	return seller, nil
}

// RiderFromModel narrows u to a Rider or reports NOT_FOUND.
func RiderFromModel(u *models.User) (Rider, error) {
	account, err := AccountFromModel(u)
	if err != nil {
		return Rider{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "rider not found")
	}
	rider, ok := account.(Rider)
	if !ok {
		return Rider{}, pkgerrors.New(pkgerrors.CodeNotFound, "rider not found")
	}
	return rider, nil
}
