package users

import (
	"strings"

	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
)

// RiderPhoneIndex is the partial unique index over riders' phones.
const RiderPhoneIndex = "idx_users_rider_phone"

// NormalizePhone trims a phone number. Phones are stored this way.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// CheckPhone rejects phones that could not identify a rider on an order item.
// The rule applies to every role so an account keeps a usable contact if it
// ever becomes a rider.
func CheckPhone(phone string) error {
	if models.BindableRiderPhone(phone) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "phone is required").
		WithDetails(map[string]any{"field": "phone"})
}

// IsRiderPhoneTaken reports whether err came from another rider already
// holding the phone. sqlite names the column, postgres names the index.
func IsRiderPhoneTaken(err error) bool {
	if !db.IsUniqueViolation(err, "") {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, RiderPhoneIndex) || strings.Contains(msg, "users.phone")
}
