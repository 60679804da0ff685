package domain

import (
	"github.com/google/uuid"

	dErrors "registro/pkg/domain-errors"
)

// RegistrationID identifies one registration record. It is assigned once and
// never changes.
type RegistrationID uuid.UUID

// NewRegistrationID returns a fresh random ID.
func NewRegistrationID() RegistrationID {
	return RegistrationID(uuid.New())
}

// ParseRegistrationID parses s at a trust boundary. Empty, malformed and nil
// UUIDs are rejected with CodeInvalidInput.
func ParseRegistrationID(s string) (RegistrationID, error) {
	if s == "" {
		return RegistrationID{}, dErrors.New(dErrors.CodeInvalidInput, "uuid is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return RegistrationID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "uuid must be a valid UUID")
	}
	if RegistrationID(parsed).IsNil() {
		return RegistrationID{}, dErrors.New(dErrors.CodeInvalidInput, "uuid must not be the nil UUID")
	}
	return RegistrationID(parsed), nil
}

func (id RegistrationID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero value.
func (id RegistrationID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id RegistrationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *RegistrationID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = RegistrationID(u)
	return nil
}
