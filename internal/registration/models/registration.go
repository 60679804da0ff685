package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "registro/pkg/domain"
	dErrors "registro/pkg/domain-errors"
)

const maxFieldLength = 255

// Registration is one persisted employee/contact record.
//
// Invariants:
//   - ID is unique and never changes
//   - Name, Email and Phone are non-blank and kept as received
//   - CreatedAt is assigned by the store at insert time
type Registration struct {
	ID        id.RegistrationID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Input is the unvalidated registration payload as received from a client.
// UUID is optional; an empty value means the server assigns one.
type Input struct {
	UUID  string
	Name  string
	Email string
	Phone string
}

type field struct {
	name  string
	value string
}

func (in Input) fields() []field {
	return []field{{"name", in.Name}, {"email", in.Email}, {"phone", in.Phone}}
}

// Validate reports every missing required field in one invalid_input error.
// A field that is only whitespace counts as missing. Values are checked but
// never rewritten.
func (in Input) Validate() error {
	var missing []string
	for _, f := range in.fields() {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeInvalidInput, strings.Join(missing, ", ")+" required")
	}

	for _, f := range in.fields() {
		if utf8.RuneCountInString(f.value) > maxFieldLength {
			return dErrors.New(dErrors.CodeInvalidInput, f.name+" must be at most 255 characters")
		}
	}
	return nil
}

// NewRegistration validates in and builds a record ready for insert. Name,
// email and phone are stored exactly as received. A client-supplied UUID must
// parse as a non-nil UUID.
func NewRegistration(in Input) (*Registration, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	regID := id.NewRegistrationID()
	if raw := strings.TrimSpace(in.UUID); raw != "" {
		parsed, err := id.ParseRegistrationID(raw)
		if err != nil {
			return nil, err
		}
		regID = parsed
	}

	return &Registration{
		ID:    regID,
		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
	}, nil
}

// RegisterResult is what a successful registration hands back to transport.
type RegisterResult struct {
	Registration  *Registration
	ServerAddress string
}
