package handler

import (
	"encoding/json"
	"strings"

	"registro/internal/registration/models"
)

// RegisterRequest is the body of POST /employees. The Spanish keys nombre,
// correo and telefono are accepted as aliases; the English key wins when both
// carry a value.
type RegisterRequest struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (r *RegisterRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		UUID     string `json:"uuid"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Nombre   string `json:"nombre"`
		Correo   string `json:"correo"`
		Telefono string `json:"telefono"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.UUID = raw.UUID
	r.Name = firstNonBlank(raw.Name, raw.Nombre)
	r.Email = firstNonBlank(raw.Email, raw.Correo)
	r.Phone = firstNonBlank(raw.Phone, raw.Telefono)
	return nil
}

// Input converts the request for the service, which owns validation.
func (r *RegisterRequest) Input() models.Input {
	return models.Input{UUID: r.UUID, Name: r.Name, Email: r.Email, Phone: r.Phone}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
