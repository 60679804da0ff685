package handler

import (
	"time"

	"registro/internal/registration/models"
)

// RegistrationResponse is the canonical wire shape of one record.
type RegistrationResponse struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	RegistrationResponse
	ServerAddress string `json:"server_address"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func toRegistrationResponse(reg *models.Registration) RegistrationResponse {
	return RegistrationResponse{
		UUID:      reg.ID.String(),
		Name:      reg.Name,
		Email:     reg.Email,
		Phone:     reg.Phone,
		CreatedAt: reg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRegisterResponse(result *models.RegisterResult) RegisterResponse {
	return RegisterResponse{
		RegistrationResponse: toRegistrationResponse(result.Registration),
		ServerAddress:        result.ServerAddress,
	}
}

func toListResponse(regs []*models.Registration) []RegistrationResponse {
	out := make([]RegistrationResponse, len(regs))
	for i, reg := range regs {
		out[i] = toRegistrationResponse(reg)
	}
	return out
}
