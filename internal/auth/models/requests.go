package models

import (
	"lockgate/pkg/platform/validation"
)

// Request DTOs. Each is normalized then validated by httputil.DecodeAndPrepare.

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *LoginRequest) Normalize() { r.Email = NormalizeEmail(r.Email) }
func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,notblank,max=2048"`
}

func (r *RefreshRequest) Validate() error {
	return validation.Validate(r)
}

type ResetRequestRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (r *ResetRequestRequest) Normalize() { r.Email = NormalizeEmail(r.Email) }
func (r *ResetRequestRequest) Validate() error {
	return validation.Validate(r)
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,notblank,max=256"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func (r *ResetPasswordRequest) Validate() error {
	return validation.Validate(r)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	return validation.Validate(r)
}

type CreateAccountRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"oneof=user admin"`
}

func (r *CreateAccountRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	if r.Role == "" {
		r.Role = RoleUser
	}
}

func (r *CreateAccountRequest) Validate() error {
	return validation.Validate(r)
}
