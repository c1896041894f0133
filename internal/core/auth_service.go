package core

import (
	"context"
	"log"
	"strings"

	"gwi.com/notebook-console/internal/backend"
)

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterInput struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginData is the success payload of Login. The HTTP layer turns Token
// into the accessToken cookie and then follows To.
type LoginData struct {
	Token string `json:"-"`
	To    string `json:"to"`
}

type AuthService struct {
	backend Backend
}

func NewAuthService(b Backend) *AuthService {
	return &AuthService{backend: b}
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) Result {
	in.Username = strings.TrimSpace(in.Username)
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}
	tok, err := s.backend.Login(ctx, in.Username, in.Password)
	if err != nil {
		log.Printf("Login failed for %s: %v", in.Username, err)
		return Failure("Login failed", err)
	}
	return Success(LoginData{Token: tok.AccessToken, To: "/notebooks"})
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) Result {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if fields := validateInput(in); fields != nil {
		return Invalid(fields)
	}
	_, err := s.backend.Register(ctx, "", backend.RegisterRequest{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
	})
	if err != nil {
		log.Printf("Registration failed for %s: %v", in.Username, err)
		return Failure("Registration failed", err)
	}
	return Navigate("/login")
}

func (s *AuthService) Logout() Result {
	return Navigate("/login")
}
