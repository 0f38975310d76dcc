package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"educhat/backend/models"
	"educhat/backend/utils"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserService covers registration, login and user lookups.
type UserService struct {
	users    UserStore
	otps     OTPStore
	mailer   Mailer
	secret   string
	tokenTTL time.Duration
	otpTTL   time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// UserServiceConfig carries the token and code lifetimes.
type UserServiceConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	OTPTTL    time.Duration
}

func NewUserService(users UserStore, otps OTPStore, mailer Mailer, cfg UserServiceConfig, log *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		otps:     otps,
		mailer:   mailer,
		secret:   cfg.JWTSecret,
		tokenTTL: cfg.TokenTTL,
		otpTTL:   cfg.OTPTTL,
		log:      log.With(slog.String("component", "user_service")),
		now:      time.Now,
	}
}

// TokenTTL is how long issued tokens stay valid.
func (s *UserService) TokenTTL() time.Duration { return s.tokenTTL }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var errUserExists = utils.NewError(utils.ErrConflict, "User already exists")

func (s *UserService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return errUserExists
	case errors.Is(err, utils.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check existing email: %w", err)
	}
}

// SendCode stores a fresh 6-digit code for email and mails it.
func (s *UserService) SendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return utils.NewError(utils.ErrInvalidArgument, "Email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.NewError(utils.ErrInvalidArgument, "Invalid email address")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return err
	}

	code, err := generateVerificationCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.otps.SaveCode(ctx, email, code, s.otpTTL); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	s.log.Info("verification code sent", slog.String("email", email))
	return nil
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Register verifies the emailed code and creates the account.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "" || email == "" || req.Password == "":
		return nil, utils.NewError(utils.ErrInvalidArgument, "Name, email and password are required")
	case len(req.Password) < minPasswordLength:
		return nil, utils.NewError(utils.ErrInvalidArgument, "Password must be at least 6 characters")
	case !req.Role.Valid():
		return nil, utils.NewError(utils.ErrInvalidArgument, "Role must be lecturer or student")
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	code, err := s.otps.GetCode(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.NewError(utils.ErrInvalidArgument, "OTP expired")
		}
		return nil, fmt.Errorf("load code: %w", err)
	}
	if code != strings.TrimSpace(req.OTP) {
		return nil, utils.NewError(utils.ErrInvalidArgument, "Incorrect OTP")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		Name:       name,
		Email:      email,
		Password:   string(hashed),
		Role:       req.Role,
		Department: strings.TrimSpace(req.Department),
		Faculty:    strings.TrimSpace(req.Faculty),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Role == models.RoleStudent {
		user.MatriculationNumber = strings.TrimSpace(req.MatriculationNumber)
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, errUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if err := s.otps.DeleteCode(ctx, email); err != nil {
		s.log.Warn("failed to delete used code", slog.String("email", email), slog.Any("error", err))
	}
	s.log.Info("user registered", slog.String("user_id", user.ID.Hex()), slog.String("role", string(user.Role)))
	return s.authResponse(user)
}

// Login checks credentials and issues a token.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	errInvalid := utils.NewError(utils.ErrUnauthenticated, "Invalid email or password")

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, errInvalid
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, errInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errInvalid
	}

	s.log.Info("user logged in", slog.String("user_id", user.ID.Hex()))
	return s.authResponse(user)
}

func (s *UserService) authResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := utils.GenerateJWT(user.ID, s.secret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: user, Token: token}, nil
}

// GetUser looks a user up by hex id.
func (s *UserService) GetUser(ctx context.Context, idHex string) (*models.User, error) {
	errUserNotFound := utils.NewError(utils.ErrNotFound, "User not found")

	id, err := utils.ParseObjectID("user ID", idHex)
	if err != nil {
		return nil, errUserNotFound
	}
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SearchLecturers matches lecturers by name, faculty or department.
func (s *UserService) SearchLecturers(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, utils.NewError(utils.ErrInvalidArgument, "Search query is required")
	}
	users, err := s.users.SearchLecturers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search lecturers: %w", err)
	}
	return users, nil
}
