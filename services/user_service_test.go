package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"educhat/backend/models"
	"educhat/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newUserService(f *fakes) *UserService {
	s := NewUserService(f.users, f.otps, f.mailer, UserServiceConfig{
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		OTPTTL:    10 * time.Minute,
	}, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestSendCodeStoresAndMails(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)
	var saved string

	f.users.EXPECT().FindUserByEmail(gomock.Any(), "new@example.com").Return(nil, utils.ErrNotFound)
	f.otps.EXPECT().SaveCode(gomock.Any(), "new@example.com", gomock.Any(), 10*time.Minute).
		DoAndReturn(func(_ context.Context, _, code string, _ time.Duration) error {
			saved = code
			return nil
		})
	f.mailer.EXPECT().SendVerificationCode(gomock.Any(), "new@example.com", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code string) error {
			assert.Equal(t, saved, code)
			return nil
		})

	require.NoError(t, s.SendCode(context.Background(), "  New@Example.com "))
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), saved)
}

func TestSendCodeRejectsTakenEmail(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)

	f.users.EXPECT().FindUserByEmail(gomock.Any(), "alice@example.com").Return(newUser("alice", models.RoleStudent), nil)
	f.otps.EXPECT().SaveCode(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := s.SendCode(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, utils.ErrConflict)

	assert.ErrorIs(t, s.SendCode(context.Background(), "not an email"), utils.ErrInvalidArgument)
}

func validRegistration() models.RegisterRequest {
	return models.RegisterRequest{
		Name:                "Alice",
		Email:               "Alice@Example.com",
		Password:            "secret123",
		Role:                models.RoleStudent,
		MatriculationNumber: "M-1",
		OTP:                 "123456",
	}
}

func TestRegister(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)

	f.users.EXPECT().FindUserByEmail(gomock.Any(), "alice@example.com").Return(nil, utils.ErrNotFound)
	f.otps.EXPECT().GetCode(gomock.Any(), "alice@example.com").Return("123456", nil)
	f.users.EXPECT().InsertUser(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		assert.Equal(t, "alice@example.com", u.Email)
		assert.Equal(t, "M-1", u.MatriculationNumber)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret123")))
		u.ID = primitive.NewObjectID()
		return nil
	})
	f.otps.EXPECT().DeleteCode(gomock.Any(), "alice@example.com").Return(nil)

	resp, err := s.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	id, err := utils.ParseJWT(resp.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id)
}

func TestRegisterDropsMatriculationForLecturers(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)
	req := validRegistration()
	req.Role = models.RoleLecturer

	f.users.EXPECT().FindUserByEmail(gomock.Any(), gomock.Any()).Return(nil, utils.ErrNotFound)
	f.otps.EXPECT().GetCode(gomock.Any(), gomock.Any()).Return("123456", nil)
	f.users.EXPECT().InsertUser(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		assert.Empty(t, u.MatriculationNumber)
		return nil
	})
	f.otps.EXPECT().DeleteCode(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	_, err := s.Register(context.Background(), req)
	require.NoError(t, err)
}

func TestRegisterOTPFailures(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)
	f.users.EXPECT().FindUserByEmail(gomock.Any(), gomock.Any()).Return(nil, utils.ErrNotFound).Times(2)
	f.users.EXPECT().InsertUser(gomock.Any(), gomock.Any()).Times(0)

	f.otps.EXPECT().GetCode(gomock.Any(), gomock.Any()).Return("", utils.ErrNotFound)
	_, err := s.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
	assert.Equal(t, "OTP expired", utils.PublicMessage(err))

	f.otps.EXPECT().GetCode(gomock.Any(), gomock.Any()).Return("654321", nil)
	_, err = s.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
	assert.Equal(t, "Incorrect OTP", utils.PublicMessage(err))
}

func TestRegisterValidation(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)

	for name, mutate := range map[string]func(*models.RegisterRequest){
		"missing name":   func(r *models.RegisterRequest) { r.Name = " " },
		"short password": func(r *models.RegisterRequest) { r.Password = "123" },
		"bad role":       func(r *models.RegisterRequest) { r.Role = "admin" },
	} {
		t.Run(name, func(t *testing.T) {
			req := validRegistration()
			mutate(&req)
			_, err := s.Register(context.Background(), req)
			assert.ErrorIs(t, err, utils.ErrInvalidArgument)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)
	alice := newUser("alice", models.RoleStudent)
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	alice.Password = string(hash)

	f.users.EXPECT().FindUserByEmail(gomock.Any(), "alice@example.com").Return(alice, nil).Times(2)
	f.users.EXPECT().FindUserByEmail(gomock.Any(), "ghost@example.com").Return(nil, utils.ErrNotFound)

	resp, err := s.Login(context.Background(), models.LoginRequest{Email: "ALICE@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, alice.ID, resp.User.ID)

	_, err = s.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)

	_, err = s.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password123"})
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)
	assert.Equal(t, "Invalid email or password", utils.PublicMessage(err))
}

func TestGetUser(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)
	alice := newUser("alice", models.RoleStudent)

	f.users.EXPECT().FindUserByID(gomock.Any(), alice.ID).Return(alice, nil)
	got, err := s.GetUser(context.Background(), alice.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = s.GetUser(context.Background(), "nope")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestSearchLecturers(t *testing.T) {
	f := newFakes(t)
	s := newUserService(f)
	smith := newUser("smith", models.RoleLecturer)

	f.users.EXPECT().SearchLecturers(gomock.Any(), "physics").Return(usersOf(smith), nil)
	got, err := s.SearchLecturers(context.Background(), " physics ")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.SearchLecturers(context.Background(), "")
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
}
