package service

import (
	"time"

	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	db          *gorm.DB
	jwtSecret   string
	expireHours int
}

func NewAuthService(db *gorm.DB, jwtSecret string, expireHours int) *AuthService {
	return &AuthService{db: db, jwtSecret: jwtSecret, expireHours: expireHours}
}

type LoginResult struct {
	Token    string          `json:"token"`
	ExpireAt time.Time       `json:"expire_at"`
	User     model.UserBrief `json:"user"`
}

func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	var user model.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, Validationf(CodeBadInput, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, Validationf(CodeBadInput, "invalid email or password")
	}
	if user.Status == 0 {
		return nil, InvalidStatef(CodeAccountDisabled, "account disabled")
	}

	token, expireAt, err := jwt.GenerateToken(s.jwtSecret, user.ID, user.Role, user.IsAdmin, s.expireHours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.db.Model(&user).Update("last_login_at", now)

	return &LoginResult{Token: token, ExpireAt: expireAt, User: user.Brief()}, nil
}

type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     string
	IsAdmin  bool
}

func (s *AuthService) CreateUser(in CreateUserInput) (*model.User, error) {
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return nil, Validationf(CodeBadInput, "email, password and name are required")
	}
	switch in.Role {
	case model.RoleQC, model.RoleEngineer, model.RoleForeman:
	default:
		return nil, Validationf(CodeBadInput, "invalid role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         in.Role,
		IsAdmin:      in.IsAdmin,
		Status:       1,
	}
	if err := s.db.Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, Validationf(CodeDuplicateCode, "email %q already registered", in.Email)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) GetUser(id uint) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, NotFoundf(CodeUserNotFound, "user %d not found", id)
	}
	return &user, nil
}
