// Package auth logs employees in, creating their account on first login.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/session"
)

const usersBucketName = "users"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// User is an account able to log in
type User struct {
	Email        string    `json:"email"`
	Type         string    `json:"type"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Users persists accounts
type Users interface {
	GetUser(email string) (*User, error)
	SaveUser(user *User) error
}

// BoltUsers keeps accounts in a bolt bucket
type BoltUsers struct {
	db *bbolt.DB
}

// NewBoltUsers creates the users bucket in db
func NewBoltUsers(db *bbolt.DB) (*BoltUsers, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(usersBucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating users bucket: %w", err)
	}
	return &BoltUsers{db: db}, nil
}

func (b *BoltUsers) GetUser(email string) (*User, error) {
	var user *User
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(usersBucketName)).Get([]byte(email))
		if data == nil {
			return ErrUserNotFound
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (b *BoltUsers) SaveUser(user *User) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshaling user: %w", err)
		}
		return tx.Bucket([]byte(usersBucketName)).Put([]byte(user.Email), data)
	})
}

// Service checks credentials
type Service struct {
	users Users
	cost  int
}

// NewService creates a Service hashing passwords with bcrypt's default cost
func NewService(users Users) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// NewServiceWithCost lets tests use a cheaper bcrypt cost
func NewServiceWithCost(users Users, cost int) *Service {
	return &Service{users: users, cost: cost}
}

// Login checks email and password. An unknown email gets a new Employee account.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || password == "" {
		return session.Session{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUser(email)
	if errors.Is(err, ErrUserNotFound) {
		return s.register(email, password, session.TypeEmployee)
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("getting user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return session.Session{}, ErrInvalidCredentials
	}
	return session.Session{Type: user.Type, Email: user.Email}, nil
}

// EnsureAdmin makes email an administrator account, creating it with password
// when it does not exist yet. An existing account keeps its password unless one is given.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("admin email %q: %w", email, ErrInvalidCredentials)
	}

	user, err := s.users.GetUser(email)
	if errors.Is(err, ErrUserNotFound) {
		if password == "" {
			return fmt.Errorf("admin %s needs a password: %w", email, ErrInvalidCredentials)
		}
		_, err := s.register(email, password, session.TypeAdmin)
		return err
	}
	if err != nil {
		return fmt.Errorf("getting user: %w", err)
	}

	user.Type = session.TypeAdmin
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		user.PasswordHash = hash
	}
	if err := s.users.SaveUser(user); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	logger.Info("admin account ensured", zap.String("email", email))
	return nil
}

func (s *Service) register(email, password, userType string) (session.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return session.Session{}, fmt.Errorf("hashing password: %w", err)
	}
	user := &User{
		Email:        email,
		Type:         userType,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.users.SaveUser(user); err != nil {
		return session.Session{}, fmt.Errorf("saving user: %w", err)
	}
	logger.Info("account created", zap.String("email", email), zap.String("type", userType))
	return session.Session{Type: user.Type, Email: user.Email}, nil
}
