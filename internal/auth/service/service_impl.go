package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewplan/internal/auth/domain"
	"github.com/smallbiznis/crewplan/internal/auth/password"
	"github.com/smallbiznis/crewplan/internal/clock"
	"github.com/smallbiznis/crewplan/internal/config"
	"github.com/smallbiznis/crewplan/pkg/db"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	minPasswordLength = 8
)

type service struct {
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	clock      clock.Clock
	sessionTTL time.Duration
}

func NewService(log *zap.Logger, cfg config.Config, repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &service{
		log:        log.Named("auth.service"),
		repo:       repo,
		genID:      genID,
		clock:      clk,
		sessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	return s.issueSession(ctx, user)
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

func (s *service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.repo.FindSessionByTokenHash(ctx, hashToken(rawToken))
	if errors.Is(err, domain.ErrInvalidSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, session.ID)
}

func (s *service) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.repo.FindSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if s.clock.Now().After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	user, err := s.repo.FindUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return &domain.Identity{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		IsSuperAdmin: user.IsSuperAdmin,
	}, nil
}

func (s *service) issueSession(ctx context.Context, user *domain.User) (*domain.LoginResult, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	rawToken := hex.EncodeToString(raw)

	session := &domain.Session{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.clock.Now().Add(s.sessionTTL),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:     user,
		RawToken: rawToken,
		Session:  session.ID,
	}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidCredentials
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}
