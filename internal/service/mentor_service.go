package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/security"
	"github.com/cwrk-planet/call-service/internal/storage"
)

// MentorService checks mentor credentials and issues the tokens that unlock privileged endpoints.
type MentorService struct {
	repo       storage.MentorRepository
	signer     *security.TokenSigner
	bcryptCost int
	log        *slog.Logger
	now        func() time.Time
}

func NewMentorService(repo storage.MentorRepository, signer *security.TokenSigner, bcryptCost int, log *slog.Logger) *MentorService {
	if log == nil {
		log = slog.Default()
	}
	return &MentorService{
		repo:       repo,
		signer:     signer,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

func (s *MentorService) AddMentor(ctx context.Context, username, secret string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrValidation)
	}

	hash, err := security.HashSecret(secret, s.bcryptCost)
	if err != nil {
		if errors.Is(err, security.ErrSecretTooShort) {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return fmt.Errorf("hash secret: %w", err)
	}

	err = s.repo.CreateMentor(ctx, domain.Mentor{
		Username:   username,
		SecretHash: hash,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create mentor %q: %w", username, err)
	}

	s.log.InfoContext(ctx, "mentor added", "mentor", username)
	return nil
}

type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (s *MentorService) Login(ctx context.Context, username, secret string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}

	m, err := s.repo.GetMentor(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if err := security.CompareSecret(m.SecretHash, secret); err != nil {
		s.log.WarnContext(ctx, "mentor login failed", "mentor", username)
		return nil, domain.ErrInvalidCredentials
	}

	tok, exp, err := s.signer.Sign(domain.Identity{ID: m.Username, Name: m.Username, Role: domain.RoleMentor})
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: tok, ExpiresAt: exp}, nil
}

// Authorize accepts only valid tokens carrying the mentor role.
func (s *MentorService) Authorize(token string) (domain.Identity, error) {
	id, err := s.signer.Parse(token)
	if err != nil {
		return domain.Identity{}, err
	}
	if id.Role != domain.RoleMentor {
		return domain.Identity{}, domain.ErrForbidden
	}
	return id, nil
}
