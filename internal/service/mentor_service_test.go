package service

import (
	"context"
	"testing"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/security"
	"github.com/cwrk-planet/call-service/internal/storage"
	"github.com/cwrk-planet/call-service/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMentorService() (*MentorService, *security.TokenSigner) {
	signer := security.NewTokenSigner("test-secret", "call-service", time.Hour, 0)
	return NewMentorService(memory.New(), signer, bcrypt.MinCost, nil), signer
}

func TestMentorService_LoginAndAuthorize(t *testing.T) {
	svc, _ := newMentorService()
	ctx := context.Background()

	require.NoError(t, svc.AddMentor(ctx, " anna ", "s3cret-pass"))

	res, err := svc.Login(ctx, "anna", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	id, err := svc.Authorize(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "anna", id.ID)
	assert.Equal(t, domain.RoleMentor, id.Role)
}

func TestMentorService_BadCredentials(t *testing.T) {
	svc, _ := newMentorService()
	ctx := context.Background()
	require.NoError(t, svc.AddMentor(ctx, "anna", "s3cret-pass"))

	_, err := svc.Login(ctx, "anna", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestMentorService_AddMentorErrors(t *testing.T) {
	svc, _ := newMentorService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.AddMentor(ctx, "", "long-enough"), domain.ErrValidation)
	assert.ErrorIs(t, svc.AddMentor(ctx, "anna", "short"), domain.ErrValidation)

	require.NoError(t, svc.AddMentor(ctx, "anna", "long-enough"))
	assert.ErrorIs(t, svc.AddMentor(ctx, "anna", "long-enough"), storage.ErrAlreadyExists)
}

func TestMentorService_UserTokenIsForbidden(t *testing.T) {
	svc, signer := newMentorService()

	tok, _, err := signer.Sign(domain.Identity{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = svc.Authorize(tok)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Authorize("garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
