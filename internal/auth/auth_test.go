package auth

import (
	"strings"
	"testing"
	"time"

	"breederhub/api/internal/models"
	"breederhub/api/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWT_RoundTrip(t *testing.T) {
	userID := utils.NewSixID()
	token, err := GenerateJWT(userID, models.RoleBreeder, "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleBreeder, claims.Role)

	parsed, err := claims.ParseUserID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(utils.NewSixID(), models.RoleCustomer, "one", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "two")
	assert.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	token, err := GenerateJWT(utils.NewSixID(), models.RoleCustomer, "s3cret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "s3cret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: utils.NewSixID().String(), Role: models.RoleAdmin}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(unsigned, "s3cret")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("battery staple", hash))
}

func TestPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestPassword_NeedsRehash(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, NeedsRehash(string(weak)))
	assert.True(t, NeedsRehash("not-a-hash"))
}

func TestCompareDummyHash(t *testing.T) {
	cost, err := bcrypt.Cost(dummyHash())
	require.NoError(t, err)
	assert.Equal(t, BcryptCost, cost)
	assert.NotPanics(t, func() { CompareDummyHash("whatever") })
	assert.False(t, CheckPasswordHash("whatever", string(dummyHash())))
}
