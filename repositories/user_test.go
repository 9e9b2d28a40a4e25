package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"educhat/errors"
)

func Test_CreateUser_Rejects_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	id, err := repo.CreateUser("alice@example.edu", "Alice", "hashed-secret")
	req.NoError(err)
	req.NotEmpty(id)

	_, err = repo.CreateUser("alice@example.edu", "Alice Again", "other-hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUserByEmail(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	id, err := repo.CreateUser("alice@example.edu", "Alice", "hashed-secret")
	req.NoError(err)

	user, err := repo.GetUserByEmail("alice@example.edu")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("Alice", user.Name)
	req.Equal("hashed-secret", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)

	// Unknown emails surface the same error as a bad password,
	// so login cannot be used to probe for accounts.
	_, err = repo.GetUserByEmail("nobody@example.edu")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
