package accounts

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"golang.org/x/crypto/argon2"
)

const saltSize = 16

func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// NewAccount returns an account for username with a fresh salt and the hash
// of password. The clear-text password is not retained.
func NewAccount(username, password string) *models.Account {
	salt := common.GenerateRandByteArray(saltSize)
	return &models.Account{
		Username: username,
		Salt:     salt,
		Hash:     HashPassword(password, salt),
	}
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(account *models.Account, password string) bool {
	candidate := HashPassword(password, account.Salt)
	return subtle.ConstantTimeCompare(account.Hash, candidate) == 1
}
