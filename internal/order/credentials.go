package order

import (
	"time"

	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/utils"
)

const passwordLength = 16

// CredentialGenerator produces the account handed to the buyer.
type CredentialGenerator interface {
	Generate(now time.Time) (*models.Account, error)
}

type CredentialGeneratorFunc func(now time.Time) (*models.Account, error)

func (f CredentialGeneratorFunc) Generate(now time.Time) (*models.Account, error) {
	return f(now)
}

// RandomCredentials is the production generator: a synthetic mailbox and a
// crypto/rand password.
var RandomCredentials CredentialGenerator = CredentialGeneratorFunc(func(now time.Time) (*models.Account, error) {
	password, err := utils.GeneratePassword(passwordLength)
	if err != nil {
		return nil, err
	}
	return &models.Account{
		Email:    utils.GenerateAccountEmail(now),
		Password: password,
	}, nil
})
