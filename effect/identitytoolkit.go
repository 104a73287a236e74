package effect

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/arloliu/fanout/identitytoolkit"
	"github.com/arloliu/fanout/types"
)

const (
	passwordLength = 14
	nameLength     = 7
	letters        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// IdentityToolkit creates the item's email as a user of the partition's
// tenant and sends that user a password reset email.
//
// Users get a random password and a random two word display name; they set
// their own password through the reset link.
type IdentityToolkit struct {
	client *identitytoolkit.Client
}

var _ types.EffectAdapter = (*IdentityToolkit)(nil)

// NewIdentityToolkit wraps an Identity Toolkit client as an effect adapter.
// The client needs an API key for TriggerNotification.
func NewIdentityToolkit(client *identitytoolkit.Client) *IdentityToolkit {
	return &IdentityToolkit{client: client}
}

// UpsertPrincipal creates the tenant user. A duplicate email is reported as
// types.UpsertAlreadyExists.
func (e *IdentityToolkit) UpsertPrincipal(ctx context.Context, partitionID string, item types.WorkItem) (types.UpsertResult, error) {
	password, err := randomLetters(passwordLength)
	if err != nil {
		return types.UpsertCreated, err
	}
	first, err := randomLetters(nameLength)
	if err != nil {
		return types.UpsertCreated, err
	}
	last, err := randomLetters(nameLength)
	if err != nil {
		return types.UpsertCreated, err
	}

	err = e.client.CreateUser(ctx, partitionID, identitytoolkit.User{
		Email:       string(item),
		Password:    password,
		DisplayName: first + " " + last,
	})
	if errors.Is(err, types.ErrPrincipalExists) {
		return types.UpsertAlreadyExists, nil
	}
	if err != nil {
		return types.UpsertCreated, err
	}

	return types.UpsertCreated, nil
}

// TriggerNotification sends the tenant password reset email.
func (e *IdentityToolkit) TriggerNotification(ctx context.Context, partitionID string, item types.WorkItem) error {
	return e.client.SendPasswordReset(ctx, partitionID, string(item))
}

func randomLetters(n int) (string, error) {
	limit := big.NewInt(int64(len(letters)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = letters[idx.Int64()]
	}

	return string(b), nil
}
