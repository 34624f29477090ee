package cli

import (
	"errors"

	"github.com/dmitrijs2005/budgetbook/internal/common"
)

var messages = []struct {
	err error
	msg string
}{
	{common.ErrNoSession, "sign in with 'login' or continue with 'guest' first"},
	{common.ErrRemoteUnavailable, "no shared store is configured, only guest mode is available"},
	{common.ErrCapacityExceeded, "you already have the maximum number of budget books"},
	{common.ErrAlreadyMember, "you are already a member of this book"},
	{common.ErrorUnauthorized, "you are not allowed to do that in this book"},
	{common.ErrCategoryLimit, "this book already has the maximum number of categories of that type"},
	{common.ErrAlreadyExists, "that already exists"},
	{common.ErrTokenExpired, "the access token has expired"},
	{common.ErrInvalidToken, "the access token is not valid"},
	{common.ErrorNotFound, "not found"},
}

// describe turns service errors into user-facing text. Unknown errors are
// shown as they are.
func describe(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
