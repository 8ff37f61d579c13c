// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
)

// Account is one user the server knows, with the bearer token that
// authenticates as them.
type Account struct {
	User  portal.User
	Token string
}

// Config configures a Server.
type Config struct {
	// Accounts is the user directory and token table. At least one is
	// required; tokens and user ids must be unique.
	Accounts []Account

	// SendBuffer is the number of outbound frames queued per
	// connection before the connection is dropped as too slow.
	// Defaults to 64.
	SendBuffer int

	// Clock stamps messages. Defaults to the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return errors.New("devserver: at least one account is required")
	}
	var errs []error
	tokens := make(map[string]bool, len(c.Accounts))
	users := make(map[ref.UserID]bool, len(c.Accounts))
	for index, account := range c.Accounts {
		if account.User.ID.IsZero() {
			errs = append(errs, fmt.Errorf("account %d: user id is empty", index))
		}
		if account.Token == "" {
			errs = append(errs, fmt.Errorf("account %d (%s): token is empty", index, account.User.ID))
		}
		if tokens[account.Token] {
			errs = append(errs, fmt.Errorf("account %d (%s): duplicate token", index, account.User.ID))
		}
		if users[account.User.ID] {
			errs = append(errs, fmt.Errorf("account %d: duplicate user id %q", index, account.User.ID))
		}
		tokens[account.Token] = true
		users[account.User.ID] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("devserver: invalid accounts: %w", errors.Join(errs...))
	}
	return nil
}

// ParseAccount parses the command-line form "id:token" or
// "id:token:Display Name".
func ParseAccount(value string) (Account, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return Account{}, fmt.Errorf("devserver: account %q: want id:token[:name]", value)
	}
	id, err := ref.UserIDOf(parts[0])
	if err != nil {
		return Account{}, fmt.Errorf("devserver: account %q: %w", value, err)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return Account{}, fmt.Errorf("devserver: account %q: token is empty", value)
	}
	account := Account{User: portal.User{ID: id}, Token: token}
	if len(parts) == 3 {
		account.User.Name = strings.TrimSpace(parts[2])
	}
	return account, nil
}
