package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-local-market/internal/market"
)

type Service struct {
	Users  market.UserStore
	Tokens *Tokens
	Cost   int // bcrypt cost; 0 means bcrypt.DefaultCost
}

type LoginResult struct {
	Token string      `json:"token"`
	User  market.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, in market.NewUser) (market.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := in.Validate(); err != nil {
		return market.User{}, err
	}
	if in.Role == "" {
		in.Role = market.RoleCustomer
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return market.User{}, fmt.Errorf("hash password: %w", err)
	}
	in.Password = string(hash)

	return s.Users.CreateUser(ctx, in)
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.Users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, market.ErrNotFound) {
		return LoginResult{}, fmt.Errorf("invalid credentials: %w", market.ErrUnauthorized)
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return LoginResult{}, fmt.Errorf("invalid credentials: %w", market.ErrUnauthorized)
	}

	tok, err := s.Tokens.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: tok, User: u}, nil
}

// FixtureOwners builds the shopkeeper accounts that seeding attaches to the
// fixture shops, all sharing password.
func FixtureOwners(password string, cost int) ([]market.NewUser, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out := make([]market.NewUser, 0, len(market.FixtureOwners))
	for _, o := range market.FixtureOwners {
		u := market.NewUser{
			Username: o.Username,
			Password: password,
			Role:     market.RoleShopkeeper,
			Email:    o.Email,
		}
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("fixture owner %s: %w", o.Username, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.Password = string(hash)
		out = append(out, u)
	}
	return out, nil
}
