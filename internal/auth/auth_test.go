package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-local-market/internal/market"
	"github.com/ariefcatur/go-local-market/internal/memstore"
)

func newService() *Service {
	return &Service{
		Users:  memstore.New(),
		Tokens: NewTokens("test-secret", 24*time.Hour),
		Cost:   bcrypt.MinCost,
	}
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", 24*time.Hour)
	u := market.User{ID: 42, Username: "priya", Role: market.RoleShopkeeper}

	raw, err := tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	p, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if p.ID != 42 || p.Username != "priya" || p.Role != market.RoleShopkeeper {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestTokens_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := NewTokens("test-secret", 24*time.Hour)
	tokens.Now = func() time.Time { return issuedAt }

	raw, _ := tokens.Issue(market.User{ID: 1, Username: "a", Role: market.RoleCustomer})

	tokens.Now = func() time.Time { return issuedAt.Add(25 * time.Hour) }
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got: %v", err)
	}
}

func TestTokens_WrongSecret(t *testing.T) {
	raw, _ := NewTokens("secret-a", time.Hour).Issue(market.User{ID: 1, Username: "a"})
	if _, err := NewTokens("secret-b", time.Hour).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got: %v", err)
	}
	if _, err := NewTokens("secret-a", time.Hour).Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for garbage, got: %v", err)
	}
}

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	svc := newService()

	u, err := svc.Register(context.Background(), market.NewUser{Username: " ravi ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u.Username != "ravi" {
		t.Errorf("expected trimmed username, got %q", u.Username)
	}
	if u.Role != market.RoleCustomer {
		t.Errorf("expected customer role, got %s", u.Role)
	}
	if u.Password == "secret1" || !strings.HasPrefix(u.Password, "$2") {
		t.Errorf("expected bcrypt hash, got %q", u.Password)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	svc.Register(ctx, market.NewUser{Username: "ravi", Password: "secret1"})
	_, err := svc.Register(ctx, market.NewUser{Username: "ravi", Password: "other12"})
	if !errors.Is(err, market.ErrConflict) {
		t.Errorf("expected ErrConflict, got: %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	svc.Register(ctx, market.NewUser{Username: "ravi", Password: "secret1", Role: market.RoleShopkeeper})

	res, err := svc.Login(ctx, "ravi", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	p, err := svc.Tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if p.ID != res.User.ID || p.Role != market.RoleShopkeeper {
		t.Errorf("unexpected principal %+v for user %+v", p, res.User)
	}

	if _, err := svc.Login(ctx, "ravi", "wrong"); !errors.Is(err, market.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for bad password, got: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret1"); !errors.Is(err, market.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for unknown user, got: %v", err)
	}
}

func TestFixtureOwners(t *testing.T) {
	owners, err := FixtureOwners("owner-pass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("FixtureOwners failed: %v", err)
	}
	if len(owners) != len(market.FixtureOwners) {
		t.Fatalf("expected %d owners, got %d", len(market.FixtureOwners), len(owners))
	}
	for i, o := range owners {
		if o.Username != market.FixtureOwners[i].Username || o.Role != market.RoleShopkeeper {
			t.Errorf("unexpected owner %d: %+v", i, o)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(o.Password), []byte("owner-pass")); err != nil {
			t.Errorf("owner %s password not hashed: %v", o.Username, err)
		}
	}

	if _, err := FixtureOwners("123", bcrypt.MinCost); !errors.Is(err, market.ErrValidation) {
		t.Errorf("expected ErrValidation for short password, got %v", err)
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc := newService()
	_, err := svc.Register(context.Background(), market.NewUser{
		Username: "longpass", Password: strings.Repeat("x", 80),
	})
	if !errors.Is(err, market.ErrValidation) {
		t.Errorf("expected ErrValidation for 80-byte password, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	owner := Principal{ID: 1, Role: market.RoleShopkeeper}
	customer := Principal{ID: 7, Role: market.RoleCustomer}
	stranger := Principal{ID: 9, Role: market.RoleCustomer}
	shop := Resource{OwnerID: 1}
	booking := Resource{OwnerID: 1, CustomerID: 7}

	cases := []struct {
		name string
		p    Principal
		c    Capability
		r    Resource
		ok   bool
	}{
		{"owner manages shop", owner, ManageShop, shop, true},
		{"customer cannot manage shop", customer, ManageShop, shop, false},
		{"missing shop denied", owner, ManageShop, Resource{}, false},
		{"owner lists own shops", owner, ViewOwnedShops, Resource{OwnerID: 1}, true},
		{"other owner's shops denied", customer, ViewOwnedShops, Resource{OwnerID: 1}, false},
		{"customer views own bookings", customer, ViewCustomerBookings, Resource{CustomerID: 7}, true},
		{"stranger views bookings", stranger, ViewCustomerBookings, Resource{CustomerID: 7}, false},
		{"owner modifies booking", owner, ModifyBooking, booking, true},
		{"customer modifies booking", customer, ModifyBooking, booking, true},
		{"stranger modifies booking", stranger, ModifyBooking, booking, false},
		{"shopkeeper opens shop", owner, OpenShop, Resource{}, true},
		{"customer opens shop", customer, OpenShop, Resource{}, false},
	}
	for _, c := range cases {
		err := Authorize(c.p, c.c, c.r)
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", c.name, err)
		}
		if !c.ok && !errors.Is(err, market.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", c.name, err)
		}
	}
}

func TestBookingTransitionAllowed(t *testing.T) {
	r := Resource{OwnerID: 1, CustomerID: 7}
	owner := Principal{ID: 1}
	customer := Principal{ID: 7}

	if err := BookingTransitionAllowed(owner, r, market.StatusConfirmed); err != nil {
		t.Errorf("owner confirm: %v", err)
	}
	if err := BookingTransitionAllowed(customer, r, market.StatusCancelled); err != nil {
		t.Errorf("customer cancel: %v", err)
	}
	if err := BookingTransitionAllowed(customer, r, market.StatusConfirmed); !errors.Is(err, market.ErrForbidden) {
		t.Errorf("expected customer confirm to be forbidden, got %v", err)
	}
}
