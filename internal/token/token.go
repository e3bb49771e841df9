// Package token mints access tokens for the real-time voice session broker.
// Tokens are LiveKit-compatible HS256 JWTs granting a single room join.
package token

import (
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Defaults for minted tokens.
const (
	DefaultRoom = "salesvoice-room"
	DefaultName = "User"
	DefaultTTL  = 6 * time.Hour
)

// ErrMissingCredentials is returned when the API key or secret is unset.
var ErrMissingCredentials = errors.New("LIVEKIT_API_KEY or LIVEKIT_API_SECRET not set")

// VideoGrant is the room permission embedded in the token.
type VideoGrant struct {
	RoomJoin bool   `json:"roomJoin,omitempty"`
	Room     string `json:"room,omitempty"`
}

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// Config holds broker credentials and grant settings.
type Config struct {
	APIKey    string
	APISecret string
	URL       string
	Room      string
	TTL       time.Duration
}

// Issued is a minted token and the broker URL it is valid for.
type Issued struct {
	Token     string
	URL       string
	Identity  string
	Room      string
	ExpiresAt time.Time
}

// Issuer mints participant tokens.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer returns an Issuer. Empty Room and TTL take the defaults.
func NewIssuer(cfg Config) *Issuer {
	if cfg.Room == "" {
		cfg.Room = DefaultRoom
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{cfg: cfg, now: time.Now}
}

// Configured reports whether both credentials are present.
func (i *Issuer) Configured() bool {
	return i.cfg.APIKey != "" && i.cfg.APISecret != ""
}

// NewIdentity returns a participant identity of the form user-<8 hex digits>.
func NewIdentity() string {
	id := uuid.New()
	return "user-" + hex.EncodeToString(id[:4])
}

// Issue mints a token for a fresh participant identity.
func (i *Issuer) Issue() (*Issued, error) {
	return i.IssueFor(NewIdentity(), DefaultName)
}

// IssueFor mints a token for the given identity and display name.
func (i *Issuer) IssueFor(identity, name string) (*Issued, error) {
	if !i.Configured() {
		return nil, ErrMissingCredentials
	}

	now := i.now()
	exp := now.Add(i.cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.APIKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: name,
		Video: &VideoGrant{
			RoomJoin: true,
			Room:     i.cfg.Room,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.APISecret))
	if err != nil {
		return nil, errors.Wrap(err, "sign token")
	}
	return &Issued{
		Token:     signed,
		URL:       i.cfg.URL,
		Identity:  identity,
		Room:      i.cfg.Room,
		ExpiresAt: exp,
	}, nil
}
