package identitysvc

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

// Provider is a self-hosted auth.IdentityProvider backed by an account
// repository. It issues HS256 JWT session tokens and keeps at most one
// persisted session of its own; request-scoped tokens carried by ctx take
// precedence in GetSession.
type Provider struct {
	conf     *core.Config
	accounts auth.AccountRepository
	mailSvc  core.EmailService
	logger   core.Logger

	mu        sync.RWMutex
	current   *auth.Session
	callbacks []func(event auth.Event, session *auth.Session)
}

var _ auth.IdentityProvider = (*Provider)(nil) // interface compliance check

func NewProvider(conf *core.Config, accounts auth.AccountRepository, mailSvc core.EmailService, logger core.Logger) *Provider {
	return &Provider{
		conf:     conf,
		accounts: accounts,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// Accounts exposes the backing account repository.
func (p *Provider) Accounts() auth.AccountRepository { return p.accounts }

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	email = core.CleanString(email, true)

	acct, err := p.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == auth.ErrAccountNotFound {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "finding account by email")
	}
	if err = acct.CheckPassword(password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if p.conf.RequireEmailConfirm && !acct.Confirmed {
		return nil, auth.ErrEmailNotConfirmed
	}

	if acct, err = p.accounts.SetLastLogin(ctx, acct.ID, time.Now().UTC()); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}

	sess, err := p.openSession(acct)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (auth.Identity, *auth.Session, error) {
	email = core.CleanString(email, true)

	if _, err := mail.ParseAddress(email); err != nil {
		return auth.Identity{}, nil, auth.ErrInvalidEmail
	}
	if err := ValidatePassword(password, email); err != nil {
		return auth.Identity{}, nil, err
	}

	acct := auth.Account{
		Email:     email,
		Confirmed: !p.conf.RequireEmailConfirm,
		CreatedAt: time.Now().UTC(),
	}
	if err := acct.SetPassword(password); err != nil {
		return auth.Identity{}, nil, errors.Wrap(err, "hashing password")
	}

	acct, err := p.accounts.CreateAccount(ctx, acct)
	if err != nil {
		if errors.Cause(err) == auth.ErrAccountExists {
			return auth.Identity{}, nil, auth.ErrAccountExists
		}
		return auth.Identity{}, nil, errors.Wrap(err, "creating account")
	}

	ident := auth.Identity{ID: acct.ID, Email: acct.Email}

	if !acct.Confirmed {
		p.sendConfirmationMail(acct)
		return ident, nil, nil
	}

	sess, err := p.openSession(acct)
	if err != nil {
		return auth.Identity{}, nil, err
	}
	return ident, sess, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.notify(auth.EventSignedOut, nil)
	return nil
}

func (p *Provider) GetSession(ctx context.Context) (*auth.Session, error) {
	if token, ok := auth.TokenFromContext(ctx); ok {
		ident, expiresAt, err := p.VerifyToken(token)
		if err != nil {
			return nil, nil // invalid or expired token: signed out
		}
		return &auth.Session{Identity: ident, Token: token, ExpiresAt: expiresAt}, nil
	}

	p.mu.RLock()
	sess := p.current
	p.mu.RUnlock()
	if sess == nil || time.Now().After(sess.ExpiresAt) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (p *Provider) OnAuthStateChange(callback func(event auth.Event, session *auth.Session)) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, callback)
	p.mu.Unlock()
}

// ConfirmEmail activates the account identified by the base64-encoded uid,
// provided the confirmation token is valid and unexpired.
func (p *Provider) ConfirmEmail(ctx context.Context, uid, token string) error {
	id, err := decodeUID(uid)
	if err != nil {
		return errInvalidToken
	}
	acct, err := p.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == auth.ErrAccountNotFound {
			return errInvalidToken
		}
		return errors.Wrap(err, "finding account by id")
	}
	if acct.Confirmed {
		return nil
	}
	if err = verifyToken(acct, token, p.conf); err != nil {
		return err
	}
	return errors.Wrap(p.accounts.ActivateAccount(ctx, acct.ID), "activating account")
}

// VerifyToken parses and verifies a session token, returning its identity
// and expiry.
func (p *Provider) VerifyToken(token string) (auth.Identity, time.Time, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.conf.SecretKey, nil
	})
	if err != nil || !parsed.Valid {
		return auth.Identity{}, time.Time{}, errInvalidToken
	}
	ident := auth.Identity{ID: claims.Subject, Email: claims.Email}
	return ident, time.Unix(claims.ExpiresAt, 0), nil
}

// GenerateToken generates a signed JWT token string representing the claims.
func (p *Provider) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(p.conf.SecretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (p *Provider) getClaims(acct auth.Account) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    p.conf.AppName,
			Subject:   acct.ID,
			ExpiresAt: now.Add(p.conf.SessionExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: acct.Email,
	}
}

func (p *Provider) openSession(acct auth.Account) (*auth.Session, error) {
	claims := p.getClaims(acct)
	token, err := p.GenerateToken(claims)
	if err != nil {
		return nil, err
	}
	sess := &auth.Session{
		Identity:  auth.Identity{ID: acct.ID, Email: acct.Email},
		Token:     token,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
	p.notify(auth.EventSignedIn, sess)
	return sess, nil
}

func (p *Provider) notify(event auth.Event, sess *auth.Session) {
	p.mu.RLock()
	cbs := make([]func(auth.Event, *auth.Session), len(p.callbacks))
	copy(cbs, p.callbacks)
	p.mu.RUnlock()
	for _, cb := range cbs {
		cb(event, sess)
	}
}

func (p *Provider) sendConfirmationMail(acct auth.Account) {
	token, err := MakeToken(acct, p.conf)
	if err != nil {
		p.logger.Error("generating email confirmation token", "err", err)
		return
	}
	link := fmt.Sprintf("%s/auth/confirm?uid=%s&token=%s", p.conf.FrontendBaseURL, EncodeUID(acct), token)
	p.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: acct.Email}},
		Subject: "Confirm your email address",
		BodyStr: fmt.Sprintf(
			"Welcome to %s!\n\nPlease confirm your email address by following this link:\n%s\n",
			p.conf.AppName, link,
		),
	})
}
