package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/rut"
)

// Service implements authentication and account management on top of a Store.
type Service struct {
	store    Store
	tokens   *Tokens
	hasher   PasswordHasher
	attempts AttemptTracker
	logger   *zap.Logger
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// NewUser carries the fields accepted by registration and administrative creation.
type NewUser struct {
	Nombres         []string
	Apellidos       []string
	RUT             string
	FechaNacimiento *time.Time
	Email           string
	Telefono        string
	Password        string
	// Activo defaults to true when nil.
	Activo *bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAttemptTracker enables login lockout.
func WithAttemptTracker(t AttemptTracker) ServiceOption {
	return func(s *Service) error {
		if t != nil {
			s.attempts = t
		}
		return nil
	}
}

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithPasswordHasher overrides the bcrypt hasher (tests use MinCost).
func WithPasswordHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) error {
		s.hasher = h
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token signer is required")
	}
	svc := &Service{
		store:    store,
		tokens:   tokens,
		hasher:   NewPasswordHasher(0),
		attempts: noopAttempts{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Login verifies RUT and password and issues an access token.
func (s *Service) Login(ctx context.Context, rawRUT, password string) (Session, error) {
	parsed, err := rut.Parse(rawRUT)
	if err != nil {
		return Session{}, fieldError(ErrInvalidInput, "rut", "El rut es inválido")
	}
	key := parsed.Dashed()

	locked, err := s.attempts.Locked(ctx, key)
	if err != nil {
		s.logger.Warn("login attempt tracker unavailable", zap.Error(err))
	}
	if locked {
		return Session{}, fieldError(ErrTooManyAttempts, "rut", "Demasiados intentos fallidos. Intenta nuevamente más tarde.")
	}

	user, err := s.store.FindUser(ctx, UserQuery{RUT: key})
	if errors.Is(err, ErrNotFound) {
		s.recordFailure(ctx, key)
		return Session{}, fieldError(ErrBadCredentials, "rut", "El rut es incorrecto")
	}
	if err != nil {
		return Session{}, err
	}
	if !user.Activo {
		return Session{}, fieldError(ErrInactive, "estado", "La cuenta de usuario está inactiva. Por favor, contacta al administrador.")
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrBadCredentials) {
			s.recordFailure(ctx, key)
			return Session{}, fieldError(ErrBadCredentials, "password", "La contraseña es incorrecta")
		}
		return Session{}, err
	}
	if err := s.attempts.Reset(ctx, key); err != nil {
		s.logger.Warn("reset login attempts", zap.Error(err))
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	n, err := s.attempts.Fail(ctx, key)
	if err != nil {
		s.logger.Warn("record login failure", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("login failed", zap.String("rut", key), zap.Int("attempts", n))
	}
}

// Register creates a self-service account holding the Usuario role.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	in, err := s.prepareNewUser(in)
	if err != nil {
		return User{}, err
	}
	if err := s.ensureUnique(ctx, "", in.Email, in.RUT, ""); err != nil {
		return User{}, err
	}
	return s.insertUser(ctx, in)
}

// Authenticate verifies an access token and returns the principal it carries.
func (s *Service) Authenticate(_ context.Context, token string) (Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	return PrincipalFromClaims(claims), nil
}

// PrimaryRole resolves the principal against the store and returns the name
// of the first role assigned to the account. The lookup is live, so it sees
// role changes made after the token was issued.
func (s *Service) PrimaryRole(ctx context.Context, p Principal) (string, error) {
	q := UserQuery{Email: p.Email()}
	if q.Email == "" {
		q = UserQuery{ID: p.ID()}
	}
	if q.Empty() {
		return "", ErrNotFound
	}
	user, err := s.store.FindUser(ctx, q)
	if err != nil {
		return "", err
	}
	if len(user.Roles) == 0 {
		return "", nil
	}
	return user.Roles[0].Nombre, nil
}

// TokenTTL reports the lifetime of issued access tokens.
func (s *Service) TokenTTL() time.Duration { return s.tokens.TTL() }

func (s *Service) prepareNewUser(in NewUser) (NewUser, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Telefono = strings.TrimSpace(in.Telefono)
	in.Nombres = trimAll(in.Nombres)
	in.Apellidos = trimAll(in.Apellidos)
	if len(in.Nombres) == 0 {
		return in, fieldError(ErrInvalidInput, "nombres", "Los nombres son obligatorios")
	}
	if in.Email == "" {
		return in, fieldError(ErrInvalidInput, "email", "El email es obligatorio")
	}
	if in.Password == "" {
		return in, fieldError(ErrInvalidInput, "password", "La contraseña es obligatoria")
	}
	canonical, err := canonicalRUT(in.RUT)
	if err != nil {
		return in, err
	}
	in.RUT = canonical
	return in, nil
}

func (s *Service) insertUser(ctx context.Context, in NewUser) (User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	activo := true
	if in.Activo != nil {
		activo = *in.Activo
	}
	user, err := s.store.CreateUser(ctx, User{
		Nombres:         in.Nombres,
		Apellidos:       in.Apellidos,
		RUT:             in.RUT,
		FechaNacimiento: in.FechaNacimiento,
		Email:           in.Email,
		Telefono:        in.Telefono,
		PasswordHash:    hash,
		Activo:          activo,
	}, []string{RoleUsuario})
	if errors.Is(err, ErrConflict) {
		return User{}, fieldError(err, "", "Ya existe un usuario con el mismo rut, email o telefono")
	}
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("role %s missing from catalog; run the seeder", RoleUsuario)
	}
	return user, err
}

// ensureUnique reports the first field already held by an account other than selfID.
func (s *Service) ensureUnique(ctx context.Context, selfID, email, rutValue, telefono string) error {
	checks := []struct {
		field string
		query UserQuery
		msg   string
	}{
		{"email", UserQuery{Email: email}, "Correo electrónico en uso"},
		{"rut", UserQuery{RUT: rutValue}, "Rut ya asociado a una cuenta"},
		{"telefono", UserQuery{Telefono: telefono}, "Teléfono ya asociado a una cuenta"},
	}
	for _, c := range checks {
		if c.query.Empty() {
			continue
		}
		existing, err := s.store.FindUser(ctx, c.query)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if existing.ID != selfID {
			return fieldError(ErrConflict, c.field, c.msg)
		}
	}
	return nil
}

func canonicalRUT(raw string) (string, error) {
	parsed, err := rut.Parse(raw)
	switch {
	case errors.Is(err, rut.ErrChecksumMismatch):
		return "", fieldError(ErrInvalidInput, "rut", "El dígito verificador del rut es inválido")
	case err != nil:
		return "", fieldError(ErrInvalidInput, "rut", "El rut tiene un formato inválido")
	}
	return parsed.Dashed(), nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
