package authcore

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/limiter"
	"github.com/halcyondev/authcore/onetime"
	"github.com/halcyondev/authcore/password"
	"github.com/halcyondev/authcore/session"
	"github.com/halcyondev/authcore/token"
	"github.com/halcyondev/authcore/twofactor"
)

// Builder assembles an [Engine]. Configure it with the With* methods and
// call Build once.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	users    UserProvider
	notifier Notifier
	logger   *slog.Logger
	sink     audit.Sink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing all volatile state.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUsers sets the account storage. Required.
func (b *Builder) WithUsers(users UserProvider) *Builder {
	b.users = users
	return b
}

// WithNotifier sets the delivery channel for reset and verification tokens.
// Without one, RequestPasswordReset and RequestEmailVerification fail.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit event destination. Without one, enabled
// auditing logs through the engine's logger.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user provider required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := password.NewHasher(
		password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		password.Policy{
			MinLength:      cfg.Password.MinLength,
			MaxLength:      cfg.Password.MaxLength,
			RequireUpper:   cfg.Password.RequireUpper,
			RequireLower:   cfg.Password.RequireLower,
			RequireDigit:   cfg.Password.RequireDigit,
			RequireSpecial: cfg.Password.RequireSpecial,
		},
	)
	if err != nil {
		return nil, err
	}

	dummyHash, err := hasher.Hash(dummyPassword(cfg.Password))
	if err != nil {
		return nil, fmt.Errorf("prime dummy hash: %w", err)
	}

	accessKeys, err := signingKeys(cfg.Token.SigningMethod, cfg.Token.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("access signing key: %w", err)
	}
	refreshKeys, err := signingKeys(cfg.Token.SigningMethod, cfg.Token.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh signing key: %w", err)
	}

	tokens, err := token.NewService(token.ServiceConfig{
		Access: token.ManagerConfig{
			TTL:           cfg.Token.AccessTTL,
			SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    accessKeys.private,
			PublicKey:     accessKeys.public,
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
		},
		Refresh: token.ManagerConfig{
			TTL:           cfg.Token.RefreshTTL,
			SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    refreshKeys.private,
			PublicKey:     refreshKeys.public,
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
		},
	}, token.NewRevocations(b.redis, "arv"))
	if err != nil {
		return nil, err
	}

	sink := b.sink
	if sink == nil {
		sink = audit.NewSlogSink(logger)
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		notifier: b.notifier,
		logger:   logger,
		hasher:   hasher,
		limiter: limiter.New(b.redis, "alm", limiter.Config{
			MaxAttempts: cfg.Limiter.MaxAttempts,
			Window:      cfg.Limiter.Window,
			TrackIP:     cfg.Limiter.TrackIP,
		}),
		sessions: session.NewStore(b.redis, cfg.Session.Prefix, session.Config{
			AbsoluteLifetime: cfg.Session.AbsoluteLifetime,
			SlidingLifetime:  cfg.Session.SlidingLifetime,
			MaxPerUser:       cfg.Session.MaxPerUser,
		}),
		tokens: tokens,
		totp: twofactor.New(twofactor.Config{
			Issuer: cfg.TwoFactor.Issuer,
			Digits: cfg.TwoFactor.Digits,
			Period: cfg.TwoFactor.Period,
			Skew:   cfg.TwoFactor.Skew,
		}),
		secrets: onetime.New(b.redis, cfg.OneTime.Prefix),
		auditor: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		metrics:   &Metrics{},
		dummyHash: dummyHash,
		now:       time.Now,
	}

	b.built = true
	return engine, nil
}

// dummyPassword builds a candidate that satisfies any policy the config can
// express, so the dummy hash can be primed at build time.
func dummyPassword(cfg PasswordConfig) string {
	const block = "Aa0!xyzw"
	out := ""
	for len(out) < cfg.MinLength {
		out += block
	}
	if len(out) > cfg.MaxLength {
		out = out[:cfg.MaxLength]
	}
	return out
}

type keyPair struct {
	private []byte
	public  []byte
}

// signingKeys derives the signer key material from the configured secret:
// the raw bytes for hs256, or an expanded base64 seed for ed25519.
func signingKeys(method, secret string) (keyPair, error) {
	switch method {
	case "hs256":
		return keyPair{private: []byte(secret)}, nil
	case "ed25519":
		seed, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return keyPair{}, fmt.Errorf("decode ed25519 seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return keyPair{}, fmt.Errorf("ed25519 seed must be %d bytes", ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		return keyPair{
			private: priv,
			public:  priv.Public().(ed25519.PublicKey),
		}, nil
	default:
		return keyPair{}, fmt.Errorf("unknown signing method %q", method)
	}
}
