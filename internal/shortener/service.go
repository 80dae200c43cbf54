package shortener

import (
	"context"
	"errors"
	"time"

	"github.com/snaplink/snaplink/codegen"
	"github.com/snaplink/snaplink/internal/errx"
)

const (
	DefaultCodeLength     = 6
	MaxCodeLength         = 64
	DefaultCodeMaxRetries = 4
)

// Sentinel causes for blocked resolutions. They travel inside errx errors;
// the kind carries the outcome, these carry the message.
var (
	ErrLinkExpired      = errors.New("link has expired")
	ErrPasswordRequired = errors.New("password required")
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	OriginalURL   string
	CustomAlias   string // Optional: if empty, a code will be generated
	ExpiresInDays int    // Optional: 0 means the link never expires
	Password      string // Optional: empty means no password gate
}

// Service defines the business logic operations for URL shortening.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	Resolve(ctx context.Context, code, suppliedPassword string) (string, error)
	Analytics(ctx context.Context, code string) (LinkAnalytics, error)
	ListAll(ctx context.Context) ([]LinkStats, error)
	Delete(ctx context.Context, code string) error
}

// service implements the Service interface.
type service struct {
	links          LinkRepository
	clicks         ClickRepository
	codeGenerator  codegen.Generator
	codeLength     int
	codeMaxRetries int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator  codegen.Generator
	CodeLength     int
	CodeMaxRetries int // attempts when generating a unique code (default: 4)
}

// NewService creates a new service instance.
func NewService(links LinkRepository, clicks ClickRepository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codeGen := config.CodeGenerator
	if codeGen == nil {
		codeGen = codegen.NewBase62()
	}

	codeLength := config.CodeLength
	if codeLength <= 0 || codeLength > MaxCodeLength {
		codeLength = DefaultCodeLength
	}

	retries := config.CodeMaxRetries
	if retries <= 0 {
		retries = DefaultCodeMaxRetries
	}

	return &service{
		links:          links,
		clicks:         clicks,
		codeGenerator:  codeGen,
		codeLength:     codeLength,
		codeMaxRetries: retries,
	}
}

// Create creates a new short link with optional custom alias, expiry and
// password gate. The destination URL is stored as supplied; this layer does
// not judge its well-formedness.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	if req.OriginalURL == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("url cannot be empty"))
	}
	if req.ExpiresInDays < 0 {
		return Link{}, errx.E(op, errx.Invalid, errors.New("expires_in_days cannot be negative"))
	}

	link := Link{OriginalURL: req.OriginalURL}

	if req.ExpiresInDays > 0 {
		expiresAt := time.Now().Add(time.Duration(req.ExpiresInDays) * 24 * time.Hour)
		link.ExpiresAt = &expiresAt
	}
	if req.Password != "" {
		password := req.Password
		link.Password = &password
	}

	// Alias path: the alias is used verbatim, create once. A taken alias
	// surfaces as Conflict; the caller picks another, we never retry.
	if req.CustomAlias != "" {
		if len(req.CustomAlias) > MaxCodeLength {
			return Link{}, errx.E(op, errx.Invalid, errors.New("alias too long"))
		}

		link.Code = req.CustomAlias
		created, err := s.links.Create(ctx, link)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		return created, nil
	}

	// Generated code path: retry fresh codes on conflicts
	for range s.codeMaxRetries {
		code, err := s.codeGenerator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		link.Code = code
		created, err := s.links.Create(ctx, link)
		if err == nil {
			return created, nil
		}

		// Retry on conflict, fail on other errors
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique code after retries"))
}

func (s *service) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.GetByCode"

	if code == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// Resolve decides the outcome for a redirect request. The checks run in a
// fixed order and short-circuit on the first failure:
//
//	existence -> expiration -> password -> success
//
// so an expired, password-protected link reports Gone, never Unauthorized.
// A click is recorded exactly once, only on the success path.
func (s *service) Resolve(ctx context.Context, code, suppliedPassword string) (string, error) {
	const op = "shortener.service.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	// Wall clock at resolution time: a link flips from valid to expired
	// between two calls with no state change.
	if link.Expired(time.Now()) {
		return "", errx.E(op, errx.Gone, ErrLinkExpired)
	}

	// Plain equality, case-sensitive, no normalization. Not timing-safe;
	// the gate is a shared hint, not an authentication system.
	if link.PasswordProtected() && suppliedPassword != *link.Password {
		return "", errx.E(op, errx.Unauthorized, ErrPasswordRequired)
	}

	if err := s.clicks.Record(ctx, code); err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	return link.OriginalURL, nil
}

// Analytics reports the click count for a code. It is never gated: expired
// and password-protected links report like any other.
func (s *service) Analytics(ctx context.Context, code string) (LinkAnalytics, error) {
	const op = "shortener.service.Analytics"

	if code == "" {
		return LinkAnalytics{}, errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return LinkAnalytics{}, errx.E(op, errx.KindOf(err), err)
	}

	count, err := s.clicks.CountFor(ctx, code)
	if err != nil {
		return LinkAnalytics{}, errx.E(op, errx.KindOf(err), err)
	}

	return LinkAnalytics{
		Code:        link.Code,
		OriginalURL: link.OriginalURL,
		TotalClicks: count,
	}, nil
}

func (s *service) ListAll(ctx context.Context) ([]LinkStats, error) {
	const op = "shortener.service.ListAll"

	stats, err := s.links.ListAll(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return stats, nil
}

// Delete removes a link and its click events. The two deletes are separate
// statements, not a transaction; a crash in between leaves orphan clicks,
// which the data model tolerates. Idempotent for unknown codes.
func (s *service) Delete(ctx context.Context, code string) error {
	const op = "shortener.service.Delete"

	if code == "" {
		return errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	if err := s.links.Delete(ctx, code); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if err := s.clicks.DeleteAllFor(ctx, code); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}
