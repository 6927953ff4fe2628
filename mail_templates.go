package membership

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

//go:embed data/templates/mail
var mailTemplatesFS embed.FS

// Mail template names
const (
	TemplateVerifyEmail = "verify_email"
	TemplateRecoverKey  = "recover_key"
)

// DefaultSiteName is shown in email bodies when no site name is configured
const DefaultSiteName = "the member portal"

// MailComposer renders the bodies of the flow emails
type MailComposer struct {
	engine   *django.Engine
	siteName string
	baseURL  string
}

// ComposerOption configures a MailComposer
type ComposerOption func(*MailComposer)

func WithSiteName(name string) ComposerOption {
	return func(c *MailComposer) {
		if name != "" {
			c.siteName = name
		}
	}
}

// WithTemplatesFS replaces the embedded templates. fsys must hold
// verify_email.jinja2 and recover_key.jinja2 at its root.
func WithTemplatesFS(fsys fs.FS) ComposerOption {
	return func(c *MailComposer) {
		if fsys != nil {
			c.engine = django.NewFileSystem(http.FS(fsys), ".jinja2")
		}
	}
}

// NewMailComposer loads the templates. Links are built from cfg.GetBaseURL.
func NewMailComposer(cfg Config, opts ...ComposerOption) (*MailComposer, error) {
	c := &MailComposer{
		siteName: DefaultSiteName,
	}
	if cfg != nil {
		c.baseURL = strings.TrimRight(cfg.GetBaseURL(), "/")
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.engine == nil {
		sub, err := fs.Sub(mailTemplatesFS, "data/templates/mail")
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open mail templates")
		}
		c.engine = django.NewFileSystem(http.FS(sub), ".jinja2")
	}

	// plain text bodies
	c.engine.SetAutoEscape(false)

	if err := c.engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}

	return c, nil
}

// VerifyEmailLink is the confirmation link for a verify-email token
func (c *MailComposer) VerifyEmailLink(token string) string {
	return c.baseURL + "/verify/" + token + "/"
}

// RecoverKeyLink is the reset link for a recover-key token
func (c *MailComposer) RecoverKeyLink(token string) string {
	return c.baseURL + "/reset/" + token + "/"
}

// VerifyEmail builds the message sent to a new address
func (c *MailComposer) VerifyEmail(to, name, token string) (Message, error) {
	body, err := c.render(TemplateVerifyEmail, map[string]any{
		"name": name,
		"site": c.siteName,
		"link": c.VerifyEmailLink(token),
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: "Verify your email at " + c.siteName,
		Body:    body,
	}, nil
}

// RecoverKey builds the password reset message
func (c *MailComposer) RecoverKey(to, name, token string) (Message, error) {
	body, err := c.render(TemplateRecoverKey, map[string]any{
		"name": name,
		"site": c.siteName,
		"link": c.RecoverKeyLink(token),
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: "Reset your password at " + c.siteName,
		Body:    body,
	}, nil
}

func (c *MailComposer) render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := c.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{
				"template": name,
			})
	}
	return buf.String(), nil
}
