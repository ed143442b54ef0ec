package waitlist

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/i18n"
	"github.com/akeren/lasting-loves-waitlist/pkg/mailer"
)

//go:embed templates/welcome.html
var templateFS embed.FS

var welcomeTemplate = template.Must(template.ParseFS(templateFS, "templates/welcome.html"))

type welcomeView struct {
	Locale   string
	Subject  string
	Greeting string
	Body     string
	Signoff  string
	Team     string
	Footer   string
}

// WelcomeRenderer builds the welcome email. Output depends only on its
// arguments and the year of the injected clock.
type WelcomeRenderer struct {
	translator *i18n.Translator
	now        func() time.Time
}

func NewWelcomeRenderer(translator *i18n.Translator, now func() time.Time) *WelcomeRenderer {
	if now == nil {
		now = time.Now
	}
	return &WelcomeRenderer{translator: translator, now: now}
}

func (r *WelcomeRenderer) Render(email, name, locale string) (*mailer.Message, error) {
	name = strings.TrimSpace(name)

	greeting := r.translator.T(locale, "WelcomeGreetingAnonymous", nil)
	if name != "" {
		greeting = r.translator.T(locale, "WelcomeGreeting", map[string]any{"Name": name})
	}

	view := welcomeView{
		Locale:   locale,
		Subject:  r.translator.T(locale, "WelcomeSubject", nil),
		Greeting: greeting,
		Body:     r.translator.T(locale, "WelcomeBody", nil),
		Signoff:  r.translator.T(locale, "WelcomeSignoff", nil),
		Team:     r.translator.T(locale, "WelcomeTeam", nil),
		Footer:   r.translator.T(locale, "WelcomeFooter", map[string]any{"Year": r.now().Year()}),
	}

	var html bytes.Buffer
	if err := welcomeTemplate.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render welcome email: %w", err)
	}

	return &mailer.Message{
		To:      mailer.Address{Name: name, Email: email},
		Subject: view.Subject,
		Text:    view.Greeting + "\n\n" + view.Body + "\n\n" + view.Signoff + "\n" + view.Team,
		HTML:    html.String(),
	}, nil
}
