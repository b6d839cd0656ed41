package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"immo_scrooper/logging"
	"immo_scrooper/models"
)

// Notifier delivers one listing to a human.
type Notifier interface {
	Notify(ctx context.Context, l *models.NormalizedListing) error
}

// LogNotifier writes the message to the log. It stands in when no bot token
// is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, l *models.NormalizedListing) error {
	logging.Infof("notify", "%s", strings.ReplaceAll(Format(l), "\n", " | "))
	return nil
}

var printer = message.NewPrinter(language.German)

// Format renders a listing as a Telegram HTML message.
func Format(l *models.NormalizedListing) string {
	var b strings.Builder
	b.WriteString("🏠 <b>Neue passende Wohnung</b>\n")
	if l.Title != nil {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(*l.Title))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "📍 <b>Lage:</b> %s - %s\n", orNA(l.District), orNA(l.Address))
	fmt.Fprintf(&b, "💰 <b>Preis:</b> %s\n", euros(l.PriceTotal))
	if l.AreaM2 != nil {
		fmt.Fprintf(&b, "📐 <b>Fläche:</b> %s m²\n", printer.Sprintf("%.1f", *l.AreaM2))
	}
	fmt.Fprintf(&b, "💸 <b>Preis pro m²:</b> %s\n", euros(l.PricePerM2))
	if l.Rooms != nil {
		fmt.Fprintf(&b, "🛏️ <b>Zimmer:</b> %g\n", *l.Rooms)
	}
	if m := l.TransitMinutes(); m != nil {
		fmt.Fprintf(&b, "🚇 <b>U-Bahn:</b> %d min zu Fuß\n", *m)
	}
	if l.YearBuilt != nil {
		fmt.Fprintf(&b, "🏗️ <b>Baujahr:</b> %d\n", *l.YearBuilt)
	}
	if l.Mortgage != nil {
		fmt.Fprintf(&b, "💳 <b>Monatsrate:</b> %s\n", euros(&l.Mortgage.MonthlyPayment))
	}
	if l.Score != nil {
		fmt.Fprintf(&b, "⭐ <b>Score:</b> %.1f\n", *l.Score)
	}
	fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Zum Inserat</a>", html.EscapeString(l.URL))
	return b.String()
}

func euros(v *float64) string {
	if v == nil {
		return "k.A."
	}
	return printer.Sprintf("€ %.0f", *v)
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "k.A."
	}
	return html.EscapeString(*s)
}
