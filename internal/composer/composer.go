// Package composer renders ranked hits into a confidence-grouped answer.
package composer

import (
	"fmt"
	"strings"

	"casebot/internal/domain"
)

// Labels holds the fixed wording of a composed answer.
type Labels struct {
	Secured     string
	Unconfirmed string
	Sources     string
	NoData      string
}

var (
	// English is the default label set.
	English = Labels{
		Secured:     "[SECURED]",
		Unconfirmed: "[UNCONFIRMED]",
		Sources:     "Sources:",
		NoData:      "No data in the index. Please try again later.",
	}
	// German is the label set used by the German-language deployment.
	German = Labels{
		Secured:     "[GESICHERT]",
		Unconfirmed: "[UNBESTÄTIGT]",
		Sources:     "Quellen:",
		NoData:      "Keine Daten im Index. Bitte später erneut versuchen.",
	}
)

// LabelsFor returns the label set for a locale code ("en", "de"). Unknown codes get English.
func LabelsFor(locale string) Labels {
	switch strings.ToLower(locale) {
	case "de", "de-de", "german":
		return German
	default:
		return English
	}
}

// Composer turns hits into answer text. The zero value uses English labels.
type Composer struct {
	labels Labels
}

// New returns a Composer using labels.
func New(labels Labels) Composer {
	return Composer{labels: labels}
}

func (c Composer) lbl() Labels {
	if c.labels == (Labels{}) {
		return English
	}
	return c.labels
}

// Compose groups hits into a SECURED section followed by an UNCONFIRMED
// section, each in the order received. Hits with any other status are left
// out. If neither section has entries the no-data message is returned.
func (c Composer) Compose(hits []domain.Hit) string {
	l := c.lbl()
	var secured, unconfirmed []domain.Fact
	for _, h := range hits {
		switch h.Fact.Status {
		case domain.StatusSecured:
			secured = append(secured, h.Fact)
		case domain.StatusUnconfirmed:
			unconfirmed = append(unconfirmed, h.Fact)
		}
	}
	if len(secured) == 0 && len(unconfirmed) == 0 {
		return l.NoData
	}

	var sections []string
	if len(secured) > 0 {
		sections = append(sections, c.section(l.Secured, secured))
	}
	if len(unconfirmed) > 0 {
		sections = append(sections, c.section(l.Unconfirmed, unconfirmed))
	}
	return strings.Join(sections, "\n\n")
}

func (c Composer) section(header string, facts []domain.Fact) string {
	lines := make([]string, 0, len(facts)+1)
	lines = append(lines, header)
	for _, f := range facts {
		lines = append(lines, c.Line(f))
	}
	return strings.Join(lines, "\n")
}

// Line renders a single fact as "– (date) text — Sources: a; b".
func (c Composer) Line(f domain.Fact) string {
	return fmt.Sprintf("– (%s) %s — %s %s", f.Date, f.Text, c.lbl().Sources, strings.Join(f.Sources, "; "))
}
