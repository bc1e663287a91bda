package api

import (
	"fmt"
	"strings"

	"github.com/eugenenazirov/catering-cart/internal/wizard"
)

type messageKey int

const (
	msgBackendUnavailable messageKey = iota
	msgInconsistentCart
	msgPackageNotFound
	msgSessionRequired
	msgWizardGone
	msgWizardTransition
	msgRejected
	msgInvalidRequest
	msgInternal
)

// messages holds shopper-facing texts. German is the storefront default.
var messages = map[string]map[messageKey]string{
	"de": {
		msgBackendUnavailable: "Der Warenkorb ist gerade nicht erreichbar. Bitte versuchen Sie es erneut.",
		msgInconsistentCart:   "Der Warenkorb konnte nicht geladen werden. Bitte laden Sie die Seite neu.",
		msgPackageNotFound:    "Dieses Menü gibt es nicht.",
		msgSessionRequired:    "Ihre Sitzung ist abgelaufen. Bitte melden Sie sich erneut an.",
		msgWizardGone:         "Die Menüauswahl wurde beendet. Bitte beginnen Sie erneut.",
		msgWizardTransition:   "Dieser Schritt ist gerade nicht möglich.",
		msgRejected:           "Die Änderung wurde nicht übernommen.",
		msgInvalidRequest:     "Ungültige Anfrage.",
		msgInternal:           "Es ist ein Fehler aufgetreten. Bitte versuchen Sie es später erneut.",
	},
	"en": {
		msgBackendUnavailable: "The cart is unavailable right now. Please try again.",
		msgInconsistentCart:   "The cart could not be loaded. Please reload the page.",
		msgPackageNotFound:    "This menu does not exist.",
		msgSessionRequired:    "Your session has expired. Please sign in again.",
		msgWizardGone:         "The menu selection has ended. Please start again.",
		msgWizardTransition:   "This step is not possible right now.",
		msgRejected:           "The change was not applied.",
		msgInvalidRequest:     "Invalid request.",
		msgInternal:           "Something went wrong. Please try again later.",
	},
}

type translator struct {
	lang string
}

func newTranslator(locale string) translator {
	lang, _, _ := strings.Cut(locale, "-")
	lang = strings.ToLower(lang)
	if _, ok := messages[lang]; !ok {
		lang = "de"
	}
	return translator{lang: lang}
}

func (t translator) text(key messageKey) string {
	return messages[t.lang][key]
}

func (t translator) validation(err *wizard.ValidationError) string {
	if err.Kind == wizard.KindGuestCount {
		if t.lang == "en" {
			return fmt.Sprintf("At least %d guests required", err.MinimumGuests)
		}
		return fmt.Sprintf("Mindestens %d Gäste erforderlich", err.MinimumGuests)
	}
	if t.lang == "en" {
		return fmt.Sprintf("Please select %d more from %s (selected: %d of %d)", err.Shortfall, err.Category, err.Current, err.Required)
	}
	return fmt.Sprintf("Bitte wählen Sie noch %d aus %s (ausgewählt: %d von %d)", err.Shortfall, err.Category, err.Current, err.Required)
}
