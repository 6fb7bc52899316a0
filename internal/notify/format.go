package notify

import (
	"context"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	successKey = "%d rows updated in %s"
	failureKey = "%d of %d rows failed to update in %s"
)

func init() {
	_ = message.Set(language.English, successKey,
		plural.Selectf(1, "%d",
			"=1", "1 row updated in %[2]s",
			"other", "%[1]d rows updated in %[2]s",
		))
}

// Formatter renders notification messages for a language.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for a BCP 47 tag, defaulting to English.
func NewFormatter(lang string) *Formatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Format renders the message for n.
func (f *Formatter) Format(n Notification) string {
	if n.Kind == KindSuccess {
		return f.printer.Sprintf(successKey, n.Committed, n.Table)
	}
	return f.printer.Sprintf(failureKey, len(n.Failed), n.Committed+len(n.Failed), n.Table)
}

// Formatted fills in Message before handing n to next.
func Formatted(f *Formatter, next Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) {
		if n.Message == "" && f != nil {
			n.Message = f.Format(n)
		}
		next.Notify(ctx, n)
	})
}
