// Package notify surfaces the outcome of every mutation attempt to the user.
//
// It is the command-line counterpart of a toast: one short success or error
// line per attempt. Messages are catalog keys translated at print time.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Level is the kind of notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Message keys. The English text doubles as the key.
const (
	MsgProfileUpdated       = "Profile updated successfully!"
	MsgProfileUpdateFailed  = "Failed to update profile, please try again!"
	MsgRestaurantRegistered = "Restaurant registered successfully!"
	MsgRegistrationFailed   = "Failed to register restaurant."
)

// Notification is one user-visible outcome
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Notifier receives outcomes
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Discard drops every notification
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})

var (
	supported = []language.Tag{language.English, language.BrazilianPortuguese}
	matcher   = language.NewMatcher(supported)
	messages  = newCatalog()
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder()

	pt := map[string]string{
		MsgProfileUpdated:       "Perfil atualizado com sucesso!",
		MsgProfileUpdateFailed:  "Falha ao atualizar o perfil, tente novamente!",
		MsgRestaurantRegistered: "Restaurante cadastrado com sucesso!",
		MsgRegistrationFailed:   "Erro ao cadastrar restaurante.",
	}
	for key, text := range pt {
		b.SetString(language.BrazilianPortuguese, key, text)
		b.SetString(language.English, key, key)
	}
	return b
}

// WriterNotifier prints notifications to w in the configured locale
type WriterNotifier struct {
	mu      sync.Mutex
	w       io.Writer
	printer *message.Printer
	verbose bool
}

// NewWriterNotifier creates a notifier printing to w.
// locale is a BCP 47 tag such as "en" or "pt-BR"; unknown tags fall back to English.
func NewWriterNotifier(w io.Writer, locale string, verbose bool) *WriterNotifier {
	return &WriterNotifier{
		w:       w,
		printer: newPrinter(locale),
		verbose: verbose,
	}
}

// Notify prints one line for n. Error details are appended in verbose mode.
func (wn *WriterNotifier) Notify(ctx context.Context, n Notification) {
	wn.mu.Lock()
	defer wn.mu.Unlock()

	text := localize(wn.printer, n.Message)

	switch n.Level {
	case LevelSuccess:
		fmt.Fprintf(wn.w, "✓ %s\n", text)
	default:
		if wn.verbose && n.Err != nil {
			fmt.Fprintf(wn.w, "✗ %s (%v)\n", text, n.Err)
			return
		}
		fmt.Fprintf(wn.w, "✗ %s\n", text)
	}
}

// Translate returns the text of key in locale
func Translate(locale, key string) string {
	return localize(newPrinter(locale), key)
}

// localize looks key up in the catalog. Keys without a translation are
// printed as they are, verbs included.
func localize(p *message.Printer, key string) string {
	return p.Sprintf(message.Key(key, strings.ReplaceAll(key, "%", "%%")))
}

func newPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	_, i, _ := matcher.Match(tag)
	return message.NewPrinter(supported[i], message.Catalog(messages))
}

// Multi fans a notification out to several notifiers
func Multi(ns ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) {
		for _, x := range ns {
			x.Notify(ctx, n)
		}
	})
}
