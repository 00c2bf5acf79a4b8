package speech

import "fmt"

// DefaultLanguage is the recognition locale used when none is configured.
const DefaultLanguage = "ru-RU"

// Options configures a recognition session. It is fixed for the lifetime
// of a Manager.
type Options struct {
	// Language is a BCP 47 locale tag.
	Language string
	// Continuous keeps the session open across pauses in speech.
	Continuous bool
	// InterimResults enables provisional results.
	InterimResults bool
	// MaxAlternatives is the number of alternatives requested per result.
	MaxAlternatives int
}

// DefaultOptions returns the manager defaults: ru-RU, continuous, interim
// results on, one alternative.
func DefaultOptions() Options {
	return Options{
		Language:        DefaultLanguage,
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: 1,
	}
}

// DictationOptions returns DefaultOptions with interim results turned off,
// the default for editing surfaces.
func DictationOptions() Options {
	opts := DefaultOptions()
	opts.InterimResults = false
	return opts
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Language == "" {
		return fmt.Errorf("language is required")
	}
	if o.MaxAlternatives < 1 {
		return fmt.Errorf("max alternatives must be at least 1, got %d", o.MaxAlternatives)
	}
	return nil
}
