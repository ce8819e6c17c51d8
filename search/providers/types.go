package providers

// Track is the standardized result from any music search provider.
type Track struct {
	// Link is the direct audio URL the track can be downloaded from.
	Link string `json:"link"`

	// Artist and Title as the provider reports them.
	Artist string `json:"artist"`
	Title  string `json:"title"`

	// Duration in whole seconds, 0 when the provider does not report one.
	Duration int `json:"duration"`
}

// Complete reports whether the track carries everything needed to offer it
// to a user. Providers drop incomplete rows instead of failing the page.
func (t Track) Complete() bool {
	return t.Link != "" && t.Artist != "" && t.Title != "" && t.Duration > 0
}

// ProviderError represents an error from a provider with additional context
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}
