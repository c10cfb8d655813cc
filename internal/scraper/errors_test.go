package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeverityFor(t *testing.T) {
	require.Equal(t, SeverityCritical, SeverityFor(ErrorTypeDatabase))
	require.Equal(t, SeverityHigh, SeverityFor(ErrorTypeBrowser))
	require.Equal(t, SeverityMedium, SeverityFor(ErrorTypeRateLimit))
	require.Equal(t, SeverityLow, SeverityFor(ErrorTypeValidation))
	require.Equal(t, SeverityHigh, SeverityFor(ErrorType("made-up")))
}

func TestClassifyError(t *testing.T) {
	se := NewScrapeError(ErrorTypeContent, "empty body", nil)
	require.Equal(t, ErrorTypeContent, ClassifyError(se))

	wrapped := fmt.Errorf("fetch page: %w", NewScrapeError(ErrorTypeBrowser, "render timeout", nil))
	require.Equal(t, ErrorTypeBrowser, ClassifyError(wrapped))

	require.Equal(t, ErrorTypeNetwork, ClassifyError(context.DeadlineExceeded))
	require.Equal(t, ErrorTypeNetwork, ClassifyError(fmt.Errorf("job: %w", context.Canceled)))
	require.Equal(t, ErrorTypeUnknown, ClassifyError(errors.New("mystery")))
}

func TestScrapeErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	se := NewScrapeError(ErrorTypeNetwork, "get homepage", cause)
	require.ErrorIs(t, se, cause)
	require.Equal(t, "get homepage: boom", se.Error())
}
