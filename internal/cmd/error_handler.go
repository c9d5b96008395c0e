package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/config"
	"github.com/KornAlexander/semantic-link-labs/internal/resolve"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var httpErr *api.HTTPError
	var rateLimitErr *api.RateLimitError
	var circuitBreakerErr *api.CircuitBreakerError
	var pageErr *api.PaginationError
	var lroErr *api.LROFailedError
	var timeoutErr *api.LROTimeoutError
	var modeErr *api.UnsupportedModeError
	var structured *api.StructuredError
	var ambiguous *resolve.AmbiguousError
	var notFound *resolve.NotFoundError

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("No credentials configured.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: sll auth login --token <token>\n")
		msg.WriteString("  - Or set SLL_TOKEN for this shell\n")

	case errors.As(err, &rateLimitErr):
		msg.WriteString("Rate limit exceeded.\n\n")
		msg.WriteString("Suggestions:\n")
		fmt.Fprintf(&msg, "  - Wait %s and retry\n", rateLimitErr.RetryAfter)
		msg.WriteString("  - Use --max-rate-limit-retries to retry reads automatically\n")

	case errors.As(err, &circuitBreakerErr):
		msg.WriteString("Service temporarily unavailable (circuit breaker open).\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - The API has had multiple failures recently\n")
		msg.WriteString("  - Wait 30 seconds and retry\n")

	case errors.As(err, &pageErr):
		fmt.Fprintf(&msg, "Pagination failed: %s\n\n", pageErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Retry the listing; the service returned inconsistent continuation data\n")
		msg.WriteString("  - Use --debug to see each page request\n")

	case errors.As(err, &lroErr):
		fmt.Fprintf(&msg, "Operation failed: %s\n\n", lroErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the item definition or request body\n")
		if lroErr.OperationURL != "" {
			fmt.Fprintf(&msg, "  - Operation: %s\n", lroErr.OperationURL)
		}

	case errors.As(err, &timeoutErr):
		fmt.Fprintf(&msg, "Operation timed out: %s\n\n", timeoutErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Raise --max-polls or --poll-interval\n")
		if timeoutErr.OperationURL != "" {
			fmt.Fprintf(&msg, "  - Check later: sll api %s\n", timeoutErr.OperationURL)
		}

	case errors.As(err, &modeErr):
		fmt.Fprintf(&msg, "Error: %s\n", modeErr.Error())

	case errors.Is(err, api.ErrNoOperationLocation):
		fmt.Fprintf(&msg, "Error: %s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Use --mode default for endpoints that do not run as long-running operations\n")

	case errors.As(err, &httpErr):
		fmt.Fprintf(&msg, "%s\n\n", httpErr.Error())
		msg.WriteString(suggestionsForStatusCode(httpErr.StatusCode))
		if httpErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", httpErr.RequestID)
		}

	case errors.As(err, &ambiguous):
		fmt.Fprintf(&msg, "Error: %s\n\n", ambiguous.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Pass the ID instead of the name\n")

	case errors.As(err, &notFound):
		fmt.Fprintf(&msg, "Error: %s\n\n", notFound.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the spelling, or list the available names\n")

	case errors.As(err, &structured):
		fmt.Fprintf(&msg, "Error: %s\n", structured.Message)
		if structured.Suggestion != "" {
			fmt.Fprintf(&msg, "\nSuggestion: %s\n", structured.Suggestion)
		}

	case strings.Contains(err.Error(), "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the base URL: sll auth status\n")
		msg.WriteString("  - Check your network connection\n")

	case strings.Contains(err.Error(), "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the base URL spelling: sll auth status\n")
		msg.WriteString("  - Verify your DNS settings\n")

	case strings.Contains(err.Error(), "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server's certificate\n")
		msg.WriteString("  - Check proxy settings that intercept TLS\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400:
		suggestions.WriteString("  - Check your request parameters\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")

	case 401:
		suggestions.WriteString("  - Your token may be invalid or expired\n")
		suggestions.WriteString("  - Run: sll auth login --token <token>\n")

	case 403:
		suggestions.WriteString("  - You don't have permission for this action\n")
		suggestions.WriteString("  - Check your workspace role\n")

	case 404:
		suggestions.WriteString("  - The resource doesn't exist\n")
		suggestions.WriteString("  - Check the workspace and item names or IDs\n")

	case 409:
		suggestions.WriteString("  - An item with that name may already exist\n")

	case 429:
		suggestions.WriteString("  - Too many requests\n")
		suggestions.WriteString("  - Wait and retry in a few seconds\n")

	case 500, 502, 503, 504:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")

	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}
