package errors

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// DisplayError formats and writes an error with enhanced formatting
func DisplayError(w io.Writer, err error) {
	var apiErr *APIDriftError
	if !errors.As(err, &apiErr) {
		fmt.Fprintln(w, color.RedString("Error: %v", err))
		return
	}

	colorFunc := getErrorStyle(apiErr.Type)

	fmt.Fprintf(w, "\n%s\n", colorFunc(apiErr.Message))

	if apiErr.Cause != "" {
		fmt.Fprintf(w, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(apiErr.Cause))
	}

	if apiErr.Environment != "" {
		fmt.Fprintf(w, "   %s %s\n", color.CyanString("Environment:"), color.HiBlackString(apiErr.Environment))
	}

	if len(apiErr.Solutions) > 0 {
		fmt.Fprintf(w, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range apiErr.Solutions {
			fmt.Fprintf(w, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	if apiErr.Verify != "" {
		fmt.Fprintf(w, "\n   %s %s\n", color.BlueString("Verify:"), color.HiWhiteString(apiErr.Verify))
	}

	if apiErr.Help != "" {
		fmt.Fprintf(w, "   %s %s\n", color.MagentaString("Help:"), color.HiWhiteString(apiErr.Help))
	}

	fmt.Fprintln(w)
}

// getErrorStyle returns the appropriate color function for an error type
func getErrorStyle(errType ErrorType) func(format string, a ...interface{}) string {
	switch errType {
	case ErrorTypeConfiguration, ErrorTypeValidation:
		return color.YellowString
	case ErrorTypeStorage:
		return color.CyanString
	case ErrorTypeFileSystem:
		return color.MagentaString
	default:
		return color.RedString
	}
}

// FormatErrorWithContext formats an error without color for CI logs
func FormatErrorWithContext(err error, context map[string]string) string {
	var sb strings.Builder

	var apiErr *APIDriftError
	if !errors.As(err, &apiErr) {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Error: %s\n", apiErr.Message))
	sb.WriteString(fmt.Sprintf("Type: %s/%s\n", apiErr.Type, apiErr.Backend))

	if apiErr.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause: %s\n", apiErr.Cause))
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nContext:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, context[k]))
		}
	}

	if len(apiErr.Solutions) > 0 {
		sb.WriteString("\nSolutions:\n")
		for i, solution := range apiErr.Solutions {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
	}

	if apiErr.Verify != "" {
		sb.WriteString(fmt.Sprintf("\nVerify: %s\n", apiErr.Verify))
	}

	if apiErr.Help != "" {
		sb.WriteString(fmt.Sprintf("Help: %s\n", apiErr.Help))
	}

	return sb.String()
}

// DisplayWarning shows a warning message
func DisplayWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "Warning: %s\n", color.YellowString(message))
}
