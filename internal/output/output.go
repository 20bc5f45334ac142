package output

import (
	"fmt"
	"io"
)

// NewFormatter creates a formatter based on format type
func NewFormatter(format string, config Config) (Formatter, error) {
	switch OutputFormat(format) {
	case FormatSummary, "":
		return NewSummaryFormatter(config), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteTo writes formatted output, ending it with a newline
func WriteTo(data []byte, writer io.Writer) error {
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := io.WriteString(writer, "\n"); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
