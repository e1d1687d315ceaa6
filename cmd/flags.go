package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// outputFormat is the value of the -o/--output flag.
type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

var outputFormats = []outputFormat{formatTable, formatJSON, formatYAML}

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(value string) error {
	for _, format := range outputFormats {
		if strings.EqualFold(value, string(format)) {
			*f = format
			return nil
		}
	}

	names := make([]string, len(outputFormats))
	for i, format := range outputFormats {
		names[i] = string(format)
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s", value, strings.Join(names, ", "))
}

func (f *outputFormat) Type() string { return "format" }

// addOutputFlag registers -o/--output on cmd.
func addOutputFlag(cmd *cobra.Command, target *outputFormat, defaultFormat outputFormat) {
	*target = defaultFormat
	cmd.Flags().VarP(target, "output", "o", "Output format (table|json|yaml)")
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks that portStr is a usable TCP port.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}
