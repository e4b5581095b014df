package migration

import (
	"fmt"
	"strings"
)

// Subcommands of the migration helper
const (
	CommandCreate = "create"
	CommandUp     = "up"
	CommandDown   = "down"
)

const (
	// Usage is printed for a missing or unknown subcommand
	Usage = "Usage: bloomctl migrate {create <message>|up|down}"
	// CreateUsage is printed when create has no message
	CreateUsage = "Usage: bloomctl migrate create <message>\n" +
		`Example: bloomctl migrate create "add account types table"`
)

// Command is a parsed migration helper invocation
type Command struct {
	Name    string
	Message string // only for create
}

// UsageError reports a malformed invocation; Usage is what to print.
type UsageError struct {
	Reason string
	Usage  string
}

func (e *UsageError) Error() string {
	return e.Reason
}

// ParseCommand dispatches the helper's arguments. Anything other than
// create <message>, up or down is a usage error.
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &UsageError{Reason: "missing migration command", Usage: Usage}
	}

	switch args[0] {
	case CommandCreate:
		var message string
		if len(args) > 1 {
			message = strings.TrimSpace(args[1])
		}
		if message == "" {
			return Command{}, &UsageError{Reason: "migration message required", Usage: CreateUsage}
		}
		return Command{Name: CommandCreate, Message: message}, nil
	case CommandUp, CommandDown:
		return Command{Name: args[0]}, nil
	default:
		return Command{}, &UsageError{
			Reason: fmt.Sprintf("unknown migration command %q", args[0]),
			Usage:  Usage,
		}
	}
}
