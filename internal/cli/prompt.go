package cli

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/offloadhq/offload-client/internal/config"
)

// promptMasterKey reads a master key from the terminal without echoing it,
// falling back to a plain line read when stdin is not a terminal (e.g.
// piped input in scripts or tests).
func promptMasterKey() (string, error) {
	fmt.Fprint(os.Stderr, "Master key: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("cli: failed to read master key: %w", err)
		}
		if len(raw) == 0 {
			return "", config.ErrMissingMasterKey
		}
		return string(raw), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("cli: failed to read master key: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	if line == "" {
		return "", config.ErrMissingMasterKey
	}
	return line, nil
}
