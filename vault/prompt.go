// prompt.go adapts the teacher's defaultPromptFunc (master_key_manager.go)
// for masked master-password entry at the terminal, using the same
// golang.org/x/term hidden-input idiom.
package vault

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptFunc reads a line of input given a prompt string, used so
// callers (a CLI command, a test) can supply their own source instead
// of the real terminal.
type PromptFunc func(prompt string) (string, error)

// PromptMaskedPassword prints prompt to stdout and reads a password from
// stdin with input echo disabled, matching the teacher's hidden-input
// path for key/password prompts.
func PromptMaskedPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return string(bytePassword), nil
}

// PromptLine reads one line of plain (non-masked) input, for prompts
// that aren't a secret (e.g. a yes/no confirmation).
func PromptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
