package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// bufferedStdin wraps the command's input for line prompts.
func bufferedStdin(cmd *cobra.Command) *bufio.Reader {
	return bufio.NewReader(cmd.InOrStdin())
}

// promptLine prints label and reads one line. An empty answer returns def.
func promptLine(r *bufio.Reader, w io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}
	input, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		if err == io.EOF && def != "" {
			return def, nil
		}
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// promptYesNo asks a yes/no question; an empty answer returns def.
func promptYesNo(r *bufio.Reader, w io.Writer, label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := promptLine(r, w, fmt.Sprintf("%s (%s)", label, hint), "")
	if err != nil {
		return def, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// promptPassword reads a secret without echo when stdin is a terminal, and
// a plain line otherwise (pipes, tests).
func promptPassword(w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
