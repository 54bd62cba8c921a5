// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/passgate/passgate/internal/credential"
)

// ruleDescriptions explains each policy rule to an operator.
var ruleDescriptions = map[string]string{
	credential.RuleTooShort:        "shorter than 8 characters",
	credential.RuleNoAlphanumeric:  "contains no letter or digit",
	credential.RuleAscendingDigits: "contains 3 or more ascending digit pairs (like 1234)",
}

// NewCheckPasswordCmd creates the check-password subcommand.
func NewCheckPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password",
		Short: "Check a password against the registration policy",
		Long: `Read a password from the terminal without echo (or one line from
standard input when it is not a terminal) and report whether registration
would accept it.`,
		Args: cobra.NoArgs,
		RunE: runCheckPassword,
	}
}

func runCheckPassword(cmd *cobra.Command, _ []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	if err := credential.CheckPassword(password); err != nil {
		rule := "unknown"
		if oopsErr, ok := oops.AsOops(err); ok {
			if r, ok := oopsErr.Context()["rule"].(string); ok {
				rule = r
			}
		}
		desc, ok := ruleDescriptions[rule]
		if !ok {
			desc = rule
		}
		cmd.Printf("rejected: %s (%s)\n", desc, rule)
		return oops.Code("PASSWORD_REJECTED").With("rule", rule).Errorf("password rejected")
	}

	cmd.Println("accepted")
	return nil
}

// readPassword reads without echo from a terminal, otherwise one line from
// the command's input.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print("Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
