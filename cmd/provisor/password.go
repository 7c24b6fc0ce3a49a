package main

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// terminalPasswordProvider prompts for the sudo password once per
// process and caches it, so a plan with several privileged steps only
// interrupts the user a single time.
var (
	cachedPassword     string
	cachedPasswordOnce sync.Once
	cachedPasswordErr  error
)

func terminalPasswordProvider() (string, error) {
	cachedPasswordOnce.Do(func() {
		cachedPassword, cachedPasswordErr = promptPassword()
	})
	return cachedPassword, cachedPasswordErr
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "[sudo] password for provisor: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading sudo password: %w", err)
	}
	return string(bytePassword), nil
}
