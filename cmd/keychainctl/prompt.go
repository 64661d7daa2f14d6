package main

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

const (
	genAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}"
	genDefault  = 20
	genMax      = 1024
)

var stdin = bufio.NewReader(os.Stdin)

// promptSecret reads a secret without echo from a terminal, or one line
// from stdin when it is piped.
func promptSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return b, err
	}
	line, err := stdin.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return trimNewline(line), nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// resolvePassword returns arg unchanged, or a fresh password for gen:N.
// A bare "gen:" or an unparsable N generates the default length.
func resolvePassword(arg string) (string, error) {
	if !strings.HasPrefix(arg, "gen:") {
		return arg, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(arg, "gen:"))
	if err != nil || n <= 0 {
		n = genDefault
	}
	if n > genMax {
		return "", fmt.Errorf("gen:%d is longer than %d characters", n, genMax)
	}
	return genPassword(n)
}

func genPassword(n int) (string, error) {
	max := big.NewInt(int64(len(genAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		j, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.New("random source unavailable")
		}
		buf[i] = genAlphabet[j.Int64()]
	}
	return string(buf), nil
}
