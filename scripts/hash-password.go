// Command hash-password prints the ADMIN_PASSWORD_HASH line for the admin
// gate. The password comes from the first argument or, when absent, stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const cost = 12

func main() {
	password, err := readPassword()
	if err != nil || password == "" {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-password.go <password>\n   or: echo <password> | go run scripts/hash-password.go\n")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}

func readPassword() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
