// Package admin holds the interactive helpers behind the createuser command.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/beepdata/internal/common"
	"github.com/dmitrijs2005/beepdata/internal/server/models"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword reads a password from the terminal without echo. The caller
// should wipe the returned slice when done with it.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, username, password, email string) (*models.User, error)
}

// CreateUser asks for username, email and a confirmed password, then
// registers the account.
func CreateUser(ctx context.Context, reader *bufio.Reader, w io.Writer, r Registrar) (*models.User, error) {
	username, err := GetSimpleText(reader, "Username", w)
	if err != nil {
		return nil, err
	}
	email, err := GetSimpleText(reader, "Email (optional)", w)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	password, err := GetPassword(w, "Password: ")
	if err != nil {
		return nil, err
	}
	confirm, err := GetPassword(w, "Password (again): ")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(password)
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return nil, errors.New("passwords do not match")
	}

	return r.Register(ctx, username, string(password), email)
}
