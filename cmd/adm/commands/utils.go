package commands

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"quizinsight/internal/services"
	contextutils "quizinsight/internal/utils"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// withPassword returns dbURL with its password replaced, keeping the username
func withPassword(dbURL, password string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", contextutils.InvalidInputf("invalid database url: %v", err)
	}
	username := ""
	if u.User != nil {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}

// promptPassword reads a password from the terminal without echoing it
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", contextutils.InvalidInputf("cannot prompt for a password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to read password")
	}
	return string(password), nil
}

// confirm asks a yes/no question when stdin is a terminal. Non-interactive runs need --yes.
func confirm(in io.Reader, out io.Writer, question string) bool {
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false
	}
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// getDatabaseInfo returns database connection information
func getDatabaseInfo(ctx context.Context, db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}
	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}

// readAnswers loads submitted answers (global index to choice label) from a JSON or YAML file
func readAnswers(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.InvalidInputf("cannot read answers file %s: %v", path, err)
	}

	answers := map[int]string{}
	switch services.FormatFromPath(path) {
	case services.ImportFormatYAML:
		err = yaml.Unmarshal(data, &answers)
	default:
		err = json.Unmarshal(data, &answers)
	}
	if err != nil {
		return nil, contextutils.InvalidInputf("answers file %s must map question indexes to labels: %v", path, err)
	}
	return answers, nil
}

// printJSON writes v as indented JSON
func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
