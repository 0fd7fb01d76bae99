package contextutils

import (
	"net/url"
	"strings"
)

const maskedCredential = "***"

// MaskDatabaseURL hides the credentials of a connection URL so it can be printed or logged.
// Unparseable input falls back to cutting everything before the last "@".
func MaskDatabaseURL(dbURL string) string {
	if !strings.Contains(dbURL, "@") {
		return dbURL
	}

	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return "postgres://" + maskedCredential + ":" + maskedCredential + dbURL[strings.LastIndex(dbURL, "@"):]
	}
	// url.UserPassword would percent-escape the mask, so splice it in by hand
	u.User = nil
	rest := strings.TrimPrefix(u.String(), u.Scheme+"://")
	return u.Scheme + "://" + maskedCredential + ":" + maskedCredential + "@" + rest
}
