package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteAPIKeyGuide explains where to find an API key and how to store it
func WriteAPIKeyGuide(w io.Writer, baseURL string) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "E621 API KEY SETUP")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "An account is optional. Logged in, searches use your blacklist and")
	fmt.Fprintln(w, "can include posts hidden from anonymous users.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in on the site and open your account settings:")
	fmt.Fprintf(w, "     %s/users/home\n", strings.TrimRight(baseURL, "/"))
	fmt.Fprintln(w, "2. Choose \"Manage API Access\" and generate a key.")
	fmt.Fprintln(w, "3. Store it:")
	fmt.Fprintln(w, "     e621dl auth login --username <name> --api-key <key>")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Alternatively export %s and %s.\n", UsernameEnv, APIKeyEnv)
	fmt.Fprintln(w, "Keys are kept in the system keychain when available, otherwise in an")
	fmt.Fprintf(w, "encrypted file (set %s to choose its passphrase).\n", PassphraseEnv)
	fmt.Fprintln(w, rule)
}
