package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Username: "testuser", APIKey: "a1b2c3d4e5f6g7h8i9j0k1l2"}
	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.APIKey != account.APIKey {
		t.Errorf("APIKey mismatch: got %s, want %s", retrieved.APIKey, account.APIKey)
	}
	session := retrieved.Session()
	if !session.Authenticated() || session.Username() != "testuser" {
		t.Errorf("Unexpected session for %s", retrieved.Username)
	}

	sanitized := SanitizeAccount(account)
	if sanitized.APIKey != "a1b2...k1l2" {
		t.Errorf("APIKey should be masked, got %s", sanitized.APIKey)
	}
	if sanitized.Username != account.Username {
		t.Error("Username should not be masked")
	}

	if err := manager.Delete("testuser"); err != nil {
		t.Fatalf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("testuser"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if err := manager.Delete("testuser"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound deleting twice, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsInvalidAccounts(t *testing.T) {
	manager, mockStore := NewMockManager()

	for _, account := range []*Account{
		{Username: "", APIKey: "key"},
		{Username: "user", APIKey: ""},
		{Username: "user", APIKey: "has space"},
	} {
		if err := manager.Store(account); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials for %+v, got %v", account, err)
		}
	}
	if mockStore.Count() != 0 {
		t.Error("Invalid accounts must not be stored")
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = fmt.Errorf("keychain locked")
	fallback := NewMockStore()
	manager := NewManagerWithStores(broken, fallback)

	if err := manager.Store(&Account{Username: "alice", APIKey: "key1"}); err != nil {
		t.Fatalf("Expected fallback store to accept the account: %v", err)
	}
	if !fallback.Exists("alice") {
		t.Error("Account should be in the fallback store")
	}

	broken.StoreError = nil
	fallback.StoreError = fmt.Errorf("disk full")
	broken.ListError = fmt.Errorf("unavailable")
	accounts, err := manager.List()
	if err != nil || len(accounts) != 1 {
		t.Errorf("List should skip failing stores, got %d accounts, err %v", len(accounts), err)
	}
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	store := NewMockStore()
	old := time.Now().Add(-time.Hour)
	_ = store.Store(&Account{Username: "old", APIKey: "k1", LastModified: old})
	_ = store.Store(&Account{Username: "new", APIKey: "k2", LastModified: time.Now()})
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	t.Setenv(UsernameEnv, "")
	t.Setenv(APIKeyEnv, "")
	account, err := manager.RetrieveDefault()
	if err != nil {
		t.Fatal(err)
	}
	if account.Username != "new" {
		t.Errorf("Expected most recent account, got %s", account.Username)
	}

	t.Setenv(UsernameEnv, "envuser")
	t.Setenv(APIKeyEnv, "envkey")
	account, err = manager.RetrieveDefault()
	if err != nil {
		t.Fatal(err)
	}
	if account.Username != "envuser" || account.APIKey != "envkey" {
		t.Errorf("Expected environment account, got %+v", account)
	}

	accounts, _ := manager.List()
	var names []string
	for _, a := range accounts {
		names = append(names, a.Username)
	}
	if strings.Join(names, ",") != "envuser,new,old" {
		t.Errorf("Expected sorted names, got %v", names)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "creds.enc")
	t.Setenv(PassphraseEnv, "test_passphrase_123")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if _, err := store.Retrieve("nobody"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound on a missing file, got %v", err)
	}

	account := &Account{Username: "encrypted_user", APIKey: "secret_api_key_value"}
	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}
	if err := store.Store(&Account{Username: "second", APIKey: "another_key"}); err != nil {
		t.Fatal(err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.APIKey != account.APIKey {
		t.Errorf("APIKey mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("secret_api_key_value")) {
		t.Error("File contains plaintext API key")
	}
	info, _ := os.Stat(tempFile)
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	accounts, _ := store.List()
	if len(accounts) != 2 || accounts[0].Username != "encrypted_user" {
		t.Errorf("Unexpected account list %+v", accounts)
	}

	t.Setenv(PassphraseEnv, "wrong passphrase")
	other, _ := NewEncryptedFileStore(tempFile)
	if _, err := other.Retrieve("encrypted_user"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected a decryption error with the wrong passphrase, got %v", err)
	}

	if err := store.Delete("encrypted_user"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("second"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Error("File should be removed with its last account")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(UsernameEnv, "env_user")
	t.Setenv(APIKeyEnv, "env_key")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Username != "env_user" || account.APIKey != "env_key" {
		t.Errorf("Unexpected account %+v", account)
	}
	if _, err := store.Retrieve("someone_else"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected other usernames not to match, got %v", err)
	}
	if !store.Exists("env_user") {
		t.Error("Expected env_user to exist")
	}

	if err := store.Store(&Account{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}

	t.Setenv(APIKeyEnv, "")
	if accounts, _ := store.List(); len(accounts) != 0 {
		t.Error("Expected no account without an API key")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Mock keyring should be available: %v", err)
	}

	for _, name := range []string{"bob", "alice"} {
		if err := store.Store(&Account{Username: name, APIKey: "key_" + name}); err != nil {
			t.Fatalf("Failed to store %s: %v", name, err)
		}
	}

	accounts, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 || accounts[0].Username != "alice" || accounts[1].APIKey != "key_bob" {
		t.Errorf("Unexpected keyring listing %+v", accounts)
	}

	if err := store.Delete("alice"); err != nil {
		t.Fatal(err)
	}
	if store.Exists("alice") {
		t.Error("alice should be gone")
	}
	if err := store.Delete("alice"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	accounts, _ = store.List()
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account left, got %d", len(accounts))
	}
}

func TestWriteAPIKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteAPIKeyGuide(&buf, "https://e621.net/")
	out := buf.String()
	for _, want := range []string{"https://e621.net/users/home", "auth login", UsernameEnv, PassphraseEnv} {
		if !strings.Contains(out, want) {
			t.Errorf("Guide should mention %q", want)
		}
	}
}
