package auth

import (
	"path/filepath"
	"testing"
	"time"
)

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("INSTACOLLECTOR_SESSION_ID", "env_session")
	t.Setenv("INSTACOLLECTOR_CSRF_TOKEN", "env_csrf")
	t.Setenv("INSTACOLLECTOR_USERNAME", "envuser")

	store := NewEnvironmentStore()

	if !store.Exists("") {
		t.Error("Expected environment credentials to exist")
	}

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if account.Username != "envuser" {
		t.Errorf("Username mismatch: got %s", account.Username)
	}
	if account.SessionID != "env_session" {
		t.Errorf("SessionID mismatch: got %s", account.SessionID)
	}

	// Explicit username overrides the environment one
	account, err = store.Retrieve("other")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if account.Username != "other" {
		t.Errorf("Username mismatch: got %s", account.Username)
	}

	if err := store.Store(account); err != ErrStoreUnavailable {
		t.Errorf("Expected ErrStoreUnavailable from Store, got %v", err)
	}
	if err := store.Delete("envuser"); err != ErrStoreUnavailable {
		t.Errorf("Expected ErrStoreUnavailable from Delete, got %v", err)
	}
}

func TestEnvironmentStoreMissingCredentials(t *testing.T) {
	t.Setenv("INSTACOLLECTOR_SESSION_ID", "")
	t.Setenv("INSTACOLLECTOR_CSRF_TOKEN", "")

	store := NewEnvironmentStore()

	if store.Exists("") {
		t.Error("Expected no environment credentials")
	}
	if _, err := store.Retrieve(""); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("INSTACOLLECTOR_PASSPHRASE", "test-passphrase")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	account := &Account{
		Username:     "testuser",
		SessionID:    "test_session_id_12345",
		CSRFToken:    "test_csrf_token_67890",
		UserAgent:    "TestAgent/1.0",
		LastModified: time.Now(),
	}

	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if !store.Exists("testuser") {
		t.Error("Expected account to exist after store")
	}

	retrieved, err := store.Retrieve("testuser")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.SessionID != account.SessionID {
		t.Errorf("SessionID mismatch: got %s, want %s", retrieved.SessionID, account.SessionID)
	}
	if retrieved.CSRFToken != account.CSRFToken {
		t.Errorf("CSRFToken mismatch: got %s, want %s", retrieved.CSRFToken, account.CSRFToken)
	}

	// A second store instance with the same passphrase reads it back
	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	if _, err := reopened.Retrieve("testuser"); err != nil {
		t.Errorf("Failed to retrieve after reopen: %v", err)
	}

	accounts, err := store.List()
	if err != nil {
		t.Fatalf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account, got %d", len(accounts))
	}

	if err := store.Delete("testuser"); err != nil {
		t.Fatalf("Failed to delete account: %v", err)
	}
	if store.Exists("testuser") {
		t.Error("Expected account to be gone after delete")
	}
}

func TestEncryptedFileStoreMissingAccount(t *testing.T) {
	t.Setenv("INSTACOLLECTOR_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, err := store.Retrieve("ghost"); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if err := store.Delete("ghost"); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{
		Username:  "testuser",
		SessionID: "very_long_session_identifier",
		CSRFToken: "short",
	}

	sanitized := SanitizeAccount(account)
	if sanitized.SessionID != "very...fier" {
		t.Errorf("Unexpected masked session: %s", sanitized.SessionID)
	}
	if sanitized.CSRFToken != "********" {
		t.Errorf("Unexpected masked token: %s", sanitized.CSRFToken)
	}
	if account.SessionID == sanitized.SessionID {
		t.Error("SanitizeAccount must not modify the original")
	}

	if SanitizeAccount(nil) != nil {
		t.Error("Expected nil for nil account")
	}
}

func TestAccountCredentials(t *testing.T) {
	account := &Account{
		Username:  "testuser",
		SessionID: "sid",
		CSRFToken: "csrf",
		UserAgent: "UA/1.0",
	}

	creds := account.Credentials()
	if creds.Username != "testuser" || creds.SessionID != "sid" || creds.CSRFToken != "csrf" || creds.UserAgent != "UA/1.0" {
		t.Errorf("Credentials mismatch: %+v", creds)
	}
}
