package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "ingestd"

	// KeyringUser is the user identifier for credentials
	KeyringUser = "default"

	// KeyringKafkaSASLUserItem is the key for the Kafka SASL username
	KeyringKafkaSASLUserItem = "kafka-sasl-user"

	// KeyringKafkaSASLPassItem is the key for the Kafka SASL password
	KeyringKafkaSASLPassItem = "kafka-sasl-pass"
)

// KeyringManager handles secure credential storage in the OS keychain for
// the Kafka SASL_SSL credentials the search-ingestion consumer needs, so an
// operator never has to put them in a plaintext config file.
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SaveSASLUser stores the Kafka SASL username in the OS keychain.
func (km *KeyringManager) SaveSASLUser(user string) error {
	if user == "" {
		return fmt.Errorf("sasl user cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringKafkaSASLUserItem, user); err != nil {
		km.logger.Error("failed to save sasl user to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("sasl user saved to keychain", "service", KeyringService)
	return nil
}

// GetSASLUser retrieves the Kafka SASL username from the OS keychain.
func (km *KeyringManager) GetSASLUser() (string, error) {
	user, err := keyring.Get(KeyringService, KeyringKafkaSASLUserItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get sasl user from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	km.logger.Debug("sasl user retrieved from keychain")
	return user, nil
}

// DeleteSASLUser removes the Kafka SASL username from the OS keychain.
func (km *KeyringManager) DeleteSASLUser() error {
	err := keyring.Delete(KeyringService, KeyringKafkaSASLUserItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete sasl user from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	km.logger.Info("sasl user deleted from keychain")
	return nil
}

// SaveSASLPassword stores the Kafka SASL password in the OS keychain.
func (km *KeyringManager) SaveSASLPassword(pass string) error {
	if pass == "" {
		return fmt.Errorf("sasl password cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringKafkaSASLPassItem, pass); err != nil {
		km.logger.Error("failed to save sasl password to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("sasl password saved to keychain", "service", KeyringService)
	return nil
}

// GetSASLPassword retrieves the Kafka SASL password from the OS keychain.
func (km *KeyringManager) GetSASLPassword() (string, error) {
	pass, err := keyring.Get(KeyringService, KeyringKafkaSASLPassItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get sasl password from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	km.logger.Debug("sasl password retrieved from keychain")
	return pass, nil
}

// DeleteSASLPassword removes the Kafka SASL password from the OS keychain.
func (km *KeyringManager) DeleteSASLPassword() error {
	err := keyring.Delete(KeyringService, KeyringKafkaSASLPassItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete sasl password from keychain", "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	km.logger.Info("sasl password deleted from keychain")
	return nil
}

// DeleteSASLCredentials removes both the username and password, ignoring
// either half already being absent.
func (km *KeyringManager) DeleteSASLCredentials() error {
	if err := km.DeleteSASLUser(); err != nil {
		return err
	}
	return km.DeleteSASLPassword()
}

// IsAvailable checks if the OS keychain is reachable. Returns false on
// headless systems (CI/CD, containers without a Secret Service) where
// config.applySecrets should silently skip the keychain lookup.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}
