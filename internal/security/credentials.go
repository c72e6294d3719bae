package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"dwhload/internal/common"
	"dwhload/pkg/errors"
	"dwhload/pkg/models"
)

const (
	// Keyring service name
	keyringService = "dwhload"
	// KeyringEnv disables the OS keyring when set to "false".
	KeyringEnv = "DWHLOAD_USE_KEYRING"

	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32
)

// CredentialManager stores cluster passwords in the OS keyring, or in
// AES-GCM encrypted files under the application directory when no keyring
// is available.
type CredentialManager struct {
	useKeyring bool
	dir        string
	masterKey  []byte
}

// Option configures a CredentialManager.
type Option func(*CredentialManager)

// WithKeyring forces the keyring backend on or off.
func WithKeyring(enabled bool) Option {
	return func(cm *CredentialManager) { cm.useKeyring = enabled }
}

// WithDir sets the directory of the encrypted file backend.
func WithDir(dir string) Option {
	return func(cm *CredentialManager) { cm.dir = dir }
}

// storedCredential is the on-disk form of a password.
type storedCredential struct {
	Account string `json:"account"`
	Value   string `json:"value"`
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(opts ...Option) (*CredentialManager, error) {
	cm := &CredentialManager{
		useKeyring: isKeyringAvailable(),
		dir:        filepath.Join(common.AppDir(), "credentials"),
	}
	for _, opt := range opts {
		opt(cm)
	}

	if !cm.useKeyring {
		key, err := cm.getMasterKey()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to initialize master key").
				WithContext("dir", cm.dir)
		}
		cm.masterKey = key
	}

	return cm, nil
}

// Backend names the storage in use.
func (cm *CredentialManager) Backend() string {
	if cm.useKeyring {
		return "keyring"
	}
	return "file"
}

// Account returns the credential name of a cluster login.
func Account(c models.Cluster) string {
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.DBName)
}

// SetPassword stores the password of a cluster login.
func (cm *CredentialManager) SetPassword(account, password string) error {
	if cm.useKeyring {
		if err := keyring.Set(keyringService, account, password); err != nil {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to store password in keyring").
				WithContext("account", account)
		}
		return nil
	}

	encrypted, err := cm.encrypt(password)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to encrypt password")
	}
	return cm.saveCredentialFile(&storedCredential{Account: account, Value: encrypted})
}

// GetPassword returns the stored password of a cluster login.
func (cm *CredentialManager) GetPassword(account string) (string, error) {
	if cm.useKeyring {
		secret, err := keyring.Get(keyringService, account)
		if err == keyring.ErrNotFound {
			return "", notFound(account)
		}
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeCredentialNotFound, "Failed to read keyring").
				WithContext("account", account)
		}
		return secret, nil
	}

	cred, err := cm.loadCredentialFile(account)
	if err != nil {
		return "", err
	}
	password, err := cm.decrypt(cred.Value)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt password").
			WithContext("account", account)
	}
	return password, nil
}

// DeletePassword removes the stored password of a cluster login.
func (cm *CredentialManager) DeletePassword(account string) error {
	if cm.useKeyring {
		err := keyring.Delete(keyringService, account)
		if err == keyring.ErrNotFound {
			return notFound(account)
		}
		return err
	}

	path, err := cm.credentialPath(account)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return notFound(account)
		}
		return err
	}
	return nil
}

func notFound(account string) error {
	return errors.New(errors.ErrCodeCredentialNotFound,
		fmt.Sprintf("No stored password for %s", account)).
		WithContext("account", account).
		WithSuggestions("Run 'dwhload auth set-password' or set CLUSTER.DB_PASSWORD")
}

func (cm *CredentialManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (cm *CredentialManager) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// getMasterKey loads the file backend key, deriving and persisting a new one
// on first use.
func (cm *CredentialManager) getMasterKey() ([]byte, error) {
	keyPath, err := common.ValidatePath(filepath.Join(cm.dir, ".master"), cm.dir)
	if err != nil {
		return nil, fmt.Errorf("invalid master key path: %w", err)
	}

	data, err := os.ReadFile(keyPath) // #nosec G304 - path is validated
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(getMachineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(cm.dir, common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}

	return key, nil
}

// credentialPath names files by a hash of the account, which contains
// characters that are not safe in file names.
func (cm *CredentialManager) credentialPath(account string) (string, error) {
	sum := sha256.Sum256([]byte(account))
	path := filepath.Join(cm.dir, hex.EncodeToString(sum[:16])+".cred")
	return common.ValidatePath(path, cm.dir)
}

func (cm *CredentialManager) saveCredentialFile(cred *storedCredential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.dir, common.DirPermissionSecure); err != nil {
		return err
	}

	path, err := cm.credentialPath(cred.Account)
	if err != nil {
		return fmt.Errorf("invalid credential file path: %w", err)
	}
	return os.WriteFile(path, data, common.FilePermissionSecure) // #nosec G304
}

func (cm *CredentialManager) loadCredentialFile(account string) (*storedCredential, error) {
	path, err := cm.credentialPath(account)
	if err != nil {
		return nil, fmt.Errorf("invalid credential file path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(account)
		}
		return nil, err
	}

	var cred storedCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func isKeyringAvailable() bool {
	if os.Getenv(KeyringEnv) == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}

func getMachineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}
