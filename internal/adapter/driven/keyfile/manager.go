// Package keyfile persists the credential encryption key and resolves the
// on-disk application layout, including relocation of a legacy directory.
package keyfile

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// KeyFilePermissions restricts the key file to its owner.
const KeyFilePermissions = 0o600

// Compile-time interface satisfaction check.
var _ driven.KeyStore = (*Manager)(nil)

// Manager loads the hex-encoded key file, creating it on first use.
type Manager struct {
	path   string
	rand   io.Reader
	logger *slog.Logger
}

// NewManager creates a Manager for the key file at path.
func NewManager(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{path: path, rand: rand.Reader, logger: logger}
}

// Path returns the key file location.
func (m *Manager) Path() string {
	return m.path
}

// LoadOrCreate returns the key stored at the manager's path. When the file
// does not exist a new random key is generated and written. A file whose
// content is not exactly 32 hex-encoded bytes fails with driven.ErrInvalidKey.
func (m *Manager) LoadOrCreate() (model.SymmetricKey, error) {
	data, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		return decodeKey(data)
	case errors.Is(err, fs.ErrNotExist):
		return m.create()
	default:
		return model.SymmetricKey{}, fmt.Errorf("read encryption key: %w", err)
	}
}

func (m *Manager) create() (model.SymmetricKey, error) {
	var key model.SymmetricKey
	if _, err := io.ReadFull(m.rand, key[:]); err != nil {
		return model.SymmetricKey{}, fmt.Errorf("generate encryption key: %w", err)
	}

	encoded := hex.EncodeToString(key[:])
	if err := atomic.WriteFile(m.path, strings.NewReader(encoded)); err != nil {
		return model.SymmetricKey{}, fmt.Errorf("write encryption key: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(m.path, KeyFilePermissions); err != nil {
			m.logger.Warn("failed to restrict encryption key permissions", "path", m.path, "error", err)
		}
	}

	m.logger.Info("created encryption key", "path", m.path)
	return key, nil
}

func decodeKey(data []byte) (model.SymmetricKey, error) {
	raw, err := hex.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return model.SymmetricKey{}, fmt.Errorf("%w: not hex encoded", driven.ErrInvalidKey)
	}
	if len(raw) != model.SymmetricKeySize {
		return model.SymmetricKey{}, fmt.Errorf("%w: decoded length %d, want %d",
			driven.ErrInvalidKey, len(raw), model.SymmetricKeySize)
	}

	var key model.SymmetricKey
	copy(key[:], raw)
	return key, nil
}
