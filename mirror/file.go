package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileMirror keeps the map in memory and persists it to a JSON file.
// Writes are visible immediately; the file is rewritten after SaveInterval of quiet
// (debounced), or inline when the interval is zero. Close flushes a pending save.
type FileMirror struct {
	path         string
	saveInterval time.Duration
	enableBackup bool

	data map[string]string
	mu   sync.RWMutex

	saveTimer   *time.Timer // Timer for debounced saving
	savePending bool
	saveMutex   sync.Mutex // Guards saveTimer and savePending
	persistMu   sync.Mutex // One writer of the .tmp file at a time
}

// NewFileMirror loads path if it exists. A missing file starts an empty mirror;
// an unparsable one is an error so the previous state is never silently overwritten.
func NewFileMirror(path string, saveInterval time.Duration, enableBackup bool) (*FileMirror, error) {
	m := &FileMirror{
		path:         path,
		saveInterval: saveInterval,
		enableBackup: enableBackup,
		data:         make(map[string]string),
	}

	log.Info().Str("file", path).Msg("initializing file mirror")
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FileMirror) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileData, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("file", m.path).Msg("mirror file not found, starting empty")
			return nil
		}
		log.Error().Err(err).Str("file", m.path).Msg("failed to read mirror file, starting empty")
		return nil
	}

	if err := json.Unmarshal(fileData, &m.data); err != nil {
		return fmt.Errorf("parse mirror file '%s': %w", m.path, err)
	}
	if m.data == nil {
		m.data = make(map[string]string)
	}

	log.Info().Str("file", m.path).Int("keys", len(m.data)).Msg("loaded mirror file")
	return nil
}

// Get returns the value stored at key.
func (m *FileMirror) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// Set stores value at key.
func (m *FileMirror) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	return m.requestSave()
}

// Delete removes key. Deleting a missing key is not an error.
func (m *FileMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if !existed {
		return nil
	}
	return m.requestSave()
}

// Clear removes every key.
func (m *FileMirror) Clear(_ context.Context) error {
	m.mu.Lock()
	m.data = make(map[string]string)
	m.mu.Unlock()

	return m.requestSave()
}

// persist writes the map to a temp file and renames it over the mirror file,
// keeping the previous file as .bak when backups are enabled.
func (m *FileMirror) persist() error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.RLock()
	jsonData, err := json.MarshalIndent(m.data, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal mirror: %w", err)
	}

	tempFilePath := m.path + ".tmp"
	backupFilePath := m.path + ".bak"

	if err := os.WriteFile(tempFilePath, jsonData, 0644); err != nil {
		return fmt.Errorf("write temp mirror file '%s': %w", tempFilePath, err)
	}

	if m.enableBackup {
		if _, err := os.Stat(m.path); err == nil {
			if err := os.Rename(m.path, backupFilePath); err != nil {
				log.Warn().Err(err).Str("file", backupFilePath).Msg("failed to create mirror backup, saving anyway")
			}
		} else if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", m.path).Msg("failed to stat mirror file before backup")
		}
	}

	if err := os.Rename(tempFilePath, m.path); err != nil {
		_ = os.Remove(tempFilePath)
		return fmt.Errorf("rename temp mirror file to '%s': %w", m.path, err)
	}

	log.Debug().Str("file", m.path).Msg("saved mirror file")
	return nil
}

// requestSave persists inline when the interval is zero, otherwise (re)starts the debounce timer.
func (m *FileMirror) requestSave() error {
	m.saveMutex.Lock()
	defer m.saveMutex.Unlock()

	if m.saveInterval <= 0 {
		return m.persist()
	}

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.savePending = true
	m.saveTimer = time.AfterFunc(m.saveInterval, func() {
		m.saveMutex.Lock()
		if !m.savePending {
			m.saveMutex.Unlock()
			return
		}
		m.savePending = false
		m.saveMutex.Unlock()

		if err := m.persist(); err != nil {
			log.Error().Err(err).Msg("debounced mirror save failed")
		}
	})
	return nil
}

// Close stops the debounce timer and flushes a pending save.
func (m *FileMirror) Close() error {
	m.saveMutex.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	needsFinalPersist := m.savePending
	m.savePending = false
	m.saveMutex.Unlock()

	if needsFinalPersist {
		log.Info().Str("file", m.path).Msg("flushing mirror on close")
		return m.persist()
	}
	return nil
}
