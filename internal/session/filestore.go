package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SlotKey is the fixed key the session is stored under.
const SlotKey = "user_data"

type slotFile struct {
	UserData *slotRecord `yaml:"user_data,omitempty"`
}

type slotRecord struct {
	AccessToken string `yaml:"accessToken"`
	Sealed      bool   `yaml:"sealed,omitempty"`
}

// FileStore persists the session as a YAML document on disk. Writes go through a
// temp file and a rename so a reader never observes a partially written slot.
type FileStore struct {
	path   string
	sealer *Sealer
	mu     sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path. When sealer is non-nil the token is
// encrypted at rest.
func NewFileStore(path string, sealer *Sealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

// Path returns the location of the slot file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read session file")
	}

	var slot slotFile
	if err := yaml.Unmarshal(data, &slot); err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("ignoring malformed session file")
		return nil, nil
	}
	if slot.UserData == nil || slot.UserData.AccessToken == "" {
		return nil, nil
	}

	token := slot.UserData.AccessToken
	if slot.UserData.Sealed {
		if f.sealer == nil {
			log.Warn().Str("path", f.path).Msg("session is sealed but no passphrase is configured")
			return nil, nil
		}
		token, err = f.sealer.Open(token)
		if err != nil {
			log.Warn().Err(err).Msg("unable to unseal session")
			return nil, nil
		}
	}
	return &Session{AccessToken: token}, nil
}

func (f *FileStore) Set(_ context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.AccessToken == "" {
		return f.remove()
	}

	rec := &slotRecord{AccessToken: s.AccessToken}
	if f.sealer != nil {
		sealed, err := f.sealer.Seal(s.AccessToken)
		if err != nil {
			return errors.Wrap(err, "unable to seal session")
		}
		rec.AccessToken = sealed
		rec.Sealed = true
	}

	data, err := yaml.Marshal(slotFile{UserData: rec})
	if err != nil {
		return errors.Wrap(err, "unable to encode session")
	}
	return f.writeAtomic(data)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove()
}

func (f *FileStore) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "unable to remove session file")
	}
	return nil
}

func (f *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "unable to create session directory")
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "unable to create temp session file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to set session file mode")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to write session file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to sync session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to close session file")
	}
	return errors.Wrap(os.Rename(tmpName, f.path), "unable to replace session file")
}
