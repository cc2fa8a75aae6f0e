package crypt

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	liberr "github.com/mythologiq/gg-core/errors"
)

// MinSaltSize is the minimum accepted length for a persisted installation salt.
const MinSaltSize = 16

const saltFileName = ".gg-core-salt"

var (
	saltOnce  sync.Once
	saltValue []byte
	saltErr   error
)

// InstallationSalt returns the per-machine salt, generating and persisting it
// on first use and caching it for the remainder of the process lifetime. It
// is one of the two justified process-wide singletons (the other is the
// nonce tracker): both are lazily initialized, and apart from the tracker's
// bounded nonce set neither changes afterward.
func InstallationSalt() ([]byte, error) {
	saltOnce.Do(func() {
		saltValue, saltErr = loadOrCreateSalt()
	})
	return saltValue, saltErr
}

func saltFilePath() (string, error) {
	if runtime.GOOS == "windows" {
		dir := os.Getenv("LOCALAPPDATA")
		if dir == "" {
			dir = os.Getenv("APPDATA")
		}
		if dir == "" {
			return "", liberr.New(liberr.MinPkgCrypt+1, liberr.KindInternal, "could not find application data directory")
		}
		return filepath.Join(dir, "gg-core", saltFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", liberr.New(liberr.MinPkgCrypt+2, liberr.KindInternal, "could not find home directory", err)
	}
	return filepath.Join(home, ".config", "gg-core", saltFileName), nil
}

func loadOrCreateSalt() ([]byte, error) {
	path, err := saltFilePath()
	if err != nil {
		return nil, err
	}

	if data, err := os.ReadFile(path); err == nil && len(data) >= MinSaltSize {
		return data, nil
	}

	salt := make([]byte, MinSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, liberr.New(liberr.MinPkgCrypt+3, liberr.KindInternal, "failed to generate salt", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, liberr.New(liberr.MinPkgCrypt+4, liberr.KindInternal, "failed to create salt directory", err)
	}

	if err := writeSaltFile(path, salt); err != nil {
		return nil, err
	}

	return salt, nil
}

func writeSaltFile(path string, salt []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return liberr.New(liberr.MinPkgCrypt+5, liberr.KindInternal, "failed to write salt file", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(salt); err != nil {
		return liberr.New(liberr.MinPkgCrypt+5, liberr.KindInternal, "failed to write salt file", err)
	}
	return nil
}
