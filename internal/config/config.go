// Package config stores connection profiles in the OS keyring and applies
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/99designs/keyring"
)

const (
	serviceName       = "semantic-link-labs"
	defaultProfile    = "default"
	profilePrefix     = "profile:"
	profileIndexKey   = "profiles_index"
	currentProfileKey = "current_profile"

	envKeyringBackend  = "SLL_KEYRING_BACKEND"
	envKeyringPassword = "SLL_KEYRING_PASSWORD"
	envCredentialsDir  = "SLL_CREDENTIALS_DIR"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"
)

// openKeyring is a package-level function for opening keyrings.
// It can be replaced in tests to use a mock keyring.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var userConfigDir = os.UserConfigDir

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring allows replacing the keyring opener for testing.
// Returns a cleanup function that restores the original.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// Profile holds a bearer token and optional per-audience base URLs
// (keys "fabric", "powerbi", "azure", "graph"), for sovereign clouds or
// test endpoints.
type Profile struct {
	Token    string            `json:"token"`
	BaseURLs map[string]string `json:"base_urls,omitempty"`
}

// ErrNotConfigured is returned when no token is available.
var ErrNotConfigured = errors.New("not configured - run 'sll auth login' or set SLL_TOKEN")

// keyringConfig returns the keyring configuration
func keyringConfig() keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
	}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	// Auto mode also configures the file backend so keyring.Open can fall
	// through to encrypted file storage when native backends are missing.
	configureFileBackend(&cfg)

	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}

	return cfg
}

func keyringBackendMode() string {
	switch strings.ToLower(envValue(envKeyringBackend)) {
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	default:
		return keyringBackendAuto
	}
}

// shouldForceFileBackend reports whether only the file backend is allowed.
// Headless Linux has no Secret Service to talk to.
func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	if backend != keyringBackendAuto {
		return false
	}
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func configureFileBackend(cfg *keyring.Config) {
	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword
}

func keyringFileDir() string {
	base := envValue(envCredentialsDir)
	if base == "" {
		if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
			base = filepath.Join(dir, serviceName)
		}
	}
	if base == "" {
		base = filepath.Join(os.TempDir(), serviceName)
	}
	return filepath.Join(base, "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv(envKeyringPassword); ok && strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func profileName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return defaultProfile
	}
	return name
}

func profileKey(name string) string {
	return profilePrefix + profileName(name)
}

// profileStore holds the keyring items behind profiles: one item per
// profile, a sorted name index and the current profile name.
type profileStore struct {
	ring keyring.Keyring
}

func openStore() (profileStore, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return profileStore{}, fmt.Errorf("failed to open keyring: %w", err)
	}
	return profileStore{ring: ring}, nil
}

func (s profileStore) get(name string) (Profile, error) {
	item, err := s.ring.Get(profileKey(name))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Profile{}, ErrNotConfigured
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	var profile Profile
	if err := json.Unmarshal(item.Data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return profile, nil
}

func (s profileStore) put(name string, profile Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: profileKey(name), Data: data}); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s profileStore) remove(name string) error {
	if err := s.ring.Remove(profileKey(name)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}

func (s profileStore) setNames(names []string) error {
	data, err := json.Marshal(normalizeProfiles(names))
	if err != nil {
		return fmt.Errorf("failed to marshal profile index: %w", err)
	}
	return s.ring.Set(keyring.Item{Key: profileIndexKey, Data: data})
}

func (s profileStore) current() (string, error) {
	item, err := s.ring.Get(currentProfileKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return defaultProfile, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get current profile: %w", err)
	}
	return string(item.Data), nil
}

func (s profileStore) setCurrent(name string) error {
	return s.ring.Set(keyring.Item{Key: currentProfileKey, Data: []byte(name)})
}

// loadProfileIndex reads the profile name index. A missing index is empty.
func loadProfileIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(profileIndexKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile index: %w", err)
	}
	var profiles []string
	if err := json.Unmarshal(item.Data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile index: %w", err)
	}
	return profiles, nil
}

// normalizeProfiles trims, dedupes and sorts profile names.
func normalizeProfiles(profiles []string) []string {
	seen := make(map[string]struct{}, len(profiles))
	out := []string{}
	for _, p := range profiles {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SaveProfile stores a profile and makes it current.
func SaveProfile(name string, profile Profile) error {
	name = profileName(name)
	if strings.TrimSpace(profile.Token) == "" {
		return errors.New("token is required")
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.put(name, profile); err != nil {
		return err
	}
	names, err := loadProfileIndex(store.ring)
	if err != nil {
		return err
	}
	if err := store.setNames(append(names, name)); err != nil {
		return err
	}
	return store.setCurrent(name)
}

// LoadProfile retrieves a named profile. A missing profile is
// ErrNotConfigured.
func LoadProfile(name string) (Profile, error) {
	store, err := openStore()
	if err != nil {
		return Profile{}, err
	}
	return store.get(name)
}

// DeleteProfile removes a stored profile. When it was current, the first
// remaining profile (or "default") becomes current.
func DeleteProfile(name string) error {
	name = profileName(name)
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.remove(name); err != nil {
		return err
	}

	names, err := loadProfileIndex(store.ring)
	if err != nil {
		return err
	}
	remaining := slices.DeleteFunc(names, func(p string) bool { return p == name })
	if err := store.setNames(remaining); err != nil {
		return err
	}

	if current, err := store.current(); err != nil || current != name {
		return nil
	}
	next := defaultProfile
	if len(remaining) > 0 {
		next = normalizeProfiles(remaining)[0]
	}
	return store.setCurrent(next)
}

// ListProfiles returns the stored profile names.
func ListProfiles() ([]string, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	return loadProfileIndex(store.ring)
}

// CurrentProfile returns the active profile name.
func CurrentProfile() (string, error) {
	store, err := openStore()
	if err != nil {
		return "", err
	}
	return store.current()
}

// SetCurrentProfile makes a stored profile active.
func SetCurrentProfile(name string) error {
	name = profileName(name)
	store, err := openStore()
	if err != nil {
		return err
	}
	if _, err := store.get(name); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return fmt.Errorf("profile %q does not exist", name)
		}
		return err
	}
	return store.setCurrent(name)
}
