package cmd

import (
	"os"
	"testing"

	"github.com/99designs/keyring"

	"github.com/KornAlexander/semantic-link-labs/internal/config"
)

func TestMain(m *testing.M) {
	// Shell settings must not leak into command tests.
	_ = os.Setenv("SLL_OUTPUT", "text")
	_ = os.Unsetenv("SLL_TOKEN")
	_ = os.Unsetenv("SLL_PROFILE")

	cleanup := config.SetOpenKeyring(func(cfg keyring.Config) (keyring.Keyring, error) {
		return keyring.NewArrayKeyring(nil), nil
	})
	code := m.Run()
	cleanup()
	os.Exit(code)
}
