package testutil

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pders01/restodash/internal/devapi"
	"github.com/pders01/restodash/internal/models"
)

// StubAPI is a development API served on a local port for the duration of a test
type StubAPI struct {
	URL    string
	Server *devapi.Server
	T      *testing.T

	http *httptest.Server
}

// NewStubAPI starts a stub API managing a restaurant called name
func NewStubAPI(t *testing.T, name string, opts ...devapi.Option) *StubAPI {
	t.Helper()

	s := devapi.New(models.ManagedRestaurant{ID: "r1", Name: name, ManagerID: "m1"}, opts...)
	server := httptest.NewServer(s.Router())

	return &StubAPI{
		URL:    server.URL,
		Server: s,
		T:      t,
		http:   server,
	}
}

// Cleanup stops the stub API
func (a *StubAPI) Cleanup() {
	a.T.Helper()
	a.http.Close()
}

// FailNextWrites makes the next n profile writes fail
func (a *StubAPI) FailNextWrites(n int) {
	a.T.Helper()
	a.Server.SetFaults(devapi.Faults{FailWrites: n})
}

// TempHome points HOME at a fresh directory and returns it.
// The directory is removed when the test ends.
func TempHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// WriteConfig writes a config.toml under home and returns its path
func WriteConfig(t *testing.T, home, content string) string {
	t.Helper()

	dir := filepath.Join(home, ".config", "restodash")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create config directory: %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
