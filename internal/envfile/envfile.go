// Package envfile writes and reads the application's environment file.
package envfile

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"setupwiz/pkg/sdk/setup"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/moby/sys/atomicwriter"
)

const (
	DefaultFileName = ".env"

	KeyRegistry     = "REGISTRY"
	KeyRegistryUser = "REGISTRY_USER"
	KeyImage        = "IMAGE"
	KeyDataDir      = "DATA_DIR"
	KeyAppSecret    = "APP_SECRET"

	secretBytes  = 32
	backupSuffix = ".bak"
)

// ErrMalformed is returned by Read when the file exists but cannot be parsed.
var ErrMalformed = errors.New("malformed env file")

var _ setup.EnvGenerator = (*Generator)(nil)

// Generator writes the environment file into the data directory, or into
// Path when set.
type Generator struct {
	// Path overrides the file location.
	Path string
	// Secret generates APP_SECRET when the file does not already hold one.
	Secret func() (string, error)
}

func (g *Generator) Generate(ctx context.Context, req setup.EnvRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := g.path(req.DataDir)
	if err != nil {
		return "", err
	}

	existing, err := Read(path)
	switch {
	case errors.Is(err, ErrMalformed):
		// Keep the broken file for inspection and start over with a new secret.
		backup := path + backupSuffix
		if err := os.Rename(path, backup); err != nil {
			return "", fmt.Errorf("move malformed env file aside: %w", err)
		}
		slog.Warn("existing env file could not be parsed, regenerating with a new secret",
			"component", "envfile", "path", path, "backup", backup, "error", err)
		existing = nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", err
	}
	secret := existing[KeyAppSecret]
	if secret == "" {
		gen := g.Secret
		if gen == nil {
			gen = randomSecret
		}
		if secret, err = gen(); err != nil {
			return "", fmt.Errorf("generate app secret: %w", err)
		}
	}

	entries := []entry{
		{KeyRegistry, req.Auth.Registry},
		{KeyRegistryUser, req.Auth.Username},
		{KeyImage, req.Image},
		{KeyDataDir, req.DataDir},
		{KeyAppSecret, secret},
	}
	content, err := render(entries)
	if err != nil {
		return "", err
	}
	if err := verify(content, entries); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create env dir: %w", err)
	}
	if err := atomicwriter.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write env file: %w", err)
	}
	slog.Debug("env file written", "component", "envfile", "path", path, "secret_kept", existing[KeyAppSecret] != "")
	return path, nil
}

func (g *Generator) path(dataDir string) (string, error) {
	if p := strings.TrimSpace(g.Path); p != "" {
		return filepath.Abs(p)
	}
	if strings.TrimSpace(dataDir) == "" {
		return "", fmt.Errorf("env file: data directory is not configured")
	}
	return filepath.Abs(filepath.Join(dataDir, DefaultFileName))
}

// Read parses an env file. A missing file returns an error wrapping
// os.ErrNotExist.
func Read(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	values, err := dotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrMalformed, path, err)
	}
	return values, nil
}

type entry struct {
	key   string
	value string
}

func render(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Written by setupwiz. APP_SECRET is kept across regenerations.\n")
	for _, e := range entries {
		quoted, err := quote(e.value)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", e.key, err)
		}
		fmt.Fprintf(&buf, "%s=%s\n", e.key, quoted)
	}
	return buf.Bytes(), nil
}

// quote renders value so the dotenv parser returns it unchanged. Single
// quotes disable interpolation.
func quote(value string) (string, error) {
	if strings.ContainsAny(value, "\r\n'") {
		return "", fmt.Errorf("value contains a newline or single quote")
	}
	if value == "" || strings.ContainsAny(value, " \t#$\"\\`") {
		return "'" + value + "'", nil
	}
	return value, nil
}

// verify parses rendered content back and checks every entry survives.
func verify(content []byte, entries []entry) error {
	parsed, err := dotenv.Parse(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("verify env file: %w", err)
	}
	for _, e := range entries {
		if got := parsed[e.key]; got != e.value {
			return fmt.Errorf("verify env file: %s parsed as %q, want %q", e.key, got, e.value)
		}
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
