// Package auth resolves the GitHub token used by the GitHub Projects card source.
// Providers are tried in order; the first one that yields a token wins.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoToken indicates no provider could supply a token.
var ErrNoToken = errors.New("no GitHub token available")

// TokenProvider obtains a GitHub authentication token.
type TokenProvider interface {
	GetToken() (string, error)
}

// StaticProvider returns a token supplied through configuration.
type StaticProvider struct {
	Token string
}

// GetToken returns the configured token, or an error when it is blank.
func (s StaticProvider) GetToken() (string, error) {
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return "", errors.New("no token configured")
	}
	return token, nil
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
type GhCliProvider struct {
	Hostname string // Defaults to github.com
}

// GetToken runs `gh auth token`. It fails when gh is not installed or not
// authenticated.
func (g GhCliProvider) GetToken() (string, error) {
	hostname := g.Hostname
	if hostname == "" {
		hostname = "github.com"
	}
	output, err := exec.Command("gh", "auth", "token", "--hostname", hostname).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}
	return token, nil
}

// EnvProvider reads the first non-empty variable of Vars.
type EnvProvider struct {
	Vars []string
}

// DefaultEnvVars are checked when EnvProvider.Vars is empty.
var DefaultEnvVars = []string{"SUMUP_GITHUB_TOKEN", "GITHUB_TOKEN"}

// GetToken returns the value of the first variable that is set.
func (e EnvProvider) GetToken() (string, error) {
	vars := e.Vars
	if len(vars) == 0 {
		vars = DefaultEnvVars
	}
	for _, name := range vars {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%s not set or empty", strings.Join(vars, ", "))
}

// Chain tries each provider in order.
type Chain []TokenProvider

// GetToken returns the first token obtained. When every provider fails the
// error wraps ErrNoToken and lists each provider's failure.
func (c Chain) GetToken() (string, error) {
	var errs []string
	for _, p := range c {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, err.Error())
	}
	return "", fmt.Errorf("%w: %s.\n"+
		"Please either:\n"+
		"  1. Run 'gh auth login' to authenticate with GitHub CLI, or\n"+
		"  2. Set SUMUP_GITHUB_TOKEN or GITHUB_TOKEN to a personal access token",
		ErrNoToken, strings.Join(errs, "; "))
}

// GetToken resolves a token from configuration, then the environment, then
// the gh CLI. The environment wins over gh so a token can be pinned per run.
func GetToken(configured string) (string, error) {
	return Chain{
		StaticProvider{Token: configured},
		EnvProvider{},
		GhCliProvider{},
	}.GetToken()
}
