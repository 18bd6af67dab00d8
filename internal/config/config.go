package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrCredentialsMissing = errors.New("jira credentials missing")
)

const (
	DefaultProjectPath = "/home/ubuntu/Git-new/b4-project-hub"

	credentialsServerName  = "atlassian"
	credentialsUsernameKey = "JIRA_USERNAME"
	credentialsTokenKey    = "JIRA_API_TOKEN"
)

type Credentials struct {
	Username string
	Token    string
}

// Valid reports whether both halves of the basic-auth pair are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.Token) != ""
}

func (c Credentials) Validate() error {
	if !c.Valid() {
		return ErrCredentialsMissing
	}
	return nil
}

// projectEntry is the slice of a ~/.claude.json project that carries the
// Atlassian MCP server environment. Only the requested project is decoded, so
// the contents of other projects never affect the load.
type projectEntry struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

type mcpServer struct {
	Env map[string]any `json:"env"`
}

// LoadCredentials reads the Jira username and API token stored for projectPath.
// Absent or differently-shaped nested sections produce empty credentials, not
// an error; callers must check Valid before talking to the network.
func LoadCredentials(path, projectPath string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials %s: %w", path, err)
	}

	var projects map[string]json.RawMessage
	var project projectEntry
	var server mcpServer
	if json.Unmarshal(top["projects"], &projects) != nil ||
		json.Unmarshal(projects[projectPath], &project) != nil ||
		json.Unmarshal(project.MCPServers[credentialsServerName], &server) != nil {
		return Credentials{}, nil
	}

	env := server.Env
	return Credentials{
		Username: envString(env, credentialsUsernameKey),
		Token:    envString(env, credentialsTokenKey),
	}, nil
}

func envString(env map[string]any, key string) string {
	v, _ := env[key].(string)
	return v
}

func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return home, nil
}

// CredentialsPath is the default location of the credential file.
func CredentialsPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude.json"), nil
}

func ConfigDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".b4dash"), nil
}

// SettingsPath is the default location of the optional dashboard settings file.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	head := token[:min(4, len(token))]
	tail := token[max(0, len(token)-4):]
	return fmt.Sprintf("%s***%s", head, tail)
}
