package hopauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xdg-go/scram"

	"github.com/hermes-mma/hermes-backend/internal/logger"
)

// Client talks to the SCiMMA Auth (hop-auth) API: SCRAM login for API
// tokens, per-session SCRAM credential management, and the group/topic
// permission graph that determines which topics a user may read and write.
type Client interface {
	ServiceAPIToken(ctx context.Context) (string, error)
	UserAPIToken(ctx context.Context, username string) (string, error)
	AuthorizeUser(ctx context.Context, username string) (*Credential, error)
	DeauthorizeUser(ctx context.Context, username, credentialName string) error
	CreateCredential(ctx context.Context, username, userAPIToken string) (*Credential, error)
	DeleteCredential(ctx context.Context, username, credentialName, userAPIToken string) error
	UserTopics(ctx context.Context, username, userAPIToken string) (*TopicPermissions, error)
}

// Credential is a SCRAM credential pair issued by hop-auth. The password is
// only ever returned at creation time.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TopicPermissions struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

// Topic permission operations as hop-auth encodes them.
const (
	operationAll   = 1
	operationRead  = 2
	operationWrite = 3
)

type Config struct {
	BaseURL         string
	ServiceUsername string
	ServicePassword string
	Timeout         time.Duration
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client

	mu     sync.Mutex
	apiURL string
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing hop-auth base url")
	}
	if strings.TrimSpace(cfg.ServiceUsername) == "" || strings.TrimSpace(cfg.ServicePassword) == "" {
		return nil, fmt.Errorf("missing hop-auth service account credentials")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:  log.With("client", "HopAuthClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// apiBase resolves and caches the versioned API root, asking the server for
// its current version once. Falls back to v0 when the version endpoint is
// unreachable.
func (c *client) apiBase(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiURL != "" {
		return c.apiURL
	}

	version := 0
	var payload struct {
		Current int `json:"current"`
	}
	if err := c.getJSON(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/api/version", "", &payload); err != nil {
		c.log.Error("Error requesting hop-auth API version, using v0", "error", err)
	} else {
		version = payload.Current
	}

	c.apiURL = fmt.Sprintf("%s/api/v%d", strings.TrimRight(c.cfg.BaseURL, "/"), version)
	return c.apiURL
}

// ServiceAPIToken performs the SCRAM-SHA-512 handshake with the service
// account credentials and returns an API token ready to use in an
// Authorization header.
func (c *client) ServiceAPIToken(ctx context.Context) (string, error) {
	return c.scramToken(ctx, c.cfg.ServiceUsername, c.cfg.ServicePassword)
}

func (c *client) scramToken(ctx context.Context, username, password string) (string, error) {
	scramClient, err := scram.SHA512.NewClient(username, password, "")
	if err != nil {
		return "", fmt.Errorf("scram client: %w", err)
	}
	conversation := scramClient.NewConversation()

	clientFirst, err := conversation.Step("")
	if err != nil {
		return "", fmt.Errorf("scram client first: %w", err)
	}

	var first struct {
		ServerFirst string `json:"server_first"`
	}
	if err := c.postJSON(ctx, c.apiBase(ctx)+"/scram/first", "", map[string]string{"client_first": clientFirst}, &first); err != nil {
		return "", fmt.Errorf("scram first round: %w", err)
	}

	clientFinal, err := conversation.Step(first.ServerFirst)
	if err != nil {
		return "", fmt.Errorf("scram client final: %w", err)
	}

	var final struct {
		ServerFinal string `json:"server_final"`
		Token       string `json:"token"`
	}
	if err := c.postJSON(ctx, c.apiBase(ctx)+"/scram/final", "", map[string]string{"client_final": clientFinal}, &final); err != nil {
		return "", fmt.Errorf("scram final round: %w", err)
	}

	if _, err := conversation.Step(final.ServerFinal); err != nil {
		return "", fmt.Errorf("scram server validation: %w", err)
	}

	// hop-auth wants the "Token " prefix on the Authorization header.
	return "Token " + final.Token, nil
}

// UserAPIToken exchanges the service account token for an API token acting
// as the given user.
func (c *client) UserAPIToken(ctx context.Context, username string) (string, error) {
	serviceToken, err := c.ServiceAPIToken(ctx)
	if err != nil {
		return "", err
	}

	var payload struct {
		Token        string `json:"token"`
		TokenExpires string `json:"token_expires"`
	}
	body := map[string]string{"vo_person_id": username}
	if err := c.postJSON(ctx, c.apiBase(ctx)+"/oidc/token_for_user", serviceToken, body, &payload); err != nil {
		return "", fmt.Errorf("token_for_user for %s: %w", username, err)
	}
	return "Token " + payload.Token, nil
}

type hopUser struct {
	PK       int    `json:"pk"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type hopGroup struct {
	PK          int    `json:"pk"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type hopMembership struct {
	PK    int `json:"pk"`
	User  int `json:"user"`
	Group int `json:"group"`
}

type hopTopic struct {
	PK               int    `json:"pk"`
	OwningGroup      int    `json:"owning_group"`
	Name             string `json:"name"`
	PubliclyReadable bool   `json:"publicly_readable"`
}

type hopGroupPermission struct {
	PK        int `json:"pk"`
	Principal int `json:"principal"`
	Topic     int `json:"topic"`
	Operation int `json:"operation"`
}

type hopCredential struct {
	PK       int    `json:"pk"`
	Owner    int    `json:"owner"`
	Username string `json:"username"`
}

// AuthorizeUser sets the user up for Hopskotch interaction at login: ensures
// hermes group membership and issues a fresh session SCRAM credential.
func (c *client) AuthorizeUser(ctx context.Context, username string) (*Credential, error) {
	c.log.Info("Authorizing user for Hopskotch", "username", username)

	serviceToken, err := c.ServiceAPIToken(ctx)
	if err != nil {
		return nil, err
	}
	userToken, err := c.UserAPIToken(ctx, username)
	if err != nil {
		return nil, err
	}

	userPK, err := c.userPK(ctx, username, userToken)
	if err != nil {
		return nil, err
	}

	if err := c.ensureGroupMembership(ctx, username, userPK, "hermes", serviceToken, userToken); err != nil {
		return nil, err
	}

	return c.CreateCredential(ctx, username, userToken)
}

// DeauthorizeUser removes the session SCRAM credential created at login.
func (c *client) DeauthorizeUser(ctx context.Context, username, credentialName string) error {
	c.log.Info("Deauthorizing user for Hopskotch", "username", username, "credential", credentialName)
	userToken, err := c.UserAPIToken(ctx, username)
	if err != nil {
		return err
	}
	return c.DeleteCredential(ctx, username, credentialName, userToken)
}

func (c *client) CreateCredential(ctx context.Context, username, userAPIToken string) (*Credential, error) {
	userPK, err := c.userPK(ctx, username, userAPIToken)
	if err != nil {
		return nil, err
	}

	var credential Credential
	url := fmt.Sprintf("%s/users/%d/credentials", c.apiBase(ctx), userPK)
	body := map[string]string{"description": "Created by HERMES"}
	if err := c.postJSON(ctx, url, userAPIToken, body, &credential); err != nil {
		return nil, fmt.Errorf("create credential for %s: %w", username, err)
	}

	// The password is never retrievable again; the caller stores it in the
	// session.
	c.log.Info("Created SCRAM credential", "username", username, "credential", credential.Username)
	return &credential, nil
}

func (c *client) DeleteCredential(ctx context.Context, username, credentialName, userAPIToken string) error {
	userPK, err := c.userPK(ctx, username, userAPIToken)
	if err != nil {
		return err
	}

	var credentials []hopCredential
	listURL := fmt.Sprintf("%s/users/%d/credentials", c.apiBase(ctx), userPK)
	if err := c.getJSON(ctx, listURL, userAPIToken, &credentials); err != nil {
		return fmt.Errorf("list credentials for %s: %w", username, err)
	}

	for _, credential := range credentials {
		if credential.Username != credentialName {
			continue
		}
		deleteURL := fmt.Sprintf("%s/users/%d/credentials/%d", c.apiBase(ctx), userPK, credential.PK)
		if err := c.doJSON(ctx, http.MethodDelete, deleteURL, userAPIToken, nil, nil); err != nil {
			return fmt.Errorf("delete credential %s: %w", credentialName, err)
		}
		return nil
	}

	c.log.Error("Credential not found for cleanup", "username", username, "credential", credentialName)
	return fmt.Errorf("credential %s not found for user %s", credentialName, username)
}

// UserTopics walks the user's group memberships and the permissions each
// group has received, and collects topic names into read and write lists.
func (c *client) UserTopics(ctx context.Context, username, userAPIToken string) (*TopicPermissions, error) {
	userPK, err := c.userPK(ctx, username, userAPIToken)
	if err != nil {
		return nil, err
	}

	var memberships []hopMembership
	membershipsURL := fmt.Sprintf("%s/users/%d/memberships", c.apiBase(ctx), userPK)
	if err := c.getJSON(ctx, membershipsURL, userAPIToken, &memberships); err != nil {
		return nil, fmt.Errorf("list memberships for %s: %w", username, err)
	}

	readSet := map[string]bool{}
	writeSet := map[string]bool{}
	for _, membership := range memberships {
		var permissions []hopGroupPermission
		permissionsURL := fmt.Sprintf("%s/groups/%d/permissions_received", c.apiBase(ctx), membership.Group)
		if err := c.getJSON(ctx, permissionsURL, userAPIToken, &permissions); err != nil {
			return nil, fmt.Errorf("list permissions for group %d: %w", membership.Group, err)
		}
		for _, permission := range permissions {
			var topic hopTopic
			topicURL := fmt.Sprintf("%s/topics/%d", c.apiBase(ctx), permission.Topic)
			if err := c.getJSON(ctx, topicURL, userAPIToken, &topic); err != nil {
				return nil, fmt.Errorf("get topic %d: %w", permission.Topic, err)
			}
			switch permission.Operation {
			case operationAll:
				readSet[topic.Name] = true
				writeSet[topic.Name] = true
			case operationRead:
				readSet[topic.Name] = true
			case operationWrite:
				writeSet[topic.Name] = true
			}
		}
	}

	return &TopicPermissions{Read: sortedKeys(readSet), Write: sortedKeys(writeSet)}, nil
}

func (c *client) userPK(ctx context.Context, username, token string) (int, error) {
	var users []hopUser
	if err := c.getJSON(ctx, c.apiBase(ctx)+"/users", token, &users); err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		if user.Username == username {
			return user.PK, nil
		}
	}
	return 0, fmt.Errorf("user %s not found in hop-auth", username)
}

func (c *client) groupPK(ctx context.Context, groupName, token string) (int, error) {
	var groups []hopGroup
	if err := c.getJSON(ctx, c.apiBase(ctx)+"/groups", token, &groups); err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}
	for _, group := range groups {
		if group.Name == groupName {
			return group.PK, nil
		}
	}
	return 0, fmt.Errorf("group %s not found in hop-auth", groupName)
}

func (c *client) ensureGroupMembership(ctx context.Context, username string, userPK int, groupName, serviceToken, userToken string) error {
	groupPK, err := c.groupPK(ctx, groupName, userToken)
	if err != nil {
		return err
	}

	var memberships []hopMembership
	membershipsURL := fmt.Sprintf("%s/users/%d/memberships", c.apiBase(ctx), userPK)
	if err := c.getJSON(ctx, membershipsURL, userToken, &memberships); err != nil {
		return fmt.Errorf("list memberships for %s: %w", username, err)
	}
	for _, membership := range memberships {
		if membership.Group == groupPK {
			c.log.Info("User already a member of group", "username", username, "group", groupName)
			return nil
		}
	}

	// Only hop-auth admins can add group members, hence the service token.
	addURL := fmt.Sprintf("%s/groups/%d/members", c.apiBase(ctx), groupPK)
	body := map[string]int{
		"user":   userPK,
		"group":  groupPK,
		"status": 1, // Member=1, Owner=2
	}
	if err := c.postJSON(ctx, addURL, serviceToken, body, nil); err != nil {
		return fmt.Errorf("add %s to group %s: %w", username, groupName, err)
	}
	return nil
}

func (c *client) getJSON(ctx context.Context, url, token string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, token, nil, out)
}

func (c *client) postJSON(ctx context.Context, url, token string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, url, token, body, out)
}

func (c *client) doJSON(ctx context.Context, method, url, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
