// Package auth provides Betfair API authentication: application keys, session tokens and
// non-interactive (certificate) login.
package auth

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Header names used by the Betfair APIs.
const (
	HeaderAppKey  = "X-Application"
	HeaderSession = "X-Authentication"
)

// DefaultLoginURL is the certificate login endpoint.
const DefaultLoginURL = "https://identitysso-cert.betfair.com/api/certlogin"

// Credentials holds the application key and session token attached to every request.
type Credentials struct {
	AppKey       string // Application key from the Betfair developer portal
	SessionToken string // Session token from login (empty = unauthenticated)
}

// LoadCredentials builds credentials from an app key and either an inline session token or a
// file containing one. The inline token wins when both are set.
func LoadCredentials(appKey, sessionToken, tokenPath string) (*Credentials, error) {
	if appKey == "" {
		return nil, fmt.Errorf("app key is required")
	}

	if sessionToken == "" && tokenPath != "" {
		token, err := LoadSessionToken(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("load session token: %w", err)
		}
		sessionToken = token
	}

	return &Credentials{
		AppKey:       appKey,
		SessionToken: sessionToken,
	}, nil
}

// LoadSessionToken reads a session token from a file, trimming surrounding whitespace.
func LoadSessionToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// Headers returns the authentication headers for a request.
func (c *Credentials) Headers() map[string]string {
	headers := map[string]string{
		HeaderAppKey: c.AppKey,
	}
	if c.SessionToken != "" {
		headers[HeaderSession] = c.SessionToken
	}
	return headers
}

// Apply sets the authentication headers on h.
func (c *Credentials) Apply(h http.Header) {
	for k, v := range c.Headers() {
		h.Set(k, v)
	}
}

// LoginConfig configures a certificate login.
type LoginConfig struct {
	URL      string // Defaults to DefaultLoginURL
	AppKey   string
	Username string
	Password string
	CertPath string // Client certificate PEM
	KeyPath  string // Client key PEM

	// HTTPClient overrides the certificate-bearing client built from CertPath/KeyPath.
	HTTPClient *http.Client
}

// loginResponse is the body returned by the certificate login endpoint.
type loginResponse struct {
	SessionToken string `json:"sessionToken"`
	LoginStatus  string `json:"loginStatus"`
}

// CertLogin performs a non-interactive login and returns credentials carrying the new session.
func CertLogin(ctx context.Context, cfg LoginConfig) (*Credentials, error) {
	if cfg.AppKey == "" {
		return nil, fmt.Errorf("app key is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		cert, err := LoadCertificate(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		hc = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			},
		}
	}

	loginURL := cfg.URL
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}

	form := url.Values{}
	form.Set("username", cfg.Username)
	form.Set("password", cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAppKey, cfg.AppKey)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("unmarshal login response: %w", err)
	}
	if lr.LoginStatus != "SUCCESS" {
		return nil, fmt.Errorf("login failed: %s", lr.LoginStatus)
	}

	return &Credentials{
		AppKey:       cfg.AppKey,
		SessionToken: lr.SessionToken,
	}, nil
}

// LoadCertificate loads a client certificate and key pair from PEM files.
func LoadCertificate(certPath, keyPath string) (tls.Certificate, error) {
	if certPath == "" || keyPath == "" {
		return tls.Certificate{}, fmt.Errorf("certificate and key paths are required")
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}
