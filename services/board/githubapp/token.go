// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package githubapp

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/FlightBoard/services/board/apperr"
)

// appJWTWindow is the validity window of the app-level JWT. GitHub caps
// it at ten minutes; we stay inside that with a backdated iat to absorb
// clock skew.
const appJWTWindow = 9 * time.Minute

// tokenSlack is how long before expiry a cached installation token is
// considered stale.
const tokenSlack = time.Minute

type cachedToken struct {
	value   string
	expires time.Time
}

// appJWT builds the RS256-signed app JWT used to authenticate as the
// GitHub App itself (installation listing, token minting).
func (c *Client) appJWT() (string, error) {
	keyBuf, err := c.key.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, err, "app private key unavailable")
	}
	defer keyBuf.Destroy()

	privateKey, err := parsePrivateKey(keyBuf.Bytes())
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, err, "app private key is invalid")
	}

	now := c.now()
	header := map[string]string{"alg": "RS256", "typ": "JWT"}
	claims := map[string]any{
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(appJWTWindow).Unix(),
		"iss": c.appID,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to encode JWT header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode JWT claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)
	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in key material")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("key is neither PKCS#1 nor PKCS#8: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}
	return rsaKey, nil
}

// installationToken returns an access token for the installation,
// minting one when the cache has no token or only a stale one.
func (c *Client) installationToken(ctx context.Context, installationID int64) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[installationID]
	c.mu.Unlock()
	if ok && c.now().Before(cached.expires.Add(-tokenSlack)) {
		return cached.value, nil
	}

	jwt, err := c.appJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.baseURL, installationID)
	resp, err := c.do(ctx, http.MethodPost, url, "Bearer "+jwt)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", upstreamError(resp, "failed to mint installation token")
	}

	var body struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, err, "installation token response is unparseable")
	}

	expires := c.now().Add(time.Hour)
	if t, err := time.Parse(time.RFC3339, body.ExpiresAt); err == nil {
		expires = t
	}

	c.mu.Lock()
	c.tokens[installationID] = cachedToken{value: body.Token, expires: expires}
	c.mu.Unlock()
	return body.Token, nil
}

// upstreamError classifies a non-success GitHub response into the
// upstream error kinds so callers can tell not-found from forbidden
// from transient.
func upstreamError(resp *http.Response, context string) error {
	kind := apperr.KindUpstreamUnavailable
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = apperr.KindUpstreamNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		kind = apperr.KindUpstreamForbidden
	}
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		msg = resp.Status
	}
	return apperr.New(kind, "%s: %s", context, msg)
}
