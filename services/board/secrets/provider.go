// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets resolves named credentials for the board service.
//
// The default provider reads container-mounted secret files under
// /run/secrets (the deployment convention for every Aleutian service)
// and falls back to environment variables for local development.
// Sensitive values handed to long-lived holders go through memguard
// enclaves so plaintext key material is not left sitting on the heap.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/awnumar/memguard"
)

// DefaultMountDir is where the container runtime mounts secret files.
const DefaultMountDir = "/run/secrets"

// Provider returns a named credential's value, or an error when it
// cannot be resolved. Values are re-read on every call; callers that
// need caching do it themselves with the TTL rules they can afford.
type Provider interface {
	GetSecret(name string) (string, error)
}

// FileProvider resolves secrets from files in a mount directory, with
// an environment-variable fallback: secret "board_github_app_key" falls
// back to env var "BOARD_GITHUB_APP_KEY".
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a provider over the given directory, or
// DefaultMountDir when dir is empty.
func NewFileProvider(dir string) *FileProvider {
	if dir == "" {
		dir = DefaultMountDir
	}
	return &FileProvider{Dir: dir}
}

func (p *FileProvider) GetSecret(name string) (string, error) {
	path := filepath.Join(p.Dir, name)
	if content, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(content)), nil
	}
	if v, ok := os.LookupEnv(strings.ToUpper(name)); ok && v != "" {
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("secret %q not found in %s or environment", name, p.Dir)
}

// StaticProvider serves a fixed map of secrets. Used in tests.
type StaticProvider map[string]string

func (p StaticProvider) GetSecret(name string) (string, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("secret %q not found", name)
}

// Sealed holds a secret value inside a memguard enclave. The plaintext
// only exists while a caller holds the buffer returned by Open.
type Sealed struct {
	enclave *memguard.Enclave
}

// Seal wraps a secret value. The input string's backing array cannot be
// wiped (Go strings are immutable), but the sealed copy is the one that
// stays alive for the process lifetime.
func Seal(value string) *Sealed {
	return &Sealed{enclave: memguard.NewEnclave([]byte(value))}
}

// Open decrypts the enclave. The caller must Destroy the returned
// buffer as soon as the value has been used.
func (s *Sealed) Open() (*memguard.LockedBuffer, error) {
	buf, err := s.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed secret: %w", err)
	}
	return buf, nil
}
