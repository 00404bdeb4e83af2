// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store owns the persisted configuration document: the blob
// store abstraction it lives in, migration of legacy shapes, and the
// load-migrate-mutate-save cycle behind every configuration operation.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrBlobNotFound is returned by Get when the object does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrPreconditionFailed is returned by Put when the object's generation
// moved between the caller's read and its write.
var ErrPreconditionFailed = errors.New("blob generation precondition failed")

// BlobStore is the narrow storage contract the configuration store
// depends on. Get returns the object's bytes together with the
// generation observed at read time; Put writes conditionally on that
// generation so the save step can be optimistic rather than
// last-writer-wins.
//
// Generation semantics for Put:
//   - gen > 0: the object must still be at that generation.
//   - gen == 0: the object must not exist yet.
//   - gen < 0: unconditional overwrite.
type BlobStore interface {
	Get(ctx context.Context, key string) (data []byte, gen int64, err error)
	Put(ctx context.Context, key string, data []byte, gen int64) error
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// GCS implementation
// =============================================================================

// GCSBlobStore stores objects in a Google Cloud Storage bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

// NewGCSBlobStore creates a store backed by the given bucket. When
// saKeyPath is non-empty the service account key file is used;
// otherwise application default credentials apply.
func NewGCSBlobStore(ctx context.Context, bucket, saKeyPath string) (*GCSBlobStore, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSBlobStore{client: client, bucket: bucket}, nil
}

func (s *GCSBlobStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, 0, ErrBlobNotFound
		}
		return nil, 0, fmt.Errorf("failed to open GCS object %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	return data, reader.Attrs.Generation, nil
}

func (s *GCSBlobStore) Put(ctx context.Context, key string, data []byte, gen int64) error {
	obj := s.client.Bucket(s.bucket).Object(key)
	switch {
	case gen == 0:
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	case gen > 0:
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write GCS object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 412 {
			return ErrPreconditionFailed
		}
		return fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return nil
}

func (s *GCSBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat GCS object %s: %w", key, err)
	}
	return true, nil
}

// =============================================================================
// In-memory implementation
// =============================================================================

type memoryObject struct {
	data []byte
	gen  int64
}

// MemoryBlobStore is an in-process BlobStore with the same generation
// semantics as GCS. Used by tests and local development.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject

	// FailGets and FailPuts, when non-nil, are returned by the next
	// corresponding call. Lets tests simulate storage outages.
	FailGets error
	FailPuts error
}

// NewMemoryBlobStore creates an empty in-memory store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGets != nil {
		return nil, 0, s.FailGets
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, 0, ErrBlobNotFound
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.gen, nil
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, data []byte, gen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPuts != nil {
		return s.FailPuts
	}
	current, exists := s.objects[key]
	switch {
	case gen == 0 && exists:
		return ErrPreconditionFailed
	case gen > 0 && (!exists || current.gen != gen):
		return ErrPreconditionFailed
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key] = memoryObject{data: stored, gen: current.gen + 1}
	return nil
}

func (s *MemoryBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}
