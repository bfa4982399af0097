// Package storagetest provides an in-memory PhotoStore for tests.
package storagetest

import (
	"context"
	"errors"
	"io"
	"sync"
)

type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Fail    error
	Deleted []string
}

func NewMemory() *Memory {
	return &Memory{Objects: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if m.Fail != nil {
		return "", m.Fail
	}
	if key == "" {
		return "", errors.New("empty key")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return key, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
