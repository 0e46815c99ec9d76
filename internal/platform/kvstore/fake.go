package kvstore

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Fake is an in-memory Store used by package tests that do not need a
// live Redis instance. It implements the same CAS semantics as
// redisStore: version mismatches fail without mutating state.
type Fake struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	lists  map[string][]string
}

// NewFake returns an empty in-memory Store.
func NewFake() *Fake {
	return &Fake{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
	}
}

func (f *Fake) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) HSet(_ context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hashes[key]; ok {
		return true, nil
	}
	if _, ok := f.lists[key]; ok {
		return true, nil
	}
	return false, nil
}

func (f *Fake) Expire(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.lists, k)
	}
	return nil
}

func (f *Fake) RPush(_ context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], values...)
	return nil
}

func (f *Fake) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals := f.lists[key]
	n := int64(len(vals))
	if n == 0 {
		return []string{}, nil
	}
	s := normalizeIndex(start, n)
	e := normalizeIndex(stop, n)
	if s > e || s >= n {
		return []string{}, nil
	}
	if e >= n {
		e = n - 1
	}
	out := make([]string, e-s+1)
	copy(out, vals[s:e+1])
	return out, nil
}

func (f *Fake) LLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func (f *Fake) LTrim(_ context.Context, key string, start, stop int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals := f.lists[key]
	n := int64(len(vals))
	if n == 0 {
		return nil
	}
	s := normalizeIndex(start, n)
	e := normalizeIndex(stop, n)
	if s > e || s >= n {
		f.lists[key] = nil
		return nil
	}
	if e >= n {
		e = n - 1
	}
	trimmed := make([]string, e-s+1)
	copy(trimmed, vals[s:e+1])
	f.lists[key] = trimmed
	return nil
}

func normalizeIndex(i, n int64) int64 {
	if i < 0 {
		i = n + i
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (f *Fake) Scan(_ context.Context, _ uint64, match string, _ int64) ([]string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.hashes {
		if ok, _ := filepath.Match(match, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, 0, nil
}

func (f *Fake) CASUpdate(_ context.Context, key string, expectedVersion int64, patch map[string]string) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return false, 0, ErrNotFound
	}
	cur, _ := strconv.ParseInt(h["version"], 10, 64)
	if cur != expectedVersion {
		return false, cur, nil
	}
	next := cur + 1
	for k, v := range patch {
		h[k] = v
	}
	h["version"] = strconv.FormatInt(next, 10)
	h["updated_at"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	return true, next, nil
}
