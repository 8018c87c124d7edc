//
// Tencent is pleased to support the open source community by making aura available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package session provides the diagnostic session ledger: a bounded,
// TTL-evicting, in-memory record of the most recently assembled
// conversation per session id. The ledger is never authoritative;
// conversation state is supplied fresh by the client on every request, and
// nothing in the response path reads the ledger back.
package session

import (
	"sync"
	"time"

	"trpc.group/trpc-go/aura/model"
)

const (
	// defaultMaxEntries bounds the number of tracked sessions.
	defaultMaxEntries = 256
	// defaultTTL bounds how long a record is considered live.
	defaultTTL = 30 * time.Minute
)

// Record is the ledger entry for one session. Each write fully replaces the
// prior snapshot.
type Record struct {
	SessionID   string
	LastUpdated time.Time
	Snapshot    []model.Message
}

// opts holds the configuration for the ledger.
type opts struct {
	maxEntries int
	ttl        time.Duration
}

// Opt is a functional option for configuring the ledger.
type Opt func(*opts)

// WithMaxEntries sets the maximum number of tracked sessions. When the
// bound is exceeded the oldest record is evicted.
func WithMaxEntries(n int) Opt {
	return func(o *opts) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithTTL sets how long a record stays live. Expired records are dropped
// lazily on access.
func WithTTL(ttl time.Duration) Opt {
	return func(o *opts) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// Ledger is a process-wide, last-write-wins mapping from session id to the
// most recently assembled conversation. Concurrent writers to the same key
// race; whichever write lands last wins, which is acceptable for a
// diagnostic sink.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*Record
	opts    opts

	now func() time.Time // overridable in tests
}

// NewLedger creates a ledger with the given options.
func NewLedger(options ...Opt) *Ledger {
	o := opts{
		maxEntries: defaultMaxEntries,
		ttl:        defaultTTL,
	}
	for _, option := range options {
		option(&o)
	}
	return &Ledger{
		records: make(map[string]*Record),
		opts:    o,
		now:     time.Now,
	}
}

// Record upserts the snapshot for the given session id, replacing any prior
// snapshot in full. The slice is copied so later caller mutations cannot
// corrupt the record.
func (l *Ledger) Record(sessionID string, messages []model.Message) {
	snapshot := make([]model.Message, len(messages))
	copy(snapshot, messages)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[sessionID] = &Record{
		SessionID:   sessionID,
		LastUpdated: l.now(),
		Snapshot:    snapshot,
	}
	l.evictLocked()
}

// Get returns a copy of the record for the session id, or false when absent
// or expired. It exists for diagnostics and tests only.
func (l *Ledger) Get(sessionID string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[sessionID]
	if !ok || l.expired(rec) {
		return Record{}, false
	}
	out := Record{
		SessionID:   rec.SessionID,
		LastUpdated: rec.LastUpdated,
		Snapshot:    make([]model.Message, len(rec.Snapshot)),
	}
	copy(out.Snapshot, rec.Snapshot)
	return out, true
}

// Len returns the number of live records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, rec := range l.records {
		if !l.expired(rec) {
			n++
		}
	}
	return n
}

// Clear drops every record. Lifecycle use only; not exposed to clients.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]*Record)
}

// evictLocked drops expired records, then evicts the oldest records until
// the entry bound holds. Caller must hold the write lock.
func (l *Ledger) evictLocked() {
	for id, rec := range l.records {
		if l.expired(rec) {
			delete(l.records, id)
		}
	}
	for len(l.records) > l.opts.maxEntries {
		oldestID := ""
		var oldest time.Time
		for id, rec := range l.records {
			if oldestID == "" || rec.LastUpdated.Before(oldest) {
				oldestID = id
				oldest = rec.LastUpdated
			}
		}
		delete(l.records, oldestID)
	}
}

// expired reports whether the record's TTL has elapsed.
func (l *Ledger) expired(rec *Record) bool {
	return l.now().Sub(rec.LastUpdated) > l.opts.ttl
}
