package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// ReconnectManager tracks disconnected players across all tables and
// issues signed reconnect tokens. It is a process-wide collaborator;
// operations are atomic under its lock.
type ReconnectManager struct {
	secret []byte
	clock  quartz.Clock
	grace  time.Duration

	mu      sync.Mutex
	records map[string]disconnectInfo // key table|player
}

type disconnectInfo struct {
	At    time.Time
	Token string
}

// NewReconnectManager creates the store. An empty secret generates a
// random one, which invalidates outstanding tokens across restarts.
func NewReconnectManager(secret string, grace time.Duration, clock quartz.Clock) *ReconnectManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &ReconnectManager{
		secret:  key,
		clock:   clock,
		grace:   grace,
		records: make(map[string]disconnectInfo),
	}
}

func reconnectKey(tableID, playerID string) string {
	return tableID + "|" + playerID
}

// HandleDisconnect records the disconnect time and returns the signed
// token the player must present to rejoin within the grace window.
func (r *ReconnectManager) HandleDisconnect(tableID, playerID string) string {
	now := r.clock.Now()
	token := r.sign(tableID, playerID, now)
	r.mu.Lock()
	r.records[reconnectKey(tableID, playerID)] = disconnectInfo{At: now, Token: token}
	r.mu.Unlock()
	return token
}

// HandleReconnect verifies the token and clears the disconnect record.
// Returns the grace time that was remaining.
func (r *ReconnectManager) HandleReconnect(tableID, playerID, token string) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.records[reconnectKey(tableID, playerID)]
	if !ok {
		return 0, fmt.Errorf("%w: no disconnect on record", errBadToken)
	}
	if !hmac.Equal([]byte(info.Token), []byte(token)) {
		return 0, errBadToken
	}
	delete(r.records, reconnectKey(tableID, playerID))
	remaining := r.grace - r.clock.Now().Sub(info.At)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// DisconnectedAt returns the recorded disconnect time, if any.
func (r *ReconnectManager) DisconnectedAt(tableID, playerID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.records[reconnectKey(tableID, playerID)]
	return info.At, ok
}

// ExpireIfElapsed drops a single disconnect record if its grace window
// has elapsed by now, reporting whether it did. A reconnect in the
// meantime leaves nothing to expire.
func (r *ReconnectManager) ExpireIfElapsed(tableID, playerID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reconnectKey(tableID, playerID)
	info, ok := r.records[key]
	if !ok || now.Sub(info.At) < r.grace {
		return false
	}
	delete(r.records, key)
	return true
}

// CheckTimeouts lists players whose grace elapsed by now and drops
// their records; the table loop commits their auto-action or removal.
func (r *ReconnectManager) CheckTimeouts(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []string
	for key, info := range r.records {
		if now.Sub(info.At) >= r.grace {
			expired = append(expired, key)
			delete(r.records, key)
		}
	}
	return expired
}

// SplitKey decomposes a CheckTimeouts entry into (tableID, playerID).
func SplitKey(key string) (string, string) {
	i := strings.LastIndex(key, "|")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// sign derives the reconnect token: the claim plus an HMAC-SHA256 tag.
func (r *ReconnectManager) sign(tableID, playerID string, at time.Time) string {
	claim := fmt.Sprintf("%s|%s|%d", tableID, playerID, at.UnixNano())
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(claim))
	return claim + "." + hex.EncodeToString(mac.Sum(nil))
}

// actionLog is the bounded per-table history used to replay missed
// actions to a reconnecting player. Oldest entries drop FIFO past the
// cap.
type actionLog struct {
	max     int
	entries []LoggedAction
}

func newActionLog(max int) *actionLog {
	return &actionLog{max: max}
}

func (l *actionLog) Append(seq uint64, event string, payload any, at time.Time) {
	l.entries = append(l.entries, LoggedAction{Sequence: seq, Event: event, Payload: payload, At: at})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Since returns the entries recorded strictly after t, in order.
func (l *actionLog) Since(t time.Time) []LoggedAction {
	for i, e := range l.entries {
		if e.At.After(t) {
			out := make([]LoggedAction, len(l.entries)-i)
			copy(out, l.entries[i:])
			return out
		}
	}
	return nil
}

func (l *actionLog) Len() int {
	return len(l.entries)
}
