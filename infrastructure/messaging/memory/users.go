package memory

import (
	"context"
	"encoding/json"
	"sync"

	"order-service/pkg/contracts"
)

// UserDirectory answers user.verify requests from an in-memory set of users.
type UserDirectory struct {
	mu       sync.RWMutex
	users    map[string]struct{}
	allowAll bool
	requests int
}

// NewUserDirectory knows the given users. With no users and allowAll set,
// every non-empty id exists, which is what local development runs with.
func NewUserDirectory(allowAll bool, users ...string) *UserDirectory {
	d := &UserDirectory{users: make(map[string]struct{}), allowAll: allowAll}
	for _, u := range users {
		d.users[u] = struct{}{}
	}
	return d
}

func (d *UserDirectory) Add(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = struct{}{}
}

// Requests counts the verification requests answered so far.
func (d *UserDirectory) Requests() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.requests
}

func (d *UserDirectory) Respond(_ context.Context, payload []byte) ([]byte, error) {
	var req contracts.UserVerifyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.requests++
	_, known := d.users[req.UserID]
	exists := known || (d.allowAll && req.UserID != "")
	d.mu.Unlock()

	return json.Marshal(contracts.UserVerifyResponse{Exists: exists})
}

// Install registers the directory as the user.verify responder.
func (d *UserDirectory) Install(b *Broker) {
	b.Handle(contracts.TopicUserVerify, d.Respond)
}
