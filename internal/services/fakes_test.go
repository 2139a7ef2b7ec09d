package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport answers per token and records the peak number of
// concurrent Send calls.
type fakeTransport struct {
	respond func(token string) (models.PushResult, error)
	delay   time.Duration

	mu       sync.Mutex
	sent     []string
	payloads []PushPayload
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(_ context.Context, payload *PushPayload) ([]models.PushResult, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	token := payload.Tokens[0]
	f.mu.Lock()
	f.sent = append(f.sent, token)
	f.payloads = append(f.payloads, *payload)
	f.mu.Unlock()

	if f.respond == nil {
		return []models.PushResult{{Token: token, Provider: "fake", MessageID: "m-" + token}}, nil
	}
	res, err := f.respond(token)
	if err != nil {
		return nil, err
	}
	res.Token = token
	return []models.PushResult{res}, nil
}

func (f *fakeTransport) sentTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.sent...)
	sort.Strings(out)
	return out
}

// fakeRegistry is an in-memory recipient registry.
type fakeRegistry struct {
	mu      sync.Mutex
	tokens  map[string]models.Tier
	failOn  map[string]bool
	removes int
	readErr error
}

func newFakeRegistry(recipients ...models.Recipient) *fakeRegistry {
	r := &fakeRegistry{tokens: map[string]models.Tier{}, failOn: map[string]bool{}}
	for _, rec := range recipients {
		r.tokens[rec.Token] = rec.Tier
	}
	return r
}

func (r *fakeRegistry) Recipients(context.Context) ([]models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	out := make([]models.Recipient, 0, len(r.tokens))
	for token, tier := range r.tokens {
		out = append(out, models.Recipient{Token: token, Tier: tier})
	}
	return out, nil
}

func (r *fakeRegistry) RemoveRecipient(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removes++
	if r.failOn[token] {
		return errors.New("registry unavailable")
	}
	delete(r.tokens, token)
	return nil
}

func (r *fakeRegistry) has(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tokens[token]
	return ok
}

func (r *fakeRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// fakeSuppressor is an in-memory suppression cache.
type fakeSuppressor struct {
	mu      sync.Mutex
	tokens  map[string]time.Duration
	lookups int
}

func newFakeSuppressor(tokens ...string) *fakeSuppressor {
	s := &fakeSuppressor{tokens: map[string]time.Duration{}}
	for _, t := range tokens {
		s.tokens[t] = time.Hour
	}
	return s
}

func (s *fakeSuppressor) SuppressToken(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = ttl
	return nil
}

func (s *fakeSuppressor) SuppressedTokens(_ context.Context, tokens []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	out := map[string]bool{}
	for _, t := range tokens {
		if _, ok := s.tokens[t]; ok {
			out[t] = true
		}
	}
	return out, nil
}

func (s *fakeSuppressor) has(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// fakeDevices serves both the device registry and the location store.
type fakeDevices struct {
	devices   map[models.DeviceID]models.Device
	locations models.LocationTags
	err       error
}

func (f *fakeDevices) Devices(context.Context) (map[models.DeviceID]models.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

func (f *fakeDevices) Locations(context.Context) (models.LocationTags, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.locations, nil
}

// fakeCycles records every cycle upsert.
type fakeCycles struct {
	mu      sync.Mutex
	records []models.CycleRecord
}

func (f *fakeCycles) UpsertCycle(_ context.Context, rec models.CycleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeCycles) last() models.CycleRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}
