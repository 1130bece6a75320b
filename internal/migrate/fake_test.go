package migrate

import (
	"context"
	"errors"
	"sort"
	"sync"

	"kv-migrator/internal/kv"
)

/* ---------------- Fake store handle ---------------- */

type write struct {
	key   string
	value []byte
	ttl   kv.TTL
}

// fakeHandle is a scripted kv.Handle that records every call.
type fakeHandle struct {
	mu sync.Mutex

	values map[string][]byte
	ttls   map[string]kv.TTL // absent means persistent

	listErr   error
	cursor    kv.KeyIterator
	getErr    map[string]error
	ttlErr    map[string]error
	setErr    map[string]error
	failSetN  map[string]int // fail the first n writes of a key with a connectivity error
	afterGet  func(key string)
	beforeSet func(ctx context.Context, key string)

	lists    int
	reads    int
	ttlReads int
	writes   []write
	setCalls map[string]int
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		values:   map[string][]byte{},
		ttls:     map[string]kv.TTL{},
		getErr:   map[string]error{},
		ttlErr:   map[string]error{},
		setErr:   map[string]error{},
		failSetN: map[string]int{},
		setCalls: map[string]int{},
	}
}

func (f *fakeHandle) put(key, value string, ttl kv.TTL) {
	f.values[key] = []byte(value)
	f.ttls[key] = ttl
}

func (f *fakeHandle) ListKeys(ctx context.Context) (kv.KeyIterator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.cursor != nil {
		return f.cursor, nil
	}
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return kv.SliceKeys(keys), nil
}

func (f *fakeHandle) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	f.reads++
	err := f.getErr[key]
	v, ok := f.values[key]
	hook := f.afterGet
	f.mu.Unlock()

	if err != nil {
		return nil, false, err
	}
	if hook != nil {
		hook(key)
	}
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *fakeHandle) GetTimeToLive(ctx context.Context, key string) (kv.TTL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ttlReads++
	if err := f.ttlErr[key]; err != nil {
		return kv.TTL{}, err
	}
	if _, ok := f.values[key]; !ok {
		return kv.Missing(), nil
	}
	if ttl, ok := f.ttls[key]; ok {
		return ttl, nil
	}
	return kv.Persistent(), nil
}

func (f *fakeHandle) SetValue(ctx context.Context, key string, value []byte, ttl kv.TTL) error {
	f.mu.Lock()
	hook := f.beforeSet
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.setCalls[key]++
	if n := f.failSetN[key]; n > 0 {
		f.failSetN[key] = n - 1
		return kv.Unreachable("set", key, errors.New("connection reset by peer"))
	}
	if err := f.setErr[key]; err != nil {
		return err
	}
	f.writes = append(f.writes, write{key: key, value: append([]byte(nil), value...), ttl: ttl})
	f.values[key] = append([]byte(nil), value...)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeHandle) written() map[string]write {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]write, len(f.writes))
	for _, w := range f.writes {
		out[w.key] = w
	}
	return out
}

func (f *fakeHandle) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

/* ---------------- Recording reporter ---------------- */

type recordingReporter struct {
	mu       sync.Mutex
	records  []Record
	finished []Summary
}

func (r *recordingReporter) KeyDone(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingReporter) Finished(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}

func (r *recordingReporter) byKey() map[string]Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Record, len(r.records))
	for _, rec := range r.records {
		out[rec.Key] = rec
	}
	return out
}

type panickingReporter struct{}

func (panickingReporter) KeyDone(Record)   { panic("sink closed") }
func (panickingReporter) Finished(Summary) { panic("sink closed") }
