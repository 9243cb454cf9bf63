package content

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kkn-guyangan/desaweb/assets"
	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore is an in-memory Store. Updates merge under a lock, like the
// single-statement merge in docstore.
type memStore struct {
	mu     sync.Mutex
	seq    int
	docs   map[string]map[string]map[string]any
	order  map[string][]string
	create error
	update error
}

func newMemStore() *memStore {
	return &memStore{
		docs:  make(map[string]map[string]map[string]any),
		order: make(map[string][]string),
	}
}

func toMap(f docstore.Fields) (map[string]any, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	return m, json.Unmarshal(raw, &m)
}

func (s *memStore) Create(_ context.Context, collection string, f docstore.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.create != nil {
		return "", s.create
	}
	m, err := toMap(f)
	if err != nil {
		return "", err
	}
	s.seq++
	id := fmt.Sprintf("%s-%d", collection, s.seq)
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]any)
	}
	s.docs[collection][id] = m
	s.order[collection] = append(s.order[collection], id)
	return id, nil
}

// put stores raw JSON as-is, for documents written by other clients.
func (s *memStore) put(collection, id, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(err)
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]any)
	}
	s.docs[collection][id] = m
	s.order[collection] = append(s.order[collection], id)
}

func (s *memStore) doc(collection, id string) (docstore.Document, bool) {
	m, ok := s.docs[collection][id]
	if !ok {
		return docstore.Document{}, false
	}
	raw, _ := json.Marshal(m)
	return docstore.Document{ID: id, Data: raw}, true
}

func (s *memStore) List(_ context.Context, collection string) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []docstore.Document
	for _, id := range s.order[collection] {
		if d, ok := s.doc(collection, id); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doc(collection, id)
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return d, nil
}

func (s *memStore) Update(_ context.Context, collection, id string, partial docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.update != nil {
		return s.update
	}
	cur, ok := s.docs[collection][id]
	if !ok {
		return docstore.ErrNotFound
	}
	m, err := toMap(partial)
	if err != nil {
		return err
	}
	for k, v := range m {
		cur[k] = v
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], id)
	return nil
}

func (s *memStore) FindByCredentials(_ context.Context, username, password string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order[docstore.Accounts] {
		m, ok := s.docs[docstore.Accounts][id]
		if ok && m["username"] == username && m["password"] == password {
			d, _ := s.doc(docstore.Accounts, id)
			return d, nil
		}
	}
	return docstore.Document{}, docstore.ErrNotFound
}

func (s *memStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

func (s *memStore) field(collection, id, key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[collection][id][key]
}

// fakeHost records uploads and deletes.
type fakeHost struct {
	mu        sync.Mutex
	uploads   []imaging.Image
	deleted   []string
	uploadErr error
	deleteErr error
}

func (h *fakeHost) Upload(_ context.Context, img imaging.Image) (assets.Asset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.uploadErr != nil {
		return assets.Asset{}, h.uploadErr
	}
	h.uploads = append(h.uploads, img)
	n := len(h.uploads)
	return assets.Asset{URL: fmt.Sprintf("https://cdn.test/img-%d.jpg", n), PublicID: fmt.Sprintf("img-%d", n)}, nil
}

func (h *fakeHost) Delete(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deleteErr != nil {
		return h.deleteErr
	}
	h.deleted = append(h.deleted, url)
	return nil
}

func (h *fakeHost) uploadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.uploads)
}

// spyCompressor counts calls and returns a fixed small JPEG payload.
type spyCompressor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *spyCompressor) Compress(_ context.Context, img imaging.Image) (imaging.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return imaging.Image{}, c.err
	}
	return imaging.Image{Name: img.Name, MIMEType: "image/jpeg", Data: []byte("small"), ModTime: img.ModTime}, nil
}

func (c *spyCompressor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	store *memStore
	host  *fakeHost
	comp  *spyCompressor
	clock *clock
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store: newMemStore(),
		host:  &fakeHost{},
		comp:  &spyCompressor{},
		clock: &clock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	opts = append([]Option{WithClock(f.clock.Now), WithImageCeiling(64)}, opts...)
	f.svc = New(f.store, f.host, f.comp, opts...)
	return f
}

func smallJPEG() imaging.Image {
	return imaging.Image{Name: "foto.jpg", MIMEType: "image/jpeg", Data: []byte("tiny-jpeg")}
}

func largePNG() imaging.Image {
	return imaging.Image{Name: "besar.png", MIMEType: "image/png", Data: make([]byte, 65)}
}
