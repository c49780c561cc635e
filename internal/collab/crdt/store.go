package crdt

import (
	"sync"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// DocumentStore owns one Document per file_id for a single session. It
// is not safe for concurrent use on its own — SharedDocumentStore adds
// the locking, matching the spec's "single-threaded per session;
// external callers serialize via the Session Manager" rule.
type DocumentStore struct {
	clientID  uint64
	documents map[string]*Document
}

// NewDocumentStore creates an empty store. clientID identifies this
// process's edits in every Document it creates.
func NewDocumentStore(clientID uint64) *DocumentStore {
	return &DocumentStore{clientID: clientID, documents: make(map[string]*Document)}
}

// GetOrCreate returns the replica for fileID, creating an empty one if
// absent.
func (s *DocumentStore) GetOrCreate(fileID string) *Document {
	if doc, ok := s.documents[fileID]; ok {
		return doc
	}
	doc := NewDocument(fileID, s.clientID)
	s.documents[fileID] = doc
	return doc
}

// GetOrCreateWithText returns the replica for fileID, seeding it with
// initialText if it did not already exist.
func (s *DocumentStore) GetOrCreateWithText(fileID, initialText string) *Document {
	if doc, ok := s.documents[fileID]; ok {
		return doc
	}
	doc := NewDocumentWithText(fileID, s.clientID, initialText)
	s.documents[fileID] = doc
	return doc
}

// Get returns the replica for fileID, or NotFound if none exists.
func (s *DocumentStore) Get(fileID string) (*Document, error) {
	doc, ok := s.documents[fileID]
	if !ok {
		return nil, coreerrors.NotFound("no document replica for file %q", fileID)
	}
	return doc, nil
}

// Remove deletes the replica for fileID, if any.
func (s *DocumentStore) Remove(fileID string) {
	delete(s.documents, fileID)
}

// FileIDs returns the set of file IDs with a live replica.
func (s *DocumentStore) FileIDs() []string {
	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	return ids
}

// ApplyUpdate applies update to the replica for fileID.
func (s *DocumentStore) ApplyUpdate(fileID string, update []byte) error {
	doc, err := s.Get(fileID)
	if err != nil {
		return err
	}
	return doc.ApplyUpdate(update)
}

// EncodeState returns the full state for fileID.
func (s *DocumentStore) EncodeState(fileID string) ([]byte, error) {
	doc, err := s.Get(fileID)
	if err != nil {
		return nil, err
	}
	return doc.EncodeState()
}

// EncodeStateVector returns the state vector for fileID.
func (s *DocumentStore) EncodeStateVector(fileID string) ([]byte, error) {
	doc, err := s.Get(fileID)
	if err != nil {
		return nil, err
	}
	return doc.EncodeStateVector()
}

// EncodeDiff returns the diff against remoteStateVector for fileID.
func (s *DocumentStore) EncodeDiff(fileID string, remoteStateVector []byte) ([]byte, error) {
	doc, err := s.Get(fileID)
	if err != nil {
		return nil, err
	}
	return doc.EncodeDiff(remoteStateVector)
}

// SharedDocumentStore wraps a DocumentStore with a single read-write
// lock, giving every exported method a consistent critical section —
// the concurrency story the spec assigns to the Session Manager layer
// above the store itself.
type SharedDocumentStore struct {
	mu    sync.RWMutex
	store *DocumentStore
}

// NewSharedDocumentStore wraps a fresh DocumentStore for clientID.
func NewSharedDocumentStore(clientID uint64) *SharedDocumentStore {
	return &SharedDocumentStore{store: NewDocumentStore(clientID)}
}

func (s *SharedDocumentStore) GetOrCreate(fileID string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetOrCreate(fileID)
}

func (s *SharedDocumentStore) GetOrCreateWithText(fileID, initialText string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetOrCreateWithText(fileID, initialText)
}

func (s *SharedDocumentStore) Remove(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Remove(fileID)
}

func (s *SharedDocumentStore) FileIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.FileIDs()
}

func (s *SharedDocumentStore) ApplyUpdate(fileID string, update []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ApplyUpdate(fileID, update)
}

func (s *SharedDocumentStore) EncodeState(fileID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.EncodeState(fileID)
}

func (s *SharedDocumentStore) EncodeStateVector(fileID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.EncodeStateVector(fileID)
}

func (s *SharedDocumentStore) EncodeDiff(fileID string, remoteStateVector []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.EncodeDiff(fileID, remoteStateVector)
}

// Insert inserts text into fileID's replica under the store's lock.
func (s *SharedDocumentStore) Insert(fileID string, offset int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.GetOrCreate(fileID).Insert(offset, text)
}

// Delete removes length runes from fileID's replica under the store's lock.
func (s *SharedDocumentStore) Delete(fileID string, offset, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.GetOrCreate(fileID).Delete(offset, length)
}

// GetText returns fileID's current visible text.
func (s *SharedDocumentStore) GetText(fileID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.store.Get(fileID)
	if err != nil {
		return "", err
	}
	return doc.GetText(), nil
}
