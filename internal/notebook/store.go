// Package notebook holds the client-side state shared by everything that
// works on one notebook: which sources are selected as chat context, the
// optimistic source count, and which item the edit modal is showing.
package notebook

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"gwi.com/notebook-console/internal/store"
)

// SelectionPrefix starts every selection key in storage.
const SelectionPrefix = "notebook-selected-sources-"

// SelectionKey is the storage key for a notebook's selected sources.
func SelectionKey(notebookID string) string {
	return SelectionPrefix + notebookID
}

// EditTarget identifies what the edit modal is open on.
type EditTarget struct {
	Kind string // "notebook" or "source"
	ID   string
}

// Snapshot is a copy of the store state handed to subscribers.
type Snapshot struct {
	NotebookID  string
	Selected    []string
	SourceCount int
	Editing     *EditTarget
}

// SourceCounter fetches the authoritative number of sources in a notebook.
type SourceCounter interface {
	CountSources(ctx context.Context, notebookID string) (int, error)
}

type Store struct {
	mu          sync.Mutex
	notebookID  string
	storage     store.Storage
	degraded    bool
	selected    map[string]struct{}
	sourceCount int
	editing     *EditTarget

	nextSub int
	subs    map[int]func(Snapshot)
}

// New loads the persisted selection for notebookID. A nil storage behaves
// like store.Nop.
func New(notebookID string, storage store.Storage) *Store {
	if storage == nil {
		storage = store.Nop{}
	}
	s := &Store{
		notebookID: notebookID,
		storage:    storage,
		selected:   make(map[string]struct{}),
		subs:       make(map[int]func(Snapshot)),
	}
	s.loadLocked()
	return s
}

func (s *Store) NotebookID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notebookID
}

// ========== Selection ==========

func (s *Store) ToggleSourceSelection(id string) {
	s.mu.Lock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
	s.persistLocked()
	s.notifyLocked()
}

func (s *Store) SelectAllSources(ids []string) {
	s.mu.Lock()
	s.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.selected[id] = struct{}{}
	}
	s.persistLocked()
	s.notifyLocked()
}

// DeselectAllSources clears the selection and removes the storage key.
func (s *Store) DeselectAllSources() {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.persistLocked()
	s.notifyLocked()
}

// RetainSources drops selected ids that are not in ids.
func (s *Store) RetainSources(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	s.mu.Lock()
	changed := false
	for id := range s.selected {
		if _, ok := keep[id]; !ok {
			delete(s.selected, id)
			changed = true
		}
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	s.persistLocked()
	s.notifyLocked()
}

func (s *Store) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[id]
	return ok
}

// SelectedSources returns the selected ids in sorted order.
func (s *Store) SelectedSources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

func (s *Store) SelectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// SwitchNotebook points the store at another notebook and loads its
// persisted selection. Count and edit state belong to the old notebook and
// are reset.
func (s *Store) SwitchNotebook(notebookID string) {
	s.mu.Lock()
	if notebookID == s.notebookID {
		s.mu.Unlock()
		return
	}
	s.notebookID = notebookID
	s.selected = make(map[string]struct{})
	s.sourceCount = 0
	s.editing = nil
	s.loadLocked()
	s.notifyLocked()
}

// ========== Source count ==========

func (s *Store) SourceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceCount
}

func (s *Store) IncrementSourceCount() {
	s.mu.Lock()
	s.sourceCount++
	s.notifyLocked()
}

// DecrementSourceCount never goes below zero.
func (s *Store) DecrementSourceCount() {
	s.mu.Lock()
	if s.sourceCount > 0 {
		s.sourceCount--
	}
	s.notifyLocked()
}

func (s *Store) SetSourceCount(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.sourceCount = n
	s.notifyLocked()
}

// SyncSourceCount replaces the optimistic count with the backend's. A result
// for a notebook the store has since switched away from is dropped.
func (s *Store) SyncSourceCount(ctx context.Context, counter SourceCounter) error {
	notebookID := s.NotebookID()
	n, err := counter.CountSources(ctx, notebookID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.notebookID != notebookID {
		s.mu.Unlock()
		return nil
	}
	if n < 0 {
		n = 0
	}
	s.sourceCount = n
	s.notifyLocked()
	return nil
}

// ========== Edit modal ==========

func (s *Store) OpenEditModal(target EditTarget) {
	s.mu.Lock()
	s.editing = &target
	s.notifyLocked()
}

func (s *Store) CloseEditModal() {
	s.mu.Lock()
	s.editing = nil
	s.notifyLocked()
}

func (s *Store) EditTarget() (EditTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil {
		return EditTarget{}, false
	}
	return *s.editing, true
}

// ========== Subscriptions ==========

// Subscribe registers fn to run after every state change. fn runs without
// the store lock held and may call back into the store.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		NotebookID:  s.notebookID,
		Selected:    s.selectedLocked(),
		SourceCount: s.sourceCount,
	}
	if s.editing != nil {
		e := *s.editing
		snap.Editing = &e
	}
	return snap
}

// notifyLocked releases the lock before calling subscribers.
func (s *Store) notifyLocked() {
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) selectedLocked() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ========== Persistence ==========

func (s *Store) loadLocked() {
	if s.degraded {
		return
	}
	raw, ok, err := s.storage.Get(SelectionKey(s.notebookID))
	if err != nil {
		s.degradeLocked(err)
		return
	}
	if !ok {
		return
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Printf("Ignoring unreadable selection for notebook %s: %v", s.notebookID, err)
		return
	}
	for _, id := range ids {
		s.selected[id] = struct{}{}
	}
}

func (s *Store) persistLocked() {
	if s.degraded {
		return
	}
	key := SelectionKey(s.notebookID)
	if len(s.selected) == 0 {
		if err := s.storage.Remove(key); err != nil {
			s.degradeLocked(err)
		}
		return
	}
	data, err := json.Marshal(s.selectedLocked())
	if err != nil {
		return
	}
	if err := s.storage.Set(key, string(data)); err != nil {
		s.degradeLocked(err)
	}
}

// degradeLocked switches the store to memory-only for the rest of its life.
func (s *Store) degradeLocked(err error) {
	s.degraded = true
	log.Printf("Selection storage unavailable, keeping selection in memory only: %v", err)
}
