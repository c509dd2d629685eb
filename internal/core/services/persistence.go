package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/logger"
)

// defaultIndexName is the snapshot name used when none is given.
const defaultIndexName = "index"

// saveQueueSize bounds the persistence request queue. Requests carry
// only a name, so a deep queue is cheap; enqueue blocks briefly in the
// unlikely case the worker falls this far behind.
const saveQueueSize = 64

// backupSuffix names the transient sibling files written during a
// save. They exist only between backup and cleanup inside one save
// cycle.
const backupSuffix = ".bak"

// saveRequest is one message on the persistence queue. stop is the
// distinguished shutdown sentinel; the worker exits when it dequeues
// one, after having drained everything enqueued before it.
type saveRequest struct {
	name string
	stop bool
}

// persister is the single background worker draining the save queue.
// Saves run strictly one at a time, so there is never more than one
// physical write in flight. A save persists whatever the live store
// state is at dequeue time; it is not a frozen snapshot from enqueue
// time.
type persister struct {
	store    *StoreService
	requests chan saveRequest
	done     chan struct{}
	stopOnce sync.Once
}

func newPersister(store *StoreService) *persister {
	p := &persister{
		store:    store,
		requests: make(chan saveRequest, saveQueueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue queues a named save and returns without waiting for the
// write. Failures of the eventual save surface only in the log; the
// caller has no channel left to report to. Once the worker has
// stopped, requests are dropped with a warning instead of blocking
// on a queue nobody drains.
func (p *persister) enqueue(name string) {
	select {
	case <-p.done:
		logger.Warn("Dropping save of %q: persistence worker stopped", name)
		return
	default:
	}

	select {
	case p.requests <- saveRequest{name: name}:
		logger.Debug("Queueing save of %q", name)
	case <-p.done:
		logger.Warn("Dropping save of %q: persistence worker stopped", name)
	}
}

// stop enqueues the shutdown sentinel and waits for the worker to
// drain and exit. Safe to call more than once.
func (p *persister) stop() {
	p.stopOnce.Do(func() {
		p.requests <- saveRequest{stop: true}
		<-p.done
	})
}

func (p *persister) run() {
	defer close(p.done)
	for req := range p.requests {
		if req.stop {
			return
		}
		if err := p.performSave(req.name); err != nil {
			logger.Warn("Save of %q failed: %v", req.name, err)
			continue
		}
		logger.Info("Save of %q completed", req.name)
	}
}

// performSave writes one snapshot using the backup-commit-cleanup
// protocol: copy any existing files aside, rebuild the index from the
// document table, write both files, restore from the backups on any
// failure, and always delete the backups once the outcome is final.
func (p *persister) performSave(name string) error {
	vectors := p.store.vectorsPath(name)
	meta := p.store.metaPath(name)
	vectorsBak := vectors + backupSuffix
	metaBak := meta + backupSuffix

	if err := backupFile(vectors, vectorsBak); err != nil {
		return err
	}
	if err := backupFile(meta, metaBak); err != nil {
		removeIfExists(vectorsBak)
		return err
	}
	defer func() {
		removeIfExists(vectorsBak)
		removeIfExists(metaBak)
	}()

	err := func() error {
		if err := p.store.RebuildIndex(context.Background()); err != nil {
			return err
		}
		return p.store.writeSnapshot(name)
	}()
	if err != nil {
		restoreFile(vectorsBak, vectors)
		restoreFile(metaBak, meta)
		return err
	}
	return nil
}

// writeSnapshot serialises the live index, document table and mapping
// under the read lock, blocking mutations for the duration of the
// write so the two files describe the same state.
func (s *StoreService) writeSnapshot(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.index.Save(s.vectorsPath(name)); err != nil {
		return fmt.Errorf("writing vectors: %w", err)
	}

	f, err := os.Create(s.metaPath(name))
	if err != nil {
		return fmt.Errorf("creating meta file: %w", err)
	}
	snap := metaSnapshot{Docstore: s.docstore, Mapping: s.mapping}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		return fmt.Errorf("writing meta: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing meta file: %w", err)
	}
	return nil
}

// loadSnapshot restores the store from a named snapshot. Missing files
// leave the store empty; a half-present snapshot or a count mismatch
// between the files is a consistency error.
func (s *StoreService) loadSnapshot(name string) error {
	vectors := s.vectorsPath(name)
	meta := s.metaPath(name)

	vectorsExist := fileExists(vectors)
	metaExists := fileExists(meta)
	if !vectorsExist && !metaExists {
		return nil
	}
	if vectorsExist != metaExists {
		return fmt.Errorf("%w: snapshot %q has only one of its two files",
			domain.ErrStoreConsistency, name)
	}

	if err := s.index.Load(vectors); err != nil {
		return fmt.Errorf("loading vectors: %w", err)
	}

	data, err := os.ReadFile(meta)
	if err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}
	var snap metaSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding meta: %w", err)
	}
	if snap.Docstore == nil {
		snap.Docstore = make(map[string]domain.Document)
	}

	if len(snap.Mapping) != s.index.Count() || len(snap.Docstore) != len(snap.Mapping) {
		return fmt.Errorf("%w: snapshot %q holds %d vectors, %d slots, %d documents",
			domain.ErrStoreConsistency, name, s.index.Count(), len(snap.Mapping), len(snap.Docstore))
	}

	s.docstore = snap.Docstore
	s.mapping = snap.Mapping
	logger.Info("Loaded snapshot %q with %d documents", name, len(s.mapping))
	return nil
}

// backupFile copies src to dst when src exists.
func backupFile(src, dst string) error {
	if !fileExists(src) {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("backing up %s: %w", src, err)
	}
	return nil
}

// restoreFile copies a backup over its original when it exists.
// Restore failures are logged, not returned: the save already failed
// and the log is the only channel left.
func restoreFile(bak, dst string) {
	if !fileExists(bak) {
		return
	}
	if err := copyFile(bak, dst); err != nil {
		logger.Warn("Restoring %s from backup failed: %v", dst, err)
		return
	}
	logger.Info("Restored %s from backup", dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Removing %s failed: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
