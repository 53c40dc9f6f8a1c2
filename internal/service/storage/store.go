// Package storage persists captures in a flat folder. Every capture attempt
// owns three files sharing one ID: the image, its thumbnail and a JSON
// metadata record. The folder is the only source of truth, so listing is a
// directory scan and costs time linear in the number of files.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"camserver/internal/dto"
	"camserver/internal/logger"
	"camserver/internal/model"
)

// IDLayout is the time layout of capture identifiers.
const IDLayout = "20060102_150405"

const (
	imageExt      = ".jpeg"
	thumbPrefix   = "thumbnail_"
	metaPrefix    = "meta_"
	metaExt       = ".json"
	tempSuffix    = ".tmp"
	filePerm      = 0644
	directoryPerm = 0755
)

// Kind selects one of the files of a capture.
type Kind string

const (
	KindImage     Kind = "image"
	KindThumbnail Kind = "thumbnail"
)

// ParseKind validates a file kind coming from a request.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindImage, "":
		return KindImage, nil
	case KindThumbnail:
		return KindThumbnail, nil
	}
	return "", fmt.Errorf("unknown file kind %q", s)
}

var (
	// ErrNotFound is returned when a record or file does not exist.
	ErrNotFound = errors.New("capture not found")
	// ErrInvalidID is returned for identifiers that cannot name a file.
	ErrInvalidID = errors.New("invalid capture id")
	// ErrPending is returned when deleting a record that a sweep still owns.
	ErrPending = errors.New("capture still pending")

	validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// PersistenceError reports a failed write or delete in the image folder.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store reads and writes captures in one folder.
type Store struct {
	dir    string
	logger *logger.Logger
	mu     sync.RWMutex
}

// NewStore creates the folder if needed.
func NewStore(dir string, logger *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, directoryPerm); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the image folder.
func (s *Store) Dir() string {
	return s.dir
}

// ValidID reports whether id can be used as a file stem.
func ValidID(id string) bool {
	return validID.MatchString(id) && !strings.Contains(id, "..")
}

// ImageFilename, ThumbnailFilename and MetaFilename derive file names from an ID.
func ImageFilename(id string) string     { return id + imageExt }
func ThumbnailFilename(id string) string { return thumbPrefix + id + imageExt }
func MetaFilename(id string) string      { return metaPrefix + id + metaExt }

// ParseTimestamp reads the capture time encoded in an ID.
func ParseTimestamp(id string) (time.Time, error) {
	if len(id) < len(IDLayout) {
		return time.Time{}, fmt.Errorf("id %q too short", id)
	}
	return time.ParseInLocation(IDLayout, id[:len(IDLayout)], time.Local)
}

// Path returns the absolute path of one file of a capture.
func (s *Store) Path(id string, kind Kind) (string, error) {
	if !ValidID(id) {
		return "", ErrInvalidID
	}
	switch kind {
	case KindImage:
		return filepath.Join(s.dir, ImageFilename(id)), nil
	case KindThumbnail:
		return filepath.Join(s.dir, ThumbnailFilename(id)), nil
	}
	return "", fmt.Errorf("unknown file kind %q", kind)
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dir, MetaFilename(id))
}

// Save writes the raw image of a capture.
func (s *Store) Save(id string, data []byte) error {
	return s.writeKind("save image", id, KindImage, data)
}

// SaveThumbnail writes the thumbnail of a capture.
func (s *Store) SaveThumbnail(id string, data []byte) error {
	return s.writeKind("save thumbnail", id, KindThumbnail, data)
}

func (s *Store) writeKind(op, id string, kind Kind, data []byte) error {
	path, err := s.Path(id, kind)
	if err != nil {
		return &PersistenceError{Op: op, ID: id, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := writeFileAtomic(path, data); err != nil {
		return &PersistenceError{Op: op, ID: id, Err: err}
	}
	return nil
}

// WriteMeta creates or replaces the metadata record of a capture.
func (s *Store) WriteMeta(meta *model.ImageMeta) error {
	if !ValidID(meta.ID) {
		return &PersistenceError{Op: "write meta", ID: meta.ID, Err: ErrInvalidID}
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "write meta", ID: meta.ID, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := writeFileAtomic(s.metaPath(meta.ID), data); err != nil {
		return &PersistenceError{Op: "write meta", ID: meta.ID, Err: err}
	}
	return nil
}

// ReadMeta loads the metadata record of a capture.
func (s *Store) ReadMeta(id string) (*model.ImageMeta, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMetaFile(s.metaPath(id))
}

func (s *Store) readMetaFile(path string) (*model.ImageMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var meta model.ImageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

// Exists reports whether any file of the capture is present.
func (s *Store) Exists(id string) bool {
	if !ValidID(id) {
		return false
	}
	for _, name := range []string{MetaFilename(id), ImageFilename(id), ThumbnailFilename(id)} {
		if fileExists(filepath.Join(s.dir, name)) {
			return true
		}
	}
	return false
}

// Open returns a reader for one file of a capture.
func (s *Store) Open(id string, kind Kind) (io.ReadCloser, error) {
	path, err := s.Path(id, kind)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Info builds the listing view of one record.
func (s *Store) Info(meta *model.ImageMeta) dto.ImageInfo {
	info := dto.ImageInfo{ImageMeta: *meta}
	if ts, err := ParseTimestamp(meta.ID); err == nil {
		info.Timestamp = ts
	}
	if fileExists(filepath.Join(s.dir, ImageFilename(meta.ID))) {
		info.HasImage = true
		info.ImageFile = ImageFilename(meta.ID)
	}
	if fileExists(filepath.Join(s.dir, ThumbnailFilename(meta.ID))) {
		info.HasThumbnail = true
		info.ThumbnailFile = ThumbnailFilename(meta.ID)
	}
	return info
}

// List returns every record, most recent first. When maxResults is positive
// and exceeded, the oldest surplus records are deleted from the folder and
// only the retained ones are returned. Pending records are never deleted;
// a pending record past the limit stays on disk but is left out of the result.
func (s *Store) List(maxResults int) ([]dto.ImageInfo, error) {
	infos, err := s.scan()
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 || len(infos) <= maxResults {
		return infos, nil
	}
	if _, err := s.deleteAll(settledIDs(infos[maxResults:])); err != nil {
		return nil, err
	}
	return infos[:maxResults], nil
}

// Prune applies the retention policy without returning the listing. It
// returns the deleted IDs.
func (s *Store) Prune(maxResults int) ([]string, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	infos, err := s.scan()
	if err != nil {
		return nil, err
	}
	if len(infos) <= maxResults {
		return nil, nil
	}
	return s.deleteAll(settledIDs(infos[maxResults:]))
}

// FailPending marks every record still waiting as failed with msg. It is
// meant for startup, when no sweep can own those records any more.
func (s *Store) FailPending(msg string) ([]string, error) {
	infos, err := s.scan()
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, info := range infos {
		if !info.Waiting {
			continue
		}
		meta := info.ImageMeta
		if err := meta.Fail(msg); err != nil {
			return failed, err
		}
		if err := s.WriteMeta(&meta); err != nil {
			return failed, err
		}
		failed = append(failed, meta.ID)
	}
	return failed, nil
}

func settledIDs(infos []dto.ImageInfo) []string {
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.Waiting {
			ids = append(ids, info.ID)
		}
	}
	return ids
}

func (s *Store) scan() ([]dto.ImageInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	infos := make([]dto.ImageInfo, 0, len(entries)/3)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, metaPrefix) || !strings.HasSuffix(name, metaExt) {
			continue
		}
		meta, err := s.readMetaFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warning("Skipping unreadable record %s: %v", name, err)
			continue
		}
		if meta.ID == "" {
			meta.ID = strings.TrimSuffix(strings.TrimPrefix(name, metaPrefix), metaExt)
		}
		infos = append(infos, s.Info(meta))
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].Timestamp.Equal(infos[j].Timestamp) {
			return infos[i].Timestamp.After(infos[j].Timestamp)
		}
		return infos[i].ID > infos[j].ID
	})
	return infos, nil
}

// Delete removes every file of a capture. Pending records are refused with
// ErrPending.
func (s *Store) Delete(id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if !s.Exists(id) {
		return ErrNotFound
	}
	deleted, err := s.deleteAll([]string{id})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return ErrPending
	}
	return nil
}

// RemoveImage deletes the image and thumbnail of a capture but keeps its record.
func (s *Store) RemoveImage(id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range []string{ImageFilename(id), ThumbnailFilename(id)} {
		if err := removeIfExists(filepath.Join(s.dir, name)); err != nil {
			return &PersistenceError{Op: "remove image", ID: id, Err: err}
		}
	}
	return nil
}

// Clear deletes every capture file in the folder and returns how many files
// were removed. Files of pending records are kept.
func (s *Store) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read image directory: %w", err)
	}
	pending := make(map[string]bool)
	for _, entry := range entries {
		if id, ok := metaID(entry.Name()); ok && !entry.IsDir() && s.isPending(id) {
			pending[id] = true
		}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || pending[fileID(entry.Name())] {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Error("Error deleting file %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	if len(pending) > 0 {
		s.logger.Info("Kept %d pending capture(s) while clearing", len(pending))
	}
	return removed, nil
}

// deleteAll removes the files of each settled record. A record that is
// pending when the write lock is held is skipped, so a sweep never loses
// its record between scan and delete. Callers hold no lock.
func (s *Store) deleteAll(ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.isPending(id) {
			continue
		}
		for _, name := range []string{MetaFilename(id), ImageFilename(id), ThumbnailFilename(id)} {
			if err := removeIfExists(filepath.Join(s.dir, name)); err != nil {
				return deleted, &PersistenceError{Op: "delete", ID: id, Err: err}
			}
		}
		deleted = append(deleted, id)
	}
	if len(deleted) > 0 {
		s.logger.Info("Deleted %d old capture(s)", len(deleted))
	}
	return deleted, nil
}

// isPending reads the record of id; the caller holds s.mu.
func (s *Store) isPending(id string) bool {
	meta, err := s.readMetaFile(s.metaPath(id))
	return err == nil && meta.Waiting
}

func metaID(name string) (string, bool) {
	if !strings.HasPrefix(name, metaPrefix) || !strings.HasSuffix(name, metaExt) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, metaPrefix), metaExt), true
}

// fileID maps any file of a capture, temp files included, to its ID.
func fileID(name string) string {
	name = strings.TrimSuffix(name, tempSuffix)
	if id, ok := metaID(name); ok {
		return id
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, thumbPrefix), imageExt)
}

// writeFileAtomic writes to a temp file in the same folder and renames it
// over the target, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + tempSuffix
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
