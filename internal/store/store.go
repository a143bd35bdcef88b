package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/review"
)

// RecordStore is the arena of finding records shared between the caller and
// the persistence worker. A single coarse mutex guards both identity maps and
// every record field; records are created lazily and never deleted during the
// process lifetime.
type RecordStore struct {
	mu            sync.Mutex
	byHash        map[findings.ContentHash]*Record
	byStoreID     map[int64]*Record
	evaluationIDs map[int64]struct{}
}

// NewRecordStore constructs an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		byHash:        make(map[findings.ContentHash]*Record),
		byStoreID:     make(map[int64]*Record),
		evaluationIDs: make(map[int64]struct{}),
	}
}

// GetOrCreate returns the record for the given content hash, creating it on
// first reference. It is idempotent and never fails. The returned pointer is
// an identity handle; callers read and mutate record state only through
// RecordStore methods.
func (s *RecordStore) GetOrCreate(hash findings.ContentHash) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(hash)
}

func (s *RecordStore) getOrCreateLocked(hash findings.ContentHash) *Record {
	if record, ok := s.byHash[hash]; ok {
		return record
	}
	record := &Record{
		Hash:           hash,
		FiledAtSeconds: NeverFiledSeconds,
	}
	s.byHash[hash] = record
	return record
}

// Observe registers a locally observed finding occurrence on its record,
// creating the record if needed. The record's first-seen timestamp only ever
// moves earlier.
func (s *RecordStore) Observe(finding findings.Finding) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getOrCreateLocked(finding.Hash)
	if !slices.Contains(record.Instances, finding) {
		record.Instances = append(record.Instances, finding)
	}
	if record.FirstSeenSeconds == 0 || (finding.FirstSeenSeconds > 0 && finding.FirstSeenSeconds < record.FirstSeenSeconds) {
		record.FirstSeenSeconds = finding.FirstSeenSeconds
	}
	return record
}

// BindStoreID attaches a backing-store identity and its stored fields to the
// record for the given hash. Binding an unknown hash is a no-op. Rebinding the
// same (hash, id, firstSeen) triple is accepted; any conflicting rebinding
// indicates backing-store corruption and panics.
func (s *RecordStore) BindStoreID(hash findings.ContentHash, id int64, firstSeenSeconds int64, filingKey string, filedAtSeconds *int64, filedBy string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok {
		return
	}
	if bound, ok := s.byStoreID[id]; ok {
		if bound != record || record.StoreID != id || record.FirstSeenSeconds != firstSeenSeconds {
			panic(fmt.Sprintf("store: conflicting binding for store id %d (hash %s)", id, hash))
		}
		return
	}

	record.StoreID = id
	record.InStore = true
	record.FirstSeenSeconds = firstSeenSeconds
	record.FilingKey = filingKey
	record.FiledBy = filedBy
	if filedAtSeconds != nil {
		record.FiledAtSeconds = *filedAtSeconds
	} else {
		record.FiledAtSeconds = NeverFiledSeconds
	}
	s.byStoreID[id] = record
}

// AttachEvaluation appends a designation loaded from the backing store to the
// record bound to the given finding identity. Orphaned evaluations whose
// parent identity is unknown are dropped, as are evaluation rows seen before.
// It reports whether the designation was attached.
func (s *RecordStore) AttachEvaluation(evaluationID, findingID int64, designation review.Designation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byStoreID[findingID]
	if !ok {
		return false
	}
	if _, seen := s.evaluationIDs[evaluationID]; seen {
		return false
	}
	s.evaluationIDs[evaluationID] = struct{}{}
	record.History = append(record.History, designation)
	return true
}

// AppendDesignation appends a freshly persisted designation to the record's
// history, remembering its generated row identity.
func (s *RecordStore) AppendDesignation(hash findings.ContentHash, evaluationID int64, designation review.Designation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok {
		return
	}
	if evaluationID != 0 {
		s.evaluationIDs[evaluationID] = struct{}{}
	}
	record.History = append(record.History, designation)
}

// LowerFirstSeen moves the record's first-seen timestamp earlier. It reports
// whether the value changed; later timestamps never overwrite earlier ones.
func (s *RecordStore) LowerFirstSeen(hash findings.ContentHash, seconds int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok || seconds <= 0 {
		return false
	}
	if record.FirstSeenSeconds != 0 && seconds >= record.FirstSeenSeconds {
		return false
	}
	record.FirstSeenSeconds = seconds
	return true
}

// MarkFiled stamps the record's filing linkage fields.
func (s *RecordStore) MarkFiled(hash findings.ContentHash, filingKey, filedBy string, filedAtSeconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok {
		return
	}
	record.FilingKey = filingKey
	record.FiledBy = filedBy
	record.FiledAtSeconds = filedAtSeconds
}

// Snapshot returns a copy of the record state for the given hash. The copy's
// history and instance slices are detached from the live record.
func (s *RecordStore) Snapshot(hash findings.ContentHash) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok {
		return Record{}, false
	}
	return snapshotLocked(record), true
}

// SnapshotByStoreID returns a copy of the record bound to the given backing
// store identity.
func (s *RecordStore) SnapshotByStoreID(id int64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byStoreID[id]
	if !ok {
		return Record{}, false
	}
	return snapshotLocked(record), true
}

func snapshotLocked(record *Record) Record {
	copied := *record
	copied.History = append(review.History(nil), record.History...)
	copied.Instances = append([]findings.Finding(nil), record.Instances...)
	return copied
}

// WorkingDesignation returns the local reviewer's designation draft for the
// record: the explicit draft when one exists, else the reviewer's most recent
// entry in the persisted history.
func (s *RecordStore) WorkingDesignation(hash findings.ContentHash, user string) (review.Designation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok {
		return review.Designation{}, false
	}
	if record.workingSet {
		return record.working, true
	}
	return record.History.LatestBy(user)
}

// SetWorkingDesignation stores the local reviewer's designation draft.
func (s *RecordStore) SetWorkingDesignation(hash findings.ContentHash, designation review.Designation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[hash]
	if !ok {
		return
	}
	record.working = designation
	record.workingSet = true
}
