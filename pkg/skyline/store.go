package skyline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/orneryd/skyline/pkg/cache"
	"github.com/orneryd/skyline/pkg/route"
	"github.com/orneryd/skyline/pkg/spill"
	"github.com/orneryd/skyline/pkg/storage"
)

var (
	// ErrInvalidArgument reports a negative budget, a nil label or a missing
	// search parameter.
	ErrInvalidArgument = route.ErrInvalidArgument
	// ErrStorageFailure wraps every spill tier read or write failure.
	ErrStorageFailure = errors.New("skyline storage failure")
)

// StoreConfig configures a Store.
type StoreConfig struct {
	Criteria    *route.Criteria
	Destination storage.NodeID

	// Policy picks eviction victims. Nil defaults to LRU.
	Policy cache.Policy[storage.NodeID]
	// Tier receives spilled lists. Nil defaults to an in-memory tier.
	Tier spill.Tier
	// MaxLabels bounds the labels held in memory across all nodes.
	// Zero means unlimited; negative is rejected.
	MaxLabels int

	Logger *slog.Logger
}

// StoreStats is a snapshot of a Store's bookkeeping. PeakLabels is the
// highest in-memory label count left behind by Add.
type StoreStats struct {
	Labels        int
	ResidentNodes int
	SpilledNodes  int
	PeakLabels    int
	Spills        uint64
	Faults        uint64
	Hits          uint64
	Misses        uint64
	HitRatio      float64
}

// Store holds the sub-route skyline of every node touched by a search.
//
// Lists live in memory until the label budget is exceeded; then whole lists
// are paged out to the spill tier in the order the eviction policy chooses,
// and paged back in on the next access. A node is always in exactly one of
// three states: absent, in memory, or spilled.
//
// A Store belongs to a single search and is not safe for concurrent use.
type Store struct {
	criteria *route.Criteria
	dest     storage.NodeID
	policy   cache.Policy[storage.NodeID]
	tier     spill.Tier
	limit    int
	logger   *slog.Logger

	inMemory map[storage.NodeID][]*route.Label
	onDisk   map[storage.NodeID]struct{}
	count    int
	peak     int

	spills uint64
	faults uint64
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Criteria == nil {
		return nil, fmt.Errorf("store needs criteria: %w", ErrInvalidArgument)
	}
	if cfg.MaxLabels < 0 {
		return nil, fmt.Errorf("negative label budget %d: %w", cfg.MaxLabels, ErrInvalidArgument)
	}

	s := &Store{
		criteria: cfg.Criteria,
		dest:     cfg.Destination,
		policy:   cfg.Policy,
		tier:     cfg.Tier,
		limit:    cfg.MaxLabels,
		logger:   cfg.Logger,
		inMemory: make(map[storage.NodeID][]*route.Label),
		onDisk:   make(map[storage.NodeID]struct{}),
	}
	if s.policy == nil {
		s.policy = cache.NewLRU[storage.NodeID]()
	}
	if s.tier == nil {
		s.tier = spill.NewMemoryTier()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Get returns the labels of node, paging them in if they were spilled. An
// unknown node gets an empty in-memory entry. The returned slice is a copy.
func (s *Store) Get(node storage.NodeID) ([]*route.Label, error) {
	if list, ok := s.inMemory[node]; ok {
		s.policy.RecordHit()
		s.policy.OnRead(node)
		return cloneList(list), nil
	}

	if _, ok := s.onDisk[node]; ok {
		s.policy.RecordMiss()
		if err := s.faultIn(node); err != nil {
			return nil, err
		}
		s.policy.OnRead(node)
		return cloneList(s.inMemory[node]), nil
	}

	s.inMemory[node] = nil
	s.policy.OnRead(node)
	return nil, nil
}

// Add appends label to its node's list. It returns false when an equal label
// is already present. Exceeding the budget afterwards spills victim lists.
func (s *Store) Add(node storage.NodeID, label *route.Label) (bool, error) {
	if label == nil {
		return false, fmt.Errorf("nil label for %s: %w", node, ErrInvalidArgument)
	}
	if err := s.ensureResident(node); err != nil {
		return false, err
	}

	list := s.inMemory[node]
	for _, existing := range list {
		if existing.Equal(label) {
			return false, nil
		}
	}

	s.inMemory[node] = append(list, label)
	s.count++
	s.policy.OnWrite(node)

	if err := s.enforceBudget(); err != nil {
		return true, err
	}
	s.peak = max(s.peak, s.count)
	return true, nil
}

// MarkProcessed replaces the label equal to label with a copy marked as
// expanded, so the mark pages out together with the list. Like
// RemoveSubRoute it does not touch eviction bookkeeping.
func (s *Store) MarkProcessed(node storage.NodeID, label *route.Label) (bool, error) {
	if label == nil {
		return false, fmt.Errorf("nil label for %s: %w", node, ErrInvalidArgument)
	}
	if _, ok := s.onDisk[node]; ok {
		if err := s.faultIn(node); err != nil {
			return false, err
		}
	}

	for i, existing := range s.inMemory[node] {
		if existing.Equal(label) {
			if !existing.Processed() {
				s.inMemory[node][i] = existing.AsProcessed()
			}
			return true, nil
		}
	}
	return false, nil
}

// RemoveSubRoute deletes the label equal to label from node's list. It does
// not touch eviction bookkeeping.
func (s *Store) RemoveSubRoute(node storage.NodeID, label *route.Label) (bool, error) {
	if label == nil {
		return false, fmt.Errorf("nil label for %s: %w", node, ErrInvalidArgument)
	}
	if _, ok := s.onDisk[node]; ok {
		if err := s.faultIn(node); err != nil {
			return false, err
		}
	}

	list := s.inMemory[node]
	for i, existing := range list {
		if existing.Equal(label) {
			s.inMemory[node] = append(list[:i:i], list[i+1:]...)
			s.count--
			return true, nil
		}
	}
	return false, nil
}

// RemoveAllFromMemory drops node's in-memory list without spilling it.
func (s *Store) RemoveAllFromMemory(node storage.NodeID) {
	if list, ok := s.inMemory[node]; ok {
		s.count -= len(list)
		delete(s.inMemory, node)
	}
}

// SizeOf returns the number of labels held for node.
func (s *Store) SizeOf(node storage.NodeID) (int, error) {
	if _, ok := s.onDisk[node]; ok {
		if err := s.faultIn(node); err != nil {
			return 0, err
		}
	}
	return len(s.inMemory[node]), nil
}

// HasSubRoutes reports whether node holds at least one label.
func (s *Store) HasSubRoutes(node storage.NodeID) (bool, error) {
	n, err := s.SizeOf(node)
	return n > 0, err
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Labels:        s.count,
		ResidentNodes: len(s.inMemory),
		SpilledNodes:  len(s.onDisk),
		PeakLabels:    s.peak,
		Spills:        s.spills,
		Faults:        s.faults,
		Hits:          s.policy.Hits(),
		Misses:        s.policy.Misses(),
		HitRatio:      s.policy.HitRatio(),
	}
}

// Close releases the spill tier, discarding every spilled list.
func (s *Store) Close() error {
	s.inMemory = nil
	s.onDisk = nil
	s.count = 0
	if err := s.tier.Close(); err != nil {
		return fmt.Errorf("%w: close tier: %w", ErrStorageFailure, err)
	}
	return nil
}

// ensureResident brings node into memory, creating an empty entry when the
// node is unknown.
func (s *Store) ensureResident(node storage.NodeID) error {
	if _, ok := s.inMemory[node]; ok {
		return nil
	}
	if _, ok := s.onDisk[node]; ok {
		return s.faultIn(node)
	}
	s.inMemory[node] = nil
	s.policy.OnWrite(node)
	return nil
}

// enforceBudget spills victims until the in-memory label count is within
// budget or the policy runs out of candidates.
func (s *Store) enforceBudget() error {
	return s.makeRoom(0)
}

// makeRoom spills victims until incoming more labels fit in the budget.
func (s *Store) makeRoom(incoming int) error {
	if s.limit == 0 {
		return nil
	}
	for s.count+incoming > s.limit {
		victim, ok := s.policy.Peek()
		if !ok {
			return nil
		}
		if err := s.spill(victim); err != nil {
			return err
		}
	}
	return nil
}

// spill pages victim's list out. Victims that are no longer in memory are
// stale policy entries and are skipped; empty lists are dropped unwritten.
func (s *Store) spill(victim storage.NodeID) error {
	list, ok := s.inMemory[victim]
	if !ok {
		return nil
	}
	delete(s.inMemory, victim)
	s.count -= len(list)
	if len(list) == 0 {
		return nil
	}

	data, err := route.EncodeLabels(list)
	if err != nil {
		return fmt.Errorf("%w: spill %s: %w", ErrStorageFailure, victim, err)
	}
	if err := s.tier.Save(string(victim), data); err != nil {
		return fmt.Errorf("%w: spill %s: %w", ErrStorageFailure, victim, err)
	}
	s.onDisk[victim] = struct{}{}
	s.spills++
	s.logger.Debug("spilled sub-route skyline", "node", victim, "labels", len(list), "resident_labels", s.count)
	return nil
}

// faultIn pages node's list back into memory, first making room for it.
func (s *Store) faultIn(node storage.NodeID) error {
	data, ok, err := s.tier.Load(string(node))
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", ErrStorageFailure, node, err)
	}
	if !ok {
		return fmt.Errorf("%w: spilled list for %s is missing", ErrStorageFailure, node)
	}
	list, err := route.DecodeLabels(s.criteria, s.dest, data)
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", ErrStorageFailure, node, err)
	}
	if err := s.tier.Delete(string(node)); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrStorageFailure, node, err)
	}
	delete(s.onDisk, node)

	if err := s.makeRoom(len(list)); err != nil {
		return err
	}
	s.inMemory[node] = list
	s.count += len(list)
	s.policy.OnWrite(node)
	s.faults++
	s.logger.Debug("faulted in sub-route skyline", "node", node, "labels", len(list))
	return nil
}

func cloneList(list []*route.Label) []*route.Label {
	if len(list) == 0 {
		return nil
	}
	return append([]*route.Label(nil), list...)
}
