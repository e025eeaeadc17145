// Package memory is an in-process implementation of the auction, bid and
// scheduler repositories. Auction rows are guarded by per-auction locks that
// a transaction holds from GetAuctionForUpdate until it commits or rolls back,
// which gives the same serialization a SELECT ... FOR UPDATE does in MySQL.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-bidding/internal/domain"
)

var errNoTx = errors.New("memory: GetAuctionForUpdate requires a transaction")

type Store struct {
	mu            sync.RWMutex
	auctions      map[int64]domain.Auction
	bids          map[int64]domain.Bid
	jobs          map[string]domain.ScheduledJob
	nextAuctionID int64
	nextBidID     int64

	locksMu sync.Mutex
	locks   map[int64]chan struct{}
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[int64]domain.Auction),
		bids:     make(map[int64]domain.Bid),
		jobs:     make(map[string]domain.ScheduledJob),
		locks:    make(map[int64]chan struct{}),
	}
}

type txKey struct{}

type memTx struct {
	held     map[int64]chan struct{}
	auctions map[int64]domain.Auction
	base     map[int64]int64
	bids     []domain.Bid
}

func txFromContext(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{
		held:     make(map[int64]chan struct{}),
		auctions: make(map[int64]domain.Auction),
		base:     make(map[int64]int64),
	}
	defer s.release(tx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expected := range tx.base {
		current, ok := s.auctions[id]
		if !ok {
			return fmt.Errorf("commit auction %d: %w", id, domain.ErrNotFound)
		}
		if current.Version != expected {
			return fmt.Errorf("commit auction %d: %w", id, domain.ErrVersionConflict)
		}
	}
	for _, bid := range tx.bids {
		if _, ok := s.auctions[bid.AuctionID]; !ok {
			return fmt.Errorf("commit bid for auction %d: %w", bid.AuctionID, domain.ErrNotFound)
		}
	}

	for id, auction := range tx.auctions {
		s.auctions[id] = auction
	}
	for _, bid := range tx.bids {
		s.bids[bid.ID] = bid
	}
	return nil
}

func (s *Store) lock(ctx context.Context, auctionID int64) (chan struct{}, error) {
	s.locksMu.Lock()
	ch, ok := s.locks[auctionID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[auctionID] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// forget drops the lock entry of an auction that no longer exists. Waiters
// already queued on ch still get it in turn and find the auction gone.
func (s *Store) forget(auctionID int64, ch chan struct{}) {
	s.locksMu.Lock()
	if s.locks[auctionID] == ch {
		delete(s.locks, auctionID)
	}
	s.locksMu.Unlock()
}

func (s *Store) release(tx *memTx) {
	for _, ch := range tx.held {
		<-ch
	}
}

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.auctions {
		if existing.ProductID == auction.ProductID {
			return fmt.Errorf("create auction for product %d: %w", auction.ProductID, domain.ErrAlreadyExists)
		}
	}

	s.nextAuctionID++
	auction.ID = s.nextAuctionID
	s.auctions[auction.ID] = *auction
	return nil
}

func (s *Store) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	if tx := txFromContext(ctx); tx != nil {
		if staged, ok := tx.auctions[auctionID]; ok {
			return &staged, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get auction %d: %w", auctionID, domain.ErrNotFound)
	}
	return &auction, nil
}

func (s *Store) GetAuctionForUpdate(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, errNoTx
	}

	if _, held := tx.held[auctionID]; held {
		return s.GetAuction(ctx, auctionID)
	}

	ch, err := s.lock(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.forget(auctionID, ch)
		}
		<-ch
		return nil, err
	}
	tx.held[auctionID] = ch
	return auction, nil
}

func (s *Store) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	if tx := txFromContext(ctx); tx != nil {
		current, err := s.GetAuction(ctx, auction.ID)
		if err != nil {
			return err
		}
		if current.Version != auction.Version {
			return fmt.Errorf("update auction %d: %w", auction.ID, domain.ErrVersionConflict)
		}
		if _, ok := tx.base[auction.ID]; !ok {
			tx.base[auction.ID] = auction.Version
		}
		auction.Version++
		tx.auctions[auction.ID] = *auction
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.auctions[auction.ID]
	if !ok {
		return fmt.Errorf("update auction %d: %w", auction.ID, domain.ErrNotFound)
	}
	if current.Version != auction.Version {
		return fmt.Errorf("update auction %d: %w", auction.ID, domain.ErrVersionConflict)
	}
	auction.Version++
	s.auctions[auction.ID] = *auction
	return nil
}

// DeleteAuction removes the auction and its bids once no transaction holds it.
func (s *Store) DeleteAuction(ctx context.Context, auctionID int64) error {
	ch, err := s.lock(ctx, auctionID)
	if err != nil {
		return err
	}
	defer func() { <-ch }()
	defer s.forget(auctionID, ch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return fmt.Errorf("delete auction %d: %w", auctionID, domain.ErrNotFound)
	}
	delete(s.auctions, auctionID)
	for id, bid := range s.bids {
		if bid.AuctionID == auctionID {
			delete(s.bids, id)
		}
	}
	return nil
}

func (s *Store) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return s.filterAuctions(func(*domain.Auction) bool { return true }), nil
}

func (s *Store) ListAuctionsByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	return s.filterAuctions(func(a *domain.Auction) bool { return a.Status == status }), nil
}

func (s *Store) ListAuctionsByProduct(ctx context.Context, productID int64) ([]*domain.Auction, error) {
	return s.filterAuctions(func(a *domain.Auction) bool { return a.ProductID == productID }), nil
}

func (s *Store) filterAuctions(keep func(*domain.Auction) bool) []*domain.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auctions := make([]*domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		auction := a
		if keep(&auction) {
			auctions = append(auctions, &auction)
		}
	}
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].ID < auctions[j].ID })
	return auctions
}

func (s *Store) SaveBid(ctx context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	s.nextBidID++
	bid.ID = s.nextBidID
	if tx := txFromContext(ctx); tx != nil {
		s.mu.Unlock()
		tx.bids = append(tx.bids, *bid)
		return nil
	}
	defer s.mu.Unlock()

	if _, ok := s.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("save bid for auction %d: %w", bid.AuctionID, domain.ErrNotFound)
	}
	s.bids[bid.ID] = *bid
	return nil
}

func (s *Store) GetBid(ctx context.Context, bidID int64) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return nil, fmt.Errorf("get bid %d: %w", bidID, domain.ErrNotFound)
	}
	return &bid, nil
}

func (s *Store) GetBidsByAuctionRanked(ctx context.Context, auctionID int64) ([]*domain.Bid, error) {
	bids := s.filterBids(func(b *domain.Bid) bool { return b.AuctionID == auctionID })
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		if !bids[i].BidTime.Equal(bids[j].BidTime) {
			return bids[i].BidTime.After(bids[j].BidTime)
		}
		return bids[i].ID > bids[j].ID
	})
	return bids, nil
}

func (s *Store) GetBidsByBuyer(ctx context.Context, buyerID int64) ([]*domain.Bid, error) {
	return s.filterBids(func(b *domain.Bid) bool { return b.BuyerID == buyerID }), nil
}

func (s *Store) filterBids(keep func(*domain.Bid) bool) []*domain.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := make([]*domain.Bid, 0)
	for _, b := range s.bids {
		bid := b
		if keep(&bid) {
			bids = append(bids, &bid)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].ID < bids[j].ID })
	return bids
}

func (s *Store) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = *job
	return nil
}

func (s *Store) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.ScheduledJob
	for _, j := range s.jobs {
		job := j
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			jobs = append(jobs, &job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RunAt.Before(jobs[j].RunAt) })
	return jobs, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, domain.ErrNotFound)
	}
	job.Status = status
	s.jobs[jobID] = job
	return nil
}

func (s *Store) CancelJobsForAuction(ctx context.Context, auctionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, job := range s.jobs {
		if job.AuctionID == auctionID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
			s.jobs[id] = job
		}
	}
	return nil
}
