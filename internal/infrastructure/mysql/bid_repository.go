package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-bidding/internal/domain"
)

const bidColumns = `id, auction_id, buyer_id, amount, bid_time, created_at, updated_at, created_by, updated_by`

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) SaveBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (auction_id, buyer_id, amount, bid_time, created_at, updated_at, created_by, updated_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		bid.AuctionID, bid.BuyerID, bid.Amount, bid.BidTime,
		bid.CreatedAt, bid.UpdatedAt, bid.CreatedBy, bid.UpdatedBy)
	if err != nil {
		return fmt.Errorf("save bid: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("save bid: %w", err)
	}
	bid.ID = id
	return nil
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID int64) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`

	bid, err := scanBid(conn(ctx, r.db).QueryRowContext(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get bid %d: %w", bidID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get bid %d: %w", bidID, err)
	}
	return bid, nil
}

func (r *MySQLBidRepository) GetBidsByAuctionRanked(ctx context.Context, auctionID int64) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC, bid_time DESC, id DESC
    `
	return r.list(ctx, query, auctionID)
}

func (r *MySQLBidRepository) GetBidsByBuyer(ctx context.Context, buyerID int64) ([]*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE buyer_id = ? ORDER BY id`
	return r.list(ctx, query, buyerID)
}

func (r *MySQLBidRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Bid, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("list bids: %w", err)
		}
		bids = append(bids, bid)
	}

	return bids, rows.Err()
}

func scanBid(row scanner) (*domain.Bid, error) {
	var bid domain.Bid
	err := row.Scan(&bid.ID, &bid.AuctionID, &bid.BuyerID, &bid.Amount, &bid.BidTime,
		&bid.CreatedAt, &bid.UpdatedAt, &bid.CreatedBy, &bid.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
