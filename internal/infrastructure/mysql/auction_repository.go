package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-bidding/internal/domain"
)

const auctionColumns = `id, product_id, status, current_price, price_increment, bid_count, version,
        start_time, end_time, created_at, updated_at, created_by, updated_by`

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (product_id, status, current_price, price_increment, bid_count, version,
            start_time, end_time, created_at, updated_at, created_by, updated_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		auction.ProductID, string(auction.Status), auction.CurrentPrice, auction.PriceIncrement,
		auction.BidCount, auction.Version, nullTime(auction.StartTime), nullTime(auction.EndTime),
		auction.CreatedAt, auction.UpdatedAt, auction.CreatedBy, auction.UpdatedBy)
	if err != nil {
		return fmt.Errorf("create auction: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}
	auction.ID = id
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
	return r.getOne(ctx, query, auctionID)
}

func (r *MySQLAuctionRepository) GetAuctionForUpdate(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? FOR UPDATE`
	return r.getOne(ctx, query, auctionID)
}

func (r *MySQLAuctionRepository) getOne(ctx context.Context, query string, auctionID int64) (*domain.Auction, error) {
	auction, err := scanAuction(conn(ctx, r.db).QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get auction %d: %w", auctionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get auction %d: %w", auctionID, translate(err))
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions
        SET status = ?, current_price = ?, price_increment = ?, bid_count = ?, version = version + 1,
            start_time = ?, end_time = ?, updated_at = ?, updated_by = ?
        WHERE id = ? AND version = ?
    `
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		string(auction.Status), auction.CurrentPrice, auction.PriceIncrement, auction.BidCount,
		nullTime(auction.StartTime), nullTime(auction.EndTime), auction.UpdatedAt, auction.UpdatedBy,
		auction.ID, auction.Version)
	if err != nil {
		return fmt.Errorf("update auction %d: %w", auction.ID, translate(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auction %d: %w", auction.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update auction %d at version %d: %w", auction.ID, auction.Version, domain.ErrVersionConflict)
	}

	auction.Version++
	return nil
}

// DeleteAuction relies on the bids foreign key cascading.
func (r *MySQLAuctionRepository) DeleteAuction(ctx context.Context, auctionID int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM auctions WHERE id = ?`, auctionID)
	if err != nil {
		return fmt.Errorf("delete auction %d: %w", auctionID, translate(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete auction %d: %w", auctionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete auction %d: %w", auctionID, domain.ErrNotFound)
	}
	return nil
}

func (r *MySQLAuctionRepository) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return r.list(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY id`)
}

func (r *MySQLAuctionRepository) ListAuctionsByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	return r.list(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE status = ? ORDER BY id`, string(status))
}

func (r *MySQLAuctionRepository) ListAuctionsByProduct(ctx context.Context, productID int64) ([]*domain.Auction, error) {
	return r.list(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE product_id = ? ORDER BY id`, productID)
}

func (r *MySQLAuctionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Auction, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("list auctions: %w", err)
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status string
	var startTime, endTime sql.NullTime

	err := row.Scan(&auction.ID, &auction.ProductID, &status, &auction.CurrentPrice,
		&auction.PriceIncrement, &auction.BidCount, &auction.Version, &startTime, &endTime,
		&auction.CreatedAt, &auction.UpdatedAt, &auction.CreatedBy, &auction.UpdatedBy)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	if startTime.Valid {
		auction.StartTime = &startTime.Time
	}
	if endTime.Valid {
		auction.EndTime = &endTime.Time
	}
	return &auction, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
