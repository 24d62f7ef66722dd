package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"dealflow-portal/internal/models"
)

type DB struct {
	conn *sql.DB
}

func NewDB(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the listings table if it doesn't exist.
// The Postgres path covers listing storage only; deals, snapshots and the
// analysis queue require the MySQL/GORM path.
func (db *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(32) PRIMARY KEY,
		source VARCHAR(50) NOT NULL,
		source_listing_id VARCHAR(255),
		detail_url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		image_url TEXT,

		-- Filter fields
		price DECIMAL(14, 2),
		bedrooms INTEGER,
		bathrooms INTEGER,
		floor_area DECIMAL(10, 2),
		land_area DECIMAL(12, 2),
		year_built INTEGER,
		property_type VARCHAR(30),
		address TEXT,
		suburb VARCHAR(100),
		city VARCHAR(100),

		status VARCHAR(20) NOT NULL DEFAULT 'active',
		removed_at TIMESTAMP,

		fetched_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	-- Create indexes for filtering
	CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
	CREATE INDEX IF NOT EXISTS idx_listings_bedrooms ON listings(bedrooms);
	CREATE INDEX IF NOT EXISTS idx_listings_suburb ON listings(suburb);
	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
	`
	_, err := db.conn.Exec(query)
	return err
}

// SaveListing saves a listing to the database
func (db *DB) SaveListing(l *models.Listing) error {
	if l.ID == "" {
		l.ID = GenerateListingID(l.DetailURL)
	}
	if l.FetchedAt.IsZero() {
		l.FetchedAt = time.Now()
	}
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}

	query := `
	INSERT INTO listings (
		id, source, source_listing_id, detail_url, title, image_url,
		price, bedrooms, bathrooms, floor_area, land_area, year_built,
		property_type, address, suburb, city, status,
		fetched_at, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (detail_url) DO UPDATE SET
		title = EXCLUDED.title,
		image_url = EXCLUDED.image_url,
		price = EXCLUDED.price,
		bedrooms = EXCLUDED.bedrooms,
		bathrooms = EXCLUDED.bathrooms,
		floor_area = EXCLUDED.floor_area,
		land_area = EXCLUDED.land_area,
		year_built = EXCLUDED.year_built,
		property_type = EXCLUDED.property_type,
		address = EXCLUDED.address,
		suburb = EXCLUDED.suburb,
		city = EXCLUDED.city,
		fetched_at = EXCLUDED.fetched_at
	`
	_, err := db.conn.Exec(query,
		l.ID, l.Source, l.SourceListingID, l.DetailURL, l.Title, l.ImageURL,
		l.Price, l.Bedrooms, l.Bathrooms, l.FloorArea, l.LandArea, l.YearBuilt,
		l.PropertyType, l.Address, l.Suburb, l.City, l.Status,
		l.FetchedAt, time.Now())
	return err
}

// GetAllListings retrieves all listings from the database
func (db *DB) GetAllListings() ([]models.Listing, error) {
	query := `
		SELECT id, source, source_listing_id, detail_url, title, image_url,
			   price, bedrooms, bathrooms, floor_area, land_area, year_built,
			   property_type, address, suburb, city, status,
			   fetched_at, created_at
		FROM listings
		ORDER BY created_at DESC
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		err := rows.Scan(
			&l.ID, &l.Source, &l.SourceListingID, &l.DetailURL, &l.Title, &l.ImageURL,
			&l.Price, &l.Bedrooms, &l.Bathrooms, &l.FloorArea, &l.LandArea, &l.YearBuilt,
			&l.PropertyType, &l.Address, &l.Suburb, &l.City, &l.Status,
			&l.FetchedAt, &l.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	return listings, nil
}

// GetListingByID retrieves a listing by ID
func (db *DB) GetListingByID(id string) (*models.Listing, error) {
	query := `
		SELECT id, source, source_listing_id, detail_url, title, image_url,
			   price, bedrooms, bathrooms, floor_area, land_area, year_built,
			   property_type, address, suburb, city, status,
			   fetched_at, created_at
		FROM listings
		WHERE id = $1
	`

	var l models.Listing
	err := db.conn.QueryRow(query, id).Scan(
		&l.ID, &l.Source, &l.SourceListingID, &l.DetailURL, &l.Title, &l.ImageURL,
		&l.Price, &l.Bedrooms, &l.Bathrooms, &l.FloorArea, &l.LandArea, &l.YearBuilt,
		&l.PropertyType, &l.Address, &l.Suburb, &l.City, &l.Status,
		&l.FetchedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &l, nil
}
