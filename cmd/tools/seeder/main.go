package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	uuid "github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	seedMaterials(db)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Name      string
		Unit      string
		Wholesale string
		Retail    string
		Shop      string
		Stock     int64
		MinAlert  int64
	}{
		{"Kopi Sachet", "pcs", "350", "500", "450", 120, 20},
		{"Teh Botol", "btl", "280", "450", "400", 48, 12},
		{"Roti Tawar", "pcs", "900", "1300", "1200", 15, 5},
		{"Mie Instan Goreng", "pcs", "2200", "3000", "2800", 200, 40},
		{"Air Mineral 600ml", "btl", "1500", "2500", "2200", 60, 24},
		{"Gula Pasir 1kg", "pak", "11000", "14000", "13500", 25, 8},
		{"Minyak Goreng 1L", "btl", "14500", "18000", "17000", 30, 10},
		{"Sabun Mandi", "pcs", "2800", "4000", "3700", 40, 10},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
INSERT INTO products (id, name, unit, wholesale_price, retail_price, shop_price,
current_stock, min_stock_alert, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
ON CONFLICT DO NOTHING`,
			uuid.New(), p.Name, p.Unit, p.Wholesale, p.Retail, p.Shop, p.Stock, p.MinAlert)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Name, err)
		}
	}
}

func seedMaterials(db *sql.DB) {
	materials := []struct {
		Name     string
		Unit     string
		UnitCost string
		Stock    string
		MinAlert string
	}{
		{"Tepung Terigu", "kg", "12000", "25", "5"},
		{"Gula Halus", "kg", "15000", "10", "3"},
		{"Telur", "kg", "28000", "8", "2"},
		{"Mentega", "kg", "32000", "6", "2"},
		{"Cokelat Bubuk", "kg", "55000", "4", "1"},
		{"Santan", "ltr", "18000", "5", "2"},
	}

	fmt.Println("Seeding Raw Materials...")
	for _, m := range materials {
		_, err := db.Exec(`
INSERT INTO raw_materials (id, name, unit, unit_cost, current_stock, min_stock_alert, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT DO NOTHING`,
			uuid.New(), m.Name, m.Unit, m.UnitCost, m.Stock, m.MinAlert)
		if err != nil {
			log.Fatalf("Failed to seed material %s: %v", m.Name, err)
		}
	}
}
