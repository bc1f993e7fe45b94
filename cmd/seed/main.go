package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"marketplace-service/config"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
)

type seedProduct struct {
	Name     string
	Price    int64
	Quantity int
}

type seedFarmer struct {
	Name     string
	Products []seedProduct
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	cfg := config.Load()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()

	existing, err := db.GetProducts(ctx, 0)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 && os.Getenv("FORCE_SEED") != "true" {
		log.Printf("products already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	var products int
	for _, f := range buildSeedFarmers() {
		farmer := &models.User{Role: models.RoleFarmer, Name: f.Name}
		if err := db.CreateUser(ctx, farmer); err != nil {
			return fmt.Errorf("create farmer %s: %w", f.Name, err)
		}
		for _, p := range f.Products {
			product := &models.Product{
				FarmerID:          farmer.ID,
				Name:              p.Name,
				Price:             p.Price,
				QuantityAvailable: p.Quantity,
			}
			if err := db.CreateProduct(ctx, product); err != nil {
				return fmt.Errorf("create product %s: %w", p.Name, err)
			}
			products++
		}
	}

	vendors := []string{"Green Grocer Co", "Harbor Street Market", "Corner Bistro"}
	for _, name := range vendors {
		if err := db.CreateUser(ctx, &models.User{Role: models.RoleVendor, Name: name}); err != nil {
			return fmt.Errorf("create vendor %s: %w", name, err)
		}
	}

	log.Printf("seeded %d products and %d vendors", products, len(vendors))
	return nil
}

func buildSeedFarmers() []seedFarmer {
	return []seedFarmer{
		{Name: "Hillside Farm", Products: []seedProduct{
			{Name: "Heirloom Tomatoes", Price: 450, Quantity: 120},
			{Name: "Sweet Basil", Price: 200, Quantity: 60},
			{Name: "Zucchini", Price: 180, Quantity: 90},
		}},
		{Name: "Riverbend Orchard", Products: []seedProduct{
			{Name: "Honeycrisp Apples", Price: 320, Quantity: 300},
			{Name: "Bartlett Pears", Price: 380, Quantity: 150},
		}},
		{Name: "Meadow Dairy", Products: []seedProduct{
			{Name: "Free-range Eggs (dozen)", Price: 600, Quantity: 80},
			{Name: "Raw Honey", Price: 950, Quantity: 40},
		}},
	}
}
