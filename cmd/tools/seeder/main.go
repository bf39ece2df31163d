package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/tahmidhoque/vstop-backend/internal/tasks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	productIDs := seedProducts(ctx, pool)
	seedOffers(ctx, pool, productIDs)
	invalidateOfferCaches(ctx)

	log.Println("Seeding completed successfully!")
}

// invalidateOfferCaches notifies running API instances that the offer catalogue
// changed underneath them. Seeding still succeeds without Redis; the caches
// simply expire on their own.
func invalidateOfferCaches(ctx context.Context) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Println("REDIS_URL is not set, skipping offer cache invalidation")
		return
	}
	opts, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		log.Printf("Failed to parse REDIS_URL: %v", err)
		return
	}
	client := asynq.NewClient(opts)
	defer client.Close()

	if err := tasks.NewClient(client).EnqueueOffersInvalidate(ctx); err != nil {
		log.Printf("Failed to enqueue offer cache invalidation: %v", err)
		return
	}
	fmt.Println("Enqueued offer cache invalidation...")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) map[string]string {
	products := []struct {
		Title       string
		Slug        string
		Description string
		Price       int64
		Stock       int32
		Flavours    []string
	}{
		{"Lost Mary BM600", "lost-mary-bm600", "600 puff disposable", 599, 400, []string{"Blue Razz Ice", "Watermelon", "Pink Lemonade"}},
		{"Elf Bar 600 V2", "elf-bar-600-v2", "600 puff disposable", 599, 350, []string{"Strawberry Kiwi", "Grape", "Cola"}},
		{"Crystal Bar 4000", "crystal-bar-4000", "4000 puff rechargeable", 1299, 120, []string{"Mango Ice", "Cherry Cola"}},
		{"Vampire Vape 10ml", "vampire-vape-10ml", "10ml freebase e-liquid", 399, 600, []string{"Heisenberg", "Pinkman"}},
		{"Bar Juice 5000 Nic Salt", "bar-juice-5000", "10ml nic salt e-liquid", 349, 800, []string{"Blueberry Sour Raspberry", "Fizzy Cherry", "Lemon Lime"}},
		{"Voopoo Drag X2 Kit", "voopoo-drag-x2", "Pod mod kit", 3499, 45, nil},
		{"Aspire Gotek X Pods", "aspire-gotek-x-pods", "Replacement pod 2-pack", 599, 250, nil},
	}

	fmt.Println("Seeding Products...")
	ids := make(map[string]string)
	for _, p := range products {
		var prodID string
		err := pool.QueryRow(ctx, `
			INSERT INTO products (title, slug, description, price, stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock
			RETURNING id;
		`, p.Title, p.Slug, p.Description, p.Price, p.Stock).Scan(&prodID)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Title, err)
			continue
		}
		ids[p.Slug] = prodID

		for _, flavour := range p.Flavours {
			_, err := pool.Exec(ctx, `
				INSERT INTO product_variants (product_id, flavour, nicotine_mg, price, stock)
				VALUES ($1, $2, 20, $3, $4)
				ON CONFLICT (product_id, flavour, nicotine_mg) DO UPDATE SET
					price = EXCLUDED.price,
					stock = EXCLUDED.stock;
			`, prodID, flavour, p.Price, p.Stock)
			if err != nil {
				log.Printf("Failed to seed variant %s / %s: %v", p.Title, flavour, err)
			}
		}
	}
	return ids
}

func seedOffers(ctx context.Context, pool *pgxpool.Pool, productIDs map[string]string) {
	disposables := pickIDs(productIDs, "lost-mary-bm600", "elf-bar-600-v2")
	liquids := pickIDs(productIDs, "vampire-vape-10ml", "bar-juice-5000")

	offers := []struct {
		Name     string
		Qty      int32
		Price    int64
		Products []string
	}{
		{"Any 2 disposables for £10", 2, 1000, disposables},
		{"Any 4 disposables for £18", 4, 1800, disposables},
		{"3 e-liquids for £10", 3, 1000, liquids},
	}

	fmt.Println("Seeding Offers...")
	for _, o := range offers {
		if len(o.Products) == 0 {
			log.Printf("Skipping offer %s: no products resolved", o.Name)
			continue
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO offers (name, qty, price, active, starts_at, ends_at, product_ids)
			VALUES ($1, $2, $3, true, $4, $5, $6)
			ON CONFLICT DO NOTHING;
		`, o.Name, o.Qty, o.Price, time.Now().UTC(), time.Now().UTC().AddDate(1, 0, 0), o.Products)
		if err != nil {
			log.Printf("Failed to seed offer %s: %v", o.Name, err)
		}
	}
}

func pickIDs(ids map[string]string, slugs ...string) []string {
	out := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if id, ok := ids[slug]; ok {
			out = append(out, id)
		}
	}
	return out
}
