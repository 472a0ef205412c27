// Command positions prints the bot's position book as a console report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/azmshoh/sniper-bot/internal/domain"
	"github.com/azmshoh/sniper-bot/internal/storage/migrations"
	pgstore "github.com/azmshoh/sniper-bot/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	status := flag.String("status", "all", "Filter: all, open, or closed")

	flag.Parse()

	logger := log.New(os.Stderr, "[positions] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	store := pgstore.NewPositionStore(pool)
	positions, err := store.List(ctx)
	if err != nil {
		logger.Fatalf("List positions: %v", err)
	}

	var filtered []*domain.Position
	for _, p := range positions {
		switch *status {
		case "open":
			if p.Status != domain.PositionOpen {
				continue
			}
		case "closed":
			if p.Status != domain.PositionClosed {
				continue
			}
		case "all":
		default:
			logger.Fatalf("Unknown --status %q (want all, open, or closed)", *status)
		}
		filtered = append(filtered, p)
	}

	printReport(filtered)
}

func printReport(positions []*domain.Position) {
	open := 0
	for _, p := range positions {
		if p.Status == domain.PositionOpen {
			open++
		}
	}
	fmt.Printf("\n%d positions — %d open, %d closed\n\n", len(positions), open, len(positions)-open)

	if len(positions) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Opened", "Network", "Token", "Entry", "Max", "Qty left", "Tiers", "Status", "Close reason", "Held")

	for _, p := range positions {
		held := time.Since(p.OpenedAt)
		if p.ClosedAt != nil {
			held = p.ClosedAt.Sub(p.OpenedAt)
		}

		table.Append(
			p.OpenedAt.Local().Format("2006-01-02 15:04"),
			p.Network,
			shortAddr(p.Token),
			fmt.Sprintf("%.6g", p.EntryPrice),
			fmt.Sprintf("%.6g", p.MaxPriceSeen),
			fmt.Sprintf("%.4f", p.Quantity),
			tiersLabel(p.TiersClaimed),
			string(p.Status),
			p.CloseReason,
			held.Round(time.Second).String(),
		)
	}

	table.Render()
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + ".." + addr[len(addr)-4:]
}

func tiersLabel(tiers []float64) string {
	if len(tiers) == 0 {
		return "-"
	}
	label := ""
	for i, m := range tiers {
		if i > 0 {
			label += ","
		}
		label += fmt.Sprintf("%gx", m)
	}
	return label
}
