package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tillworks/tillworks/internal/app"
	"github.com/tillworks/tillworks/internal/backup"
	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/customers"
	"github.com/tillworks/tillworks/internal/inventory"
	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/procurement"
	"github.com/tillworks/tillworks/internal/sales"
)

const usage = `usage: tillworks <command> [flags]

commands:
  sync          reconcile the inventory ledger with the product catalog
  dedupe        remove duplicate stock transactions and refold counters
  low-stock     list items at or below their reorder level
  report        print sales analytics (optionally -from / -to YYYY-MM-DD)
  backup        snapshot all collections into the backup directory
  restore       restore a backup by id
  list-backups  show the backup directory
  delete-backup remove a backup by id
  export        write collections to stdout (-format json|csv, -keys a,b)
  import        load collections from a file (-file path, -format, -keys)
  storage       show storage usage against the quota
  watch         stream change events until interrupted
`

type cli struct {
	cfg    *app.Config
	logger *slog.Logger
	store  *store.Store

	catalog     *catalog.Repository
	customers   *customers.Repository
	sales       *sales.Service
	inventory   *inventory.Service
	procurement *procurement.Service
	backup      *backup.Service

	out *message.Printer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	client, err := store.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()

	st := store.New(client, logger, store.Config{
		QuotaBytes: cfg.StorageQuotaBytes,
		OnRepair: func(key string, cause error) {
			logger.Warn("storage self-heal", slog.String("key", key), slog.Any("cause", cause))
		},
	})

	catalogRepo := catalog.NewRepository(st)
	customerRepo := customers.NewRepository(st)
	ledger := inventory.NewService(st, catalogRepo, logger, inventory.ServiceConfig{
		ReorderLevelDefault: cfg.ReorderLevelDefault,
	})
	c := &cli{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		catalog:     catalogRepo,
		customers:   customerRepo,
		sales:       sales.NewService(st, catalogRepo, customerRepo, logger),
		inventory:   ledger,
		procurement: procurement.NewService(st, catalogRepo, ledger, logger),
		backup:      backup.NewService(st, logger, cfg.BackupLimit),
		out:         message.NewPrinter(language.English),
	}

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "sync":
		return c.runSync(ctx)
	case "dedupe":
		return c.runDedupe(ctx)
	case "low-stock":
		return c.runLowStock(ctx)
	case "report":
		return c.runReport(ctx, args)
	case "backup":
		return c.runBackup(ctx)
	case "restore":
		return c.runRestore(ctx, args)
	case "list-backups":
		return c.runListBackups(ctx)
	case "delete-backup":
		return c.runDeleteBackup(ctx, args)
	case "export":
		return c.runExport(ctx, args)
	case "import":
		return c.runImport(ctx, args)
	case "storage":
		return c.runStorage(ctx)
	case "watch":
		return c.runWatch(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", command)
}

func (c *cli) runSync(ctx context.Context) error {
	created, updated, err := c.inventory.SyncWithCatalog(ctx)
	if err != nil {
		return err
	}
	c.out.Printf("sync complete: %d item(s) created, %d item(s) updated\n", created, updated)
	return nil
}

func (c *cli) runDedupe(ctx context.Context) error {
	removed, err := c.inventory.Deduplicate(ctx)
	if err != nil {
		return err
	}
	c.out.Printf("dedupe complete: %d duplicate transaction(s) removed\n", removed)
	return nil
}

func (c *cli) runLowStock(ctx context.Context) error {
	items := c.inventory.LowStock(ctx)
	if len(items) == 0 {
		c.out.Printf("no items at or below reorder level\n")
		return nil
	}
	for _, item := range items {
		c.out.Printf("%-30s %10.2f %-6s (reorder at %.2f)\n",
			item.ProductName, item.ClosingStock, item.Unit, item.ReorderLevel)
	}
	return nil
}

func (c *cli) runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	from := fs.String("from", "", "start date (YYYY-MM-DD, inclusive)")
	to := fs.String("to", "", "end date (YYYY-MM-DD, inclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var r *sales.DateRange
	if *from != "" || *to != "" {
		parsed, err := parseRange(*from, *to)
		if err != nil {
			return err
		}
		r = parsed
	}

	a := c.sales.Analytics(ctx, r)
	c.out.Printf("sales: %d   revenue: %.2f   average order: %.2f\n",
		a.TotalSales, a.TotalRevenue, a.AverageOrderValue)
	if len(a.TopProducts) > 0 {
		c.out.Printf("\ntop products:\n")
		for _, p := range a.TopProducts {
			c.out.Printf("  %-30s qty %10.2f revenue %12.2f\n", p.ProductName, p.Quantity, p.Revenue)
		}
	}
	if len(a.TopCustomers) > 0 {
		c.out.Printf("\ntop customers:\n")
		for _, cu := range a.TopCustomers {
			c.out.Printf("  %-30s orders %5d revenue %12.2f\n", cu.CustomerName, cu.Orders, cu.Revenue)
		}
	}
	if len(a.Daily) > 0 {
		c.out.Printf("\ndaily:\n")
		for _, d := range a.Daily {
			c.out.Printf("  %s  %4d sale(s)  %12.2f\n", d.Period, d.Count, d.Revenue)
		}
	}
	return nil
}

func parseRange(from, to string) (*sales.DateRange, error) {
	r := &sales.DateRange{Start: time.Time{}, End: time.Now()}
	if from != "" {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, fmt.Errorf("parse -from: %w", err)
		}
		r.Start = start
	}
	if to != "" {
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, fmt.Errorf("parse -to: %w", err)
		}
		// Inclusive through the end of the day.
		r.End = end.Add(24*time.Hour - time.Millisecond)
	}
	return r, nil
}

func (c *cli) runBackup(ctx context.Context) error {
	meta, err := c.backup.CreateBackup(ctx, nil)
	if err != nil {
		return err
	}
	c.out.Printf("created %s (%d bytes, %d collection(s))\n", meta.ID, meta.SizeBytes, len(meta.Types))
	return nil
}

func (c *cli) runRestore(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("restore: expected exactly one backup id")
	}
	if err := c.backup.RestoreBackup(ctx, args[0]); err != nil {
		return err
	}
	c.out.Printf("restored %s\n", args[0])
	return nil
}

func (c *cli) runListBackups(ctx context.Context) error {
	index := c.backup.ListBackups(ctx)
	if len(index) == 0 {
		c.out.Printf("no backups\n")
		return nil
	}
	for _, meta := range index {
		c.out.Printf("%-24s %s  %8d bytes  %d collection(s)\n",
			meta.ID, meta.Timestamp.Format(time.RFC3339), meta.SizeBytes, len(meta.Types))
	}
	return nil
}

func (c *cli) runDeleteBackup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete-backup: expected exactly one backup id")
	}
	if err := c.backup.DeleteBackup(ctx, args[0]); err != nil {
		return err
	}
	c.out.Printf("deleted %s\n", args[0])
	return nil
}

func (c *cli) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "json", "export format: json or csv")
	keys := fs.String("keys", "", "comma-separated collection keys (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	payload, err := c.backup.ExportSelected(ctx, splitKeys(*keys), backup.Format(*format))
	if err != nil {
		return err
	}
	fmt.Println(payload)
	return nil
}

func (c *cli) runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	file := fs.String("file", "", "path to the exported payload")
	format := fs.String("format", "json", "import format: json or csv")
	keys := fs.String("keys", "", "comma-separated collection keys (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("import: -file is required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	if err := c.backup.ImportSelected(ctx, string(raw), splitKeys(*keys), backup.Format(*format)); err != nil {
		return err
	}
	c.out.Printf("import complete\n")
	return nil
}

func splitKeys(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return backup.DefaultTypeKeys
	}
	var keys []string
	for _, key := range strings.Split(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *cli) runStorage(ctx context.Context) error {
	info, err := c.store.Info(ctx)
	if err != nil {
		return err
	}
	c.out.Printf("used %d of %d bytes (%.1f%%), %d available\n",
		info.UsedBytes, info.TotalBytes, info.UsedPercent, info.AvailableBytes)
	return nil
}

// runWatch subscribes to the change channel and prints one line per event
// until the process is interrupted.
func (c *cli) runWatch(ctx context.Context) error {
	events, cancel := c.store.Subscribe(ctx)
	defer cancel()

	c.out.Printf("watching %s (ctrl-c to stop)\n", store.ChangeChannel)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				line := map[string]interface{}{
					"key":     ev.Key,
					"removed": ev.Removed,
					"at":      time.Now().UTC().Format(time.RFC3339),
				}
				if !ev.Removed {
					line["bytes"] = len(ev.Value)
				}
				payload, err := json.Marshal(line)
				if err != nil {
					return err
				}
				fmt.Println(string(payload))
			}
		}
	})
	return g.Wait()
}
