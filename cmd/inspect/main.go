package main

import (
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspector error: %v\n", err)
	}
	os.Exit(code)
}

// run dumps the entries of a relay database. The database is opened read-only so it can
// be inspected while the relay is running.
func run() (int, error) {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:public:, msg:private:, user:)")
	serve := flag.Int("serve", 0, "Serve the web inspector on this port instead of printing")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	if *dbPath == "" {
		return exitConfig, fmt.Errorf("-db or BADGER_FILEPATH is required")
	}
	if *noColor {
		color.Disable()
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if *serve > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		database.StartDebugServer(db, *serve, "/inspect", repositories.InspectRow)
		fmt.Printf("Inspector started at http://localhost:%d/inspect?prefix=%s\n", *serve, *prefix)
		<-ctx.Done()
		return exitOK, nil
	}

	rows, err := scan(db, *prefix)
	if err != nil {
		return exitRuntime, err
	}
	render(rows)
	return exitOK, nil
}

func scan(db *badger.DB, prefix string) ([]database.InspectRow, error) {
	var rows []database.InspectRow
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(options.Prefix); it.ValidForPrefix(options.Prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				rows = append(rows, repositories.InspectRow(string(item.Key()), val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

func render(rows []database.InspectRow) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range rows {
		table.Append([]string{row.Key, colorType(row.Type), row.Timestamp, row.EntityID, row.Detail})
	}
	table.Render()
	fmt.Println(color.Gray.Sprintf("%d entries", len(rows)))
}

func colorType(t string) string {
	switch t {
	case "PUBLIC":
		return color.Green.Sprint(t)
	case "PRIVATE":
		return color.Magenta.Sprint(t)
	case "USER":
		return color.Cyan.Sprint(t)
	default:
		return t
	}
}
