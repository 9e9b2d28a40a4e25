// groupctl is a read-only operator tool: it opens the store alongside a
// running server and prints groups, memberships and message counts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

type groupRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type memberRecord struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func main() {
	_ = godotenv.Load()
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	groupID := flag.String("group", "", "Show members of a single group")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("No database path: set -db or BADGER_FILEPATH")
	}

	// BypassLockGuard allows opening while the server holds the lock.
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *groupID != "" {
		listMembers(db, *groupID)
		return
	}
	listGroups(db)
}

func listGroups(db *badger.DB) {
	table := newTable([]string{"ID", "Name", "Created By", "Updated", "Members", "Messages"})

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("group:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var g groupRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &g)
			}); err != nil {
				fmt.Printf("Error unmarshaling key %s: %v\n", it.Item().Key(), err)
				continue
			}

			table.Append([]string{
				shortID(g.ID),
				g.Name,
				shortID(g.CreatedBy),
				g.UpdatedAt.Format("2006-01-02 15:04"),
				fmt.Sprintf("%d", countPrefix(txn, "member:"+g.ID+":")),
				fmt.Sprintf("%d", countPrefix(txn, "gmsg:"+g.ID+":")),
			})
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	color.Cyan.Println("Groups")
	table.Render()
}

func listMembers(db *badger.DB, groupID string) {
	table := newTable([]string{"User", "Role"})

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("member:" + groupID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m memberRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &m)
			}); err != nil {
				return err
			}

			role := m.Role
			if role == "admin" {
				role = color.Yellow.Sprint(role)
			}
			table.Append([]string{m.UserID, role})
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	color.Cyan.Printf("Members of %s\n", groupID)
	table.Render()
}

func countPrefix(txn *badger.Txn, prefix string) int {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	count := 0
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		count++
	}
	return count
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
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
	return table
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return strings.TrimSpace(id)
}
