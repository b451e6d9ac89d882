// Command chat_inspect dumps the chats and messages stored in a badger
// directory as a table.
package main

import (
	"flag"
	"fmt"
	"log"
	"order-chat/repositories"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// msg: lists messages, chat: lists sessions. idx: keys carry no value.
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
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

	var row func(key string, val []byte) ([]string, error)
	switch {
	case strings.HasPrefix(*prefix, "chat:"):
		table.SetHeader([]string{"Chat", "Order", "Counterparty", "Created", "Translation"})
		row = sessionRow
	case strings.HasPrefix(*prefix, "msg:"):
		table.SetHeader([]string{"Chat", "Time", "Message", "Sender", "Read", "Text"})
		row = messageRow
	default:
		log.Fatalf("unsupported prefix %q, use chat: or msg:", *prefix)
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				cells, err := row(key, v)
				if err != nil {
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(cells)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func sessionRow(_ string, val []byte) ([]string, error) {
	s, err := repositories.DecodeSession(val)
	if err != nil {
		return nil, err
	}
	return []string{
		string(s.ID),
		string(s.OrderID),
		string(s.CounterpartyID),
		s.CreatedAt.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("%t", s.TranslationEnabled),
	}, nil
}

func messageRow(_ string, val []byte) ([]string, error) {
	m, err := repositories.DecodeMessage(val)
	if err != nil {
		return nil, err
	}
	text := m.Text
	if m.TranslatedText != "" {
		text += " / " + m.TranslatedText
	}
	return []string{
		string(m.ChatID),
		m.CreatedAt.Format("15:04:05.000"),
		short(m.ID),
		m.SenderID,
		fmt.Sprintf("%t", m.IsRead),
		text,
	}, nil
}

// short keeps the random tail of a UUIDv7, the head is a timestamp shared by
// messages of the same second.
func short(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
