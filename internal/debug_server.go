package internal

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const maxInspectRows = 500

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  string
}

// DebugHandler serves /debug/inspect (badger keys under a prefix) and
// /debug/stats (JSON counters).
func DebugHandler(db *badger.DB, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		if statsProvider == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsProvider())
	})

	mux.HandleFunc("/debug/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "chat:"
		}
		data := PageData{Prefix: prefix}
		if statsProvider != nil {
			if b, err := json.MarshalIndent(statsProvider(), "", "  "); err == nil {
				data.Stats = string(b)
			}
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(data.Items) < maxInspectRows; it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
	return mux
}

// DefaultMapper understands the msg:{chat}:{ts}:{id} layout and falls back
// to a raw row for the other keys.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      strings.ToUpper(parts[0]),
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	if len(parts) >= 4 && parts[0] == "msg" {
		row.Namespace = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("2006-01-02 15:04:05")
		}
		row.EntityID = parts[3]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	} else if len(parts) >= 2 {
		row.EntityID = parts[len(parts)-1]
	}
	return row
}
