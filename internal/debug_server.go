package internal

import (
	"net/http"
	"peer-chat/repositories"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
)

const defaultInspectLimit = 200

type InspectRow struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entity_id"`
	Namespace string `json:"namespace"`
	Detail    string `json:"detail"`
}

type RowMapper func(key string, val []byte) InspectRow

// Scan maps every record under prefix, stopping after limit rows when limit is positive.
func Scan(db *badger.DB, prefix string, limit int, mapper RowMapper) ([]InspectRow, error) {
	if mapper == nil {
		mapper = RecordMapper
	}
	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(rows) == limit {
				return nil
			}
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(string(item.Key()), val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// InspectHandler serves GET /debug/inspect?prefix=msg:&limit=50 as JSON rows.
func InspectHandler(db *badger.DB, mapper RowMapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultInspectLimit
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		rows, err := Scan(db, c.DefaultQuery("prefix", "chat:"), limit, mapper)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// DefaultMapper only looks at the key: msg:{chat}:{timestamp}:{id} and member:{user}:{chat}
// are split into their parts, anything else is shown raw.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	switch {
	case len(parts) == 4 && parts[0] == "msg":
		row.Namespace = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.EntityID = short(parts[3])
	case len(parts) == 3:
		row.Namespace = parts[1]
		row.EntityID = short(parts[2])
	case len(parts) == 2:
		row.EntityID = short(parts[1])
	}
	return row
}

// RecordMapper decodes the stored value on top of DefaultMapper.
func RecordMapper(key string, val []byte) InspectRow {
	row := DefaultMapper(key, val)
	kind, detail, ok := repositories.Describe(key, val)
	row.Type = kind
	if !ok {
		return row
	}
	if detail != "" {
		row.Detail = detail
	}
	return row
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
