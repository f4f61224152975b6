package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"peer-chat/domain/chat"
	"peer-chat/repositories"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chats := repositories.NewChatRepository(db, slog.Default())
	messages := repositories.NewMessageRepository(db, slog.Default(), nil)
	direct, _, err := chats.CreateOrGetDirectChat("alice", "bob")
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three"} {
		_, err = messages.AppendMessage(direct.ID, chat.UserID("alice"), content)
		require.NoError(t, err)
	}
	return db
}

func TestDefaultMapper(t *testing.T) {
	row := DefaultMapper("msg:chat-123456789:0001767225600000000000:0b5e0c4c-aaaa", []byte("abc"))
	require.Equal(t, "chat-123456789", row.Namespace)
	require.Equal(t, "0b5e0c4c", row.EntityID)
	require.Equal(t, "Size: 3 bytes", row.Detail)

	row = DefaultMapper("member:alice:chat-1", nil)
	require.Equal(t, "alice", row.Namespace)
	require.Equal(t, "chat-1", row.EntityID)
}

func TestScan_With_RecordMapper(t *testing.T) {
	req := require.New(t)
	db := seed(t)

	rows, err := Scan(db, "msg:", 0, RecordMapper)
	req.NoError(err)
	req.Len(rows, 3)
	for _, row := range rows {
		req.Equal("MESSAGE", row.Type)
		req.Contains(row.Detail, "alice: ")
	}

	limited, err := Scan(db, "msg:", 2, nil)
	req.NoError(err)
	req.Len(limited, 2)
}

func TestInspectHandler(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/debug/inspect", InspectHandler(seed(t), RecordMapper))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/inspect?prefix=chat:", nil))
	req.Equal(http.StatusOK, w.Code)

	var rows []InspectRow
	req.NoError(json.Unmarshal(w.Body.Bytes(), &rows))
	req.Len(rows, 1)
	req.Equal("DIRECT", rows[0].Type)
}
