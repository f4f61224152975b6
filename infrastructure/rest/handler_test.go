package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"peer-chat/auth"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"peer-chat/mocks"
	"peer-chat/observability"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticStats observability.MonitoringStats

func (s staticStats) GetLatest() observability.MonitoringStats {
	return observability.MonitoringStats(s)
}

type fixture struct {
	service  *mocks.MockIChatService
	engine   *gin.Engine
	token    string
	operator string
}

func newFixture(t *testing.T) fixture {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokens("a-long-enough-test-secret", time.Hour)
	token, err := tokens.GenerateToken("alice")
	require.NoError(t, err)
	operator, err := tokens.GenerateToken("ops", auth.OperatorRole)
	require.NoError(t, err)

	service := mocks.NewMockIChatService(gomock.NewController(t))
	engine := gin.New()
	RegisterRoutes(engine.Group("/api", auth.Middleware(tokens)),
		NewChatHandler(service, staticStats{Connections: 3, TypingPairs: 1}, slog.Default()))
	return fixture{service: service, engine: engine, token: token, operator: operator}
}

func (f fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Authorization", "Bearer "+f.token)
	request.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, request)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) event.ErrorPayload {
	t.Helper()
	var payload event.ErrorPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestChatHandler_Requires_Token(t *testing.T) {
	f := newFixture(t)
	request := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, request)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Unauthenticated", decodeError(t, w).Kind)
}

func TestChatHandler_FetchChats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given alice has no chat yet
	f.service.EXPECT().FetchChats(gomock.Any(), chat.UserID("alice")).Return(nil, nil)

	// When she lists her chats
	w := f.do(http.MethodGet, "/api/chat", "")

	// Then an empty array is returned, never null
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())
}

func TestChatHandler_AccessChat(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	direct := chat.Chat{ID: "chat-1", Members: []chat.UserID{"alice", "bob"}}

	f.service.EXPECT().AccessChat(gomock.Any(), chat.UserID("alice"), chat.UserID("bob")).Return(direct, nil)

	w := f.do(http.MethodPost, "/api/chat", `{"userId":"bob"}`)
	req.Equal(http.StatusOK, w.Code)

	var got chat.Chat
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Equal(direct.ID, got.ID)
	req.False(got.IsGroup)
}

func TestChatHandler_Validation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"access without userId", http.MethodPost, "/api/chat", `{}`},
		{"group without name", http.MethodPost, "/api/chat/group", `{"users":["bob","clara"]}`},
		{"group with a single user", http.MethodPost, "/api/chat/group", `{"name":"Duo","users":["bob"]}`},
		{"rename without chatId", http.MethodPut, "/api/chat/rename", `{"chatName":"Exam prep"}`},
		{"groupadd without userId", http.MethodPut, "/api/chat/groupadd", `{"chatId":"chat-1"}`},
		{"message without chatId", http.MethodPost, "/api/message", `{"content":"hi"}`},
		{"malformed json", http.MethodPost, "/api/message", `{"content":`},
		{"read with a malformed id", http.MethodPut, "/api/message/not-a-uuid/read", `{"chatId":"chat-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The service mock has no expectation: any call fails the test
			f := newFixture(t)
			w := f.do(tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, "InvalidArgument", decodeError(t, w).Kind)
		})
	}
}

func TestChatHandler_CreateGroup(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.service.EXPECT().CreateGroup(gomock.Any(), chat.CreateGroupCommand{
		Creator: "alice",
		Name:    "Study Group",
		Members: []chat.UserID{"bob", "clara"},
	}).Return(chat.Chat{ID: "group-1", IsGroup: true, Name: "Study Group"}, nil)

	w := f.do(http.MethodPost, "/api/chat/group", `{"name":"Study Group","users":["bob","clara"]}`)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), `"isGroupChat":true`)
}

func TestChatHandler_Membership_Errors_Map_To_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"non admin", fmt.Errorf("%w: only the admin", errors.ErrForbidden), http.StatusForbidden, "Forbidden"},
		{"unknown chat", fmt.Errorf("%w: chat chat-1", errors.ErrNotFound), http.StatusNotFound, "NotFound"},
		{"unexpected", fmt.Errorf("disk is on fire"), http.StatusInternalServerError, "Internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.service.EXPECT().AddToGroup(gomock.Any(), chat.MembershipCommand{
				ChatID: "chat-1", Actor: "alice", Target: "dave",
			}).Return(chat.Chat{}, tt.err)

			w := f.do(http.MethodPut, "/api/chat/groupadd", `{"chatId":"chat-1","userId":"dave"}`)
			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.kind, decodeError(t, w).Kind)
		})
	}
}

func TestChatHandler_RemoveFromGroup(t *testing.T) {
	f := newFixture(t)
	f.service.EXPECT().RemoveFromGroup(gomock.Any(), chat.MembershipCommand{
		ChatID: "chat-1", Actor: "alice", Target: "clara",
	}).Return(chat.Chat{ID: "chat-1"}, nil)

	w := f.do(http.MethodPut, "/api/chat/groupremove", `{"chatId":"chat-1","userId":"clara"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestChatHandler_RenameGroup(t *testing.T) {
	f := newFixture(t)
	f.service.EXPECT().RenameGroup(gomock.Any(), chat.MembershipCommand{
		ChatID: "chat-1", Actor: "alice", Name: "Exam prep",
	}).Return(chat.Chat{ID: "chat-1", Name: "Exam prep"}, nil)

	w := f.do(http.MethodPut, "/api/chat/rename", `{"chatId":"chat-1","chatName":"Exam prep"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"chatName":"Exam prep"`)
}

func TestChatHandler_SendMessage(t *testing.T) {
	t.Run("should forward the origin connection", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		stored := chat.Message{ID: uuid.New(), ChatID: "chat-1", SenderID: "alice", Content: "hello"}

		f.service.EXPECT().SendMessage(gomock.Any(), chat.PostMessageCommand{
			ChatID: "chat-1", SenderID: "alice", Content: "hello", Origin: "conn-7",
		}).Return(stored, nil)

		w := f.do(http.MethodPost, "/api/message", `{"chatId":"chat-1","content":"hello"}`, ConnectionHeader, "conn-7")
		req.Equal(http.StatusOK, w.Code)

		var got chat.Message
		req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
		req.Equal(stored.ID, got.ID)
	})

	t.Run("should surface empty content from the domain", func(t *testing.T) {
		f := newFixture(t)
		f.service.EXPECT().SendMessage(gomock.Any(), gomock.Any()).
			Return(chat.Message{}, fmt.Errorf("%w", errors.ErrEmptyContent))

		w := f.do(http.MethodPost, "/api/message", `{"chatId":"chat-1","content":"   "}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "EmptyContent", decodeError(t, w).Kind)
	})

	t.Run("should reject a non member", func(t *testing.T) {
		f := newFixture(t)
		f.service.EXPECT().SendMessage(gomock.Any(), gomock.Any()).
			Return(chat.Message{}, fmt.Errorf("%w: alice", errors.ErrNotMember))

		w := f.do(http.MethodPost, "/api/message", `{"chatId":"chat-1","content":"hi"}`)
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Equal(t, "NotMember", decodeError(t, w).Kind)
	})
}

func TestChatHandler_GetMessages_Pagination(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	next := "0000000000000000042:some-id"
	cursor := "0000000000000000099:other-id"

	gomock.InOrder(
		f.service.EXPECT().GetMessages(gomock.Any(), chat.GetMessageCommand{ChatID: "chat-1", UserID: "alice"}).
			Return([]chat.Message{{Content: "m4"}, {Content: "m5"}}, &next, nil),
		f.service.EXPECT().GetMessages(gomock.Any(), chat.GetMessageCommand{ChatID: "chat-1", UserID: "alice", Cursor: &cursor}).
			Return([]chat.Message{{Content: "m1"}}, nil, nil),
	)

	// Newest page first, with a cursor to continue
	w := f.do(http.MethodGet, "/api/message/chat-1", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal(next, w.Header().Get(NextCursorHeader))
	var page []chat.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &page))
	req.Len(page, 2)

	// Oldest page, no cursor header anymore
	w = f.do(http.MethodGet, "/api/message/chat-1?cursor="+cursor, "")
	req.Equal(http.StatusOK, w.Code)
	req.Empty(w.Header().Get(NextCursorHeader))
}

func TestChatHandler_MarkRead(t *testing.T) {
	f := newFixture(t)
	messageID := uuid.New()
	f.service.EXPECT().MarkRead(gomock.Any(), chat.MarkReadCommand{
		ChatID: "chat-1", MessageID: messageID, Reader: "alice",
	}).Return(chat.Message{ID: messageID, ReadBy: []chat.UserID{"alice"}}, nil)

	w := f.do(http.MethodPut, "/api/message/"+messageID.String()+"/read", `{"chatId":"chat-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"readBy":["alice"]`)
}

func TestChatHandler_Stats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a caller without the operator role
	w := f.do(http.MethodGet, "/api/debug/stats", "")
	// Then stats are refused
	req.Equal(http.StatusForbidden, w.Code)
	req.Equal("Forbidden", decodeError(t, w).Kind)

	// When an operator asks
	w = f.do(http.MethodGet, "/api/debug/stats", "", "Authorization", "Bearer "+f.operator)
	req.Equal(http.StatusOK, w.Code)

	var stats observability.MonitoringStats
	req.NoError(json.Unmarshal(w.Body.Bytes(), &stats))
	req.Equal(3, stats.Connections)
	req.Equal(1, stats.TypingPairs)
}
