package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/notify"
	"github.com/tbourn/go-taskbuddy/internal/repo"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:bot_%s_%s?mode=memory&cache=shared", name, uuid.NewString())

	db, err := repo.OpenSQLite(dsn, repo.OpenOptions{Quiet: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type sentMessage struct {
	ChatID int64
	Text   string
	Markup any
}

// fakeAPI records outgoing messages and callback answers.
type fakeAPI struct {
	mu       sync.Mutex
	messages []sentMessage
	answers  []tgbotapi.CallbackConfig
	down     map[int64]bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}
	if f.down[m.ChatID] {
		return tgbotapi.Message{}, errors.New("Forbidden: bot was blocked by the user")
	}
	f.messages = append(f.messages, sentMessage{ChatID: m.ChatID, Text: m.Text, Markup: m.ReplyMarkup})
	return tgbotapi.Message{MessageID: len(f.messages)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// last returns the latest message sent to chatID.
func (f *fakeAPI) last(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ChatID == chatID {
			return f.messages[i]
		}
	}
	t.Fatalf("no message sent to %d", chatID)
	return sentMessage{}
}

func (f *fakeAPI) lastAnswer(t *testing.T) tgbotapi.CallbackConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		t.Fatal("no callback answered")
	}
	return f.answers[len(f.answers)-1]
}

func (f *fakeAPI) count(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.ChatID == chatID {
			n++
		}
	}
	return n
}

type fakeSender struct {
	configured bool
	sent       []services.PushMessage
}

func (s *fakeSender) Configured() bool { return s.configured }

func (s *fakeSender) Send(_ context.Context, msg services.PushMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) AppInfo(context.Context) (map[string]any, error) { return nil, nil }

type harness struct {
	t    *testing.T
	db   *gorm.DB
	api  *fakeAPI
	push *fakeSender
	bot  *Bot
	next int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	api := &fakeAPI{down: map[int64]bool{}}
	tg := notify.NewTelegram(api)
	push := &fakeSender{configured: true}

	b := New(Deps{
		API:       api,
		Users:     &services.UserService{DB: db},
		Pairing:   &services.PairingService{DB: db, Notifier: tg},
		Tasks:     &services.TaskService{DB: db, Notifier: tg},
		Stats:     &services.StatsService{DB: db},
		Reminders: &services.PushService{DB: db, Sender: push},
		Username:  "TaskBuddyBot",
	})
	return &harness{t: t, db: db, api: api, push: push, bot: b}
}

func (h *harness) user(id int64) *tgbotapi.User {
	return &tgbotapi.User{ID: id, FirstName: fmt.Sprintf("User%d", id), UserName: fmt.Sprintf("user%d", id)}
}

// say delivers a private text message from id; leading "/" makes it a command.
func (h *harness) say(id int64, text string) {
	h.t.Helper()
	h.next++
	msg := &tgbotapi.Message{
		MessageID: h.next,
		From:      h.user(id),
		Chat:      &tgbotapi.Chat{ID: id, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		n := strings.IndexByte(text, ' ')
		if n < 0 {
			n = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: h.next, Message: msg})
}

// press delivers an inline button press from id.
func (h *harness) press(id int64, data string) {
	h.t.Helper()
	h.next++
	cb := &tgbotapi.CallbackQuery{
		ID:      fmt.Sprintf("cb-%d", h.next),
		From:    h.user(id),
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: id, Type: "private"}},
		Data:    data,
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: h.next, CallbackQuery: cb})
}

func (h *harness) reload(id int64) *domain.User {
	h.t.Helper()
	u, err := repo.GetUserByTelegramID(context.Background(), h.db, id)
	if err != nil {
		h.t.Fatalf("reload %d: %v", id, err)
	}
	return u
}

// pair links a and b through the chat flow.
func (h *harness) pair(a, b int64) {
	h.t.Helper()
	h.say(a, "/start")
	h.say(b, "/start")
	h.say(a, "/invite")
	code := *h.reload(a).InviteCode
	h.say(b, "/join "+code)
	if !h.reload(b).HasPartner() {
		h.t.Fatalf("users %d and %d not paired", a, b)
	}
}

// openTasks returns the open tasks assigned to id.
func (h *harness) incoming(id int64) []domain.Task {
	h.t.Helper()
	var tasks []domain.Task
	u := h.reload(id)
	if err := h.db.Where("assigned_to_id = ? AND completed = ?", u.ID, false).Order("id").Find(&tasks).Error; err != nil {
		h.t.Fatalf("list tasks: %v", err)
	}
	return tasks
}
