// Package bot is the Telegram chat transport: it accepts JSON text and .json
// documents, and asks the enrichment questions after a single record is
// stored.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/enrichment"
	"github.com/sebasr/wifi-registry/internal/export"
	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/models"
)

// maxDocumentBytes is the largest file the Bot API lets bots download
const maxDocumentBytes = 20 << 20

// API is the subset of tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Ingester stores documents in lenient mode
type Ingester interface {
	IngestDocument(ctx context.Context, raw []byte, opts ...ingest.CallOption) (*ingest.DocumentResult, error)
}

// Lister reads all stored records
type Lister interface {
	List(ctx context.Context) ([]*models.AccessPoint, error)
}

// Bot routes chat updates to ingestion and enrichment
type Bot struct {
	api              API
	ingester         Ingester
	lister           Lister
	machine          *enrichment.Machine
	authorizedChatID int64
	httpClient       *http.Client
	logger           *zap.Logger
}

// Option configures a Bot
type Option func(*Bot)

// WithAuthorizedChat restricts the bot to one chat. 0 allows every chat.
func WithAuthorizedChat(chatID int64) Option {
	return func(b *Bot) { b.authorizedChatID = chatID }
}

// WithHTTPClient sets the client used to download documents
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// NewAPI connects to the Bot API with token
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = false
	return api, nil
}

// New creates a bot
func New(api API, ingester Ingester, lister Lister, machine *enrichment.Machine, opts ...Option) *Bot {
	b := &Bot{
		api:        api,
		ingester:   ingester,
		lister:     lister,
		machine:    machine,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls for updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Errors are reported to the chat and
// logged; they never stop the polling loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if b.authorizedChatID != 0 && chatID != b.authorizedChatID {
		b.logger.Warn("Unauthorized chat", zap.Int64("chat_id", chatID))
		b.send(chatID, textUnauthorized)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, chatID, msg.Command())
		return
	}

	session := sessionID(chatID)
	state, err := b.machine.State(ctx, session)
	if err != nil {
		b.logger.Error("Failed to load enrichment state", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(chatID, "Internal error, please try again.")
		return
	}
	if !state.IsIdle() && msg.Document == nil {
		reply, err := b.machine.Handle(ctx, session, msg.Text)
		if err != nil {
			b.logger.Error("Enrichment step failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		if reply.Text != "" {
			b.send(chatID, reply.Text)
		}
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, chatID, msg.Document)
		return
	}

	b.handlePayload(ctx, chatID, []byte(msg.Text))
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string) {
	switch command {
	case "start", "help":
		if _, err := b.machine.Cancel(ctx, sessionID(chatID)); err != nil {
			b.logger.Error("Failed to reset enrichment state", zap.Error(err))
		}
		b.sendWithKeyboard(chatID, welcomeText)
		b.send(chatID, exampleText)
	case "cancel":
		reply, err := b.machine.Cancel(ctx, sessionID(chatID))
		if err != nil {
			b.logger.Error("Failed to cancel enrichment", zap.Error(err))
			b.send(chatID, "Internal error, please try again.")
			return
		}
		b.send(chatID, reply.Text)
	case "table":
		b.handleTable(ctx, chatID)
	default:
		b.send(chatID, textUnknownCommand)
	}
}

func (b *Bot) handleTable(ctx context.Context, chatID int64) {
	records, err := b.lister.List(ctx)
	if err != nil {
		b.logger.Error("Failed to read records", zap.Error(err))
		b.send(chatID, "Could not read the table.")
		return
	}
	if len(records) == 0 {
		b.send(chatID, textEmptyTable)
		return
	}

	for _, part := range chunk(export.Table(records), maxMessageRunes-8) {
		m := tgbotapi.NewMessage(chatID, "```\n"+part+"\n```")
		m.ParseMode = tgbotapi.ModeMarkdown
		b.sendConfig(m)
	}

	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, records); err != nil {
		b.logger.Error("Failed to serialize records", zap.Error(err))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "wifi_table.json", Bytes: buf.Bytes()})
	b.sendConfig(doc)
}

func (b *Bot) handleDocument(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".json") {
		b.send(chatID, textNotJSONFile)
		return
	}
	if doc.FileSize > maxDocumentBytes {
		b.send(chatID, textFileTooLarge)
		return
	}

	raw, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.logger.Error("Failed to download document", zap.String("file", doc.FileName), zap.Error(err))
		b.send(chatID, "Could not download the file.")
		return
	}

	b.send(chatID, textFileReceived)
	b.handlePayload(ctx, chatID, raw)
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxDocumentBytes)
	}
	return raw, nil
}

// handlePayload ingests a JSON document. A single stored record starts the
// enrichment questions.
func (b *Bot) handlePayload(ctx context.Context, chatID int64, raw []byte) {
	result, err := b.ingester.IngestDocument(ctx, raw, ingest.Lenient())
	if err != nil {
		b.logger.Info("Chat payload rejected",
			zap.Int64("chat_id", chatID),
			zap.String("kind", ingest.Kind(err)),
			zap.Error(err))
		b.send(chatID, singleRecordError(err))
		return
	}

	if result.Batch != nil {
		b.sendWithKeyboard(chatID, batchSummary(result.Batch))
		return
	}

	reply, err := b.machine.Start(ctx, sessionID(chatID), result.BSSID)
	if err != nil {
		b.logger.Error("Failed to start enrichment", zap.String("bssid", result.BSSID), zap.Error(err))
		b.send(chatID, fmt.Sprintf("Saved %s.", result.BSSID))
		return
	}
	b.send(chatID, fmt.Sprintf("Saved %s.\n\n%s", result.BSSID, reply.Text))
}

func (b *Bot) send(chatID int64, text string) {
	b.sendConfig(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendWithKeyboard(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = mainKeyboard()
	b.sendConfig(m)
}

func (b *Bot) sendConfig(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("Bot send error", zap.Error(err))
	}
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/table"),
			tgbotapi.NewKeyboardButton("/cancel"),
			tgbotapi.NewKeyboardButton("/start"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func sessionID(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}
