package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/diskrelay/diskrelay/internal/convstore"
	"github.com/diskrelay/diskrelay/internal/disk"
	"github.com/diskrelay/diskrelay/internal/diskauth"
	"github.com/diskrelay/diskrelay/internal/models"
	"github.com/diskrelay/diskrelay/internal/upload"
	"github.com/diskrelay/diskrelay/internal/worker"
)

const genericFailureText = "Something went wrong on my side. Please try again later."

// Button is one inline-keyboard entry; Data is a bounded callback
// payload produced by EncodeCallback.
type Button struct {
	Label string
	Data  string
}

// Messenger is the outbound chat transport surface.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendHTML(ctx context.Context, chatID int64, text string) (int, error)
	SendButtons(ctx context.Context, chatID int64, text string, buttons []Button) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	FileURL(ctx context.Context, fileID string) (string, error)
}

// DiskAPI is the remote storage surface the handlers call directly.
type DiskAPI interface {
	CreateFolder(ctx context.Context, accessToken, path string) (int, error)
	Publish(ctx context.Context, accessToken, path string) error
	Unpublish(ctx context.Context, accessToken, path string) error
	ResourceInfo(ctx context.Context, accessToken, path string, fields []string, previewSize string) (disk.Resource, error)
	QuotaInfo(ctx context.Context, accessToken string) (disk.Quota, error)
}

// Uploader runs one upload job to a terminal outcome.
type Uploader interface {
	Run(ctx context.Context, job upload.Job, progress upload.ProgressFunc) (upload.Result, error)
}

// UserDirectory is the durable user/chat/settings surface.
type UserDirectory interface {
	RegisterGuest(ctx context.Context, telegramUserID int64, language string, telegramChatID int64, chatType models.ChatType) (models.User, models.Chat, error)
	Settings(ctx context.Context, userID int64) (models.UserSettings, error)
	SetDefaultUploadFolder(ctx context.Context, userID int64, folder string) error
}

// Authorizer is the credential lifecycle surface the handlers use.
type Authorizer interface {
	BeginHandshake(ctx context.Context, userID int64) (diskauth.HandshakeResult, error)
	Revoke(ctx context.Context, userID int64) error
	AccessToken(ctx context.Context, userID int64) (string, error)
}

type HandlerFunc func(ctx context.Context, rc *RequestContext) error

type handlerSpec struct {
	fn        HandlerFunc
	needsAuth bool
}

// Service wires the dispatcher to the command handlers and owns the
// per-update execution pipeline.
type Service struct {
	log        *slog.Logger
	messenger  Messenger
	store      *convstore.Store
	users      UserDirectory
	auth       Authorizer
	disk       DiskAPI
	uploader   Uploader
	pool       *worker.Pool
	dispatcher *Dispatcher

	botUsername   string
	disposableTTL time.Duration

	handlers map[Command]handlerSpec
}

func NewService(log *slog.Logger, messenger Messenger, store *convstore.Store, userStore UserDirectory, auth Authorizer, diskAPI DiskAPI, uploader Uploader, pool *worker.Pool, dispatcher *Dispatcher, botUsername string, disposableTTL time.Duration) *Service {
	s := &Service{
		log:           log.With(slog.String("service", "bot")),
		messenger:     messenger,
		store:         store,
		users:         userStore,
		auth:          auth,
		disk:          diskAPI,
		uploader:      uploader,
		pool:          pool,
		dispatcher:    dispatcher,
		botUsername:   botUsername,
		disposableTTL: disposableTTL,
		handlers:      map[Command]handlerSpec{},
	}
	s.register()
	return s
}

func (s *Service) register() {
	s.handle(CmdStart, s.handleStart, false)
	s.handle(CmdHelp, s.handleHelp, false)
	s.handle(CmdAbout, s.handleAbout, false)
	s.handle(CmdSettings, s.handleSettings, false)
	s.handle(CmdGrantAccess, s.handleGrantAccess, false)
	s.handle(CmdRevokeAccess, s.handleRevokeAccess, false)
	s.handle(CmdCommandsList, s.handleCommandsList, false)
	s.handle(CmdUnknown, s.handleUnknown, false)

	for kind, spec := range attachmentSpecs {
		s.handle(spec.command, s.uploadHandler(kind, false), true)
		s.handle(spec.publicCommand, s.uploadHandler(kind, true), true)
	}

	s.handle(CmdCreateFolder, s.handleCreateFolder, true)
	s.handle(CmdPublish, s.handlePublish, true)
	s.handle(CmdUnpublish, s.handleUnpublish, true)
	s.handle(CmdElementInfo, s.handleElementInfo, true)
	s.handle(CmdSpaceInfo, s.handleSpaceInfo, true)
	s.handle(CmdDiskInfo, s.handleDiskInfo, true)
}

func (s *Service) handle(cmd Command, fn HandlerFunc, needsAuth bool) {
	s.handlers[cmd] = handlerSpec{fn: fn, needsAuth: needsAuth}
}

// HandleUpdate runs one inbound update end to end. It never returns
// an error to the webhook layer; every failure ends as a logged
// incident plus a generic user-facing cancellation.
func (s *Service) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := NewEvent(update, s.botUsername)
	if !ok {
		return
	}

	binding, observers, err := s.dispatcher.Resolve(ctx, ev)
	if err != nil {
		s.log.Error("resolve failed", slog.Any("error", err))
		s.sendText(ctx, ev.ChatID, genericFailureText)
		return
	}

	if ev.Callback != nil {
		if err := s.messenger.AnswerCallback(ctx, ev.Callback.ID, ""); err != nil {
			s.log.Warn("answer callback failed", slog.Any("error", err))
		}
	}

	// Observers run first and never affect the primary route.
	for _, observer := range observers {
		s.run(ctx, ev, observer)
	}
	s.run(ctx, ev, binding)
}

func (s *Service) run(ctx context.Context, ev Event, binding Binding) {
	spec, ok := s.handlers[binding.Command]
	if !ok {
		spec = s.handlers[CmdUnknown]
	}

	rc := &RequestContext{Event: ev, Source: binding.Source}

	checks := []Check{RegisterGuest(s.log, s.users)}
	if spec.needsAuth {
		checks = append(checks, RequireAccessToken(s.auth))
	}
	if err := runChecks(ctx, rc, checks); err != nil {
		s.replyError(ctx, ev.ChatID, binding, err)
		return
	}

	if err := spec.fn(ctx, rc); err != nil {
		s.replyError(ctx, ev.ChatID, binding, err)
	}
}

// replyError converts a failure into chat output per its class:
// halts carry their own message, expected remote errors surface the
// remote description, everything else is logged and turned generic.
func (s *Service) replyError(ctx context.Context, chatID int64, binding Binding, err error) {
	var halt *Halt
	if errors.As(err, &halt) {
		s.sendText(ctx, chatID, halt.Message)
		return
	}
	var apiErr *disk.Error
	if errors.As(err, &apiErr) {
		s.sendText(ctx, chatID, "Yandex.Disk says: "+apiErr.Human())
		return
	}
	s.log.Error("handler failed",
		slog.String("command", string(binding.Command)),
		slog.String("source", binding.Source.String()),
		slog.Any("error", err))
	s.sendText(ctx, chatID, genericFailureText)
}

func (s *Service) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := s.messenger.SendText(ctx, chatID, text); err != nil {
		s.log.Warn("send failed", slog.Any("error", err))
	}
}

// askFor prompts for missing input, queuing a disposable continuation
// when stateful chat is enabled. Without the store the user has to
// attach input to the command message itself.
func (s *Service) askFor(ctx context.Context, rc *RequestContext, cmd Command, events []string, prompt string) error {
	if s.store.Enabled() {
		err := s.store.SetDisposable(ctx, rc.Event.UserID, rc.Event.ChatID, string(cmd), events, s.disposableTTL)
		if err == nil {
			s.sendText(ctx, rc.Event.ChatID, prompt)
			return nil
		}
		s.log.Warn("queue disposable continuation failed", slog.Any("error", err))
	}
	s.sendText(ctx, rc.Event.ChatID, prompt+" Attach it to the command message and send again.")
	return nil
}
