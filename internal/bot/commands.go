package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/diskrelay/diskrelay/internal/disk"
	"github.com/diskrelay/diskrelay/internal/diskauth"
	"github.com/diskrelay/diskrelay/internal/upload"
)

var commandDescriptions = map[Command]string{
	CmdStart:             "introduction",
	CmdHelp:              "what I can do",
	CmdAbout:             "about this bot",
	CmdSettings:          "show or change your default upload folder",
	CmdGrantAccess:       "connect your Yandex.Disk account",
	CmdRevokeAccess:      "disconnect your Yandex.Disk account",
	CmdUploadPhoto:       "upload a photo",
	CmdPublicUploadPhoto: "upload a photo and publish it",
	CmdUploadFile:        "upload a file",
	CmdPublicUploadFile:  "upload a file and publish it",
	CmdUploadAudio:       "upload an audio file",
	CmdPublicUploadAudio: "upload an audio file and publish it",
	CmdUploadVideo:       "upload a video",
	CmdPublicUploadVideo: "upload a video and publish it",
	CmdUploadVoice:       "upload a voice message",
	CmdPublicUploadVoice: "upload a voice message and publish it",
	CmdUploadURL:         "upload a file from a direct link",
	CmdPublicUploadURL:   "upload a file from a direct link and publish it",
	CmdPublish:           "make a stored element public",
	CmdUnpublish:         "make a stored element private",
	CmdCreateFolder:      "create a folder on your Disk",
	CmdElementInfo:       "show information about a stored element",
	CmdSpaceInfo:         "show how much space you use",
	CmdDiskInfo:          "show general information about your Disk",
	CmdCommandsList:      "show all commands as buttons",
}

func (s *Service) handleStart(ctx context.Context, rc *RequestContext) error {
	s.sendText(ctx, rc.Event.ChatID,
		"Hi! I upload files from this chat straight to your Yandex.Disk.\n"+
			"Run /grant_access to connect your account, then just send me a file.\n"+
			"See /help for everything I can do.")
	return nil
}

func (s *Service) handleHelp(ctx context.Context, rc *RequestContext) error {
	var b strings.Builder
	b.WriteString("Here is what I can do:\n\n")
	for _, cmd := range Commands() {
		fmt.Fprintf(&b, "%s - %s\n", cmd, commandDescriptions[cmd])
	}
	b.WriteString("\nYou can also just send me a photo, file, or link without any command.")
	s.sendText(ctx, rc.Event.ChatID, b.String())
	return nil
}

func (s *Service) handleAbout(ctx context.Context, rc *RequestContext) error {
	s.sendText(ctx, rc.Event.ChatID,
		"I am a bridge between Telegram and Yandex.Disk. "+
			"Your files go directly from Telegram's servers to your Disk; "+
			"I store only encrypted access tokens.")
	return nil
}

func (s *Service) handleCommandsList(ctx context.Context, rc *RequestContext) error {
	buttons := make([]Button, 0, len(Commands()))
	for _, cmd := range Commands() {
		data, err := EncodeCallback(cmd, "")
		if err != nil {
			return err
		}
		buttons = append(buttons, Button{Label: string(cmd), Data: data})
	}
	if _, err := s.messenger.SendButtons(ctx, rc.Event.ChatID, "Pick a command:", buttons); err != nil {
		return fmt.Errorf("send commands list: %w", err)
	}
	return nil
}

func (s *Service) handleUnknown(ctx context.Context, rc *RequestContext) error {
	s.sendText(ctx, rc.Event.ChatID, "I don't understand that. See /help for what I can do.")
	return nil
}

func (s *Service) handleSettings(ctx context.Context, rc *RequestContext) error {
	folder := strings.TrimSpace(rc.Payload())
	if folder == "" {
		if rc.Source == RouteDisposable {
			// The continuation arrived without usable text.
			s.sendText(ctx, rc.Event.ChatID, "That doesn't look like a folder name. Settings unchanged.")
			return nil
		}
		current := fmt.Sprintf("Your default upload folder is %q.", rc.Settings.DefaultUploadFolder)
		if s.store.Enabled() {
			return s.askFor(ctx, rc, CmdSettings, []string{EventText},
				current+"\nSend me a new folder name to change it, or /help to leave it.")
		}
		s.sendText(ctx, rc.Event.ChatID, current+"\nTo change it: /settings <folder name>")
		return nil
	}
	if strings.HasPrefix(folder, "/") {
		s.sendText(ctx, rc.Event.ChatID, "Settings unchanged.")
		return nil
	}
	if err := s.users.SetDefaultUploadFolder(ctx, rc.User.ID, folder); err != nil {
		return err
	}
	s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf("Done. New uploads go to %q.", folder))
	return nil
}

func (s *Service) handleGrantAccess(ctx context.Context, rc *RequestContext) error {
	res, err := s.auth.BeginHandshake(ctx, rc.User.ID)
	if err != nil {
		return err
	}
	switch res.Status {
	case diskauth.StatusAlreadyGranted:
		s.sendText(ctx, rc.Event.ChatID, "I already have access to your Yandex.Disk.")
	case diskauth.StatusRefreshed:
		s.sendText(ctx, rc.Event.ChatID, "Access renewed. No further action needed.")
	case diskauth.StatusInsertPending:
		text := fmt.Sprintf(
			"Open this link and allow access:\n%s\n\nThe link is valid for %d minutes.",
			res.URL, int(res.TTL.Minutes()))
		s.sendText(ctx, rc.Event.ChatID, text)
	}
	return nil
}

func (s *Service) handleRevokeAccess(ctx context.Context, rc *RequestContext) error {
	if err := s.auth.Revoke(ctx, rc.User.ID); err != nil {
		return err
	}
	s.sendText(ctx, rc.Event.ChatID,
		"Access revoked and tokens deleted on my side. "+
			"You can also revoke the grant in your Yandex account settings.")
	return nil
}

func (s *Service) uploadHandler(kind AttachmentKind, public bool) HandlerFunc {
	spec := attachmentSpecs[kind]
	cmd := spec.command
	if public {
		cmd = spec.publicCommand
	}
	return func(ctx context.Context, rc *RequestContext) error {
		sourceURL, fileName, ok, err := s.extractSource(ctx, rc, kind)
		if err != nil {
			return err
		}
		if !ok {
			return s.askFor(ctx, rc, cmd, []string{spec.event}, spec.prompt)
		}

		if err := s.messenger.SendChatAction(ctx, rc.Event.ChatID, spec.chatAction); err != nil {
			s.log.Warn("chat action failed", slog.Any("error", err))
		}

		job := upload.Job{
			AccessToken: rc.AccessToken,
			Folder:      rc.Settings.DefaultUploadFolder,
			FileName:    fileName,
			SourceURL:   sourceURL,
			Publish:     public,
			FetchInfo:   true,
		}
		chatID := rc.Event.ChatID
		run := func(jobCtx context.Context) { s.runUpload(jobCtx, chatID, job) }

		// The poll loop sleeps; prefer a worker. Falling back to
		// inline blocks this request for attempts x interval.
		if s.pool == nil || !s.pool.Submit(run) {
			run(ctx)
		}
		return nil
	}
}

func (s *Service) extractSource(ctx context.Context, rc *RequestContext, kind AttachmentKind) (string, string, bool, error) {
	ev := rc.Event
	if kind == KindURL {
		raw := ev.URL
		if raw == "" {
			raw = strings.TrimSpace(rc.Payload())
		}
		if raw == "" {
			return "", "", false, nil
		}
		return raw, urlFileName(raw, ev.Date), true, nil
	}
	if ev.Attachment == nil || ev.Attachment.Kind != kind {
		return "", "", false, nil
	}
	fileURL, err := s.messenger.FileURL(ctx, ev.Attachment.FileID)
	if err != nil {
		return "", "", false, fmt.Errorf("resolve attachment url: %w", err)
	}
	name := ev.Attachment.FileName
	if name == "" {
		name = upload.BuildJobName(kind.String(), "", ev.Date)
		if ext := path.Ext(fileURL); ext != "" {
			name += ext
		}
	}
	return fileURL, name, true, nil
}

func (s *Service) runUpload(ctx context.Context, chatID int64, job upload.Job) {
	reporter := upload.NewReporter(s.log, s.messenger, chatID)
	result, err := s.uploader.Run(ctx, job, func(status disk.OperationStatus) {
		reporter.Update(ctx, "Upload status: "+string(status))
	})
	if err != nil {
		reporter.Update(ctx, s.uploadErrorText(job, err))
		return
	}
	reporter.Update(ctx, uploadSuccessText(result))
}

func (s *Service) uploadErrorText(job upload.Job, err error) string {
	switch {
	case errors.Is(err, upload.ErrExceededStatusChecks):
		return fmt.Sprintf(
			"I stopped checking the upload status of %q. It may still finish; please check your Disk manually.",
			job.FileName)
	case errors.Is(err, upload.ErrUploadFailed):
		return fmt.Sprintf("Yandex.Disk reported the upload of %q as failed.", job.FileName)
	}
	var apiErr *disk.Error
	if errors.As(err, &apiErr) {
		return "Yandex.Disk says: " + apiErr.Human()
	}
	s.log.Error("upload failed", slog.String("file", job.FileName), slog.Any("error", err))
	return genericFailureText
}

func uploadSuccessText(result upload.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uploaded to %s.", result.Path)
	if result.Resource.Size > 0 {
		fmt.Fprintf(&b, "\nSize: %s.", humanSize(result.Resource.Size))
	}
	if result.Resource.PublicURL != "" {
		fmt.Fprintf(&b, "\nPublic link: %s", result.Resource.PublicURL)
	}
	if result.PublishErr != nil {
		b.WriteString("\nNote: the upload succeeded but publishing failed. Try /publish later.")
	}
	if result.InfoErr != nil {
		b.WriteString("\nI couldn't fetch the file details, but the upload succeeded.")
	}
	return b.String()
}

func (s *Service) handleCreateFolder(ctx context.Context, rc *RequestContext) error {
	folder := strings.TrimSpace(rc.Payload())
	if folder == "" {
		return s.askFor(ctx, rc, CmdCreateFolder, []string{EventText},
			"Send me the path of the folder to create, like Backups/2026.")
	}
	status, err := s.disk.CreateFolder(ctx, rc.AccessToken, folder)
	if err != nil {
		return err
	}
	if status == 201 {
		s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf("Folder %q created.", folder))
	} else {
		s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf("Folder %q already exists.", folder))
	}
	return nil
}

func (s *Service) handlePublish(ctx context.Context, rc *RequestContext) error {
	target := strings.TrimSpace(rc.Payload())
	if target == "" {
		return s.askFor(ctx, rc, CmdPublish, []string{EventText},
			"Send me the path of the element to publish.")
	}
	if err := s.disk.Publish(ctx, rc.AccessToken, target); err != nil {
		return err
	}
	res, err := s.disk.ResourceInfo(ctx, rc.AccessToken, target, []string{"public_url"}, "")
	if err != nil || res.PublicURL == "" {
		s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf("%q is public now.", target))
		return nil
	}
	s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf("%q is public now: %s", target, res.PublicURL))
	return nil
}

func (s *Service) handleUnpublish(ctx context.Context, rc *RequestContext) error {
	target := strings.TrimSpace(rc.Payload())
	if target == "" {
		return s.askFor(ctx, rc, CmdUnpublish, []string{EventText},
			"Send me the path of the element to unpublish.")
	}
	if err := s.disk.Unpublish(ctx, rc.AccessToken, target); err != nil {
		return err
	}
	s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf("Done. %q is private again.", target))
	return nil
}

func (s *Service) handleElementInfo(ctx context.Context, rc *RequestContext) error {
	target := strings.TrimSpace(rc.Payload())
	if target == "" {
		return s.askFor(ctx, rc, CmdElementInfo, []string{EventText},
			"Send me the path of the element to inspect.")
	}
	res, err := s.disk.ResourceInfo(ctx, rc.AccessToken, target, nil, "")
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nType: %s", res.Name, res.Type)
	if res.Size > 0 {
		fmt.Fprintf(&b, "\nSize: %s", humanSize(res.Size))
	}
	if res.MimeType != "" {
		fmt.Fprintf(&b, "\nMIME type: %s", res.MimeType)
	}
	if res.Created != "" {
		fmt.Fprintf(&b, "\nCreated: %s", res.Created)
	}
	if res.Modified != "" {
		fmt.Fprintf(&b, "\nModified: %s", res.Modified)
	}
	if res.PublicURL != "" {
		fmt.Fprintf(&b, "\nPublic link: %s", res.PublicURL)
	}
	s.sendText(ctx, rc.Event.ChatID, b.String())
	return nil
}

func (s *Service) handleSpaceInfo(ctx context.Context, rc *RequestContext) error {
	quota, err := s.disk.QuotaInfo(ctx, rc.AccessToken)
	if err != nil {
		return err
	}
	free := quota.TotalSpace - quota.UsedSpace
	s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf(
		"Disk space:\nUsed: %s (%s)\nFree: %s (%s)\nTrash: %s (%s)",
		humanSize(quota.UsedSpace), percentOf(quota.UsedSpace, quota.TotalSpace),
		humanSize(free), percentOf(free, quota.TotalSpace),
		humanSize(quota.TrashSize), percentOf(quota.TrashSize, quota.TotalSpace)))
	return nil
}

func (s *Service) handleDiskInfo(ctx context.Context, rc *RequestContext) error {
	quota, err := s.disk.QuotaInfo(ctx, rc.AccessToken)
	if err != nil {
		return err
	}
	s.sendText(ctx, rc.Event.ChatID, fmt.Sprintf(
		"Total space: %s\nUsed space: %s\nTrash size: %s",
		humanSize(quota.TotalSpace), humanSize(quota.UsedSpace), humanSize(quota.TrashSize)))
	return nil
}

// percentOf keeps all quota math in bytes.
func percentOf(part, total int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func urlFileName(raw string, date int64) string {
	parsed, err := url.Parse(raw)
	if err == nil {
		if base := path.Base(parsed.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return upload.BuildJobName("url", "", date)
}
