package bot

// AttachmentKind replaces the per-type handler subclassing with one
// variant table: each kind maps to its commands, trigger event, chat
// action, and prompt, and the public flag is threaded through a single
// upload path.
type AttachmentKind int

const (
	KindPhoto AttachmentKind = iota
	KindFile
	KindAudio
	KindVideo
	KindVoice
	KindURL
)

func (k AttachmentKind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindFile:
		return "file"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindVoice:
		return "voice"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

type attachmentSpec struct {
	command       Command
	publicCommand Command
	event         string
	chatAction    string
	prompt        string
}

var attachmentSpecs = map[AttachmentKind]attachmentSpec{
	KindPhoto: {
		command:       CmdUploadPhoto,
		publicCommand: CmdPublicUploadPhoto,
		event:         EventPhoto,
		chatAction:    "upload_photo",
		prompt:        "Send me a photo to upload.",
	},
	KindFile: {
		command:       CmdUploadFile,
		publicCommand: CmdPublicUploadFile,
		event:         EventFile,
		chatAction:    "upload_document",
		prompt:        "Send me a file to upload.",
	},
	KindAudio: {
		command:       CmdUploadAudio,
		publicCommand: CmdPublicUploadAudio,
		event:         EventAudio,
		chatAction:    "upload_document",
		prompt:        "Send me an audio file to upload.",
	},
	KindVideo: {
		command:       CmdUploadVideo,
		publicCommand: CmdPublicUploadVideo,
		event:         EventVideo,
		chatAction:    "upload_video",
		prompt:        "Send me a video to upload.",
	},
	KindVoice: {
		command:       CmdUploadVoice,
		publicCommand: CmdPublicUploadVoice,
		event:         EventVoice,
		chatAction:    "upload_document",
		prompt:        "Send me a voice message to upload.",
	},
	KindURL: {
		command:       CmdUploadURL,
		publicCommand: CmdPublicUploadURL,
		event:         EventURL,
		chatAction:    "upload_document",
		prompt:        "Send me a direct link to a file to upload.",
	},
}

// guessOrder is the fixed priority for heuristic command resolution;
// first match wins.
var guessOrder = []AttachmentKind{KindPhoto, KindFile, KindAudio, KindVideo, KindVoice, KindURL}

// GuessCommand picks an upload command from the event's content shape.
func GuessCommand(ev Event) (Command, bool) {
	for _, kind := range guessOrder {
		if kind == KindURL {
			if ev.URL != "" {
				return attachmentSpecs[kind].command, true
			}
			continue
		}
		if ev.Attachment != nil && ev.Attachment.Kind == kind {
			return attachmentSpecs[kind].command, true
		}
	}
	return "", false
}
