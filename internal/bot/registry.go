package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CmdStart             Command = "/start"
	CmdHelp              Command = "/help"
	CmdAbout             Command = "/about"
	CmdSettings          Command = "/settings"
	CmdGrantAccess       Command = "/grant_access"
	CmdRevokeAccess      Command = "/revoke_access"
	CmdUploadPhoto       Command = "/upload_photo"
	CmdPublicUploadPhoto Command = "/public_upload_photo"
	CmdUploadFile        Command = "/upload_file"
	CmdPublicUploadFile  Command = "/public_upload_file"
	CmdUploadAudio       Command = "/upload_audio"
	CmdPublicUploadAudio Command = "/public_upload_audio"
	CmdUploadVideo       Command = "/upload_video"
	CmdPublicUploadVideo Command = "/public_upload_video"
	CmdUploadVoice       Command = "/upload_voice"
	CmdPublicUploadVoice Command = "/public_upload_voice"
	CmdUploadURL         Command = "/upload_url"
	CmdPublicUploadURL   Command = "/public_upload_url"
	CmdPublish           Command = "/publish"
	CmdUnpublish         Command = "/unpublish"
	CmdCreateFolder      Command = "/create_folder"
	CmdElementInfo       Command = "/element_info"
	CmdSpaceInfo         Command = "/space_info"
	CmdDiskInfo          Command = "/disk_info"
	CmdCommandsList      Command = "/commands_list"
	CmdUnknown           Command = "/unknown"
)

// registryOrder is append-only. Callback payloads carry positions in
// this slice because full names would blow the platform's 64-byte
// callback data limit; reordering breaks buttons already in chats.
var registryOrder = []Command{
	CmdStart,
	CmdHelp,
	CmdAbout,
	CmdSettings,
	CmdGrantAccess,
	CmdRevokeAccess,
	CmdUploadPhoto,
	CmdPublicUploadPhoto,
	CmdUploadFile,
	CmdPublicUploadFile,
	CmdUploadAudio,
	CmdPublicUploadAudio,
	CmdUploadVideo,
	CmdPublicUploadVideo,
	CmdUploadVoice,
	CmdPublicUploadVoice,
	CmdUploadURL,
	CmdPublicUploadURL,
	CmdPublish,
	CmdUnpublish,
	CmdCreateFolder,
	CmdElementInfo,
	CmdSpaceInfo,
	CmdDiskInfo,
	CmdCommandsList,
	CmdUnknown,
}

var commandIndex = func() map[Command]int {
	m := make(map[Command]int, len(registryOrder))
	for i, c := range registryOrder {
		m[c] = i
	}
	return m
}()

var ErrUnknownCommand = errors.New("bot: unknown command")

func ParseCommand(raw string) (Command, bool) {
	c := Command(raw)
	_, ok := commandIndex[c]
	return c, ok
}

func CommandAt(index int) (Command, bool) {
	if index < 0 || index >= len(registryOrder) {
		return "", false
	}
	return registryOrder[index], true
}

// Commands returns the registry in its fixed order, without the
// unknown-command fallback.
func Commands() []Command {
	return registryOrder[:len(registryOrder)-1]
}

const maxCallbackData = 64

// EncodeCallback packs a command and optional payload as
// "<index>:<payload>" for inline-button data. The numeric index must
// never be persisted or compared across registry changes.
func EncodeCallback(cmd Command, payload string) (string, error) {
	index, ok := commandIndex[cmd]
	if !ok {
		return "", ErrUnknownCommand
	}
	data := strconv.Itoa(index)
	if payload != "" {
		data += ":" + payload
	}
	if len(data) > maxCallbackData {
		return "", fmt.Errorf("bot: callback data too long (%d bytes)", len(data))
	}
	return data, nil
}

func DecodeCallback(data string) (Command, string, error) {
	raw, payload, _ := strings.Cut(data, ":")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return "", "", fmt.Errorf("bot: malformed callback data: %w", err)
	}
	cmd, ok := CommandAt(index)
	if !ok {
		return "", "", ErrUnknownCommand
	}
	return cmd, payload, nil
}
