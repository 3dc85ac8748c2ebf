package bot

import (
	"github.com/diskrelay/diskrelay/internal/models"
)

// RequestContext is built once per inbound event and passed by
// parameter through checks and handlers; there is no ambient
// request-global state.
type RequestContext struct {
	Event  Event
	Source RouteSource

	// Filled by the register-guest check.
	User     models.User
	Chat     models.Chat
	Settings models.UserSettings

	// Filled by the access-token check for handlers that need it.
	AccessToken string
}

// Payload is the free-text argument of the invocation. Under a
// disposable route the whole message is the payload; under direct and
// same-date routes the leading command token is stripped.
func (rc *RequestContext) Payload() string {
	if rc.Source == RouteDisposable {
		return rc.Event.Text
	}
	return StripCommand(rc.Event.Text, rc.Event.Command)
}
