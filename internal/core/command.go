package core

// Command is one post a session makes to a room.
type Command struct {
	Room string
	Tag  string
	// Mode selects the action; see the bus.Mode* constants.
	Mode    string
	Message string
	// Target names the recipient of a private message.
	Target string
}

// NoticeSender is the sender name of system notices.
const NoticeSender = "Notice"

// Texts of system notices.
const (
	noticeNickInUse  = "Nick in use!"
	noticeNickFormat = "%s is now known as %s"
	noticeJoinFormat = "%s connected."
)
