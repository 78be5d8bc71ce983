package botworker

import "fmt"

// DefaultKeyPrefix namespaces every channel key the protocol uses.
const DefaultKeyPrefix = "browser-bots"

// CodeCharset is the alphabet participant codes draw their first character
// from. One listen key exists per character, so the first character of a code
// decides which shard carries its requests.
const CodeCharset = "0123456789abcdefghijklmnopqrstuvwxyz"

// Command names a dispatcher operation. The set is closed: the dispatcher
// resolves commands with a switch over these constants and answers anything
// else with a response error.
type Command string

// The dispatcher's command table.
const (
	CmdInitializeParticipant Command = "initialize_participant"
	CmdPrepareNextSubmit     Command = "prepare_next_submit"
	CmdConsumeNextSubmit     Command = "consume_next_submit"
	CmdClearAll              Command = "clear_all"
	CmdPing                  Command = "ping"
)

// ListenKey returns the sharded input channel key for a participant code.
func ListenKey(prefix, participantCode string) string {
	return fmt.Sprintf("%s-%s", prefix, participantCode[:1])
}

// ListenKeys returns one listen key per character of charset, the full set a
// worker covering that shard range listens on.
func ListenKeys(prefix, charset string) []string {
	keys := make([]string, 0, len(charset))
	for _, c := range charset {
		keys = append(keys, fmt.Sprintf("%s-%c", prefix, c))
	}
	return keys
}

// ResponseKey returns the single-use response channel key for one call.
// Distinct commands for the same participant never collide; two concurrent
// calls of the same command for the same participant race for the same key,
// which the protocol treats as acceptable duplication.
func ResponseKey(prefix string, cmd Command, participantCode string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, cmd, participantCode)
}

// GroupKey returns the session-scoped broadcast group completion messages go
// to.
func GroupKey(prefix, sessionCode string) string {
	return fmt.Sprintf("%s-client-%s", prefix, sessionCode)
}
