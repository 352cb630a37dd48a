package pipeline

import "github.com/harunnryd/bytegate/pkg/llm"

// History is the append-only conversation of one session. It is owned by the
// session loop; turns receive a copy and hand back the extended version.
type History []llm.Message

// Window returns at most the last n messages, never starting on a model reply.
// n <= 0 returns everything.
func (h History) Window(n int) []llm.Message {
	start := 0
	if n > 0 && len(h) > n {
		start = len(h) - n
	}
	for start < len(h) && h[start].Role == llm.RoleModel {
		start++
	}
	out := make([]llm.Message, len(h)-start)
	copy(out, h[start:])
	return out
}

// Append returns a new history with msgs added; h is left untouched.
func (h History) Append(msgs ...llm.Message) History {
	out := make(History, 0, len(h)+len(msgs))
	out = append(out, h...)
	return append(out, msgs...)
}

// Clone returns a copy safe to hand to another goroutine.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	return append(History(nil), h...)
}
