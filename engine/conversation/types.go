package conversation

import "fmt"

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BlockKind discriminates the content-block union.
type BlockKind string

const (
	KindText       BlockKind = "text"
	KindToolUse    BlockKind = "tool_use"
	KindToolResult BlockKind = "tool_result"
)

// Block is the tagged union over text, tool_use, and tool_result content.
// Blocks are built through the constructors below so an unrecognized shape
// is unrepresentable rather than a silently skipped branch.
type Block struct {
	Kind BlockKind

	// Text payload for KindText blocks.
	Text string

	// ToolUseID is the correlation token minted by the completion service.
	// Set on KindToolUse (as the request id) and on KindToolResult (echoed
	// back unchanged).
	ToolUseID string
	// ToolName and Input are set on KindToolUse blocks.
	ToolName string
	Input    map[string]any

	// Result carries the tool output text on KindToolResult blocks.
	Result string
}

// TextBlock builds a plain text block.
func TextBlock(text string) Block {
	return Block{Kind: KindText, Text: text}
}

// ToolUseBlock builds a tool invocation request block.
func ToolUseBlock(id, name string, input map[string]any) Block {
	return Block{Kind: KindToolUse, ToolUseID: id, ToolName: name, Input: input}
}

// ToolResultBlock builds the reply to a tool_use block, echoing its id.
func ToolResultBlock(toolUseID, text string) Block {
	return Block{Kind: KindToolResult, ToolUseID: toolUseID, Result: text}
}

// Message is one conversation turn owned by the in-memory message list for
// the duration of a single orchestrator invocation.
type Message struct {
	Role   string
	Blocks []Block
}

// UserText builds a single-text-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// AssistantText builds a single-text-block assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []Block{TextBlock(text)}}
}

// ToolUses returns the tool_use blocks of a message in emitted order.
func (m Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Kind == KindToolUse {
			out = append(out, b)
		}
	}
	return out
}

// JoinedText concatenates the message's text blocks, newline-joined.
func (m Message) JoinedText() string {
	joined := ""
	for _, b := range m.Blocks {
		if b.Kind != KindText {
			continue
		}
		if joined != "" {
			joined += "\n"
		}
		joined += b.Text
	}
	return joined
}

// ValidateSequence asserts the structural invariants of a conversation:
// the sequence begins with a user message, only assistant messages carry
// tool_use blocks, only user messages carry tool_result blocks, and every
// assistant message containing tool_use blocks is immediately followed by
// a user message carrying one matching tool_result per tool_use, in order.
// Role alternation is otherwise not enforced.
func ValidateSequence(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("conversation is empty")
	}
	if messages[0].Role != RoleUser {
		return fmt.Errorf("conversation must begin with a user message, got %q", messages[0].Role)
	}
	for i, m := range messages {
		for _, b := range m.Blocks {
			if b.Kind == KindToolUse && m.Role != RoleAssistant {
				return fmt.Errorf("message[%d] role %q cannot contain tool_use blocks", i, m.Role)
			}
			if b.Kind == KindToolResult && m.Role != RoleUser {
				return fmt.Errorf("message[%d] role %q cannot contain tool_result blocks", i, m.Role)
			}
		}
		uses := m.ToolUses()
		if len(uses) == 0 {
			continue
		}
		if i+1 >= len(messages) {
			return fmt.Errorf("message[%d] requests tools but has no following result turn", i)
		}
		next := messages[i+1]
		if next.Role != RoleUser {
			return fmt.Errorf("message[%d] must be followed by a user result turn, got %q", i, next.Role)
		}
		var results []Block
		for _, b := range next.Blocks {
			if b.Kind == KindToolResult {
				results = append(results, b)
			}
		}
		if len(results) != len(uses) {
			return fmt.Errorf("message[%d]: %d tool_use blocks but %d tool_result blocks follow",
				i, len(uses), len(results))
		}
		for j := range uses {
			if results[j].ToolUseID != uses[j].ToolUseID {
				return fmt.Errorf("message[%d]: result[%d] id %q does not echo request id %q",
					i, j, results[j].ToolUseID, uses[j].ToolUseID)
			}
		}
	}
	return nil
}
