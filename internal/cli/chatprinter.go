package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/chat"
)

var chatLabel = color.New(color.FgHiMagenta, color.Bold)
var staffColor = color.New(color.FgHiWhite)
var mediaColor = color.New(color.FgHiWhite, color.Faint)

// Predefined palette of distinct colors for chats
var colorPalette = []*color.Color{
	color.New(color.FgGreen),
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
}

// Message types other than text carry a file path in msg.
const textMessage = 0

// chatPrinter renders a stream of chat messages, giving each chat its own color.
type chatPrinter struct {
	w          io.Writer
	staffID    int64
	chatColors map[int64]*color.Color
	lastChat   int64
}

func newChatPrinter(w io.Writer, staffID int64) *chatPrinter {
	return &chatPrinter{w: w, staffID: staffID, chatColors: make(map[int64]*color.Color)}
}

func (p *chatPrinter) colorFor(chatID int64) *color.Color {
	c := p.chatColors[chatID]
	if c == nil {
		c = colorPalette[len(p.chatColors)%len(colorPalette)]
		p.chatColors[chatID] = c
	}
	return c
}

// Print writes one live message.
func (p *chatPrinter) Print(m chat.Message) {
	if m.ChatID != p.lastChat {
		chatLabel.Fprintf(p.w, "\nChat %d\n", m.ChatID)
		p.lastChat = m.ChatID
	}
	p.line(m.Sent.Time, m.SenderID == p.staffID && p.staffID != 0, p.colorFor(m.ChatID), m.MsgType, m.Msg)
}

// PrintHistory writes stored messages of one chat.
func (p *chatPrinter) PrintHistory(chatID int64, msgs []api.ChatMessage) {
	c := p.colorFor(chatID)
	for _, m := range msgs {
		p.line(m.Sent.Time, m.IsMe, c, m.MsgType, m.Msg)
	}
}

func (p *chatPrinter) line(sent time.Time, mine bool, c *color.Color, msgType int, msg string) {
	stamp := "--:--:--"
	if !sent.IsZero() {
		stamp = sent.Local().Format("15:04:05")
	}
	fmt.Fprintf(p.w, "  [%s] ", stamp)
	if mine {
		staffColor.Fprint(p.w, "support")
	} else {
		c.Fprint(p.w, "user   ")
	}
	if msgType != textMessage {
		fmt.Fprint(p.w, " ")
		mediaColor.Fprintf(p.w, "[file] %s\n", msg)
		return
	}
	fmt.Fprint(p.w, " ▶ ")
	fmt.Fprintln(p.w, indentMultiline(msg, "                       "))
}

// indentMultiline adds indentation to all lines except the first in a multiline string
func indentMultiline(text, indent string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return text
	}
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}
