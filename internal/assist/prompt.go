package assist

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"inboxai/internal/address"
)

func replyPrompt(req ReplyRequest) string {
	var b strings.Builder
	b.WriteString("You are a professional email assistant. Write a reply to the email thread below.\n\n")
	fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	fmt.Fprintf(&b, "You are writing on behalf of: %s\n\n", req.Self)
	b.WriteString("Thread, oldest first:\n")
	for i, m := range req.Messages {
		fmt.Fprintf(&b, "\n--- Message %d ---\n", i+1)
		fmt.Fprintf(&b, "From: %s\n", senderLabel(m, req.Self))
		fmt.Fprintf(&b, "To: %s\n", m.To)
		body := m.Main
		if body == "" {
			body = m.Body
		}
		fmt.Fprintf(&b, "Content:\n%s\n", htmlToText(body))
	}

	latest := req.Messages[len(req.Messages)-1]
	b.WriteString("\nInstructions:\n")
	b.WriteString("- Reply to the most recent message, keeping the context of the whole thread.\n")
	b.WriteString("- Match the tone of the thread and stay concise and professional.\n")
	b.WriteString("- Return only the complete, ready-to-send reply body. No subject line, no placeholders, no commentary.\n")
	fmt.Fprintf(&b, "- If the most recent message was sent by %s, do not write a reply; answer only that the latest message is your own and no reply is needed.\n", req.Self)
	if address.IsSelf(latest.From, req.Self) {
		b.WriteString("- Note: the most recent message was sent by you.\n")
	}
	return b.String()
}

func improvePrompt(subject, content string) string {
	var b strings.Builder
	b.WriteString("You are a professional email editor. Improve the draft below: fix grammar, tighten wording and keep the author's intent and language.\n\n")
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Content:\n%s\n\n", htmlToText(content))
	b.WriteString("Answer using exactly this format and nothing else:\n")
	b.WriteString("SUBJECT: <improved subject>\n")
	b.WriteString("CONTENT:\n<improved body>\n")
	return b.String()
}

// htmlToText flattens an html fragment into readable plain text.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div":
				b.WriteByte('\n')
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
