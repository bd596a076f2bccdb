package templates

import (
	"context"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/a-h/templ"
)

// ErrorAlert shows a user-facing error with its suggested action and code.
func ErrorAlert(msg core.UserMessage) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<div class="alert" role="alert"><strong>`)
		h.text(msg.Message)
		h.raw(`</strong>`)
		if msg.Column != "" {
			h.raw(` <span>(column `)
			h.text(msg.Column)
			h.raw(`)</span>`)
		}
		if msg.Action != "" {
			h.raw(`<p>`)
			h.text(msg.Action)
			h.raw(`</p>`)
		}
		if msg.Code != "" {
			h.raw(`<div class="code">Reference: `)
			h.text(msg.Code)
			h.raw(`</div>`)
		}
		h.raw(`<p><a href="/">Back to upload</a></p></div>`)
	})
}
