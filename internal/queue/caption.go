package queue

import (
	"strings"
	"time"

	"github.com/hparsa/relaycast/internal/core/domain"
)

// DefaultTemplate is used when neither the target nor its originating
// channel carries a caption template.
const DefaultTemplate = "{{title}}"

// captionDateFormat is how {{date}} renders; the value is the processing
// moment, not the enqueue moment.
const captionDateFormat = "2006-01-02 15:04"

// CaptionContext carries the values substituted into a caption template.
type CaptionContext struct {
	Title    string
	Link     string
	Source   string
	Date     time.Time
	Hashtags []string
}

// Render substitutes the closed token set into template. Every occurrence
// of a known token is replaced literally; unknown or malformed tokens pass
// through unchanged. An empty template means DefaultTemplate.
func Render(template string, ctx CaptionContext) string {
	if template == "" {
		template = DefaultTemplate
	}

	replacer := strings.NewReplacer(
		"{{title}}", ctx.Title,
		"{{link}}", ctx.Link,
		"{{source}}", ctx.Source,
		"{{date}}", ctx.Date.Format(captionDateFormat),
		"{{hashtags}}", strings.Join(ctx.Hashtags, " "),
	)

	return replacer.Replace(template)
}

// TemplateFor resolves the caption template for a target: the target's own
// override wins, then the stored template of the originating channel —
// matched by platform and chat address, since targets are snapshots and do
// not hold a living channel id — then DefaultTemplate.
func TemplateFor(target domain.QueueTarget, channels []domain.Channel) string {
	if target.CaptionTemplate != "" {
		return target.CaptionTemplate
	}

	for _, ch := range channels {
		if ch.Platform == target.Platform && ch.ChatAddress == target.ChatAddress && ch.CaptionTemplate != "" {
			return ch.CaptionTemplate
		}
	}

	return DefaultTemplate
}
