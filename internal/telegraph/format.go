package telegraph

import (
	"fmt"
	"strings"

	"github.com/zulandar/flowguard/internal/brief"
	"github.com/zulandar/flowguard/internal/models"
	"github.com/zulandar/flowguard/internal/reflection"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// maxListed caps how many commitments a brief block names.
const maxListed = 5

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// blockSeverity picks how loudly a brief block is rendered.
func blockSeverity(b brief.Block) string {
	if b.Total == 0 {
		return "info"
	}
	switch b.Key {
	case brief.AtRisk, brief.Blocked:
		return "error"
	case brief.Recurrent:
		return "warning"
	case brief.RecentCompleted:
		return "success"
	default:
		return "info"
	}
}

// feedSeverity maps feed severities onto chat severities.
func feedSeverity(s reflection.Severity) string {
	switch s {
	case reflection.SeverityHigh:
		return "error"
	case reflection.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

// FormatBrief renders the weekly brief, one attachment per block. Titles
// are resolved from collection.
func FormatBrief(summary brief.Summary, collection []models.Commitment) OutboundMessage {
	titles := make(map[string]string, len(collection))
	for _, c := range collection {
		titles[c.ID] = c.Titulo
	}

	msg := OutboundMessage{
		Title: fmt.Sprintf("Brief semanal %s", summary.GeneratedAt.Format("02/01/2006")),
	}
	var counts []string
	for _, def := range brief.Definitions {
		b := summary.Block(def.Key)
		counts = append(counts, fmt.Sprintf("%s: %d", def.Label, b.Total))
		severity := blockSeverity(b)
		msg.Events = append(msg.Events, FormattedEvent{
			Title:    fmt.Sprintf("%s (%d)", def.Label, b.Total),
			Body:     listCommitments(b.IDs, titles),
			Severity: severity,
			Color:    severityColor(severity),
			Fields:   []Field{{Name: "Critério", Value: def.Description}},
		})
	}
	msg.Text = strings.Join(counts, " | ")
	return msg
}

func listCommitments(ids []string, titles map[string]string) string {
	if len(ids) == 0 {
		return "Nenhum compromisso."
	}
	var lines []string
	for i, id := range ids {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("… e mais %d", len(ids)-maxListed))
			break
		}
		lines = append(lines, fmt.Sprintf("• #%s %s", id, titles[id]))
	}
	return strings.Join(lines, "\n")
}

// FormatFeedItem renders one reflection item.
func FormatFeedItem(it reflection.Item) FormattedEvent {
	severity := feedSeverity(it.Severity)
	fields := []Field{
		{Name: "Severidade", Value: string(it.Severity), Short: true},
		{Name: "Score", Value: fmt.Sprintf("%d", it.Score), Short: true},
	}
	if it.RelatedProject != "" {
		fields = append(fields, Field{Name: "Projeto", Value: it.RelatedProject, Short: true})
	}
	if len(it.RelatedCommitmentIDs) > 0 {
		fields = append(fields, Field{Name: "Compromissos", Value: "#" + strings.Join(it.RelatedCommitmentIDs, ", #"), Short: true})
	}
	return FormattedEvent{
		Title:    it.Message,
		Body:     it.Context + "\n" + it.Why,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatFeed renders a feed as a single message.
func FormatFeed(feed reflection.Feed) OutboundMessage {
	msg := OutboundMessage{
		Title: fmt.Sprintf("Reflexões %s", feed.GeneratedAt.Format("02/01/2006")),
		Text:  fmt.Sprintf("%d reflexão(ões) para hoje.", len(feed.Items)),
	}
	for _, it := range feed.Items {
		msg.Events = append(msg.Events, FormatFeedItem(it))
	}
	return msg
}
