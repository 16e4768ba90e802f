package dispatch

import (
	"fmt"
	"strings"

	"github.com/pathakanu/lunchbot/internal/action"
	"github.com/pathakanu/lunchbot/internal/feed"
	"github.com/pathakanu/lunchbot/internal/model"
	"github.com/pathakanu/lunchbot/internal/reaction"
	"github.com/pathakanu/lunchbot/internal/transport"
	"github.com/slack-go/slack"
)

// View is everything shown on a menu message.
type View struct {
	Menu    *model.MenuRecord
	Counts  reaction.Counts
	Reviews []model.ReviewRecord
	// StaleDays is how many days old the menu was at first send. Zero or
	// negative hides the notice.
	StaleDays int
}

// Render builds the message for v.
func Render(v View) transport.Message {
	body := menuBody(v.Menu)
	text := body
	notice := staleNotice(v.StaleDays)
	if notice != "" {
		text += "\n\n" + notice
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil),
	}
	if notice != "" {
		blocks = append(blocks, slack.NewContextBlock("stale_notice",
			slack.NewTextBlockObject(slack.MarkdownType, notice, false, false)))
	}
	if len(v.Reviews) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, reviewsText(v.Reviews), false, false), nil, nil))
	}

	menuID := v.Menu.ID
	buttons := make([]slack.BlockElement, 0, len(model.Sentiments)+2)
	for _, s := range model.Sentiments {
		label := fmt.Sprintf("%s %s %d", s.Label(), s.Emoji(), v.Counts[s])
		buttons = append(buttons, slack.NewButtonBlockElement(
			action.ReactID(menuID, s),
			fmt.Sprintf("%d:%s", menuID, s),
			slack.NewTextBlockObject(slack.PlainTextType, label, true, false),
		))
	}
	buttons = append(buttons,
		slack.NewButtonBlockElement(action.BoardID(menuID), fmt.Sprint(menuID),
			slack.NewTextBlockObject(slack.PlainTextType, "👀 누가 눌렀지?", true, false)),
		slack.NewButtonBlockElement(action.ReviewID(menuID), fmt.Sprint(menuID),
			slack.NewTextBlockObject(slack.PlainTextType, "✍️ 리뷰 쓰기", true, false)),
	)

	blocks = append(blocks,
		slack.NewActionBlock("menu_actions", buttons...),
		slack.NewDividerBlock(),
		slack.NewActionBlock("feedback_actions",
			slack.NewButtonBlockElement(action.FeedbackID, "",
				slack.NewTextBlockObject(slack.PlainTextType, "🛠️ 고장신고/기능제안", true, false))),
	)

	return transport.Message{Text: text, Blocks: blocks}
}

func menuBody(menu *model.MenuRecord) string {
	content := feed.FormatMenuContent(menu.RawText)
	if content == "" {
		// Manually inserted menus may carry no icons to split on.
		content = strings.TrimSpace(menu.RawText)
	}
	return fmt.Sprintf("🍽️ *%s 점심 메뉴* 🍽️\n\n%s", menu.DateLabel, content)
}

func staleNotice(days int) string {
	if days <= 0 {
		return ""
	}
	return fmt.Sprintf("⚠️ %s 메뉴예요. 오늘 메뉴는 아직 올라오지 않았어요.", relativeDay(days))
}

func relativeDay(days int) string {
	switch days {
	case 1:
		return "어제"
	case 2:
		return "그제"
	case 3:
		return "엊그제"
	}
	return fmt.Sprintf("%d일 전", days)
}

func reviewsText(reviews []model.ReviewRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💬 *리뷰 %d개*", len(reviews))
	for _, r := range reviews {
		content := strings.Join(strings.Fields(r.Content), " ")
		fmt.Fprintf(&sb, "\n> <@%s> %s", r.UserID, content)
	}
	return sb.String()
}
