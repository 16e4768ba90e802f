package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/menu"
	"github.com/pathakanu/lunchbot/internal/subscription"
	"github.com/slack-go/slack"
)

const helpText = "*점심 요정 사용법:*\n" +
	"• `/lunch now` - 오늘 메뉴를 지금 이 채널에 보내기\n" +
	"• `/lunch subscribe HH:mm` - 점심 알림 구독 (예: 11:30)\n" +
	"• `/lunch subscribe list` - 구독 목록 확인\n" +
	"• `/lunch unsubscribe` - 구독 취소\n" +
	"• `/lunch feed <메뉴 전문>` - 피드에 안 올라온 날 메뉴 직접 등록"

// handleCommand answers the /lunch slash command.
func (b *Bot) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		b.logger.Warnw("command: parse error", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	reply := b.runCommand(r.Context(), cmd.ChannelID, cmd.UserID, cmd.Text)
	b.writeJSON(w, &slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: reply})
}

// runCommand executes one /lunch subcommand and returns the reply shown to
// the invoking user.
func (b *Bot) runCommand(ctx context.Context, channelID, userID, text string) string {
	text = strings.TrimSpace(text)
	args := strings.Fields(text)
	if len(args) == 0 {
		return helpText
	}

	switch strings.ToLower(args[0]) {
	case "now":
		b.background(func(ctx context.Context) { b.sendNow(ctx, channelID, userID) })
		return "🍽️ 오늘 메뉴를 가져오고 있어요..."
	case "subscribe":
		if len(args) > 1 && strings.EqualFold(args[1], "list") {
			return b.listSubscriptions(ctx)
		}
		if len(args) < 2 {
			return "사용법: `/lunch subscribe HH:mm` (예: `/lunch subscribe 11:30`)"
		}
		return b.subscribe(ctx, channelID, args[1])
	case "list":
		return b.listSubscriptions(ctx)
	case "unsubscribe":
		return b.unsubscribe(ctx, channelID)
	case "feed":
		return b.feedManual(ctx, strings.TrimSpace(text[len(args[0]):]))
	default:
		return helpText
	}
}

func (b *Bot) subscribe(ctx context.Context, channelID, notifyTime string) string {
	if err := subscription.ValidateTime(notifyTime); err != nil {
		if errors.Is(err, subscription.ErrTimeRange) {
			return "올바른 시간 형식이 아닙니다. (00:00 ~ 23:59)"
		}
		return "사용법: `/lunch subscribe HH:mm` (예: `/lunch subscribe 11:30`)"
	}

	created, err := b.subs.Subscribe(ctx, channelID, notifyTime)
	if err != nil {
		b.logger.Errorw("command: subscribe", "channel", channelID, "error", err)
		return "구독 처리 중 오류가 발생했습니다."
	}
	if created {
		return fmt.Sprintf("이 채널이 점심 알림에 구독되었습니다. 매일 평일 %s에 메뉴를 알려드릴게요!", notifyTime)
	}
	return fmt.Sprintf("알림 시간이 %s으로 변경되었습니다.", notifyTime)
}

func (b *Bot) unsubscribe(ctx context.Context, channelID string) string {
	removed, err := b.subs.Unsubscribe(ctx, channelID)
	if err != nil {
		b.logger.Errorw("command: unsubscribe", "channel", channelID, "error", err)
		return "구독 취소 중 오류가 발생했습니다."
	}
	if !removed {
		return "이 채널은 구독 중이 아닙니다."
	}
	return "이 채널의 점심 알림 구독이 취소되었습니다."
}

func (b *Bot) listSubscriptions(ctx context.Context) string {
	subs, err := b.subs.List(ctx)
	if err != nil {
		b.logger.Errorw("command: list subscriptions", "error", err)
		return "목록 조회 중 오류가 발생했습니다."
	}
	if len(subs) == 0 {
		return "구독 중인 채널이 없습니다."
	}

	var sb strings.Builder
	sb.WriteString("*구독 목록:*")
	for _, s := range subs {
		fmt.Fprintf(&sb, "\n• <#%s> - %s", s.ChannelID, s.NotifyTime)
	}
	return sb.String()
}

func (b *Bot) feedManual(ctx context.Context, fullText string) string {
	if fullText == "" {
		return "사용법: `/lunch feed <메뉴 전문>` (본문에 `01월12일` 같은 날짜가 있어야 해요)"
	}

	record, err := b.menus.InsertManual(ctx, fullText)
	switch {
	case errors.Is(err, menu.ErrNoDateLabel):
		return "메뉴 날짜를 찾지 못했어요. 본문에 `01월12일` 같은 날짜를 넣어주세요."
	case errors.Is(err, menu.ErrDuplicate):
		label, _ := clock.FindDateLabel(fullText)
		return fmt.Sprintf("이미 %s 메뉴가 등록되어 있어요.", label)
	case err != nil:
		b.logger.Errorw("command: manual feed", "error", err)
		return "메뉴 등록 중 오류가 발생했습니다."
	}
	return fmt.Sprintf("📝 %s 메뉴를 등록했어요.", record.DateLabel)
}

// sendNow posts today's menu to the channel right away, unless it is
// already there.
func (b *Bot) sendNow(ctx context.Context, channelID, userID string) {
	today := b.clock.DateLabel(b.clock.Now())
	record, err := b.menus.GetOrFetch(ctx, today)
	if errors.Is(err, menu.ErrNotFound) {
		b.toasts.Notify(ctx, channelID, userID, "😢 아직 올라온 메뉴가 없어요.")
		return
	}
	if err != nil {
		b.logger.Errorw("command: now", "channel", channelID, "error", err)
		b.toasts.Notify(ctx, channelID, userID, "❌ 메뉴를 가져오지 못했어요. 잠시 후 다시 시도해주세요.")
		return
	}

	sent, err := b.dispatcher.Send(ctx, record, channelID)
	if err != nil {
		b.logger.Errorw("command: now send", "channel", channelID, "menu", record.ID, "error", err)
		b.toasts.Notify(ctx, channelID, userID, "❌ 메뉴를 보내지 못했어요.")
		return
	}
	if !sent {
		b.toasts.Notify(ctx, channelID, userID, fmt.Sprintf("이미 이 채널에 %s 메뉴를 보냈어요.", record.DateLabel))
	}
}
