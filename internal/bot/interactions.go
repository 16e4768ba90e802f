package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pathakanu/lunchbot/internal/action"
	"github.com/pathakanu/lunchbot/internal/model"
	"github.com/slack-go/slack"
)

const (
	reviewCallbackID   = "review_modal_submit"
	feedbackCallbackID = "feedback_modal_submit"

	reviewBlockID   = "review_input"
	reviewActionID  = "review_text"
	feedbackBlockID = "feedback_input"
	feedbackInputID = "feedback_text"

	// MaxReviewLength is the longest review the editor accepts.
	MaxReviewLength = 200
)

// viewMeta travels in a modal's private metadata.
type viewMeta struct {
	MenuID    uint   `json:"menu_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

func (m viewMeta) encode() string {
	raw, _ := json.Marshal(m)
	return string(raw)
}

func decodeMeta(raw string) viewMeta {
	var m viewMeta
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

// handleInteraction receives button clicks and modal submissions.
func (b *Bot) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &cb); err != nil {
		b.logger.Warnw("interaction: bad payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		w.WriteHeader(http.StatusOK)
		for _, ba := range cb.ActionCallback.BlockActions {
			act, err := action.Decode(ba.ActionID)
			if err != nil {
				b.logger.Warnw("interaction: unknown action", "action_id", ba.ActionID, "error", err)
				continue
			}
			b.background(func(ctx context.Context) { b.handleAction(ctx, cb, act) })
		}
	case slack.InteractionTypeViewSubmission:
		b.handleSubmission(w, cb)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// handleAction dispatches a decoded button click.
func (b *Bot) handleAction(ctx context.Context, cb slack.InteractionCallback, act action.Action) {
	channelID := callbackChannel(cb)
	userID := cb.User.ID

	switch a := act.(type) {
	case action.React:
		b.react(ctx, channelID, userID, a)
	case action.ReactionBoard:
		b.openReactionBoard(ctx, cb.TriggerID, a.MenuID)
	case action.OpenReview:
		b.openReviewModal(ctx, cb.TriggerID, channelID, userID, a.MenuID)
	case action.DeleteReview:
		b.deleteReview(ctx, channelID, userID, a.MenuID)
	case action.OpenFeedback:
		b.openFeedbackModal(ctx, cb.TriggerID, channelID)
	}
}

// callbackChannel finds the channel a click came from. Clicks inside a
// modal carry it in the view metadata instead.
func callbackChannel(cb slack.InteractionCallback) string {
	if cb.Channel.ID != "" {
		return cb.Channel.ID
	}
	if cb.Container.ChannelID != "" {
		return cb.Container.ChannelID
	}
	return decodeMeta(cb.View.PrivateMetadata).ChannelID
}

func (b *Bot) react(ctx context.Context, channelID, userID string, a action.React) {
	b.logger.Infow("reaction", "user", userID, "menu", a.MenuID, "sentiment", a.Sentiment)
	if err := b.reactions.Set(ctx, a.MenuID, userID, a.Sentiment); err != nil {
		b.logger.Errorw("reaction: save failed", "menu", a.MenuID, "user", userID, "error", err)
		b.toasts.Notify(ctx, channelID, userID, "❌ 반응을 저장하지 못했어요. 다시 눌러주세요.")
		return
	}
	b.toasts.Notify(ctx, channelID, userID, a.Sentiment.Emoji()+" 선택했어요!")
	b.refresh(ctx, a.MenuID)
}

func (b *Bot) refresh(ctx context.Context, menuID uint) {
	if err := b.dispatcher.RefreshAll(ctx, menuID); err != nil {
		b.logger.Errorw("refresh: failed", "menu", menuID, "error", err)
	}
}

func (b *Bot) openReactionBoard(ctx context.Context, triggerID string, menuID uint) {
	users, err := b.reactions.UsersBySentiment(ctx, menuID)
	if err != nil {
		b.logger.Errorw("board: load reactions", "menu", menuID, "error", err)
		return
	}

	blocks := make([]slack.Block, 0, len(model.Sentiments))
	for _, s := range model.Sentiments {
		ids := users[s]
		who := "아직 없어요"
		if len(ids) > 0 {
			mentions := make([]string, len(ids))
			for i, id := range ids {
				mentions[i] = "<@" + id + ">"
			}
			who = strings.Join(mentions, ", ")
		}
		text := fmt.Sprintf("%s *%s* (%d)\n%s", s.Emoji(), s.Label(), len(ids), who)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil))
	}

	view := slack.ModalViewRequest{
		Type:   slack.VTModal,
		Title:  slack.NewTextBlockObject(slack.PlainTextType, "누가 눌렀지?", true, false),
		Close:  slack.NewTextBlockObject(slack.PlainTextType, "닫기", false, false),
		Blocks: slack.Blocks{BlockSet: blocks},
	}
	if _, err := b.views.OpenViewContext(ctx, triggerID, view); err != nil {
		b.logger.Errorw("board: open modal", "menu", menuID, "error", err)
	}
}

func (b *Bot) openReviewModal(ctx context.Context, triggerID, channelID, userID string, menuID uint) {
	existing, isEdit, err := b.reviews.Get(ctx, menuID, userID)
	if err != nil {
		b.logger.Errorw("review: load existing", "menu", menuID, "user", userID, "error", err)
		return
	}

	input := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "메뉴에 대한 솔직한 리뷰를 남겨주세요...", false, false),
		reviewActionID,
	)
	input.Multiline = true
	input.MaxLength = MaxReviewLength
	title := "리뷰 쓰기"
	if isEdit {
		input.InitialValue = existing.Content
		title = "리뷰 수정"
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			"오늘 메뉴에 대한 리뷰를 남겨주세요! 다른 분들에게 도움이 됩니다 :yum:", false, false), nil, nil),
		slack.NewInputBlock(reviewBlockID,
			slack.NewTextBlockObject(slack.PlainTextType, "리뷰", false, false), nil, input),
	}
	if isEdit {
		blocks = append(blocks, slack.NewActionBlock("review_actions",
			slack.NewButtonBlockElement(action.DeleteReviewID(menuID), fmt.Sprint(menuID),
				slack.NewTextBlockObject(slack.PlainTextType, "🗑️ 리뷰 삭제", true, false)).
				WithStyle(slack.StyleDanger)))
	}

	view := slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      reviewCallbackID,
		PrivateMetadata: viewMeta{MenuID: menuID, ChannelID: channelID}.encode(),
		Title:           slack.NewTextBlockObject(slack.PlainTextType, title, false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "저장", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "취소", false, false),
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
	if _, err := b.views.OpenViewContext(ctx, triggerID, view); err != nil {
		b.logger.Errorw("review: open modal", "menu", menuID, "error", err)
	}
}

func (b *Bot) deleteReview(ctx context.Context, channelID, userID string, menuID uint) {
	if err := b.reviews.Delete(ctx, menuID, userID); err != nil {
		b.logger.Errorw("review: delete failed", "menu", menuID, "user", userID, "error", err)
		b.toasts.Notify(ctx, channelID, userID, "❌ 리뷰를 삭제하지 못했어요.")
		return
	}
	b.refresh(ctx, menuID)
	b.toasts.Notify(ctx, channelID, userID, "🗑️ 리뷰를 삭제했어요.")
}

func (b *Bot) openFeedbackModal(ctx context.Context, triggerID, channelID string) {
	input := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "내용을 입력해주세요...", false, false),
		feedbackInputID,
	)
	input.Multiline = true

	view := slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      feedbackCallbackID,
		PrivateMetadata: viewMeta{ChannelID: channelID}.encode(),
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "피드백 보내기", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "보내기", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "취소", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(feedbackBlockID,
				slack.NewTextBlockObject(slack.PlainTextType, "고장신고 또는 기능제안", false, false), nil, input),
		}},
	}
	if _, err := b.views.OpenViewContext(ctx, triggerID, view); err != nil {
		b.logger.Errorw("feedback: open modal", "error", err)
	}
}

// handleSubmission validates a modal submission synchronously, so field
// errors can be shown inline, then does the work in the background.
func (b *Bot) handleSubmission(w http.ResponseWriter, cb slack.InteractionCallback) {
	meta := decodeMeta(cb.View.PrivateMetadata)
	userID := cb.User.ID

	switch cb.View.CallbackID {
	case reviewCallbackID:
		content := strings.TrimSpace(stateValue(cb.View.State, reviewBlockID, reviewActionID))
		if content == "" {
			b.writeJSON(w, slack.NewErrorsViewSubmissionResponse(map[string]string{
				reviewBlockID: "리뷰 내용을 입력해주세요.",
			}))
			return
		}
		w.WriteHeader(http.StatusOK)
		b.background(func(ctx context.Context) { b.saveReview(ctx, meta, userID, content) })

	case feedbackCallbackID:
		text := strings.TrimSpace(stateValue(cb.View.State, feedbackBlockID, feedbackInputID))
		if text == "" {
			b.writeJSON(w, slack.NewErrorsViewSubmissionResponse(map[string]string{
				feedbackBlockID: "내용을 입력해주세요.",
			}))
			return
		}
		w.WriteHeader(http.StatusOK)
		fb := Feedback{
			UserID:    userID,
			UserName:  cb.User.Name,
			ChannelID: meta.ChannelID,
			Text:      text,
			At:        b.clock.Now(),
		}
		b.background(func(ctx context.Context) { b.submitFeedback(ctx, fb) })

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (b *Bot) saveReview(ctx context.Context, meta viewMeta, userID, content string) {
	if err := b.reviews.Save(ctx, meta.MenuID, userID, content); err != nil {
		b.logger.Errorw("review: save failed", "menu", meta.MenuID, "user", userID, "error", err)
		b.notifyIfChannel(ctx, meta.ChannelID, userID, "❌ 리뷰 저장에 실패했습니다. 다시 시도해주세요.")
		return
	}
	b.logger.Infow("review: saved", "menu", meta.MenuID, "user", userID)
	b.refresh(ctx, meta.MenuID)
	b.notifyIfChannel(ctx, meta.ChannelID, userID, "✅ 리뷰가 저장되었습니다!")
}

func (b *Bot) submitFeedback(ctx context.Context, fb Feedback) {
	if err := b.feedback.Submit(ctx, fb); err != nil {
		b.logger.Errorw("feedback: submit failed", "user", fb.UserID, "error", err)
		b.notifyIfChannel(ctx, fb.ChannelID, fb.UserID, "❌ 피드백 등록에 실패했습니다. 나중에 다시 시도해주세요.")
		return
	}
	b.notifyIfChannel(ctx, fb.ChannelID, fb.UserID, "✅ 피드백이 등록되었습니다!")
}

func (b *Bot) notifyIfChannel(ctx context.Context, channelID, userID, text string) {
	if channelID == "" {
		return
	}
	b.toasts.Notify(ctx, channelID, userID, text)
}

func stateValue(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	return state.Values[blockID][actionID].Value
}
