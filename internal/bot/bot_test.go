package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pathakanu/lunchbot/internal/action"
	"github.com/pathakanu/lunchbot/internal/clock"
	"github.com/pathakanu/lunchbot/internal/database/dbtest"
	"github.com/pathakanu/lunchbot/internal/dispatch"
	"github.com/pathakanu/lunchbot/internal/feed"
	"github.com/pathakanu/lunchbot/internal/menu"
	"github.com/pathakanu/lunchbot/internal/model"
	"github.com/pathakanu/lunchbot/internal/reaction"
	"github.com/pathakanu/lunchbot/internal/review"
	"github.com/pathakanu/lunchbot/internal/subscription"
	"github.com/pathakanu/lunchbot/internal/toast"
	"github.com/pathakanu/lunchbot/internal/transport"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ephemeral struct {
	channelID string
	userID    string
	text      string
}

type fakeMessenger struct {
	mu         sync.Mutex
	seq        int
	sends      []transport.Message
	updates    []transport.Message
	ephemerals []ephemeral
}

func (f *fakeMessenger) Send(ctx context.Context, channelID string, msg transport.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.sends = append(f.sends, msg)
	return fmt.Sprintf("ts-%d", f.seq), nil
}

func (f *fakeMessenger) Update(ctx context.Context, channelID, handle string, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, msg)
	return nil
}

func (f *fakeMessenger) SendEphemeral(ctx context.Context, channelID, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, ephemeral{channelID: channelID, userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) lastEphemeral(t *testing.T) ephemeral {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.ephemerals)
	return f.ephemerals[len(f.ephemerals)-1]
}

type fakeViews struct {
	mu     sync.Mutex
	opened []slack.ModalViewRequest
}

func (f *fakeViews) OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, view)
	return &slack.ViewResponse{}, nil
}

type stubFetcher struct {
	menu *feed.Menu
}

func (s *stubFetcher) FetchMenu(ctx context.Context, dateLabel string) (*feed.Menu, bool) {
	if s.menu == nil {
		return nil, false
	}
	m := *s.menu
	return &m, true
}

type recordingSink struct {
	got []Feedback
}

func (r *recordingSink) Submit(ctx context.Context, fb Feedback) error {
	r.got = append(r.got, fb)
	return nil
}

type fakeTwilio struct {
	mu     sync.Mutex
	to     []string
	bodies []string
}

func (f *fakeTwilio) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, *params.To)
	f.bodies = append(f.bodies, *params.Body)
	sid := fmt.Sprintf("SM%d", len(f.to))
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

type testBot struct {
	*Bot
	db        *gorm.DB
	messenger *fakeMessenger
	twilio    *fakeTwilio
	views     *fakeViews
	fetcher   *stubFetcher
	sink      *recordingSink
}

func newTestBot(t *testing.T, secret string) *testBot {
	t.Helper()
	db := dbtest.Open(t)
	log := zap.NewNop().Sugar()
	now := time.Date(2026, time.January, 9, 11, 30, 0, 0, time.FixedZone("KST", 9*3600))
	clk := clock.New(clock.DefaultOffsetHours).WithNow(func() time.Time { return now })

	tb := &testBot{
		db:        db,
		messenger: &fakeMessenger{},
		twilio:    &fakeTwilio{},
		views:     &fakeViews{},
		fetcher:   &stubFetcher{menu: &feed.Menu{DateLabel: "01월09일", Content: "🍖 제육볶음 🍚 흑미밥"}},
		sink:      &recordingSink{},
	}
	menus := menu.New(db, tb.fetcher, log)
	reactions := reaction.New(db)
	reviews := review.New(db)
	messenger := transport.NewRouter(tb.messenger).
		Route(transport.WhatsAppPrefix, transport.NewWhatsAppWithAPI(tb.twilio, "+14155238886"))

	tb.Bot = New(Deps{
		SigningSecret: secret,
		Clock:         clk,
		Menus:         menus,
		Subscriptions: subscription.New(db),
		Reactions:     reactions,
		Reviews:       reviews,
		Dispatcher:    dispatch.NewDispatcher(db, menus, reactions, reviews, messenger, clk, log),
		Toasts:        toast.New(messenger, log),
		Views:         tb.views,
		Feedback:      tb.sink,
		Logger:        log,
	})
	tb.async = func(f func()) { f() }
	return tb
}

// dispatchedMenu stores today's menu and posts it to channelID.
func (tb *testBot) dispatchedMenu(t *testing.T, channelID string) *model.MenuRecord {
	t.Helper()
	ctx := context.Background()
	record, err := tb.menus.GetOrFetch(ctx, "01월09일")
	require.NoError(t, err)
	sent, err := tb.dispatcher.Send(ctx, record, channelID)
	require.NoError(t, err)
	require.True(t, sent)
	return record
}

func (tb *testBot) postInteraction(t *testing.T, payload string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"payload": {payload}}
	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	tb.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubscribeCommand(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	ctx := context.Background()

	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "subscribe"), "사용법")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "subscribe 1130"), "사용법")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "subscribe 24:00"), "00:00 ~ 23:59")

	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "subscribe 11:30"), "구독되었습니다")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "subscribe 12:00"), "12:00으로 변경")

	list := tb.runCommand(ctx, "C1", "U1", "subscribe list")
	require.Contains(t, list, "<#C1> - 12:00")
	require.Equal(t, list, tb.runCommand(ctx, "C2", "U1", "list"))
}

func TestUnsubscribeCommand(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	ctx := context.Background()

	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "unsubscribe"), "구독 중이 아닙니다")
	tb.runCommand(ctx, "C1", "U1", "subscribe 11:30")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "unsubscribe"), "취소되었습니다")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "list"), "구독 중인 채널이 없습니다")
}

func TestFeedCommand(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	ctx := context.Background()

	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "feed"), "사용법")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "feed 오늘은 짜장면"), "날짜를 찾지 못했어요")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "feed 01월12일(월요일) 점심메뉴 🍜 짬뽕"), "01월12일 메뉴를 등록했어요")
	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "feed 01월12일 또 등록"), "이미 01월12일 메뉴가")
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	require.Equal(t, helpText, tb.runCommand(context.Background(), "C1", "U1", ""))
	require.Equal(t, helpText, tb.runCommand(context.Background(), "C1", "U1", "dance"))
}

func TestNowCommandSendsOnce(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	ctx := context.Background()

	require.Contains(t, tb.runCommand(ctx, "C1", "U1", "now"), "가져오고 있어요")
	require.Len(t, tb.messenger.sends, 1)

	tb.runCommand(ctx, "C1", "U1", "now")
	require.Len(t, tb.messenger.sends, 1)
	require.Contains(t, tb.messenger.lastEphemeral(t).text, "이미 이 채널에 01월09일 메뉴를")
}

func TestNowCommandWithoutMenu(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	tb.fetcher.menu = nil

	tb.runCommand(context.Background(), "C1", "U1", "now")
	require.Empty(t, tb.messenger.sends)
	require.Equal(t, "😢 아직 올라온 메뉴가 없어요.", tb.messenger.lastEphemeral(t).text)
}

func TestReactInteraction(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	record := tb.dispatchedMenu(t, "C1")

	payload := fmt.Sprintf(`{
		"type": "block_actions",
		"trigger_id": "trig",
		"user": {"id": "U1", "name": "kim"},
		"channel": {"id": "C1"},
		"actions": [{"type": "button", "block_id": "menu_actions", "action_id": %q, "value": "x"}]
	}`, action.ReactID(record.ID, model.SentimentPositive))

	rec := tb.postInteraction(t, payload)
	require.Equal(t, http.StatusOK, rec.Code)

	counts, err := tb.reactions.Counts(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, 1, counts[model.SentimentPositive])

	last := tb.messenger.lastEphemeral(t)
	require.Equal(t, "C1", last.channelID)
	require.Equal(t, "😊 선택했어요!", last.text)
	require.Len(t, tb.messenger.updates, 1)
}

func TestReactionBoardListsUsers(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	record := tb.dispatchedMenu(t, "C1")
	require.NoError(t, tb.reactions.Set(context.Background(), record.ID, "U2", model.SentimentNegative))

	payload := fmt.Sprintf(`{
		"type": "block_actions",
		"trigger_id": "trig",
		"user": {"id": "U1"},
		"channel": {"id": "C1"},
		"actions": [{"type": "button", "block_id": "menu_actions", "action_id": %q}]
	}`, action.BoardID(record.ID))
	tb.postInteraction(t, payload)

	require.Len(t, tb.views.opened, 1)
	raw, err := json.Marshal(tb.views.opened[0].Blocks)
	require.NoError(t, err)
	require.Contains(t, string(raw), "<@U2>")
}

func TestOpenReviewModalPrefillsExisting(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	record := tb.dispatchedMenu(t, "C1")
	require.NoError(t, tb.reviews.Save(context.Background(), record.ID, "U1", "맛있어요"))

	payload := fmt.Sprintf(`{
		"type": "block_actions",
		"trigger_id": "trig",
		"user": {"id": "U1"},
		"channel": {"id": "C1"},
		"actions": [{"type": "button", "block_id": "menu_actions", "action_id": %q}]
	}`, action.ReviewID(record.ID))
	tb.postInteraction(t, payload)

	require.Len(t, tb.views.opened, 1)
	view := tb.views.opened[0]
	require.Equal(t, reviewCallbackID, view.CallbackID)

	meta := decodeMeta(view.PrivateMetadata)
	require.Equal(t, record.ID, meta.MenuID)
	require.Equal(t, "C1", meta.ChannelID)

	input := view.Blocks.BlockSet[1].(*slack.InputBlock).Element.(*slack.PlainTextInputBlockElement)
	require.Equal(t, "맛있어요", input.InitialValue)
	require.Equal(t, MaxReviewLength, input.MaxLength)
	require.Len(t, view.Blocks.BlockSet, 3)
}

func reviewSubmission(menuID uint, text string) string {
	meta := viewMeta{MenuID: menuID, ChannelID: "C1"}.encode()
	return fmt.Sprintf(`{
		"type": "view_submission",
		"user": {"id": "U1"},
		"view": {
			"callback_id": %q,
			"private_metadata": %q,
			"state": {"values": {%q: {%q: {"type": "plain_text_input", "value": %q}}}}
		}
	}`, reviewCallbackID, meta, reviewBlockID, reviewActionID, text)
}

func TestEmptyReviewIsRejectedInline(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	record := tb.dispatchedMenu(t, "C1")

	rec := tb.postInteraction(t, reviewSubmission(record.ID, "   "))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp slack.ViewSubmissionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, slack.RAErrors, resp.ResponseAction)
	require.Equal(t, "리뷰 내용을 입력해주세요.", resp.Errors[reviewBlockID])

	_, ok, err := tb.reviews.Get(context.Background(), record.ID, "U1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReviewSubmissionSavesAndRefreshes(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	record := tb.dispatchedMenu(t, "C1")

	rec := tb.postInteraction(t, reviewSubmission(record.ID, "  국물이 진해요  "))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())

	got, ok, err := tb.reviews.Get(context.Background(), record.ID, "U1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "국물이 진해요", got.Content)

	require.Len(t, tb.messenger.updates, 1)
	raw, err := json.Marshal(tb.messenger.updates[0].Blocks)
	require.NoError(t, err)
	require.Contains(t, string(raw), "국물이 진해요")
	require.Equal(t, "✅ 리뷰가 저장되었습니다!", tb.messenger.lastEphemeral(t).text)
}

func TestDeleteReviewFromModal(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	record := tb.dispatchedMenu(t, "C1")
	require.NoError(t, tb.reviews.Save(context.Background(), record.ID, "U1", "별로"))

	meta := viewMeta{MenuID: record.ID, ChannelID: "C1"}.encode()
	payload := fmt.Sprintf(`{
		"type": "block_actions",
		"user": {"id": "U1"},
		"container": {"type": "view", "view_id": "V1"},
		"view": {"callback_id": %q, "private_metadata": %q},
		"actions": [{"type": "button", "block_id": "review_actions", "action_id": %q}]
	}`, reviewCallbackID, meta, action.DeleteReviewID(record.ID))
	tb.postInteraction(t, payload)

	_, ok, err := tb.reviews.Get(context.Background(), record.ID, "U1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "C1", tb.messenger.lastEphemeral(t).channelID)
}

func TestFeedbackSubmission(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")

	meta := viewMeta{ChannelID: "C1"}.encode()
	payload := fmt.Sprintf(`{
		"type": "view_submission",
		"user": {"id": "U1", "name": "kim"},
		"view": {
			"callback_id": %q,
			"private_metadata": %q,
			"state": {"values": {%q: {%q: {"type": "plain_text_input", "value": "버튼이 안 눌려요"}}}}
		}
	}`, feedbackCallbackID, meta, feedbackBlockID, feedbackInputID)
	tb.postInteraction(t, payload)

	require.Len(t, tb.sink.got, 1)
	require.Equal(t, "버튼이 안 눌려요", tb.sink.got[0].Text)
	require.Equal(t, "kim", tb.sink.got[0].UserName)
	require.Equal(t, "✅ 피드백이 등록되었습니다!", tb.messenger.lastEphemeral(t).text)
}

func sign(secret, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":" + body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSlackSignatureVerification(t *testing.T) {
	t.Parallel()
	const secret = "s3cr3t"
	tb := newTestBot(t, secret)
	body := url.Values{
		"command":    {"/lunch"},
		"text":       {"subscribe 11:30"},
		"channel_id": {"C1"},
		"user_id":    {"U1"},
	}.Encode()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	newReq := func(signature string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Slack-Request-Timestamp", ts)
		req.Header.Set("X-Slack-Signature", signature)
		return req
	}

	rec := httptest.NewRecorder()
	tb.Handler().ServeHTTP(rec, newReq(sign("wrong", ts, body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	tb.Handler().ServeHTTP(rec, newReq(sign(secret, ts, body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var msg slack.Msg
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	require.Equal(t, slack.ResponseTypeEphemeral, msg.ResponseType)
	require.Contains(t, msg.Text, "구독되었습니다")
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "secret")
	rec := httptest.NewRecorder()
	tb.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func (tb *testBot) postWhatsApp(t *testing.T, form url.Values, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rec := httptest.NewRecorder()
	tb.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWhatsAppSubscriberGetsScheduledMenu(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	tb.twilioToken = "twilio-token"
	ctx := context.Background()

	rec := tb.postWhatsApp(t, url.Values{
		"From": {"whatsapp:+821012345678"},
		"Body": {"subscribe 11:30"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "<Response><Message>")
	require.Contains(t, rec.Body.String(), "구독되었습니다")

	subs, err := tb.subs.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "whatsapp:+821012345678", subs[0].ChannelID)

	scheduler := dispatch.NewScheduler(tb.clock, tb.subs, tb.menus, tb.dispatcher, zap.NewNop().Sugar())
	scheduler.Tick(ctx)
	scheduler.Tick(ctx)

	require.Equal(t, []string{"whatsapp:+821012345678"}, tb.twilio.to)
	require.Contains(t, tb.twilio.bodies[0], "제육볶음")
	require.Empty(t, tb.messenger.sends)

	// Reactions from Slack still refresh; the WhatsApp copy cannot be edited.
	record, err := tb.menus.GetOrFetch(ctx, "01월09일")
	require.NoError(t, err)
	require.NoError(t, tb.reactions.Set(ctx, record.ID, "U1", model.SentimentPositive))
	require.NoError(t, tb.dispatcher.RefreshAll(ctx, record.ID))
	require.Empty(t, tb.messenger.updates)
}

func TestWhatsAppCommands(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")
	ctx := context.Background()
	const from = "whatsapp:+821012345678"

	require.Contains(t, tb.runWhatsAppCommand(ctx, from, "구독 25:00"), "00:00 ~ 23:59")
	require.Contains(t, tb.runWhatsAppCommand(ctx, from, "구독 12:00"), "구독되었습니다")
	require.Contains(t, tb.runWhatsAppCommand(ctx, from, "/lunch unsubscribe"), "취소되었습니다")
	require.Contains(t, tb.runWhatsAppCommand(ctx, from, "구독취소"), "구독 중이 아닙니다")
	require.Equal(t, whatsAppHelp, tb.runWhatsAppCommand(ctx, from, "hello"))

	tb.runWhatsAppCommand(ctx, from, "메뉴")
	require.Equal(t, []string{from}, tb.twilio.to)
}

func TestWhatsAppWebhookDisabledWithoutToken(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, "")

	rec := tb.postWhatsApp(t, url.Values{"From": {"whatsapp:+8210"}, "Body": {"subscribe 11:30"}}, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func twilioSign(token, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := webhookURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWhatsAppSignatureVerification(t *testing.T) {
	t.Parallel()
	const webhookURL = "https://lunch.example.com/twilio/webhook"
	tb := newTestBot(t, "")
	tb.twilioToken = "twilio-token"
	tb.twilioURL = webhookURL

	form := url.Values{"From": {"whatsapp:+821012345678"}, "Body": {"subscribe 11:30"}}

	rec := tb.postWhatsApp(t, form, twilioSign("other-token", webhookURL, form))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = tb.postWhatsApp(t, form, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = tb.postWhatsApp(t, form, twilioSign("twilio-token", webhookURL, form))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "구독되었습니다")
}
