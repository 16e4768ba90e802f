package bot

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/pathakanu/lunchbot/internal/transport"
	twilioclient "github.com/twilio/twilio-go/client"
)

const whatsAppHelp = "점심 요정 WhatsApp 사용법:\n" +
	"- subscribe HH:mm (또는 구독 HH:mm): 평일 점심 알림 구독\n" +
	"- unsubscribe (또는 구독취소): 구독 취소\n" +
	"- now (또는 메뉴): 오늘 메뉴 받기"

// handleWhatsApp processes Twilio webhook POST requests. The sender's
// number becomes the subscription channel, so menus reach it through the
// WhatsApp transport.
func (b *Bot) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		b.logger.Warnw("whatsapp: parse error", "error", err)
		b.writeTwilioResponse(w, "요청을 이해하지 못했어요.")
		return
	}

	channelID := transport.WhatsAppChannel(r.FormValue("From"))
	body := strings.TrimSpace(r.FormValue("Body"))
	if channelID == "" || body == "" {
		b.writeTwilioResponse(w, whatsAppHelp)
		return
	}

	b.logger.Infow("whatsapp: message", "from", channelID, "body", body)
	b.writeTwilioResponse(w, b.runWhatsAppCommand(r.Context(), channelID, body))
}

func (b *Bot) runWhatsAppCommand(ctx context.Context, channelID, body string) string {
	args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(body), "/lunch"))
	if len(args) == 0 {
		return whatsAppHelp
	}

	switch strings.ToLower(args[0]) {
	case "subscribe", "구독":
		if len(args) < 2 {
			return "사용법: subscribe HH:mm (예: subscribe 11:30)"
		}
		return b.subscribe(ctx, channelID, args[1])
	case "unsubscribe", "구독취소":
		return b.unsubscribe(ctx, channelID)
	case "now", "메뉴":
		b.background(func(ctx context.Context) { b.sendNow(ctx, channelID, "") })
		return "🍽️ 오늘 메뉴를 가져오고 있어요..."
	default:
		return whatsAppHelp
	}
}

// verifyTwilio rejects webhook calls without a valid X-Twilio-Signature. It
// is a pass-through when no public webhook URL is configured.
func (b *Bot) verifyTwilio(next http.Handler) http.Handler {
	validator := twilioclient.NewRequestValidator(b.twilioToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.twilioURL == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		signature := r.Header.Get("X-Twilio-Signature")
		if !validator.Validate(b.twilioURL, decodeTwilioForm(r.PostForm), signature) {
			b.logger.Warnw("whatsapp: invalid signature", "from", r.PostForm.Get("From"))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeTwilioForm flattens the POST form into the map Twilio signs.
func decodeTwilioForm(values url.Values) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		if len(value) > 0 {
			result[key] = value[0]
		}
	}
	return result
}

func (b *Bot) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		b.logger.Warnw("whatsapp: response encode failed", "error", err)
	}
}
