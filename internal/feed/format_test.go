package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMenuContent(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want string
	}{
		"plain items": {
			in:   "🍖 제육볶음 🍚 흑미밥",
			want: "• 🍖 제육볶음\n• 🍚 흑미밥",
		},
		"title line stripped": {
			in:   "01월09일(금요일) ♥진한식당 점심메뉴♥\n🍖 제육볶음\n🥗 샐러드",
			want: "• 🍖 제육볶음\n• 🥗 샐러드",
		},
		"location glyph truncates": {
			in:   "🍖 김치찌개 📍서울시 연수구 송도동",
			want: "• 🍖 김치찌개",
		},
		"location alias truncates": {
			in:   "🍖 김치찌개 :round_pushpin: 서울시",
			want: "• 🍖 김치찌개",
		},
		"leading text and bare icon dropped": {
			in:   "오늘의 메뉴 🍖 제육볶음 🍚",
			want: "• 🍖 제육볶음",
		},
		"multi glyph runs kept together": {
			in:   "☹️🔥 매운 떡볶이",
			want: "• ☹️🔥 매운 떡볶이",
		},
		"keycap emoji start an item": {
			in:   "1️⃣ 제육 2️⃣ 된장",
			want: "• 1️⃣ 제육\n• 2️⃣ 된장",
		},
		"bare keycap digit": {
			in:   "#⃣ 세트 A",
			want: "• #⃣ 세트 A",
		},
		"plain symbols stay in the item": {
			in:   "🍖 제육볶음 25°C 🍚 흑미밥 ★추천",
			want: "• 🍖 제육볶음 25°C\n• 🍚 흑미밥 ★추천",
		},
		"symbols with emoji style are icons": {
			in:   "오늘 ♥ 특선 ♥️ 하트 케이크",
			want: "• ♥️ 하트 케이크",
		},
		"joined sequence is one icon": {
			in:   "🧑\u200d🍳 셰프 추천 ☕ 아메리카노",
			want: "• 🧑\u200d🍳 셰프 추천\n• ☕ 아메리카노",
		},
		"empty": {
			in:   "",
			want: "",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatMenuContent(tc.in))
		})
	}
}

func TestFormatMenuContentIsIdempotent(t *testing.T) {
	t.Parallel()

	once := FormatMenuContent("🍖 제육볶음\n🍚 흑미밥 \n🥬 배추김치")
	require.Equal(t, once, FormatMenuContent(once))
}

func TestFormatMenuContentKeepsCountsInText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "• 🍗 치킨 2인분", FormatMenuContent("🍗 치킨 2인분"))
}
