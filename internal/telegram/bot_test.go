package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/service"
)

var testMSK = time.FixedZone("MSK", 3*3600)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func TestParseScore(t *testing.T) {
	cases := []struct {
		in         string
		home, away int
		ok         bool
	}{
		{"2:1", 2, 1, true},
		{"2-0", 2, 0, true},
		{" 3:3 ", 3, 3, true},
		{"10:0", 10, 0, true},
		{"0-0", 0, 0, true},
		{"abc", 0, 0, false},
		{"2:", 0, 0, false},
		{"2", 0, 0, false},
		{"2:-1", 0, 0, false},
		{"", 0, 0, false},
		{"2:1:0", 0, 0, false},
	}
	for _, tc := range cases {
		home, away, ok := parseScore(tc.in)
		if ok != tc.ok || home != tc.home || away != tc.away {
			t.Fatalf("parseScore(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tc.in, home, away, ok, tc.home, tc.away, tc.ok)
		}
	}
}

func TestParseCallback(t *testing.T) {
	payload, err := parseCallback("qnav|to=my")
	if err != nil {
		t.Fatalf("parseCallback: %v", err)
	}
	if payload.Action != "qnav" || payload.Params["to"] != "my" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	payload, err = parseCallback("pick_match|id=7")
	if err != nil {
		t.Fatalf("parseCallback: %v", err)
	}
	if payload.Action != "pick_match" || payload.Params["id"] != "7" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	// Malformed segments are skipped, not fatal.
	payload, err = parseCallback("action|junk|k=v")
	if err != nil {
		t.Fatalf("parseCallback: %v", err)
	}
	if len(payload.Params) != 1 || payload.Params["k"] != "v" {
		t.Fatalf("unexpected params: %+v", payload.Params)
	}

	if _, err := parseCallback(""); err == nil {
		t.Fatal("empty callback data must fail")
	}
}

func TestParseKickoffInput(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-03-01 19:00", time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC), true},
		{"2026-03-01 19:00:30", time.Date(2026, 3, 1, 16, 0, 30, 0, time.UTC), true},
		{"2026-03-01T19:00", time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC), true},
		{"2026—03—01 19:00", time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC), true},
		{"2026-03-01   19:00", time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC), true},
		{"2026-03-01", time.Date(2026, 2, 28, 21, 0, 0, 0, time.UTC), true},
		{"01.03.2026 19:00", time.Time{}, false},
		{"garbage", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := parseKickoffInput(tc.in, testMSK)
		if ok != tc.ok {
			t.Fatalf("parseKickoffInput(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
		if ok && !got.Equal(tc.want) {
			t.Fatalf("parseKickoffInput(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSplitMessageShortText(t *testing.T) {
	chunks := splitMessage("a\nb", 10)
	if len(chunks) != 1 || chunks[0] != "a\nb" {
		t.Fatalf("short text must pass through, got %q", chunks)
	}
	if got := splitMessage("   ", 10); got != nil {
		t.Fatalf("blank text must produce no chunks, got %q", got)
	}
}

func TestSplitMessageLineBoundaries(t *testing.T) {
	chunks := splitMessage("aaaa\nbbbb\ncccc", 9)
	want := []string{"aaaa\nbbbb", "cccc"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %q, want %q", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplitMessageOversizedLine(t *testing.T) {
	chunks := splitMessage(strings.Repeat("я", 25), 10)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 10 {
			t.Fatalf("chunk %d has %d runes, limit 10", i, n)
		}
	}
	if joined := strings.Join(chunks, ""); joined != strings.Repeat("я", 25) {
		t.Fatal("hard cuts lost content")
	}
}

func TestMatchStatusIcon(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	open := models.Match{KickoffAt: now.Add(time.Hour)}
	locked := models.Match{KickoffAt: now.Add(-time.Hour)}
	finished := models.Match{
		KickoffAt: now.Add(-3 * time.Hour),
		HomeScore: intPtr(2),
		AwayScore: intPtr(0),
	}

	if got := matchStatusIcon(open, now); got != "🟢" {
		t.Fatalf("open match icon = %q", got)
	}
	if got := matchStatusIcon(locked, now); got != "🔒" {
		t.Fatalf("locked match icon = %q", got)
	}
	if got := matchStatusIcon(finished, now); got != "✅" {
		t.Fatalf("finished match icon = %q", got)
	}
	// A match at exactly kickoff counts as started.
	if got := matchStatusIcon(models.Match{KickoffAt: now}, now); got != "🔒" {
		t.Fatalf("kickoff instant icon = %q", got)
	}
}

func TestRoundMatchesText(t *testing.T) {
	bot := &Bot{
		loc:     testMSK,
		timeNow: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	tournament := &models.Tournament{Name: "РПЛ", RoundMin: 1, RoundMax: 30}
	matches := []models.Match{
		{
			HomeTeam:  "Спартак",
			AwayTeam:  "Зенит",
			KickoffAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			HomeScore: intPtr(2),
			AwayScore: intPtr(0),
		},
		{
			HomeTeam:  "ЦСКА",
			AwayTeam:  "Краснодар",
			KickoffAt: time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC),
		},
	}

	text := bot.roundMatchesText(tournament, 5, matches)
	wantLines := []string{
		"📅 РПЛ · Тур 5 (МСК)",
		"✅ Спартак — Зенит | 01.03 11:00 | 2:0",
		"🟢 ЦСКА — Краснодар | 01.03 19:00",
		"🟢 прогноз открыт · 🔒 прогноз закрыт · ✅ есть итог",
	}
	for _, line := range wantLines {
		if !strings.Contains(text, line) {
			t.Fatalf("round text missing %q:\n%s", line, text)
		}
	}

	empty := bot.roundMatchesText(tournament, 7, nil)
	if !strings.HasPrefix(empty, "В туре 7 пока нет матчей.") {
		t.Fatalf("empty round text: %q", empty)
	}
}

func TestLeaderboardLines(t *testing.T) {
	rows := make([]models.LeaderboardRow, 25)
	for i := range rows {
		rows[i] = models.LeaderboardRow{Name: "user", Total: 25 - i}
	}
	lines := leaderboardLines(rows)
	if len(lines) != tableLimit {
		t.Fatalf("got %d lines, want %d", len(lines), tableLimit)
	}
	if !strings.HasPrefix(lines[0], "1. user — 25 очк.") {
		t.Fatalf("first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[19], "20. ") {
		t.Fatalf("last line: %q", lines[19])
	}
}

func TestStatsText(t *testing.T) {
	rows := []models.UserStatsRow{
		{Name: "Роман", Total: 6, Exact: 1, Difference: 1, Outcome: 1, Miss: 0, Scored: 3},
		{Name: "Олег", Total: 0, Exact: 0, Difference: 0, Outcome: 0, Miss: 0, Scored: 0},
	}
	text := statsText(rows)
	if !strings.Contains(text, "1. Роман — 6 очк. | 🎯1 (33%) | 📏1 (33%) | ✅1 (33%) | ❌0 (0%) | всего: 3") {
		t.Fatalf("stats line wrong:\n%s", text)
	}
	// Zero scored matches must not divide by zero.
	if !strings.Contains(text, "2. Олег — 0 очк. | 🎯0 (0%)") {
		t.Fatalf("zero row wrong:\n%s", text)
	}

	if got := statsText(nil); !strings.HasPrefix(got, "Пока нет статистики по очкам.") {
		t.Fatalf("empty stats text: %q", got)
	}
}

func TestProfileText(t *testing.T) {
	tournament := &models.Tournament{Name: "РПЛ"}
	profile := &service.ProfileData{
		Rank:          0,
		Ranked:        4,
		Total:         12,
		Exact:         2,
		Difference:    1,
		Outcome:       2,
		Predictions:   9,
		CurrentStreak: 2,
		BestStreak:    5,
		AvgPerRound:   4.5,
		Form: []models.RoundPoints{
			{RoundNumber: 5, Points: 3},
			{RoundNumber: 6, Points: 7},
		},
	}
	text := profileText("Роман", tournament, profile)

	// Unranked users slot in after the ranked ones.
	if !strings.Contains(text, "Место в общем зачёте: 5") {
		t.Fatalf("place line wrong:\n%s", text)
	}
	if !strings.Contains(text, "Средние очки за тур: 4.50") {
		t.Fatalf("avg line wrong:\n%s", text)
	}
	// Most recent round first.
	if !strings.Contains(text, "Форма (последние туры): Т6:7 | Т5:3") {
		t.Fatalf("form line wrong:\n%s", text)
	}

	profile.Form = nil
	if !strings.Contains(profileText("Роман", tournament, profile), "Форма (последние туры): нет данных") {
		t.Fatal("empty form must say нет данных")
	}
}

func TestMvpText(t *testing.T) {
	tournament := &models.Tournament{Name: "РПЛ"}
	rows := []models.LeaderboardRow{
		{TelegramID: 1, Name: "Анна", Total: 8},
		{TelegramID: 2, Name: "Борис", Total: 8},
		{TelegramID: 3, Name: "Вера", Total: 5},
	}
	text := mvpText(tournament, 4, rows, 3)
	for _, line := range []string{
		"🏅 MVP тура 4 (РПЛ)",
		"Лучший результат тура: 8 очк.",
		"MVP разделили:",
		"• Анна",
		"• Борис",
		"3. Вера — 5 очк.",
		"Участников в туре: 3",
	} {
		if !strings.Contains(text, line) {
			t.Fatalf("mvp text missing %q:\n%s", line, text)
		}
	}

	solo := mvpText(tournament, 4, rows[:1], 1)
	if !strings.Contains(solo, "MVP: Анна") {
		t.Fatalf("single mvp wrong:\n%s", solo)
	}

	if got := mvpText(tournament, 9, nil, 0); !strings.HasPrefix(got, "В туре 9 пока нет данных для MVP.") {
		t.Fatalf("empty mvp text: %q", got)
	}
}

func TestTopsTextBreakthrough(t *testing.T) {
	tournament := &models.Tournament{Name: "РПЛ"}
	rows := []models.LeaderboardRow{
		{TelegramID: 1, Name: "Анна", Total: 10, Exact: 2},
		{TelegramID: 3, Name: "Вера", Total: 7, Outcome: 3},
	}

	// Nobody to compare with: best result of the round.
	text := topsText(tournament, 4, rows, nil, 2)
	if !strings.Contains(text, "🚀 Прорыв тура: Анна — 10 очк. (лучший результат тура)") {
		t.Fatalf("fallback breakthrough wrong:\n%s", text)
	}
	if !strings.Contains(text, "🎯 Снайпер тура: Анна") {
		t.Fatalf("sniper line wrong:\n%s", text)
	}
	if !strings.Contains(text, "📏 Мастер разницы: —") {
		t.Fatalf("empty category must be a dash:\n%s", text)
	}

	prev := []models.LeaderboardRow{
		{TelegramID: 1, Total: 10},
		{TelegramID: 3, Total: 2},
	}
	text = topsText(tournament, 4, rows, prev, 2)
	if !strings.Contains(text, "🚀 Прорыв тура: Вера — +5 к прошлому туру (7 очк.)") {
		t.Fatalf("delta breakthrough wrong:\n%s", text)
	}
}

func TestDigestText(t *testing.T) {
	tournament := &models.Tournament{Name: "РПЛ"}
	rows := []models.LeaderboardRow{
		{TelegramID: 1, Name: "Анна", Total: 10, Exact: 2},
		{TelegramID: 2, Name: "Борис", Total: 10, Difference: 1},
		{TelegramID: 3, Name: "Вера", Total: 7},
	}
	text := digestText(tournament, 4, rows, nil, 3)
	if !strings.Contains(text, "🏅 MVP: Анна, Борис — 10 очк.") {
		t.Fatalf("mvp line wrong:\n%s", text)
	}
	// Digest fallback has no suffix.
	if !strings.Contains(text, "🚀 Прорыв тура: Анна — 10 очк.\n") {
		t.Fatalf("fallback breakthrough wrong:\n%s", text)
	}
	if !strings.Contains(text, "Участников в туре: 3") {
		t.Fatalf("participants line missing:\n%s", text)
	}
}

func TestTopNames(t *testing.T) {
	rows := []models.LeaderboardRow{
		{Name: "a", Exact: 2},
		{Name: "b", Exact: 2},
		{Name: "c", Exact: 2},
		{Name: "d", Exact: 2},
		{Name: "e", Exact: 1},
	}
	got := topNames(rows, func(r models.LeaderboardRow) int { return r.Exact })
	if got != "a, b, c" {
		t.Fatalf("topNames = %q, want first three leaders", got)
	}
	if got := topNames(rows, func(r models.LeaderboardRow) int { return r.Outcome }); got != "—" {
		t.Fatalf("empty category = %q, want dash", got)
	}
}

func TestBestRoundDelta(t *testing.T) {
	rows := []models.LeaderboardRow{
		{TelegramID: 1, Name: "a", Total: 9},
		{TelegramID: 2, Name: "b", Total: 8},
		{TelegramID: 3, Name: "new", Total: 20},
	}
	prev := []models.LeaderboardRow{
		{TelegramID: 1, Total: 7},
		{TelegramID: 2, Total: 2},
	}
	name, delta, total, ok := bestRoundDelta(rows, prev)
	if !ok || name != "b" || delta != 6 || total != 8 {
		t.Fatalf("bestRoundDelta = (%q, %d, %d, %v), want b +6 (8)", name, delta, total, ok)
	}

	// Newcomers are not breakthroughs, they have no previous round.
	if _, _, _, ok := bestRoundDelta(rows[2:], prev); ok {
		t.Fatal("rows without previous totals must not produce a delta")
	}
}

func TestResolveName(t *testing.T) {
	user := &models.User{
		Username:    strPtr("roman"),
		FullName:    strPtr("Роман И"),
		DisplayName: strPtr("Ромка"),
	}
	membership := &models.Membership{DisplayName: strPtr("Роман")}

	if got := resolveName(membership, user, 42); got != "Роман" {
		t.Fatalf("membership name must win, got %q", got)
	}
	if got := resolveName(nil, user, 42); got != "Ромка" {
		t.Fatalf("user display name next, got %q", got)
	}
	user.DisplayName = nil
	if got := resolveName(nil, user, 42); got != "@roman" {
		t.Fatalf("username next, got %q", got)
	}
	user.Username = nil
	if got := resolveName(nil, user, 42); got != "Роман И" {
		t.Fatalf("full name next, got %q", got)
	}
	if got := resolveName(nil, nil, 42); got != "42" {
		t.Fatalf("id fallback, got %q", got)
	}
}

func TestHistoryKeyboard(t *testing.T) {
	kb := historyKeyboard(1, 9)
	if len(kb.InlineKeyboard) != 3 {
		t.Fatalf("got %d rows, want 3", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != 4 || len(kb.InlineKeyboard[2]) != 1 {
		t.Fatalf("row sizes wrong: %d, %d", len(kb.InlineKeyboard[0]), len(kb.InlineKeyboard[2]))
	}
	first := kb.InlineKeyboard[0][0]
	if first.Text != "1" || first.CallbackData == nil || *first.CallbackData != "history_round|r=1" {
		t.Fatalf("first button wrong: %+v", first)
	}
	last := kb.InlineKeyboard[2][0]
	if last.Text != "9" || *last.CallbackData != "history_round|r=9" {
		t.Fatalf("last button wrong: %+v", last)
	}
}

func TestQuickNavKeyboard(t *testing.T) {
	kb := quickNavKeyboard("after_predict")
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("after_predict rows = %d, want 2", len(kb.InlineKeyboard))
	}
	if *kb.InlineKeyboard[0][0].CallbackData != "qnav|to=my" ||
		*kb.InlineKeyboard[0][1].CallbackData != "qnav|to=round" ||
		*kb.InlineKeyboard[1][0].CallbackData != "qnav|to=predict" {
		t.Fatalf("after_predict layout wrong: %+v", kb.InlineKeyboard)
	}

	kb = quickNavKeyboard("after_table")
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("after_table layout wrong: %+v", kb.InlineKeyboard)
	}
	if *kb.InlineKeyboard[0][0].CallbackData != "qnav|to=predict" {
		t.Fatalf("after_table first button wrong: %+v", kb.InlineKeyboard[0][0])
	}
}

func TestParseIntParam(t *testing.T) {
	params := map[string]string{"r": "7", "bad": "x"}
	if got := parseIntParam(params, "r", 0); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
	if got := parseIntParam(params, "bad", -1); got != -1 {
		t.Fatalf("bad value must fall back, got %d", got)
	}
	if got := parseIntParam(params, "missing", 3); got != 3 {
		t.Fatalf("missing key must fall back, got %d", got)
	}
	if got := parseIntParam(nil, "r", 5); got != 5 {
		t.Fatalf("nil map must fall back, got %d", got)
	}
}

func TestParseInt64(t *testing.T) {
	if got := parseInt64("123"); got != 123 {
		t.Fatalf("got %d", got)
	}
	if got := parseInt64(""); got != 0 {
		t.Fatalf("empty must be 0, got %d", got)
	}
	if got := parseInt64("junk"); got != 0 {
		t.Fatalf("junk must be 0, got %d", got)
	}
}
