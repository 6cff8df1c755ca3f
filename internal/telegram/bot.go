// Package telegram is the chat surface of the prediction game: the long
// polling loop, user and admin commands, the inline keyboards and the
// wizard flows that need more than one message.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Bambaleylo21/rpl-predictions-bot/internal/models"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/repository"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/service"
	"github.com/Bambaleylo21/rpl-predictions-bot/internal/session"
)

const (
	tableLimit    = 20
	maxMessageLen = 3800
)

const (
	flowJoin         = "join"
	flowPredictBlock = "predict_block"
	flowSingleScore  = "single_score"
	flowAdminResult  = "admin_result"
)

type Services struct {
	Users       service.UsersService
	Tournaments service.TournamentsService
	Memberships service.MembershipsService
	Matches     service.MatchesService
	Predictions service.PredictionsService
	Scoring     service.ScoringService
	Stats       service.StatsService
	Settings    service.SettingsService
	Sessions    *session.Store
}

type Bot struct {
	api     *tgbotapi.BotAPI
	admins  map[int64]struct{}
	svc     Services
	logger  repository.Logger
	loc     *time.Location
	timeNow func() time.Time
}

func NewBot(api *tgbotapi.BotAPI, adminIDs []int64, loc *time.Location, svc Services, logger repository.Logger) *Bot {
	adminMap := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		adminMap[id] = struct{}{}
	}
	return &Bot{
		api:     api,
		admins:  adminMap,
		svc:     svc,
		logger:  logger,
		loc:     loc,
		timeNow: time.Now,
	}
}

// SendText delivers a plain direct message. The reminder worker sends
// through the same API connection as the handlers.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) Run(ctx context.Context) error {
	b.setupCommands()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if err := b.handleUpdate(ctx, update); err != nil {
				b.logger.Error(err, "handle_update", "update", int64(update.UpdateID), 0)
			}
		}
	}
}

func (b *Bot) setupCommands() {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Запустить бота"},
		tgbotapi.BotCommand{Command: "help", Description: "Как пользоваться ботом"},
		tgbotapi.BotCommand{Command: "ping", Description: "Проверка: бот жив?"},
		tgbotapi.BotCommand{Command: "round", Description: "Матчи тура: /round 1"},
		tgbotapi.BotCommand{Command: "predict", Description: "Сделать прогноз: /predict 1 2:0"},
		tgbotapi.BotCommand{Command: "table", Description: "Таблица лидеров"},
		tgbotapi.BotCommand{Command: "admin_add_match", Description: "Админ: добавить матч"},
		tgbotapi.BotCommand{Command: "admin_set_result", Description: "Админ: поставить результат"},
		tgbotapi.BotCommand{Command: "admin_recalc", Description: "Админ: пересчитать очки"},
	)
	if _, err := b.api.Request(commands); err != nil {
		b.logger.Error(err, "set_commands", "bot", 0, 0)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message != nil {
		return b.handleMessage(ctx, update.Message)
	}
	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	b.rememberUser(ctx, msg)

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg)
	}
	if handled, err := b.handleMenuButton(ctx, msg); handled || err != nil {
		return err
	}

	// Plain text only matters inside a wizard.
	state := &wizardState{}
	stored, err := b.svc.Sessions.Load(ctx, msg.From.ID, state)
	if err != nil {
		return err
	}
	if stored == nil || state.Flow == "" {
		return nil
	}
	return b.advanceWizard(ctx, msg, state)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.cmdStart(ctx, msg)
	case "help":
		return b.sendHelp(ctx, msg.Chat.ID, msg.From.ID)
	case "ping":
		b.sendSimple(msg.Chat.ID, "pong ✅ На связи!")
		return nil
	case "chatid":
		return b.cmdChatID(msg)
	case "join":
		return b.startJoin(ctx, msg.Chat.ID, msg.From.ID)
	case "round":
		return b.cmdRound(ctx, msg)
	case "predict":
		return b.cmdPredict(ctx, msg)
	case "predict_round":
		return b.cmdPredictRound(ctx, msg)
	case "my":
		return b.cmdMy(ctx, msg)
	case "table":
		return b.sendOverallTable(ctx, msg.Chat.ID, msg.From.ID)
	case "table_round":
		return b.cmdTableRound(ctx, msg)
	case "stats":
		return b.sendStats(ctx, msg.Chat.ID, msg.From.ID)
	case "history":
		return b.sendHistory(ctx, msg.Chat.ID, msg.From.ID)
	case "profile":
		return b.sendProfile(ctx, msg.Chat.ID, msg.From.ID)
	case "mvp_round":
		return b.cmdRoundReport(ctx, msg, reportMVP)
	case "tops_round":
		return b.cmdRoundReport(ctx, msg, reportTops)
	case "round_digest":
		return b.cmdRoundReport(ctx, msg, reportDigest)
	case "admin_add_match":
		return b.cmdAdminAddMatch(ctx, msg)
	case "admin_set_result":
		return b.cmdAdminSetResult(ctx, msg)
	case "admin_recalc":
		return b.cmdAdminRecalc(ctx, msg)
	case "admin_reset_result":
		return b.cmdAdminResetResult(ctx, msg)
	case "admin_health":
		return b.cmdAdminHealth(ctx, msg)
	case "admin_set_window":
		return b.cmdAdminSetWindow(ctx, msg)
	case "admin_remove_user":
		return b.cmdAdminRemoveUser(ctx, msg)
	default:
		return nil
	}
}

func (b *Bot) handleMenuButton(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Text {
	case "🇷🇺 РПЛ":
		return true, b.switchTournament(ctx, chatID, userID, "RPL", "Турнир РПЛ не найден в базе.")
	case "🇬🇧 АПЛ":
		return true, b.switchTournament(ctx, chatID, userID, "EPL", "Турнир АПЛ не найден в базе.")
	case "✅ Вступить в турнир":
		return true, b.startJoin(ctx, chatID, userID)
	case "📅 Матчи тура":
		return true, b.sendDefaultRound(ctx, chatID, userID)
	case "🗂 Мои прогнозы":
		return true, b.sendDefaultMy(ctx, chatID, userID)
	case "🎯 Поставить прогноз":
		return true, b.sendPredictPicker(ctx, chatID, userID)
	case "🏆 Общая таблица":
		return true, b.sendOverallTable(ctx, chatID, userID)
	case "📊 Статистика":
		return true, b.sendStats(ctx, chatID, userID)
	case "👤 Мой профиль":
		return true, b.sendProfile(ctx, chatID, userID)
	case "🗓 История туров":
		return true, b.sendHistory(ctx, chatID, userID)
	case "🥇 MVP тура":
		return true, b.sendDefaultReport(ctx, chatID, userID, reportMVP)
	case "⭐ Топы тура":
		return true, b.sendDefaultReport(ctx, chatID, userID, reportTops)
	case "❓ Помощь":
		return true, b.sendHelp(ctx, chatID, userID)
	case "📘 Правила":
		return true, b.sendRules(ctx, chatID, userID)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	userID := cb.From.ID

	payload, err := parseCallback(cb.Data)
	if err != nil {
		b.alertCallback(cb.ID, "Некорректная кнопка")
		return nil
	}

	switch payload.Action {
	case "qnav":
		if err := b.handleQuickNav(ctx, chatID, userID, payload.Params["to"]); err != nil {
			return err
		}
		b.answerCallback(cb.ID)
		return nil
	case "history_round":
		return b.handleHistoryRound(ctx, cb, payload.Params)
	case "pick_match":
		return b.handlePickMatch(ctx, cb, payload.Params)
	case "admin_res_t":
		if !b.isAdmin(userID) {
			b.alertCallback(cb.ID, "Нет прав")
			return nil
		}
		return b.handleAdminResultTournament(ctx, cb, parseInt64(payload.Params["id"]))
	case "admin_res_m":
		if !b.isAdmin(userID) {
			b.alertCallback(cb.ID, "Нет прав")
			return nil
		}
		return b.handleAdminResultMatch(ctx, cb, parseInt64(payload.Params["id"]))
	default:
		b.answerCallback(cb.ID)
		return nil
	}
}

func (b *Bot) handleQuickNav(ctx context.Context, chatID, userID int64, to string) error {
	switch to {
	case "my":
		return b.sendDefaultMy(ctx, chatID, userID)
	case "round":
		return b.sendDefaultRound(ctx, chatID, userID)
	case "predict":
		return b.sendPredictPicker(ctx, chatID, userID)
	case "table":
		return b.sendOverallTable(ctx, chatID, userID)
	default:
		return nil
	}
}

func (b *Bot) handleHistoryRound(ctx context.Context, cb *tgbotapi.CallbackQuery, params map[string]string) error {
	round := parseIntParam(params, "r", 0)
	if round == 0 {
		b.alertCallback(cb.ID, "Не получилось выбрать тур, попробуй ещё раз.")
		return nil
	}
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, cb.From.ID)
	if err != nil {
		return err
	}
	if !tournament.HasRound(round) {
		b.alertCallback(cb.ID, "Этот тур вне диапазона выбранного турнира.")
		return nil
	}
	matches, err := b.svc.Matches.ListByRound(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID
	b.sendSimple(chatID, b.roundMatchesText(tournament, round, matches))
	b.sendQuickNav(chatID, "Что дальше?", "after_info")
	b.answerCallback(cb.ID)
	return nil
}

func (b *Bot) handlePickMatch(ctx context.Context, cb *tgbotapi.CallbackQuery, params map[string]string) error {
	matchID := parseInt64(params["id"])
	if matchID == 0 {
		b.alertCallback(cb.ID, "Не удалось выбрать матч")
		return nil
	}
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, cb.From.ID)
	if err != nil {
		return err
	}
	match, err := b.svc.Matches.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.alertCallback(cb.ID, "Матч не найден")
			return nil
		}
		return err
	}
	if match.TournamentID != tournament.ID {
		b.alertCallback(cb.ID, "Матч не найден")
		return nil
	}
	if match.KickedOff(b.timeNow().UTC()) {
		b.alertCallback(cb.ID, "Прогноз уже закрыт")
		return nil
	}

	state := &wizardState{
		Flow: flowSingleScore,
		Data: map[string]string{"match_id": strconv.FormatInt(matchID, 10)},
	}
	if err := b.svc.Sessions.Save(ctx, cb.From.ID, state.Flow, state); err != nil {
		return err
	}
	b.sendSimple(cb.Message.Chat.ID, fmt.Sprintf("Матч выбран: %s — %s\nОтправь только счёт: 2:1", match.HomeTeam, match.AwayTeam))
	b.answerCallback(cb.ID)
	return nil
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

// rememberUser refreshes the profile row on every incoming message; a
// failure here must not break the command itself.
func (b *Bot) rememberUser(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	var username *string
	if from.UserName != "" {
		name := from.UserName
		username = &name
	}
	var fullName *string
	if full := strings.TrimSpace(from.FirstName + " " + from.LastName); full != "" {
		fullName = &full
	}
	if err := b.svc.Users.Ensure(ctx, from.ID, username, fullName); err != nil {
		b.logger.Error(err, "remember_user", "user", from.ID, 0)
	}
}

// userContext resolves the tournament the user acts in and the round the
// schedule points at right now.
func (b *Bot) userContext(ctx context.Context, userID int64) (*models.Tournament, int, error) {
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	round, err := b.svc.Matches.DefaultRound(ctx, tournament)
	if err != nil {
		return nil, 0, err
	}
	return tournament, round, nil
}

func (b *Bot) requireMembership(ctx context.Context, chatID, userID int64, tournament *models.Tournament) (bool, error) {
	member, err := b.svc.Memberships.IsMember(ctx, userID, tournament.ID)
	if err != nil {
		return false, err
	}
	if !member {
		b.sendSimple(chatID, fmt.Sprintf(
			"Ты пока не в турнире %s.\nНажми «✅ Вступить в турнир» — и можно сразу ставить прогнозы.",
			tournament.Name))
	}
	return member, nil
}

func (b *Bot) switchTournament(ctx context.Context, chatID, userID int64, code, missingText string) error {
	tournament, err := b.svc.Tournaments.Select(ctx, userID, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.sendSimple(chatID, missingText)
			return nil
		}
		return err
	}
	round, err := b.svc.Matches.DefaultRound(ctx, tournament)
	if err != nil {
		return err
	}
	b.sendSimple(chatID, fmt.Sprintf("Переключено на турнир: %s\nТекущий тур: %d", tournament.Name, round))
	return nil
}

// ----------------------------------------------------------------------------
// User commands

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) error {
	tournament, round, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf(
		"🏆 Добро пожаловать в бот прогнозов РПЛ и АПЛ.\n\n"+
			"Как начать (3 шага):\n"+
			"1) Выбери турнир кнопкой: 🇷🇺 РПЛ или 🇬🇧 АПЛ\n"+
			"2) Нажми «✅ Вступить в турнир» и введи имя для таблицы\n"+
			"3) Открой «📅 Матчи тура» и поставь прогноз через «🎯 Поставить прогноз»\n\n"+
			"Сейчас выбран турнир: %s\n"+
			"Текущий тур: %d\n\n"+
			"Очки:\n"+
			"🎯 точный счёт — 4\n"+
			"📏 разница + исход — 2\n"+
			"✅ только исход — 1\n"+
			"❌ мимо — 0\n\n"+
			"Важно:\n"+
			"🕒 Время матчей и дедлайны — по Москве (МСК).\n"+
			"⛔️ После начала матча прогноз ставить/менять нельзя.\n"+
			"✅ Можно вводить счет как 2:0 или 2-0.",
		tournament.Name, round)
	return b.sendMarkup(msg.Chat.ID, text, mainMenuKeyboard())
}

func (b *Bot) cmdChatID(msg *tgbotapi.Message) error {
	chat := msg.Chat
	title := chat.Title
	if title == "" {
		title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	if title == "" {
		title = "private"
	}
	b.sendSimple(chat.ID, fmt.Sprintf("chat_id: %d\ntype: %s\ntitle: %s", chat.ID, chat.Type, title))
	return nil
}

func (b *Bot) cmdRound(ctx context.Context, msg *tgbotapi.Message) error {
	tournament, defaultRound, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Чуть не так. Попробуй формат: /round %d", defaultRound))
		return nil
	}
	round, err := strconv.Atoi(args[0])
	if err != nil {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Номер тура нужен числом. Пример: /round %d", defaultRound))
		return nil
	}
	if !tournament.HasRound(round) {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf(
			"В этом турнире доступны только туры %d..%d.\nПопробуй: /round %d",
			tournament.RoundMin, tournament.RoundMax, defaultRound))
		return nil
	}
	matches, err := b.svc.Matches.ListByRound(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	b.sendLong(msg.Chat.ID, b.roundMatchesText(tournament, round, matches))
	return nil
}

func (b *Bot) cmdPredict(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.sendSimple(chatID, "Почти! Формат такой: /predict 1 2:0")
		return nil
	}
	matchID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendSimple(chatID, "ID матча должен быть числом. Пример: /predict 1 2:0")
		return nil
	}
	predHome, predAway, ok := parseScore(args[1])
	if !ok {
		b.sendSimple(chatID, "Счёт нужен в формате 2:0 (или 2-0).")
		return nil
	}

	tournament, err := b.svc.Tournaments.SelectedFor(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	member, err := b.svc.Memberships.IsMember(ctx, msg.From.ID, tournament.ID)
	if err != nil {
		return err
	}
	if !member {
		b.sendSimple(chatID, fmt.Sprintf(
			"Сначала зайди в турнир %s кнопкой «✅ Вступить в турнир», и сразу сможем сохранить прогноз.",
			tournament.Name))
		return nil
	}

	match, err := b.svc.Matches.Get(ctx, matchID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if err != nil || match.TournamentID != tournament.ID {
		b.sendSimple(chatID, "Не нашёл такой матч в выбранном турнире. Проверь ID через «📅 Матчи тура».")
		return nil
	}
	if match.KickedOff(b.timeNow().UTC()) {
		b.sendSimple(chatID, "🔒 На этот матч уже поздно: игра началась. Выбери другой открытый матч.")
		return nil
	}
	if err := b.svc.Predictions.Submit(ctx, msg.From.ID, matchID, predHome, predAway); err != nil {
		if errors.Is(err, models.ErrValidation) {
			b.sendSimple(chatID, "Счёт нужен в формате 2:0 (или 2-0).")
			return nil
		}
		return err
	}

	b.sendSimple(chatID, fmt.Sprintf("✅ Прогноз: %s — %s | %d:%d", match.HomeTeam, match.AwayTeam, predHome, predAway))
	b.sendQuickNav(chatID, "Что дальше?", "after_predict")
	return nil
}

func (b *Bot) cmdPredictRound(ctx context.Context, msg *tgbotapi.Message) error {
	tournament, defaultRound, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	member, err := b.requireMembership(ctx, msg.Chat.ID, msg.From.ID, tournament)
	if err != nil || !member {
		return err
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Для тура нужен формат: /predict_round %d", defaultRound))
		return nil
	}
	round, err := strconv.Atoi(args[0])
	if err != nil {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Номер тура нужен числом. Пример: /predict_round %d", defaultRound))
		return nil
	}
	if !tournament.HasRound(round) {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf(
			"В этом турнире доступны только туры %d..%d.\nПопробуй: /predict_round %d",
			tournament.RoundMin, tournament.RoundMax, defaultRound))
		return nil
	}
	return b.openPredictBlock(ctx, msg.Chat.ID, msg.From.ID, tournament, round)
}

func (b *Bot) cmdMy(ctx context.Context, msg *tgbotapi.Message) error {
	tournament, defaultRound, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	member, err := b.requireMembership(ctx, msg.Chat.ID, msg.From.ID, tournament)
	if err != nil || !member {
		return err
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Для просмотра тура используй формат: /my %d", defaultRound))
		return nil
	}
	round, err := strconv.Atoi(args[0])
	if err != nil {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Номер тура нужен числом. Пример: /my %d", defaultRound))
		return nil
	}
	if !tournament.HasRound(round) {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf(
			"В этом турнире доступны только туры %d..%d.\nПопробуй: /my %d",
			tournament.RoundMin, tournament.RoundMax, defaultRound))
		return nil
	}
	return b.sendMyRound(ctx, msg.Chat.ID, msg.From.ID, tournament, round)
}

func (b *Bot) cmdTableRound(ctx context.Context, msg *tgbotapi.Message) error {
	tournament, defaultRound, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Для таблицы тура используй формат: /table_round %d", defaultRound))
		return nil
	}
	round, err := strconv.Atoi(args[0])
	if err != nil {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Номер тура нужен числом. Пример: /table_round %d", defaultRound))
		return nil
	}
	if !tournament.HasRound(round) {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf(
			"В этом турнире доступны только туры %d..%d.\nПопробуй: /table_round %d",
			tournament.RoundMin, tournament.RoundMax, defaultRound))
		return nil
	}

	rows, participants, err := b.svc.Stats.RoundTable(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		b.sendSimple(msg.Chat.ID, "На этот тур пока нет прогнозов. Можно стать первым 😉")
		return nil
	}

	lines := []string{
		fmt.Sprintf("🏁 %s · Таблица тура %d:", tournament.Name, round),
		fmt.Sprintf("Участников с прогнозами в туре: %d", participants),
	}
	lines = append(lines, leaderboardLines(rows)...)
	lines = append(lines, "", "Хочешь ворваться выше? Открой «🎯 Поставить прогноз».")
	b.sendLong(msg.Chat.ID, strings.Join(lines, "\n"))
	b.sendQuickNav(msg.Chat.ID, "Быстрые действия:", "after_table")
	return nil
}

type roundReport int

const (
	reportMVP roundReport = iota
	reportTops
	reportDigest
)

// cmdRoundReport serves /mvp_round, /tops_round and /round_digest: an
// optional round argument with the same validation for all three.
func (b *Bot) cmdRoundReport(ctx context.Context, msg *tgbotapi.Message, kind roundReport) error {
	tournament, round, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	name := msg.Command()
	args := strings.Fields(msg.CommandArguments())
	switch len(args) {
	case 0:
	case 1:
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			b.sendSimple(msg.Chat.ID, fmt.Sprintf("Номер тура должен быть числом. Пример: /%s %d", name, round))
			return nil
		}
		round = parsed
	default:
		b.sendSimple(msg.Chat.ID, fmt.Sprintf("Формат: /%s %d", name, round))
		return nil
	}
	if !tournament.HasRound(round) {
		b.sendSimple(msg.Chat.ID, fmt.Sprintf(
			"Можно использовать только туры %d..%d. Пример: /%s %d",
			tournament.RoundMin, tournament.RoundMax, name, round))
		return nil
	}
	return b.sendRoundReport(ctx, msg.Chat.ID, tournament, round, kind)
}

func (b *Bot) sendDefaultReport(ctx context.Context, chatID, userID int64, kind roundReport) error {
	tournament, round, err := b.userContext(ctx, userID)
	if err != nil {
		return err
	}
	return b.sendRoundReport(ctx, chatID, tournament, round, kind)
}

func (b *Bot) sendRoundReport(ctx context.Context, chatID int64, tournament *models.Tournament, round int, kind roundReport) error {
	rows, participants, err := b.svc.Stats.RoundTable(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	var text string
	switch kind {
	case reportMVP:
		text = mvpText(tournament, round, rows, participants)
	case reportTops:
		prev, err := b.previousRoundRows(ctx, tournament, round)
		if err != nil {
			return err
		}
		text = topsText(tournament, round, rows, prev, participants)
	case reportDigest:
		prev, err := b.previousRoundRows(ctx, tournament, round)
		if err != nil {
			return err
		}
		text = digestText(tournament, round, rows, prev, participants)
	}
	b.sendSimple(chatID, text)
	b.sendQuickNav(chatID, "Что дальше?", "after_info")
	return nil
}

func (b *Bot) previousRoundRows(ctx context.Context, tournament *models.Tournament, round int) ([]models.LeaderboardRow, error) {
	rows, _, err := b.svc.Stats.RoundTable(ctx, tournament.ID, round-1)
	return rows, err
}

// ----------------------------------------------------------------------------
// Shared senders (commands, menu buttons and quick-nav callbacks)

func (b *Bot) sendDefaultRound(ctx context.Context, chatID, userID int64) error {
	tournament, round, err := b.userContext(ctx, userID)
	if err != nil {
		return err
	}
	matches, err := b.svc.Matches.ListByRound(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	b.sendLong(chatID, b.roundMatchesText(tournament, round, matches))
	return nil
}

func (b *Bot) sendDefaultMy(ctx context.Context, chatID, userID int64) error {
	tournament, round, err := b.userContext(ctx, userID)
	if err != nil {
		return err
	}
	member, err := b.svc.Memberships.IsMember(ctx, userID, tournament.ID)
	if err != nil {
		return err
	}
	if !member {
		b.sendSimple(chatID, fmt.Sprintf(
			"Сначала зайди в турнир %s кнопкой «✅ Вступить в турнир», и сразу сможем показать твои прогнозы.",
			tournament.Name))
		return nil
	}
	return b.sendMyRound(ctx, chatID, userID, tournament, round)
}

func (b *Bot) sendMyRound(ctx context.Context, chatID, userID int64, tournament *models.Tournament, round int) error {
	matches, err := b.svc.Matches.ListByRound(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	text, err := b.myRoundText(ctx, userID, round, matches)
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		total, err := b.svc.Stats.UserRoundTotal(ctx, userID, tournament.ID, round)
		if err != nil {
			return err
		}
		text += fmt.Sprintf(
			"\n\nИтого за тур сейчас: %d очк.\nХочешь добить оставшиеся матчи? Жми «🎯 Поставить прогноз».",
			total)
	}
	b.sendLong(chatID, text)
	b.sendQuickNav(chatID, "Быстрые действия:", "after_my")
	return nil
}

func (b *Bot) sendPredictPicker(ctx context.Context, chatID, userID int64) error {
	tournament, round, err := b.userContext(ctx, userID)
	if err != nil {
		return err
	}
	member, err := b.svc.Memberships.IsMember(ctx, userID, tournament.ID)
	if err != nil {
		return err
	}
	if !member {
		b.sendSimple(chatID, fmt.Sprintf(
			"Сначала зайди в турнир %s кнопкой «✅ Вступить в турнир», и сразу сможем сохранить прогноз.",
			tournament.Name))
		return nil
	}

	matches, err := b.svc.Matches.ListByRound(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	now := b.timeNow().UTC()
	var open []models.Match
	for _, match := range matches {
		if !match.KickedOff(now) {
			open = append(open, match)
		}
	}
	if len(open) == 0 {
		b.sendSimple(chatID, fmt.Sprintf(
			"На тур %d открытых матчей уже нет.\nЗагляни в следующий: /round %d", round, round+1))
		return nil
	}

	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(open))
	for _, match := range open {
		label := fmt.Sprintf("%s — %s", match.HomeTeam, match.AwayTeam)
		data := fmt.Sprintf("pick_match|id=%d", match.ID)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData(label, data)})
	}
	text := fmt.Sprintf("Выбери матч тура %d, затем просто отправь счёт (например: 2:1).", round)
	return b.sendMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(keyboard...))
}

func (b *Bot) sendOverallTable(ctx context.Context, chatID, userID int64) error {
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	table, err := b.svc.Stats.OverallTable(ctx, tournament.ID)
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		b.sendSimple(chatID, "Пока в таблице пусто — ещё нет прогнозов.\nМожешь открыть сезон первым через «🎯 Поставить прогноз».")
		return nil
	}

	lines := []string{
		fmt.Sprintf("🏆 %s · Таблица лидеров", tournament.Name),
		fmt.Sprintf("Участников с прогнозами: %d", table.Participants),
		fmt.Sprintf("Матчей сыграно: %d / %d", table.Played, table.Total),
	}
	lines = append(lines, leaderboardLines(table.Rows)...)
	lines = append(lines, "", "Хочешь проверить свои ставки? Жми «🗂 Мои прогнозы».")
	b.sendLong(chatID, strings.Join(lines, "\n"))
	b.sendQuickNav(chatID, "Быстрые действия:", "after_table")
	return nil
}

func (b *Bot) sendStats(ctx context.Context, chatID, userID int64) error {
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	rows, err := b.svc.Stats.UserStats(ctx, tournament.ID)
	if err != nil {
		return err
	}
	b.sendLong(chatID, statsText(rows))
	b.sendQuickNav(chatID, "Что дальше?", "after_info")
	return nil
}

func (b *Bot) sendProfile(ctx context.Context, chatID, userID int64) error {
	tournament, _, err := b.userContext(ctx, userID)
	if err != nil {
		return err
	}
	member, err := b.requireMembership(ctx, chatID, userID, tournament)
	if err != nil || !member {
		return err
	}

	profile, err := b.svc.Stats.Profile(ctx, userID, tournament.ID)
	if err != nil {
		return err
	}
	user, err := b.svc.Users.Get(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	membership, err := b.svc.Memberships.Get(ctx, userID, tournament.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	b.sendSimple(chatID, profileText(resolveName(membership, user, userID), tournament, profile))
	b.sendQuickNav(chatID, "Что дальше?", "after_info")
	return nil
}

func (b *Bot) sendHistory(ctx context.Context, chatID, userID int64) error {
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🗂 История туров · %s\nВыбери тур — покажу матчи и статус прогнозов.", tournament.Name)
	return b.sendMarkup(chatID, text, historyKeyboard(tournament.RoundMin, tournament.RoundMax))
}

func (b *Bot) sendHelp(ctx context.Context, chatID, userID int64) error {
	tournament, round, err := b.userContext(ctx, userID)
	if err != nil {
		return err
	}
	b.sendSimple(chatID, fmt.Sprintf(
		"❓ Помощь\n\n"+
			"Сейчас ты в турнире: %s\n"+
			"Диапазон туров: %d..%d\n\n"+
			"Самый удобный путь — кнопки внизу:\n"+
			"✅ Вступить в турнир\n"+
			"📅 Матчи тура\n"+
			"🎯 Поставить прогноз\n"+
			"🗂 Мои прогнозы\n"+
			"🏆 Общая таблица\n"+
			"📊 Статистика\n"+
			"👤 Мой профиль\n"+
			"📘 Правила\n\n"+
			"Дополнительно командами:\n"+
			"/round N\n"+
			"/my N\n"+
			"/table_round N\n"+
			"/history\n"+
			"/mvp_round N\n"+
			"/tops_round N\n\n"+
			"/round_digest N\n\n"+
			"Стартовый тур сейчас: %d\n"+
			"Если что-то не получается, просто напиши команду ещё раз — подскажу формат.",
		tournament.Name, tournament.RoundMin, tournament.RoundMax, round))
	return nil
}

func (b *Bot) sendRules(ctx context.Context, chatID, userID int64) error {
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	b.sendSimple(chatID, fmt.Sprintf(
		"📘 Правила турнира (коротко)\n\n"+
			"Турнир: %s\n"+
			"Туры: %d..%d\n"+
			"Очки:\n"+
			"🎯 точный счёт — 4\n"+
			"📏 разница + исход — 2\n"+
			"✅ только исход — 1\n"+
			"❌ мимо — 0\n\n"+
			"⛔️ После начала матча прогноз ставить/менять нельзя.\n"+
			"🕒 Время матчей и дедлайны — по Москве (МСК).\n\n"+
			"Дальше проще всего так: «📅 Матчи тура» → «🎯 Поставить прогноз».",
		tournament.Name, tournament.RoundMin, tournament.RoundMax))
	b.sendQuickNav(chatID, "Что дальше?", "after_info")
	return nil
}

// ----------------------------------------------------------------------------
// Admin commands

const adminDeniedText = "⛔️ У вас нет прав на эту команду."

func (b *Bot) cmdAdminAddMatch(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	tournament, defaultRound, err := b.userContext(ctx, msg.From.ID)
	if err != nil {
		return err
	}

	parts := strings.Split(msg.CommandArguments(), "|")
	if len(parts) != 4 {
		b.sendSimple(chatID, fmt.Sprintf("Формат: /admin_add_match %d | TeamA | TeamB | YYYY-MM-DD HH:MM", defaultRound))
		return nil
	}
	round, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		b.sendSimple(chatID, fmt.Sprintf("Не смог прочитать номер тура. Пример: /admin_add_match %d | ...", defaultRound))
		return nil
	}
	if !tournament.HasRound(round) {
		b.sendSimple(chatID, fmt.Sprintf(
			"Можно добавлять матчи только для туров %d..%d. Пример: /admin_add_match %d | TeamA | TeamB | YYYY-MM-DD HH:MM",
			tournament.RoundMin, tournament.RoundMax, defaultRound))
		return nil
	}

	home := strings.TrimSpace(parts[1])
	away := strings.TrimSpace(parts[2])
	rawKickoff := strings.TrimSpace(parts[3])
	kickoff, ok := parseKickoffInput(rawKickoff, b.loc)
	if !ok {
		b.sendSimple(chatID, "Не смог прочитать дату. Формат: YYYY-MM-DD HH:MM (пример: 2026-03-01 19:00)")
		return nil
	}

	matchID, err := b.svc.Matches.CreateManual(ctx, service.CreateMatchInput{
		TournamentID: tournament.ID,
		RoundNumber:  round,
		HomeTeam:     home,
		AwayTeam:     away,
		KickoffAt:    kickoff,
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			b.sendSimple(chatID, fmt.Sprintf("Формат: /admin_add_match %d | TeamA | TeamB | YYYY-MM-DD HH:MM", defaultRound))
			return nil
		}
		return err
	}
	b.logger.Info("add_match", "match", matchID, msg.From.ID, "ok")
	b.sendSimple(chatID, fmt.Sprintf("✅ Матч добавлен: #%d | тур %d | %s — %s | %s (МСК)",
		matchID, round, home, away, rawKickoff))
	return nil
}

func (b *Bot) cmdAdminSetResult(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return b.sendAdminTournamentPicker(ctx, chatID)
	}
	if len(args) != 2 {
		b.sendSimple(chatID,
			"Формат:\n"+
				"1) /admin_set_result (кнопки выбора)\n"+
				"2) /admin_set_result <match_id> <score> (пример: /admin_set_result 12 2:0)")
		return nil
	}
	matchID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendSimple(chatID, "match_id должен быть числом.")
		return nil
	}
	homeScore, awayScore, ok := parseScore(args[1])
	if !ok {
		b.sendSimple(chatID, "Счёт должен быть формата 2:0 или 2-0")
		return nil
	}
	return b.applyResult(ctx, chatID, msg.From.ID, matchID, homeScore, awayScore)
}

// applyResult stores the final score and recomputes the match's points.
func (b *Bot) applyResult(ctx context.Context, chatID, adminID, matchID int64, homeScore, awayScore int) error {
	match, err := b.svc.Matches.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.sendSimple(chatID, "Матч не найден.")
			return nil
		}
		return err
	}
	if err := b.svc.Matches.SetResult(ctx, matchID, homeScore, awayScore); err != nil {
		return err
	}
	updates, err := b.svc.Scoring.RecomputeForMatch(ctx, matchID)
	if err != nil {
		return err
	}
	b.logger.Info("set_result", "match", matchID, adminID, "ok")
	b.sendSimple(chatID, fmt.Sprintf("✅ Результат сохранён: %s — %s | %d:%d. Пересчитано очков: %d",
		match.HomeTeam, match.AwayTeam, homeScore, awayScore, updates))
	return nil
}

func (b *Bot) sendAdminTournamentPicker(ctx context.Context, chatID int64) error {
	tournaments, err := b.svc.Tournaments.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(tournaments) == 0 {
		b.sendSimple(chatID, "Нет активных турниров.")
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(tournaments))
	for _, tournament := range tournaments {
		data := fmt.Sprintf("admin_res_t|id=%d", tournament.ID)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(tournament.Name, data),
		})
	}
	return b.sendMarkup(chatID, "Выбери турнир для внесения результата:", tgbotapi.NewInlineKeyboardMarkup(keyboard...))
}

// handleAdminResultTournament picks the earliest round that still has
// unfinished matches, preferring rounds that have not started yet.
func (b *Bot) handleAdminResultTournament(ctx context.Context, cb *tgbotapi.CallbackQuery, tournamentID int64) error {
	if tournamentID == 0 {
		b.alertCallback(cb.ID, "Ошибка выбора турнира")
		return nil
	}
	tournament, err := b.svc.Tournaments.Get(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.alertCallback(cb.ID, "Турнир не найден")
			return nil
		}
		return err
	}

	chatID := cb.Message.Chat.ID
	now := b.timeNow().UTC()
	round, err := b.svc.Matches.EarliestUnfinishedRound(ctx, tournamentID, &now)
	if err != nil {
		return err
	}
	if round == nil {
		if round, err = b.svc.Matches.EarliestUnfinishedRound(ctx, tournamentID, nil); err != nil {
			return err
		}
	}
	if round == nil {
		b.sendSimple(chatID, fmt.Sprintf("В турнире %s нет матчей без результата.", tournament.Name))
		b.answerCallback(cb.ID)
		return nil
	}

	matches, err := b.svc.Matches.ListUnfinishedByRound(ctx, tournamentID, *round)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		b.sendSimple(chatID, "Матчи не найдены.")
		b.answerCallback(cb.ID)
		return nil
	}

	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(matches))
	for _, match := range matches {
		label := fmt.Sprintf("%s — %s | %s", match.HomeTeam, match.AwayTeam, match.KickoffAt.In(b.loc).Format("02.01 15:04"))
		data := fmt.Sprintf("admin_res_m|id=%d", match.ID)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData(label, data)})
	}
	text := fmt.Sprintf("Турнир: %s\nТур: %d\nВыбери матч:", tournament.Name, *round)
	if err := b.sendMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(keyboard...)); err != nil {
		return err
	}
	b.answerCallback(cb.ID)
	return nil
}

func (b *Bot) handleAdminResultMatch(ctx context.Context, cb *tgbotapi.CallbackQuery, matchID int64) error {
	if matchID == 0 {
		b.alertCallback(cb.ID, "Ошибка выбора матча")
		return nil
	}
	match, err := b.svc.Matches.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.alertCallback(cb.ID, "Матч не найден")
			return nil
		}
		return err
	}

	state := &wizardState{
		Flow: flowAdminResult,
		Data: map[string]string{"match_id": strconv.FormatInt(matchID, 10)},
	}
	if err := b.svc.Sessions.Save(ctx, cb.From.ID, state.Flow, state); err != nil {
		return err
	}
	b.sendSimple(cb.Message.Chat.ID, fmt.Sprintf("Матч: %s — %s\nОтправь только счёт: 2:1", match.HomeTeam, match.AwayTeam))
	b.answerCallback(cb.ID)
	return nil
}

func (b *Bot) cmdAdminRecalc(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) > 0 {
		matchID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendSimple(chatID, "match_id должен быть числом.")
			return nil
		}
		updates, err := b.svc.Scoring.RecomputeForMatch(ctx, matchID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				b.sendSimple(chatID, "Матч не найден.")
				return nil
			}
			return err
		}
		b.logger.Info("recalc", "match", matchID, msg.From.ID, "ok")
		b.sendSimple(chatID, fmt.Sprintf("✅ Пересчёт завершён. Обновлений: %d", updates))
		return nil
	}

	updates, err := b.svc.Scoring.RecomputeAll(ctx)
	if err != nil {
		b.sendSimple(chatID, fmt.Sprintf("⚠️ Пересчёт завершён с ошибками. Обновлений: %d", updates))
		return err
	}
	b.logger.Info("recalc", "all", 0, msg.From.ID, "ok")
	b.sendSimple(chatID, fmt.Sprintf("✅ Пересчёт завершён. Обновлений: %d", updates))
	return nil
}

func (b *Bot) cmdAdminResetResult(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendSimple(chatID, "Формат: /admin_reset_result 12")
		return nil
	}
	matchID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendSimple(chatID, "match_id должен быть числом.")
		return nil
	}
	match, err := b.svc.Matches.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.sendSimple(chatID, "Матч не найден.")
			return nil
		}
		return err
	}
	if err := b.svc.Matches.ResetResult(ctx, matchID); err != nil {
		return err
	}
	b.logger.Info("reset_result", "match", matchID, msg.From.ID, "ok")
	b.sendSimple(chatID, fmt.Sprintf("✅ Результат сброшен: %s — %s. Очки за матч удалены.", match.HomeTeam, match.AwayTeam))
	return nil
}

func (b *Bot) cmdAdminHealth(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	counts, err := b.svc.Stats.Health(ctx)
	if err != nil {
		return err
	}
	b.sendSimple(chatID, fmt.Sprintf(
		"🩺 DB health\nusers: %d\nmatches: %d\npredictions: %d\npoints: %d",
		counts.Users, counts.Matches, counts.Predictions, counts.Points))
	return nil
}

func (b *Bot) cmdAdminSetWindow(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.sendSimple(chatID, "Формат: /admin_set_window 2026-03-01 2026-05-31")
		return nil
	}
	start, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		b.sendSimple(chatID, "Даты должны быть формата YYYY-MM-DD (пример: 2026-03-01)")
		return nil
	}
	end, err := time.Parse("2006-01-02", args[1])
	if err != nil {
		b.sendSimple(chatID, "Даты должны быть формата YYYY-MM-DD (пример: 2026-03-01)")
		return nil
	}
	if err := b.svc.Settings.SetWindow(ctx, start, end); err != nil {
		if errors.Is(err, models.ErrValidation) {
			b.sendSimple(chatID, "Дата окончания не может быть раньше даты начала.")
			return nil
		}
		return err
	}
	b.logger.Info("set_window", "settings", 0, msg.From.ID, "ok")
	b.sendSimple(chatID, fmt.Sprintf("✅ Окно турнира установлено: %s .. %s", args[0], args[1]))
	return nil
}

func (b *Bot) cmdAdminRemoveUser(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.sendSimple(chatID, "Формат: /admin_remove_user 210477579")
		return nil
	}
	telegramID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendSimple(chatID, "tg_user_id должен быть числом.")
		return nil
	}
	if err := b.svc.Users.Remove(ctx, telegramID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.sendSimple(chatID, fmt.Sprintf("Пользователь %d не найден.", telegramID))
			return nil
		}
		return err
	}
	b.logger.Info("remove_user", "user", telegramID, msg.From.ID, "ok")
	b.sendSimple(chatID, fmt.Sprintf("✅ Пользователь %d удалён (users + predictions + points).", telegramID))
	return nil
}

// ----------------------------------------------------------------------------
// Wizards

type wizardState struct {
	Flow string            `json:"flow"`
	Step int               `json:"step"`
	Data map[string]string `json:"data"`
}

func (b *Bot) advanceWizard(ctx context.Context, msg *tgbotapi.Message, state *wizardState) error {
	switch state.Flow {
	case flowJoin:
		return b.advanceJoinWizard(ctx, msg, state)
	case flowPredictBlock:
		return b.advancePredictBlockWizard(ctx, msg, state)
	case flowSingleScore:
		return b.advanceSingleScoreWizard(ctx, msg, state)
	case flowAdminResult:
		return b.advanceAdminResultWizard(ctx, msg, state)
	default:
		return nil
	}
}

func (b *Bot) startJoin(ctx context.Context, chatID, userID int64) error {
	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	state := &wizardState{
		Flow: flowJoin,
		Data: map[string]string{
			"tournament_id":   strconv.FormatInt(tournament.ID, 10),
			"tournament_name": tournament.Name,
		},
	}
	if err := b.svc.Sessions.Save(ctx, userID, state.Flow, state); err != nil {
		return err
	}
	b.sendSimple(chatID, fmt.Sprintf(
		"Вступление в %s.\nВведи имя для таблицы (2-24 символа).\nПример: Роман", tournament.Name))
	return nil
}

func (b *Bot) advanceJoinWizard(ctx context.Context, msg *tgbotapi.Message, state *wizardState) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	tournamentID := parseInt64(state.Data["tournament_id"])
	tournamentName := state.Data["tournament_name"]
	if tournamentID == 0 {
		tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
		if err != nil {
			return err
		}
		tournamentID = tournament.ID
		tournamentName = tournament.Name
	}

	displayName := service.NormalizeDisplayName(msg.Text)
	created, err := b.svc.Memberships.Join(ctx, userID, tournamentID, displayName)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			b.sendSimple(chatID, "Имя должно быть длиной 2-24 символа. Попробуй ещё раз.")
			return nil
		}
		return err
	}
	if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
		return err
	}

	b.sendSimple(chatID, fmt.Sprintf("✅ Ты в турнире: %s\nИмя в таблице: %s", tournamentName, displayName))
	if created {
		b.notifyAdminsNewJoin(userID, msg.From.UserName, displayName, tournamentName)
	}
	return nil
}

func (b *Bot) notifyAdminsNewJoin(userID int64, username, displayName, tournamentName string) {
	if len(b.admins) == 0 {
		return
	}
	login := strconv.FormatInt(userID, 10)
	if username != "" {
		login = "@" + username
	}
	text := fmt.Sprintf("👤 Новый участник турнира\nИмя: %s\nЛогин: %s\nТурнир: %s",
		displayName, login, tournamentName)
	for adminID := range b.admins {
		if err := b.SendText(adminID, text); err != nil {
			b.logger.Error(err, "notify_join", "user", userID, adminID)
		}
	}
}

func (b *Bot) openPredictBlock(ctx context.Context, chatID, userID int64, tournament *models.Tournament, round int) error {
	matches, err := b.svc.Matches.ListByRound(ctx, tournament.ID, round)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		b.sendSimple(chatID, fmt.Sprintf("В туре %d пока нет матчей.", round))
		return nil
	}
	now := b.timeNow().UTC()
	var open []models.Match
	for _, match := range matches {
		if !match.KickedOff(now) {
			open = append(open, match)
		}
	}
	if len(open) == 0 {
		b.sendSimple(chatID, "Все матчи тура уже закрыты. Нечего прогнозировать.")
		return nil
	}

	lines := []string{fmt.Sprintf(
		"🧾 Ввод прогнозов на тур %d.\n"+
			"Отправь одним сообщением прогнозы в формате:\n"+
			"ID счёт\n"+
			"Пример:\n"+
			"1 2:0\n2 1:1\n\n"+
			"Открытые матчи:", round)}
	for _, match := range open {
		lines = append(lines, fmt.Sprintf("%s ID %d: %s — %s (%s МСК)",
			matchStatusIcon(match, now), match.ID, match.HomeTeam, match.AwayTeam,
			match.KickoffAt.In(b.loc).Format("2006-01-02 15:04")))
	}

	state := &wizardState{
		Flow: flowPredictBlock,
		Data: map[string]string{"round": strconv.Itoa(round)},
	}
	if err := b.svc.Sessions.Save(ctx, userID, state.Flow, state); err != nil {
		return err
	}
	b.sendLong(chatID, strings.Join(lines, "\n"))
	return nil
}

// advancePredictBlockWizard parses "ID score" lines from one message.
// Unparseable lines count as errors, unknown or locked matches as skips,
// so one bad row never discards the rest of the block.
func (b *Bot) advancePredictBlockWizard(ctx context.Context, msg *tgbotapi.Message, state *wizardState) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	round := parseIntParam(state.Data, "round", 0)
	if round == 0 {
		if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
			return err
		}
		b.sendSimple(chatID, "⚠️ Сессия сбилась. Начни заново: /predict_round N")
		return nil
	}

	var lines []string
	for _, line := range strings.Split(msg.Text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		b.sendSimple(chatID, "Сообщение пустое. Пришли строки в формате: `ID счёт`.")
		return nil
	}

	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	now := b.timeNow().UTC()

	var saved, skipped, failed int
	for _, line := range lines {
		parts := strings.Fields(strings.ReplaceAll(line, "-", ":"))
		if len(parts) != 2 {
			failed++
			continue
		}
		matchID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			failed++
			continue
		}
		predHome, predAway, ok := parseScore(parts[1])
		if !ok {
			failed++
			continue
		}

		match, err := b.svc.Matches.Get(ctx, matchID)
		if errors.Is(err, models.ErrNotFound) {
			skipped++
			continue
		}
		if err != nil {
			return err
		}
		if match.TournamentID != tournament.ID || match.RoundNumber != round || match.KickedOff(now) {
			skipped++
			continue
		}
		if err := b.svc.Predictions.Submit(ctx, userID, matchID, predHome, predAway); err != nil {
			if errors.Is(err, models.ErrValidation) {
				skipped++
				continue
			}
			return err
		}
		saved++
	}

	if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
		return err
	}
	b.sendSimple(chatID, fmt.Sprintf(
		"✅ Готово! Сохранено: %d | Пропущено: %d | Ошибок: %d\nПроверить всё можно через «🗂 Мои прогнозы».",
		saved, skipped, failed))
	b.sendQuickNav(chatID, "Что дальше?", "after_predict")
	return nil
}

func (b *Bot) advanceSingleScoreWizard(ctx context.Context, msg *tgbotapi.Message, state *wizardState) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	matchID := parseInt64(state.Data["match_id"])
	if matchID == 0 {
		if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
			return err
		}
		b.sendSimple(chatID, "Похоже, сессия сбилась. Нажми «🎯 Поставить прогноз» и попробуй ещё раз.")
		return nil
	}

	predHome, predAway, ok := parseScore(msg.Text)
	if !ok {
		b.sendSimple(chatID, "Не смог прочитать счёт. Отправь только формат `2:1`.")
		return nil
	}

	tournament, err := b.svc.Tournaments.SelectedFor(ctx, userID)
	if err != nil {
		return err
	}
	match, err := b.svc.Matches.Get(ctx, matchID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if err != nil || match.TournamentID != tournament.ID {
		if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
			return err
		}
		b.sendSimple(chatID, "Не нашёл этот матч. Нажми «🎯 Поставить прогноз» и выбери его из списка.")
		return nil
	}
	if match.KickedOff(b.timeNow().UTC()) {
		if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
			return err
		}
		b.sendSimple(chatID, "🔒 На этот матч прогноз уже закрыт. Можно выбрать другой открытый матч.")
		return nil
	}

	if err := b.svc.Predictions.Submit(ctx, userID, matchID, predHome, predAway); err != nil {
		if errors.Is(err, models.ErrValidation) {
			b.sendSimple(chatID, "Счёт нужен в формате 2:0 (или 2-0).")
			return nil
		}
		return err
	}
	if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
		return err
	}
	text := fmt.Sprintf("✅ Прогноз: %s — %s | %d:%d", match.HomeTeam, match.AwayTeam, predHome, predAway)
	return b.sendMarkup(chatID, text, quickNavKeyboard("after_predict"))
}

func (b *Bot) advanceAdminResultWizard(ctx context.Context, msg *tgbotapi.Message, state *wizardState) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if !b.isAdmin(userID) {
		if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
			return err
		}
		b.sendSimple(chatID, adminDeniedText)
		return nil
	}
	matchID := parseInt64(state.Data["match_id"])
	if matchID == 0 {
		if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
			return err
		}
		b.sendSimple(chatID, "Сессия сброшена. Запусти /admin_set_result заново.")
		return nil
	}
	homeScore, awayScore, ok := parseScore(msg.Text)
	if !ok {
		b.sendSimple(chatID, "Счёт должен быть формата 2:0 или 2-0")
		return nil
	}
	if err := b.svc.Sessions.Clear(ctx, userID); err != nil {
		return err
	}
	return b.applyResult(ctx, chatID, userID, matchID, homeScore, awayScore)
}

// ----------------------------------------------------------------------------
// Renderers

func (b *Bot) roundMatchesText(tournament *models.Tournament, round int, matches []models.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf(
			"В туре %d пока нет матчей.\nПроверь соседний тур или загляни позже — расписание может обновиться.",
			round)
	}
	now := b.timeNow().UTC()
	lines := []string{fmt.Sprintf("📅 %s · Тур %d (МСК)", tournament.Name, round)}
	for _, match := range matches {
		line := fmt.Sprintf("%s %s — %s | %s",
			matchStatusIcon(match, now), match.HomeTeam, match.AwayTeam,
			match.KickoffAt.In(b.loc).Format("02.01 15:04"))
		if match.HasResult() {
			line += fmt.Sprintf(" | %d:%d", *match.HomeScore, *match.AwayScore)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "🟢 прогноз открыт · 🔒 прогноз закрыт · ✅ есть итог")
	return strings.Join(lines, "\n")
}

func (b *Bot) myRoundText(ctx context.Context, userID int64, round int, matches []models.Match) (string, error) {
	if len(matches) == 0 {
		return fmt.Sprintf("В туре %d пока нет матчей.", round), nil
	}
	matchIDs := make([]int64, len(matches))
	for i, match := range matches {
		matchIDs[i] = match.ID
	}
	predictions, err := b.svc.Predictions.ListByUserAndMatches(ctx, userID, matchIDs)
	if err != nil {
		return "", err
	}
	points, err := b.svc.Stats.UserPoints(ctx, userID, matchIDs)
	if err != nil {
		return "", err
	}

	predByMatch := make(map[int64]models.Prediction, len(predictions))
	for _, prediction := range predictions {
		predByMatch[prediction.MatchID] = prediction
	}
	pointByMatch := make(map[int64]models.Point, len(points))
	for _, point := range points {
		pointByMatch[point.MatchID] = point
	}

	lines := []string{fmt.Sprintf("🧾 Мои прогнозы — тур %d:", round)}
	for _, match := range matches {
		predText := "—"
		if prediction, ok := predByMatch[match.ID]; ok {
			predText = fmt.Sprintf("%d:%d", prediction.PredHome, prediction.PredAway)
		}
		line := fmt.Sprintf("#%d %s — %s | прогноз: %s", match.ID, match.HomeTeam, match.AwayTeam, predText)
		if match.HasResult() {
			line += fmt.Sprintf(" | итог %d:%d", *match.HomeScore, *match.AwayScore)
			if point, ok := pointByMatch[match.ID]; ok {
				line += fmt.Sprintf(" | очки %d (%s)", point.Points, point.Category)
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func leaderboardLines(rows []models.LeaderboardRow) []string {
	if len(rows) > tableLimit {
		rows = rows[:tableLimit]
	}
	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		lines = append(lines, fmt.Sprintf("%d. %s — %d очк. | 🎯%d | 📏%d | ✅%d",
			i+1, row.Name, row.Total, row.Exact, row.Difference, row.Outcome))
	}
	return lines
}

func statsText(rows []models.UserStatsRow) string {
	if len(rows) == 0 {
		return "Пока нет статистики по очкам.\nКак только появятся результаты матчей, таблица здесь сразу оживёт."
	}
	lines := []string{"📊 Подробная статистика (топ-20):"}
	for i, row := range rows {
		scored := row.Scored
		if scored == 0 {
			scored = 1
		}
		pct := func(v int) int {
			return int(math.Round(float64(v*100) / float64(scored)))
		}
		lines = append(lines, fmt.Sprintf(
			"%d. %s — %d очк. | 🎯%d (%d%%) | 📏%d (%d%%) | ✅%d (%d%%) | ❌%d (%d%%) | всего: %d",
			i+1, row.Name, row.Total,
			row.Exact, pct(row.Exact),
			row.Difference, pct(row.Difference),
			row.Outcome, pct(row.Outcome),
			row.Miss, pct(row.Miss),
			row.Scored))
	}
	return strings.Join(lines, "\n")
}

func profileText(name string, tournament *models.Tournament, profile *service.ProfileData) string {
	place := profile.Rank
	if place == 0 {
		place = profile.Ranked + 1
	}
	form := "нет данных"
	if len(profile.Form) > 0 {
		parts := make([]string, 0, len(profile.Form))
		for i := len(profile.Form) - 1; i >= 0; i-- {
			parts = append(parts, fmt.Sprintf("Т%d:%d", profile.Form[i].RoundNumber, profile.Form[i].Points))
		}
		form = strings.Join(parts, " | ")
	}
	return fmt.Sprintf(
		"👤 Профиль: %s\n"+
			"Турнир: %s\n"+
			"Место в общем зачёте: %d\n"+
			"Очки: %d\n"+
			"Прогнозов: %d\n"+
			"🎯%d | 📏%d | ✅%d\n"+
			"🔥 Текущая серия (матчи с очками): %d\n"+
			"🏅 Лучшая серия: %d\n"+
			"Средние очки за тур: %.2f\n"+
			"Форма (последние туры): %s\n\n"+
			"Хочешь подняться выше? Открой «📅 Матчи тура» и добавь свежие прогнозы.",
		name, tournament.Name, place, profile.Total, profile.Predictions,
		profile.Exact, profile.Difference, profile.Outcome,
		profile.CurrentStreak, profile.BestStreak, profile.AvgPerRound, form)
}

func mvpText(tournament *models.Tournament, round int, rows []models.LeaderboardRow, participants int) string {
	if len(rows) == 0 {
		return fmt.Sprintf(
			"В туре %d пока нет данных для MVP.\nКак только появятся результаты и очки, сразу покажу лучших.",
			round)
	}
	best := rows[0].Total
	var winners []models.LeaderboardRow
	for _, row := range rows {
		if row.Total == best {
			winners = append(winners, row)
		}
	}

	lines := []string{fmt.Sprintf("🏅 MVP тура %d (%s)", round, tournament.Name), ""}
	lines = append(lines, fmt.Sprintf("Лучший результат тура: %d очк.", best))
	if len(winners) == 1 {
		lines = append(lines, fmt.Sprintf("MVP: %s", winners[0].Name))
	} else {
		lines = append(lines, "MVP разделили:")
		for i, winner := range winners {
			if i == 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("• %s", winner.Name))
		}
	}
	lines = append(lines, "", "Топ-3 тура:")
	for i, row := range rows {
		if i == 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s — %d очк.", i+1, row.Name, row.Total))
	}
	lines = append(lines, fmt.Sprintf("Участников в туре: %d", participants))
	lines = append(lines, "", "Хочешь попасть сюда? Жми «🎯 Поставить прогноз».")
	return strings.Join(lines, "\n")
}

func topsText(tournament *models.Tournament, round int, rows, prev []models.LeaderboardRow, participants int) string {
	if len(rows) == 0 {
		return fmt.Sprintf(
			"В туре %d пока нет данных для топов.\nСначала нужны прогнозы и результаты матчей.",
			round)
	}
	breakthrough := fmt.Sprintf("%s — %d очк. (лучший результат тура)", rows[0].Name, rows[0].Total)
	if name, delta, total, ok := bestRoundDelta(rows, prev); ok && delta > 0 {
		breakthrough = fmt.Sprintf("%s — +%d к прошлому туру (%d очк.)", name, delta, total)
	}

	lines := []string{
		fmt.Sprintf("⭐ Топы тура %d (%s)", round, tournament.Name),
		fmt.Sprintf("Участников: %d", participants),
		"",
		fmt.Sprintf("🎯 Снайпер тура: %s", topNames(rows, func(r models.LeaderboardRow) int { return r.Exact })),
		fmt.Sprintf("📏 Мастер разницы: %s", topNames(rows, func(r models.LeaderboardRow) int { return r.Difference })),
		fmt.Sprintf("✅ Король исходов: %s", topNames(rows, func(r models.LeaderboardRow) int { return r.Outcome })),
		fmt.Sprintf("🚀 Прорыв тура: %s", breakthrough),
		"",
		"Хочешь залететь в топы? Вперёд в «🎯 Поставить прогноз».",
	}
	return strings.Join(lines, "\n")
}

func digestText(tournament *models.Tournament, round int, rows, prev []models.LeaderboardRow, participants int) string {
	if len(rows) == 0 {
		return fmt.Sprintf(
			"В туре %d пока нет данных для итогов.\nКак только появятся результаты и очки, соберу красивую сводку.",
			round)
	}
	best := rows[0].Total
	var mvpNames []string
	for _, row := range rows {
		if row.Total == best {
			mvpNames = append(mvpNames, row.Name)
		}
	}
	breakthrough := fmt.Sprintf("%s — %d очк.", rows[0].Name, rows[0].Total)
	if name, delta, total, ok := bestRoundDelta(rows, prev); ok && delta > 0 {
		breakthrough = fmt.Sprintf("%s — +%d к прошлому туру (%d очк.)", name, delta, total)
	}

	lines := []string{
		fmt.Sprintf("🏁 Итоги тура %d (%s)", round, tournament.Name),
		"",
		fmt.Sprintf("🏅 MVP: %s — %d очк.", strings.Join(mvpNames, ", "), best),
		fmt.Sprintf("🎯 Топ точных: %s", topNames(rows, func(r models.LeaderboardRow) int { return r.Exact })),
		fmt.Sprintf("📏 Топ разницы: %s", topNames(rows, func(r models.LeaderboardRow) int { return r.Difference })),
		fmt.Sprintf("✅ Топ исходов: %s", topNames(rows, func(r models.LeaderboardRow) int { return r.Outcome })),
		fmt.Sprintf("🚀 Прорыв тура: %s", breakthrough),
		"",
		fmt.Sprintf("Участников в туре: %d", participants),
		"Следующий тур открыт. Время ставить прогнозы: «🎯 Поставить прогноз».",
	}
	return strings.Join(lines, "\n")
}

// topNames lists up to three leaders of one category, or a dash when
// nobody scored in it.
func topNames(rows []models.LeaderboardRow, value func(models.LeaderboardRow) int) string {
	max := 0
	for _, row := range rows {
		if value(row) > max {
			max = value(row)
		}
	}
	if max == 0 {
		return "—"
	}
	var names []string
	for _, row := range rows {
		if value(row) == max {
			names = append(names, row.Name)
			if len(names) == 3 {
				break
			}
		}
	}
	return strings.Join(names, ", ")
}

// bestRoundDelta finds the participant with the biggest round-over-round
// improvement among those present in both rounds.
func bestRoundDelta(rows, prev []models.LeaderboardRow) (string, int, int, bool) {
	prevTotals := make(map[int64]int, len(prev))
	for _, row := range prev {
		prevTotals[row.TelegramID] = row.Total
	}
	type entry struct {
		name  string
		delta int
		total int
	}
	var entries []entry
	for _, row := range rows {
		prevTotal, ok := prevTotals[row.TelegramID]
		if !ok {
			continue
		}
		entries = append(entries, entry{name: row.Name, delta: row.Total - prevTotal, total: row.Total})
	}
	if len(entries) == 0 {
		return "", 0, 0, false
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].delta != entries[j].delta {
			return entries[i].delta > entries[j].delta
		}
		return entries[i].total > entries[j].total
	})
	return entries[0].name, entries[0].delta, entries[0].total, true
}

func resolveName(membership *models.Membership, user *models.User, telegramID int64) string {
	if membership != nil && membership.DisplayName != nil && *membership.DisplayName != "" {
		return *membership.DisplayName
	}
	if user != nil {
		if user.DisplayName != nil && *user.DisplayName != "" {
			return *user.DisplayName
		}
		if user.Username != nil && *user.Username != "" {
			return "@" + *user.Username
		}
		if user.FullName != nil && *user.FullName != "" {
			return *user.FullName
		}
	}
	return strconv.FormatInt(telegramID, 10)
}

// ----------------------------------------------------------------------------
// Keyboards

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🇷🇺 РПЛ"),
			tgbotapi.NewKeyboardButton("🇬🇧 АПЛ"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("✅ Вступить в турнир"),
			tgbotapi.NewKeyboardButton("📅 Матчи тура"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🎯 Поставить прогноз"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗂 Мои прогнозы"),
			tgbotapi.NewKeyboardButton("🏆 Общая таблица"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("👤 Мой профиль"),
			tgbotapi.NewKeyboardButton("📊 Статистика"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("❓ Помощь"),
			tgbotapi.NewKeyboardButton("📘 Правила"),
		),
	)
	keyboard.InputFieldPlaceholder = "Выберите действие из меню ниже"
	return keyboard
}

func quickNavKeyboard(kind string) tgbotapi.InlineKeyboardMarkup {
	myButton := tgbotapi.NewInlineKeyboardButtonData("🗂 Мои прогнозы", "qnav|to=my")
	roundButton := tgbotapi.NewInlineKeyboardButtonData("📅 Матчи тура", "qnav|to=round")
	predictButton := tgbotapi.NewInlineKeyboardButtonData("🎯 Поставить прогноз", "qnav|to=predict")
	tableButton := tgbotapi.NewInlineKeyboardButtonData("🏆 Общая таблица", "qnav|to=table")

	switch kind {
	case "after_predict":
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{myButton, roundButton},
			[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("🎯 Ещё прогноз", "qnav|to=predict")},
		)
	case "after_table":
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{predictButton, myButton},
		)
	case "after_my":
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{predictButton, roundButton},
			[]tgbotapi.InlineKeyboardButton{tableButton},
		)
	case "after_info":
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{roundButton, predictButton},
			[]tgbotapi.InlineKeyboardButton{myButton},
		)
	default:
		return tgbotapi.NewInlineKeyboardMarkup()
	}
}

func historyKeyboard(roundMin, roundMax int) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for round := roundMin; round <= roundMax; round++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(round), fmt.Sprintf("history_round|r=%d", round)))
		if len(row) == 4 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// ----------------------------------------------------------------------------
// Sending helpers

func (b *Bot) sendSimple(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = b.api.Send(msg)
}

func (b *Bot) sendMarkup(chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendQuickNav(chatID int64, prompt, kind string) {
	if err := b.sendMarkup(chatID, prompt, quickNavKeyboard(kind)); err != nil {
		b.logger.Error(err, "send_quick_nav", "chat", chatID, 0)
	}
}

func (b *Bot) sendLong(chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		b.sendSimple(chatID, chunk)
	}
}

func (b *Bot) answerCallback(id string) {
	_, _ = b.api.Request(tgbotapi.NewCallback(id, ""))
}

func (b *Bot) alertCallback(id, text string) {
	_, _ = b.api.Request(tgbotapi.NewCallbackWithAlert(id, text))
}

// ----------------------------------------------------------------------------
// Parsing helpers

type callbackPayload struct {
	Action string
	Params map[string]string
}

func parseCallback(data string) (*callbackPayload, error) {
	parts := strings.Split(data, "|")
	if len(parts) == 0 || parts[0] == "" {
		return nil, errors.New("empty callback")
	}
	payload := &callbackPayload{
		Action: parts[0],
		Params: map[string]string{},
	}
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		payload.Params[kv[0]] = kv[1]
	}
	return payload, nil
}

// parseScore reads "2:1" and the keyboard-friendly "2-1" form.
func parseScore(text string) (int, int, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "-", ":")
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	home, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	away, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return home, away, true
}

// parseKickoffInput reads the admin-entered kickoff. Messenger keyboards
// produce long dashes and "T" separators, both are normalized away. The
// wall time is interpreted in the club zone.
func parseKickoffInput(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.NewReplacer("—", "-", "–", "-", "−", "-").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "T", " ")

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func matchStatusIcon(match models.Match, now time.Time) string {
	if match.HasResult() {
		return "✅"
	}
	if match.KickedOff(now) {
		return "🔒"
	}
	return "🟢"
}

// splitMessage cuts a long text into Telegram-sized chunks, preferring
// line boundaries and falling back to hard cuts for oversized lines.
func splitMessage(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= max {
		return []string{text}
	}

	var chunks []string
	var buf []string
	bufLen := 0
	flush := func() {
		if len(buf) > 0 {
			chunks = append(chunks, strings.TrimSpace(strings.Join(buf, "\n")))
			buf = nil
			bufLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := len([]rune(line))
		addLen := lineLen
		if len(buf) > 0 {
			addLen++
		}
		if bufLen+addLen <= max {
			buf = append(buf, line)
			bufLen += addLen
			continue
		}
		flush()
		if lineLen > max {
			runes := []rune(line)
			for start := 0; start < len(runes); start += max {
				end := start + max
				if end > len(runes) {
					end = len(runes)
				}
				chunks = append(chunks, string(runes[start:end]))
			}
			continue
		}
		buf = []string{line}
		bufLen = lineLen
	}
	flush()

	filtered := chunks[:0]
	for _, chunk := range chunks {
		if chunk != "" {
			filtered = append(filtered, chunk)
		}
	}
	return filtered
}

func parseInt64(value string) int64 {
	if value == "" {
		return 0
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseIntParam(params map[string]string, key string, def int) int {
	if params == nil {
		return def
	}
	val, ok := params[key]
	if !ok || val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
