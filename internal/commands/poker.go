package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/susu3304/pokerledger/internal/db"
	"github.com/susu3304/pokerledger/internal/ledger"
	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
)

// PlayerStore keeps Discord users registered as players.
type PlayerStore interface {
	EnsurePlayer(ctx context.Context, p model.Player) error
}

// ReminderStore schedules unpaid transfer reminders per session.
type ReminderStore interface {
	UpsertReminder(ctx context.Context, sessionID string, enabled bool, intervalMinutes int, nextDueAt *time.Time) error
	// ReminderConfig returns nil when the session never had a reminder.
	ReminderConfig(ctx context.Context, sessionID string) (*db.ReminderConfig, error)
}

// Poker executes /poker subcommands against the ledger. The channel is the table.
type Poker struct {
	Ledger          *ledger.Service
	Players         PlayerStore
	Reminders       ReminderStore
	ReminderMinutes int
	// LookupUser resolves users that Discord did not resolve for the interaction,
	// e.g. mentions typed into a string option.
	LookupUser func(id string) *discordgo.User
	Now        func() time.Time
}

func HandlePoker(s *discordgo.Session, i *discordgo.InteractionCreate, p *Poker) {
	caller := i.User
	if i.Member != nil && i.Member.User != nil {
		caller = i.Member.User
	}
	if caller == nil {
		respondText(s, i, "Could not identify the caller")
		return
	}
	respondText(s, i, p.Execute(context.Background(), i.ChannelID, caller, i.ApplicationCommandData()))
}

// Execute runs one subcommand and returns the reply text.
func (p *Poker) Execute(ctx context.Context, channelID string, caller *discordgo.User, data discordgo.ApplicationCommandInteractionData) string {
	if len(data.Options) == 0 {
		return "No subcommand given"
	}
	sub := data.Options[0]
	users := map[string]*discordgo.User{caller.ID: caller}
	if data.Resolved != nil {
		for id, u := range data.Resolved.Users {
			users[id] = u
		}
	}
	target := getUserID(sub.Options, "user")
	if target == "" {
		target = caller.ID
	}

	var (
		msg string
		err error
	)
	switch sub.Name {
	case "start":
		msg, err = p.start(ctx, channelID, caller.ID, users, sub.Options)
	case "join":
		msg, err = p.join(ctx, channelID, target, users)
	case "buyin":
		count := int64(1)
		if c := getIntOption(sub.Options, "count"); c != nil {
			count = *c
		}
		msg, err = p.buyIn(ctx, channelID, target, int(count))
	case "extra":
		amount := getNumberOption(sub.Options, "amount")
		if amount == nil {
			return "amount is required"
		}
		msg, err = p.extra(ctx, channelID, target, *amount)
	case "cashout":
		amount := getNumberOption(sub.Options, "amount")
		if amount == nil {
			return "amount is required"
		}
		msg, err = p.cashOut(ctx, channelID, target, *amount, getBoolOption(sub.Options, "chips"))
	case "status":
		msg, err = p.status(ctx, channelID)
	case "end":
		msg, err = p.end(ctx, channelID, getBoolOption(sub.Options, "force"))
	case "result":
		msg, err = p.result(ctx, channelID)
	case "done":
		other := getUserID(sub.Options, "user")
		if other == "" {
			return "Specify the other player"
		}
		msg, err = p.done(ctx, channelID, caller.ID, other)
	case "remind":
		if minutes := getIntOption(sub.Options, "minutes"); minutes != nil {
			msg, err = p.remind(ctx, channelID, int(*minutes))
		} else {
			msg, err = p.reminderStatus(ctx, channelID)
		}
	case "stats":
		msg, err = p.stats(ctx, target)
	default:
		return "Unknown subcommand"
	}
	if err != nil {
		return p.errorText(ctx, channelID, err)
	}
	return msg
}

func (p *Poker) start(ctx context.Context, channelID, callerID string, users map[string]*discordgo.User, opts []*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	buyIn := getNumberOption(opts, "buyin")
	ratio := getNumberOption(opts, "ratio")
	if buyIn == nil || ratio == nil {
		return "buyin and ratio are required", nil
	}
	cfg := model.GameConfig{BuyInAmount: *buyIn, ChipRatio: *ratio}
	if blinds := getStringOption(opts, "blinds"); blinds != nil {
		cfg.BlindLevel = strings.TrimSpace(*blinds)
	}

	var ids []string
	if list := getStringOption(opts, "players"); list != nil {
		ids = parseMentionIDs(*list)
	}
	if len(ids) == 0 {
		ids = []string{callerID}
	}
	for _, id := range ids {
		if err := p.ensurePlayer(ctx, id, users); err != nil {
			return "", err
		}
	}

	sess, err := p.Ledger.StartSession(ctx, channelID, cfg, ids)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session started: buy-in %s, chip ratio %s", amount(sess.Config.BuyInAmount), amount(sess.Config.ChipRatio))
	if sess.Config.BlindLevel != "" {
		fmt.Fprintf(&b, ", blinds %s", sess.Config.BlindLevel)
	}
	b.WriteString("\nPlayers: ")
	for idx, sp := range sess.Players {
		if idx > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mention(sp.PlayerID))
	}
	return b.String(), nil
}

func (p *Poker) join(ctx context.Context, channelID, playerID string, users map[string]*discordgo.User) (string, error) {
	if err := p.ensurePlayer(ctx, playerID, users); err != nil {
		return "", err
	}
	joined, err := p.Ledger.Join(ctx, channelID, playerID)
	if err != nil {
		return "", err
	}
	if !joined {
		return fmt.Sprintf("%s is already seated", mention(playerID)), nil
	}
	return fmt.Sprintf("%s joined with one buy-in", mention(playerID)), nil
}

func (p *Poker) buyIn(ctx context.Context, channelID, playerID string, count int) (string, error) {
	sp, err := p.Ledger.AddBuyIn(ctx, channelID, playerID, count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now has %d buy-in(s)", mention(playerID), sp.BuyInCount), nil
}

func (p *Poker) extra(ctx context.Context, channelID, playerID string, v float64) (string, error) {
	sp, err := p.Ledger.AddExtraBuyIn(ctx, channelID, playerID, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Recorded extra buy-in of %s for %s (extra total %s)", amount(v), mention(playerID), amount(sp.ExtraBuyIn)), nil
}

func (p *Poker) cashOut(ctx context.Context, channelID, playerID string, v float64, chips bool) (string, error) {
	var (
		sp  model.SessionPlayer
		err error
	)
	if chips {
		sp, err = p.Ledger.CashOutChips(ctx, channelID, playerID, v)
	} else {
		sp, err = p.Ledger.CashOut(ctx, channelID, playerID, v)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s cashed out %s", mention(playerID), amount(sp.CashOutOrZero())), nil
}

func (p *Poker) status(ctx context.Context, channelID string) (string, error) {
	sess, err := p.Ledger.Status(ctx, channelID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Buy-in %s, chip ratio %s", amount(sess.Config.BuyInAmount), amount(sess.Config.ChipRatio))
	if sess.Config.BlindLevel != "" {
		fmt.Fprintf(&b, ", blinds %s", sess.Config.BlindLevel)
	}
	fmt.Fprintf(&b, "\nPot: %s\n", amount(sess.TotalPot()))
	for _, sp := range sess.Players {
		fmt.Fprintf(&b, "・%s in %s (%d buy-in(s)", mention(sp.PlayerID), amount(sp.Invested(sess.Config.BuyInAmount)), sp.BuyInCount)
		if sp.ExtraBuyIn > 0 {
			fmt.Fprintf(&b, " + %s extra", amount(sp.ExtraBuyIn))
		}
		b.WriteString(")")
		if sp.CashedOut() {
			fmt.Fprintf(&b, ", out %s", amount(*sp.CashOut))
		} else {
			b.WriteString(", playing")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (p *Poker) end(ctx context.Context, channelID string, force bool) (string, error) {
	out, err := p.Ledger.End(ctx, channelID, force)
	if err != nil {
		return "", err
	}
	if len(out.Transfers) > 0 && p.Reminders != nil {
		next := p.now().Add(time.Duration(p.reminderMinutes()) * time.Minute)
		if err := p.Reminders.UpsertReminder(ctx, out.Session.ID, true, p.reminderMinutes(), &next); err != nil {
			log.Printf("poker: failed to schedule reminder for session %s: %v", out.Session.ID, err)
		}
	}
	return "Session ended\n" + outcomeText(out), nil
}

func (p *Poker) result(ctx context.Context, channelID string) (string, error) {
	out, err := p.Ledger.LastSettlement(ctx, channelID)
	if err != nil {
		return "", err
	}
	return outcomeText(out), nil
}

func (p *Poker) done(ctx context.Context, channelID, callerID, otherID string) (string, error) {
	out, err := p.Ledger.LastSettlement(ctx, channelID)
	if err != nil {
		return "", err
	}
	t, err := p.Ledger.CompleteTransfer(ctx, out.Session.ID, callerID, otherID)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Marked %s → %s: %d as paid", mention(t.FromID), mention(t.ToID), t.Amount)
	pending, err := p.Ledger.PendingTransfersText(ctx, out.Session.ID, mention)
	if err != nil {
		return "", err
	}
	if pending == "" {
		return msg + "\nAll transfers are settled", nil
	}
	return msg + "\nStill open:\n" + strings.TrimPrefix(pending, "Transfers:\n"), nil
}

func (p *Poker) remind(ctx context.Context, channelID string, minutes int) (string, error) {
	if p.Reminders == nil {
		return "Reminders are not available", nil
	}
	if minutes < 0 {
		return "", ledger.ErrInvalidAmount
	}
	out, err := p.Ledger.LastSettlement(ctx, channelID)
	if err != nil {
		return "", err
	}
	if minutes == 0 {
		if err := p.Reminders.UpsertReminder(ctx, out.Session.ID, false, p.reminderMinutes(), nil); err != nil {
			return "", err
		}
		return "Reminders disabled", nil
	}
	next := p.now().Add(time.Duration(minutes) * time.Minute)
	if err := p.Reminders.UpsertReminder(ctx, out.Session.ID, true, minutes, &next); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reminding unpaid transfers every %d minutes", minutes), nil
}

func (p *Poker) reminderStatus(ctx context.Context, channelID string) (string, error) {
	if p.Reminders == nil {
		return "Reminders are not available", nil
	}
	out, err := p.Ledger.LastSettlement(ctx, channelID)
	if err != nil {
		return "", err
	}
	cfg, err := p.Reminders.ReminderConfig(ctx, out.Session.ID)
	if err != nil {
		return "", err
	}
	switch {
	case cfg == nil:
		return "No reminder is set for the last session", nil
	case !cfg.Enabled:
		return "Reminders are disabled", nil
	}
	msg := fmt.Sprintf("Reminding unpaid transfers every %d minutes", cfg.IntervalMinutes)
	if cfg.NextDueAt != nil {
		if left := int(math.Ceil(cfg.NextDueAt.Sub(p.now()).Minutes())); left > 0 {
			msg += fmt.Sprintf(", next in %d minutes", left)
		} else {
			msg += ", next one is due"
		}
	}
	return msg, nil
}

func (p *Poker) stats(ctx context.Context, playerID string) (string, error) {
	st, err := p.Ledger.PlayerStats(ctx, playerID)
	if err != nil {
		return "", err
	}
	if st.TotalGames == 0 {
		return fmt.Sprintf("%s has no finished sessions yet", mention(playerID)), nil
	}
	return fmt.Sprintf("%s: %d game(s), total %s, this month %s, last session %s",
		mention(playerID), st.TotalGames,
		settlement.Money(st.TotalProfit), settlement.Money(st.CurrentMonthProfit), settlement.Money(st.LastSessionProfit)), nil
}

func (p *Poker) errorText(ctx context.Context, channelID string, err error) string {
	switch {
	case errors.Is(err, ledger.ErrNoActiveSession):
		return "No session is running in this channel. Start one with /poker start"
	case errors.Is(err, ledger.ErrSessionExists):
		return "A session is already running in this channel"
	case errors.Is(err, ledger.ErrSessionNotFound):
		return "No session has been played in this channel yet"
	case errors.Is(err, ledger.ErrPlayerNotInSession):
		return "That player is not in this session. Use /poker join first"
	case errors.Is(err, ledger.ErrAlreadyCashedOut):
		return "That player has already cashed out"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "Amounts must be non-negative numbers"
	case errors.Is(err, model.ErrInvalidConfig):
		return "Buy-in and chip ratio must be positive"
	case errors.Is(err, ledger.ErrNotEnoughPlayers):
		return "At least two players are needed to settle"
	case errors.Is(err, ledger.ErrTransferNotFound):
		return "There is no open transfer between you and that player"
	case errors.Is(err, ledger.ErrPlayersStillPlaying):
		sess, serr := p.Ledger.Status(ctx, channelID)
		if serr != nil {
			return "Some players have not cashed out yet"
		}
		var names []string
		for _, id := range sess.StillPlaying() {
			names = append(names, mention(id))
		}
		return fmt.Sprintf("Still playing: %s\nRecord their cash-outs or use /poker end force:true", strings.Join(names, ", "))
	}
	log.Printf("poker: %v", err)
	return "Something went wrong, please try again"
}

func (p *Poker) ensurePlayer(ctx context.Context, id string, users map[string]*discordgo.User) error {
	if p.Players == nil {
		return nil
	}
	u := users[id]
	if u == nil && p.LookupUser != nil {
		u = p.LookupUser(id)
	}
	// Unknown users keep whatever name is on record
	if u == nil || u.Username == "" {
		return nil
	}
	return p.Players.EnsurePlayer(ctx, model.Player{ID: id, Name: u.Username})
}

func (p *Poker) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Poker) reminderMinutes() int {
	if p.ReminderMinutes > 0 {
		return p.ReminderMinutes
	}
	return 60
}

func outcomeText(out *ledger.Outcome) string {
	sum := out.Summary.Text(func(r settlement.Result) string { return mention(r.PlayerID) })
	return sum + "\n" + settlement.TransfersText(out.Transfers, mention)
}

// amount formats a cash or ratio value without trailing zeros.
func amount(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
