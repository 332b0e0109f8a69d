package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/pokerledger/internal/commands"
	"github.com/susu3304/pokerledger/internal/db"
	"github.com/susu3304/pokerledger/internal/ledger"
)

type Bot struct {
	session   *discordgo.Session
	poker     *commands.Poker
	reminders *reminderWorker
}

func New(token string, database *db.DB, svc *ledger.Service, reminderMinutes int) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{session: session}
	bot.poker = &commands.Poker{
		Ledger:          svc,
		Players:         database,
		Reminders:       database,
		ReminderMinutes: reminderMinutes,
		LookupUser:      bot.lookupUser,
		Now:             time.Now,
	}
	bot.reminders = newReminderWorker(session, database, svc)

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.reminders.start()
	log.Println("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.reminders.stop()
	return b.session.Close()
}

// lookupUser resolves a user from the member cache, then from the API.
func (b *Bot) lookupUser(id string) *discordgo.User {
	for _, g := range b.session.State.Guilds {
		if m, err := b.session.State.Member(g.ID, id); err == nil && m.User != nil {
			return m.User
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u, err := b.session.User(id, discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("Failed to look up user %s: %v", id, err)
		return nil
	}
	return u
}
