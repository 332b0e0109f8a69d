package bot

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/pokerledger/internal/db"
)

// reminderWorker periodically posts unpaid transfer reminders to the table's channel.
type reminderWorker struct {
	store    reminderStore
	ledger   pendingTransfers
	session  reminderSession
	stopChan chan struct{}
	ticker   *time.Ticker
	interval time.Duration
	now      func() time.Time
}

type reminderStore interface {
	DueReminders(ctx context.Context, now time.Time) ([]db.ReminderDue, error)
	MarkReminderSent(ctx context.Context, sessionID string, sentAt, nextDue time.Time) error
	DelayReminder(ctx context.Context, sessionID string, nextDue time.Time) error
}

type pendingTransfers interface {
	PendingTransfersText(ctx context.Context, sessionID string, name func(id string) string) (string, error)
}

// Minimal session interface for sending channel messages.
type reminderSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func newReminderWorker(session reminderSession, store reminderStore, ledger pendingTransfers) *reminderWorker {
	return &reminderWorker{
		store:    store,
		ledger:   ledger,
		session:  session,
		stopChan: make(chan struct{}),
		interval: time.Minute,
		now:      time.Now,
	}
}

func (w *reminderWorker) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *reminderWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *reminderWorker) loop() {
	ctx := context.Background()
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

func (w *reminderWorker) tick(ctx context.Context) {
	now := w.now()
	targets, err := w.store.DueReminders(ctx, now)
	if err != nil {
		log.Printf("reminder: failed to load due reminders: %v", err)
		return
	}

	for _, t := range targets {
		pending, err := w.ledger.PendingTransfersText(ctx, t.SessionID, func(id string) string { return "<@" + id + ">" })
		if err != nil {
			log.Printf("reminder: failed to build message for session %s: %v", t.SessionID, err)
			continue
		}
		if pending == "" {
			continue
		}
		msg := "Unpaid poker transfers:\n" + pending + "\nMark a payment with /poker done\n\n(automatic reminder)"
		if err := w.sendWithRetry(ctx, t.TableID, msg); err != nil {
			log.Printf("reminder: failed to send message to channel %s: %v", t.TableID, err)
			// Back off so we don't hammer Discord every minute.
			backoff := 2 * time.Minute
			if t.IntervalMinutes > 0 {
				max := time.Duration(t.IntervalMinutes) * time.Minute
				if backoff > max {
					backoff = max
				}
			}
			if derr := w.store.DelayReminder(ctx, t.SessionID, now.Add(backoff)); derr != nil {
				log.Printf("reminder: failed to delay reminder for session %s: %v", t.SessionID, derr)
			}
			continue
		}
		next := now.Add(time.Duration(t.IntervalMinutes) * time.Minute)
		if err := w.store.MarkReminderSent(ctx, t.SessionID, now, next); err != nil {
			log.Printf("reminder: failed to mark reminder sent for session %s: %v", t.SessionID, err)
		}
	}
}

func (w *reminderWorker) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
