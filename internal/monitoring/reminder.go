package monitoring

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/taskhive/taskhive-be/internal/mail"
	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/services"
)

// ReminderStore is the slice of the task service the dispatcher needs.
type ReminderStore interface {
	DueReminders(limit int) ([]models.Reminder, error)
	MarkReminderSent(taskID string) error
	RecordReminderFailure(taskID string) (int, error)
}

// ReminderDispatcher polls for due task reminders once a minute and delivers
// them by email. Delivery is confirmed-then-marked: reminder_sent flips only
// after a successful send, so an undelivered reminder is picked up again on
// the next poll. Failures are isolated per task and bounded by the attempt
// cap; a task that keeps failing is dead-lettered with an event instead of
// being retried forever.
type ReminderDispatcher struct {
	store  ReminderStore
	mailer mail.Sender
	events services.EventServiceProvider
	cron   *cron.Cron
}

// NewReminderDispatcher creates a dispatcher. It does nothing until Start.
func NewReminderDispatcher(store ReminderStore, mailer mail.Sender, events services.EventServiceProvider) *ReminderDispatcher {
	return &ReminderDispatcher{
		store:  store,
		mailer: mailer,
		events: events,
	}
}

// Start begins the one-minute polling schedule.
func (d *ReminderDispatcher) Start() error {
	if d.cron != nil {
		return fmt.Errorf("reminder dispatcher already started")
	}
	d.cron = cron.New()
	if _, err := d.cron.AddFunc("@every 1m", d.Poll); err != nil {
		return err
	}
	d.cron.Start()
	log.Info().Msg("Reminder dispatcher started")
	return nil
}

// Stop halts the schedule and waits for an in-flight poll to finish.
func (d *ReminderDispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	d.cron = nil
	log.Info().Msg("Reminder dispatcher stopped")
}

// Poll processes one batch of due reminders.
func (d *ReminderDispatcher) Poll() {
	reminders, err := d.store.DueReminders(50)
	if err != nil {
		log.Error().Err(err).Msg("Reminder poll failed to query due tasks")
		return
	}

	for _, reminder := range reminders {
		d.deliver(reminder)
	}
}

func (d *ReminderDispatcher) deliver(reminder models.Reminder) {
	body := fmt.Sprintf("Hi %s,\n\nThis is your reminder for the task: %s", reminder.Username, reminder.Title)
	if reminder.DueDate != nil {
		body += fmt.Sprintf("\nDue: %s", reminder.DueDate.Format("Mon, 02 Jan 2006 15:04 MST"))
	}

	if err := d.mailer.Send(reminder.Email, "Task reminder: "+reminder.Title, body); err != nil {
		log.Warn().Err(err).Str("task_id", reminder.TaskID).Msg("Reminder delivery failed")
		attempts, recErr := d.store.RecordReminderFailure(reminder.TaskID)
		if recErr != nil {
			log.Error().Err(recErr).Str("task_id", reminder.TaskID).Msg("Failed to record reminder failure")
			return
		}
		if attempts >= services.MaxReminderAttempts {
			d.events.CreateEvent("reminder.dead", "error",
				fmt.Sprintf("Reminder for task '%s' abandoned after %d failed attempts.", reminder.Title, attempts),
				&reminder.UserID)
		}
		return
	}

	if err := d.store.MarkReminderSent(reminder.TaskID); err != nil {
		// The mail went out but the flag didn't stick; the next poll will
		// resend. Better a duplicate reminder than a lost one.
		log.Error().Err(err).Str("task_id", reminder.TaskID).Msg("Failed to mark reminder as sent")
		return
	}

	d.events.CreateEvent("reminder.sent", "info",
		fmt.Sprintf("Reminder delivered for task '%s'.", reminder.Title), &reminder.UserID)
}
