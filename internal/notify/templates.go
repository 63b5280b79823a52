package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/closers"
	"github.com/wolfman30/leadops-platform/internal/events"
)

const scheduleLayout = "Monday, January 2 at 3:04 PM MST"

// customerTemplate renders the customer email for an outcome. Outcomes without
// a template do not email the customer.
type customerTemplate func(brand string, evt events.OutcomeRecordedV1, closer *closers.Closer) EmailMessage

var customerTemplates = map[appointments.Outcome]customerTemplate{
	appointments.OutcomeConverted:         welcomeEmail,
	appointments.OutcomeNeedsFollowUp:     followUpEmail,
	appointments.OutcomeCallbackRequested: followUpEmail,
	appointments.OutcomeRescheduled:       rescheduleEmail,
}

func welcomeEmail(brand string, evt events.OutcomeRecordedV1, closer *closers.Closer) EmailMessage {
	name := firstName(evt.CustomerName)
	body := fmt.Sprintf(`Hi %s,

Welcome aboard! Thanks for joining %s today.%s

We'll be in touch shortly with your next steps.

The %s team`, name, brand, closerLine(closer), brand)

	return EmailMessage{
		To:      evt.CustomerEmail,
		ToName:  evt.CustomerName,
		Subject: fmt.Sprintf("Welcome to %s", brand),
		Body:    body,
		HTML: fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Welcome aboard, %s!</h2>
<p>Thanks for joining <strong>%s</strong> today.%s</p>
<p>We'll be in touch shortly with your next steps.</p>
</div>`, html.EscapeString(name), html.EscapeString(brand), html.EscapeString(closerLine(closer))),
	}
}

func followUpEmail(brand string, evt events.OutcomeRecordedV1, closer *closers.Closer) EmailMessage {
	name := firstName(evt.CustomerName)
	booking := ""
	if closer != nil && closer.CalendlyLink != "" {
		booking = fmt.Sprintf("\n\nPick a time that suits you: %s", closer.CalendlyLink)
	}
	return EmailMessage{
		To:      evt.CustomerEmail,
		ToName:  evt.CustomerName,
		Subject: fmt.Sprintf("Following up on your call with %s", brand),
		Body: fmt.Sprintf(`Hi %s,

Thanks for taking the time to speak with us. We'd love to pick up where we left off.%s%s

The %s team`, name, closerLine(closer), booking, brand),
	}
}

func rescheduleEmail(brand string, evt events.OutcomeRecordedV1, closer *closers.Closer) EmailMessage {
	name := firstName(evt.CustomerName)
	return EmailMessage{
		To:      evt.CustomerEmail,
		ToName:  evt.CustomerName,
		Subject: "Your call has been rescheduled",
		Body: fmt.Sprintf(`Hi %s,

As discussed, we've moved your call. You'll receive the new time in a separate calendar invite.%s

The %s team`, name, closerLine(closer), brand),
	}
}

// assignmentEmail tells a closer about a new appointment, with their current numbers.
func assignmentEmail(brand string, evt events.AppointmentAssignedV1, closer closers.Closer, stats *appointments.CloserStats) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYou have a new appointment.\n\n", firstName(closer.Name))
	fmt.Fprintf(&b, "Customer: %s\n", evt.CustomerName)
	if evt.CustomerEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", evt.CustomerEmail)
	}
	if evt.CustomerPhone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", evt.CustomerPhone)
	}
	fmt.Fprintf(&b, "Scheduled: %s\n", evt.ScheduledAt.UTC().Format(scheduleLayout))
	if evt.Source == events.SourceAuto {
		b.WriteString("Assigned by: auto-assign\n")
	}
	if stats != nil {
		fmt.Fprintf(&b, "\nYour numbers so far: %d calls, %d conversions (%.0f%%), $%s revenue.\n",
			stats.TotalCalls, stats.TotalConversions, stats.ConversionRate*100, stats.TotalRevenue.StringFixed(2))
	}
	fmt.Fprintf(&b, "\n%s", brand)

	return EmailMessage{
		To:      closer.Email,
		ToName:  closer.Name,
		Subject: fmt.Sprintf("New appointment: %s on %s", evt.CustomerName, evt.ScheduledAt.UTC().Format("Jan 2")),
		Body:    b.String(),
	}
}

func closerLine(closer *closers.Closer) string {
	if closer == nil || closer.Name == "" {
		return ""
	}
	return fmt.Sprintf(" %s will be your point of contact.", closer.Name)
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
