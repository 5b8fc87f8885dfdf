package notification

import (
	"fmt"
	"strings"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/orders"
)

// Notification types. Creation dispatches the assigned type; every other
// event dispatches under its own name.
const (
	TypeAssigned   = "assigned"
	TypeConfirmed  = "confirmed"
	TypeCompleted  = "completed"
	TypeCancelled  = "cancelled"
	TypeReassigned = "reassigned"
	// TypeEscalated is dispatched by the escalation worker, under its own
	// dedup key so the earlier creation notice does not swallow it.
	TypeEscalated = "escalated"
)

// TypeFor maps an event kind to the notification type recorded in the dedup
// key.
func TypeFor(kind domain.EventKind) string {
	switch kind {
	case domain.EventCreated:
		return TypeAssigned
	case domain.EventConfirmed:
		return TypeConfirmed
	case domain.EventCompleted:
		return TypeCompleted
	case domain.EventCancelled:
		return TypeCancelled
	case domain.EventReassigned:
		return TypeReassigned
	}
	return string(kind)
}

var measurerHeadlines = map[domain.EventKind]string{
	domain.EventCreated:    "New measurement assigned to you",
	domain.EventConfirmed:  "Measurement confirmed",
	domain.EventCompleted:  "Measurement completed",
	domain.EventCancelled:  "Measurement cancelled",
	domain.EventReassigned: "Measurement reassigned to you",
}

var watcherHeadlines = map[domain.EventKind]string{
	domain.EventCreated:    "New measurement",
	domain.EventConfirmed:  "Measurement confirmed",
	domain.EventCompleted:  "Measurement completed",
	domain.EventCancelled:  "Measurement cancelled",
	domain.EventReassigned: "Measurement reassigned",
}

// renderForMeasurer builds the message sent to the assigned measurer.
func renderForMeasurer(kind domain.EventKind, job domain.Job, order *orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", measurerHeadlines[kind])
	writeJobDetails(&b, job, order)
	return strings.TrimRight(b.String(), "\n")
}

// renderForWatcher builds the message sent to admins, supervisors and
// observers. It names the measurer because the watcher is not the one
// holding the job.
func renderForWatcher(kind domain.EventKind, job domain.Job, order *orders.Order, measurerName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", watcherHeadlines[kind])
	if measurerName != "" {
		fmt.Fprintf(&b, "Measurer: %s\n", measurerName)
	} else if job.AssignedMeasurerID == nil {
		b.WriteString("Measurer: unassigned, needs manual action\n")
	}
	writeJobDetails(&b, job, order)
	return strings.TrimRight(b.String(), "\n")
}

// renderEscalation warns watchers about a job nobody picked up.
func renderEscalation(job domain.Job, order *orders.Order) string {
	var b strings.Builder
	b.WriteString("<b>Measurement still unassigned</b>\n")
	b.WriteString("No measurer could be resolved; assign one manually.\n")
	writeJobDetails(&b, job, order)
	return strings.TrimRight(b.String(), "\n")
}

// renderForPreviousMeasurer tells the old measurer the job moved on.
func renderForPreviousMeasurer(job domain.Job) string {
	var b strings.Builder
	b.WriteString("<b>Measurement handed over</b>\n")
	b.WriteString("This job is no longer yours.\n")
	fmt.Fprintf(&b, "Lead #%d", job.ExternalLeadID)
	if job.Name != "" {
		fmt.Fprintf(&b, ": %s", job.Name)
	}
	return b.String()
}

func writeJobDetails(b *strings.Builder, job domain.Job, order *orders.Order) {
	fmt.Fprintf(b, "Lead #%d", job.ExternalLeadID)
	if job.Name != "" {
		fmt.Fprintf(b, ": %s", job.Name)
	}
	b.WriteString("\n")

	if job.Address != "" {
		fmt.Fprintf(b, "Address: %s\n", job.Address)
	}
	if job.ContactName != "" {
		fmt.Fprintf(b, "Contact: %s", job.ContactName)
		if job.ContactPhone != "" {
			fmt.Fprintf(b, " (%s)", job.ContactPhone)
		}
		b.WriteString("\n")
	} else if job.ContactPhone != "" {
		fmt.Fprintf(b, "Phone: %s\n", job.ContactPhone)
	}

	if order != nil {
		fmt.Fprintf(b, "Order %s", order.Number)
		if order.ProductCount > 0 {
			fmt.Fprintf(b, ", %d items", order.ProductCount)
		}
		if order.ProductArea > 0 {
			fmt.Fprintf(b, ", %.1f m2", order.ProductArea)
		}
		if order.Zone != "" {
			fmt.Fprintf(b, ", zone %s", order.Zone)
		}
		b.WriteString("\n")
	} else if job.OrderCode != nil && *job.OrderCode != "" {
		fmt.Fprintf(b, "Order code: %s\n", *job.OrderCode)
	}
}
