package email

import (
	"fmt"
	"html"
	"time"
)

const subjectEscalationFmt = "Measurement for lead #%d still unassigned"

func renderEscalationAlert(leadID int64, name, address string, age time.Duration) (subject, body string) {
	subject = fmt.Sprintf(subjectEscalationFmt, leadID)

	body = fmt.Sprintf(
		`<h2>Unassigned measurement</h2>
<p>Lead <b>#%d</b> has had no measurer for %s.</p>
<table>
<tr><td>Client</td><td>%s</td></tr>
<tr><td>Address</td><td>%s</td></tr>
</table>
<p>No dealer binding, zone pool or global pool could place it. Assign a measurer in the admin panel.</p>`,
		leadID,
		age.Round(time.Minute),
		html.EscapeString(name),
		html.EscapeString(address),
	)
	return subject, body
}
