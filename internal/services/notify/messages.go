package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/benvon/drivenova/internal/models"
)

// Notification kinds
const (
	KindNewUser        = "new_user"
	KindBookingCreated = "booking_created"
	KindContactMessage = "contact_message"
)

const dateLayout = "2006-01-02"

// NewUserMessage describes a freshly created account. via names the sign-in
// method, e.g. "email" or "google".
func NewUserMessage(u *models.User, via string) (subject, body string) {
	subject = "New user registered: " + u.Username
	body = renderRows("A new user has joined DriveNova.", [][2]string{
		{"Username", u.Username},
		{"Email", u.Email},
		{"Signed up with", via},
		{"Joined", u.CreatedAt.UTC().Format(dateLayout)},
	})
	return subject, body
}

// BookingMessage describes a new booking
func BookingMessage(b *models.Booking) (subject, body string) {
	subject = fmt.Sprintf("New booking: %s for %s", b.CarModel, b.Name)
	services := "none"
	if len(b.Services) > 0 {
		services = strings.Join(b.Services, ", ")
	}
	body = renderRows("A new booking was placed.", [][2]string{
		{"Customer", b.Name},
		{"Email", b.Email},
		{"Phone", b.Phone},
		{"Car", b.CarModel},
		{"Pick-up", b.PickupDate.UTC().Format(dateLayout) + " at " + b.PickupLocation},
		{"Drop-off", b.DropoffDate.UTC().Format(dateLayout) + " at " + b.DropoffLocation},
		{"Services", services},
		{"Total", fmt.Sprintf("%.2f", b.TotalAmount)},
	})
	return subject, body
}

// ContactMessage describes a message left through the contact form
func ContactMessage(c *models.ContactMessage) (subject, body string) {
	subject = "New contact message from " + c.Name
	body = renderRows("A visitor sent a message.", [][2]string{
		{"Name", c.Name},
		{"Email", c.Email},
		{"Phone", c.Phone},
		{"Message", c.Message},
	})
	return subject, body
}

// renderRows builds a small HTML table. All values are escaped.
func renderRows(intro string, rows [][2]string) string {
	var b strings.Builder
	b.WriteString("<p>")
	b.WriteString(html.EscapeString(intro))
	b.WriteString("</p>\n<table>\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><th align=\"left\">%s</th><td>%s</td></tr>\n",
			html.EscapeString(r[0]), html.EscapeString(r[1]))
	}
	b.WriteString("</table>\n")
	return b.String()
}
