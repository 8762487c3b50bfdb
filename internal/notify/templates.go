package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
)

const (
	confirmationSubject = "Your Executive Health Checkup is Confirmed!"
	reminderSubject     = "Complete Your Medical Intake Form"
)

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #0f766e; border-bottom: 2px solid #d4af37; padding-bottom: 10px;">Booking Confirmed</h1>
  <p style="font-size: 16px; line-height: 1.6;">Dear Valued Client,</p>
  <p style="font-size: 16px; line-height: 1.6;">We're delighted to confirm your executive health checkup appointment at Sun Yat-sen University Cancer Center in Guangzhou.</p>
  <div style="background-color: #f0fdfa; border-left: 4px solid #0f766e; padding: 15px; margin: 20px 0;">
    <h2 style="color: #0f766e; margin-top: 0;">Appointment Details</h2>
    <p><strong>Date:</strong> {{.Date}}</p>
    <p><strong>Time:</strong> {{.Time}}</p>
    <p><strong>Amount Paid:</strong> {{.AmountRMB}} RMB</p>
    {{- if .ArrivalDate}}
    <p><strong>Arrival Date:</strong> {{.ArrivalDate}}</p>
    {{- end}}
  </div>
  <h3 style="color: #0f766e;">What to Bring</h3>
  <ul style="line-height: 1.8;">
    <li>Your passport (original)</li>
    <li>This confirmation email</li>
    <li>Any previous medical records (if applicable)</li>
  </ul>
  <h3 style="color: #0f766e;">Preparation Instructions</h3>
  <ul style="line-height: 1.8;">
    <li>Fast for 8-12 hours before your appointment</li>
    <li>Avoid alcohol for 24 hours prior</li>
    <li>Wear comfortable clothing</li>
  </ul>
  {{- if .AirportPickup}}
  <div style="background-color: #fffbeb; border-left: 4px solid #d4af37; padding: 15px; margin: 20px 0;">
    <p><strong>Airport Pickup:</strong> Our driver will meet you at Guangzhou Baiyun International Airport arrivals. Look for a sign with your name.</p>
  </div>
  {{- end}}
  <p style="font-size: 16px; line-height: 1.6; margin-top: 30px;">If you have any questions, please don't hesitate to contact us.</p>
  <p style="font-size: 16px; line-height: 1.6;">We look forward to welcoming you!</p>
  <div style="margin-top: 40px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 14px; color: #6b7280;">
    <p>Best regards,<br><strong>Guangzhou Executive Health Checkup Team</strong><br>Sun Yat-sen University Cancer Center</p>
  </div>
</div>
`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`
<h1>Don't Forget Your Medical Form!</h1>
<p>Hi there,</p>
<p>We noticed you haven't completed your medical intake form yet. This is an important step to confirm your appointment at the medical center in Guangzhou.</p>
<p><strong>What happens next:</strong></p>
<ul>
  <li>Complete the medical intake form</li>
  <li>Our team will review with the medical center</li>
  <li>You'll receive confirmation within 24-48 hours</li>
  <li>Payment will only be charged after confirmation</li>
</ul>
<p><a href="{{.ReminderURL}}" style="background: #000; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block; margin: 20px 0;">Complete Medical Form</a></p>
<p>If you have any questions, please don't hesitate to reach out.</p>
<p>Best regards,<br>Guangzhou Medical Checkup Team</p>
`))

type confirmationData struct {
	Date          string
	Time          string
	AmountRMB     string
	ArrivalDate   string
	AirportPickup bool
}

type reminderData struct {
	ReminderURL string
}

// formatRMB renders an amount in fen as whole yuan.
func formatRMB(amountMinor int) string {
	return fmt.Sprintf("%.0f", math.Round(float64(amountMinor)/100))
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
