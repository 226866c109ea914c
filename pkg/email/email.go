// Package email sends transactional mail through Resend.
//
// Services depend on the Sender interface; main wires the Resend
// implementation only when an API key is configured.
package email

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/resend/resend-go/v3"
)

// AttendanceSummary is the content of the mail a coordinator receives after
// finalizing attendance for a lecture.
type AttendanceSummary struct {
	CourseName    string
	LectureName   string
	Present       []int
	ClassStrength int
	Percentage    float64
}

// Sender delivers mail.
type Sender interface {
	SendAttendanceSummary(ctx context.Context, toEmail string, s AttendanceSummary) error
}

type resendSender struct {
	client    *resend.Client
	fromEmail string
	appName   string
}

// NewResendSender builds a Sender on the Resend API. fromEmail must belong
// to a domain verified in Resend.
func NewResendSender(apiKey, fromEmail, appName string) Sender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appName:   appName,
	}
}

func (s *resendSender) SendAttendanceSummary(ctx context.Context, toEmail string, sum AttendanceSummary) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.appName, s.fromEmail),
		To:      []string{toEmail},
		Subject: SummarySubject(sum),
		Html:    SummaryHTML(sum),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send attendance summary: %w", err)
	}
	return nil
}

// SummarySubject renders the subject line.
func SummarySubject(sum AttendanceSummary) string {
	return fmt.Sprintf("Attendance: %s, %s (%.1f%%)", sum.CourseName, sum.LectureName, sum.Percentage)
}

// SummaryHTML renders the mail body.
func SummaryHTML(sum AttendanceSummary) string {
	rolls := make([]string, 0, len(sum.Present))
	for _, r := range sum.Present {
		rolls = append(rolls, strconv.Itoa(r))
	}
	list := strings.Join(rolls, ", ")
	if list == "" {
		list = "none"
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family:Arial,Helvetica,sans-serif;color:#1f2937;">
  <h2 style="margin:0 0 8px 0;">%s</h2>
  <p style="margin:0 0 16px 0;">Lecture: %s</p>
  <p style="margin:0 0 8px 0;"><strong>%d</strong> of <strong>%d</strong> students present (%.1f%%).</p>
  <p style="margin:0;">Roll numbers present: %s</p>
</body>
</html>`,
		html.EscapeString(sum.CourseName),
		html.EscapeString(sum.LectureName),
		len(sum.Present), sum.ClassStrength, sum.Percentage,
		list,
	)
}
