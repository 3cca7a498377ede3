package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"
)

type EmailData struct {
	Subject   string
	To        []string
	CC        []string
	BCC       []string
	Template  string
	Data      interface{}
	Year      int
	FromName  string
	FromEmail string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"welcome": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Welcome to ProspectFlow</h2>
    </div>

    <div class="content">
        <p>Hello {{.Name}},</p>
        <p>Your account is ready. Upload your first contact list to get started.</p>
    </div>

    <div class="footer">
        <p>&copy; {{.Year}} ProspectFlow. All rights reserved.</p>
    </div>
</body>
</html>`,

	"password_reset_otp": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .otp-code { font-size: 24px; font-weight: bold; color: #e74c3c; margin: 20px 0; text-align: center; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Password Reset Request</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>We received a request to reset your password. Here is your verification code:</p>

        <div class="otp-code">{{.OTP}}</div>

        <p>This code will expire in 15 minutes. If you didn't request a password reset, please ignore this email.</p>
    </div>

    <div class="footer">
        <p>For security reasons, don't share this code with anyone.</p>
        <p>&copy; {{.Year}} ProspectFlow. All rights reserved.</p>
    </div>
</body>
</html>`,
}

func SendEmail(data EmailData) error {
	// Set default from email if not provided
	if data.FromEmail == "" {
		data.FromEmail = os.Getenv("SMTP_FROM_EMAIL")
	}
	if data.FromName == "" {
		data.FromName = os.Getenv("SMTP_FROM_NAME")
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	// Get template from embedded templates
	tmplContent, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("template '%s' not found", data.Template)
	}

	// Parse template
	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("error parsing template: %v", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("error executing template: %v", err)
	}

	// Convert SMTP_PORT to int
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT: %v", err)
	}

	// Create email message
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", data.FromName, data.FromEmail))
	m.SetHeader("To", data.To...)
	if len(data.CC) > 0 {
		m.SetHeader("Cc", data.CC...)
	}
	if len(data.BCC) > 0 {
		m.SetHeader("Bcc", data.BCC...)
	}
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	// Send email
	d := gomail.NewDialer(
		os.Getenv("SMTP_HOST"),
		smtpPort,
		os.Getenv("SMTP_USERNAME"),
		os.Getenv("SMTP_PASSWORD"),
	)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}

	return nil
}

func SendWelcomeEmail(email, name string) error {
	data := EmailData{
		Subject:  "Welcome to ProspectFlow",
		To:       []string{email},
		Template: "welcome",
		Data: struct {
			Subject string
			Name    string
			Year    int
		}{
			Subject: "Welcome to ProspectFlow",
			Name:    name,
			Year:    time.Now().Year(),
		},
	}

	return SendEmail(data)
}

func SendPasswordResetOTPEmail(email, otp string) error {
	data := EmailData{
		Subject:  "Your Password Reset Code",
		To:       []string{email},
		Template: "password_reset_otp",
		Data: struct {
			Subject string
			OTP     string
			Year    int
		}{
			Subject: "Your Password Reset Code",
			OTP:     otp,
			Year:    time.Now().Year(),
		},
	}

	return SendEmail(data)
}
