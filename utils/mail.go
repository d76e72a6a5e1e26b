package utils

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type EmailData struct {
	Name            string
	Message         string
	VerificationURL string
	OTP             string
}

// Mailer sends HTML mail over SMTP. Without credentials it only logs what
// would have been sent so registration and password reset keep working.
type Mailer struct {
	From        string
	Password    string
	SMTPHost    string
	SMTPAddress string
	Logger      *zap.Logger
}

func (m *Mailer) enabled() bool {
	return m.From != "" && m.Password != "" && m.SMTPAddress != ""
}

func (m *Mailer) SendVerificationEmail(to, name, verificationURL string) error {
	if !m.enabled() {
		m.Logger.Info("Email not configured, verification URL", zap.String("email", to), zap.String("url", verificationURL))
		return nil
	}
	return m.send(to, "Verify Your Email - ReadPage", "verify_email.html", EmailData{
		Name:            name,
		Message:         "Thank you for registering with ReadPage. Please verify your email address.",
		VerificationURL: verificationURL,
	})
}

func (m *Mailer) SendPasswordResetOTP(to, name, otp string) error {
	if !m.enabled() {
		m.Logger.Info("Email not configured, password reset OTP", zap.String("email", to), zap.String("otp", otp))
		return nil
	}
	return m.send(to, "Password Reset OTP - ReadPage", "reset_password.html", EmailData{
		Name:    name,
		Message: "You requested to reset your password. Use the following code. It expires in 10 minutes.",
		OTP:     otp,
	})
}

func (m *Mailer) send(emailTo, emailSubject, templateName string, data EmailData) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		m.From,
		emailTo,
		emailSubject,
		body.String(),
	)

	auth := smtp.PlainAuth("", m.From, m.Password, m.SMTPHost)
	if err := smtp.SendMail(m.SMTPAddress, auth, m.From, []string{emailTo}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
