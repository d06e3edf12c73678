package service

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type EmailSender struct {
	dialer  *mail.Dialer
	logger  *logrus.Logger
	enabled bool
}

func NewEmailSender(logger *logrus.Logger) *EmailSender {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	enabled := os.Getenv("EMAIL_SENDER_ENABLED") == "true"
	isInsecureSkipVerify := os.Getenv("INSECURE_SKIP_VERIFY") == "true"

	// Преобразуем smtpPort в int
	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		if enabled {
			logger.Fatalf("Ошибка преобразования SMTP_PORT: %v", err)
		}
		smtpPort = 0
	}

	d := mail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	d.TLSConfig = &tls.Config{
		ServerName:         smtpHost,
		InsecureSkipVerify: isInsecureSkipVerify,
	}

	return &EmailSender{
		dialer:  d,
		logger:  logger,
		enabled: enabled,
	}
}

// SendSettlementNotification уведомляет о проведенном платеже
func (es *EmailSender) SendSettlementNotification(email, description string, amount decimal.Decimal) error {
	if !es.enabled {
		es.logger.Warn("Отправка уведомлений отключена")
		return nil
	}

	subject := "Уведомление о проведенном платеже"
	content := fmt.Sprintf(`
		<h1>Платеж проведен</h1>
		<p>Назначение: <strong>%s</strong></p>
		<p>Сумма: <strong>%s RUB</strong></p>
		<p>Дата: <strong>%s</strong></p>
		<small>Это автоматическое уведомление, пожалуйста, не отвечайте на него</small>
	`, description, amount.StringFixed(2), time.Now().Format("02.01.2006 15:04"))

	return es.sendEmail(email, subject, content)
}

// SendOverdueNotification уведомляет о просроченном платеже и начисленной пене
func (es *EmailSender) SendOverdueNotification(email, description string, amount, penalty decimal.Decimal, dueDate time.Time) error {
	if !es.enabled {
		es.logger.Warn("Отправка уведомлений отключена")
		return nil
	}

	subject := "Уведомление о просроченном платеже"
	content := fmt.Sprintf(`
		<h1>Платеж просрочен</h1>
		<p>Назначение: <strong>%s</strong></p>
		<p>Сумма: <strong>%s RUB</strong></p>
		<p>Начисленная пеня: <strong>%s RUB</strong></p>
		<p>Срок платежа: <strong>%s</strong></p>
		<small>Это автоматическое уведомление, пожалуйста, не отвечайте на него</small>
	`, description, amount.StringFixed(2), penalty.StringFixed(2), dueDate.Format("02.01.2006"))

	return es.sendEmail(email, subject, content)
}

func (es *EmailSender) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", os.Getenv("SMTP_USER"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := es.dialer.DialAndSend(m); err != nil {
		es.logger.WithError(err).Error("Ошибка отправки email")
		return fmt.Errorf("не удалось отправить email: %w", err)
	}

	es.logger.Infof("Email успешно отправлен на %s", to)
	return nil
}
