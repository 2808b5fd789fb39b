// Пакет notify — исходящие email-уведомления по заявкам.
// Адрес получателя извлекается из данных самой заявки: анкеты разных
// арендаторов называют поле адреса по-разному (email, 邮箱, mail).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/formly-platform/formly/internal/config"
)

// ErrNoRecipient — в данных заявки нет адреса получателя.
var ErrNoRecipient = errors.New("адрес получателя не найден в данных заявки")

// ErrNotConfigured — SMTP-параметры не заданы в конфигурации.
var ErrNotConfigured = errors.New("SMTP не настроен")

// recipientKeys — ключи данных заявки, в которых ищется адрес получателя.
var recipientKeys = []string{"email", "邮箱", "mail"}

// Mailer — интерфейс отправки уведомлений.
type Mailer interface {
	// Send отправляет письмо по данным заявки.
	Send(ctx context.Context, data map[string]any, subject, body string) error
}

// SMTPMailer — отправка через внешний SMTP-сервер.
type SMTPMailer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewSMTPMailer создаёт SMTP-отправитель.
func NewSMTPMailer(cfg *config.Config, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "mailer")),
	}
}

// ExtractRecipient ищет адрес получателя в данных заявки.
// Перебирает известные ключи; возвращает ErrNoRecipient, если ни один
// не содержит непустой строки.
func ExtractRecipient(data map[string]any) (string, error) {
	for _, key := range recipientKeys {
		if v, ok := data[key].(string); ok {
			addr := strings.TrimSpace(v)
			if addr != "" && strings.Contains(addr, "@") {
				return addr, nil
			}
		}
	}
	return "", ErrNoRecipient
}

// Send отправляет письмо получателю, найденному в данных заявки.
func (m *SMTPMailer) Send(ctx context.Context, data map[string]any, subject, body string) error {
	if !m.cfg.SMTPConfigured() {
		return ErrNotConfigured
	}

	recipient, err := ExtractRecipient(data)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("некорректный адрес отправителя: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("некорректный адрес получателя: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.SMTPUser),
		mail.WithPassword(m.cfg.SMTPPassword),
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("создание SMTP-клиента: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}

	m.logger.Info("Письмо отправлено",
		slog.String("to", recipient),
		slog.String("subject", subject))
	return nil
}
