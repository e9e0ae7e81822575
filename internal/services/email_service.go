package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/clinicauth/pkg/logger"
)

// SESSendEmailAPI is the slice of the SES client used to deliver codes
type SESSendEmailAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESCodeSender emails recovery codes through AWS SES
type SESCodeSender struct {
	client      SESSendEmailAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESCodeSender loads the default AWS configuration for region
func NewSESCodeSender(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESCodeSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESCodeSenderWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func NewSESCodeSenderWithClient(client SESSendEmailAPI, fromAddress string, logger *slog.Logger) *SESCodeSender {
	return &SESCodeSender{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func recoveryEmailBodies(code string, expiresAt time.Time) (html, text string) {
	minutes := ceilMinutes(time.Until(expiresAt))
	if minutes < 1 {
		minutes = 1
	}

	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Recuperação de senha</h2>
    <p>Use o código abaixo para redefinir sua senha:</p>
    <p style="font-size: 28px; letter-spacing: 6px;"><strong>%s</strong></p>
    <p>O código expira em %d minutos e só pode ser usado uma vez.</p>
    <p>Se você não solicitou a recuperação, ignore este e-mail.</p>
</body>
</html>
`, code, minutes)

	text = fmt.Sprintf(`Recuperação de senha

Use o código abaixo para redefinir sua senha:

%s

O código expira em %d minutos e só pode ser usado uma vez.
Se você não solicitou a recuperação, ignore este e-mail.
`, code, minutes)

	return html, text
}

// SendRecoveryCode sends the code to email
func (s *SESCodeSender) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	htmlBody, textBody := recoveryEmailBodies(code, expiresAt)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String("Seu código de recuperação"),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send recovery code via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("recovery code email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogCodeSender writes codes to the structured log instead of sending them.
// Development only.
type LogCodeSender struct {
	logger *slog.Logger
}

func NewLogCodeSender(logger *slog.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger}
}

func (s *LogCodeSender) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	s.logger.InfoContext(ctx, "recovery code issued",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("code", code),
		slog.Time("expires_at", expiresAt))
	return nil
}
