package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/leadops-platform/internal/config"
	"github.com/wolfman30/leadops-platform/internal/notify"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// BuildEmailSender picks the provider named by EMAIL_PROVIDER, falling back to
// the stub sender when the chosen provider is not configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub"
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender, "sendgrid"
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub sender")
	case "ses":
		if awsCfg != nil {
			client := sesv2.NewFromConfig(*awsCfg, func(o *sesv2.Options) {
				if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
			return notify.NewSESSender(client, notify.SESConfig{
				FromEmail: cfg.EmailFromAddress,
				FromName:  cfg.EmailFromName,
			}, logger), "ses"
		}
		logger.Warn("ses selected but AWS config unavailable; using stub sender")
	}
	return notify.NewStubEmailSender(logger), "stub"
}
