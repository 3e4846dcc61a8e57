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
)

// DeliveryGateway is the outbound side of the login flow. Implementations
// report hard failures; retry policy is the caller's business (a user
// re-requesting a code), never this layer's.
type DeliveryGateway interface {
	SendLoginCode(ctx context.Context, address, code string, expiresAt time.Time) error
	SendTeamMemberLoginCode(ctx context.Context, adminAddress, memberName, code string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, address, newPassword string) error
	SendProvisionedCredentials(ctx context.Context, address, password string) error
}

// AWSSESDeliveryGateway sends mail through AWS SES.
type AWSSESDeliveryGateway struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESDeliveryGateway creates a new SES-backed delivery gateway
func NewAWSSESDeliveryGateway(region, fromAddress string, logger *slog.Logger) (*AWSSESDeliveryGateway, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESDeliveryGateway{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendLoginCode delivers a login verification code to the account's own
// address.
func (g *AWSSESDeliveryGateway) SendLoginCode(ctx context.Context, address, code string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Your verification code</h2>
        <p>Use this code to finish signing in:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in %d minutes. If you did not try to sign in, you can ignore this email; your password still protects your account.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, code, minutes)

	textBody := fmt.Sprintf(`Your verification code

Use this code to finish signing in: %s

The code expires in %d minutes. If you did not try to sign in, you can ignore this email.
`, code, minutes)

	return g.send(ctx, address, "Your verification code", htmlBody, textBody)
}

// SendTeamMemberLoginCode delivers a team member's login code to the
// supervising admin, naming the member so the admin knows who is signing in.
func (g *AWSSESDeliveryGateway) SendTeamMemberLoginCode(ctx context.Context, adminAddress, memberName, code string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Sign-in code for team member %s</h2>
        <p>Your team member <strong>%s</strong> is signing in and needs this code:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in %d minutes. Share it with the member only if you expect this sign-in.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, memberName, memberName, code, minutes)

	textBody := fmt.Sprintf(`Sign-in code for team member %s

Your team member %s is signing in and needs this code: %s

The code expires in %d minutes. Share it with the member only if you expect this sign-in.
`, memberName, memberName, code, minutes)

	return g.send(ctx, adminAddress, fmt.Sprintf("Sign-in code for %s", memberName), htmlBody, textBody)
}

// SendPasswordReset delivers the temporary password issued by a reset
// request. The account is flagged to force a change on first login.
func (g *AWSSESDeliveryGateway) SendPasswordReset(ctx context.Context, address, newPassword string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Your password was reset</h2>
        <p>Sign in with this temporary password:</p>
        <p style="font-size: 20px; font-weight: bold;">%s</p>
        <p>You will be required to choose a new password immediately after signing in. All existing sessions have been signed out.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, newPassword)

	textBody := fmt.Sprintf(`Your password was reset

Sign in with this temporary password: %s

You will be required to choose a new password immediately after signing in. All existing sessions have been signed out.
`, newPassword)

	return g.send(ctx, address, "Your password was reset", htmlBody, textBody)
}

// SendProvisionedCredentials delivers the initial password for an account
// created by a reseller.
func (g *AWSSESDeliveryGateway) SendProvisionedCredentials(ctx context.Context, address, password string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2>Your account is ready</h2>
        <p>An account has been created for this address. Sign in with this temporary password:</p>
        <p style="font-size: 20px; font-weight: bold;">%s</p>
        <p>You will be required to choose a new password on first sign-in.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, password)

	textBody := fmt.Sprintf(`Your account is ready

An account has been created for this address. Sign in with this temporary password: %s

You will be required to choose a new password on first sign-in.
`, password)

	return g.send(ctx, address, "Your account is ready", htmlBody, textBody)
}

func (g *AWSSESDeliveryGateway) send(ctx context.Context, address, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(g.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{address},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := g.sesClient.SendEmail(ctx, input)
	if err != nil {
		g.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	g.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
