package ports

import (
	"context"

	"github.com/petclinic/auth-service/internal/core/domain"
)

// MailPublisher hands a mail job to the delivery pipeline without waiting for
// it to be sent.
type MailPublisher interface {
	Publish(ctx context.Context, mail domain.Mail) error
}

// MailSender delivers a single message.
type MailSender interface {
	Send(ctx context.Context, mail domain.Mail) error
}
