package notify

import (
	"context"
	"time"

	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/logging"
)

// Forward subscribes to session and publishes a ChangeMessage for every
// event. Publish failures are logged and do not affect the mutation that
// triggered them. The returned function stops forwarding.
func Forward(session *finance.Session, username string, pub Publisher, logger *logging.Logger) (stop func()) {
	log := logging.OrNop(logger).WithComponent(logging.ComponentAMQP)
	return session.Subscribe(func(ev finance.Event) {
		msg := NewChangeMessage(username, ev, time.Now())
		if err := pub.Publish(context.Background(), msg); err != nil {
			log.Error("failed to publish change",
				logging.FieldUser, username, "kind", msg.Kind, logging.FieldError, err)
		}
	})
}
