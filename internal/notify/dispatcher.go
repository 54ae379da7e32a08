package notify

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

// Hooks receives dispatch outcomes for instrumentation. The zero value
// is inert. Results: sent, disabled, cooldown, error, expired, suppressed.
type Hooks struct {
	OnDispatch func(result string)
}

// Dispatcher sends one alert per eligible high-priority message,
// best-effort and at most once. Delivery is not guaranteed; a failed
// send is logged and never retried.
type Dispatcher struct {
	transport  Transport
	shortener  Shortener
	ledger     *CooldownLedger
	previewMax int
	logger     log.Logger
	hooks      Hooks
	now        func() time.Time
}

// NewDispatcher creates a dispatcher. transport may be a disabled
// transport and shortener may be nil; both degrade rather than fail.
func NewDispatcher(transport Transport, shortener Shortener, cooldown time.Duration, previewMax int, logger log.Logger, hooks Hooks) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	if previewMax <= 0 {
		previewMax = DefaultPreviewMax
	}
	return &Dispatcher{
		transport:  transport,
		shortener:  shortener,
		ledger:     NewCooldownLedger(cooldown),
		previewMax: previewMax,
		logger:     logger,
		hooks:      hooks,
		now:        time.Now,
	}
}

// Dispatch attempts one alert for a message. sent=false with a nil error
// means the dispatcher chose not to send (transport unconfigured or the
// sender is cooling down). ErrChannelExpired is surfaced for the caller
// to apply batch suppression; other transport errors are returned for
// logging only.
func (d *Dispatcher) Dispatch(ctx context.Context, m *mail.Message) (bool, error) {
	if d.transport == nil || !d.transport.Enabled() {
		d.logger.Warn(ctx, "transport not configured, skipping alert", "id", m.ID)
		d.emit("disabled")
		return false, nil
	}

	if !d.ledger.Begin(m.Sender) {
		d.logger.Info(ctx, "sender in cooldown, skipping alert",
			"id", m.ID, "sender", m.Sender)
		d.emit("cooldown")
		return false, nil
	}

	var link string
	if d.shortener != nil {
		link = d.shortener.Shorten(ctx, deepLink(m.Subject))
	}

	body := buildAlertBody(m, link, d.previewMax, d.now())

	sid, err := d.transport.Send(ctx, body)
	if err != nil {
		if errors.Is(err, ErrChannelExpired) {
			d.emit("expired")
			return false, err
		}
		d.logger.Error(ctx, err, "alert send failed", "id", m.ID, "sender", m.Sender)
		d.emit("error")
		return false, err
	}

	d.logger.Info(ctx, "alert sent", "id", m.ID, "sender", m.Sender, "sid", sid)
	d.emit("sent")
	return true, nil
}

// DispatchBatch alerts on each message in order. A channel-expired error
// triggers exactly one administrative notice through the same transport
// and suppresses every remaining send this batch; any other failure only
// affects its own message.
func (d *Dispatcher) DispatchBatch(ctx context.Context, msgs []*mail.Message) (sent int) {
	expired := false
	for i, m := range msgs {
		if expired {
			d.emit("suppressed")
			continue
		}

		ok, err := d.Dispatch(ctx, m)
		if ok {
			sent++
			continue
		}
		if errors.Is(err, ErrChannelExpired) {
			d.logger.Warn(ctx, "messaging channel expired, suppressing remaining alerts",
				"remaining", len(msgs)-i-1)
			expired = true
			d.sendExpiryNotice(ctx)
		}
	}
	return sent
}

func (d *Dispatcher) sendExpiryNotice(ctx context.Context) {
	if _, err := d.transport.Send(ctx, buildExpiryNotice()); err != nil {
		d.logger.Error(ctx, err, "expiry notice send failed")
	}
}

func (d *Dispatcher) emit(result string) {
	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(result)
	}
}
