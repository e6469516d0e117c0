// Package alert delivers alert events to the operator.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/invisible-tech/keylogger-sensor/internal/metrics"
	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// ErrNoHandlers is returned by a Composite with no children.
var ErrNoHandlers = errors.New("no alert handlers configured")

// Handler delivers an alert event.
type Handler interface {
	HandleAlert(ctx context.Context, event types.AlertEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event types.AlertEvent) error

func (f HandlerFunc) HandleAlert(ctx context.Context, event types.AlertEvent) error {
	return f(ctx, event)
}

type namedHandler struct {
	name string
	h    Handler
}

// Composite forwards every event to all of its children. It succeeds when
// at least one child succeeds.
type Composite struct {
	log      *logrus.Logger
	handlers []namedHandler
}

// NewComposite creates an empty Composite.
func NewComposite(log *logrus.Logger) *Composite {
	return &Composite{log: log}
}

// Add registers a child handler under name, used in logs and metrics.
func (c *Composite) Add(name string, h Handler) *Composite {
	c.handlers = append(c.handlers, namedHandler{name: name, h: h})
	return c
}

// Len returns the number of child handlers.
func (c *Composite) Len() int {
	return len(c.handlers)
}

func (c *Composite) HandleAlert(ctx context.Context, event types.AlertEvent) error {
	if len(c.handlers) == 0 {
		return ErrNoHandlers
	}

	var errs []error
	for _, nh := range c.handlers {
		if err := nh.h.HandleAlert(ctx, event); err != nil {
			metrics.AlertHandlerFailures.WithLabelValues(nh.name).Inc()
			c.log.WithError(err).WithFields(logrus.Fields{
				"handler":  nh.name,
				"event_id": event.EventID,
			}).Warn("Alert handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", nh.name, err))
		}
	}

	if len(errs) == len(c.handlers) {
		return utilerrors.NewAggregate(errs)
	}
	return nil
}
