package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"departure-board/internal/board"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	logger      *logrus.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics, logger *logrus.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("departure-board"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PublishBoard sends b as JSON on <prefix>.<station>.<mode>.
func (p *NATSPublisher) PublishBoard(b *board.Board) error {
	subject := Subject(p.prefix, b.Station, b.Mode)
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.logger.WithFields(logrus.Fields{"subject": subject, "bytes": len(data)}).Debug("nats publish")
	}
	start := time.Now()
	err = p.nc.Publish(subject, data)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// Subject builds the subject a board is published on. The prefix may
// contain dots; station and mode are sanitized into single tokens.
func Subject(prefix, station, mode string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	parts := []string{subjectToken(station), subjectToken(mode)}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
