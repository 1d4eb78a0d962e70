package bs1200

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type EventType int

const (
	EventTypeError EventType = iota
	EventTypeWarning
	EventTypeInfo
	EventTypeDebug
)

func (et EventType) String() string {
	switch et {
	case EventTypeError:
		return "ERROR"
	case EventTypeWarning:
		return "WARN"
	case EventTypeInfo:
		return "INFO"
	case EventTypeDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Level maps the event type onto the logger level it is reported at.
func (et EventType) Level() logrus.Level {
	switch et {
	case EventTypeError:
		return logrus.ErrorLevel
	case EventTypeWarning:
		return logrus.WarnLevel
	case EventTypeInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Event is non fatal adapter chatter, fatal errors go through Adapter.Err.
type Event struct {
	Type    EventType
	Details string
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Details)
}
