package bridge

import "github.com/muurk/visionair/session"

type sensorConfiguration struct {
	name  string
	class string
	unit  string
	// get extracts the sensor value from a composite status; nil means
	// the value is unavailable this cycle and nothing is published.
	get        func(status *session.CompositeStatus) interface{}
	stateTopic string
}
