package bridge

import (
	"github.com/muurk/visionair/protocol"
	"github.com/muurk/visionair/session"
)

var sensorDefinitions = [...]*sensorConfiguration{
	{
		name:  "VisionAir Active Temperature",
		class: "temperature",
		unit:  "°C",
		get:   func(status *session.CompositeStatus) interface{} { return status.State.ActiveTemp },
	},
	{
		name:  "VisionAir Remote Humidity",
		class: "humidity",
		unit:  "%",
		get:   func(status *session.CompositeStatus) interface{} { return status.State.RemoteHumidity },
	},
	{
		name:  "VisionAir Remote Temperature",
		class: "temperature",
		unit:  "°C",
		get: func(status *session.CompositeStatus) interface{} {
			if status.Schedule == nil || !status.Schedule.RemoteTempOK {
				return nil
			}
			return status.Schedule.RemoteTemp
		},
	},
	{
		name:  "VisionAir Outlet Temperature",
		class: "temperature",
		unit:  "°C",
		get:   func(status *session.CompositeStatus) interface{} { return status.Probes.Probe1Temp },
	},
	{
		name:  "VisionAir Outlet Humidity",
		class: "humidity",
		unit:  "%",
		get:   func(status *session.CompositeStatus) interface{} { return status.Probes.Probe1Humidity },
	},
	{
		name:  "VisionAir Inlet Temperature",
		class: "temperature",
		unit:  "°C",
		get:   func(status *session.CompositeStatus) interface{} { return status.Probes.Probe2Temp },
	},
	{
		name: "VisionAir Filter Remaining",
		unit: "%",
		get:  func(status *session.CompositeStatus) interface{} { return status.Probes.FilterPercent },
	},
	{
		name: "VisionAir Filter Age",
		unit: "d",
		get:  func(status *session.CompositeStatus) interface{} { return status.State.FilterDays },
	},
	{
		name: "VisionAir Operating Days",
		unit: "d",
		get:  func(status *session.CompositeStatus) interface{} { return status.State.OperatingDays },
	},
	{
		name: "VisionAir Airflow",
		unit: "m³/h",
		get: func(status *session.CompositeStatus) interface{} {
			mode, ok := status.State.Mode()
			if !ok {
				return nil
			}
			switch mode {
			case protocol.ModeLow:
				return status.Airflow.Low
			case protocol.ModeMedium:
				return status.Airflow.Medium
			default:
				return status.Airflow.High
			}
		},
	},
}
