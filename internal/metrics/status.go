package metrics

import "time"

// StatusKind drives the connection indicator.
type StatusKind string

const (
	StatusOffline       StatusKind = "offline"
	StatusOnline        StatusKind = "online"
	StatusAuthenticated StatusKind = "authenticated"
	StatusError         StatusKind = "error"
	StatusLoading       StatusKind = "loading"
	StatusSuccess       StatusKind = "success"
)

type Status struct {
	Kind    StatusKind
	Message string
}

var (
	StatusDisconnected = Status{StatusOffline, "Disconnected"}
	StatusConnected    = Status{StatusOnline, "Connected"}
	StatusAuthed       = Status{StatusAuthenticated, "Authenticated"}
	StatusConnectError = Status{StatusError, "Connection error"}
	StatusAuthFailed   = Status{StatusError, "Authentication failed"}
	StatusMetricsError = Status{StatusError, "Error getting metrics"}
	StatusUpdating     = Status{StatusLoading, "Updating metrics..."}
	StatusReconnecting = Status{StatusLoading, "Reconnecting..."}

	StatusUpdatesActive   = Status{StatusSuccess, "Updates active"}
	StatusUpdatesDisabled = Status{StatusOffline, "Updates disabled"}
)

// UpdatedAt is the success status shown when a snapshot arrives.
func UpdatedAt(t time.Time, loc *time.Location) Status {
	if loc == nil {
		loc = time.Local
	}
	return Status{StatusSuccess, "Updated at " + t.In(loc).Format("3:04:05 PM")}
}

// FetchFailed is the poller's error status.
func FetchFailed(err error) Status {
	return Status{StatusError, "Error fetching real-time metrics: " + err.Error() + ". Try again later."}
}
