package action

import "time"

const (
	// TypeRemote is a mini-game played on the client.
	TypeRemote = "remote"
	// TypeWait completes by itself after data.ms milliseconds.
	TypeWait = "wait"
)

// Remote waits for the client to report completion through the session API.
type Remote struct{}

// Mount does nothing; completion arrives as a command.
func (Remote) Mount(Props) func() { return nil }

// WaitData is the data of a wait action.
type WaitData struct {
	Ms int `mapstructure:"ms"`
}

// Wait completes after a fixed delay.
type Wait struct{}

// Mount schedules completion.
func (Wait) Mount(p Props) func() {
	var data WaitData
	if err := Decode(p.Data, &data); err != nil || data.Ms < 0 {
		data.Ms = 0
	}
	p.After(time.Duration(data.Ms)*time.Millisecond, p.OnComplete)
	return nil
}
