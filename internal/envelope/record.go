package envelope

import (
	"fmt"
	"time"
)

// Record is the serialised form of an envelope handed to a durable queue.
type Record struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Client     Client    `json:"client"`
	Timestamp  time.Time `json:"timestamp"`
	Message    []byte    `json:"message"`
}

func (e *Envelope) Record() (Record, error) {
	msg, err := e.Bytes()
	if err != nil {
		return Record{}, fmt.Errorf("failed to flatten envelope %s: %w", e.ID, err)
	}
	return Record{
		ID:         e.ID,
		Sender:     e.Sender,
		Recipients: e.Recipients,
		Client:     e.Client,
		Timestamp:  e.Timestamp,
		Message:    msg,
	}, nil
}

// FromRecord rebuilds an envelope, re-parsing the stored message.
func FromRecord(r Record) (*Envelope, error) {
	env := &Envelope{
		ID:         r.ID,
		Sender:     r.Sender,
		Recipients: r.Recipients,
		Client:     r.Client,
		Timestamp:  r.Timestamp,
	}
	if err := env.Parse(r.Message); err != nil {
		return nil, err
	}
	return env, nil
}
