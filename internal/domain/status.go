package domain

import "fmt"

type Status string

// remember to add new statuses to the transitions map
const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusExpired  Status = "expired"
	StatusComplete Status = "complete"
)

var transitions = map[Status][]Status{
	StatusActive:   {StatusPending, StatusExpired},
	StatusPending:  {StatusComplete},
	StatusExpired:  nil,
	StatusComplete: nil,
}

func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := transitions[status]; ok {
		return status, nil
	}
	return "", fmt.Errorf("invalid cart status %q", s)
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
