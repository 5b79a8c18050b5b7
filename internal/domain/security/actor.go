package security

// Actor identifies who requested a change of the security state.
type Actor struct {
	// Hostname is the machine name the request came from.
	Hostname string `json:"hostname"`
	// Username is the system user who sent the request.
	Username string `json:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}
