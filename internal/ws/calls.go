package ws

import "sort"

// LeaveOutcome describes what a roster removal did to the call.
type LeaveOutcome int

const (
	// LeaveNotInCall means the user was not a participant; nothing changed.
	LeaveNotInCall LeaveOutcome = iota
	// LeaveRemaining means the user left and the call continues.
	LeaveRemaining
	// LeaveEnded means the user was the last participant and the call is
	// over.
	LeaveEnded
)

// CallDeparture records one group call a disconnecting user was removed
// from.
type CallDeparture struct {
	GroupID   int64
	Outcome   LeaveOutcome
	Remaining []int64
}

// CallRegistry tracks which users are in which group calls, and whether each
// call carries video. Rosters preserve join order. The registry does no
// locking of its own; the hub serializes access under its mutex.
type CallRegistry struct {
	participants map[int64][]int64
	video        map[int64]bool
}

func NewCallRegistry() *CallRegistry {
	return &CallRegistry{
		participants: make(map[int64][]int64),
		video:        make(map[int64]bool),
	}
}

// Start puts the user in the group's call, creating it with the requested
// modality if idle. Starting an already-active call joins it instead and
// leaves the modality alone.
func (c *CallRegistry) Start(groupID, userID int64, video bool) []int64 {
	roster, active := c.participants[groupID]
	if !active {
		c.participants[groupID] = []int64{userID}
		c.video[groupID] = video
		return []int64{userID}
	}

	roster = appendIfAbsent(roster, userID)
	c.participants[groupID] = roster
	return snapshot(roster)
}

// Join adds the user to the group's call. Joining an idle group starts an
// audio call. Returns the roster after the change.
func (c *CallRegistry) Join(groupID, userID int64) []int64 {
	roster, active := c.participants[groupID]
	if !active {
		c.participants[groupID] = []int64{userID}
		c.video[groupID] = false
		return []int64{userID}
	}

	roster = appendIfAbsent(roster, userID)
	c.participants[groupID] = roster
	return snapshot(roster)
}

// Leave removes the user from the group's call. When the last participant
// leaves, the roster and the modality flag are dropped together.
func (c *CallRegistry) Leave(groupID, userID int64) (LeaveOutcome, []int64) {
	roster, active := c.participants[groupID]
	if !active {
		return LeaveNotInCall, nil
	}

	trimmed, found := removeID(roster, userID)
	if !found {
		return LeaveNotInCall, nil
	}

	if len(trimmed) == 0 {
		delete(c.participants, groupID)
		delete(c.video, groupID)
		return LeaveEnded, nil
	}

	c.participants[groupID] = trimmed
	return LeaveRemaining, snapshot(trimmed)
}

// DropUser removes the user from every call they are in, returning the
// departures in ascending group order.
func (c *CallRegistry) DropUser(userID int64) []CallDeparture {
	var groups []int64
	for groupID, roster := range c.participants {
		if indexOf(roster, userID) >= 0 {
			groups = append(groups, groupID)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	departures := make([]CallDeparture, 0, len(groups))
	for _, groupID := range groups {
		outcome, remaining := c.Leave(groupID, userID)
		if outcome == LeaveNotInCall {
			continue
		}
		departures = append(departures, CallDeparture{
			GroupID:   groupID,
			Outcome:   outcome,
			Remaining: remaining,
		})
	}
	return departures
}

// Participants returns a copy of the group's roster, or nil when no call is
// active.
func (c *CallRegistry) Participants(groupID int64) []int64 {
	roster, active := c.participants[groupID]
	if !active {
		return nil
	}
	return snapshot(roster)
}

// IsActive reports whether the group has an ongoing call.
func (c *CallRegistry) IsActive(groupID int64) bool {
	_, active := c.participants[groupID]
	return active
}

// IsVideo reports the call's modality. False for audio calls and for idle
// groups.
func (c *CallRegistry) IsVideo(groupID int64) bool {
	return c.video[groupID]
}

func appendIfAbsent(roster []int64, userID int64) []int64 {
	if indexOf(roster, userID) >= 0 {
		return roster
	}
	return append(roster, userID)
}

func removeID(roster []int64, userID int64) ([]int64, bool) {
	i := indexOf(roster, userID)
	if i < 0 {
		return roster, false
	}
	return append(roster[:i:i], roster[i+1:]...), true
}

func indexOf(roster []int64, userID int64) int {
	for i, id := range roster {
		if id == userID {
			return i
		}
	}
	return -1
}

func snapshot(roster []int64) []int64 {
	out := make([]int64, len(roster))
	copy(out, roster)
	return out
}
